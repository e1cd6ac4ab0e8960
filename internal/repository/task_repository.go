package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"todozen/internal/model"
)

var (
	// ErrNotFound is returned by lookups for a missing task or profile.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable wraps every storage failure. It is fatal to the
	// operation that hit it and to nothing else.
	ErrUnavailable = errors.New("store unavailable")
)

const defaultOpTimeout = 5 * time.Second

// Observer is told about committed task writes. Calls happen under the store
// lock, in commit order, and must not block or call back into the store.
type Observer interface {
	TaskSaved(task model.Task)
	TaskDeleted(id string)
}

// ListOptions narrows ListTasks. Zero value lists every task.
type ListOptions struct {
	Owner          string
	OpenOnly       bool
	UnnotifiedOnly bool
}

// Store is the durable primary store for tasks and profiles. It owns the
// only lock shared between the foreground actor and the background poller.
type Store struct {
	db        *gorm.DB
	mu        sync.Mutex
	timeout   time.Duration
	observers []Observer
	logger    *slog.Logger
}

func NewStore(db *gorm.DB, timeout time.Duration, logger *slog.Logger) *Store {
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, timeout: timeout, logger: logger.With("component", "store")}
}

// AddObserver registers o for task change notifications. It is not safe to
// call concurrently with mutations; wire observers before use.
func (s *Store) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// UpsertTask inserts or fully replaces the task with the same id.
func (s *Store) UpsertTask(ctx context.Context, task model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.upsertLocked(ctx, task); err != nil {
		return err
	}
	s.saved(task)
	return nil
}

func (s *Store) upsertLocked(ctx context.Context, task model.Task) error {
	if task.ID == "" {
		return fmt.Errorf("upsert task: empty id")
	}
	db, cancel := s.conn(ctx)
	defer cancel()
	rec := toTaskRecord(task)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("%w: upsert task %s: %w", ErrUnavailable, task.ID, err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, id)
}

func (s *Store) getLocked(ctx context.Context, id string) (model.Task, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var rec taskRecord
	err := db.Where("id = ?", id).Take(&rec).Error
	switch {
	case err == nil:
		return rec.toTask(), nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	default:
		return model.Task{}, fmt.Errorf("%w: get task %s: %w", ErrUnavailable, id, err)
	}
}

// ListTasks returns matching tasks ordered by due time; rows with an
// unparsable due sort last.
func (s *Store) ListTasks(ctx context.Context, opts ListOptions) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, cancel := s.conn(ctx)
	defer cancel()
	q := db.Model(&taskRecord{})
	if opts.Owner != "" {
		q = q.Where("owner = ?", opts.Owner)
	}
	if opts.OpenOnly {
		q = q.Where("done = ?", false)
	}
	if opts.UnnotifiedOnly {
		q = q.Where("notified = ?", false)
	}
	var recs []taskRecord
	if err := q.Order("created ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("%w: list tasks: %w", ErrUnavailable, err)
	}

	tasks := make([]model.Task, 0, len(recs))
	for _, rec := range recs {
		tasks = append(tasks, rec.toTask())
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		switch {
		case !tasks[i].HasDue():
			return false
		case !tasks[j].HasDue():
			return true
		default:
			return tasks[i].Due.Before(tasks[j].Due)
		}
	})
	return tasks, nil
}

// UpdateTask applies fn to the current stored value and writes the result
// back while holding the store lock.
func (s *Store) UpdateTask(ctx context.Context, id string, fn func(*model.Task) error) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.getLocked(ctx, id)
	if err == nil {
		err = fn(&task)
	}
	if err == nil {
		task.ID = id
		err = s.upsertLocked(ctx, task)
	}
	if err != nil {
		return model.Task{}, err
	}
	s.saved(task)
	return task, nil
}

// MarkNotified flags the occurrence (id, due) as fired. It reports false
// without error when the row no longer matches: its due moved, it was
// completed, or it was already flagged.
func (s *Store) MarkNotified(ctx context.Context, id string, due time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.getLocked(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if task.Done || task.Notified || !task.Due.Equal(due) {
		return false, nil
	}
	task.Notified = true
	if err := s.upsertLocked(ctx, task); err != nil {
		return false, err
	}
	s.saved(task)
	return true, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, cancel := s.conn(ctx)
	result := db.Where("id = ?", id).Delete(&taskRecord{})
	cancel()

	if result.Error != nil {
		return fmt.Errorf("%w: delete task %s: %w", ErrUnavailable, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	for _, o := range s.observers {
		o.TaskDeleted(id)
	}
	return nil
}

func (s *Store) saved(task model.Task) {
	for _, o := range s.observers {
		o.TaskSaved(task)
	}
}
