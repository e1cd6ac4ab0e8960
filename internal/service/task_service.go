package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"todozen/internal/model"
	"todozen/internal/repository"
)

// SnoozePresets are the snooze durations offered by front-ends, in minutes.
var SnoozePresets = []int{5, 10, 15, 30, 60}

var validate = validator.New()

// TaskInput represents data required to create a task.
type TaskInput struct {
	Owner      string
	Title      string `validate:"required,max=200"`
	Category   string `validate:"max=64"`
	Due        time.Time
	Recurrence model.Recurrence `validate:"omitempty,oneof=none daily weekly monthly custom"`
	Extra      model.RecurrenceExtra
}

// TaskService wraps task-related business logic.
type TaskService struct {
	store TaskStore
	Now   func() time.Time
}

func NewTaskService(store TaskStore) *TaskService {
	return &TaskService{store: store, Now: time.Now}
}

func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (model.Task, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Category = strings.TrimSpace(input.Category)
	if err := validate.Struct(input); err != nil {
		return model.Task{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if input.Due.IsZero() {
		return model.Task{}, fmt.Errorf("%w: due is required", ErrInvalidInput)
	}
	if input.Recurrence == "" {
		input.Recurrence = model.RecurrenceNone
	}
	if err := checkExtra(input.Recurrence, input.Extra); err != nil {
		return model.Task{}, err
	}

	owner := strings.TrimSpace(input.Owner)
	if owner == "" {
		owner = model.GuestOwner
	}
	category := input.Category
	if category == "" {
		category = model.DefaultCategory
	}
	extra := input.Extra
	if input.Recurrence != model.RecurrenceCustom {
		extra = nil
	}

	task := model.Task{
		ID:         uuid.NewString(),
		Owner:      owner,
		Title:      input.Title,
		Category:   category,
		Due:        input.Due,
		Created:    s.Now(),
		Recurrence: input.Recurrence,
		Extra:      extra,
	}
	if err := s.store.UpsertTask(ctx, task); err != nil {
		return model.Task{}, storeErr("create task", err)
	}
	return task, nil
}

func checkExtra(r model.Recurrence, extra model.RecurrenceExtra) error {
	if r != model.RecurrenceCustom {
		return nil
	}
	switch v := extra.(type) {
	case model.EveryNDays:
		if v.N < 1 {
			return fmt.Errorf("%w: every-N-days interval must be at least 1", ErrInvalidInput)
		}
	case model.Weekdays:
		days, ok := v.Sorted()
		if !ok || len(days) == 0 {
			return fmt.Errorf("%w: weekdays must be a non-empty set of 0..6", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: custom recurrence needs an interval or weekdays", ErrInvalidInput)
	}
	return nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (model.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, storeErr("get task", err)
	}
	return task, nil
}

// ListTasks returns the owner's tasks; done ones only with includeDone.
// An empty owner lists every owner.
func (s *TaskService) ListTasks(ctx context.Context, owner string, includeDone bool) ([]model.Task, error) {
	tasks, err := s.store.ListTasks(ctx, repository.ListOptions{Owner: owner, OpenOnly: !includeDone})
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	return tasks, nil
}

// EditDue moves the task to due and re-arms its notification.
func (s *TaskService) EditDue(ctx context.Context, id string, due time.Time) (model.Task, error) {
	if due.IsZero() {
		return model.Task{}, fmt.Errorf("%w: due is required", ErrInvalidInput)
	}
	task, err := s.store.UpdateTask(ctx, id, func(t *model.Task) error {
		t.Due = due
		t.Notified = false
		return nil
	})
	if err != nil {
		return model.Task{}, storeErr("edit due", err)
	}
	return task, nil
}

// Snooze pushes the current due time back by minutes and re-arms the
// notification. A task with no due is counted from now.
func (s *TaskService) Snooze(ctx context.Context, id string, minutes int) (model.Task, error) {
	if minutes <= 0 {
		return model.Task{}, fmt.Errorf("%w: snooze minutes must be positive", ErrInvalidInput)
	}
	now := s.Now()
	task, err := s.store.UpdateTask(ctx, id, func(t *model.Task) error {
		if t.Done {
			return fmt.Errorf("%w: task is already done", ErrInvalidInput)
		}
		from := t.Due
		if from.IsZero() {
			from = now
		}
		t.Due = from.Add(time.Duration(minutes) * time.Minute)
		t.Notified = false
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return model.Task{}, err
		}
		return model.Task{}, storeErr("snooze task", err)
	}
	return task, nil
}

// DeleteTask removes a task completely (for both one-time and recurring tasks).
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return storeErr("delete task", err)
	}
	return nil
}

// GetOwned returns the task only if it belongs to owner; other owners' tasks
// read as ErrNotFound. An empty owner matches every task.
func (s *TaskService) GetOwned(ctx context.Context, owner, id string) (model.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if !ownedBy(task, owner) {
		return model.Task{}, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	return task, nil
}

func ownedBy(task model.Task, owner string) bool {
	return owner == "" || task.Owner == owner
}

// ResolveID expands a full id or a unique id prefix among owner's tasks.
func (s *TaskService) ResolveID(ctx context.Context, owner, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty task id", ErrInvalidInput)
	}
	if task, err := s.store.GetTask(ctx, ref); err == nil {
		if ownedBy(task, owner) {
			return task.ID, nil
		}
	} else if !isNotFound(err) {
		return "", storeErr("resolve task", err)
	}

	tasks, err := s.store.ListTasks(ctx, listAll(owner))
	if err != nil {
		return "", storeErr("resolve task", err)
	}
	var match string
	for _, t := range tasks {
		if !strings.HasPrefix(t.ID, ref) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("%w: id prefix %q is ambiguous", ErrInvalidInput, ref)
		}
		match = t.ID
	}
	if match == "" {
		return "", fmt.Errorf("task %s: %w", ref, ErrNotFound)
	}
	return match, nil
}
