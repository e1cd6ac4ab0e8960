package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"todozen/internal/model"
	"todozen/internal/repository"
)

const (
	DefaultPollInterval = 15 * time.Second
	DefaultGraceWindow  = time.Minute
)

// DueEvent is emitted once per task occurrence when its due moment arrives.
type DueEvent struct {
	Task  model.Task
	Fired time.Time
}

// Sink consumes due events. Implementations should return quickly.
type Sink interface {
	Notify(ctx context.Context, ev DueEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev DueEvent) error

func (f SinkFunc) Notify(ctx context.Context, ev DueEvent) error { return f(ctx, ev) }

// LogSink writes due events to a logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(_ context.Context, ev DueEvent) error {
	s.Logger.Info("task due",
		"id", ev.Task.ID,
		"title", ev.Task.Title,
		"owner", ev.Task.Owner,
		"due", ev.Task.Due.Format(time.RFC3339),
	)
	return nil
}

// ChanSink delivers events on a channel, dropping them when ctx ends first.
type ChanSink chan<- DueEvent

func (c ChanSink) Notify(ctx context.Context, ev DueEvent) error {
	select {
	case c <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, ev DueEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type NotifierConfig struct {
	// Owner restricts passes to one owner; empty watches every owner.
	Owner     string
	Grace     time.Duration
	Lookahead time.Duration
}

// Notifier finds due tasks and emits one event per occurrence.
type Notifier struct {
	store  TaskStore
	sink   Sink
	cfg    NotifierConfig
	logger *slog.Logger
	Now    func() time.Time
}

func NewNotifier(store TaskStore, sink Sink, cfg NotifierConfig, logger *slog.Logger) *Notifier {
	if cfg.Grace < 0 {
		cfg.Grace = 0
	}
	if cfg.Lookahead < 0 {
		cfg.Lookahead = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		store:  store,
		sink:   sink,
		cfg:    cfg,
		logger: logger.With("component", "notifier"),
		Now:    time.Now,
	}
}

// InWindow reports whether due falls inside [now-grace, now+lookahead].
func (n *Notifier) InWindow(due, now time.Time) bool {
	if due.IsZero() {
		return false
	}
	return !due.Before(now.Add(-n.cfg.Grace)) && !due.After(now.Add(n.cfg.Lookahead))
}

// Pass runs one scan and returns how many events were emitted. The notified
// flag is set before the event is emitted, so a task fires at most once per
// occurrence even if the sink fails. Failures on one task do not stop the
// pass; a cancelled ctx does.
func (n *Notifier) Pass(ctx context.Context) (int, error) {
	tasks, err := n.store.ListTasks(ctx, repository.ListOptions{
		Owner:          n.cfg.Owner,
		OpenOnly:       true,
		UnnotifiedOnly: true,
	})
	if err != nil {
		return 0, fmt.Errorf("list due candidates: %w", err)
	}

	now := n.Now()
	fired := 0
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		if !n.InWindow(task.Due, now) {
			continue
		}
		ok, err := n.fire(ctx, task, now)
		if err != nil {
			n.logger.Warn("due task skipped", "id", task.ID, "err", err)
			continue
		}
		if ok {
			fired++
		}
	}
	if fired > 0 {
		n.logger.Debug("pass finished", "fired", fired)
	}
	return fired, nil
}

func (n *Notifier) fire(ctx context.Context, task model.Task, now time.Time) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	marked, err := n.store.MarkNotified(ctx, task.ID, task.Due)
	if err != nil {
		return false, err
	}
	if !marked {
		return false, nil
	}
	task.Notified = true
	if err := n.sink.Notify(ctx, DueEvent{Task: task, Fired: now}); err != nil {
		n.logger.Warn("due event not delivered", "id", task.ID, "err", err)
	}
	return true, nil
}
