package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"todozen/internal/model"
	"todozen/internal/recurrence"
)

// CompletionResult describes what a toggle changed.
type CompletionResult struct {
	Task model.Task
	// Next is the rolled-over occurrence, nil when none was created.
	Next *model.Task
	// XP awarded by this toggle; zero when the task was reopened.
	XP int
	// Profile is the owner's profile after the reward, nil when no
	// profile exists for the owner (guest mode) or the task was reopened.
	Profile *model.Profile
}

// CompletionService handles toggling tasks done and everything that follows.
type CompletionService struct {
	tasks    TaskStore
	profiles ProfileStore
	policy   RewardPolicy
	logger   *slog.Logger
	Now      func() time.Time
}

func NewCompletionService(tasks TaskStore, profiles ProfileStore, policy RewardPolicy, logger *slog.Logger) *CompletionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompletionService{
		tasks:    tasks,
		profiles: profiles,
		policy:   policy,
		logger:   logger.With("component", "completion"),
		Now:      time.Now,
	}
}

// Toggle flips the done state of a task.
//
// Marking done stores the XP, inserts the next occurrence of a repeating
// task and then credits the owner's profile. If the next occurrence cannot
// be inserted the task is reopened and the error returned. A failed profile
// credit is logged and leaves Profile nil; the completion itself stands.
// Reopening clears done and notified so the occurrence can fire again;
// rewards already granted are kept.
func (s *CompletionService) Toggle(ctx context.Context, id string) (CompletionResult, error) {
	var xp int
	task, err := s.tasks.UpdateTask(ctx, id, func(t *model.Task) error {
		if t.Done {
			t.Done = false
			t.Notified = false
			return nil
		}
		xp = s.policy.XP(*t)
		t.Done = true
		t.XP = xp
		return nil
	})
	if err != nil {
		return CompletionResult{}, storeErr("toggle task", err)
	}

	result := CompletionResult{Task: task}
	if !task.Done {
		s.logger.Info("task reopened", "id", task.ID)
		return result, nil
	}

	next, err := s.rollover(ctx, task)
	if err != nil {
		s.reopen(ctx, task.ID)
		return CompletionResult{}, storeErr("complete task", err)
	}
	result.Next = next
	result.XP = xp

	now := s.Now()
	profile, err := s.profiles.UpdateProfile(ctx, task.Owner, func(p *model.Profile) error {
		ApplyCompletion(p, s.policy.Coins(xp), now)
		return nil
	})
	switch {
	case err == nil:
		result.Profile = &profile
	case isNotFound(err):
		s.logger.Debug("no profile for owner, reward skipped", "owner", task.Owner)
	default:
		s.logger.Warn("profile credit failed", "owner", task.Owner, "id", task.ID, "error", err)
	}

	s.logger.Info("task completed", "id", task.ID, "xp", xp, "rolled_over", next != nil)
	return result, nil
}

// reopen undoes a completion whose follow-up could not be written.
func (s *CompletionService) reopen(ctx context.Context, id string) {
	_, err := s.tasks.UpdateTask(ctx, id, func(t *model.Task) error {
		t.Done = false
		t.XP = 0
		return nil
	})
	if err != nil {
		s.logger.Error("reopen after failed rollover", "id", id, "error", err)
	}
}

func (s *CompletionService) rollover(ctx context.Context, done model.Task) (*model.Task, error) {
	if !done.Repeats() {
		return nil, nil
	}
	due, ok := recurrence.Next(done)
	if !ok {
		s.logger.Warn("repeating task has no next occurrence", "id", done.ID, "recurrence", done.Recurrence)
		return nil, nil
	}
	next := model.Task{
		ID:         uuid.NewString(),
		Owner:      done.Owner,
		Title:      done.Title,
		Category:   done.Category,
		Due:        due,
		Created:    s.Now(),
		Recurrence: done.Recurrence,
		Extra:      done.Extra,
	}
	if err := s.tasks.UpsertTask(ctx, next); err != nil {
		return nil, fmt.Errorf("insert next occurrence of %s: %w", done.ID, err)
	}
	return &next, nil
}
