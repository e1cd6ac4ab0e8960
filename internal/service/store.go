package service

import (
	"context"
	"time"

	"todozen/internal/model"
	"todozen/internal/repository"
)

// TaskStore is the subset of the local store used by task services.
type TaskStore interface {
	UpsertTask(ctx context.Context, task model.Task) error
	GetTask(ctx context.Context, id string) (model.Task, error)
	ListTasks(ctx context.Context, opts repository.ListOptions) ([]model.Task, error)
	UpdateTask(ctx context.Context, id string, fn func(*model.Task) error) (model.Task, error)
	MarkNotified(ctx context.Context, id string, due time.Time) (bool, error)
	DeleteTask(ctx context.Context, id string) error
}

// ProfileStore is the subset of the local store used for profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, username string) (model.Profile, error)
	UpsertProfile(ctx context.Context, p model.Profile) error
	UpdateProfile(ctx context.Context, username string, fn func(*model.Profile) error) (model.Profile, error)
}

var (
	_ TaskStore    = (*repository.Store)(nil)
	_ ProfileStore = (*repository.Store)(nil)
)

func listAll(owner string) repository.ListOptions {
	return repository.ListOptions{Owner: owner}
}
