package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todozen/internal/model"
	"todozen/internal/service"
)

func TestCreateTask_Defaults(t *testing.T) {
	svc := service.NewTaskService(newStore(t))
	c := &clock{now: tuesday.Add(-time.Hour)}
	svc.Now = c.Now

	task, err := svc.CreateTask(context.Background(), service.TaskInput{Title: "  Pay rent ", Due: tuesday})
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Pay rent", task.Title)
	assert.Equal(t, model.GuestOwner, task.Owner)
	assert.Equal(t, model.DefaultCategory, task.Category)
	assert.Equal(t, model.RecurrenceNone, task.Recurrence)
	assert.Equal(t, c.now, task.Created)
	assert.False(t, task.Done)
	assert.False(t, task.Notified)

	got, err := svc.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.True(t, got.Due.Equal(tuesday))
}

func TestCreateTask_Validation(t *testing.T) {
	svc := service.NewTaskService(newStore(t))

	cases := []struct {
		name  string
		input service.TaskInput
	}{
		{"empty title", service.TaskInput{Title: "  ", Due: tuesday}},
		{"missing due", service.TaskInput{Title: "x"}},
		{"unknown recurrence", service.TaskInput{Title: "x", Due: tuesday, Recurrence: "hourly"}},
		{"custom without rule", service.TaskInput{Title: "x", Due: tuesday, Recurrence: model.RecurrenceCustom}},
		{"custom zero interval", service.TaskInput{Title: "x", Due: tuesday, Recurrence: model.RecurrenceCustom, Extra: model.EveryNDays{N: 0}}},
		{"custom empty weekdays", service.TaskInput{Title: "x", Due: tuesday, Recurrence: model.RecurrenceCustom, Extra: model.Weekdays{}}},
		{"custom weekday out of range", service.TaskInput{Title: "x", Due: tuesday, Recurrence: model.RecurrenceCustom, Extra: model.Weekdays{Days: []int{7}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTask(context.Background(), tc.input)
			assert.ErrorIs(t, err, service.ErrInvalidInput)
		})
	}
}

func TestCreateTask_DropsExtraForNonCustom(t *testing.T) {
	svc := service.NewTaskService(newStore(t))
	task, err := svc.CreateTask(context.Background(), service.TaskInput{
		Title: "Stretch", Due: tuesday, Recurrence: model.RecurrenceDaily, Extra: model.EveryNDays{N: 3},
	})
	require.NoError(t, err)
	assert.Nil(t, task.Extra)
}

func TestListTasks_OwnerAndDoneFilter(t *testing.T) {
	store := newStore(t)
	svc := service.NewTaskService(store)
	ctx := context.Background()

	a, err := svc.CreateTask(ctx, service.TaskInput{Owner: "alice", Title: "a", Due: tuesday})
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, service.TaskInput{Owner: "bob", Title: "b", Due: tuesday})
	require.NoError(t, err)
	_, err = store.UpdateTask(ctx, a.ID, func(t *model.Task) error { t.Done = true; return nil })
	require.NoError(t, err)

	open, err := svc.ListTasks(ctx, "alice", false)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := svc.ListTasks(ctx, "alice", true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	everyone, err := svc.ListTasks(ctx, "", true)
	require.NoError(t, err)
	assert.Len(t, everyone, 2)
}

func TestEditDue_RearmsNotification(t *testing.T) {
	store := newStore(t)
	svc := service.NewTaskService(store)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, service.TaskInput{Title: "Call mom", Due: tuesday})
	require.NoError(t, err)
	ok, err := store.MarkNotified(ctx, task.ID, tuesday)
	require.NoError(t, err)
	require.True(t, ok)

	moved, err := svc.EditDue(ctx, task.ID, tuesday.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, moved.Notified)
	assert.True(t, moved.Due.Equal(tuesday.Add(2*time.Hour)))

	_, err = svc.EditDue(ctx, "missing", tuesday)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestSnooze(t *testing.T) {
	store := newStore(t)
	svc := service.NewTaskService(store)
	c := &clock{now: tuesday.Add(-time.Hour)}
	svc.Now = c.Now
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, service.TaskInput{Title: "Stand up", Due: tuesday})
	require.NoError(t, err)

	snoozed, err := svc.Snooze(ctx, task.ID, 10)
	require.NoError(t, err)
	assert.True(t, snoozed.Due.Equal(tuesday.Add(10*time.Minute)))

	// Overdue: still counted from the current due, not from now.
	c.now = tuesday.Add(time.Hour)
	_, err = store.MarkNotified(ctx, task.ID, snoozed.Due)
	require.NoError(t, err)
	snoozed, err = svc.Snooze(ctx, task.ID, 5)
	require.NoError(t, err)
	assert.True(t, snoozed.Due.Equal(tuesday.Add(15*time.Minute)))
	assert.False(t, snoozed.Notified)

	_, err = svc.Snooze(ctx, task.ID, 0)
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = store.UpdateTask(ctx, task.ID, func(t *model.Task) error { t.Done = true; return nil })
	require.NoError(t, err)
	_, err = svc.Snooze(ctx, task.ID, 5)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestDeleteTask(t *testing.T) {
	svc := service.NewTaskService(newStore(t))
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, service.TaskInput{Title: "x", Due: tuesday})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTask(ctx, task.ID))

	_, err = svc.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteTask(ctx, task.ID), service.ErrNotFound)
}

func TestCategoryService_List(t *testing.T) {
	store := newStore(t)
	tasks := service.NewTaskService(store)
	ctx := context.Background()

	for _, in := range []service.TaskInput{
		{Owner: "alice", Title: "a", Category: "Work", Due: tuesday},
		{Owner: "alice", Title: "b", Category: "work", Due: tuesday},
		{Owner: "alice", Title: "c", Due: tuesday},
		{Owner: "bob", Title: "d", Category: "Home", Due: tuesday},
	} {
		_, err := tasks.CreateTask(ctx, in)
		require.NoError(t, err)
	}

	stats, err := service.NewCategoryService(store).List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, model.DefaultCategory, stats[0].Name)
	assert.Equal(t, 1, stats[0].Open)
	assert.Equal(t, 2, stats[1].Open)
}

func TestResolveID_ScopedToOwner(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	for _, task := range []model.Task{
		{ID: "abc123", Owner: "alice", Title: "a", Due: tuesday},
		{ID: "abd456", Owner: "alice", Title: "b", Due: tuesday},
		{ID: "bob-1", Owner: "bob", Title: "c", Due: tuesday},
	} {
		require.NoError(t, store.UpsertTask(ctx, task))
	}
	svc := service.NewTaskService(store)

	id, err := svc.ResolveID(ctx, "alice", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	id, err = svc.ResolveID(ctx, "alice", "abd")
	require.NoError(t, err)
	assert.Equal(t, "abd456", id)

	_, err = svc.ResolveID(ctx, "alice", "ab")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.ResolveID(ctx, "alice", "bob-1")
	assert.ErrorIs(t, err, service.ErrNotFound, "another owner's full id does not resolve")

	_, err = svc.GetOwned(ctx, "alice", "bob-1")
	assert.ErrorIs(t, err, service.ErrNotFound)
	task, err := svc.GetOwned(ctx, "bob", "bob-1")
	require.NoError(t, err)
	assert.Equal(t, "c", task.Title)
}
