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

func TestParseDue(t *testing.T) {
	now := time.Date(2025, 10, 14, 12, 30, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-10-20 08:15", time.Date(2025, 10, 20, 8, 15, 0, 0, time.UTC)},
		{"2025-10-20T08:15", time.Date(2025, 10, 20, 8, 15, 0, 0, time.UTC)},
		{"2025-10-20", time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)},
		{"2025-10-20T08:15:00+02:00", time.Date(2025, 10, 20, 6, 15, 0, 0, time.UTC)},
		{"18:00", time.Date(2025, 10, 14, 18, 0, 0, 0, time.UTC)},
		{"07:00", time.Date(2025, 10, 15, 7, 0, 0, 0, time.UTC)},
		{"+90m", time.Date(2025, 10, 14, 14, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := service.ParseDue(tc.in, now)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: got %s", tc.in, got)
	}

	for _, bad := range []string{"", "tomorrow", "+", "+-5m", "2025-13-01"} {
		_, err := service.ParseDue(bad, now)
		assert.ErrorIs(t, err, service.ErrInvalidInput, bad)
	}
}

func TestParseRecurrence(t *testing.T) {
	cases := []struct {
		in    string
		rec   model.Recurrence
		extra model.RecurrenceExtra
	}{
		{"", model.RecurrenceNone, nil},
		{"Daily", model.RecurrenceDaily, nil},
		{"monthly", model.RecurrenceMonthly, nil},
		{"every:3", model.RecurrenceCustom, model.EveryNDays{N: 3}},
		{"every:10d", model.RecurrenceCustom, model.EveryNDays{N: 10}},
		{"days:fri,tue,fri", model.RecurrenceCustom, model.Weekdays{Days: []int{1, 4}}},
		{"weekdays:0,6", model.RecurrenceCustom, model.Weekdays{Days: []int{0, 6}}},
	}
	for _, tc := range cases {
		rec, extra, err := service.ParseRecurrence(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.rec, rec, tc.in)
		assert.Equal(t, tc.extra, extra, tc.in)
	}

	for _, bad := range []string{"hourly", "every:0", "every:x", "days:", "days:funday"} {
		_, _, err := service.ParseRecurrence(bad)
		assert.ErrorIs(t, err, service.ErrInvalidInput, bad)
	}
}

func TestResolveID(t *testing.T) {
	store := newStore(t)
	svc := service.NewTaskService(store)
	ctx := context.Background()

	for _, id := range []string{"abc11111", "abc22222", "xyz33333"} {
		require.NoError(t, store.UpsertTask(ctx, model.Task{ID: id, Owner: "alice", Title: id, Due: tuesday}))
	}

	id, err := svc.ResolveID(ctx, "alice", "xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz33333", id)

	id, err = svc.ResolveID(ctx, "alice", "abc22222")
	require.NoError(t, err)
	assert.Equal(t, "abc22222", id)

	_, err = svc.ResolveID(ctx, "alice", "abc")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.ResolveID(ctx, "bob", "xyz")
	assert.ErrorIs(t, err, service.ErrNotFound)

	assert.Equal(t, "abc11111", service.ShortID("abc11111-rest"))
	assert.Equal(t, "ab", service.ShortID("ab"))
}
