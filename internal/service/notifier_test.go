package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todozen/internal/model"
	"todozen/internal/repository"
	"todozen/internal/service"
)

type recordingSink struct {
	mu     sync.Mutex
	events []service.DueEvent
	err    error
}

func (s *recordingSink) Notify(_ context.Context, ev service.DueEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Task.ID)
	}
	return out
}

func newNotifier(store service.TaskStore, sink service.Sink, c *clock) *service.Notifier {
	n := service.NewNotifier(store, sink, service.NotifierConfig{Grace: time.Minute}, discardLogger())
	n.Now = c.Now
	return n
}

func put(t *testing.T, store *repository.Store, id string, due time.Time) {
	t.Helper()
	require.NoError(t, store.UpsertTask(context.Background(), model.Task{
		ID: id, Owner: "alice", Title: id, Due: due, Created: due.Add(-time.Hour), Recurrence: model.RecurrenceNone,
	}))
}

func TestNotifier_FiresOncePerOccurrence(t *testing.T) {
	store := newStore(t)
	sink := &recordingSink{}
	c := &clock{now: tuesday.Add(20 * time.Second)}
	n := newNotifier(store, sink, c)
	ctx := context.Background()

	put(t, store, "due", tuesday)
	put(t, store, "later", tuesday.Add(time.Hour))

	for i := 0; i < 5; i++ {
		_, err := n.Pass(ctx)
		require.NoError(t, err)
		c.Advance(5 * time.Second)
	}
	assert.Equal(t, []string{"due"}, sink.ids())

	got, err := store.GetTask(ctx, "due")
	require.NoError(t, err)
	assert.True(t, got.Notified)
	assert.True(t, sink.events[0].Task.Notified)
}

func TestNotifier_OnePassHandlesEveryDueTask(t *testing.T) {
	store := newStore(t)
	sink := &recordingSink{}
	c := &clock{now: tuesday.Add(30 * time.Second)}
	n := newNotifier(store, sink, c)

	put(t, store, "a", tuesday)
	put(t, store, "b", tuesday.Add(10*time.Second))
	put(t, store, "c", tuesday.Add(30*time.Second))

	fired, err := n.Pass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, fired)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, sink.ids())
}

func TestNotifier_Window(t *testing.T) {
	store := newStore(t)
	sink := &recordingSink{}
	c := &clock{now: tuesday}
	n := newNotifier(store, sink, c)

	put(t, store, "stale", tuesday.Add(-2*time.Minute))
	put(t, store, "future", tuesday.Add(time.Second))

	fired, err := n.Pass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fired)

	assert.True(t, n.InWindow(tuesday.Add(-time.Minute), tuesday))
	assert.True(t, n.InWindow(tuesday, tuesday))
	assert.False(t, n.InWindow(time.Time{}, tuesday))
}

func TestNotifier_ToggleUndoFiresAgain(t *testing.T) {
	store := newStore(t)
	sink := &recordingSink{}
	c := &clock{now: tuesday.Add(10 * time.Second)}
	n := newNotifier(store, sink, c)
	completion := service.NewCompletionService(store, store, service.DefaultRewardPolicy(), discardLogger())
	completion.Now = c.Now
	ctx := context.Background()

	put(t, store, "t", tuesday)
	_, err := n.Pass(ctx)
	require.NoError(t, err)

	_, err = completion.Toggle(ctx, "t")
	require.NoError(t, err)
	_, err = n.Pass(ctx)
	require.NoError(t, err)

	_, err = completion.Toggle(ctx, "t")
	require.NoError(t, err)
	_, err = n.Pass(ctx)
	require.NoError(t, err)
	_, err = n.Pass(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"t", "t"}, sink.ids())
}

func TestNotifier_SkipsUnparsableDue(t *testing.T) {
	store := newStore(t)
	sink := &recordingSink{}
	c := &clock{now: tuesday}
	n := newNotifier(store, sink, c)

	require.NoError(t, store.UpsertTask(context.Background(), model.Task{ID: "nodue", Owner: "alice", Title: "x"}))
	put(t, store, "ok", tuesday)

	fired, err := n.Pass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, []string{"ok"}, sink.ids())
}

func TestNotifier_SinkFailureDoesNotAbortPass(t *testing.T) {
	store := newStore(t)
	sink := &recordingSink{err: errors.New("chat unreachable")}
	c := &clock{now: tuesday}
	n := newNotifier(store, sink, c)

	put(t, store, "a", tuesday)
	put(t, store, "b", tuesday)

	fired, err := n.Pass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fired)

	// Marked before emitting: no retry on the next pass.
	fired, err = n.Pass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fired)
}

func TestNotifier_PanickingSinkIsIsolated(t *testing.T) {
	store := newStore(t)
	calls := 0
	sink := service.SinkFunc(func(context.Context, service.DueEvent) error {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return nil
	})
	c := &clock{now: tuesday}
	n := newNotifier(store, sink, c)

	put(t, store, "a", tuesday)
	put(t, store, "b", tuesday)

	_, err := n.Pass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestNotifier_CancelledContextStopsPass(t *testing.T) {
	store := newStore(t)
	sink := &recordingSink{}
	c := &clock{now: tuesday}
	n := newNotifier(store, sink, c)
	put(t, store, "a", tuesday)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := n.Pass(ctx)
	assert.Error(t, err)
	assert.Empty(t, sink.ids())
}

func TestMultiSinkAndChanSink(t *testing.T) {
	ch := make(chan service.DueEvent, 1)
	failing := service.SinkFunc(func(context.Context, service.DueEvent) error { return errors.New("down") })
	multi := service.MultiSink{service.ChanSink(ch), failing, service.LogSink{Logger: discardLogger()}}

	err := multi.Notify(context.Background(), service.DueEvent{Task: model.Task{ID: "x"}})
	assert.EqualError(t, err, "down")
	assert.Equal(t, "x", (<-ch).Task.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, service.ChanSink(make(chan service.DueEvent)).Notify(ctx, service.DueEvent{}), context.Canceled)
}
