package mirror_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todozen/internal/mirror"
	"todozen/internal/model"
	"todozen/internal/repository"
)

type fakeRemote struct {
	mu      sync.Mutex
	records map[string]model.Task
	failAll bool
	block   chan struct{}
	closed  bool
}

func newFakeRemote(ids ...string) *fakeRemote {
	f := &fakeRemote{records: map[string]model.Task{}}
	for _, id := range ids {
		f.records[id] = model.Task{ID: id}
	}
	return f
}

func (f *fakeRemote) Enabled() bool { return true }

func (f *fakeRemote) Upsert(ctx context.Context, task model.Task) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("connection refused")
	}
	f.records[task.ID] = task
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("connection refused")
	}
	delete(f.records, id)
	return nil
}

func (f *fakeRemote) ListIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("connection refused")
	}
	ids := make([]string, 0, len(f.records))
	for id := range f.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeRemote) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRemote) ids() []string {
	ids, _ := f.ListIDs(context.Background())
	return ids
}

type staticSource []model.Task

func (s staticSource) ListTasks(context.Context, repository.ListOptions) ([]model.Task, error) {
	return s, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconcile_PrunesRemoteOnlyIDs(t *testing.T) {
	remote := newFakeRemote("A", "B", "C")
	r := mirror.NewReconciler(remote, mirror.ReconcilerConfig{}, discardLogger())

	res, err := r.Reconcile(context.Background(), staticSource{{ID: "A"}, {ID: "B"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, remote.ids())
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 2, res.Pushed)
	assert.Zero(t, res.Failed)
}

func TestReconcile_PushesLocalOnlyTasks(t *testing.T) {
	remote := newFakeRemote()
	r := mirror.NewReconciler(remote, mirror.ReconcilerConfig{}, discardLogger())

	_, err := r.Reconcile(context.Background(), staticSource{{ID: "A", Title: "local"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, remote.ids())
	assert.Equal(t, "local", remote.records["A"].Title)
}

func TestReconcile_RemoteFailureIsReported(t *testing.T) {
	remote := newFakeRemote("A")
	remote.failAll = true
	r := mirror.NewReconciler(remote, mirror.ReconcilerConfig{}, discardLogger())

	_, err := r.Reconcile(context.Background(), staticSource{{ID: "A"}})
	assert.Error(t, err)
}

func TestReconcile_DisabledMirrorIsNoop(t *testing.T) {
	r := mirror.NewReconciler(mirror.Nop{}, mirror.ReconcilerConfig{}, discardLogger())
	res, err := r.Reconcile(context.Background(), staticSource{{ID: "A"}})
	require.NoError(t, err)
	assert.Equal(t, mirror.ReconcileResult{}, res)
	assert.False(t, r.Enabled())

	r.Start()
	r.TaskSaved(model.Task{ID: "A"})
	require.NoError(t, r.Stop(context.Background()))
}

func TestReconciler_PushesObservedChanges(t *testing.T) {
	remote := newFakeRemote("gone")
	r := mirror.NewReconciler(remote, mirror.ReconcilerConfig{}, discardLogger())
	r.Start()

	r.TaskSaved(model.Task{ID: "A"})
	r.TaskSaved(model.Task{ID: "B"})
	r.TaskDeleted("gone")

	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, []string{"A", "B"}, remote.ids())
	assert.True(t, remote.closed)

	// Pushes after stop are ignored rather than panicking on a closed queue.
	r.TaskSaved(model.Task{ID: "C"})
	assert.Equal(t, []string{"A", "B"}, remote.ids())
}

func TestReconciler_SlowRemoteNeverBlocksWriter(t *testing.T) {
	remote := newFakeRemote()
	remote.block = make(chan struct{})
	r := mirror.NewReconciler(remote, mirror.ReconcilerConfig{QueueSize: 1, WriteTimeout: 50 * time.Millisecond}, discardLogger())
	r.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			r.TaskSaved(model.Task{ID: "A"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TaskSaved blocked on a slow mirror")
	}

	close(remote.block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
}

func TestReconciler_FailuresAreSwallowed(t *testing.T) {
	remote := newFakeRemote()
	remote.failAll = true
	r := mirror.NewReconciler(remote, mirror.ReconcilerConfig{}, discardLogger())
	r.Start()
	r.TaskSaved(model.Task{ID: "A"})
	require.NoError(t, r.Stop(context.Background()))
	assert.Empty(t, remote.records)
}

func TestStaleIDs(t *testing.T) {
	local := []model.Task{{ID: "A"}, {ID: "B"}}
	assert.Equal(t, []string{"C"}, mirror.StaleIDs(local, []string{"A", "B", "C"}))
	assert.Empty(t, mirror.StaleIDs(local, []string{"A"}))
	assert.Empty(t, mirror.StaleIDs(nil, nil))
}

func TestConnect_DisabledOrUnreachable(t *testing.T) {
	assert.False(t, mirror.Connect(context.Background(), "off", time.Second, discardLogger()).Enabled())
	assert.False(t, mirror.Connect(context.Background(), "", time.Second, discardLogger()).Enabled())

	// Nothing listens on port 1; the probe must give up within its timeout.
	start := time.Now()
	remote := mirror.Connect(context.Background(), "postgres://todozen@127.0.0.1:1/todozen?sslmode=disable&connect_timeout=1", 500*time.Millisecond, discardLogger())
	assert.False(t, remote.Enabled())
	assert.Less(t, time.Since(start), 5*time.Second)
}
