package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"todozen/internal/model"
	"todozen/internal/repository"
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

// LocalSource is the read side of the local store used for full passes.
type LocalSource interface {
	ListTasks(ctx context.Context, opts repository.ListOptions) ([]model.Task, error)
}

// ReconcilerConfig tunes the push queue.
type ReconcilerConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
}

// ReconcileResult counts the effects of one full pass.
type ReconcileResult struct {
	Pushed  int
	Deleted int
	Failed  int
}

type pushOp struct {
	task     model.Task
	deleteID string
}

// Reconciler pushes local changes to a Remote without ever blocking the
// writer, and prunes remote records that no longer exist locally.
type Reconciler struct {
	remote       Remote
	logger       *slog.Logger
	writeTimeout time.Duration

	queue   chan pushOp
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
	failing bool
}

func NewReconciler(remote Remote, cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if remote == nil {
		remote = Nop{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		remote:       remote,
		logger:       logger.With("component", "reconciler"),
		writeTimeout: cfg.WriteTimeout,
		queue:        make(chan pushOp, cfg.QueueSize),
	}
}

// Enabled reports whether pushes reach a real mirror.
func (r *Reconciler) Enabled() bool {
	return r.remote.Enabled()
}

// Start launches the push worker. It is a no-op for a disabled mirror.
func (r *Reconciler) Start() {
	if !r.remote.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true
	r.wg.Add(1)
	go r.worker()
}

// Stop closes the queue and waits for pending pushes until ctx expires.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("mirror queue not drained: %w", ctx.Err())
	}
	return r.remote.Close()
}

// TaskSaved implements repository.Observer.
func (r *Reconciler) TaskSaved(task model.Task) {
	r.enqueue(pushOp{task: task})
}

// TaskDeleted implements repository.Observer.
func (r *Reconciler) TaskDeleted(id string) {
	r.enqueue(pushOp{deleteID: id})
}

func (r *Reconciler) enqueue(op pushOp) {
	if !r.remote.Enabled() {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return
	}
	select {
	case r.queue <- op:
	default:
		r.logger.Warn("mirror queue full, dropping push", "task_id", op.id())
	}
}

func (op pushOp) id() string {
	if op.deleteID != "" {
		return op.deleteID
	}
	return op.task.ID
}

func (r *Reconciler) worker() {
	defer r.wg.Done()
	for op := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		var err error
		if op.deleteID != "" {
			err = r.remote.Delete(ctx, op.deleteID)
		} else {
			err = r.remote.Upsert(ctx, op.task)
		}
		cancel()
		r.observe(err, op.id())
	}
}

// observe logs the first failure of a streak at warn level and the rest at
// debug, so an unreachable mirror does not flood the log.
func (r *Reconciler) observe(err error, id string) {
	r.mu.Lock()
	wasFailing := r.failing
	r.failing = err != nil
	r.mu.Unlock()

	switch {
	case err != nil && !wasFailing:
		r.logger.Warn("mirror push failed", "task_id", id, "error", err)
	case err != nil:
		r.logger.Debug("mirror push failed", "task_id", id, "error", err)
	case wasFailing:
		r.logger.Info("mirror push recovered", "task_id", id)
	}
}

// Reconcile deletes remote records absent locally and re-pushes every local
// task. Individual record failures are counted, not returned. It works from a
// snapshot of the local store, so a task deleted mid-pass can be pushed again
// and is pruned by the next pass.
func (r *Reconciler) Reconcile(ctx context.Context, local LocalSource) (ReconcileResult, error) {
	var res ReconcileResult
	if !r.remote.Enabled() {
		return res, nil
	}

	tasks, err := local.ListTasks(ctx, repository.ListOptions{})
	if err != nil {
		return res, fmt.Errorf("list local tasks: %w", err)
	}

	listCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	remoteIDs, err := r.remote.ListIDs(listCtx)
	cancel()
	if err != nil {
		return res, fmt.Errorf("list remote ids: %w", err)
	}

	for _, id := range StaleIDs(tasks, remoteIDs) {
		if err := r.withTimeout(ctx, func(c context.Context) error { return r.remote.Delete(c, id) }); err != nil {
			res.Failed++
			r.logger.Debug("mirror prune failed", "task_id", id, "error", err)
			continue
		}
		res.Deleted++
	}

	for _, task := range tasks {
		task := task
		if err := r.withTimeout(ctx, func(c context.Context) error { return r.remote.Upsert(c, task) }); err != nil {
			res.Failed++
			r.logger.Debug("mirror push failed", "task_id", task.ID, "error", err)
			continue
		}
		res.Pushed++
	}

	r.logger.Info("mirror reconciled", "pushed", res.Pushed, "deleted", res.Deleted, "failed", res.Failed)
	return res, nil
}

func (r *Reconciler) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()
	return fn(c)
}

// StaleIDs returns the remote ids that have no local task, in remote order.
func StaleIDs(local []model.Task, remoteIDs []string) []string {
	localIDs := make(map[string]struct{}, len(local))
	for _, t := range local {
		localIDs[t.ID] = struct{}{}
	}
	var stale []string
	for _, id := range remoteIDs {
		if _, ok := localIDs[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}
