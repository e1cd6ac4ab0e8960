// Package mirror keeps a best-effort copy of the local task store in a
// remote database for cross-device visibility. Local state always wins and
// nothing flows back from the mirror.
package mirror

import (
	"context"

	"todozen/internal/model"
)

// Remote is a secondary task store. Implementations apply last-write-wins.
type Remote interface {
	// Enabled reports whether calls reach a real backend.
	Enabled() bool
	Upsert(ctx context.Context, task model.Task) error
	Delete(ctx context.Context, id string) error
	ListIDs(ctx context.Context) ([]string, error)
	Close() error
}

// Nop is the Remote used when no mirror is configured or reachable.
type Nop struct{}

func (Nop) Enabled() bool { return false }
func (Nop) Upsert(context.Context, model.Task) error { return nil }
func (Nop) Delete(context.Context, string) error { return nil }
func (Nop) ListIDs(context.Context) ([]string, error) { return nil, nil }
func (Nop) Close() error { return nil }

var _ Remote = Nop{}
