// Package checkpoint persists per-(group, step) snapshots of pipeline output
// so every step is independently re-runnable.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/cinedata/filmset-cli/internal/model"
)

// ErrNotFound is returned by Load when no checkpoint exists for the key.
// Callers use it to decide whether to recompute; it is not a failure.
var ErrNotFound = errors.New("checkpoint: not found")

// Key identifies one checkpoint.
type Key struct {
	Group     string
	Step      model.Step
	UpdatedAt time.Time
}

// Store persists checkpoints keyed by (group, step). Save must be atomic from
// the caller's view: a partially written checkpoint is never loadable.
// Checkpoints are independent; no cross-key transactionality is offered.
type Store interface {
	Save(ctx context.Context, group string, step model.Step, v any) error
	Load(ctx context.Context, group string, step model.Step, out any) error
	Exists(ctx context.Context, group string, step model.Step) (bool, error)
	Delete(ctx context.Context, group string, step model.Step) error
	List(ctx context.Context) ([]Key, error)

	Migrate(ctx context.Context) error
	Close() error
}
