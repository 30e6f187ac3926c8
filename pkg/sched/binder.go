package sched

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nativu5/netpulse/pkg/domain"
)

// AssignmentQueue publishes a bound decision so the chosen worker
// picks the task up. Publish must be idempotent per task ID.
type AssignmentQueue interface {
	Publish(ctx context.Context, taskID domain.JobID, nodeID domain.NodeID) error
}

// PublishFunc adapts a function to AssignmentQueue.
type PublishFunc func(ctx context.Context, taskID domain.JobID, nodeID domain.NodeID) error

func (f PublishFunc) Publish(ctx context.Context, taskID domain.JobID, nodeID domain.NodeID) error {
	return f(ctx, taskID, nodeID)
}

// LoadDecrementer releases a slot. The binder uses it only to undo an
// increment whose publish failed; everything else is the store's job.
type LoadDecrementer interface {
	DecrementLoad(ctx context.Context, id domain.NodeID) error
}

// errBindRace reports that the chosen node's last slot was consumed
// (or the node disappeared) between snapshot and bind. The facade
// retries the whole attempt on it.
var errBindRace = errors.New("node capacity consumed before bind")

// Binder publishes decisions under the store's atomic bounded
// increment. The store is the sole authority on load; the binder
// never mutates node records itself.
type Binder struct {
	Store LoadIncrementer
	Queue AssignmentQueue
}

// Bind claims a slot on the decision's node and publishes the
// assignment. Returns errBindRace on a lost race, ErrStoreUnavailable
// (wrapped) on transient store failure.
func (b *Binder) Bind(ctx context.Context, d domain.Decision) error {
	outcome, err := b.Store.TryIncrementLoad(ctx, d.NodeID)
	if err != nil {
		return fmt.Errorf("%w: increment on %s: %w", ErrStoreUnavailable, d.NodeID, err)
	}

	switch outcome {
	case domain.IncrementAtCapacity, domain.IncrementNotFound:
		return errBindRace
	case domain.IncrementOK:
	}

	if b.Queue == nil {
		return nil
	}

	if err := b.Queue.Publish(ctx, d.TaskID, d.NodeID); err != nil {
		// The slot was claimed but nothing will consume it; release it
		// if the store lets us.
		if dec, ok := b.Store.(LoadDecrementer); ok {
			_ = dec.DecrementLoad(ctx, d.NodeID)
		}
		return fmt.Errorf("%w: publish %s: %w", ErrStoreUnavailable, d.TaskID, err)
	}

	return nil
}
