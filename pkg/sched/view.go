package sched

import (
	"context"

	"github.com/Nativu5/netpulse/pkg/domain"
)

// ClusterView is a read-only snapshot of the fleet, owned by a single
// scheduling attempt. Per-node tuples are consistent; cross-node state
// may be slightly stale, which the binder's compare-and-set absorbs.
type ClusterView struct {
	Nodes []domain.WorkerNode
}

// NodeLister is the snapshot half of the store contract.
type NodeLister interface {
	ListNodes(ctx context.Context) ([]domain.WorkerNode, error)
}

// LoadIncrementer is the bind half: an atomic "increment load iff
// load < capacity" primitive. A non-nil error is transient; the
// outcome carries the store's verdict otherwise.
type LoadIncrementer interface {
	TryIncrementLoad(ctx context.Context, id domain.NodeID) (domain.IncrementOutcome, error)
}

// Snapshot captures a ClusterView from the store.
func Snapshot(ctx context.Context, store NodeLister) (ClusterView, error) {
	nodes, err := store.ListNodes(ctx)
	if err != nil {
		return ClusterView{}, err
	}
	return ClusterView{Nodes: nodes}, nil
}
