package store

import (
	"context"
	"errors"
	"time"

	"github.com/Nativu5/netpulse/pkg/domain"
)

const (
	// NodeTTL is the maximum heartbeat age before a node is reported
	// dead to the scheduler.
	NodeTTL = 30 * time.Second

	// nodeRetention keeps dead node records around for operators a
	// while longer before Redis expires them.
	nodeRetention = 3 * NodeTTL
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrJobNotFound  = errors.New("job not found")
)

// HeartbeatPayload is what worker agents send periodically. The
// node's Load only seeds a fresh record; after that the store's own
// counter is authoritative for scheduling.
type HeartbeatPayload struct {
	Node domain.WorkerNode `json:"node"`
	Time time.Time         `json:"time"`
}

// Store is the single source of truth for fleet state. All durable
// scheduler-relevant state lives here; the scheduler process caches
// nothing across attempts.
type Store interface {
	// Fleet view
	ListNodes(ctx context.Context) ([]domain.WorkerNode, error)
	GetNode(ctx context.Context, id domain.NodeID) (*domain.WorkerNode, error)

	// Agent lifecycle
	UpdateHeartbeat(ctx context.Context, payload HeartbeatPayload) error
	RemoveNode(ctx context.Context, id domain.NodeID) error

	// Binding primitives. TryIncrementLoad is the atomic bounded
	// increment the decision binder relies on; a non-nil error is
	// transient.
	TryIncrementLoad(ctx context.Context, id domain.NodeID) (domain.IncrementOutcome, error)
	DecrementLoad(ctx context.Context, id domain.NodeID) error

	// Host pinning. A device host maps to at most one node; GetPin
	// returns "" when the host is unpinned.
	GetPin(ctx context.Context, host string) (domain.NodeID, error)
	SetPin(ctx context.Context, host string, id domain.NodeID) error
	ClearPin(ctx context.Context, host string) error
	ClearPinsForNode(ctx context.Context, id domain.NodeID) (int, error)

	// Job persistence
	SaveJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id domain.JobID) (*domain.Job, error)
}
