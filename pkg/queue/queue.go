package queue

import (
	"context"

	"github.com/Nativu5/netpulse/pkg/domain"
)

// Queue carries bound jobs to their assigned worker nodes. Each node
// consumes its own queue; Enqueue is idempotent per job ID so a
// retried publish after a transient failure cannot double-deliver.

type Queue interface {
	Enqueue(ctx context.Context, queue string, job *domain.Job) error
	Dequeue(ctx context.Context, queue string) (*domain.Job, error)
	Len(ctx context.Context, queue string) (int, error)
	Purge(ctx context.Context, queue string) error
}
