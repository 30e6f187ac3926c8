package queue

import (
	"context"
	"sync"

	"github.com/Nativu5/netpulse/pkg/domain"
)

// MemoryQueue is the in-process Queue used by tests and single-node
// development setups.
type MemoryQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queues map[string][]*domain.Job
	seen   map[domain.JobID]bool
}

func NewMemoryQueue() *MemoryQueue {
	q := &MemoryQueue{
		queues: make(map[string][]*domain.Job),
		seen:   make(map[domain.JobID]bool),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *MemoryQueue) Enqueue(ctx context.Context, queue string, job *domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.seen[job.Request.ID] {
		return nil
	}
	q.seen[job.Request.ID] = true

	q.queues[queue] = append(q.queues[queue], job)
	q.cond.Broadcast()
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, queue string) (*domain.Job, error) {
	// Wake waiters when the context dies so Wait cannot hang forever.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.queues[queue]) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		q.cond.Wait()
	}

	job := q.queues[queue][0]
	q.queues[queue] = q.queues[queue][1:]
	return job, nil
}

func (q *MemoryQueue) Len(ctx context.Context, queue string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[queue]), nil
}

func (q *MemoryQueue) Purge(ctx context.Context, queue string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, queue)
	return nil
}
