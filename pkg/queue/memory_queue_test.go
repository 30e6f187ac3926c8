package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nativu5/netpulse/pkg/domain"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "q1", testJob("j1")))
	require.NoError(t, q.Enqueue(ctx, "q1", testJob("j2")))

	first, err := q.Dequeue(ctx, "q1")
	require.NoError(t, err)
	second, err := q.Dequeue(ctx, "q1")
	require.NoError(t, err)

	assert.Equal(t, domain.JobID("j1"), first.Request.ID)
	assert.Equal(t, domain.JobID("j2"), second.Request.ID)
}

func TestMemoryQueue_Idempotent(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "q1", testJob("j1")))
	require.NoError(t, q.Enqueue(ctx, "q1", testJob("j1")))

	n, err := q.Len(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryQueue_BlockingDequeue(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	done := make(chan *domain.Job, 1)
	go func() {
		job, err := q.Dequeue(ctx, "q1")
		if err == nil {
			done <- job
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, "q1", testJob("j1")))

	select {
	case job := <-done:
		assert.Equal(t, domain.JobID("j1"), job.Request.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue never woke up")
	}
}

func TestMemoryQueue_CancelUnblocksDequeue(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx, "q1")
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue never observed cancellation")
	}
}
