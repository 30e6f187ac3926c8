package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nativu5/netpulse/pkg/config"
	"github.com/Nativu5/netpulse/pkg/domain"
	"github.com/Nativu5/netpulse/pkg/queue"
	"github.com/Nativu5/netpulse/pkg/sched"
	"github.com/Nativu5/netpulse/pkg/store"
)

func newTestManager(t *testing.T, scheduler string) (*Manager, *store.MemoryStore, *queue.MemoryQueue) {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Worker.Scheduler = scheduler

	st := store.NewMemoryStore()
	q := queue.NewMemoryQueue()

	m, err := New(st, q, cfg, nil, nil)
	require.NoError(t, err)
	return m, st, q
}

func addNode(t *testing.T, st *store.MemoryStore, id domain.NodeID, capacity int) {
	t.Helper()
	require.NoError(t, st.UpdateHeartbeat(context.Background(), store.HeartbeatPayload{
		Node: domain.WorkerNode{ID: id, Hostname: string(id), Capacity: capacity, Queue: "q:" + string(id)},
		Time: time.Now(),
	}))
}

func TestManager_Dispatch_SchedulesAndPins(t *testing.T) {
	m, st, q := newTestManager(t, sched.PolicyLeastLoad)
	ctx := context.Background()

	addNode(t, st, "node-1", 4)

	job, err := m.Dispatch(ctx, &domain.JobRequest{Host: "10.0.0.1", Driver: domain.DriverSpec{Name: "netmiko"}})
	require.NoError(t, err)

	assert.Equal(t, domain.NodeID("node-1"), job.NodeID)
	assert.Equal(t, domain.JobStatusQueued, job.Status)
	assert.NotEmpty(t, job.Request.ID)

	pin, err := st.GetPin(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, domain.NodeID("node-1"), pin)

	node, err := st.GetNode(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, 1, node.Load)

	n, err := q.Len(ctx, job.Queue)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := m.GetJob(ctx, job.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeID("node-1"), stored.NodeID)
}

func TestManager_Dispatch_ReusesPin(t *testing.T) {
	m, st, _ := newTestManager(t, sched.PolicyLeastLoad)
	ctx := context.Background()

	addNode(t, st, "node-1", 4)
	addNode(t, st, "node-2", 4)

	first, err := m.Dispatch(ctx, &domain.JobRequest{Host: "10.0.0.1"})
	require.NoError(t, err)
	second, err := m.Dispatch(ctx, &domain.JobRequest{Host: "10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, first.NodeID, second.NodeID)

	// The pin owns one slot however many jobs ride it.
	node, err := st.GetNode(ctx, first.NodeID)
	require.NoError(t, err)
	assert.Equal(t, 1, node.Load)
}

func TestManager_Dispatch_RepinsAfterNodeDeath(t *testing.T) {
	m, st, _ := newTestManager(t, sched.PolicyLeastLoad)
	ctx := context.Background()

	addNode(t, st, "node-1", 4)
	addNode(t, st, "node-2", 4)
	require.NoError(t, st.SetPin(ctx, "10.0.0.1", "node-1"))
	require.NoError(t, st.RemoveNode(ctx, "node-1"))

	job, err := m.Dispatch(ctx, &domain.JobRequest{Host: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, domain.NodeID("node-2"), job.NodeID)

	pin, err := st.GetPin(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, domain.NodeID("node-2"), pin)
}

func TestManager_Dispatch_EmptyFleet(t *testing.T) {
	m, _, _ := newTestManager(t, sched.PolicyGreedy)

	_, err := m.Dispatch(context.Background(), &domain.JobRequest{Host: "10.0.0.1"})
	assert.ErrorIs(t, err, sched.ErrNoCapacity)
}

func TestManager_Dispatch_RequiresHost(t *testing.T) {
	m, _, _ := newTestManager(t, sched.PolicyGreedy)

	_, err := m.Dispatch(context.Background(), &domain.JobRequest{})
	assert.Error(t, err)
}

func TestManager_Dispatch_UnmetRequirements(t *testing.T) {
	m, st, _ := newTestManager(t, sched.PolicyGreedy)
	addNode(t, st, "node-1", 4)

	_, err := m.Dispatch(context.Background(), &domain.JobRequest{
		Host:         "10.0.0.1",
		Requirements: []string{"pyeapi"},
	})
	assert.ErrorIs(t, err, sched.ErrNoEligibleNode)
}

func TestManager_DispatchBatch(t *testing.T) {
	m, st, _ := newTestManager(t, sched.PolicyLeastLoad)
	ctx := context.Background()

	addNode(t, st, "node-1", 2)
	addNode(t, st, "node-2", 2)
	require.NoError(t, st.SetPin(ctx, "10.0.0.9", "node-2"))

	reqs := []*domain.JobRequest{
		{Host: "10.0.0.9"}, // pinned
		{Host: "10.0.0.1"},
		{Host: "10.0.0.2"},
		{Host: "10.0.0.3"},
	}

	jobs, err := m.DispatchBatch(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, jobs, 4)

	assert.Equal(t, domain.NodeID("node-2"), jobs[0].NodeID)

	// Three unpinned hosts on four free slots; no node over capacity.
	loads := map[domain.NodeID]int{}
	for _, j := range jobs[1:] {
		loads[j.NodeID]++
	}
	for id, n := range loads {
		node, err := st.GetNode(ctx, id)
		require.NoError(t, err)
		assert.LessOrEqual(t, node.Load, node.Capacity)
		assert.Equal(t, n, node.Load)
	}
}

func TestManager_DispatchBatch_Insufficient(t *testing.T) {
	m, st, _ := newTestManager(t, sched.PolicyLeastLoad)
	addNode(t, st, "node-1", 1)

	_, err := m.DispatchBatch(context.Background(), []*domain.JobRequest{
		{Host: "10.0.0.1"}, {Host: "10.0.0.2"},
	})
	assert.ErrorIs(t, err, sched.ErrNoCapacity)
}

func TestManager_DeleteNode(t *testing.T) {
	m, st, q := newTestManager(t, sched.PolicyLeastLoad)
	ctx := context.Background()

	addNode(t, st, "node-1", 4)

	job, err := m.Dispatch(ctx, &domain.JobRequest{Host: "10.0.0.1"})
	require.NoError(t, err)

	require.NoError(t, m.DeleteNode(ctx, "node-1"))

	pin, err := st.GetPin(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Empty(t, pin)

	_, err = st.GetNode(ctx, "node-1")
	assert.ErrorIs(t, err, store.ErrNodeNotFound)

	n, err := q.Len(ctx, job.Queue)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestManager_UnknownPolicyIsFatal(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Worker.Scheduler = "first_fit"

	_, err = New(store.NewMemoryStore(), queue.NewMemoryQueue(), cfg, nil, nil)
	assert.ErrorIs(t, err, sched.ErrUnknownPolicy)
}
