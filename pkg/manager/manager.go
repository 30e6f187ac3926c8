package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Nativu5/netpulse/pkg/config"
	"github.com/Nativu5/netpulse/pkg/domain"
	"github.com/Nativu5/netpulse/pkg/queue"
	"github.com/Nativu5/netpulse/pkg/sched"
	"github.com/Nativu5/netpulse/pkg/store"
	"github.com/Nativu5/netpulse/pkg/telemetry"
)

// Manager dispatches device jobs onto the pinned-worker fleet. A
// device host is scheduled once; every later job for it rides the
// existing pin. Scheduling itself is delegated to the sched facade,
// publishing to the node queues happens through the decision binder.
type Manager struct {
	store   store.Store
	queue   queue.Queue
	sched   *sched.Scheduler
	cfg     *config.Config
	logger  telemetry.Logger
	metrics telemetry.Metrics

	// pending carries the full job between Dispatch and the binder's
	// publish callback, which only sees (task id, node id).
	pending sync.Map // domain.JobID -> *domain.Job
}

func New(st store.Store, q queue.Queue, cfg *config.Config, logger telemetry.Logger, metrics telemetry.Metrics) (*Manager, error) {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}

	policy, err := sched.NewPolicy(cfg.Worker.Scheduler, sched.Options{
		WeightPerturbation: cfg.Worker.WeightPerturbation,
	})
	if err != nil {
		return nil, err
	}

	m := &Manager{
		store:   st,
		queue:   q,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
	m.sched = sched.New(st, policy, sched.PublishFunc(m.publish), cfg.Worker.BindRetries, logger, metrics)

	return m, nil
}

// publish runs inside the decision binder, after the slot on nodeID
// has been claimed. Any error here makes the binder release the slot.
func (m *Manager) publish(ctx context.Context, taskID domain.JobID, nodeID domain.NodeID) error {
	val, ok := m.pending.Load(taskID)
	if !ok {
		return fmt.Errorf("no pending job for task %s", taskID)
	}
	job := val.(*domain.Job)

	job.NodeID = nodeID
	job.Queue = m.cfg.NodeQueueName(string(nodeID))
	job.Status = domain.JobStatusQueued
	job.EnqueuedAt = time.Now()

	if err := m.store.SetPin(ctx, job.Request.Host, nodeID); err != nil {
		return err
	}
	if err := m.store.SaveJob(ctx, job); err != nil {
		return err
	}
	if err := m.queue.Enqueue(ctx, job.Queue, job); err != nil {
		return err
	}

	return nil
}

// Dispatch places one job: on the host's pinned node when the pin is
// still valid, through the scheduler otherwise.
func (m *Manager) Dispatch(ctx context.Context, req *domain.JobRequest) (*domain.Job, error) {
	if req.Host == "" {
		return nil, fmt.Errorf("job request has no device host")
	}
	if req.ID == "" {
		req.ID = domain.JobID(uuid.NewString())
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	job := &domain.Job{Request: *req}

	if node, ok := m.pinnedNode(ctx, req.Host); ok {
		job.NodeID = node.ID
		job.Queue = m.cfg.NodeQueueName(string(node.ID))
		job.Status = domain.JobStatusQueued
		job.EnqueuedAt = time.Now()

		if err := m.store.SaveJob(ctx, job); err != nil {
			return nil, fmt.Errorf("%w: %w", sched.ErrStoreUnavailable, err)
		}
		if err := m.queue.Enqueue(ctx, job.Queue, job); err != nil {
			return nil, fmt.Errorf("%w: %w", sched.ErrStoreUnavailable, err)
		}

		m.metrics.IncCounter("netpulse_dispatch_total", 1,
			telemetry.Label{Key: "path", Value: "pinned"})
		m.logger.Debug(ctx, "job rides existing pin", map[string]any{
			"job_id": req.ID, "host": req.Host, "node_id": node.ID,
		})
		return job, nil
	}

	m.pending.Store(req.ID, job)
	defer m.pending.Delete(req.ID)

	if _, err := m.sched.Schedule(ctx, req.Task()); err != nil {
		return nil, err
	}

	m.metrics.IncCounter("netpulse_dispatch_total", 1,
		telemetry.Label{Key: "path", Value: "scheduled"})
	return job, nil
}

// pinnedNode resolves a host's pin to a live node, clearing pins that
// point at dead or vanished nodes.
func (m *Manager) pinnedNode(ctx context.Context, host string) (*domain.WorkerNode, bool) {
	pin, err := m.store.GetPin(ctx, host)
	if err != nil || pin == "" {
		return nil, false
	}

	node, err := m.store.GetNode(ctx, pin)
	if err != nil {
		if errors.Is(err, store.ErrNodeNotFound) {
			_ = m.store.ClearPin(ctx, host)
		}
		return nil, false
	}
	if !node.Alive {
		return nil, false
	}

	return node, true
}

// DispatchBatch places many single-host requests in one pass. Hosts
// with live pins ride them; the rest go through the configured
// policy's batch selection against one snapshot, falling back to
// per-task scheduling for placements that lose their bind race.
func (m *Manager) DispatchBatch(ctx context.Context, reqs []*domain.JobRequest) ([]*domain.Job, error) {
	jobs := make([]*domain.Job, 0, len(reqs))

	var unpinned []*domain.JobRequest
	for _, req := range reqs {
		if req.ID == "" {
			req.ID = domain.JobID(uuid.NewString())
		}
		if req.CreatedAt.IsZero() {
			req.CreatedAt = time.Now()
		}

		if node, ok := m.pinnedNode(ctx, req.Host); ok {
			job, err := m.enqueueOnNode(ctx, req, node.ID)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
			continue
		}
		unpinned = append(unpinned, req)
	}

	if len(unpinned) == 0 {
		return jobs, nil
	}

	view, err := sched.Snapshot(ctx, m.store)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot: %w", sched.ErrStoreUnavailable, err)
	}

	hosts := make([]string, len(unpinned))
	for i, req := range unpinned {
		hosts[i] = req.Host
	}

	alive := sched.FilterAlive(view.Nodes, domain.Task{})
	placements, err := m.sched.Policy().SelectBatch(sched.ClusterView{Nodes: alive}, hosts)
	if err != nil {
		return nil, err
	}

	for i, req := range unpinned {
		outcome, err := m.store.TryIncrementLoad(ctx, placements[i].ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", sched.ErrStoreUnavailable, err)
		}
		if outcome != domain.IncrementOK {
			// Lost the slot between snapshot and bind; reschedule this
			// host on its own.
			job, err := m.Dispatch(ctx, req)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
			continue
		}

		if err := m.store.SetPin(ctx, req.Host, placements[i].ID); err != nil {
			return nil, fmt.Errorf("%w: %w", sched.ErrStoreUnavailable, err)
		}
		job, err := m.enqueueOnNode(ctx, req, placements[i].ID)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

func (m *Manager) enqueueOnNode(ctx context.Context, req *domain.JobRequest, nodeID domain.NodeID) (*domain.Job, error) {
	job := &domain.Job{
		Request:    *req,
		NodeID:     nodeID,
		Queue:      m.cfg.NodeQueueName(string(nodeID)),
		Status:     domain.JobStatusQueued,
		EnqueuedAt: time.Now(),
	}

	if err := m.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("%w: %w", sched.ErrStoreUnavailable, err)
	}
	if err := m.queue.Enqueue(ctx, job.Queue, job); err != nil {
		return nil, fmt.Errorf("%w: %w", sched.ErrStoreUnavailable, err)
	}
	return job, nil
}

// GetJob returns the stored job record.
func (m *Manager) GetJob(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	return m.store.GetJob(ctx, id)
}

// ListNodes returns the current fleet snapshot.
func (m *Manager) ListNodes(ctx context.Context) ([]domain.WorkerNode, error) {
	return m.store.ListNodes(ctx)
}

// DeleteNode force-cleans a node that died without draining: its
// pins, its queue and its record. Jobs already on the queue are
// dropped; their devices re-schedule on next dispatch.
func (m *Manager) DeleteNode(ctx context.Context, id domain.NodeID) error {
	cleared, err := m.store.ClearPinsForNode(ctx, id)
	if err != nil {
		return err
	}
	if err := m.queue.Purge(ctx, m.cfg.NodeQueueName(string(id))); err != nil {
		return err
	}
	if err := m.store.RemoveNode(ctx, id); err != nil {
		return err
	}

	m.logger.Info(ctx, "node force-deleted", map[string]any{
		"node_id": id, "pins_cleared": cleared,
	})
	return nil
}
