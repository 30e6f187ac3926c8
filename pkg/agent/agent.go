package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"

	"github.com/Nativu5/netpulse/pkg/domain"
	"github.com/Nativu5/netpulse/pkg/queue"
	"github.com/Nativu5/netpulse/pkg/store"
	"github.com/Nativu5/netpulse/pkg/telemetry"
	"github.com/Nativu5/netpulse/pkg/webhook"
)

// Executor runs one device operation. Implementations wrap the actual
// device drivers; the agent treats the payload as opaque.
type Executor interface {
	Execute(ctx context.Context, job *domain.Job) (*domain.JobResult, error)
}

// EchoExecutor is the built-in executor for development setups: it
// reflects the request back as the result.
type EchoExecutor struct{}

func (EchoExecutor) Execute(ctx context.Context, job *domain.Job) (*domain.JobResult, error) {
	retval, err := json.Marshal(map[string]any{
		"driver":  job.Request.Driver.Name,
		"host":    job.Request.Host,
		"command": job.Request.Command,
	})
	if err != nil {
		return nil, err
	}
	return &domain.JobResult{Retval: retval}, nil
}

// Agent is the per-node worker runtime: it announces the node with
// periodic heartbeats, consumes the node's queue and reports results.
type Agent struct {
	Node              domain.WorkerNode
	Store             store.Store
	Queue             queue.Queue
	Executor          Executor
	Webhooks          *webhook.Caller
	Logger            telemetry.Logger
	Metrics           telemetry.Metrics
	HeartbeatInterval time.Duration
	JobTimeout        time.Duration
}

// Run drives both loops until the context dies, then deregisters the
// node so the scheduler stops seeing it immediately instead of
// waiting out the heartbeat TTL.
func (a *Agent) Run(ctx context.Context) error {
	if a.Logger == nil {
		a.Logger = telemetry.NewNoopLogger()
	}
	if a.Metrics == nil {
		a.Metrics = telemetry.NewNoopMetrics()
	}
	if a.Executor == nil {
		a.Executor = EchoExecutor{}
	}

	a.Logger.Info(ctx, "agent starting", map[string]any{
		"node_id": a.Node.ID, "capacity": a.Node.Capacity, "queue": a.Node.Queue,
	})

	if err := a.heartbeat(ctx); err != nil {
		return fmt.Errorf("initial heartbeat failed: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.heartbeatLoop(ctx) })
	g.Go(func() error { return a.consumeLoop(ctx) })

	err := g.Wait()
	a.drain()
	return err
}

func (a *Agent) heartbeatLoop(ctx context.Context) error {
	interval := a.HeartbeatInterval
	if interval <= 0 {
		interval = store.NodeTTL / 3
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.heartbeat(ctx); err != nil {
				a.Logger.Error(ctx, "heartbeat failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

func (a *Agent) heartbeat(ctx context.Context) error {
	node := a.Node

	if vm, err := mem.VirtualMemory(); err == nil {
		if node.Labels == nil {
			node.Labels = make(map[string]string)
		}
		node.Labels["mem_available_mb"] = fmt.Sprintf("%d", vm.Available/(1<<20))
		a.Metrics.SetGauge("netpulse_agent_mem_available_bytes", float64(vm.Available),
			telemetry.Label{Key: "node", Value: string(node.ID)})
	}

	return a.Store.UpdateHeartbeat(ctx, store.HeartbeatPayload{
		Node: node,
		Time: time.Now(),
	})
}

func (a *Agent) consumeLoop(ctx context.Context) error {
	for {
		job, err := a.Queue.Dequeue(ctx, a.Node.Queue)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.Logger.Error(ctx, "dequeue failed", map[string]any{"error": err.Error()})
			time.Sleep(time.Second)
			continue
		}

		a.runJob(ctx, job)
	}
}

func (a *Agent) runJob(ctx context.Context, job *domain.Job) {
	start := time.Now()

	job.Status = domain.JobStatusStarted
	job.StartedAt = start
	if err := a.Store.SaveJob(ctx, job); err != nil {
		a.Logger.Error(ctx, "failed to mark job started", map[string]any{
			"job_id": job.Request.ID, "error": err.Error(),
		})
	}

	execCtx := ctx
	if a.JobTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, a.JobTimeout)
		defer cancel()
	}

	result, err := a.Executor.Execute(execCtx, job)
	job.FinishedAt = time.Now()
	if err != nil {
		job.Status = domain.JobStatusFailed
		job.Result = &domain.JobResult{Error: err.Error()}
	} else {
		job.Status = domain.JobStatusFinished
		job.Result = result
	}

	if err := a.Store.SaveJob(ctx, job); err != nil {
		a.Logger.Error(ctx, "failed to save job result", map[string]any{
			"job_id": job.Request.ID, "error": err.Error(),
		})
	}

	a.Metrics.IncCounter("netpulse_agent_jobs_total", 1,
		telemetry.Label{Key: "status", Value: string(job.Status)})
	a.Metrics.ObserveHistogram("netpulse_agent_job_seconds", time.Since(start).Seconds(),
		telemetry.Label{Key: "driver", Value: job.Request.Driver.Name})

	if a.Webhooks != nil && job.Request.Webhook != nil {
		_ = a.Webhooks.Call(ctx, job.Request.Webhook, webhook.Payload{
			ID:     job.Request.ID,
			Host:   job.Request.Host,
			Status: job.Status,
			Result: job.Result,
		})
	}
}

// drain deregisters the node and releases its pins. Runs on a fresh
// context because the agent's own context is already dead.
func (a *Agent) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := a.Store.ClearPinsForNode(ctx, a.Node.ID); err != nil {
		a.Logger.Error(ctx, "failed to clear pins on drain", map[string]any{"error": err.Error()})
	}
	if err := a.Store.RemoveNode(ctx, a.Node.ID); err != nil {
		a.Logger.Error(ctx, "failed to deregister on drain", map[string]any{"error": err.Error()})
		return
	}

	a.Logger.Info(ctx, "agent drained", map[string]any{"node_id": a.Node.ID})
}
