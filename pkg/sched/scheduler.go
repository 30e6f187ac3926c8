package sched

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nativu5/netpulse/pkg/domain"
	"github.com/Nativu5/netpulse/pkg/telemetry"
)

// Store is the slice of the cluster store the scheduler consumes.
type Store interface {
	NodeLister
	LoadIncrementer
}

// Scheduler is the per-task coordinator: snapshot, filter, policy,
// bind. It is stateless and safe for concurrent use; all mutable
// cluster state lives behind the store.
type Scheduler struct {
	store       Store
	policy      Policy
	binder      *Binder
	bindRetries int
	logger      telemetry.Logger
	metrics     telemetry.Metrics
}

// New wires a Scheduler. queue may be nil when the caller publishes
// assignments itself after Schedule returns.
func New(store Store, policy Policy, queue AssignmentQueue, bindRetries int, logger telemetry.Logger, metrics telemetry.Metrics) *Scheduler {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Scheduler{
		store:       store,
		policy:      policy,
		binder:      &Binder{Store: store, Queue: queue},
		bindRetries: bindRetries,
		logger:      logger,
		metrics:     metrics,
	}
}

// Policy exposes the configured policy, e.g. for batch dispatch.
func (s *Scheduler) Policy() Policy { return s.policy }

// Schedule selects and binds exactly one node for the task. A lost
// bind race re-runs the whole attempt (fresh snapshot included) up to
// bind_retries extra times, so the store's increment primitive is
// invoked at most bindRetries+1 times per call.
func (s *Scheduler) Schedule(ctx context.Context, task domain.Task) (domain.Decision, error) {
	var decision domain.Decision

	attempts := 0
	for {
		attempts++

		if err := ctx.Err(); err != nil {
			return domain.Decision{}, err
		}

		d, err := s.attempt(ctx, task)
		if err == nil {
			decision = d
			break
		}

		if errors.Is(err, errBindRace) {
			if attempts > s.bindRetries {
				s.observe(task, "capacity_exhausted", attempts)
				return domain.Decision{}, fmt.Errorf("bind lost %d races for task %s: %w", attempts, task.ID, ErrNoCapacity)
			}
			s.logger.Debug(ctx, "lost bind race, rescheduling", map[string]any{
				"task_id": task.ID,
				"attempt": attempts,
			})
			continue
		}

		s.observe(task, outcomeLabel(err), attempts)
		return domain.Decision{}, err
	}

	s.observe(task, "bound", attempts)
	s.logger.Info(ctx, "task bound", map[string]any{
		"task_id":            task.ID,
		"node_id":            decision.NodeID,
		"policy":             decision.PolicyName,
		"observed_remaining": decision.ObservedRemaining,
		"attempts":           attempts,
	})

	return decision, nil
}

// attempt runs one snapshot→filter→select→bind pass.
func (s *Scheduler) attempt(ctx context.Context, task domain.Task) (domain.Decision, error) {
	view, err := Snapshot(ctx, s.store)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Decision{}, ctx.Err()
		}
		return domain.Decision{}, fmt.Errorf("%w: snapshot: %w", ErrStoreUnavailable, err)
	}

	if len(view.Nodes) == 0 {
		return domain.Decision{}, fmt.Errorf("empty fleet: %w", ErrNoCapacity)
	}

	alive := FilterAlive(view.Nodes, task)
	if len(alive) == 0 {
		return domain.Decision{}, fmt.Errorf("task %s: %w", task.ID, ErrNoEligibleNode)
	}

	eligible := FilterCapacity(alive)
	node, err := s.policy.Select(ClusterView{Nodes: eligible}, task)
	if err != nil {
		return domain.Decision{}, err
	}

	decision := domain.Decision{
		TaskID:            task.ID,
		NodeID:            node.ID,
		NodeHostname:      node.Hostname,
		Queue:             node.Queue,
		PolicyName:        s.policy.Name(),
		ObservedRemaining: node.Remaining(),
	}

	if err := s.binder.Bind(ctx, decision); err != nil {
		if ctx.Err() != nil {
			return domain.Decision{}, ctx.Err()
		}
		return domain.Decision{}, err
	}

	return decision, nil
}

func (s *Scheduler) observe(task domain.Task, outcome string, attempts int) {
	s.metrics.IncCounter("netpulse_scheduler_decisions_total", 1,
		telemetry.Label{Key: "policy", Value: s.policy.Name()},
		telemetry.Label{Key: "outcome", Value: outcome},
	)
	s.metrics.ObserveHistogram("netpulse_scheduler_bind_attempts", float64(attempts),
		telemetry.Label{Key: "policy", Value: s.policy.Name()},
	)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrNoEligibleNode):
		return "no_eligible_node"
	case errors.Is(err, ErrNoCapacity):
		return "no_capacity"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
