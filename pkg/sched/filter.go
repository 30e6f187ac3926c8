package sched

import "github.com/Nativu5/netpulse/pkg/domain"

// The two filter phases are kept separate so each can be asserted on
// its own: FilterAlive decides who may ever host the task, and
// FilterCapacity decides who has room right now.

// FilterAlive keeps alive nodes whose capability set covers the task's
// requirements.
func FilterAlive(nodes []domain.WorkerNode, task domain.Task) []domain.WorkerNode {
	var out []domain.WorkerNode
	for _, n := range nodes {
		if !n.Alive {
			continue
		}
		if !n.HasCapabilities(task.Requirements) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// FilterCapacity keeps nodes with at least one free slot.
func FilterCapacity(nodes []domain.WorkerNode) []domain.WorkerNode {
	var out []domain.WorkerNode
	for _, n := range nodes {
		if n.Remaining() > 0 {
			out = append(out, n)
		}
	}
	return out
}

// Eligible composes both phases over a view.
func Eligible(view ClusterView, task domain.Task) []domain.WorkerNode {
	return FilterCapacity(FilterAlive(view.Nodes, task))
}
