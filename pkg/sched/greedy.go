package sched

import (
	"sort"

	"github.com/Nativu5/netpulse/pkg/domain"
)

// GreedyPolicy is the deterministic "first available" strategy:
// always the lexicographically smallest hostname among nodes with
// room. Suited to single-node or strongly-affine deployments where
// filling the earliest node before touching the next is the point.
type GreedyPolicy struct{}

func (p *GreedyPolicy) Name() string { return PolicyGreedy }

func (p *GreedyPolicy) Select(view ClusterView, task domain.Task) (domain.WorkerNode, error) {
	var best domain.WorkerNode
	found := false
	for _, n := range available(view.Nodes) {
		if !found || n.Hostname < best.Hostname {
			best = n
			found = true
		}
	}
	if !found {
		return domain.WorkerNode{}, ErrNoCapacity
	}
	return best, nil
}

// SelectBatch fills the most-loaded nodes first, ties toward larger
// remaining capacity, then hostname. This does not minimize the number
// of nodes used.
func (p *GreedyPolicy) SelectBatch(view ClusterView, hosts []string) ([]domain.WorkerNode, error) {
	if len(hosts) == 0 {
		return nil, nil
	}

	nodes := available(view.Nodes)
	if totalRemaining(nodes) < len(hosts) {
		return nil, ErrNoCapacity
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Load != nodes[j].Load {
			return nodes[i].Load > nodes[j].Load
		}
		if nodes[i].Remaining() != nodes[j].Remaining() {
			return nodes[i].Remaining() > nodes[j].Remaining()
		}
		return nodes[i].Hostname < nodes[j].Hostname
	})

	result := make([]domain.WorkerNode, 0, len(hosts))
	remaining := len(hosts)
	for _, n := range nodes {
		if remaining <= 0 {
			break
		}
		assign := min(n.Remaining(), remaining)
		for range assign {
			result = append(result, n)
		}
		remaining -= assign
	}

	return result, nil
}
