package sched

import (
	"sort"

	"github.com/Nativu5/netpulse/pkg/domain"
)

// LeastLoadPolicy spreads work evenly. Selection order among nodes
// with room: least load, then largest remaining capacity, then
// smallest hostname. Fully deterministic.
type LeastLoadPolicy struct{}

func (p *LeastLoadPolicy) Name() string { return PolicyLeastLoad }

func (p *LeastLoadPolicy) Select(view ClusterView, task domain.Task) (domain.WorkerNode, error) {
	nodes := available(view.Nodes)
	if len(nodes) == 0 {
		return domain.WorkerNode{}, ErrNoCapacity
	}

	best := nodes[0]
	for _, n := range nodes[1:] {
		switch {
		case n.Load < best.Load:
			best = n
		case n.Load == best.Load && n.Remaining() > best.Remaining():
			best = n
		case n.Load == best.Load && n.Remaining() == best.Remaining() && n.Hostname < best.Hostname:
			best = n
		}
	}

	return best, nil
}

// SelectBatch fills the fleet level by level: all nodes at the lowest
// load first, largest remaining capacity ahead within a level.
func (p *LeastLoadPolicy) SelectBatch(view ClusterView, hosts []string) ([]domain.WorkerNode, error) {
	if len(hosts) == 0 {
		return nil, nil
	}

	nodes := available(view.Nodes)
	if totalRemaining(nodes) < len(hosts) {
		return nil, ErrNoCapacity
	}

	levels := groupByLoad(nodes)

	result := make([]domain.WorkerNode, 0, len(hosts))
	remaining := len(hosts)
	for _, level := range levels {
		if remaining <= 0 {
			break
		}
		sort.Slice(level, func(i, j int) bool {
			if level[i].Remaining() != level[j].Remaining() {
				return level[i].Remaining() > level[j].Remaining()
			}
			return level[i].Hostname < level[j].Hostname
		})
		for _, n := range level {
			if remaining <= 0 {
				break
			}
			assign := min(n.Remaining(), remaining)
			for range assign {
				result = append(result, n)
			}
			remaining -= assign
		}
	}

	return result, nil
}

// groupByLoad buckets nodes by current load, buckets ordered from
// least to most loaded.
func groupByLoad(nodes []domain.WorkerNode) [][]domain.WorkerNode {
	byLoad := make(map[int][]domain.WorkerNode)
	for _, n := range nodes {
		byLoad[n.Load] = append(byLoad[n.Load], n)
	}

	loads := make([]int, 0, len(byLoad))
	for load := range byLoad {
		loads = append(loads, load)
	}
	sort.Ints(loads)

	levels := make([][]domain.WorkerNode, 0, len(loads))
	for _, load := range loads {
		levels = append(levels, byLoad[load])
	}
	return levels
}
