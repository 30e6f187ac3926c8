package sched

import (
	"sort"

	"github.com/Nativu5/netpulse/pkg/domain"
)

// LeastLoadRandomPolicy has the same balance objective as least_load
// but randomizes the final pick among equally good candidates. When
// many schedulers decide simultaneously against a nearly-stale view,
// this spreads their choices instead of herding them onto one node.
type LeastLoadRandomPolicy struct{}

func (p *LeastLoadRandomPolicy) Name() string { return PolicyLeastLoadRandom }

func (p *LeastLoadRandomPolicy) Select(view ClusterView, task domain.Task) (domain.WorkerNode, error) {
	nodes := available(view.Nodes)
	if len(nodes) == 0 {
		return domain.WorkerNode{}, ErrNoCapacity
	}

	minLoad := nodes[0].Load
	for _, n := range nodes[1:] {
		if n.Load < minLoad {
			minLoad = n.Load
		}
	}

	var leastLoaded []domain.WorkerNode
	for _, n := range nodes {
		if n.Load == minLoad {
			leastLoaded = append(leastLoaded, n)
		}
	}

	maxRemaining := 0
	for _, n := range leastLoaded {
		if n.Remaining() > maxRemaining {
			maxRemaining = n.Remaining()
		}
	}

	var finalists []domain.WorkerNode
	for _, n := range leastLoaded {
		if n.Remaining() == maxRemaining {
			finalists = append(finalists, n)
		}
	}

	rng := newAttemptRand()
	return finalists[rng.IntN(len(finalists))], nil
}

// SelectBatch works level by level like least_load. Within a level it
// fills tiers of equal remaining capacity from the largest down,
// scattering hosts uniformly across the nodes of each tier.
func (p *LeastLoadRandomPolicy) SelectBatch(view ClusterView, hosts []string) ([]domain.WorkerNode, error) {
	if len(hosts) == 0 {
		return nil, nil
	}

	nodes := available(view.Nodes)
	if totalRemaining(nodes) < len(hosts) {
		return nil, ErrNoCapacity
	}

	type slot struct {
		node      domain.WorkerNode
		remaining int
	}

	rng := newAttemptRand()
	var levels [][]domain.WorkerNode
	for _, level := range groupByLoad(nodes) {
		sort.SliceStable(level, func(i, j int) bool { return level[i].Remaining() > level[j].Remaining() })
		for i, n := range level {
			if i == 0 || n.Remaining() != level[i-1].Remaining() {
				levels = append(levels, nil)
			}
			levels[len(levels)-1] = append(levels[len(levels)-1], n)
		}
	}

	result := make([]domain.WorkerNode, 0, len(hosts))
	remaining := len(hosts)
	for _, level := range levels {
		if remaining <= 0 {
			break
		}

		maxRemaining := 0
		for _, n := range level {
			if n.Remaining() > maxRemaining {
				maxRemaining = n.Remaining()
			}
		}

		var best []slot
		for _, n := range level {
			if n.Remaining() == maxRemaining {
				best = append(best, slot{node: n, remaining: n.Remaining()})
			}
		}

		levelCapacity := 0
		for _, s := range best {
			levelCapacity += s.remaining
		}

		toAssign := min(levelCapacity, remaining)
		for toAssign > 0 {
			i := rng.IntN(len(best))
			if best[i].remaining == 0 {
				best[i] = best[len(best)-1]
				best = best[:len(best)-1]
				continue
			}
			result = append(result, best[i].node)
			best[i].remaining--
			toAssign--
			remaining--
		}
	}

	return result, nil
}
