package sched

import (
	"github.com/Nativu5/netpulse/pkg/domain"
)

// LoadWeightedRandomPolicy picks nodes with probability proportional
// to remaining² · (1 + ε·h(hostname)). Squaring biases strongly
// toward emptier nodes without forbidding partially-loaded ones; the
// hostname perturbation keeps two nodes with identical remaining from
// carrying identical weights across independent scheduler processes.
type LoadWeightedRandomPolicy struct {
	// Epsilon is the perturbation strength, in [0, 1). Configured via
	// worker.weight_perturbation.
	Epsilon float64
}

func (p *LoadWeightedRandomPolicy) Name() string { return PolicyLoadWeightedRandom }

func (p *LoadWeightedRandomPolicy) weight(n domain.WorkerNode) float64 {
	r := float64(n.Remaining())
	return r * r * (1 + p.Epsilon*hostnameHash(n.Hostname))
}

func (p *LoadWeightedRandomPolicy) Select(view ClusterView, task domain.Task) (domain.WorkerNode, error) {
	nodes := available(view.Nodes)
	if len(nodes) == 0 {
		return domain.WorkerNode{}, ErrNoCapacity
	}

	weights := make([]float64, len(nodes))
	total := 0.0
	for i, n := range nodes {
		weights[i] = p.weight(n)
		total += weights[i]
	}
	if total <= 0 {
		return domain.WorkerNode{}, ErrNoCapacity
	}

	rng := newAttemptRand()
	r := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return nodes[i], nil
		}
	}

	// Float accumulation can land r a hair past the final cumulative sum.
	return nodes[len(nodes)-1], nil
}

// SelectBatch draws one node per host with the same weight formula,
// decrementing the drawn node's remaining before the next draw so a
// burst does not pile onto a single nearly-empty node. O(M·N) for M
// hosts over N nodes.
func (p *LoadWeightedRandomPolicy) SelectBatch(view ClusterView, hosts []string) ([]domain.WorkerNode, error) {
	if len(hosts) == 0 {
		return nil, nil
	}

	nodes := available(view.Nodes)
	if totalRemaining(nodes) < len(hosts) {
		return nil, ErrNoCapacity
	}

	live := make([]domain.WorkerNode, len(nodes))
	copy(live, nodes)

	rng := newAttemptRand()
	result := make([]domain.WorkerNode, 0, len(hosts))

	for range hosts {
		total := 0.0
		for _, n := range live {
			total += p.weight(n)
		}
		if total <= 0 {
			return nil, ErrNoCapacity
		}

		r := rng.Float64() * total
		cumulative := 0.0
		picked := -1
		for i, n := range live {
			cumulative += p.weight(n)
			if r <= cumulative {
				picked = i
				break
			}
		}
		if picked < 0 {
			picked = len(live) - 1
		}

		result = append(result, live[picked])
		live[picked].Load++
		if live[picked].Remaining() == 0 {
			live[picked] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}

	return result, nil
}
