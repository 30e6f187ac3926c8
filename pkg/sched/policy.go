package sched

import (
	"fmt"
	"sort"

	"github.com/Nativu5/netpulse/pkg/domain"
)

// Policy is one node-selection strategy. Select receives the already
// eligibility-filtered view for a task and returns exactly one node,
// or ErrNoCapacity when nothing has room. SelectBatch places many
// device hosts in one shot, honoring the same capacity rules.
//
// Policies are pure: they never mutate the view and hold no state
// across calls.
type Policy interface {
	Name() string
	Select(view ClusterView, task domain.Task) (domain.WorkerNode, error)
	SelectBatch(view ClusterView, hosts []string) ([]domain.WorkerNode, error)
}

// Options carries the tunables a policy may consume.
type Options struct {
	// WeightPerturbation is the ε of the load-weighted-random policy,
	// in [0, 1).
	WeightPerturbation float64
}

// Policy names, as they appear under worker.scheduler.
const (
	PolicyGreedy             = "greedy"
	PolicyLeastLoad          = "least_load"
	PolicyLeastLoadRandom    = "least_load_random"
	PolicyLoadWeightedRandom = "load_weighted_random"
)

// The registry is a closed set. Out-of-tree strategies are not
// discoverable; add new policies here.
var policyFactories = map[string]func(Options) Policy{
	PolicyGreedy:             func(Options) Policy { return &GreedyPolicy{} },
	PolicyLeastLoad:          func(Options) Policy { return &LeastLoadPolicy{} },
	PolicyLeastLoadRandom:    func(Options) Policy { return &LeastLoadRandomPolicy{} },
	PolicyLoadWeightedRandom: func(o Options) Policy { return &LoadWeightedRandomPolicy{Epsilon: o.WeightPerturbation} },
}

// NewPolicy resolves a worker.scheduler value to a Policy.
func NewPolicy(name string, opts Options) (Policy, error) {
	factory, ok := policyFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownPolicy, name, PolicyNames())
	}
	return factory(opts), nil
}

// PolicyNames lists the registry in stable order.
func PolicyNames() []string {
	names := make([]string, 0, len(policyFactories))
	for name := range policyFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// available keeps nodes with free slots. Policies apply this to their
// input so that calling one directly on an unfiltered view still
// upholds the contract.
func available(nodes []domain.WorkerNode) []domain.WorkerNode {
	return FilterCapacity(nodes)
}

// totalRemaining sums free slots across nodes.
func totalRemaining(nodes []domain.WorkerNode) int {
	total := 0
	for _, n := range nodes {
		total += n.Remaining()
	}
	return total
}
