package sched

import (
	"testing"

	"github.com/Nativu5/netpulse/pkg/domain"
)

func TestLeastLoadRandomPolicy_Select(t *testing.T) {
	policy := &LeastLoadRandomPolicy{}
	task := domain.Task{ID: "t1"}

	t.Run("empty view", func(t *testing.T) {
		if _, err := policy.Select(ClusterView{}, task); err != ErrNoCapacity {
			t.Fatalf("Select() error = %v, want ErrNoCapacity", err)
		}
	})

	t.Run("single eligible node", func(t *testing.T) {
		view := ClusterView{Nodes: []domain.WorkerNode{
			{ID: "only", Hostname: "a", Capacity: 2, Load: 1},
		}}
		got, err := policy.Select(view, task)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		if got.ID != "only" {
			t.Errorf("Select() = %s, want only", got.ID)
		}
	})
}

// The returned node always carries the eligible set's (min load, max
// remaining at that load) regardless of which finalist the RNG picks.
func TestLeastLoadRandomPolicy_AlwaysBestBucket(t *testing.T) {
	policy := &LeastLoadRandomPolicy{}
	view := ClusterView{Nodes: []domain.WorkerNode{
		{ID: "n1", Hostname: "a", Capacity: 4, Load: 2},
		{ID: "n2", Hostname: "b", Capacity: 8, Load: 1},
		{ID: "n3", Hostname: "c", Capacity: 6, Load: 1},
		{ID: "n4", Hostname: "d", Capacity: 8, Load: 1},
	}}
	task := domain.Task{ID: "t"}

	for range 200 {
		got, err := policy.Select(view, task)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		if got.Load != 1 || got.Remaining() != 7 {
			t.Fatalf("Select() = %s (load=%d remaining=%d), want load=1 remaining=7",
				got.ID, got.Load, got.Remaining())
		}
	}
}

func TestLeastLoadRandomPolicy_Uniformity(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}

	policy := &LeastLoadRandomPolicy{}
	view := ClusterView{Nodes: []domain.WorkerNode{
		{ID: "nA", Hostname: "a", Capacity: 4, Load: 1},
		{ID: "nB", Hostname: "b", Capacity: 4, Load: 1},
		{ID: "nC", Hostname: "c", Capacity: 4, Load: 1},
	}}
	task := domain.Task{ID: "t"}

	const runs = 30000
	counts := map[domain.NodeID]int{}
	for range runs {
		got, err := policy.Select(view, task)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		counts[got.ID]++
	}

	// Expected 10000 each; 3σ ≈ 245, use 300 as the band.
	for _, id := range []domain.NodeID{"nA", "nB", "nC"} {
		if c := counts[id]; c < 9700 || c > 10300 {
			t.Errorf("node %s chosen %d times, want 10000 ± 300", id, c)
		}
	}
}

func TestLeastLoadRandomPolicy_TwoIdenticalNodes(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}

	policy := &LeastLoadRandomPolicy{}
	view := ClusterView{Nodes: []domain.WorkerNode{
		{ID: "nA", Hostname: "a", Capacity: 4, Load: 2},
		{ID: "nB", Hostname: "b", Capacity: 4, Load: 2},
	}}
	task := domain.Task{ID: "t"}

	const runs = 20000
	countA := 0
	for range runs {
		got, err := policy.Select(view, task)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		if got.ID == "nA" {
			countA++
		}
	}

	ratio := float64(countA) / runs
	if ratio < 0.47 || ratio > 0.53 {
		t.Errorf("node nA chosen with probability %.3f, want 0.5 ± 0.03", ratio)
	}
}

func TestLeastLoadRandomPolicy_SelectBatch(t *testing.T) {
	policy := &LeastLoadRandomPolicy{}
	view := ClusterView{Nodes: []domain.WorkerNode{
		{ID: "n1", Hostname: "a", Capacity: 3, Load: 0},
		{ID: "n2", Hostname: "b", Capacity: 3, Load: 0},
	}}

	got, err := policy.SelectBatch(view, []string{"h1", "h2", "h3", "h4", "h5", "h6"})
	if err != nil {
		t.Fatalf("SelectBatch() error = %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("SelectBatch() returned %d placements, want 6", len(got))
	}

	// Per-node capacity must be honored.
	perNode := map[domain.NodeID]int{}
	for _, n := range got {
		perNode[n.ID]++
	}
	if perNode["n1"] != 3 || perNode["n2"] != 3 {
		t.Errorf("placements = %v, want 3 per node", perNode)
	}
}

func TestLeastLoadRandomPolicy_SelectBatch_Insufficient(t *testing.T) {
	policy := &LeastLoadRandomPolicy{}
	view := ClusterView{Nodes: []domain.WorkerNode{
		{ID: "n1", Hostname: "a", Capacity: 1, Load: 1},
	}}

	if _, err := policy.SelectBatch(view, []string{"h1"}); err != ErrNoCapacity {
		t.Fatalf("SelectBatch() error = %v, want ErrNoCapacity", err)
	}
}
