package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Nativu5/netpulse/pkg/domain"
)

// fakeStore implements Store with a real bounded increment so
// concurrent tests exercise the same CAS semantics Redis provides.
type fakeStore struct {
	mu       sync.Mutex
	nodes    []domain.WorkerNode
	listErr  error
	incErr   error
	incCalls int
	decCalls int

	// incScript, when non-empty, overrides real increments one
	// outcome per call.
	incScript []domain.IncrementOutcome
}

func (s *fakeStore) ListNodes(ctx context.Context) ([]domain.WorkerNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.WorkerNode, len(s.nodes))
	copy(out, s.nodes)
	return out, nil
}

func (s *fakeStore) TryIncrementLoad(ctx context.Context, id domain.NodeID) (domain.IncrementOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incCalls++

	if s.incErr != nil {
		return 0, s.incErr
	}
	if len(s.incScript) > 0 {
		out := s.incScript[0]
		s.incScript = s.incScript[1:]
		return out, nil
	}

	for i, n := range s.nodes {
		if n.ID != id {
			continue
		}
		if n.Load >= n.Capacity {
			return domain.IncrementAtCapacity, nil
		}
		s.nodes[i].Load++
		return domain.IncrementOK, nil
	}
	return domain.IncrementNotFound, nil
}

func (s *fakeStore) DecrementLoad(ctx context.Context, id domain.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decCalls++
	for i, n := range s.nodes {
		if n.ID == id && n.Load > 0 {
			s.nodes[i].Load--
		}
	}
	return nil
}

func twoNodeStore() *fakeStore {
	return &fakeStore{nodes: []domain.WorkerNode{
		{ID: "n1", Hostname: "a", Capacity: 2, Load: 0, Alive: true, Queue: "q:n1"},
		{ID: "n2", Hostname: "b", Capacity: 2, Load: 1, Alive: true, Queue: "q:n2"},
	}}
}

func TestScheduler_Schedule_Binds(t *testing.T) {
	store := twoNodeStore()

	var published []domain.JobID
	queue := PublishFunc(func(ctx context.Context, taskID domain.JobID, nodeID domain.NodeID) error {
		published = append(published, taskID)
		return nil
	})

	s := New(store, &LeastLoadPolicy{}, queue, 3, nil, nil)
	d, err := s.Schedule(context.Background(), domain.Task{ID: "t1"})
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	if d.NodeID != "n1" {
		t.Errorf("Schedule() chose %s, want n1", d.NodeID)
	}
	if d.PolicyName != PolicyLeastLoad {
		t.Errorf("decision policy = %s, want %s", d.PolicyName, PolicyLeastLoad)
	}
	if d.ObservedRemaining != 2 {
		t.Errorf("observed remaining = %d, want 2", d.ObservedRemaining)
	}
	if len(published) != 1 || published[0] != "t1" {
		t.Errorf("published = %v, want [t1]", published)
	}
	if store.nodes[0].Load != 1 {
		t.Errorf("store load = %d, want 1", store.nodes[0].Load)
	}
}

func TestScheduler_Schedule_RetriesLostRace(t *testing.T) {
	store := twoNodeStore()
	store.incScript = []domain.IncrementOutcome{domain.IncrementAtCapacity, domain.IncrementOK}

	s := New(store, &LeastLoadPolicy{}, nil, 3, nil, nil)
	if _, err := s.Schedule(context.Background(), domain.Task{ID: "t1"}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if store.incCalls != 2 {
		t.Errorf("increment calls = %d, want 2", store.incCalls)
	}
}

func TestScheduler_Schedule_RetryBudget(t *testing.T) {
	const retries = 3

	store := twoNodeStore()
	store.incScript = []domain.IncrementOutcome{
		domain.IncrementAtCapacity, domain.IncrementAtCapacity,
		domain.IncrementAtCapacity, domain.IncrementAtCapacity,
		domain.IncrementAtCapacity,
	}

	s := New(store, &LeastLoadPolicy{}, nil, retries, nil, nil)
	_, err := s.Schedule(context.Background(), domain.Task{ID: "t1"})
	if !errors.Is(err, ErrNoCapacity) {
		t.Fatalf("Schedule() error = %v, want ErrNoCapacity", err)
	}

	// bind_retries + 1 increments, never more.
	if store.incCalls != retries+1 {
		t.Errorf("increment calls = %d, want %d", store.incCalls, retries+1)
	}
}

func TestScheduler_Schedule_EmptyFleet(t *testing.T) {
	s := New(&fakeStore{}, &GreedyPolicy{}, nil, 3, nil, nil)
	_, err := s.Schedule(context.Background(), domain.Task{ID: "t1"})
	if !errors.Is(err, ErrNoCapacity) {
		t.Fatalf("Schedule() error = %v, want ErrNoCapacity", err)
	}
}

func TestScheduler_Schedule_NoEligibleNode(t *testing.T) {
	store := twoNodeStore()
	s := New(store, &GreedyPolicy{}, nil, 3, nil, nil)

	task := domain.Task{ID: "t1", Requirements: []string{"pyeapi"}}
	_, err := s.Schedule(context.Background(), task)
	if !errors.Is(err, ErrNoEligibleNode) {
		t.Fatalf("Schedule() error = %v, want ErrNoEligibleNode", err)
	}
	if errors.Is(err, ErrNoCapacity) {
		t.Error("requirements failure must stay distinct from capacity exhaustion")
	}
}

func TestScheduler_Schedule_DeadNodesInvisible(t *testing.T) {
	store := &fakeStore{nodes: []domain.WorkerNode{
		{ID: "dead", Hostname: "a", Capacity: 4, Load: 0, Alive: false},
		{ID: "live", Hostname: "b", Capacity: 4, Load: 3, Alive: true},
	}}

	s := New(store, &GreedyPolicy{}, nil, 3, nil, nil)
	d, err := s.Schedule(context.Background(), domain.Task{ID: "t1"})
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if d.NodeID != "live" {
		t.Errorf("Schedule() chose %s, want live", d.NodeID)
	}
}

func TestScheduler_Schedule_SnapshotFailure(t *testing.T) {
	store := &fakeStore{listErr: fmt.Errorf("connection refused")}
	s := New(store, &GreedyPolicy{}, nil, 3, nil, nil)

	_, err := s.Schedule(context.Background(), domain.Task{ID: "t1"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Schedule() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestScheduler_Schedule_BindTransientFailure(t *testing.T) {
	store := twoNodeStore()
	store.incErr = fmt.Errorf("timeout")

	s := New(store, &GreedyPolicy{}, nil, 3, nil, nil)
	_, err := s.Schedule(context.Background(), domain.Task{ID: "t1"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Schedule() error = %v, want ErrStoreUnavailable", err)
	}
	if store.incCalls != 1 {
		t.Errorf("transient failure retried at scheduler layer: %d calls", store.incCalls)
	}
}

func TestScheduler_Schedule_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(twoNodeStore(), &GreedyPolicy{}, nil, 3, nil, nil)
	if _, err := s.Schedule(ctx, domain.Task{ID: "t1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Schedule() error = %v, want context.Canceled", err)
	}
}

func TestScheduler_Schedule_PublishFailureReleasesSlot(t *testing.T) {
	store := twoNodeStore()
	queue := PublishFunc(func(ctx context.Context, taskID domain.JobID, nodeID domain.NodeID) error {
		return fmt.Errorf("queue down")
	})

	s := New(store, &GreedyPolicy{}, queue, 3, nil, nil)
	_, err := s.Schedule(context.Background(), domain.Task{ID: "t1"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Schedule() error = %v, want ErrStoreUnavailable", err)
	}
	if store.decCalls != 1 {
		t.Errorf("decrement calls = %d, want 1", store.decCalls)
	}
	if store.nodes[0].Load != 0 {
		t.Errorf("slot leaked: load = %d", store.nodes[0].Load)
	}
}

// Many concurrent attempts against one fleet: the store's CAS is the
// only synchronization, and loads never exceed capacity.
func TestScheduler_Schedule_ConcurrentAttempts(t *testing.T) {
	store := &fakeStore{nodes: []domain.WorkerNode{
		{ID: "n1", Hostname: "a", Capacity: 5, Load: 0, Alive: true},
		{ID: "n2", Hostname: "b", Capacity: 5, Load: 0, Alive: true},
	}}

	s := New(store, &LeastLoadRandomPolicy{}, nil, 5, nil, nil)

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Schedule(context.Background(), domain.Task{ID: domain.JobID(fmt.Sprintf("t%d", i))})
		}()
	}
	wg.Wait()

	bound := 0
	for _, err := range errs {
		if err == nil {
			bound++
		} else if !errors.Is(err, ErrNoCapacity) {
			t.Errorf("unexpected error: %v", err)
		}
	}

	if bound != 10 {
		t.Errorf("bound %d tasks on a 10-slot fleet, want 10", bound)
	}
	for _, n := range store.nodes {
		if n.Load > n.Capacity {
			t.Errorf("node %s over capacity: %d/%d", n.ID, n.Load, n.Capacity)
		}
	}
}
