package store

import (
	"context"
	"sync"
	"time"

	"github.com/Nativu5/netpulse/pkg/domain"
)

// MemoryStore is the in-process Store used by tests and single-node
// development setups. One mutex guards everything; the increment is
// exactly as atomic as the Redis script.
type MemoryStore struct {
	mu    sync.Mutex
	nodes map[domain.NodeID]domain.WorkerNode
	pins  map[string]domain.NodeID
	jobs  map[domain.JobID]domain.Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[domain.NodeID]domain.WorkerNode),
		pins:  make(map[string]domain.NodeID),
		jobs:  make(map[domain.JobID]domain.Job),
	}
}

func (s *MemoryStore) ListNodes(ctx context.Context) ([]domain.WorkerNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var list []domain.WorkerNode
	for id, node := range s.nodes {
		if now.Sub(node.Heartbeat) > nodeRetention {
			delete(s.nodes, id)
			continue
		}
		node.Alive = now.Sub(node.Heartbeat) <= NodeTTL
		list = append(list, node)
	}
	return list, nil
}

func (s *MemoryStore) GetNode(ctx context.Context, id domain.NodeID) (*domain.WorkerNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	node.Alive = time.Since(node.Heartbeat) <= NodeTTL
	return &node, nil
}

func (s *MemoryStore) UpdateHeartbeat(ctx context.Context, payload HeartbeatPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := payload.Node
	node.Heartbeat = payload.Time
	if existing, ok := s.nodes[node.ID]; ok {
		node.Load = existing.Load
	}
	s.nodes[node.ID] = node
	return nil
}

func (s *MemoryStore) RemoveNode(ctx context.Context, id domain.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
	return nil
}

func (s *MemoryStore) TryIncrementLoad(ctx context.Context, id domain.NodeID) (domain.IncrementOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return domain.IncrementNotFound, nil
	}
	if node.Load >= node.Capacity {
		return domain.IncrementAtCapacity, nil
	}
	node.Load++
	s.nodes[id] = node
	return domain.IncrementOK, nil
}

func (s *MemoryStore) DecrementLoad(ctx context.Context, id domain.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil
	}
	if node.Load > 0 {
		node.Load--
		s.nodes[id] = node
	}
	return nil
}

func (s *MemoryStore) GetPin(ctx context.Context, host string) (domain.NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pins[host], nil
}

func (s *MemoryStore) SetPin(ctx context.Context, host string, id domain.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[host] = id
	return nil
}

func (s *MemoryStore) ClearPin(ctx context.Context, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pins, host)
	return nil
}

func (s *MemoryStore) ClearPinsForNode(ctx context.Context, id domain.NodeID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	for host, nodeID := range s.pins {
		if nodeID == id {
			delete(s.pins, host)
			cleared++
		}
	}
	return cleared, nil
}

func (s *MemoryStore) SaveJob(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Request.ID] = *job
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}
