package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Nativu5/netpulse/pkg/domain"
)

// RedisStore keeps each node as a hash so the load counter can be
// mutated atomically without rewriting the whole record:
//
//	<prefix>:node:<id>  hash{info, capacity, load, heartbeat}
//	<prefix>:pins       hash{device host -> node id}
//	<prefix>:job:<id>   job JSON, expiring after resultTTL
type RedisStore struct {
	client    *redis.Client
	prefix    string
	resultTTL time.Duration
}

// incrScript implements "increment load iff load < capacity" server
// side, which makes the bind race loser detection exact.
var incrScript = redis.NewScript(`
local cap = tonumber(redis.call('HGET', KEYS[1], 'capacity'))
if not cap then
	return 'not_found'
end
local load = tonumber(redis.call('HGET', KEYS[1], 'load')) or 0
if load >= cap then
	return 'at_capacity'
end
redis.call('HINCRBY', KEYS[1], 'load', 1)
return 'ok'
`)

var decrScript = redis.NewScript(`
local load = tonumber(redis.call('HGET', KEYS[1], 'load')) or 0
if load > 0 then
	redis.call('HINCRBY', KEYS[1], 'load', -1)
end
return load
`)

func NewRedisStore(addr string, db int, password, prefix string, resultTTL time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix, resultTTL: resultTTL}, nil
}

func (s *RedisStore) nodeKey(id domain.NodeID) string {
	return fmt.Sprintf("%s:node:%s", s.prefix, id)
}

func (s *RedisStore) pinsKey() string {
	return fmt.Sprintf("%s:pins", s.prefix)
}

func (s *RedisStore) jobKey(id domain.JobID) string {
	return fmt.Sprintf("%s:job:%s", s.prefix, id)
}

func (s *RedisStore) ListNodes(ctx context.Context) ([]domain.WorkerNode, error) {
	var nodes []domain.WorkerNode

	iter := s.client.Scan(ctx, 0, s.prefix+":node:*", 0).Iterator()
	for iter.Next(ctx) {
		fields, err := s.client.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired during iteration
			}
			return nil, fmt.Errorf("failed to read node %s: %w", iter.Val(), err)
		}
		if len(fields) == 0 {
			continue
		}

		node, err := nodeFromFields(fields)
		if err != nil {
			// Skip corrupt records rather than blocking every
			// scheduling attempt on one bad write.
			continue
		}
		nodes = append(nodes, node)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan nodes: %w", err)
	}

	return nodes, nil
}

func (s *RedisStore) GetNode(ctx context.Context, id domain.NodeID) (*domain.WorkerNode, error) {
	fields, err := s.client.HGetAll(ctx, s.nodeKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrNodeNotFound
	}

	node, err := nodeFromFields(fields)
	if err != nil {
		return nil, fmt.Errorf("corrupt node record %s: %w", id, err)
	}
	return &node, nil
}

func (s *RedisStore) UpdateHeartbeat(ctx context.Context, payload HeartbeatPayload) error {
	info, err := json.Marshal(payload.Node)
	if err != nil {
		return fmt.Errorf("failed to marshal node info: %w", err)
	}

	key := s.nodeKey(payload.Node.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"info", info,
			"capacity", payload.Node.Capacity,
			"heartbeat", payload.Time.UTC().Format(time.RFC3339Nano),
		)
		// The store's counter stays authoritative across heartbeats;
		// the agent's value only seeds a fresh record.
		pipe.HSetNX(ctx, key, "load", payload.Node.Load)
		pipe.Expire(ctx, key, nodeRetention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update heartbeat for %s: %w", payload.Node.ID, err)
	}

	return nil
}

func (s *RedisStore) RemoveNode(ctx context.Context, id domain.NodeID) error {
	if err := s.client.Del(ctx, s.nodeKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove node %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) TryIncrementLoad(ctx context.Context, id domain.NodeID) (domain.IncrementOutcome, error) {
	res, err := incrScript.Run(ctx, s.client, []string{s.nodeKey(id)}).Text()
	if err != nil {
		return 0, fmt.Errorf("failed to increment load on %s: %w", id, err)
	}

	switch res {
	case "ok":
		return domain.IncrementOK, nil
	case "at_capacity":
		return domain.IncrementAtCapacity, nil
	case "not_found":
		return domain.IncrementNotFound, nil
	default:
		return 0, fmt.Errorf("unexpected increment result %q for %s", res, id)
	}
}

func (s *RedisStore) DecrementLoad(ctx context.Context, id domain.NodeID) error {
	if err := decrScript.Run(ctx, s.client, []string{s.nodeKey(id)}).Err(); err != nil {
		return fmt.Errorf("failed to decrement load on %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) GetPin(ctx context.Context, host string) (domain.NodeID, error) {
	val, err := s.client.HGet(ctx, s.pinsKey(), host).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get pin for %s: %w", host, err)
	}
	return domain.NodeID(val), nil
}

func (s *RedisStore) SetPin(ctx context.Context, host string, id domain.NodeID) error {
	if err := s.client.HSet(ctx, s.pinsKey(), host, string(id)).Err(); err != nil {
		return fmt.Errorf("failed to pin %s to %s: %w", host, id, err)
	}
	return nil
}

func (s *RedisStore) ClearPin(ctx context.Context, host string) error {
	if err := s.client.HDel(ctx, s.pinsKey(), host).Err(); err != nil {
		return fmt.Errorf("failed to clear pin for %s: %w", host, err)
	}
	return nil
}

func (s *RedisStore) ClearPinsForNode(ctx context.Context, id domain.NodeID) (int, error) {
	pins, err := s.client.HGetAll(ctx, s.pinsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list pins: %w", err)
	}

	var hosts []string
	for host, nodeID := range pins {
		if nodeID == string(id) {
			hosts = append(hosts, host)
		}
	}
	if len(hosts) == 0 {
		return 0, nil
	}

	if err := s.client.HDel(ctx, s.pinsKey(), hosts...).Err(); err != nil {
		return 0, fmt.Errorf("failed to clear pins for node %s: %w", id, err)
	}
	return len(hosts), nil
}

func (s *RedisStore) SaveJob(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.Request.ID, err)
	}
	if err := s.client.Set(ctx, s.jobKey(job.Request.ID), data, s.resultTTL).Err(); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.Request.ID, err)
	}
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	val, err := s.client.Get(ctx, s.jobKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, fmt.Errorf("corrupt job record %s: %w", id, err)
	}
	return &job, nil
}

// nodeFromFields rebuilds a WorkerNode from its hash fields. Load and
// heartbeat come from their dedicated fields; Alive is derived from
// heartbeat age against NodeTTL.
func nodeFromFields(fields map[string]string) (domain.WorkerNode, error) {
	var node domain.WorkerNode
	if err := json.Unmarshal([]byte(fields["info"]), &node); err != nil {
		return domain.WorkerNode{}, err
	}

	if raw, ok := fields["load"]; ok {
		load, err := strconv.Atoi(raw)
		if err != nil {
			return domain.WorkerNode{}, err
		}
		node.Load = load
	}

	hb, err := time.Parse(time.RFC3339Nano, fields["heartbeat"])
	if err != nil {
		return domain.WorkerNode{}, err
	}
	node.Heartbeat = hb
	node.Alive = time.Since(hb) <= NodeTTL

	return node, nil
}
