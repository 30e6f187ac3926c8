package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Nativu5/netpulse/pkg/domain"
)

// RedisQueue implements Queue on plain Redis lists, one per node. A
// companion set of seen job IDs makes Enqueue idempotent.
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// seenTTL bounds how long a job ID blocks re-delivery. It only needs
// to outlive the publish retry window, not the job.
const seenTTL = time.Hour

func NewRedisQueue(addr string, db int, password, prefix string) (*RedisQueue, error) {
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

	return &RedisQueue{client: client, prefix: prefix}, nil
}

func (q *RedisQueue) seenKey(id domain.JobID) string {
	return fmt.Sprintf("%s:seen:%s", q.prefix, id)
}

func (q *RedisQueue) Enqueue(ctx context.Context, queue string, job *domain.Job) error {
	first, err := q.client.SetNX(ctx, q.seenKey(job.Request.ID), 1, seenTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to mark job %s seen: %w", job.Request.ID, err)
	}
	if !first {
		return nil
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.Request.ID, err)
	}

	if err := q.client.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.Request.ID, err)
	}

	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, queue string) (*domain.Job, error) {
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Short BLPOP timeout so cancellation is noticed between polls.
		result, err := q.client.BLPop(ctx, 1*time.Second, queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to dequeue from %s: %w", queue, err)
		}

		if len(result) < 2 {
			continue
		}

		var job domain.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			return nil, fmt.Errorf("corrupt job payload on %s: %w", queue, err)
		}

		return &job, nil
	}
}

func (q *RedisQueue) Len(ctx context.Context, queue string) (int, error) {
	n, err := q.client.LLen(ctx, queue).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to measure queue %s: %w", queue, err)
	}
	return int(n), nil
}

func (q *RedisQueue) Purge(ctx context.Context, queue string) error {
	if err := q.client.Del(ctx, queue).Err(); err != nil {
		return fmt.Errorf("failed to purge queue %s: %w", queue, err)
	}
	return nil
}
