// Package queue dispatches import job IDs to the background worker through
// a Redis list. Delivery is fire-and-forget with at-least-once semantics;
// the worker's claim on the job record makes redelivery harmless.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const popTimeout = 5 * time.Second

// Dispatcher hands a job id to the asynchronous execution substrate.
// The call returns as soon as the id is durably queued; it never waits
// for processing.
type Dispatcher interface {
	Enqueue(ctx context.Context, jobID uuid.UUID) error
}

// Handler processes one dequeued job id.
type Handler func(ctx context.Context, jobID uuid.UUID)

// RedisQueue implements Dispatcher on a Redis list.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a RedisQueue from a Redis URL and list key.
func NewRedisQueue(redisURL, key string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisQueue{client: redis.NewClient(opts), key: key}, nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	if err := q.client.LPush(ctx, q.key, jobID.String()).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", jobID, err)
	}
	return nil
}

// Consumer pops job ids off the queue and invokes the handler for each,
// strictly sequentially. Run blocks until ctx is cancelled.
type Consumer struct {
	queue   *RedisQueue
	handler Handler
}

// NewConsumer creates a Consumer reading from q.
func NewConsumer(q *RedisQueue, handler Handler) *Consumer {
	return &Consumer{queue: q, handler: handler}
}

func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := c.queue.client.BRPop(ctx, popTimeout, c.queue.key).Result()
		if errors.Is(err, redis.Nil) {
			continue // timed out empty, poll again
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("queue pop failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		// BRPop returns [key, value].
		jobID, err := uuid.Parse(res[1])
		if err != nil {
			slog.Error("discarding malformed job id", "value", res[1], "error", err)
			continue
		}

		c.handler(ctx, jobID)
	}
}
