package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces taskgrid queues inside a shared Redis instance
const keyPrefix = "taskgrid:queue:"

// RedisBroker is a Broker backed by Redis lists: LPUSH to enqueue, BRPOP to
// dequeue. Redis list semantics give FIFO ordering per queue. BRPOP removes
// the payload as it delivers it, so a task held by a crashing consumer is
// gone from the queue; recovery is the coordinator sweep's job.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker connects to Redis and verifies connectivity. Broker
// unreachability is a startup failure, not something to limp through.
func NewRedisBroker(url string) (*RedisBroker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL %q: %w", url, err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("broker unreachable at %s: %w", url, err)
	}

	return &RedisBroker{client: client}, nil
}

// Enqueue pushes a payload onto the head of the queue list
func (b *RedisBroker) Enqueue(ctx context.Context, queue string, payload []byte) error {
	if err := b.client.LPush(ctx, keyPrefix+queue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue to %s: %w", queue, err)
	}
	return nil
}

// Dequeue blocks on the tail of the queue list until a payload arrives or
// the context is canceled
func (b *RedisBroker) Dequeue(ctx context.Context, queue string) ([]byte, error) {
	// Timeout 0 blocks indefinitely; go-redis honors ctx cancellation
	res, err := b.client.BRPop(ctx, 0, keyPrefix+queue).Result()
	if err != nil {
		return nil, fmt.Errorf("dequeue from %s: %w", queue, err)
	}
	// BRPOP returns [key, value]
	if len(res) < 2 {
		return nil, fmt.Errorf("dequeue from %s: malformed response", queue)
	}
	return []byte(res[1]), nil
}

// Len returns the depth of the queue list
func (b *RedisBroker) Len(ctx context.Context, queue string) (int, error) {
	n, err := b.client.LLen(ctx, keyPrefix+queue).Result()
	if err != nil {
		return 0, fmt.Errorf("len of %s: %w", queue, err)
	}
	return int(n), nil
}

// Close releases the Redis connection pool
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
