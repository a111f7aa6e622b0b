package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const tierQueueKey = "tier:recompute"

// TierQueue implements ports.TierQueue using a Redis list. Delivery is
// at-least-once; the recompute consumer is idempotent.
type TierQueue struct {
	client *goredis.Client
}

// NewTierQueue creates a new Redis-backed tier recompute queue.
func NewTierQueue(client *goredis.Client) *TierQueue {
	return &TierQueue{client: client}
}

// Enqueue pushes a customer ID onto the queue.
func (q *TierQueue) Enqueue(ctx context.Context, customerID uuid.UUID) error {
	if err := q.client.LPush(ctx, tierQueueKey, customerID.String()).Err(); err != nil {
		return fmt.Errorf("redis tier enqueue: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next customer ID. Returns uuid.Nil
// with no error when the timeout elapses empty.
func (q *TierQueue) Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error) {
	vals, err := q.client.BRPop(ctx, timeout, tierQueueKey).Result()
	if err != nil {
		if err == goredis.Nil {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("redis tier dequeue: %w", err)
	}
	// BRPOP returns [key, value]
	id, err := uuid.Parse(vals[1])
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse queued customer id: %w", err)
	}
	return id, nil
}
