package repository

import (
	"context"
	"time"
)

// IdempotencyStore remembers which task a client-supplied key produced.
type IdempotencyStore interface {
	// Reserve claims key. When the key is already taken it returns the task id
	// recorded for it, or "" while the first request is still in flight.
	Reserve(ctx context.Context, key string, ttl time.Duration) (taskID string, reserved bool, err error)
	Complete(ctx context.Context, key, taskID string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}
