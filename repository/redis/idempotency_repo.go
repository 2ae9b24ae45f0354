package redis

import (
	"context"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskdesk/repository"
)

// pendingMarker is stored while the owning request has not finished.
const pendingMarker = "-"

type idempotencyRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewIdempotencyRepository creates a Redis-backed idempotency key store.
func NewIdempotencyRepository(client *redislib.Client, ttl time.Duration) repository.IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &idempotencyRepository{
		client: client,
		prefix: "idempotency:task:",
		ttl:    ttl,
	}
}

func (r *idempotencyRepository) Reserve(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(key), pendingMarker, r.ttlOrDefault(ttl)).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}

	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if err == redislib.Nil {
			// expired between SETNX and GET; treat as a fresh claim attempt
			return r.Reserve(ctx, key, ttl)
		}
		return "", false, err
	}
	if value == pendingMarker {
		return "", false, nil
	}
	return value, false, nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, key, taskID string, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), taskID, r.ttlOrDefault(ttl)).Err()
}

func (r *idempotencyRepository) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *idempotencyRepository) ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return r.ttl
	}
	return ttl
}

func (r *idempotencyRepository) key(id string) string {
	return fmt.Sprintf("%s%s", r.prefix, id)
}
