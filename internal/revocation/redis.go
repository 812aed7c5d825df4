package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/and161185/authsync/internal/errs"
)

// Redis is a Store on top of a Redis server or cluster.
type Redis struct {
	rdb redis.Cmdable
}

var _ Store = (*Redis)(nil)

// NewRedis wraps an existing client.
func NewRedis(rdb redis.Cmdable) *Redis { return &Redis{rdb: rdb} }

// Put sets key with expiry.
func (r *Redis) Put(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.rdb.Set(ctx, key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revocation put: %w: %w", errs.ErrUnavailable, err)
	}
	return nil
}

// Exists checks key presence.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("revocation exists: %w: %w", errs.ErrUnavailable, err)
	}
	return n > 0, nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("revocation delete: %w: %w", errs.ErrUnavailable, err)
	}
	return nil
}

// Take deletes key; DEL is atomic so only one caller sees a count of 1.
func (r *Redis) Take(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("revocation take: %w: %w", errs.ErrUnavailable, err)
	}
	return n == 1, nil
}
