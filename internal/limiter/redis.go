package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed limiter with a sliding failure window and lockout.
type Redis struct {
	rdb      redis.Cmdable
	window   time.Duration
	maxFails int
	blockFor time.Duration
}

var _ Limiter = (*Redis)(nil)

// NewRedis constructs a Redis-backed limiter. The failure counter expires
// after window without failures; maxFails failures inside it block the
// (username, ip) pair for blockFor.
func NewRedis(rdb redis.Cmdable, window time.Duration, maxFails int, blockFor time.Duration) *Redis {
	return &Redis{rdb: rdb, window: window, maxFails: maxFails, blockFor: blockFor}
}

func failKey(k Key) string { return "login_fail:" + k.String() }
func blockKey(k Key) string { return "login_block:" + k.String() }

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Redis) Allow(ctx context.Context, k Key) (bool, time.Duration, error) {
	ttl, err := l.rdb.PTTL(ctx, blockKey(k)).Result()
	if err != nil {
		return false, 0, err
	}
	// -2: no key, -1: no expiry (never set by this limiter).
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success resets counters for k.
func (l *Redis) Success(ctx context.Context, k Key) error {
	return l.rdb.Del(ctx, failKey(k), blockKey(k)).Err()
}

// Failure records a failed attempt; may set a block for blockFor.
func (l *Redis) Failure(ctx context.Context, k Key) (bool, time.Duration, error) {
	fk := failKey(k)
	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, fk)
		p.PExpire(ctx, fk, l.window)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	if int(incr.Val()) < l.maxFails {
		return false, 0, nil
	}
	_, err = l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, blockKey(k), 1, l.blockFor)
		p.Del(ctx, fk)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return true, l.blockFor, nil
}
