package revocation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/and161185/authsync/internal/errs"
)

func newRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb), mr
}

func TestRedis_PutExistsExpire(t *testing.T) {
	s, mr := newRedis(t)
	ctx := context.Background()
	key := BlacklistKey("a1")

	require.NoError(t, s.Put(ctx, key, time.Minute))
	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists("blacklist_token:a1"))

	mr.FastForward(2 * time.Minute)
	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedis_PutNonPositiveTTL(t *testing.T) {
	s, mr := newRedis(t)
	require.NoError(t, s.Put(context.Background(), "k", 0))
	require.False(t, mr.Exists("k"))
}

func TestRedis_DeleteIdempotent(t *testing.T) {
	s, _ := newRedis(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "k", time.Minute))
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))
	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedis_TakeOnce(t *testing.T) {
	s, _ := newRedis(t)
	ctx := context.Background()
	key := WhitelistKey("r1")
	require.NoError(t, s.Put(ctx, key, time.Hour))

	ok, err := s.Take(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Take(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedis_TakeConcurrent(t *testing.T) {
	s, _ := newRedis(t)
	ctx := context.Background()
	key := WhitelistKey("r-race")
	require.NoError(t, s.Put(ctx, key, time.Hour))

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Take(ctx, key)
			if err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, winners.Load())
}

func TestRedis_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewRedis(rdb)
	mr.Close()

	ctx := context.Background()
	require.ErrorIs(t, s.Put(ctx, "k", time.Minute), errs.ErrUnavailable)
	_, err = s.Exists(ctx, "k")
	require.ErrorIs(t, err, errs.ErrUnavailable)
	_, err = s.Take(ctx, "k")
	require.ErrorIs(t, err, errs.ErrUnavailable)
	require.ErrorIs(t, s.Delete(ctx, "k"), errs.ErrUnavailable)
}

func TestKeys(t *testing.T) {
	if got := BlacklistKey("x"); got != "blacklist_token:x" {
		t.Fatalf("BlacklistKey = %q", got)
	}
	if got := WhitelistKey("x"); got != "refresh_token:x" {
		t.Fatalf("WhitelistKey = %q", got)
	}
}
