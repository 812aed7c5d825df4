// Package revocation keeps the server-side token state: a blacklist of
// revoked access token ids and a whitelist of live refresh token ids.
package revocation

import (
	"context"
	"time"
)

const (
	blacklistPrefix = "blacklist_token:"
	whitelistPrefix = "refresh_token:"
)

// Store is a TTL-bounded key set. Implementations must be safe for
// concurrent use and wrap backend failures with errs.ErrUnavailable.
type Store interface {
	// Put records key for ttl. A non-positive ttl is a no-op.
	Put(ctx context.Context, key string, ttl time.Duration) error
	// Exists reports whether key is present and not expired.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Take removes key and reports whether it was present. For a single
	// live key exactly one of any number of concurrent callers gets true.
	Take(ctx context.Context, key string) (bool, error)
}

// BlacklistKey is the store key of a revoked access token id.
func BlacklistKey(jti string) string { return blacklistPrefix + jti }

// WhitelistKey is the store key of a live refresh token id.
func WhitelistKey(jti string) string { return whitelistPrefix + jti }
