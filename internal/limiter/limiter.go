// Package limiter throttles password attempts per username and client address.
package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"time"
)

// Key identifies one throttled (username, client) pair. The address is kept
// only as a hash.
type Key struct {
	Username string
	IPHash   []byte
}

// NewKey builds a Key from a peer address; a port, if present, is ignored.
func NewKey(username, addr string) Key {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return Key{Username: username, IPHash: HashIP(addr)}
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

func (k Key) String() string { return k.Username + ":" + hex.EncodeToString(k.IPHash) }

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether a login may be tried now, and if not, for how long to wait.
	Allow(ctx context.Context, k Key) (bool, time.Duration, error)
	// Success clears the failure history of k.
	Success(ctx context.Context, k Key) error
	// Failure records a failed attempt and reports whether k is now blocked.
	Failure(ctx context.Context, k Key) (bool, time.Duration, error)
}
