// Package crypto hashes account passwords with Argon2id.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// SaltLen is the length of a per-user salt.
const SaltLen = 16

// Params are the Argon2id cost parameters.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
}

// DefaultParams are used by the identity service.
var DefaultParams = Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 1, KeyLen: 32}

// Hasher derives and checks password hashes under fixed Params.
type Hasher struct {
	p         Params
	dummySalt []byte
	dummyHash []byte
}

// NewHasher constructs a Hasher. Zero fields in p take the DefaultParams value.
func NewHasher(p Params) *Hasher {
	if p.Time == 0 {
		p.Time = DefaultParams.Time
	}
	if p.MemoryKiB == 0 {
		p.MemoryKiB = DefaultParams.MemoryKiB
	}
	if p.Threads == 0 {
		p.Threads = DefaultParams.Threads
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultParams.KeyLen
	}
	h := &Hasher{p: p, dummySalt: make([]byte, SaltLen)}
	h.dummyHash = h.Hash("", h.dummySalt)
	return h
}

// NewSalt returns SaltLen cryptographically secure random bytes.
func (h *Hasher) NewSalt() ([]byte, error) {
	b := make([]byte, SaltLen)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Hash returns the Argon2id key of password under salt.
func (h *Hasher) Hash(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, h.p.Time, h.p.MemoryKiB, h.p.Threads, h.p.KeyLen)
}

// Verify compares in constant time.
func (h *Hasher) Verify(password string, salt, expected []byte) bool {
	return subtle.ConstantTimeCompare(h.Hash(password, salt), expected) == 1
}

// VerifyUnknown spends the same work as Verify and always fails. It keeps a
// login for a missing user as slow as one with a wrong password.
func (h *Hasher) VerifyUnknown(password string) bool {
	_ = h.Verify(password, h.dummySalt, h.dummyHash)
	return false
}
