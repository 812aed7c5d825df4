// Package token encodes and decodes signed, time-bounded access and refresh
// claim sets in the JWS compact form.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/authsync/internal/errs"
	"github.com/and161185/authsync/internal/keystore"
)

// Type distinguishes access from refresh tokens.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the claim set carried by both token types. ID is the jti.
type Claims struct {
	Type Type `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a KeyStore.
type Codec struct {
	keys   *keystore.KeyStore
	leeway time.Duration
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithLeeway tolerates clock skew between issuer and verifier.
func WithLeeway(d time.Duration) Option { return func(c *Codec) { c.leeway = d } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(c *Codec) { c.now = now } }

// NewCodec constructs a Codec. Leeway defaults to zero.
func NewCodec(keys *keystore.KeyStore, opts ...Option) *Codec {
	c := &Codec{keys: keys, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Now returns the codec's notion of current time.
func (c *Codec) Now() time.Time { return c.now() }

// Algorithm returns the pinned signing algorithm.
func (c *Codec) Algorithm() string { return c.keys.Algorithm() }

// Encode serialises and signs the claim set.
func (c *Codec) Encode(cl Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.GetSigningMethod(c.keys.Algorithm()), cl)
	signing, err := tok.SigningString()
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	sig, err := c.keys.Sign([]byte(signing))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signing + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Decode verifies raw and returns its claims if it is a live token of type want.
func (c *Codec) Decode(raw string, want Type) (*Claims, error) {
	if strings.Count(raw, ".") != 2 {
		return nil, errs.ErrMalformed
	}

	var cl Claims
	parser := jwt.NewParser()
	tok, parts, err := parser.ParseUnverified(raw, &cl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
	// Pinned algorithm; never trust the header.
	if tok.Method == nil || tok.Method.Alg() != c.keys.Algorithm() {
		return nil, errs.ErrInvalidSignature
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature segment", errs.ErrMalformed)
	}
	if !c.keys.Verify([]byte(parts[0]+"."+parts[1]), sig) {
		return nil, errs.ErrInvalidSignature
	}

	v := jwt.NewValidator(
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err := v.Validate(cl); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
	if cl.Subject == "" || cl.ID == "" || cl.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing sub/jti/iat", errs.ErrMalformed)
	}
	if cl.Type != want {
		return nil, errs.ErrClaimTypeMismatch
	}
	return &cl, nil
}

// NewClaims builds a claim set valid from now for ttl.
func NewClaims(typ Type, subject, id string, now time.Time, ttl time.Duration) Claims {
	return Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}
