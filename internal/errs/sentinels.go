// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates a rejected input value.
	ErrValidation = errors.New("validation")
)

// Token sentinels. All of them are client errors and are never retried.
var (
	// ErrMalformed indicates a token that cannot be parsed as a signed claim set.
	ErrMalformed = errors.New("malformed token")

	// ErrInvalidSignature indicates a signature that does not verify against the public key.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrExpired indicates the token's exp is in the past (after leeway).
	ErrExpired = errors.New("token expired")

	// ErrClaimTypeMismatch indicates an access token used as refresh token or vice versa.
	ErrClaimTypeMismatch = errors.New("token type mismatch")

	// ErrRevoked indicates a blacklisted access token or a refresh token that
	// was revoked or already rotated. The two refresh cases are not distinguished.
	ErrRevoked = errors.New("token revoked")
)

// Dependency sentinels. Callers may retry idempotent operations.
var (
	// ErrUnavailable indicates the revocation store or database could not be reached in time.
	ErrUnavailable = errors.New("dependency unavailable")

	// ErrDeliveryFailed indicates the broker did not confirm a published message.
	ErrDeliveryFailed = errors.New("delivery failed")
)

// ErrProtocol marks envelopes that can never be processed (unknown type,
// unsupported schema version, unparseable body). They go to dead-letter.
var ErrProtocol = errors.New("protocol error")
