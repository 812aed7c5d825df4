// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// TokenPair is the result of a login or a refresh rotation.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// User represents an account owned by the identity service.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	Email     string
	PwdHash   []byte // Argon2id(password, Salt)
	Salt      []byte // per-user salt
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectedUser is the dependent service's local copy of a user.
type ProjectedUser struct {
	ID              uuid.UUID
	Username        string
	Email           string
	SourceUpdatedAt time.Time // occurredAt of the newest applied event
}

// ProcessedEvent is one row of the consumer's idempotency ledger.
type ProcessedEvent struct {
	EventID     uuid.UUID
	EventType   string
	ProcessedAt time.Time
}
