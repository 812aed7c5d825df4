// Package events defines the user lifecycle facts exchanged between the
// identity service and its dependents, and their versioned JSON envelope.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/authsync/internal/errs"
	"github.com/and161185/authsync/internal/model"
)

// SchemaVersion is the only envelope version this build reads and writes.
const SchemaVersion = 1

// Type names a user lifecycle fact.
type Type string

const (
	UserCreated Type = "user.created"
	UserUpdated Type = "user.updated"
)

// Known reports whether t is a type this build handles.
func (t Type) Known() bool { return t == UserCreated || t == UserUpdated }

// UserPayload is the user snapshot carried by every event.
type UserPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserEvent is an immutable fact about a user. ID is the idempotency key.
type UserEvent struct {
	ID         uuid.UUID
	Type       Type
	OccurredAt time.Time
	User       UserPayload
}

// Envelope is the wire form of a UserEvent.
type Envelope struct {
	EventID       string      `json:"eventId"`
	EventType     string      `json:"eventType"`
	SchemaVersion int         `json:"schemaVersion"`
	OccurredAt    time.Time   `json:"occurredAt"`
	Payload       UserPayload `json:"payload"`
}

// NewUserEvent stamps a fresh event id and occurrence time.
func NewUserEvent(t Type, u *model.User, now time.Time) (UserEvent, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return UserEvent{}, err
	}
	return UserEvent{
		ID:         id,
		Type:       t,
		OccurredAt: now.UTC(),
		User:       UserPayload{ID: u.ID.String(), Username: u.Username, Email: u.Email},
	}, nil
}

// Encode marshals ev into an envelope body.
func Encode(ev UserEvent) ([]byte, error) {
	if !ev.Type.Known() {
		return nil, fmt.Errorf("%w: event type %q", errs.ErrProtocol, ev.Type)
	}
	return json.Marshal(Envelope{
		EventID:       ev.ID.String(),
		EventType:     string(ev.Type),
		SchemaVersion: SchemaVersion,
		OccurredAt:    ev.OccurredAt.UTC(),
		Payload:       ev.User,
	})
}

// Decode parses an envelope body. Every failure wraps errs.ErrProtocol:
// such a message will never succeed on redelivery.
func Decode(body []byte) (UserEvent, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return UserEvent{}, fmt.Errorf("%w: %v", errs.ErrProtocol, err)
	}
	if env.SchemaVersion != SchemaVersion {
		return UserEvent{}, fmt.Errorf("%w: schema version %d", errs.ErrProtocol, env.SchemaVersion)
	}
	t := Type(env.EventType)
	if !t.Known() {
		return UserEvent{}, fmt.Errorf("%w: event type %q", errs.ErrProtocol, env.EventType)
	}
	id, err := uuid.FromString(env.EventID)
	if err != nil || id == uuid.Nil {
		return UserEvent{}, fmt.Errorf("%w: event id %q", errs.ErrProtocol, env.EventID)
	}
	if env.OccurredAt.IsZero() {
		return UserEvent{}, fmt.Errorf("%w: missing occurredAt", errs.ErrProtocol)
	}
	if _, err := uuid.FromString(env.Payload.ID); err != nil {
		return UserEvent{}, fmt.Errorf("%w: subject id %q", errs.ErrProtocol, env.Payload.ID)
	}
	if strings.TrimSpace(env.Payload.Username) == "" {
		return UserEvent{}, fmt.Errorf("%w: missing username", errs.ErrProtocol)
	}
	return UserEvent{ID: id, Type: t, OccurredAt: env.OccurredAt.UTC(), User: env.Payload}, nil
}
