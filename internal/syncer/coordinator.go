// Package syncer holds the delivery contract shared by the publisher and
// the consumer: which exchange and routing key each event type uses, which
// keys the consumer queue binds, and whether an event was already applied.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/authsync/internal/errs"
	"github.com/and161185/authsync/internal/events"
	"github.com/and161185/authsync/internal/model"
)

// Topology names the broker objects used for user sync.
type Topology struct {
	Exchange          string
	CreatedRoutingKey string
	UpdatedRoutingKey string
	Queue             string
	DeadLetterExch    string
	DeadLetterQueue   string
}

// DefaultTopology matches the names the deployments use when nothing is configured.
func DefaultTopology() Topology {
	return Topology{
		Exchange:          "user_events",
		CreatedRoutingKey: "user.created",
		UpdatedRoutingKey: "user.updated",
		Queue:             "user_projection",
		DeadLetterExch:    "user_events.dlx",
		DeadLetterQueue:   "user_projection.dead",
	}
}

// Route is where a single event is published.
type Route struct {
	Exchange   string
	RoutingKey string
}

// Ledger is the durable record of applied event ids.
type Ledger interface {
	Seen(ctx context.Context, eventID uuid.UUID) (bool, error)
	ApplyOnce(ctx context.Context, ev model.ProcessedEvent, u model.ProjectedUser) (bool, error)
}

// Coordinator is safe for concurrent use; it holds no mutable state of its own.
type Coordinator struct {
	topo   Topology
	ledger Ledger
	now    func() time.Time
}

// New constructs a Coordinator. ledger may be nil on the publishing side.
func New(topo Topology, ledger Ledger) *Coordinator {
	return &Coordinator{topo: topo, ledger: ledger, now: time.Now}
}

// Topology returns the configured broker object names.
func (c *Coordinator) Topology() Topology { return c.topo }

// Route maps an event type to its exchange and routing key.
func (c *Coordinator) Route(t events.Type) (Route, error) {
	switch t {
	case events.UserCreated:
		return Route{Exchange: c.topo.Exchange, RoutingKey: c.topo.CreatedRoutingKey}, nil
	case events.UserUpdated:
		return Route{Exchange: c.topo.Exchange, RoutingKey: c.topo.UpdatedRoutingKey}, nil
	default:
		return Route{}, fmt.Errorf("%w: no route for %q", errs.ErrProtocol, t)
	}
}

// Bindings lists the routing keys the consumer queue must be bound with.
func (c *Coordinator) Bindings() []string {
	return []string{c.topo.CreatedRoutingKey, c.topo.UpdatedRoutingKey}
}

// Seen reports whether ev was already applied.
func (c *Coordinator) Seen(ctx context.Context, eventID uuid.UUID) (bool, error) {
	if c.ledger == nil {
		return false, fmt.Errorf("syncer: no ledger configured")
	}
	return c.ledger.Seen(ctx, eventID)
}

// Commit applies ev to the projection and records it, atomically. It
// returns false if another delivery of the same event got there first.
func (c *Coordinator) Commit(ctx context.Context, ev events.UserEvent) (bool, error) {
	if c.ledger == nil {
		return false, fmt.Errorf("syncer: no ledger configured")
	}
	uid, err := uuid.FromString(ev.User.ID)
	if err != nil {
		return false, fmt.Errorf("%w: subject id: %v", errs.ErrProtocol, err)
	}
	rec := model.ProcessedEvent{EventID: ev.ID, EventType: string(ev.Type), ProcessedAt: c.now().UTC()}
	u := model.ProjectedUser{
		ID:              uid,
		Username:        ev.User.Username,
		Email:           ev.User.Email,
		SourceUpdatedAt: ev.OccurredAt,
	}
	return c.ledger.ApplyOnce(ctx, rec, u)
}
