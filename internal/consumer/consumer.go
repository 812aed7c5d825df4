// Package consumer turns a delivered user event into an acknowledgement
// decision, applying each event to the projection at most once.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/authsync/internal/errs"
	"github.com/and161185/authsync/internal/events"
)

// Outcome tells the transport what to do with a delivery.
type Outcome int

const (
	// Ack removes the message from the queue.
	Ack Outcome = iota
	// Requeue returns the message for a later attempt.
	Requeue
	// DeadLetter rejects the message without requeue; the broker routes it to the DLX.
	DeadLetter
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case DeadLetter:
		return "dead-letter"
	default:
		return "unknown"
	}
}

// Applier is the idempotent write side, implemented by syncer.Coordinator.
type Applier interface {
	Seen(ctx context.Context, eventID uuid.UUID) (bool, error)
	Commit(ctx context.Context, ev events.UserEvent) (bool, error)
}

// Consumer is stateless apart from its dependencies and safe for concurrent use.
type Consumer struct {
	apply   Applier
	timeout time.Duration
	log     *zap.Logger
}

// DefaultTimeout bounds each ledger and projection call when New gets zero.
const DefaultTimeout = 500 * time.Millisecond

// New constructs a Consumer. timeout bounds every Applier call; a call that
// runs past it counts as a dependency failure and the delivery is requeued.
func New(apply Applier, timeout time.Duration, log *zap.Logger) *Consumer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{apply: apply, timeout: timeout, log: log}
}

func (c *Consumer) seen(ctx context.Context, ev events.UserEvent) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.apply.Seen(ctx, ev.ID)
}

func (c *Consumer) commit(ctx context.Context, ev events.UserEvent) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.apply.Commit(ctx, ev)
}

// Handle decodes body and applies it once.
func (c *Consumer) Handle(ctx context.Context, body []byte) Outcome {
	ev, err := events.Decode(body)
	if err != nil {
		c.log.Warn("undecodable event", zap.Error(err), zap.Int("bytes", len(body)))
		return DeadLetter
	}
	log := c.log.With(
		zap.String("event_id", ev.ID.String()),
		zap.String("event_type", string(ev.Type)),
		zap.String("subject", ev.User.ID),
	)

	seen, err := c.seen(ctx, ev)
	if err != nil {
		log.Warn("ledger lookup failed", zap.Error(err))
		return Requeue
	}
	if seen {
		log.Info("duplicate event skipped")
		return Ack
	}

	applied, err := c.commit(ctx, ev)
	switch {
	case errors.Is(err, errs.ErrProtocol):
		log.Warn("event rejected", zap.Error(err))
		return DeadLetter
	case err != nil:
		log.Warn("apply failed", zap.Error(err))
		return Requeue
	case !applied:
		log.Info("duplicate event skipped")
		return Ack
	}
	log.Debug("event applied")
	return Ack
}
