package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/and161185/authsync/internal/errs"
	"github.com/and161185/authsync/internal/events"
	"github.com/and161185/authsync/internal/syncer"
)

// Confirmation is a pending broker acknowledgement, as *amqp.DeferredConfirmation.
type Confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

var _ Confirmation = (*amqp.DeferredConfirmation)(nil)

// Sender publishes on a confirm-mode channel.
type Sender interface {
	Send(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error)
}

// Router resolves where an event type is published.
type Router interface {
	Route(t events.Type) (syncer.Route, error)
}

// Publisher delivers user events and waits for the broker to confirm them.
// It keeps no state between calls and does not retry.
type Publisher struct {
	sender  Sender
	router  Router
	timeout time.Duration
	log     *zap.Logger
}

// NewPublisher constructs a Publisher. timeout bounds send plus confirm.
func NewPublisher(sender Sender, router Router, timeout time.Duration, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{sender: sender, router: router, timeout: timeout, log: log}
}

// Publish sends ev as a persistent message. Failures to hand it to the
// broker, a nack and a missing confirmation all return errs.ErrDeliveryFailed.
func (p *Publisher) Publish(ctx context.Context, ev events.UserEvent) error {
	rt, err := p.router.Route(ev.Type)
	if err != nil {
		return err
	}
	body, err := events.Encode(ev)
	if err != nil {
		return err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID.String(),
		Type:         string(ev.Type),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}
	conf, err := p.sender.Send(ctx, rt.Exchange, rt.RoutingKey, msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w: %w", ev.Type, errs.ErrDeliveryFailed, err)
	}
	acked, err := conf.WaitContext(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("confirm %s: %w: %w", ev.Type, errs.ErrDeliveryFailed, err)
	case !acked:
		return fmt.Errorf("confirm %s: %w: %w", ev.Type, errs.ErrDeliveryFailed, errNacked)
	}
	p.log.Debug("event published",
		zap.String("event_id", ev.ID.String()),
		zap.String("routing_key", rt.RoutingKey))
	return nil
}

var errNacked = errors.New("broker nacked message")
