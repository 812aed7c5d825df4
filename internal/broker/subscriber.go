package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/authsync/internal/consumer"
)

var errDeliveriesClosed = errors.New("broker: delivery channel closed")

// Handler decides the fate of one delivery body.
type Handler interface {
	Handle(ctx context.Context, body []byte) consumer.Outcome
}

// DefaultRequeueDelay is how long a worker holds a delivery before requeueing it.
const DefaultRequeueDelay = time.Second

// Subscriber consumes a queue with a bounded number of concurrent handlers.
type Subscriber struct {
	sess         *Session
	queue        string
	prefetch     int
	workers      int
	requeueDelay time.Duration
	handler      Handler
	log          *zap.Logger
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithRequeueDelay sets the pause before a Requeue outcome is nacked back
// to the queue. Zero requeues immediately.
func WithRequeueDelay(d time.Duration) SubscriberOption {
	return func(s *Subscriber) { s.requeueDelay = d }
}

// NewSubscriber constructs a Subscriber. workers < 1 means one.
func NewSubscriber(sess *Session, queue string, prefetch, workers int, h Handler, log *zap.Logger, opts ...SubscriberOption) *Subscriber {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Subscriber{
		sess:         sess,
		queue:        queue,
		prefetch:     prefetch,
		workers:      workers,
		requeueDelay: DefaultRequeueDelay,
		handler:      h,
		log:          log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run consumes until ctx is done, resubscribing after channel loss.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.consumeOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return err
		}
		s.log.Warn("consumer interrupted, resubscribing", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

func (s *Subscriber) consumeOnce(ctx context.Context) error {
	ch, err := s.sess.Channel(ctx)
	if err != nil {
		return err
	}
	if err := ch.Qos(s.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, s.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", s.queue, err)
	}
	s.log.Info("consuming", zap.String("queue", s.queue), zap.Int("workers", s.workers))
	return s.drain(ctx, deliveries)
}

// drain hands deliveries to at most s.workers goroutines until the channel
// closes or ctx ends, then waits for in-flight handlers.
func (s *Subscriber) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	var g errgroup.Group
	g.SetLimit(s.workers)
	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				_ = g.Wait()
				return errDeliveriesClosed
			}
			g.Go(func() error {
				s.settle(ctx, d)
				return nil
			})
		}
	}
}

func (s *Subscriber) settle(ctx context.Context, d amqp.Delivery) {
	outcome := s.handler.Handle(ctx, d.Body)
	var err error
	switch outcome {
	case consumer.Ack:
		err = d.Ack(false)
	case consumer.Requeue:
		s.pause(ctx)
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		s.log.Warn("settle delivery",
			zap.Uint64("tag", d.DeliveryTag),
			zap.Stringer("outcome", outcome),
			zap.Error(err))
	}
}

// pause waits out the requeue delay so a failing dependency is not hit by
// an immediate redelivery. It returns early when ctx ends.
func (s *Subscriber) pause(ctx context.Context) {
	if s.requeueDelay <= 0 {
		return
	}
	t := time.NewTimer(s.requeueDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
