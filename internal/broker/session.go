// Package broker connects the user sync flow to RabbitMQ: a reconnecting
// session, topology declaration, a confirming publisher and a subscriber
// that settles deliveries by consumer outcome.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ErrClosed is returned by a Session after Close.
var ErrClosed = errors.New("broker: session closed")

var errChannelLost = errors.New("broker: channel lost again during reconnect")

// SetupFunc runs on every fresh channel, e.g. to declare topology.
type SetupFunc func(ch *amqp.Channel) error

// Session owns one connection and one confirm-mode channel and replaces
// both when the broker drops them. At most one redial runs at a time and
// it runs without holding the session lock; callers wait for it under
// their own context.
type Session struct {
	url   string
	log   *zap.Logger
	setup SetupFunc
	dial  func(url string) (*amqp.Connection, error)

	maxRetries uint64
	retryBase  time.Duration

	// stop is canceled by Close and bounds any redial in progress.
	stop   context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	conn         *amqp.Connection
	ch           *amqp.Channel
	closed       bool
	reconnecting chan struct{}
	lastErr      error
}

// Option configures a Session.
type Option func(*Session)

// WithSetup registers fn to run on each new channel.
func WithSetup(fn SetupFunc) Option { return func(s *Session) { s.setup = fn } }

// WithRetry bounds reconnect attempts with exponential backoff from base.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(s *Session) { s.maxRetries, s.retryBase = maxRetries, base }
}

// WithLogger sets the session logger.
func WithLogger(log *zap.Logger) Option { return func(s *Session) { s.log = log } }

func newSession(url string, opts ...Option) *Session {
	s := &Session{
		url:        url,
		log:        zap.NewNop(),
		dial:       amqp.Dial,
		maxRetries: 10,
		retryBase:  200 * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	s.stop, s.cancel = context.WithCancel(context.Background())
	return s
}

// Dial connects to url, retrying with backoff.
func Dial(ctx context.Context, url string, opts ...Option) (*Session, error) {
	s := newSession(url, opts...)
	conn, ch, err := s.connect(ctx)
	if err != nil {
		s.cancel()
		return nil, err
	}
	s.conn, s.ch = conn, ch
	return s, nil
}

// Channel returns a live channel. When the current one is gone it joins
// the redial in progress, or starts one, and waits until it ends or ctx is done.
func (s *Session) Channel(ctx context.Context) (*amqp.Channel, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.ch != nil && !s.ch.IsClosed() {
		ch := s.ch
		s.mu.Unlock()
		return ch, nil
	}
	wait := s.reconnecting
	if wait == nil {
		wait = s.startReconnectLocked()
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wait:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return nil, ErrClosed
	case s.ch != nil:
		return s.ch, nil
	case s.lastErr != nil:
		return nil, s.lastErr
	default:
		return nil, errChannelLost
	}
}

// startReconnectLocked drops the dead connection and redials in the
// background. The returned channel is closed when the redial ends.
func (s *Session) startReconnectLocked() chan struct{} {
	done := make(chan struct{})
	s.reconnecting = done
	old := s.conn
	s.conn, s.ch = nil, nil
	s.log.Warn("broker channel lost, reconnecting")

	go func() {
		defer close(done)
		if old != nil && !old.IsClosed() {
			_ = old.Close()
		}
		conn, ch, err := s.connect(s.stop)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.reconnecting = nil
		if err == nil && s.closed {
			_ = conn.Close()
			err = ErrClosed
		}
		if err == nil {
			s.conn, s.ch = conn, ch
		}
		s.lastErr = err
	}()
	return done
}

// Send publishes msg on the confirm-mode channel and returns its pending confirmation.
func (s *Session) Send(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error) {
	ch, err := s.Channel(ctx)
	if err != nil {
		return nil, err
	}
	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("broker: channel is not in confirm mode")
	}
	return dc, nil
}

// Close stops any redial in progress and closes the channel and the connection.
func (s *Session) Close() error {
	s.cancel()

	s.mu.Lock()
	s.closed = true
	conn, ch := s.conn, s.ch
	s.conn, s.ch = nil, nil
	s.mu.Unlock()

	var errCh, errConn error
	if ch != nil {
		errCh = ch.Close()
	}
	if conn != nil && !conn.IsClosed() {
		errConn = conn.Close()
	}
	if errors.Is(errCh, amqp.ErrClosed) {
		errCh = nil
	}
	return errors.Join(errCh, errConn)
}

func (s *Session) connect(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	var (
		conn *amqp.Connection
		ch   *amqp.Channel
	)
	b := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		c, err := s.dial(s.url)
		if err != nil {
			s.log.Warn("broker dial failed", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(fmt.Errorf("broker dial: %w", err))
		}
		cch, err := c.Channel()
		if err != nil {
			_ = c.Close()
			return retry.RetryableError(fmt.Errorf("broker channel: %w", err))
		}
		if err := cch.Confirm(false); err != nil {
			_ = c.Close()
			return retry.RetryableError(fmt.Errorf("broker confirm mode: %w", err))
		}
		if s.setup != nil {
			if err := s.setup(cch); err != nil {
				_ = c.Close()
				return fmt.Errorf("broker setup: %w", err)
			}
		}
		conn, ch = c, cch
		s.log.Info("broker connected", zap.Int("attempt", attempt))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return conn, ch, nil
}
