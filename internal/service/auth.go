// Package service contains application services for accounts and tokens.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/authsync/internal/crypto"
	"github.com/and161185/authsync/internal/errs"
	"github.com/and161185/authsync/internal/events"
	"github.com/and161185/authsync/internal/limiter"
	"github.com/and161185/authsync/internal/model"
	"github.com/and161185/authsync/internal/repository"
)

// AuthService defines account operations.
type AuthService interface {
	// Register creates a new user and announces it.
	Register(ctx context.Context, username, email, password string) (userID string, err error)
	// LoginWithIP applies rate-limiting, authenticates the user and issues a token pair.
	LoginWithIP(ctx context.Context, username, password string, ip string) (tokens model.TokenPair, user model.User, err error)
	// UpdateEmail changes the user's email and announces the change.
	UpdateEmail(ctx context.Context, userID uuid.UUID, email string) (*model.User, error)
}

// EventPublisher delivers a user event to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.UserEvent) error
}

// PublishPolicy bounds retries of a failed publish.
type PublishPolicy struct {
	MaxRetries uint64
	Base       time.Duration
}

type AuthServiceImpl struct {
	users  repository.UserRepository
	tokens TokenService
	lim    limiter.Limiter
	pub    EventPublisher
	hasher *pkgcrypto.Hasher
	policy PublishPolicy
	log    *zap.Logger
	now    func() time.Time
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens TokenService,
	lim limiter.Limiter,
	pub EventPublisher,
	policy PublishPolicy,
	log *zap.Logger,
) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	if policy.Base <= 0 {
		policy.Base = 100 * time.Millisecond
	}
	return &AuthServiceImpl{
		users: users, tokens: tokens, lim: lim, pub: pub,
		hasher: pkgcrypto.NewHasher(pkgcrypto.DefaultParams),
		policy: policy, log: log, now: time.Now,
	}
}

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, username, email, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	}
	if err := validateEmail(email); err != nil {
		return "", err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	salt, err := s.hasher.NewSalt()
	if err != nil {
		return "", err
	}

	u := &model.User{
		ID:       uid,
		Username: username,
		Email:    email,
		PwdHash:  s.hasher.Hash(password, salt),
		Salt:     salt,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	// user.updated is stamped from the same store clock
	at := u.CreatedAt
	if at.IsZero() {
		at = s.now()
	}
	s.announce(ctx, events.UserCreated, u, at)
	return uid.String(), nil
}

// LoginWithIP authenticates with rate limiting by (username, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, username, password, ip string) (model.TokenPair, model.User, error) {
	key := limiter.NewKey(username, ip)

	// Check if requests are currently allowed for this (user, ip).
	allowed, _, err := s.lim.Allow(ctx, key)
	if err != nil {
		return model.TokenPair{}, model.User{}, err
	}
	if !allowed {
		return model.TokenPair{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		s.hasher.VerifyUnknown(password)
	}
	if err != nil || !s.hasher.Verify(password, u.Salt, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, key); ferr == nil && blocked {
			return model.TokenPair{}, model.User{}, errs.ErrRateLimited
		}
		// unknown user and wrong password look the same
		return model.TokenPair{}, model.User{}, errs.ErrUnauthorized
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, key)

	pair, err := s.tokens.Issue(ctx, u.ID.String())
	if err != nil {
		return model.TokenPair{}, model.User{}, err
	}
	return pair, *u, nil
}

// UpdateEmail stores a new email for userID.
func (s *AuthServiceImpl) UpdateEmail(ctx context.Context, userID uuid.UUID, email string) (*model.User, error) {
	if userID == uuid.Nil || email == "" {
		return nil, fmt.Errorf("%w: userID/email", errs.ErrValidation)
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	u, err := s.users.UpdateEmail(ctx, userID, email)
	if err != nil {
		return nil, err
	}
	at := u.UpdatedAt
	if at.IsZero() {
		at = s.now()
	}
	s.announce(ctx, events.UserUpdated, u, at)
	return u, nil
}

// announce publishes a user event with bounded exponential backoff. The
// account change is already committed, so a final failure is only logged.
func (s *AuthServiceImpl) announce(ctx context.Context, t events.Type, u *model.User, at time.Time) {
	if s.pub == nil {
		return
	}
	ev, err := events.NewUserEvent(t, u, at)
	if err != nil {
		s.log.Error("build user event", zap.Error(err))
		return
	}
	log := s.log.With(
		zap.String("event_id", ev.ID.String()),
		zap.String("event_type", string(t)),
		zap.String("user_id", u.ID.String()),
	)

	b := retry.WithMaxRetries(s.policy.MaxRetries, retry.NewExponential(s.policy.Base))
	attempt := 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := s.pub.Publish(ctx, ev); err != nil {
			if errors.Is(err, errs.ErrDeliveryFailed) {
				log.Warn("publish attempt failed", zap.Int("attempt", attempt), zap.Error(err))
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		log.Error("user event lost", zap.Int("attempts", attempt), zap.Error(err))
	}
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	a, err := mail.ParseAddress(email)
	if err != nil || a.Address != email {
		return fmt.Errorf("%w: email", errs.ErrValidation)
	}
	return nil
}
