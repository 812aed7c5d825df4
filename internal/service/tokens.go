package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/authsync/internal/errs"
	"github.com/and161185/authsync/internal/model"
	"github.com/and161185/authsync/internal/revocation"
	"github.com/and161185/authsync/internal/token"
)

// TokenConfig bounds token lifetimes and revocation store calls.
type TokenConfig struct {
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	StoreTimeout     time.Duration
	BlacklistEnabled bool
}

// TokenService issues, verifies, rotates and revokes token pairs.
type TokenService interface {
	Issue(ctx context.Context, subject string) (model.TokenPair, error)
	VerifyAccess(ctx context.Context, raw string) (*token.Claims, error)
	Refresh(ctx context.Context, raw string) (model.TokenPair, error)
	Revoke(ctx context.Context, accessID string, accessExpiresAt time.Time, refreshID string) error
	Logout(ctx context.Context, accessRaw, refreshRaw string) error
}

// TokenServiceImpl is safe for concurrent use; all shared state lives in the store.
type TokenServiceImpl struct {
	codec *token.Codec
	store revocation.Store
	cfg   TokenConfig
	log   *zap.Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService constructs a TokenService.
func NewTokenService(codec *token.Codec, store revocation.Store, cfg TokenConfig, log *zap.Logger) *TokenServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenServiceImpl{codec: codec, store: store, cfg: cfg, log: log}
}

// Issue mints a fresh pair for subject and whitelists the refresh id.
func (s *TokenServiceImpl) Issue(ctx context.Context, subject string) (model.TokenPair, error) {
	if subject == "" {
		return model.TokenPair{}, fmt.Errorf("%w: empty subject", errs.ErrValidation)
	}
	now := s.codec.Now()
	accessID, err := uuid.NewV4()
	if err != nil {
		return model.TokenPair{}, err
	}
	refreshID, err := uuid.NewV4()
	if err != nil {
		return model.TokenPair{}, err
	}

	access, err := s.codec.Encode(token.NewClaims(token.TypeAccess, subject, accessID.String(), now, s.cfg.AccessTTL))
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := s.codec.Encode(token.NewClaims(token.TypeRefresh, subject, refreshID.String(), now, s.cfg.RefreshTTL))
	if err != nil {
		return model.TokenPair{}, err
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.store.Put(ctx, revocation.WhitelistKey(refreshID.String()), s.cfg.RefreshTTL)
	})
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.cfg.AccessTTL).Truncate(time.Second),
		RefreshExpiresAt: now.Add(s.cfg.RefreshTTL).Truncate(time.Second),
	}, nil
}

// VerifyAccess decodes raw and rejects blacklisted ids. When the store
// cannot answer, the token is rejected with errs.ErrUnavailable.
func (s *TokenServiceImpl) VerifyAccess(ctx context.Context, raw string) (*token.Claims, error) {
	cl, err := s.codec.Decode(raw, token.TypeAccess)
	if err != nil {
		return nil, err
	}
	if !s.cfg.BlacklistEnabled {
		return cl, nil
	}
	var revoked bool
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		var e error
		revoked, e = s.store.Exists(ctx, revocation.BlacklistKey(cl.ID))
		return e
	})
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, errs.ErrRevoked
	}
	return cl, nil
}

// Refresh consumes the refresh token's whitelist entry and issues a new
// pair. Of concurrent calls with the same token at most one succeeds.
func (s *TokenServiceImpl) Refresh(ctx context.Context, raw string) (model.TokenPair, error) {
	cl, err := s.codec.Decode(raw, token.TypeRefresh)
	if err != nil {
		return model.TokenPair{}, err
	}
	var live bool
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		var e error
		live, e = s.store.Take(ctx, revocation.WhitelistKey(cl.ID))
		return e
	})
	if err != nil {
		return model.TokenPair{}, err
	}
	if !live {
		return model.TokenPair{}, errs.ErrRevoked
	}

	pair, err := s.Issue(ctx, cl.Subject)
	if err != nil {
		// The old entry is gone; the client has to log in again.
		s.log.Warn("refresh rotation failed after consuming old token",
			zap.String("subject", cl.Subject), zap.Error(err))
		return model.TokenPair{}, err
	}
	return pair, nil
}

// Revoke blacklists the access id for its remaining lifetime and drops the
// refresh id from the whitelist. Repeating it has no further effect.
func (s *TokenServiceImpl) Revoke(ctx context.Context, accessID string, accessExpiresAt time.Time, refreshID string) error {
	if s.cfg.BlacklistEnabled && accessID != "" {
		remaining := accessExpiresAt.Sub(s.codec.Now())
		if remaining > 0 {
			err := s.withTimeout(ctx, func(ctx context.Context) error {
				return s.store.Put(ctx, revocation.BlacklistKey(accessID), remaining)
			})
			if err != nil {
				return err
			}
		}
	}
	if refreshID != "" {
		return s.withTimeout(ctx, func(ctx context.Context) error {
			return s.store.Delete(ctx, revocation.WhitelistKey(refreshID))
		})
	}
	return nil
}

// Logout revokes both tokens of a session. An already expired access token
// needs no blacklist entry; an expired refresh token has no live entry.
func (s *TokenServiceImpl) Logout(ctx context.Context, accessRaw, refreshRaw string) error {
	var (
		accessID  string
		accessExp time.Time
		refreshID string
	)
	if accessRaw != "" {
		cl, err := s.codec.Decode(accessRaw, token.TypeAccess)
		switch {
		case err == nil:
			accessID, accessExp = cl.ID, cl.ExpiresAt.Time
		case !errors.Is(err, errs.ErrExpired):
			return err
		}
	}
	if refreshRaw != "" {
		cl, err := s.codec.Decode(refreshRaw, token.TypeRefresh)
		switch {
		case err == nil:
			refreshID = cl.ID
		case !errors.Is(err, errs.ErrExpired):
			return err
		}
	}
	return s.Revoke(ctx, accessID, accessExp, refreshID)
}

func (s *TokenServiceImpl) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if s.cfg.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StoreTimeout)
		defer cancel()
	}
	err := fn(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, errs.ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("revocation store: %w: %w", errs.ErrUnavailable, err)
	}
	return err
}
