// Package grpcserver exposes the Identity gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	api "github.com/and161185/authsync/internal/api/identityv1"
	"github.com/and161185/authsync/internal/errs"
	"github.com/and161185/authsync/internal/model"
	"github.com/and161185/authsync/internal/service"
)

// PublicKeySource exposes the verification half of the signing key.
type PublicKeySource interface {
	Algorithm() string
	PublicKeyPEM() ([]byte, error)
}

// Server wires services into gRPC handlers.
type Server struct {
	api.UnimplementedIdentityServer
	auth   service.AuthService
	tokens service.TokenService
	keys   PublicKeySource
	log    *zap.Logger
}

var _ api.IdentityServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(auth service.AuthService, tokens service.TokenService, keys PublicKeySource, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, tokens: tokens, keys: keys, log: log}
}

// --- Accounts ---

// Register creates a new user account.
func (s *Server) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty username/password")
	}
	userID, err := s.auth.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus("register", err)
	}
	return &api.RegisterResponse{UserID: userID}, nil
}

func remoteIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// Login authenticates a user and returns a token pair.
func (s *Server) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	pair, u, err := s.auth.LoginWithIP(ctx, req.Username, req.Password, remoteIP(ctx))
	if err != nil {
		return nil, s.toStatus("login", err)
	}
	return &api.LoginResponse{UserID: u.ID.String(), Tokens: toAPIPair(pair)}, nil
}

// UpdateEmail changes the caller's email. Requires AuthUnary.
func (s *Server) UpdateEmail(ctx context.Context, req *api.UpdateEmailRequest) (*api.UpdateEmailResponse, error) {
	userID, ok := UserIDFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	if req.Email == "" {
		return nil, status.Error(codes.InvalidArgument, "empty email")
	}
	u, err := s.auth.UpdateEmail(ctx, userID, req.Email)
	if err != nil {
		return nil, s.toStatus("update email", err)
	}
	return &api.UpdateEmailResponse{UserID: u.ID.String(), Email: u.Email}, nil
}

// --- Tokens ---

// Refresh rotates a refresh token.
func (s *Server) Refresh(ctx context.Context, req *api.RefreshRequest) (*api.RefreshResponse, error) {
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "empty refresh token")
	}
	pair, err := s.tokens.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus("refresh", err)
	}
	return &api.RefreshResponse{Tokens: toAPIPair(pair)}, nil
}

// Verify checks an access token on behalf of another service.
func (s *Server) Verify(ctx context.Context, req *api.VerifyRequest) (*api.VerifyResponse, error) {
	if req.AccessToken == "" {
		return nil, status.Error(codes.InvalidArgument, "empty access token")
	}
	cl, err := s.tokens.VerifyAccess(ctx, req.AccessToken)
	if err != nil {
		return nil, s.toStatus("verify", err)
	}
	return &api.VerifyResponse{Subject: cl.Subject, TokenID: cl.ID, ExpiresAt: cl.ExpiresAt.Time}, nil
}

// Logout revokes the given tokens.
func (s *Server) Logout(ctx context.Context, req *api.LogoutRequest) (*api.LogoutResponse, error) {
	if req.AccessToken == "" && req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "no tokens")
	}
	if err := s.tokens.Logout(ctx, req.AccessToken, req.RefreshToken); err != nil {
		return nil, s.toStatus("logout", err)
	}
	return &api.LogoutResponse{}, nil
}

// PublicKey returns the verification key so other services can check tokens locally.
func (s *Server) PublicKey(context.Context, *api.PublicKeyRequest) (*api.PublicKeyResponse, error) {
	pemBytes, err := s.keys.PublicKeyPEM()
	if err != nil {
		s.log.Error("public key", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal")
	}
	return &api.PublicKeyResponse{Algorithm: s.keys.Algorithm(), PEM: string(pemBytes)}, nil
}

func toAPIPair(p model.TokenPair) api.TokenPair {
	return api.TokenPair{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

// toStatus maps service errors onto gRPC codes. Token failures carry only
// their reason; internal error text is logged, never returned.
func (s *Server) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, "invalid argument")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "bad credentials")
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errs.IsDependencyError(err):
		s.log.Warn(op+" dependency failure", zap.Error(err))
		return status.Error(codes.Unavailable, string(errs.ReasonUnavailable))
	case errs.IsClientError(err):
		return status.Error(codes.Unauthenticated, string(errs.ReasonOf(err)))
	default:
		s.log.Error(op, zap.Error(err))
		return status.Error(codes.Internal, "internal")
	}
}
