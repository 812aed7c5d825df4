package identityv1

import "time"

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID string `json:"userId"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

type LoginResponse struct {
	UserID string    `json:"userId"`
	Tokens TokenPair `json:"tokens"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	Tokens TokenPair `json:"tokens"`
}

type VerifyRequest struct {
	AccessToken string `json:"accessToken"`
}

type VerifyResponse struct {
	Subject   string    `json:"subject"`
	TokenID   string    `json:"tokenId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type LogoutRequest struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type LogoutResponse struct{}

// UpdateEmailRequest requires a bearer access token in metadata.
type UpdateEmailRequest struct {
	Email string `json:"email"`
}

type UpdateEmailResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type PublicKeyRequest struct{}

// PublicKeyResponse lets other services verify tokens locally.
type PublicKeyResponse struct {
	Algorithm string `json:"algorithm"`
	PEM       string `json:"pem"`
}
