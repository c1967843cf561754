package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService issues and validates the signed tokens used to authenticate API
// requests. Implementations must keep access and refresh tokens distinct: a
// token issued by GenerateToken is only accepted by ValidateToken, and a
// token issued by GenerateRefreshToken only by ValidateRefreshToken.
type JWTService interface {
	// GenerateToken issues a signed access token for the given user.
	GenerateToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateToken checks an access token and returns its claims, or one of
	// the package sentinel errors (ErrExpiredToken, ErrInvalidToken, ...)
	// describing why validation failed.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)

	// GenerateRefreshToken issues a signed refresh token for the given user.
	// Refresh tokens live longer than access tokens and are exchanged for a
	// fresh token pair rather than presented on API requests.
	GenerateRefreshToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateRefreshToken checks a refresh token and returns its claims, or
	// one of the refresh sentinel errors (ErrExpiredRefreshToken,
	// ErrInvalidRefreshToken, ErrWrongTokenType).
	ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of a token, decoded from the JWT claims.
type Claims struct {
	// UserID identifies the user the token was issued for.
	UserID uuid.UUID `json:"uid,omitempty"`

	// TokenType is "access" or "refresh". Validation rejects tokens
	// presented in the wrong slot, so callers rarely need to inspect it.
	TokenType string `json:"type,omitempty"`

	// Registered JWT claims carried through from the token.
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
