package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService validates the access tokens presented to the review API.
// Tokens are minted by the upstream identity service; GenerateToken exists
// for local development and tests.
type JWTService interface {
	// GenerateToken creates a signed access token for the given owner.
	GenerateToken(ctx context.Context, ownerID uuid.UUID, lifetime time.Duration) (string, error)

	// ValidateToken verifies the signature and time claims of tokenString and
	// returns the owner it was issued for.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the verified content of an access token.
type Claims struct {
	// OwnerID is the user whose review items the token grants access to.
	OwnerID uuid.UUID `json:"uid,omitempty"`

	// TokenType is always "access" for tokens accepted by ValidateToken.
	TokenType string `json:"type,omitempty"`

	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
