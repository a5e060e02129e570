package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Role names. Keep these stable; they are part of the auth contract.
// The first registered user becomes admin; everyone after is an agent.
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

// Claims are the only supported JWT claims shape for this service.
// Refresh tokens carry the user id only; access tokens add the role so the
// HTTP layer can authorize without a store round-trip.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"token_type"`
}
