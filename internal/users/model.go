package users

import "time"

// User is a call-center agent account.
//
// Invariants:
// - Email is unique (enforced by the store).
// - PhoneNumber is the number this agent answers inbound calls on; it should
//   be unique per active agent in practice, though not enforced.
// - RefreshToken is a single slot holding the latest issued refresh token;
//   issuing a new one implicitly invalidates the prior one.
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	PhoneNumber  string    `json:"phoneNumber" db:"phone_number"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// ClientIdentity is the Twilio Client identity this agent's browser device
// registers under. Dial verbs targeting the agent must use the same value
// as the voice access token grant.
func (u User) ClientIdentity() string {
	return "agent_" + u.ID
}
