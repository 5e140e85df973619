package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is a clinician account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Specialty    string    `json:"specialty"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session binds one refresh token jti to a user. Rotation revokes the
// presented session and creates a fresh one.
type Session struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	JTI       string     `json:"jti"`
	ExpiresAt time.Time  `json:"expires_at"`
	IsRevoked bool       `json:"is_revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// LoginAttempt is the per-(username, ip) throttle row.
type LoginAttempt struct {
	ID            uuid.UUID
	Username      string
	IP            string
	FailedCount   int
	FirstFailedAt time.Time
	BlockedUntil  *time.Time
}

// TokenPair is the login/refresh response.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Specialty string `json:"specialty"`
}
