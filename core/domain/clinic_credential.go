package domain

import (
	"time"

	"github.com/google/uuid"
)

// CalendarCredential stores the Google OAuth grant for a clinic user.
// The access token is short-lived; the refresh token lets the token provider
// mint new access tokens until the grant is revoked.
type CalendarCredential struct {
	ID           int64     `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsConnected  bool      `json:"is_connected"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NeedsRefresh reports whether the access token is expired or about to expire.
func (c *CalendarCredential) NeedsRefresh(within time.Duration) bool {
	return time.Until(c.ExpiresAt) < within
}
