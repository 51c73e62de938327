package in

import (
	"context"

	"clinic_server/core/domain"

	"github.com/google/uuid"
)

// GoogleAuthService drives the Google Calendar OAuth connection flow.
type GoogleAuthService interface {
	// AuthURL returns the consent URL to redirect the user to.
	AuthURL(state string) string
	// HandleCallback exchanges the authorization code and stores the grant.
	HandleCallback(ctx context.Context, userID uuid.UUID, code string) (*domain.CalendarCredential, error)
	// Status returns the user's connection state, nil when never connected.
	Status(ctx context.Context, userID uuid.UUID) (*domain.CalendarCredential, error)
	// Disconnect drops the stored grant.
	Disconnect(ctx context.Context, userID uuid.UUID) error
}
