package out

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// TokenProvider resolves the Google access token to use for a request.
// A nil token with a nil error means the user has no calendar connection and
// the caller should operate on local data only.
type TokenProvider interface {
	ResolveToken(ctx context.Context, userID uuid.UUID, sessionToken string) (*oauth2.Token, error)
}
