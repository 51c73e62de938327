// Package auth resolves Google credentials: the OAuth connection flow and
// the per-request token lookup used by the reconciliation engine.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinic_server/core/port/out"
	"clinic_server/pkg/apperr"
	"clinic_server/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Tokens within this window of expiry are refreshed eagerly, so a request
// does not start with a token that dies mid-flight.
const refreshWindow = 5 * time.Minute

// TokenProviderService implements out.TokenProvider. Resolution order:
// the provider token cached on the login session, then the stored credential
// (refreshed when stale). No credential at all means local-only mode, which
// is not an error.
type TokenProviderService struct {
	credentialRepo out.CredentialRepository
	oauthConfig    *oauth2.Config
}

// NewTokenProviderService creates a new TokenProviderService.
func NewTokenProviderService(credentialRepo out.CredentialRepository, oauthConfig *oauth2.Config) *TokenProviderService {
	return &TokenProviderService{
		credentialRepo: credentialRepo,
		oauthConfig:    oauthConfig,
	}
}

// ResolveToken returns the access token for the user, or nil when the user
// has no calendar connection.
func (s *TokenProviderService) ResolveToken(ctx context.Context, userID uuid.UUID, sessionToken string) (*oauth2.Token, error) {
	// The auth backend attaches the Google access token to fresh login
	// sessions; using it skips a database round trip.
	if sessionToken != "" {
		return &oauth2.Token{AccessToken: sessionToken}, nil
	}

	cred, err := s.credentialRepo.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.DatabaseError("load calendar credential", err)
	}
	if cred == nil || !cred.IsConnected || cred.AccessToken == "" {
		return nil, nil
	}

	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.ExpiresAt,
		TokenType:    "Bearer",
	}

	if !cred.NeedsRefresh(refreshWindow) {
		return token, nil
	}
	if cred.RefreshToken == "" {
		// Expired with nothing to refresh from; the session token path or
		// reauth must take over.
		return nil, apperr.ReauthRequired()
	}

	refreshed, err := s.oauthConfig.TokenSource(ctx, token).Token()
	if err != nil {
		if isTokenRevoked(err) {
			logger.WithContext(ctx).Warn("refresh token revoked for user %s", userID)
			if markErr := s.credentialRepo.MarkDisconnected(ctx, cred.ID); markErr != nil {
				logger.WithError(markErr).Error("failed to mark credential disconnected")
			}
			return nil, apperr.ReauthRequired()
		}
		return nil, apperr.ExternalError("google oauth", err)
	}

	if err := s.credentialRepo.UpdateTokens(ctx, cred.ID, refreshed.AccessToken, refreshed.RefreshToken, refreshed.Expiry); err != nil {
		// The refreshed token is still valid for this request.
		logger.WithError(err).Error("failed to persist refreshed token")
	}

	return refreshed, nil
}

func isTokenRevoked(err error) bool {
	s := err.Error()
	return strings.Contains(s, "invalid_grant") ||
		strings.Contains(s, "Token has been expired or revoked")
}

