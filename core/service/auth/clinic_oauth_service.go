package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"clinic_server/core/domain"
	"clinic_server/core/port/out"
	"clinic_server/pkg/apperr"
	"clinic_server/pkg/httputil"
	"clinic_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

// OAuthService implements in.GoogleAuthService for Google Calendar.
type OAuthService struct {
	credentialRepo out.CredentialRepository
	oauthConfig    *oauth2.Config
}

// NewOAuthService creates a new OAuthService.
func NewOAuthService(credentialRepo out.CredentialRepository, oauthConfig *oauth2.Config) *OAuthService {
	return &OAuthService{
		credentialRepo: credentialRepo,
		oauthConfig:    oauthConfig,
	}
}

// AuthURL returns the consent URL. Offline access with forced approval keeps
// the refresh token coming back on reconnects.
func (s *OAuthService) AuthURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleCallback exchanges the authorization code and stores the grant.
func (s *OAuthService) HandleCallback(ctx context.Context, userID uuid.UUID, code string) (*domain.CalendarCredential, error) {
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.OAuthFailed("google", err)
	}

	email, err := s.fetchEmail(ctx, token)
	if err != nil {
		// The grant still works without the display email.
		logger.WithError(err).Warn("failed to fetch account email")
	}

	cred := &domain.CalendarCredential{
		UserID:       userID,
		Email:        email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		IsConnected:  true,
	}

	if err := s.credentialRepo.Save(ctx, cred); err != nil {
		return nil, apperr.DatabaseError("save calendar credential", err)
	}

	logger.Info("google calendar connected for user %s", userID)
	return cred, nil
}

// Status returns the user's connection state, nil when never connected.
func (s *OAuthService) Status(ctx context.Context, userID uuid.UUID) (*domain.CalendarCredential, error) {
	cred, err := s.credentialRepo.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.DatabaseError("load calendar credential", err)
	}
	return cred, nil
}

// Disconnect drops the stored grant.
func (s *OAuthService) Disconnect(ctx context.Context, userID uuid.UUID) error {
	cred, err := s.credentialRepo.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil
		}
		return apperr.DatabaseError("load calendar credential", err)
	}
	if err := s.credentialRepo.MarkDisconnected(ctx, cred.ID); err != nil {
		return apperr.DatabaseError("disconnect calendar credential", err)
	}
	return nil
}

func (s *OAuthService) fetchEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoEndpoint, nil)
	if err != nil {
		return "", err
	}
	token.SetAuthHeader(req)

	resp, err := httputil.DefaultClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	return info.Email, nil
}
