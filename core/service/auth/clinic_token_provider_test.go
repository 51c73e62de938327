package auth

import (
	"context"
	"testing"
	"time"

	"clinic_server/core/domain"
	"clinic_server/core/port/out"
	"clinic_server/pkg/apperr"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type fakeCredentials struct {
	cred         *domain.CalendarCredential
	err          error
	disconnected []int64
}

func (f *fakeCredentials) GetByUser(_ context.Context, _ uuid.UUID) (*domain.CalendarCredential, error) {
	return f.cred, f.err
}

func (f *fakeCredentials) Save(_ context.Context, _ *domain.CalendarCredential) error { return nil }

func (f *fakeCredentials) UpdateTokens(_ context.Context, _ int64, _, _ string, _ time.Time) error {
	return nil
}

func (f *fakeCredentials) MarkDisconnected(_ context.Context, id int64) error {
	f.disconnected = append(f.disconnected, id)
	return nil
}

func newProvider(creds *fakeCredentials) *TokenProviderService {
	return NewTokenProviderService(creds, &oauth2.Config{ClientID: "id", ClientSecret: "secret"})
}

func TestResolveTokenSessionFastPath(t *testing.T) {
	// A session-cached token wins without touching the store.
	svc := newProvider(&fakeCredentials{err: out.ErrNotFound})

	token, err := svc.ResolveToken(context.Background(), uuid.New(), "session-access-token")
	if err != nil {
		t.Fatalf("ResolveToken() error = %v", err)
	}
	if token == nil || token.AccessToken != "session-access-token" {
		t.Errorf("expected the session token, got %+v", token)
	}
}

func TestResolveTokenNoCredential(t *testing.T) {
	svc := newProvider(&fakeCredentials{err: out.ErrNotFound})

	token, err := svc.ResolveToken(context.Background(), uuid.New(), "")
	if err != nil {
		t.Fatalf("missing credential must mean local-only mode, got %v", err)
	}
	if token != nil {
		t.Errorf("expected nil token, got %+v", token)
	}
}

func TestResolveTokenDisconnectedCredential(t *testing.T) {
	svc := newProvider(&fakeCredentials{cred: &domain.CalendarCredential{
		ID:          1,
		AccessToken: "tok",
		IsConnected: false,
	}})

	token, err := svc.ResolveToken(context.Background(), uuid.New(), "")
	if err != nil || token != nil {
		t.Errorf("disconnected credential must mean local-only mode, got token=%v err=%v", token, err)
	}
}

func TestResolveTokenFreshCredential(t *testing.T) {
	svc := newProvider(&fakeCredentials{cred: &domain.CalendarCredential{
		ID:           1,
		AccessToken:  "stored-token",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		IsConnected:  true,
	}})

	token, err := svc.ResolveToken(context.Background(), uuid.New(), "")
	if err != nil {
		t.Fatalf("ResolveToken() error = %v", err)
	}
	if token == nil || token.AccessToken != "stored-token" {
		t.Errorf("expected the stored token, got %+v", token)
	}
	if token.RefreshToken != "refresh" {
		t.Errorf("refresh token not carried, got %q", token.RefreshToken)
	}
}

func TestResolveTokenExpiredWithoutRefreshToken(t *testing.T) {
	svc := newProvider(&fakeCredentials{cred: &domain.CalendarCredential{
		ID:          1,
		AccessToken: "stale",
		ExpiresAt:   time.Now().Add(-time.Hour),
		IsConnected: true,
	}})

	_, err := svc.ResolveToken(context.Background(), uuid.New(), "")
	if !apperr.IsCode(err, apperr.CodeReauthRequired) {
		t.Errorf("expected REAUTH_REQUIRED, got %v", err)
	}
}

func TestIsTokenRevoked(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{`oauth2: "invalid_grant" "Bad Request"`, true},
		{"Token has been expired or revoked.", true},
		{"connection refused", false},
	}

	for _, tt := range tests {
		if got := isTokenRevoked(errMsg(tt.msg)); got != tt.want {
			t.Errorf("isTokenRevoked(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

type errMsg string

func (e errMsg) Error() string { return string(e) }
