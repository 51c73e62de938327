package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clinic_server/core/domain"
	"clinic_server/pkg/crypto"
	"clinic_server/pkg/logger"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CredentialAdapter implements out.CredentialRepository using PostgreSQL.
// OAuth tokens are encrypted at rest when an encryption key is configured.
type CredentialAdapter struct {
	db                *sqlx.DB
	encryptionEnabled bool
}

// NewCredentialAdapter creates a new CredentialAdapter.
func NewCredentialAdapter(db *sqlx.DB) *CredentialAdapter {
	err := crypto.Init()
	encryptionEnabled := err == nil
	if !encryptionEnabled {
		logger.Warn("token encryption disabled: %v", err)
	}

	return &CredentialAdapter{
		db:                db,
		encryptionEnabled: encryptionEnabled,
	}
}

func (a *CredentialAdapter) encryptToken(token string) string {
	if !a.encryptionEnabled || token == "" {
		return token
	}
	encrypted, err := crypto.Encrypt(token)
	if err != nil {
		logger.Warn("failed to encrypt token: %v", err)
		return token
	}
	return encrypted
}

func (a *CredentialAdapter) decryptToken(token string) string {
	if token == "" || !crypto.IsEncrypted(token) {
		return token
	}
	decrypted, err := crypto.Decrypt(token)
	if err != nil {
		logger.Warn("failed to decrypt token: %v", err)
		return token
	}
	return decrypted
}

type credentialRow struct {
	ID           int64          `db:"id"`
	UserID       uuid.UUID      `db:"user_id"`
	Email        sql.NullString `db:"email"`
	AccessToken  sql.NullString `db:"access_token"`
	RefreshToken sql.NullString `db:"refresh_token"`
	ExpiresAt    sql.NullTime   `db:"expires_at"`
	IsConnected  bool           `db:"is_connected"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (a *CredentialAdapter) toEntity(r *credentialRow) *domain.CalendarCredential {
	cred := &domain.CalendarCredential{
		ID:          r.ID,
		UserID:      r.UserID,
		IsConnected: r.IsConnected,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if r.Email.Valid {
		cred.Email = r.Email.String
	}
	if r.AccessToken.Valid {
		cred.AccessToken = a.decryptToken(r.AccessToken.String)
	}
	if r.RefreshToken.Valid {
		cred.RefreshToken = a.decryptToken(r.RefreshToken.String)
	}
	if r.ExpiresAt.Valid {
		cred.ExpiresAt = r.ExpiresAt.Time
	}

	return cred
}

// GetByUser returns the user's Google credential, or ErrNotFound when the
// account was never connected.
func (a *CredentialAdapter) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.CalendarCredential, error) {
	var row credentialRow
	err := a.db.QueryRowxContext(ctx, `
		SELECT * FROM calendar_credentials
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`, userID).StructScan(&row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a.toEntity(&row), nil
}

// Save inserts or replaces the credential for a user. One credential per
// user; reconnecting overwrites the previous grant.
func (a *CredentialAdapter) Save(ctx context.Context, cred *domain.CalendarCredential) error {
	err := a.db.QueryRowxContext(ctx, `
		INSERT INTO calendar_credentials (
			user_id, email, access_token, refresh_token, expires_at,
			is_connected, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			is_connected = EXCLUDED.is_connected,
			updated_at = NOW()
		RETURNING id`,
		cred.UserID, nullString(cred.Email),
		nullString(a.encryptToken(cred.AccessToken)),
		nullString(a.encryptToken(cred.RefreshToken)),
		cred.ExpiresAt, cred.IsConnected).Scan(&cred.ID)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// UpdateTokens stores refreshed tokens. An empty refresh token keeps the
// stored one, since Google omits it on refresh responses.
func (a *CredentialAdapter) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	res, err := a.db.ExecContext(ctx, `
		UPDATE calendar_credentials SET
			access_token = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			expires_at = $4,
			is_connected = TRUE,
			updated_at = NOW()
		WHERE id = $1`,
		id, a.encryptToken(accessToken), a.encryptToken(refreshToken), expiresAt)
	if err != nil {
		return fmt.Errorf("update credential tokens: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDisconnected flags a credential whose refresh token was revoked.
func (a *CredentialAdapter) MarkDisconnected(ctx context.Context, id int64) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE calendar_credentials SET is_connected = FALSE, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark credential disconnected: %w", err)
	}
	return nil
}
