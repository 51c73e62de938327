package persistence

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"clinic_server/core/domain"
	"clinic_server/pkg/crypto"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PatientAdapter implements out.PatientRepository using PostgreSQL. Phone
// numbers are encrypted at rest; a deterministic hash column supports the
// duplicate lookup, since GCM ciphertexts are not comparable.
type PatientAdapter struct {
	db *sqlx.DB
}

// NewPatientAdapter creates a new PatientAdapter.
func NewPatientAdapter(db *sqlx.DB) *PatientAdapter {
	return &PatientAdapter{db: db}
}

type patientRow struct {
	ID        uuid.UUID      `db:"id"`
	Name      string         `db:"name"`
	Phone     sql.NullString `db:"phone"`
	PhoneHash sql.NullString `db:"phone_hash"`
	Email     sql.NullString `db:"email"`
	Notes     sql.NullString `db:"notes"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r *patientRow) toEntity() (*domain.Patient, error) {
	p := &domain.Patient{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if r.Phone.Valid {
		phone, err := crypto.Decrypt(r.Phone.String)
		if err != nil {
			return nil, fmt.Errorf("decrypt patient phone: %w", err)
		}
		p.Phone = phone
	}
	if r.Email.Valid {
		p.Email = r.Email.String
	}
	if r.Notes.Valid {
		p.Notes = r.Notes.String
	}

	return p, nil
}

// phoneHash normalizes the number to digits before hashing so formatting
// differences still collide.
func phoneHash(phone string) string {
	var b strings.Builder
	for _, c := range phone {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// GetByID gets a patient by ID.
func (a *PatientAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Patient, error) {
	var row patientRow
	err := a.db.QueryRowxContext(ctx, `SELECT * FROM patients WHERE id = $1`, id).StructScan(&row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toEntity()
}

// List returns patients matching the search term (name or email), newest
// first, with the total count for pagination.
func (a *PatientAdapter) List(ctx context.Context, search string, limit, offset int) ([]*domain.Patient, int, error) {
	pattern := "%" + strings.TrimSpace(search) + "%"

	var total int
	err := a.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM patients
		WHERE $1 = '%%' OR name ILIKE $1 OR email ILIKE $1`, pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	var rows []patientRow
	err = a.db.SelectContext(ctx, &rows, `
		SELECT * FROM patients
		WHERE $1 = '%%' OR name ILIKE $1 OR email ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}

	patients := make([]*domain.Patient, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toEntity()
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, nil
}

// FindCollision reports which of name/phone already exist on another record.
func (a *PatientAdapter) FindCollision(ctx context.Context, name, phone string, excludeID uuid.UUID) (domain.PatientCollision, error) {
	var collision domain.PatientCollision

	var nameCount int
	err := a.db.GetContext(ctx, &nameCount, `
		SELECT COUNT(*) FROM patients
		WHERE LOWER(name) = LOWER($1) AND id != $2`, strings.TrimSpace(name), excludeID)
	if err != nil {
		return collision, fmt.Errorf("check patient name: %w", err)
	}
	collision.Name = nameCount > 0

	if hash := phoneHash(phone); hash != "" {
		var phoneCount int
		err = a.db.GetContext(ctx, &phoneCount, `
			SELECT COUNT(*) FROM patients
			WHERE phone_hash = $1 AND id != $2`, hash, excludeID)
		if err != nil {
			return collision, fmt.Errorf("check patient phone: %w", err)
		}
		collision.Phone = phoneCount > 0
	}

	return collision, nil
}

// Create inserts a new patient.
func (a *PatientAdapter) Create(ctx context.Context, p *domain.Patient) error {
	encryptedPhone, err := crypto.Encrypt(p.Phone)
	if err != nil {
		return fmt.Errorf("encrypt patient phone: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO patients (id, name, phone, phone_hash, email, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		p.ID, p.Name, nullString(encryptedPhone), nullString(phoneHash(p.Phone)),
		nullString(p.Email), nullString(p.Notes))
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

// Update replaces a patient record.
func (a *PatientAdapter) Update(ctx context.Context, p *domain.Patient) error {
	encryptedPhone, err := crypto.Encrypt(p.Phone)
	if err != nil {
		return fmt.Errorf("encrypt patient phone: %w", err)
	}

	res, err := a.db.ExecContext(ctx, `
		UPDATE patients SET
			name = $2, phone = $3, phone_hash = $4, email = $5, notes = $6,
			updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Name, nullString(encryptedPhone), nullString(phoneHash(p.Phone)),
		nullString(p.Email), nullString(p.Notes))
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a patient.
func (a *PatientAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
