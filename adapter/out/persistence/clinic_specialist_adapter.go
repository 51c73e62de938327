package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clinic_server/core/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SpecialistAdapter implements out.SpecialistRepository using PostgreSQL.
type SpecialistAdapter struct {
	db *sqlx.DB
}

// NewSpecialistAdapter creates a new SpecialistAdapter.
func NewSpecialistAdapter(db *sqlx.DB) *SpecialistAdapter {
	return &SpecialistAdapter{db: db}
}

type specialistRow struct {
	ID               uuid.UUID      `db:"id"`
	Name             string         `db:"name"`
	GoogleCalendarID sql.NullString `db:"google_calendar_id"`
	Treatments       pq.StringArray `db:"treatments"`
	Active           bool           `db:"active"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r *specialistRow) toEntity() *domain.Specialist {
	s := &domain.Specialist{
		ID:         r.ID,
		Name:       r.Name,
		Treatments: []string(r.Treatments),
		Active:     r.Active,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.GoogleCalendarID.Valid {
		s.GoogleCalendarID = r.GoogleCalendarID.String
	}
	return s
}

// GetByID gets a specialist by ID.
func (a *SpecialistAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Specialist, error) {
	var row specialistRow
	err := a.db.QueryRowxContext(ctx, `SELECT * FROM specialists WHERE id = $1`, id).StructScan(&row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toEntity(), nil
}

// GetByCalendarID gets the specialist owning the given Google calendar.
func (a *SpecialistAdapter) GetByCalendarID(ctx context.Context, calendarID string) (*domain.Specialist, error) {
	var row specialistRow
	err := a.db.QueryRowxContext(ctx, `SELECT * FROM specialists WHERE google_calendar_id = $1`, calendarID).StructScan(&row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toEntity(), nil
}

// List returns specialists ordered by name.
func (a *SpecialistAdapter) List(ctx context.Context, activeOnly bool) ([]*domain.Specialist, error) {
	var rows []specialistRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT * FROM specialists
		WHERE NOT $1 OR active
		ORDER BY name ASC`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list specialists: %w", err)
	}

	specialists := make([]*domain.Specialist, 0, len(rows))
	for i := range rows {
		specialists = append(specialists, rows[i].toEntity())
	}
	return specialists, nil
}

// Create inserts a new specialist.
func (a *SpecialistAdapter) Create(ctx context.Context, s *domain.Specialist) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO specialists (id, name, google_calendar_id, treatments, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`,
		s.ID, s.Name, nullString(s.GoogleCalendarID), pq.Array(s.Treatments), s.Active)
	if err != nil {
		return fmt.Errorf("insert specialist: %w", err)
	}
	return nil
}

// Update replaces a specialist record.
func (a *SpecialistAdapter) Update(ctx context.Context, s *domain.Specialist) error {
	res, err := a.db.ExecContext(ctx, `
		UPDATE specialists SET
			name = $2, google_calendar_id = $3, treatments = $4, active = $5,
			updated_at = NOW()
		WHERE id = $1`,
		s.ID, s.Name, nullString(s.GoogleCalendarID), pq.Array(s.Treatments), s.Active)
	if err != nil {
		return fmt.Errorf("update specialist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a specialist.
func (a *SpecialistAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM specialists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete specialist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
