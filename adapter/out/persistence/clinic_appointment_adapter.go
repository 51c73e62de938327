package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clinic_server/core/domain"

	"github.com/jmoiron/sqlx"
)

// AppointmentAdapter implements out.AppointmentRepository using PostgreSQL.
// It is the write-through cache behind the reconciliation engine: remote
// events land here keyed by google_event_id, locally created appointments by
// their own id.
type AppointmentAdapter struct {
	db *sqlx.DB
}

// NewAppointmentAdapter creates a new AppointmentAdapter.
func NewAppointmentAdapter(db *sqlx.DB) *AppointmentAdapter {
	return &AppointmentAdapter{db: db}
}

// appointmentRow represents the database row for an appointment.
type appointmentRow struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	StartAt       time.Time      `db:"start_at"`
	EndAt         time.Time      `db:"end_at"`
	SpecialistID  sql.NullString `db:"specialist_id"`
	CalendarID    string         `db:"calendar_id"`
	PatientName   sql.NullString `db:"patient_name"`
	PatientPhone  sql.NullString `db:"patient_phone"`
	Description   sql.NullString `db:"description"`
	Status        string         `db:"status"`
	GoogleEventID sql.NullString `db:"google_event_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r *appointmentRow) toEntity() *domain.Appointment {
	appt := &domain.Appointment{
		ID:         r.ID,
		Title:      r.Title,
		Start:      r.StartAt,
		End:        r.EndAt,
		CalendarID: r.CalendarID,
		Status:     domain.AppointmentStatus(r.Status),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}

	if r.SpecialistID.Valid {
		s := r.SpecialistID.String
		appt.SpecialistID = &s
	}
	if r.PatientName.Valid {
		appt.PatientName = r.PatientName.String
	}
	if r.PatientPhone.Valid {
		appt.PatientPhone = r.PatientPhone.String
	}
	if r.Description.Valid {
		appt.Description = r.Description.String
	}
	if r.GoogleEventID.Valid {
		appt.GoogleEventID = r.GoogleEventID.String
	}

	return appt
}

func toRowArgs(appt *domain.Appointment) []any {
	return []any{
		appt.ID,
		appt.Title,
		appt.Start,
		appt.End,
		nullString(derefOrEmpty(appt.SpecialistID)),
		appt.CalendarID,
		nullString(appt.PatientName),
		nullString(appt.PatientPhone),
		nullString(appt.Description),
		string(appt.Status),
		nullString(appt.GoogleEventID),
	}
}

// GetByID gets an appointment by its identifier. The google event ID doubles
// as the identifier for synced appointments, so both columns are checked.
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	query := `SELECT * FROM appointments WHERE id = $1 OR google_event_id = $1 LIMIT 1`

	var row appointmentRow
	err := a.db.QueryRowxContext(ctx, query, id).StructScan(&row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return row.toEntity(), nil
}

// FetchInRange returns appointments intersecting the window, ordered by start
// time. Intervals are half-open, so an appointment ending exactly at the
// window start is excluded.
func (a *AppointmentAdapter) FetchInRange(ctx context.Context, window domain.AppointmentWindow) ([]*domain.Appointment, error) {
	query := `
		SELECT * FROM appointments
		WHERE start_at < $1 AND end_at > $2
		  AND ($3 = '' OR calendar_id = $3)
		ORDER BY start_at ASC`

	var rows []appointmentRow
	err := a.db.SelectContext(ctx, &rows, query, window.End, window.Start, window.CalendarID)
	if err != nil {
		return nil, fmt.Errorf("fetch appointments in range: %w", err)
	}

	appointments := make([]*domain.Appointment, 0, len(rows))
	for i := range rows {
		appointments = append(appointments, rows[i].toEntity())
	}
	return appointments, nil
}

const upsertByEventSQL = `
	INSERT INTO appointments (
		id, title, start_at, end_at, specialist_id, calendar_id,
		patient_name, patient_phone, description, status, google_event_id,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	ON CONFLICT (google_event_id) WHERE google_event_id IS NOT NULL
	DO UPDATE SET
		title = EXCLUDED.title,
		start_at = EXCLUDED.start_at,
		end_at = EXCLUDED.end_at,
		specialist_id = EXCLUDED.specialist_id,
		calendar_id = EXCLUDED.calendar_id,
		patient_name = EXCLUDED.patient_name,
		patient_phone = EXCLUDED.patient_phone,
		description = EXCLUDED.description,
		status = EXCLUDED.status,
		updated_at = NOW()`

const upsertByIDSQL = `
	INSERT INTO appointments (
		id, title, start_at, end_at, specialist_id, calendar_id,
		patient_name, patient_phone, description, status, google_event_id,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	ON CONFLICT (id)
	DO UPDATE SET
		title = EXCLUDED.title,
		start_at = EXCLUDED.start_at,
		end_at = EXCLUDED.end_at,
		specialist_id = EXCLUDED.specialist_id,
		calendar_id = EXCLUDED.calendar_id,
		patient_name = EXCLUDED.patient_name,
		patient_phone = EXCLUDED.patient_phone,
		description = EXCLUDED.description,
		status = EXCLUDED.status,
		google_event_id = EXCLUDED.google_event_id,
		updated_at = NOW()`

// Upsert inserts or replaces each appointment. Synced events conflict on
// google_event_id so repeated reconciliation runs stay idempotent.
func (a *AppointmentAdapter) Upsert(ctx context.Context, events []*domain.Appointment) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	for _, appt := range events {
		query := upsertByIDSQL
		if appt.GoogleEventID != "" {
			query = upsertByEventSQL
		}
		if _, err := tx.ExecContext(ctx, query, toRowArgs(appt)...); err != nil {
			return fmt.Errorf("upsert appointment %s: %w", appt.ID, err)
		}
	}

	return tx.Commit()
}

const overlapSQL = `
	SELECT * FROM appointments
	WHERE calendar_id = $1
	  AND status != 'cancelled'
	  AND start_at < $2 AND end_at > $3
	  AND id != $4 AND (google_event_id IS NULL OR google_event_id != $4)
	ORDER BY start_at ASC`

// FindOverlapping returns non-cancelled appointments on the calendar whose
// [start_at, end_at) interval overlaps [start, end). excludeID skips the
// appointment being rescheduled.
func (a *AppointmentAdapter) FindOverlapping(ctx context.Context, calendarID string, start, end time.Time, excludeID string) ([]*domain.Appointment, error) {
	var rows []appointmentRow
	err := a.db.SelectContext(ctx, &rows, overlapSQL, calendarID, end, start, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find overlapping appointments: %w", err)
	}

	appointments := make([]*domain.Appointment, 0, len(rows))
	for i := range rows {
		appointments = append(appointments, rows[i].toEntity())
	}
	return appointments, nil
}

// CreateChecked runs the overlap check and the insert in one transaction.
// When the slot is taken it returns the colliding appointment and writes
// nothing.
func (a *AppointmentAdapter) CreateChecked(ctx context.Context, appt *domain.Appointment) (*domain.Appointment, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create tx: %w", err)
	}
	defer tx.Rollback()

	var row appointmentRow
	err = tx.QueryRowxContext(ctx, `
		SELECT * FROM appointments
		WHERE calendar_id = $1
		  AND status != 'cancelled'
		  AND start_at < $2 AND end_at > $3
		ORDER BY start_at ASC
		LIMIT 1
		FOR UPDATE`,
		appt.CalendarID, appt.End, appt.Start).StructScan(&row)
	if err == nil {
		return row.toEntity(), nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check slot: %w", err)
	}

	query := upsertByIDSQL
	if appt.GoogleEventID != "" {
		query = upsertByEventSQL
	}
	if _, err := tx.ExecContext(ctx, query, toRowArgs(appt)...); err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create tx: %w", err)
	}
	return nil, nil
}

// Update replaces the mutable fields of an appointment.
func (a *AppointmentAdapter) Update(ctx context.Context, appt *domain.Appointment) error {
	query := `
		UPDATE appointments SET
			title = $2,
			start_at = $3,
			end_at = $4,
			specialist_id = $5,
			calendar_id = $6,
			patient_name = $7,
			patient_phone = $8,
			description = $9,
			status = $10,
			google_event_id = $11,
			updated_at = NOW()
		WHERE id = $1 OR google_event_id = $1`

	args := append([]any{appt.ID}, toRowArgs(appt)[1:]...)
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID removes an appointment.
func (a *AppointmentAdapter) DeleteByID(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1 OR google_event_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
