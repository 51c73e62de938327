package out

import (
	"context"
	"errors"
	"time"

	"clinic_server/core/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// AppointmentRepository is the local appointment store. Upserts are keyed by
// the remote event identifier so reconciliation runs are replay-safe.
type AppointmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Appointment, error)
	// FetchInRange returns appointments whose [start,end) interval intersects
	// the window. An empty CalendarID matches every calendar.
	FetchInRange(ctx context.Context, window domain.AppointmentWindow) ([]*domain.Appointment, error)
	// Upsert inserts or replaces each appointment, keyed by google_event_id
	// when present and by id otherwise.
	Upsert(ctx context.Context, events []*domain.Appointment) error
	// FindOverlapping returns non-cancelled appointments on the calendar whose
	// interval overlaps [start,end), excluding excludeID (the appointment
	// being edited). Result is ordered by start time.
	FindOverlapping(ctx context.Context, calendarID string, start, end time.Time, excludeID string) ([]*domain.Appointment, error)
	// CreateChecked performs the overlap check and the insert inside a single
	// transaction; it returns the colliding appointment instead of writing
	// when the slot is taken.
	CreateChecked(ctx context.Context, appt *domain.Appointment) (*domain.Appointment, error)
	Update(ctx context.Context, appt *domain.Appointment) error
	DeleteByID(ctx context.Context, id string) error
}

// PatientRepository persists patient contact records.
type PatientRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Patient, error)
	List(ctx context.Context, search string, limit, offset int) ([]*domain.Patient, int, error)
	// FindCollision reports which of name/phone already exist on a record
	// other than excludeID.
	FindCollision(ctx context.Context, name, phone string, excludeID uuid.UUID) (domain.PatientCollision, error)
	Create(ctx context.Context, p *domain.Patient) error
	Update(ctx context.Context, p *domain.Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SpecialistRepository persists the provider roster.
type SpecialistRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Specialist, error)
	GetByCalendarID(ctx context.Context, calendarID string) (*domain.Specialist, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Specialist, error)
	Create(ctx context.Context, s *domain.Specialist) error
	Update(ctx context.Context, s *domain.Specialist) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CredentialRepository stores Google OAuth grants.
type CredentialRepository interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*domain.CalendarCredential, error)
	Save(ctx context.Context, cred *domain.CalendarCredential) error
	UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error
	MarkDisconnected(ctx context.Context, id int64) error
}

// AuditEvent is a single entry in the booking/sync trail.
type AuditEvent struct {
	Type          string         `json:"type"`
	UserID        string         `json:"user_id,omitempty"`
	AppointmentID string         `json:"appointment_id,omitempty"`
	CalendarID    string         `json:"calendar_id,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
	At            time.Time      `json:"at"`
}

// AuditRepository records booking and sync events. Writes are best-effort;
// callers must not fail their operation on audit errors.
type AuditRepository interface {
	Record(ctx context.Context, ev *AuditEvent) error
	ListRecent(ctx context.Context, limit int) ([]*AuditEvent, error)
}
