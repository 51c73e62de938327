package in

import (
	"context"
	"time"

	"clinic_server/core/domain"

	"github.com/google/uuid"
)

// Session carries the caller's identity and the provider token cached on the
// current login session, when the auth backend attached one.
type Session struct {
	UserID        uuid.UUID
	ProviderToken string
}

// Agenda is the merged view of a time window: remote calendar events unioned
// with local-only appointments. Notice is set at most once per fetch, when
// the calendar connection needs to be re-established.
type Agenda struct {
	Events []*domain.Appointment
	Notice string
}

// ScheduleService is the appointment reconciliation engine's inbound port.
type ScheduleService interface {
	// FetchEvents returns the agenda for the window: remote events merged
	// with local-only appointments, written through to the local store.
	FetchEvents(ctx context.Context, sess *Session, start, end time.Time) (*Agenda, error)
	GetAppointment(ctx context.Context, id string) (*domain.Appointment, error)
	CreateAppointment(ctx context.Context, sess *Session, req *CreateAppointmentRequest) (*domain.Appointment, error)
	UpdateAppointment(ctx context.Context, sess *Session, id string, req *UpdateAppointmentRequest) (*domain.Appointment, error)
	DeleteAppointment(ctx context.Context, sess *Session, id string) error
}

type CreateAppointmentRequest struct {
	Title        string    `json:"title"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	SpecialistID *string   `json:"specialist_id,omitempty"`
	PatientName  string    `json:"patient_name"`
	PatientPhone string    `json:"patient_phone"`
	Notes        string    `json:"notes,omitempty"`
	Status       string    `json:"status,omitempty"`
}

type UpdateAppointmentRequest struct {
	Title        *string    `json:"title,omitempty"`
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
	SpecialistID *string    `json:"specialist_id,omitempty"`
	PatientName  *string    `json:"patient_name,omitempty"`
	PatientPhone *string    `json:"patient_phone,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	Status       *string    `json:"status,omitempty"`
}

// PatientService manages the patient roster.
type PatientService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Patient, error)
	List(ctx context.Context, search string, limit, offset int) ([]*domain.Patient, int, error)
	Create(ctx context.Context, req *SavePatientRequest) (*domain.Patient, error)
	Update(ctx context.Context, id uuid.UUID, req *SavePatientRequest) (*domain.Patient, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type SavePatientRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// SpecialistService manages the provider roster.
type SpecialistService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Specialist, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Specialist, error)
	Create(ctx context.Context, req *SaveSpecialistRequest) (*domain.Specialist, error)
	Update(ctx context.Context, id uuid.UUID, req *SaveSpecialistRequest) (*domain.Specialist, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type SaveSpecialistRequest struct {
	Name             string   `json:"name"`
	GoogleCalendarID string   `json:"google_calendar_id,omitempty"`
	Treatments       []string `json:"treatments,omitempty"`
	Active           *bool    `json:"active,omitempty"`
}
