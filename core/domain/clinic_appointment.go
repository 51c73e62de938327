package domain

import (
	"strings"
	"time"
)

type AppointmentStatus string

const (
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is the canonical booking record. ID equals the Google event ID
// once the appointment has been pushed to the remote calendar; before that it
// is a locally generated identifier.
type Appointment struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	SpecialistID  *string           `json:"specialist_id,omitempty"` // nil = unassigned
	CalendarID    string            `json:"calendar_id"`
	PatientName   string            `json:"patient_name"`
	PatientPhone  string            `json:"patient_phone"`
	Description   string            `json:"description"`
	Status        AppointmentStatus `json:"status"`
	GoogleEventID string            `json:"google_event_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// IsCancelled reports whether the appointment no longer occupies its slot.
func (a *Appointment) IsCancelled() bool {
	return a.Status == AppointmentCancelled
}

// Overlaps reports whether two half-open intervals [s1,e1) and [s2,e2)
// intersect. Boundary-touching intervals do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// OverlapsInterval applies the half-open interval test against the
// appointment's own time range.
func (a *Appointment) OverlapsInterval(start, end time.Time) bool {
	return Overlaps(a.Start, a.End, start, end)
}

// NormalizeStatus maps free-form status strings to a known tag, defaulting to
// confirmed. Google reports "tentative" for unconfirmed events; the clinic UI
// treats those as pending.
func NormalizeStatus(s string) AppointmentStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(AppointmentCancelled):
		return AppointmentCancelled
	case string(AppointmentPending), "tentative":
		return AppointmentPending
	default:
		return AppointmentConfirmed
	}
}

// AppointmentWindow bounds a fetch of the agenda view.
type AppointmentWindow struct {
	CalendarID string // empty = all calendars
	Start      time.Time
	End        time.Time
}
