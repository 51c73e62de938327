package domain

import (
	"time"

	"github.com/google/uuid"
)

// Specialist is a care provider. A specialist owns at most one remote
// calendar; Treatments is the set of procedure names the specialist offers
// (UI convention keeps them unique, the store does not enforce it).
type Specialist struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	GoogleCalendarID string    `json:"google_calendar_id,omitempty"`
	Treatments       []string  `json:"treatments"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasCalendar reports whether the specialist is bound to a remote calendar.
func (s *Specialist) HasCalendar() bool {
	return s.GoogleCalendarID != ""
}
