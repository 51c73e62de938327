package domain

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the canonical contact record. Appointments copy the name and
// phone at booking time; editing a patient does not rewrite past appointments.
type Patient struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PatientCollision describes which fields of a prospective patient already
// exist on another record.
type PatientCollision struct {
	Name  bool
	Phone bool
}

// Any reports whether at least one field collided.
func (c PatientCollision) Any() bool {
	return c.Name || c.Phone
}

// Message renders the user-facing duplicate explanation.
func (c PatientCollision) Message() string {
	switch {
	case c.Name && c.Phone:
		return "a patient with the same name and phone already exists"
	case c.Name:
		return "a patient with the same name already exists"
	case c.Phone:
		return "a patient with the same phone already exists"
	default:
		return ""
	}
}
