// Package schedule implements the appointment reconciliation engine: the
// agenda read path merging remote calendar events with local bookings, and
// the write path pushing bookings out after the conflict check.
package schedule

import (
	"strings"
)

// The patient block travels in the event description as labeled lines, which
// stay human-readable inside the Google Calendar UI.
const (
	labelPatient = "Paciente:"
	labelPhone   = "Telefone:"
	labelNotes   = "Obs:"

	emptyNotes = "-"
)

// PatientBlock is the structured payload carried in an event description.
type PatientBlock struct {
	Name  string
	Phone string
	Notes string
}

// EncodeDescription renders the patient block as description text. Notes
// default to "-" so the block always has all three lines.
func EncodeDescription(b PatientBlock) string {
	notes := strings.TrimSpace(b.Notes)
	if notes == "" {
		notes = emptyNotes
	}

	var sb strings.Builder
	sb.WriteString(labelPatient + " ")
	sb.WriteString(strings.TrimSpace(b.Name))
	sb.WriteString("\n")
	sb.WriteString(labelPhone + " ")
	sb.WriteString(strings.TrimSpace(b.Phone))
	sb.WriteString("\n")
	sb.WriteString(labelNotes + " ")
	sb.WriteString(notes)
	return sb.String()
}

// DecodeDescription parses a description back into its fields. Each label is
// matched against the bare prefix and only the first matching line counts, so
// events hand-edited in the calendar UI (missing space after the label,
// repeated labels, free text in between) still decode as far as possible.
// Empty input yields zero values.
func DecodeDescription(description string) PatientBlock {
	var b PatientBlock
	if description == "" {
		return b
	}

	var haveName, havePhone, haveNotes bool
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case !haveName && strings.HasPrefix(line, labelPatient):
			b.Name = strings.TrimSpace(strings.TrimPrefix(line, labelPatient))
			haveName = true
		case !havePhone && strings.HasPrefix(line, labelPhone):
			b.Phone = strings.TrimSpace(strings.TrimPrefix(line, labelPhone))
			havePhone = true
		case !haveNotes && strings.HasPrefix(line, labelNotes):
			notes := strings.TrimSpace(strings.TrimPrefix(line, labelNotes))
			if notes != emptyNotes {
				b.Notes = notes
			}
			haveNotes = true
		}
	}

	return b
}
