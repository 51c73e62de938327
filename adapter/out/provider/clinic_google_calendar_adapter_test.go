package provider

import (
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
)

func TestConvertEvent(t *testing.T) {
	event := &calendar.Event{
		Id:          "evt-1",
		Summary:     "Consulta Maria",
		Description: "Paciente: Maria",
		Status:      "confirmed",
		Start:       &calendar.EventDateTime{DateTime: "2026-03-10T09:00:00Z", TimeZone: "America/Sao_Paulo"},
		End:         &calendar.EventDateTime{DateTime: "2026-03-10T10:00:00Z"},
	}

	got, err := convertEvent(event, "primary")
	if err != nil {
		t.Fatalf("convertEvent() error = %v", err)
	}
	want := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if !got.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", got.Start, want)
	}
	if got.Timezone != "America/Sao_Paulo" {
		t.Errorf("Timezone = %q", got.Timezone)
	}
	if got.CalendarID != "primary" || got.Title != "Consulta Maria" {
		t.Errorf("fields not carried: %+v", got)
	}
}

func TestConvertEventAllDay(t *testing.T) {
	event := &calendar.Event{
		Id:    "evt-1",
		Start: &calendar.EventDateTime{Date: "2026-03-10"},
		End:   &calendar.EventDateTime{Date: "2026-03-11"},
	}

	got, err := convertEvent(event, "primary")
	if err != nil {
		t.Fatalf("convertEvent() error = %v", err)
	}
	if got.Start.IsZero() || got.End.IsZero() {
		t.Errorf("all-day dates not parsed: %+v", got)
	}
}

// Malformed timestamps must be rejected at the boundary, never mapped to zero
// times.
func TestConvertEventRejectsMalformedTimes(t *testing.T) {
	tests := []struct {
		name  string
		event *calendar.Event
	}{
		{
			name: "bad start datetime",
			event: &calendar.Event{
				Id:    "evt-1",
				Start: &calendar.EventDateTime{DateTime: "10/03/2026 09:00"},
				End:   &calendar.EventDateTime{DateTime: "2026-03-10T10:00:00Z"},
			},
		},
		{
			name: "bad end datetime",
			event: &calendar.Event{
				Id:    "evt-1",
				Start: &calendar.EventDateTime{DateTime: "2026-03-10T09:00:00Z"},
				End:   &calendar.EventDateTime{DateTime: "not-a-time"},
			},
		},
		{
			name: "bad all-day date",
			event: &calendar.Event{
				Id:    "evt-1",
				Start: &calendar.EventDateTime{Date: "March 10"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := convertEvent(tt.event, "primary"); err == nil {
				t.Error("expected an error for a malformed timestamp")
			}
		})
	}
}
