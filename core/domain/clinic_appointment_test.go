package domain

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

// TestOverlaps exercises the half-open interval rule used by the conflict
// check: back-to-back bookings must not collide.
func TestOverlaps(t *testing.T) {
	tests := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{
			name: "identical intervals overlap",
			s1:   at(9, 0), e1: at(10, 0),
			s2: at(9, 0), e2: at(10, 0),
			want: true,
		},
		{
			name: "partial overlap at the end",
			s1:   at(9, 0), e1: at(10, 0),
			s2: at(9, 45), e2: at(10, 15),
			want: true,
		},
		{
			name: "one interval contains the other",
			s1:   at(9, 0), e1: at(11, 0),
			s2: at(9, 30), e2: at(10, 0),
			want: true,
		},
		{
			name: "back-to-back slots do not overlap",
			s1:   at(9, 0), e1: at(9, 30),
			s2: at(9, 30), e2: at(10, 0),
			want: false,
		},
		{
			name: "back-to-back slots reversed order",
			s1:   at(9, 30), e1: at(10, 0),
			s2: at(9, 0), e2: at(9, 30),
			want: false,
		},
		{
			name: "disjoint intervals",
			s1:   at(9, 0), e1: at(9, 30),
			s2: at(14, 0), e2: at(15, 0),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.s1, tt.e1, tt.s2, tt.e2); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			// The relation is symmetric.
			if got := Overlaps(tt.s2, tt.e2, tt.s1, tt.e1); got != tt.want {
				t.Errorf("Overlaps() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want AppointmentStatus
	}{
		{"confirmed", AppointmentConfirmed},
		{"cancelled", AppointmentCancelled},
		{"pending", AppointmentPending},
		{"tentative", AppointmentPending},
		{" Tentative ", AppointmentPending},
		{"CANCELLED", AppointmentCancelled},
		{"", AppointmentConfirmed},
		{"something-else", AppointmentConfirmed},
	}

	for _, tt := range tests {
		if got := NormalizeStatus(tt.in); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOverlapsInterval(t *testing.T) {
	appt := &Appointment{Start: at(9, 0), End: at(10, 0)}

	if !appt.OverlapsInterval(at(9, 30), at(10, 30)) {
		t.Error("expected overlap with intersecting interval")
	}
	if appt.OverlapsInterval(at(10, 0), at(11, 0)) {
		t.Error("boundary-touching interval must not overlap")
	}
}
