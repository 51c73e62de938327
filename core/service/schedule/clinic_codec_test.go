package schedule

import "testing"

func TestEncodeDescription(t *testing.T) {
	tests := []struct {
		name  string
		block PatientBlock
		want  string
	}{
		{
			name:  "full block",
			block: PatientBlock{Name: "Maria Silva", Phone: "11 98765-4321", Notes: "first visit"},
			want:  "Paciente: Maria Silva\nTelefone: 11 98765-4321\nObs: first visit",
		},
		{
			name:  "empty notes become dash",
			block: PatientBlock{Name: "Maria Silva", Phone: "11 98765-4321"},
			want:  "Paciente: Maria Silva\nTelefone: 11 98765-4321\nObs: -",
		},
		{
			name:  "whitespace-only notes become dash",
			block: PatientBlock{Name: "Maria Silva", Phone: "11 98765-4321", Notes: "   "},
			want:  "Paciente: Maria Silva\nTelefone: 11 98765-4321\nObs: -",
		},
		{
			name:  "fields are trimmed",
			block: PatientBlock{Name: "  Maria Silva ", Phone: " 11 98765-4321 ", Notes: " note "},
			want:  "Paciente: Maria Silva\nTelefone: 11 98765-4321\nObs: note",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeDescription(tt.block); got != tt.want {
				t.Errorf("EncodeDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeDescription(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        PatientBlock
	}{
		{
			name:        "full block",
			description: "Paciente: Maria Silva\nTelefone: 11 98765-4321\nObs: first visit",
			want:        PatientBlock{Name: "Maria Silva", Phone: "11 98765-4321", Notes: "first visit"},
		},
		{
			name:        "dash notes decode as empty",
			description: "Paciente: Maria Silva\nTelefone: 11 98765-4321\nObs: -",
			want:        PatientBlock{Name: "Maria Silva", Phone: "11 98765-4321"},
		},
		{
			name:        "empty input yields zero block",
			description: "",
			want:        PatientBlock{},
		},
		{
			name:        "unknown lines are ignored",
			description: "Paciente: Maria Silva\nsome free text\nTelefone: 11 98765-4321",
			want:        PatientBlock{Name: "Maria Silva", Phone: "11 98765-4321"},
		},
		{
			name:        "hand-edited partial block",
			description: "Telefone: 11 98765-4321",
			want:        PatientBlock{Phone: "11 98765-4321"},
		},
		{
			name:        "windows line endings",
			description: "Paciente: Maria Silva\r\nTelefone: 11 98765-4321\r\nObs: note\r\n",
			want:        PatientBlock{Name: "Maria Silva", Phone: "11 98765-4321", Notes: "note"},
		},
		{
			name:        "free text without any prefix",
			description: "meeting about something",
			want:        PatientBlock{},
		},
		{
			name:        "first matching line wins per label",
			description: "Paciente: Maria\nPaciente: Ana\nTelefone: 11 1\nTelefone: 22 2",
			want:        PatientBlock{Name: "Maria", Phone: "11 1"},
		},
		{
			name:        "missing space after label",
			description: "Paciente:Ana\nTelefone:11 90000-0000\nObs:note",
			want:        PatientBlock{Name: "Ana", Phone: "11 90000-0000", Notes: "note"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeDescription(tt.description); got != tt.want {
				t.Errorf("DecodeDescription() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestDescriptionRoundtrip checks that whatever we push to the calendar comes
// back as the same patient block.
func TestDescriptionRoundtrip(t *testing.T) {
	blocks := []PatientBlock{
		{Name: "João Souza", Phone: "21 91234-5678", Notes: "return in 30 days"},
		{Name: "Ana", Phone: "11 90000-0000"},
		{},
	}

	for _, b := range blocks {
		got := DecodeDescription(EncodeDescription(b))
		if got != b {
			t.Errorf("roundtrip changed block: got %+v, want %+v", got, b)
		}
	}
}
