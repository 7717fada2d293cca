package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"long local part", "jane.doe@example.org", "ja***@example.org"},
		{"two char local part", "ab@example.org", "***@example.org"},
		{"one char local part", "a@example.org", "***@example.org"},
		{"not an email", "not-an-email", "***@***"},
		{"two at signs", "a@b@c", "***@***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactEmail(tt.input); got != tt.want {
				t.Errorf("RedactEmail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
