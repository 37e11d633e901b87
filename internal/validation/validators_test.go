package validation

import (
	"strings"
	"testing"
)

func TestStruct(t *testing.T) {
	t.Parallel()

	type captureBody struct {
		Text   string `validate:"required"`
		Source string `validate:"omitempty,capture_source"`
		Type   string `validate:"omitempty,thought_type"`
		Level  string `validate:"omitempty,confidence_level"`
	}

	tests := []struct {
		name    string
		body    captureBody
		wantErr string
	}{
		{"valid", captureBody{Text: "buy milk", Source: "speech", Type: "task", Level: "high"}, ""},
		{"missing text", captureBody{}, "text failed required"},
		{"bad source", captureBody{Text: "x", Source: "telepathy"}, "source failed capture_source"},
		{"bad type", captureBody{Text: "x", Type: "poem"}, "type failed thought_type"},
		{"bad confidence", captureBody{Text: "x", Level: "certain"}, "level failed confidence_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Struct(tt.body)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Struct() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Struct() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"  buy milk  ", "buy milk"},
		{"buy\x00 milk\x07", "buy milk"},
		{"line one\nline two\tend", "line one\nline two\tend"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeText(tt.in); got != tt.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnumValidators(t *testing.T) {
	t.Parallel()

	if err := ValidateThoughtType("event"); err != nil {
		t.Errorf("ValidateThoughtType(event) = %v", err)
	}
	if err := ValidateThoughtType("todo"); err == nil {
		t.Error("ValidateThoughtType(todo) = nil, want error")
	}
	if err := ValidateThoughtStatus("pending_llm"); err != nil {
		t.Errorf("ValidateThoughtStatus(pending_llm) = %v", err)
	}
	if err := ValidateThoughtStatus("done"); err == nil {
		t.Error("ValidateThoughtStatus(done) = nil, want error")
	}
	if err := ValidateCaptureSource("typed"); err != nil {
		t.Errorf("ValidateCaptureSource(typed) = %v", err)
	}
	if err := ValidateCaptureSource(""); err == nil {
		t.Error("ValidateCaptureSource(empty) = nil, want error")
	}
}
