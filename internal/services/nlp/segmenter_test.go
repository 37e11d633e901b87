package nlp

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitIntoThoughts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "task and event in one sentence",
			in:   "Need to prep slides and meet John at 10am tomorrow.",
			want: []string{"prep slides", "meet John at 10am tomorrow"},
		},
		{
			name: "sentences",
			in:   "Buy milk. Call mom!",
			want: []string{"Buy milk", "Call mom"},
		},
		{
			name: "meeting keeps its time and date",
			in:   "Meeting with Sarah, tomorrow at 3pm",
			want: []string{"Meeting with Sarah at 3pm tomorrow"},
		},
		{
			name: "meeting time given before the meeting",
			in:   "Tomorrow, meeting with Dana",
			want: []string{"meeting with Dana tomorrow"},
		},
		{
			name: "fillers alone vanish",
			in:   "um, so, we should update the docs",
			want: []string{"update the docs"},
		},
		{
			name: "obligation stripped",
			in:   "I have to return the books; must renew passport",
			want: []string{"return the books", "renew passport"},
		},
		{
			name: "event-only sibling of a meeting is kept",
			in:   "Meeting with Bob and Alice at 3pm",
			want: []string{"Meeting with Bob at 3pm", "Alice at 3pm"},
		},
		{
			name: "dotted meridiem is not a sentence end",
			in:   "Dentist at 4 p.m. tomorrow",
			want: []string{"Dentist at 4 pm tomorrow"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitIntoThoughts(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitIntoThoughts(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitIntoThoughts_NoEmptySegments(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"", "   ", "...", "?!", ", , and ,", "and and and", "so. um! well?",
		"Call Bob, and, , email Alice.", "Meeting with Sarah, at 3pm, tomorrow",
		"I need to. We should. Let's.",
	}
	for _, in := range inputs {
		for i, s := range SplitIntoThoughts(in) {
			if strings.TrimSpace(s) == "" {
				t.Errorf("SplitIntoThoughts(%q)[%d] is blank", in, i)
			}
		}
	}
}
