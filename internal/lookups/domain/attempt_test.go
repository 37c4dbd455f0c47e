package domain

import "testing"

func TestAttemptStatusForEvent(t *testing.T) {
	tests := []struct {
		event CanonicalEvent
		want  string
	}{
		{EventInitiation, AttemptInitiated},
		{EventInProgress, AttemptInProgress},
		{EventPostCall, AttemptAnalyzing},
		{EventCompleted, AttemptCompleted},
		{EventFailed, AttemptFailed},
		{EventUnknown, ""},
	}
	for _, tt := range tests {
		if got := AttemptStatusForEvent(tt.event); got != tt.want {
			t.Errorf("AttemptStatusForEvent(%q) = %q, want %q", tt.event, got, tt.want)
		}
	}
}

func TestIsAttemptUnderway(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{AttemptScheduled, false},
		{AttemptInitiated, false},
		{AttemptInProgress, true},
		{AttemptAnalyzing, true},
		{AttemptCompleted, true},
		{AttemptFailed, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsAttemptUnderway(tt.status); got != tt.want {
			t.Errorf("IsAttemptUnderway(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
