package types

import "testing"

func TestTranscriptionStatusAdvance(t *testing.T) {
	steps := []struct {
		from, to TranscriptionStatus
		ok       bool
	}{
		{TranscriptionNotStarted, TranscriptionRecording, true},
		{TranscriptionRecording, TranscriptionTranscribing, true},
		{TranscriptionTranscribing, TranscriptionCompleted, true},
		{TranscriptionNotStarted, TranscriptionTranscribing, false}, // skip
		{TranscriptionNotStarted, TranscriptionCompleted, false},    // skip
		{TranscriptionCompleted, TranscriptionRecording, false},     // regression
		{TranscriptionRecording, TranscriptionNotStarted, false},    // regression
		{TranscriptionRecording, TranscriptionRecording, false},     // same is not an advance
		{TranscriptionCompleted, "bogus", false},
	}
	for _, s := range steps {
		if got := s.from.CanAdvanceTo(s.to); got != s.ok {
			t.Errorf("%s -> %s: expected %v, got %v", s.from, s.to, s.ok, got)
		}
	}
}

func TestParsePriority(t *testing.T) {
	if p := ParsePriority("urgent"); p != PriorityUrgent {
		t.Errorf("expected urgent, got %s", p)
	}
	if p := ParsePriority(""); p != PriorityMedium {
		t.Errorf("expected medium default, got %s", p)
	}
	if p := ParsePriority("critical"); p != PriorityMedium {
		t.Errorf("expected medium for unknown value, got %s", p)
	}
}

func TestNewCaptureID(t *testing.T) {
	a, b := NewCaptureID(), NewCaptureID()
	if a == "" || b == "" {
		t.Fatal("expected non-empty capture ids")
	}
	if a == b {
		t.Error("expected unique capture ids")
	}
}
