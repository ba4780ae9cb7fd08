// internal/types/interfaces.go
package types

import "context"

// MeetingStore persists Meeting records.
type MeetingStore interface {
	Insert(ctx context.Context, m *Meeting) (int64, error)
	Update(ctx context.Context, m *Meeting) error
	Get(ctx context.Context, id int64) (*Meeting, error)
	// GetActive returns the single active meeting, or nil when none exists.
	GetActive(ctx context.Context) (*Meeting, error)
	List(ctx context.Context, limit int) ([]*Meeting, error)
	// AdvanceTranscriptionStatus moves the transcription status one step
	// forward. Setting the current status again is a no-op; a skip or a
	// regression is an error.
	AdvanceTranscriptionStatus(ctx context.Context, id int64, next TranscriptionStatus) error
}

// SegmentStore persists transcript segments, append-only per meeting.
type SegmentStore interface {
	Insert(ctx context.Context, s *TranscriptSegment) (int64, error)
	ListByMeeting(ctx context.Context, meetingID int64) ([]*TranscriptSegment, error)
}

// MinutesStore persists meeting minutes, one row per meeting.
type MinutesStore interface {
	Upsert(ctx context.Context, m *MeetingMinutes) (int64, error)
	// GetByMeeting returns the minutes row for a meeting, or nil when none exists.
	GetByMeeting(ctx context.Context, meetingID int64) (*MeetingMinutes, error)
}

// ActionItemStore persists action items.
type ActionItemStore interface {
	InsertBatch(ctx context.Context, items []*ActionItem) error
	ListByMeeting(ctx context.Context, meetingID int64) ([]*ActionItem, error)
	SetStatus(ctx context.Context, id int64, status ActionItemStatus) error
	Delete(ctx context.Context, id int64) error
}

// AppObserver samples running applications and their best-effort foreground
// window titles. A failed sample is a heuristic miss, never a fatal error.
type AppObserver interface {
	Sample(ctx context.Context) ([]AppSample, error)
}

// AudioRecorder captures audio for one session at a time and delivers chunks
// through the registered callback while recording.
type AudioRecorder interface {
	// OnChunk registers the chunk callback. Must be called before StartRecording.
	OnChunk(fn func(AudioChunk))
	StartRecording(id CaptureID) error
	// StopRecording ends capture and returns the recorded file path, or ""
	// when capture never produced a file.
	StopRecording() (string, error)
}

// SpeechEngine is the transcription model. LoadModel blocks until the model
// is ready; TranscribeChunk returns nil for silence.
type SpeechEngine interface {
	IsModelDownloaded() bool
	IsModelLoaded() bool
	LoadModel(ctx context.Context) error
	Transcribe(ctx context.Context, audioPath string) ([]*TranscriptSegment, error)
	TranscribeChunk(ctx context.Context, chunk AudioChunk) (*TranscriptSegment, error)
}
