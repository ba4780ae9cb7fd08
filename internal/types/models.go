// internal/types/models.go
package types

import "time"

// MeetingStatus is the durable lifecycle state of a Meeting record.
type MeetingStatus string

const (
	MeetingActive    MeetingStatus = "active"
	MeetingCompleted MeetingStatus = "completed"
)

// TranscriptionStatus tracks the transcription pipeline for a meeting.
// Transitions are strictly forward: not_started -> recording -> transcribing -> completed.
type TranscriptionStatus string

const (
	TranscriptionNotStarted   TranscriptionStatus = "not_started"
	TranscriptionRecording    TranscriptionStatus = "recording"
	TranscriptionTranscribing TranscriptionStatus = "transcribing"
	TranscriptionCompleted    TranscriptionStatus = "completed"
)

var transcriptionOrder = map[TranscriptionStatus]int{
	TranscriptionNotStarted:   0,
	TranscriptionRecording:    1,
	TranscriptionTranscribing: 2,
	TranscriptionCompleted:    3,
}

// CanAdvanceTo reports whether next is the immediate successor of s.
// Setting the same status again is not an advance; callers treat it as a no-op.
func (s TranscriptionStatus) CanAdvanceTo(next TranscriptionStatus) bool {
	cur, ok := transcriptionOrder[s]
	if !ok {
		return false
	}
	n, ok := transcriptionOrder[next]
	if !ok {
		return false
	}
	return n == cur+1
}

// Priority of an action item.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority maps free-form model output onto a Priority, defaulting to medium.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// ActionItemStatus is the completion state of an action item.
type ActionItemStatus string

const (
	ActionItemPending   ActionItemStatus = "pending"
	ActionItemCompleted ActionItemStatus = "completed"
)

// Meeting is the durable meeting record. ID is assigned on insert; an ID of
// zero marks a meeting that could not be persisted and lives in memory only.
type Meeting struct {
	ID                  int64               `json:"id"`
	AppBundleID         string              `json:"app_bundle_id"`
	AppName             string              `json:"app_name"`
	StartTime           time.Time           `json:"start_time"`
	EndTime             *time.Time          `json:"end_time,omitempty"`
	DurationSeconds     *int64              `json:"duration_seconds,omitempty"`
	ScreenshotCount     int64               `json:"screenshot_count"`
	Transcript          string              `json:"transcript,omitempty"`
	AISummary           string              `json:"ai_summary,omitempty"`
	NotionPageID        string              `json:"notion_page_id,omitempty"`
	NotionPageURL       string              `json:"notion_page_url,omitempty"`
	Status              MeetingStatus       `json:"status"`
	TranscriptionStatus TranscriptionStatus `json:"transcription_status"`
	AudioFilePath       string              `json:"audio_file_path,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
}

// MeetingSession is the transient detector-owned handle for one confirmed
// meeting, from confirmation to end. It is not persisted; it carries the ID
// of the Meeting record it created.
type MeetingSession struct {
	MeetingID int64      `json:"meeting_id"`
	AppName   string     `json:"app_name"`
	BundleID  string     `json:"bundle_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// TranscriptSegment is one transcribed span of speech. Offsets are seconds
// from meeting start. Segments are append-only and ordered by StartTime.
type TranscriptSegment struct {
	ID        int64   `json:"id"`
	MeetingID int64   `json:"meeting_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// MeetingMinutes is the structured summary for a meeting. Exactly one row
// exists per meeting; Version increments on every regeneration and
// IsFinalized flips to true once, at session end.
type MeetingMinutes struct {
	ID             int64     `json:"id"`
	MeetingID      int64     `json:"meeting_id"`
	Summary        string    `json:"summary"`
	KeyPoints      []string  `json:"key_points"`
	ActionItemsRaw string    `json:"action_items_raw,omitempty"`
	Decisions      []string  `json:"decisions"`
	Version        int       `json:"version"`
	IsFinalized    bool      `json:"is_finalized"`
	GeneratedAt    time.Time `json:"generated_at"`
	Model          string    `json:"model"`
}

// ActionItem is a follow-up extracted during finalization. Created in bulk;
// individually mutable (status toggle, delete) afterwards.
type ActionItem struct {
	ID        int64            `json:"id"`
	MeetingID int64            `json:"meeting_id"`
	MinutesID int64            `json:"minutes_id,omitempty"`
	Title     string           `json:"title"`
	Assignee  string           `json:"assignee,omitempty"`
	DueDate   string           `json:"due_date,omitempty"`
	Priority  Priority         `json:"priority"`
	Status    ActionItemStatus `json:"status"`
}

// AppSample is one observed application at scan time. Foreground and
// WindowTitle are best-effort; observers that cannot read them leave them
// zero-valued.
type AppSample struct {
	BundleID    string `json:"bundle_id"`
	Name        string `json:"name"`
	WindowTitle string `json:"window_title,omitempty"`
	Foreground  bool   `json:"foreground"`
}

// AudioChunk is a short slice of captured audio delivered during recording.
// Offsets are seconds from capture start; EndOffset is approximate until the
// chunk is transcribed.
type AudioChunk struct {
	Seq         int
	Data        []byte
	StartOffset float64
	EndOffset   float64
}
