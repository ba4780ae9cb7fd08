package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/user/meetscribe/internal/types"
)

// MeetingStore is the sqlite-backed meeting store.
type MeetingStore struct {
	db *sql.DB
}

func NewMeetingStore(db *sql.DB) *MeetingStore {
	return &MeetingStore{db: db}
}

// Insert persists a new meeting and returns its assigned id.
func (s *MeetingStore) Insert(ctx context.Context, m *types.Meeting) (int64, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (
			app_bundle_id, app_name, start_time, end_time, duration_seconds,
			screenshot_count, transcript, ai_summary, notion_page_id, notion_page_url,
			status, transcription_status, audio_file_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.AppBundleID, m.AppName, m.StartTime, nullTime(m.EndTime), nullInt(m.DurationSeconds),
		m.ScreenshotCount, m.Transcript, m.AISummary, m.NotionPageID, m.NotionPageURL,
		string(m.Status), string(m.TranscriptionStatus), m.AudioFilePath, m.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert meeting: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("meeting id: %w", err)
	}
	m.ID = id
	return id, nil
}

// Update persists all mutable fields except transcription_status, which only
// AdvanceTranscriptionStatus may touch.
func (s *MeetingStore) Update(ctx context.Context, m *types.Meeting) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET
			app_bundle_id = ?, app_name = ?, start_time = ?, end_time = ?,
			duration_seconds = ?, screenshot_count = ?, transcript = ?, ai_summary = ?,
			notion_page_id = ?, notion_page_url = ?, status = ?, audio_file_path = ?
		WHERE id = ?`,
		m.AppBundleID, m.AppName, m.StartTime, nullTime(m.EndTime),
		nullInt(m.DurationSeconds), m.ScreenshotCount, m.Transcript, m.AISummary,
		m.NotionPageID, m.NotionPageURL, string(m.Status), m.AudioFilePath,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("update meeting %d: %w", m.ID, err)
	}
	return nil
}

const meetingColumns = `
	id, app_bundle_id, app_name, start_time, end_time, duration_seconds,
	screenshot_count, transcript, ai_summary, notion_page_id, notion_page_url,
	status, transcription_status, audio_file_path, created_at`

// Get returns the meeting with the given id.
func (s *MeetingStore) Get(ctx context.Context, id int64) (*types.Meeting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+meetingColumns+` FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meeting not found: %d", id)
	}
	return m, err
}

// GetActive returns the active meeting, or nil when none exists.
func (s *MeetingStore) GetActive(ctx context.Context) (*types.Meeting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+meetingColumns+` FROM meetings WHERE status = ? ORDER BY id DESC LIMIT 1`,
		string(types.MeetingActive))
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// List returns the most recent meetings, newest first.
func (s *MeetingStore) List(ctx context.Context, limit int) ([]*types.Meeting, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+meetingColumns+` FROM meetings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*types.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// AdvanceTranscriptionStatus moves the transcription status one step forward
// inside a transaction. Setting the current status again is a no-op; skips
// and regressions fail.
func (s *MeetingStore) AdvanceTranscriptionStatus(ctx context.Context, id int64, next types.TranscriptionStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var cur string
	if err := tx.QueryRowContext(ctx,
		`SELECT transcription_status FROM meetings WHERE id = ?`, id).Scan(&cur); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("meeting not found: %d", id)
		}
		return fmt.Errorf("read transcription status: %w", err)
	}

	current := types.TranscriptionStatus(cur)
	if current == next {
		return nil
	}
	if !current.CanAdvanceTo(next) {
		return fmt.Errorf("invalid transcription status transition %s -> %s for meeting %d", current, next, id)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE meetings SET transcription_status = ? WHERE id = ?`, string(next), id); err != nil {
		return fmt.Errorf("update transcription status: %w", err)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*types.Meeting, error) {
	var (
		m        types.Meeting
		endTime  sql.NullTime
		duration sql.NullInt64
		status   string
		tStatus  string
	)
	err := row.Scan(
		&m.ID, &m.AppBundleID, &m.AppName, &m.StartTime, &endTime, &duration,
		&m.ScreenshotCount, &m.Transcript, &m.AISummary, &m.NotionPageID, &m.NotionPageURL,
		&status, &tStatus, &m.AudioFilePath, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan meeting: %w", err)
	}
	if endTime.Valid {
		m.EndTime = &endTime.Time
	}
	if duration.Valid {
		m.DurationSeconds = &duration.Int64
	}
	m.Status = types.MeetingStatus(status)
	m.TranscriptionStatus = types.TranscriptionStatus(tStatus)
	return &m, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}
