package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/user/meetscribe/internal/types"
)

// MinutesStore is the sqlite-backed minutes store. Exactly one row exists per
// meeting, replaced in place on every regeneration.
type MinutesStore struct {
	db *sql.DB
}

func NewMinutesStore(db *sql.DB) *MinutesStore {
	return &MinutesStore{db: db}
}

// Upsert writes the minutes row for the meeting, replacing any previous
// version, and returns the row id.
func (s *MinutesStore) Upsert(ctx context.Context, m *types.MeetingMinutes) (int64, error) {
	if m.GeneratedAt.IsZero() {
		m.GeneratedAt = time.Now()
	}
	keyPoints, err := json.Marshal(emptyIfNil(m.KeyPoints))
	if err != nil {
		return 0, fmt.Errorf("marshal key points: %w", err)
	}
	decisions, err := json.Marshal(emptyIfNil(m.Decisions))
	if err != nil {
		return 0, fmt.Errorf("marshal decisions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO meeting_minutes (
			meeting_id, summary, key_points, action_items_raw, decisions,
			version, is_finalized, generated_at, model
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(meeting_id) DO UPDATE SET
			summary = excluded.summary,
			key_points = excluded.key_points,
			action_items_raw = excluded.action_items_raw,
			decisions = excluded.decisions,
			version = excluded.version,
			is_finalized = excluded.is_finalized,
			generated_at = excluded.generated_at,
			model = excluded.model`,
		m.MeetingID, m.Summary, string(keyPoints), m.ActionItemsRaw, string(decisions),
		m.Version, boolToInt(m.IsFinalized), m.GeneratedAt, m.Model,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert minutes: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM meeting_minutes WHERE meeting_id = ?`, m.MeetingID).Scan(&id); err != nil {
		return 0, fmt.Errorf("minutes id: %w", err)
	}
	m.ID = id
	return id, nil
}

// GetByMeeting returns the minutes row for a meeting, or nil when none exists.
func (s *MinutesStore) GetByMeeting(ctx context.Context, meetingID int64) (*types.MeetingMinutes, error) {
	var (
		m         types.MeetingMinutes
		keyPoints string
		decisions string
		finalized int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, meeting_id, summary, key_points, action_items_raw, decisions,
		       version, is_finalized, generated_at, model
		FROM meeting_minutes WHERE meeting_id = ?`, meetingID).Scan(
		&m.ID, &m.MeetingID, &m.Summary, &keyPoints, &m.ActionItemsRaw, &decisions,
		&m.Version, &finalized, &m.GeneratedAt, &m.Model,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get minutes: %w", err)
	}
	if err := json.Unmarshal([]byte(keyPoints), &m.KeyPoints); err != nil {
		return nil, fmt.Errorf("unmarshal key points: %w", err)
	}
	if err := json.Unmarshal([]byte(decisions), &m.Decisions); err != nil {
		return nil, fmt.Errorf("unmarshal decisions: %w", err)
	}
	m.IsFinalized = finalized != 0
	return &m, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
