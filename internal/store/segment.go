package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/user/meetscribe/internal/types"
)

// SegmentStore is the sqlite-backed transcript segment store. Segments are
// append-only; chronological order is the single writer's responsibility.
type SegmentStore struct {
	db *sql.DB
}

func NewSegmentStore(db *sql.DB) *SegmentStore {
	return &SegmentStore{db: db}
}

// Insert persists one transcript segment and returns its id.
func (s *SegmentStore) Insert(ctx context.Context, seg *types.TranscriptSegment) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript_segments (meeting_id, start_time, end_time, text) VALUES (?, ?, ?, ?)`,
		seg.MeetingID, seg.StartTime, seg.EndTime, seg.Text)
	if err != nil {
		return 0, fmt.Errorf("insert segment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("segment id: %w", err)
	}
	seg.ID = id
	return id, nil
}

// ListByMeeting returns all segments for a meeting ordered by start offset,
// insertion order breaking ties.
func (s *SegmentStore) ListByMeeting(ctx context.Context, meetingID int64) ([]*types.TranscriptSegment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, meeting_id, start_time, end_time, text
		 FROM transcript_segments WHERE meeting_id = ? ORDER BY start_time, id`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []*types.TranscriptSegment
	for rows.Next() {
		var seg types.TranscriptSegment
		if err := rows.Scan(&seg.ID, &seg.MeetingID, &seg.StartTime, &seg.EndTime, &seg.Text); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, &seg)
	}
	return segments, rows.Err()
}
