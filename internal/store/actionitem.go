package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/user/meetscribe/internal/types"
)

// ActionItemStore is the sqlite-backed action item store.
type ActionItemStore struct {
	db *sql.DB
}

func NewActionItemStore(db *sql.DB) *ActionItemStore {
	return &ActionItemStore{db: db}
}

// InsertBatch persists the items in one transaction, assigning ids.
func (s *ActionItemStore) InsertBatch(ctx context.Context, items []*types.ActionItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO action_items (meeting_id, minutes_id, title, assignee, due_date, priority, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		var minutesID any
		if item.MinutesID != 0 {
			minutesID = item.MinutesID
		}
		res, err := stmt.ExecContext(ctx,
			item.MeetingID, minutesID, item.Title, item.Assignee, item.DueDate,
			string(item.Priority), string(item.Status))
		if err != nil {
			return fmt.Errorf("insert action item: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			item.ID = id
		}
	}
	return tx.Commit()
}

// ListByMeeting returns all action items for a meeting in insertion order.
func (s *ActionItemStore) ListByMeeting(ctx context.Context, meetingID int64) ([]*types.ActionItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meeting_id, minutes_id, title, assignee, due_date, priority, status
		FROM action_items WHERE meeting_id = ? ORDER BY id`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list action items: %w", err)
	}
	defer rows.Close()

	var items []*types.ActionItem
	for rows.Next() {
		var (
			item      types.ActionItem
			minutesID sql.NullInt64
			priority  string
			status    string
		)
		if err := rows.Scan(&item.ID, &item.MeetingID, &minutesID, &item.Title,
			&item.Assignee, &item.DueDate, &priority, &status); err != nil {
			return nil, fmt.Errorf("scan action item: %w", err)
		}
		if minutesID.Valid {
			item.MinutesID = minutesID.Int64
		}
		item.Priority = types.Priority(priority)
		item.Status = types.ActionItemStatus(status)
		items = append(items, &item)
	}
	return items, rows.Err()
}

// SetStatus updates the status of one action item.
func (s *ActionItemStore) SetStatus(ctx context.Context, id int64, status types.ActionItemStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE action_items SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update action item %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("action item not found: %d", id)
	}
	return nil
}

// Delete removes one action item.
func (s *ActionItemStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM action_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete action item %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("action item not found: %d", id)
	}
	return nil
}
