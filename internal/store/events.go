package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/campusfound/campusfound/internal/model"
)

// RecordEvent appends an entry to an item's lifecycle audit trail.
func RecordEvent(ctx context.Context, db *sql.DB, event *model.Event) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO item_events (item_id, type, from_status, to_status, actor, notes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ItemID, event.Type, nullIfEmpty(event.FromStatus), event.ToStatus,
		nullIfEmpty(event.Actor), nullIfEmpty(event.Notes),
	)
	if err != nil {
		return fmt.Errorf("recording item event: %w", err)
	}
	return nil
}

// GetItemHistory returns the audit trail for an item, newest first.
func GetItemHistory(ctx context.Context, db *sql.DB, itemID int64) ([]model.Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT e.id, e.item_id, e.type, e.from_status, e.to_status, e.actor, e.notes, e.occurred_at,
		        COALESCE(i.name, '') AS item_name
		 FROM item_events e
		 LEFT JOIN items i ON i.id = e.item_id
		 WHERE e.item_id = ?
		 ORDER BY e.occurred_at DESC, e.id DESC`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting item history: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListEvents returns the most recent lifecycle events across all items.
func ListEvents(ctx context.Context, db *sql.DB, limit int) ([]model.Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT e.id, e.item_id, e.type, e.from_status, e.to_status, e.actor, e.notes, e.occurred_at,
		        COALESCE(i.name, '') AS item_name
		 FROM item_events e
		 LEFT JOIN items i ON i.id = e.item_id
		 ORDER BY e.occurred_at DESC, e.id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing item events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		var e model.Event
		var fromStatus, actor, notes sql.NullString
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Type, &fromStatus, &e.ToStatus,
			&actor, &notes, &e.OccurredAt, &e.ItemName); err != nil {
			return nil, fmt.Errorf("scanning item event: %w", err)
		}
		e.FromStatus = fromStatus.String
		e.Actor = actor.String
		e.Notes = notes.String
		events = append(events, e)
	}
	return events, rows.Err()
}
