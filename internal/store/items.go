package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/campusfound/campusfound/internal/model"
)

// itemColumns is the column list shared by every item SELECT.
const itemColumns = `id, name, description, category, location, found_date, status,
	image_url, image_id, added_by,
	claimed_by_name, claimed_roll_number, claimed_study_year, claimed_contact, claimed_at,
	delivered_name, delivered_email, delivered_student_id, delivered_phone, delivered_at,
	created_at, updated_at`

// InsertItem creates a new item in the available status.
func InsertItem(ctx context.Context, db *sql.DB, item *model.Item) (*model.Item, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (name, description, category, location, found_date, image_url, image_id, added_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Name, item.Description, item.Category, item.Location, item.FoundDate,
		item.ImageURL, item.ImageID, item.AddedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns all items, newest first.
func ListItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ListRecentItems returns up to limit available items, newest first.
// Claimed and delivered items are excluded so the homepage only
// advertises items that can still be recovered.
func ListRecentItems(ctx context.Context, db *sql.DB, limit int) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		model.StatusAvailable, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ListItemsByCategory returns all items in a category, newest first.
func ListItemsByCategory(ctx context.Context, db *sql.DB, category string) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE category = ? ORDER BY created_at DESC, id DESC`,
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items by category: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// SearchItems runs a full-text search across name, description, category,
// and location, ranked by relevance.
func SearchItems(ctx context.Context, db *sql.DB, query string) ([]model.Item, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+prefixedItemColumns("i.")+`
		 FROM items i
		 JOIN items_fts f ON f.rowid = i.id
		 WHERE items_fts MATCH ?
		 ORDER BY bm25(items_fts)`,
		match,
	)
	if err != nil {
		return nil, fmt.Errorf("searching items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ftsQuery turns free-form user input into an FTS5 match expression.
// Each term is quoted so FTS operator characters can't break the query,
// and matched by prefix so partial words still hit.
func ftsQuery(input string) string {
	terms := strings.Fields(input)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, `""`)
		quoted = append(quoted, `"`+t+`"*`)
	}
	return strings.Join(quoted, " ")
}

// ClaimItem atomically moves an available item to claimed and records the
// claimant. The conditional WHERE is the entire race protection: of two
// concurrent claims only one UPDATE matches the row. Returns false when
// the item was not in the available status (or does not exist).
func ClaimItem(ctx context.Context, db *sql.DB, id int64, claim *model.ClaimedBy) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items
		 SET status = ?,
		     claimed_by_name = ?, claimed_roll_number = ?, claimed_study_year = ?,
		     claimed_contact = ?, claimed_at = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		model.StatusClaimed,
		claim.StudentName, claim.RollNumber, claim.StudyYear,
		claim.ContactNumber, claim.ClaimedDate,
		id, model.StatusAvailable,
	)
	if err != nil {
		return false, fmt.Errorf("claiming item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming item: %w", err)
	}
	return n > 0, nil
}

// DeliverItem atomically moves a claimed item to delivered, preserving the
// claim record. Returns false when the item was not claimed.
func DeliverItem(ctx context.Context, db *sql.DB, id int64, delivery *model.DeliveredTo) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items
		 SET status = ?,
		     delivered_name = ?, delivered_email = ?, delivered_student_id = ?,
		     delivered_phone = ?, delivered_at = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		model.StatusDelivered,
		delivery.Name, delivery.Email, delivery.StudentID,
		delivery.Phone, delivery.DeliveryDate,
		id, model.StatusClaimed,
	)
	if err != nil {
		return false, fmt.Errorf("delivering item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delivering item: %w", err)
	}
	return n > 0, nil
}

// UpdateItemFields updates an item's descriptive fields. Only available
// items may be edited; returns false when the condition did not match.
func UpdateItemFields(ctx context.Context, db *sql.DB, id int64, name, description, category, location string, foundDate time.Time) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items
		 SET name = ?, description = ?, category = ?, location = ?, found_date = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		name, description, category, location, foundDate,
		id, model.StatusAvailable,
	)
	if err != nil {
		return false, fmt.Errorf("updating item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating item: %w", err)
	}
	return n > 0, nil
}

// SetItemImage replaces an item's image reference. Same precondition as
// UpdateItemFields: only available items.
func SetItemImage(ctx context.Context, db *sql.DB, id int64, url, imageID string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET image_url = ?, image_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		url, imageID, id, model.StatusAvailable,
	)
	if err != nil {
		return false, fmt.Errorf("setting item image: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setting item image: %w", err)
	}
	return n > 0, nil
}

// SetItemStatus force-sets an item's status without touching claim or
// delivery columns. No transition check: this backs the administrative
// override, not the guarded lifecycle.
func SetItemStatus(ctx context.Context, db *sql.DB, id int64, status string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return false, fmt.Errorf("setting item status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setting item status: %w", err)
	}
	return n > 0, nil
}

// DeleteItem removes an item record. Returns false when no such item exists.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	return n > 0, nil
}

// prefixedItemColumns qualifies itemColumns with a table alias for joins.
func prefixedItemColumns(prefix string) string {
	cols := strings.Split(itemColumns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var description sql.NullString
	var claimName, claimRoll, claimYear, claimContact sql.NullString
	var claimedAt sql.NullTime
	var delivName, delivEmail, delivStudentID, delivPhone sql.NullString
	var deliveredAt sql.NullTime

	err := row.Scan(
		&item.ID, &item.Name, &description, &item.Category, &item.Location,
		&item.FoundDate, &item.Status, &item.ImageURL, &item.ImageID, &item.AddedBy,
		&claimName, &claimRoll, &claimYear, &claimContact, &claimedAt,
		&delivName, &delivEmail, &delivStudentID, &delivPhone, &deliveredAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Description = description.String

	if claimedAt.Valid {
		item.ClaimedBy = &model.ClaimedBy{
			StudentName:   claimName.String,
			RollNumber:    claimRoll.String,
			StudyYear:     claimYear.String,
			ContactNumber: claimContact.String,
			ClaimedDate:   claimedAt.Time,
		}
	}
	if deliveredAt.Valid {
		item.DeliveredTo = &model.DeliveredTo{
			Name:         delivName.String,
			Email:        delivEmail.String,
			StudentID:    delivStudentID.String,
			Phone:        delivPhone.String,
			DeliveryDate: deliveredAt.Time,
		}
	}

	return item, nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
