package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id              INTEGER PRIMARY KEY,
    email           TEXT NOT NULL,
    password_hash   TEXT NOT NULL,
    role            TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('guard', 'student')),
    name            TEXT,
    registration_id TEXT,
    mobile_number   TEXT,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at      DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
    ON users(email) WHERE deleted_at IS NULL;

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_registration_active
    ON users(registration_id) WHERE deleted_at IS NULL AND registration_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS items (
    id                  INTEGER PRIMARY KEY,
    name                TEXT NOT NULL,
    description         TEXT,
    category            TEXT NOT NULL,
    location            TEXT NOT NULL,
    found_date          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    status              TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'claimed', 'delivered')),
    image_url           TEXT NOT NULL,
    image_id            TEXT NOT NULL,
    added_by            TEXT NOT NULL,
    claimed_by_name     TEXT,
    claimed_roll_number TEXT,
    claimed_study_year  TEXT,
    claimed_contact     TEXT,
    claimed_at          DATETIME,
    delivered_name      TEXT,
    delivered_email     TEXT,
    delivered_student_id TEXT,
    delivered_phone     TEXT,
    delivered_at        DATETIME,
    created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_status_created
    ON items(status, created_at DESC);

CREATE TABLE IF NOT EXISTS images (
    id         TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    mime       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS item_events (
    id          INTEGER PRIMARY KEY,
    item_id     INTEGER NOT NULL,
    type        TEXT NOT NULL,
    from_status TEXT,
    to_status   TEXT NOT NULL,
    actor       TEXT,
    notes       TEXT,
    occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_item_events_item
    ON item_events(item_id, occurred_at DESC);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
    name, description, category, location,
    content='items', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS items_fts_insert AFTER INSERT ON items BEGIN
    INSERT INTO items_fts(rowid, name, description, category, location)
    VALUES (new.id, new.name, new.description, new.category, new.location);
END;

CREATE TRIGGER IF NOT EXISTS items_fts_delete AFTER DELETE ON items BEGIN
    INSERT INTO items_fts(items_fts, rowid, name, description, category, location)
    VALUES ('delete', old.id, old.name, old.description, old.category, old.location);
END;

CREATE TRIGGER IF NOT EXISTS items_fts_update AFTER UPDATE ON items BEGIN
    INSERT INTO items_fts(items_fts, rowid, name, description, category, location)
    VALUES ('delete', old.id, old.name, old.description, old.category, old.location);
    INSERT INTO items_fts(rowid, name, description, category, location)
    VALUES (new.id, new.name, new.description, new.category, new.location);
END;
`

// EnsureSchema creates all tables, indexes, and triggers if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
