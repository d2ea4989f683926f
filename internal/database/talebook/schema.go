package talebook

import (
	"context"
	"fmt"

	"github.com/mrlokans/booklog/internal/database"
)

// Schema creates the extension tables. book_id columns carry no foreign
// keys because books live in the other database file.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
	book_id INTEGER PRIMARY KEY,
	book_type INTEGER NOT NULL DEFAULT 1,
	count_guest INTEGER NOT NULL DEFAULT 0,
	count_visit INTEGER NOT NULL DEFAULT 0,
	count_download INTEGER NOT NULL DEFAULT 0,
	website TEXT NOT NULL DEFAULT '',
	collector_id INTEGER NOT NULL DEFAULT 1,
	sole INTEGER NOT NULL DEFAULT 0,
	book_count INTEGER NOT NULL DEFAULT 1,
	create_time TEXT
);

CREATE TABLE IF NOT EXISTS readers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	avatar TEXT NOT NULL DEFAULT '',
	create_time TEXT
);

CREATE TABLE IF NOT EXISTS reading_state (
	book_id INTEGER NOT NULL,
	reader_id INTEGER NOT NULL DEFAULT 0,
	favorite INTEGER NOT NULL DEFAULT 0,
	favorite_date TEXT,
	wants INTEGER NOT NULL DEFAULT 0,
	wants_date TEXT,
	read_state INTEGER NOT NULL DEFAULT 0,
	read_date TEXT,
	online_read INTEGER NOT NULL DEFAULT 0,
	download INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (book_id, reader_id)
);

CREATE TABLE IF NOT EXISTS qc_bookdata (
	book_id INTEGER PRIMARY KEY,
	page_count INTEGER NOT NULL DEFAULT 0,
	standard_price REAL NOT NULL DEFAULT 0,
	purchase_price REAL NOT NULL DEFAULT 0,
	purchase_date TEXT,
	paper_binding INTEGER NOT NULL DEFAULT 0,
	hard_binding INTEGER NOT NULL DEFAULT 0,
	note TEXT NOT NULL DEFAULT '',
	total_reading_time INTEGER NOT NULL DEFAULT 0,
	read_pages INTEGER NOT NULL DEFAULT 0,
	reading_count INTEGER NOT NULL DEFAULT 0,
	last_read_date TEXT,
	last_read_duration INTEGER NOT NULL DEFAULT 0,
	created_at TEXT,
	updated_at TEXT
);

CREATE TABLE IF NOT EXISTS qc_bookmarks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	page INTEGER,
	created_at TEXT,
	updated_at TEXT
);

CREATE TABLE IF NOT EXISTS qc_bookmark_tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bookmark_id INTEGER NOT NULL REFERENCES qc_bookmarks(id) ON DELETE CASCADE,
	tag_name TEXT NOT NULL,
	UNIQUE (bookmark_id, tag_name)
);

CREATE TABLE IF NOT EXISTS qc_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at TEXT
);

CREATE TABLE IF NOT EXISTS qc_book_groups (
	book_id INTEGER NOT NULL,
	group_id INTEGER NOT NULL REFERENCES qc_groups(id) ON DELETE CASCADE,
	created_at TEXT,
	PRIMARY KEY (book_id, group_id)
);

CREATE TABLE IF NOT EXISTS qc_reading_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id INTEGER NOT NULL,
	reader_id INTEGER NOT NULL DEFAULT 0,
	start_time TEXT,
	end_time TEXT,
	duration INTEGER NOT NULL DEFAULT 0,
	start_page INTEGER NOT NULL DEFAULT 0,
	end_page INTEGER NOT NULL DEFAULT 0,
	pages_read INTEGER NOT NULL DEFAULT 0,
	note TEXT NOT NULL DEFAULT '',
	created_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_qc_bookmarks_book ON qc_bookmarks (book_id);
CREATE INDEX IF NOT EXISTS idx_qc_book_groups_group ON qc_book_groups (group_id);
CREATE INDEX IF NOT EXISTS idx_qc_reading_sessions_book ON qc_reading_sessions (book_id);
`

// RequiredTables lists the tables and columns the repositories depend on.
var RequiredTables = map[string][]string{
	"items":               {"book_id", "book_type", "count_visit", "count_download", "create_time"},
	"readers":             {"id", "name"},
	"reading_state":       {"book_id", "reader_id", "favorite", "favorite_date", "wants", "wants_date", "read_state", "read_date"},
	"qc_bookdata":         {"book_id", "page_count", "standard_price", "purchase_price", "purchase_date", "note", "total_reading_time", "read_pages", "reading_count", "last_read_date"},
	"qc_bookmarks":        {"id", "book_id", "content", "note", "page", "created_at", "updated_at"},
	"qc_bookmark_tags":    {"bookmark_id", "tag_name"},
	"qc_groups":           {"id", "name", "description"},
	"qc_book_groups":      {"book_id", "group_id"},
	"qc_reading_sessions": {"id", "book_id", "reader_id", "duration", "pages_read"},
}

// BookTables are the extension tables keyed by a bibliographic book id.
var BookTables = []string{"items", "qc_bookdata", "reading_state", "qc_bookmarks", "qc_book_groups", "qc_reading_sessions"}

// EnsureSchema creates any missing extension tables.
func EnsureSchema(ctx context.Context, base *database.BaseRepository) error {
	if _, err := base.Execute(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply talebook schema: %w", err)
	}
	return nil
}
