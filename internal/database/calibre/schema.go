package calibre

import (
	"context"
	"fmt"

	"github.com/mrlokans/booklog/internal/database"
)

// Schema is the subset of the Calibre metadata.db layout this application
// reads and writes, including Calibre's books triggers. Link tables cascade
// on book deletion.
const Schema = `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL DEFAULT 'Unknown' COLLATE NOCASE,
	sort TEXT COLLATE NOCASE,
	timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	pubdate TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	series_index REAL NOT NULL DEFAULT 1.0,
	author_sort TEXT COLLATE NOCASE,
	isbn TEXT DEFAULT '' COLLATE NOCASE,
	lccn TEXT DEFAULT '' COLLATE NOCASE,
	path TEXT NOT NULL DEFAULT '',
	flags INTEGER NOT NULL DEFAULT 1,
	uuid TEXT,
	has_cover BOOL DEFAULT 0,
	last_modified TIMESTAMP NOT NULL DEFAULT '2000-01-01 00:00:00+00:00'
);

CREATE TABLE IF NOT EXISTS authors (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL COLLATE NOCASE,
	sort TEXT COLLATE NOCASE,
	link TEXT NOT NULL DEFAULT '',
	UNIQUE(name)
);

CREATE TABLE IF NOT EXISTS books_authors_link (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	author INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
	UNIQUE(book, author)
);

CREATE TABLE IF NOT EXISTS publishers (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL COLLATE NOCASE,
	sort TEXT COLLATE NOCASE,
	link TEXT NOT NULL DEFAULT '',
	UNIQUE(name)
);

CREATE TABLE IF NOT EXISTS books_publishers_link (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	publisher INTEGER NOT NULL REFERENCES publishers(id) ON DELETE CASCADE,
	UNIQUE(book)
);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL COLLATE NOCASE,
	link TEXT NOT NULL DEFAULT '',
	UNIQUE(name)
);

CREATE TABLE IF NOT EXISTS books_tags_link (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	tag INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	UNIQUE(book, tag)
);

CREATE TABLE IF NOT EXISTS series (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL COLLATE NOCASE,
	sort TEXT COLLATE NOCASE,
	link TEXT NOT NULL DEFAULT '',
	UNIQUE(name)
);

CREATE TABLE IF NOT EXISTS books_series_link (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	series INTEGER NOT NULL REFERENCES series(id) ON DELETE CASCADE,
	UNIQUE(book)
);

CREATE TABLE IF NOT EXISTS languages (
	id INTEGER PRIMARY KEY,
	lang_code TEXT NOT NULL COLLATE NOCASE,
	link TEXT NOT NULL DEFAULT '',
	UNIQUE(lang_code)
);

CREATE TABLE IF NOT EXISTS books_languages_link (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	lang_code INTEGER NOT NULL REFERENCES languages(id) ON DELETE CASCADE,
	item_order INTEGER NOT NULL DEFAULT 0,
	UNIQUE(book, lang_code)
);

CREATE TABLE IF NOT EXISTS ratings (
	id INTEGER PRIMARY KEY,
	rating INTEGER CHECK(rating > -1 AND rating < 11),
	link TEXT NOT NULL DEFAULT '',
	UNIQUE(rating)
);

CREATE TABLE IF NOT EXISTS books_ratings_link (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	rating INTEGER NOT NULL REFERENCES ratings(id) ON DELETE CASCADE,
	UNIQUE(book, rating)
);

CREATE TABLE IF NOT EXISTS identifiers (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	type TEXT NOT NULL DEFAULT 'isbn' COLLATE NOCASE,
	val TEXT NOT NULL COLLATE NOCASE,
	UNIQUE(book, type)
);

CREATE TABLE IF NOT EXISTS comments (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	text TEXT NOT NULL COLLATE NOCASE,
	UNIQUE(book)
);

CREATE TABLE IF NOT EXISTS data (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	format TEXT NOT NULL COLLATE NOCASE,
	uncompressed_size INTEGER NOT NULL,
	name TEXT NOT NULL,
	UNIQUE(book, format)
);

CREATE INDEX IF NOT EXISTS books_idx ON books (sort COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS books_authors_link_bidx ON books_authors_link (book);
CREATE INDEX IF NOT EXISTS books_tags_link_bidx ON books_tags_link (book);
CREATE INDEX IF NOT EXISTS identifiers_bidx ON identifiers (book);

CREATE TRIGGER IF NOT EXISTS books_insert_trg AFTER INSERT ON books
BEGIN
	UPDATE books SET sort=title_sort(NEW.title),uuid=uuid4() WHERE id=NEW.id;
END;

CREATE TRIGGER IF NOT EXISTS books_update_trg AFTER UPDATE ON books
BEGIN
	UPDATE books SET sort=title_sort(NEW.title)
		WHERE id=NEW.id AND OLD.title <> NEW.title;
END;
`

// RequiredTables lists the tables and columns the repositories depend on.
var RequiredTables = map[string][]string{
	"books":                 {"id", "title", "timestamp", "pubdate", "series_index", "path", "uuid", "has_cover", "last_modified"},
	"authors":               {"id", "name", "sort"},
	"books_authors_link":    {"book", "author"},
	"publishers":            {"id", "name"},
	"books_publishers_link": {"book", "publisher"},
	"tags":                  {"id", "name"},
	"books_tags_link":       {"book", "tag"},
	"series":                {"id", "name"},
	"books_series_link":     {"book", "series"},
	"languages":             {"id", "lang_code"},
	"books_languages_link":  {"book", "lang_code", "item_order"},
	"ratings":               {"id", "rating"},
	"books_ratings_link":    {"book", "rating"},
	"identifiers":           {"book", "type", "val"},
	"comments":              {"book", "text"},
	"data":                  {"book", "format"},
}

// EnsureSchema creates any missing bibliographic tables.
func EnsureSchema(ctx context.Context, base *database.BaseRepository) error {
	if _, err := base.Execute(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply calibre schema: %w", err)
	}
	return nil
}
