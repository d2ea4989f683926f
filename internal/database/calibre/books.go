package calibre

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mrlokans/booklog/internal/database"
)

// TimeLayout is the timestamp format Calibre writes into books.
const TimeLayout = "2006-01-02 15:04:05.000000-07:00"

var (
	booksTable = database.Table{Name: "books", Columns: []string{
		"title", "sort", "timestamp", "pubdate", "series_index", "author_sort",
		"path", "uuid", "has_cover", "last_modified",
	}}
	ratingsTable     = database.Table{Name: "ratings", Columns: []string{"rating"}}
	ratingsLinkTable = database.Table{Name: "books_ratings_link", Columns: []string{"book", "rating"}}
	identifiersTable = database.Table{Name: "identifiers", Columns: []string{"book", "type", "val"}}
	commentsTable    = database.Table{Name: "comments", Columns: []string{"book", "text"}}
)

// BookRow is one book as projected from the bibliographic store. Tags and
// Formats hold JSON string arrays; decode them with ParseList.
type BookRow struct {
	ID           int64    `gorm:"column:id"`
	Title        string   `gorm:"column:title"`
	Sort         *string  `gorm:"column:sort"`
	Timestamp    *string  `gorm:"column:timestamp"`
	Pubdate      *string  `gorm:"column:pubdate"`
	LastModified *string  `gorm:"column:last_modified"`
	SeriesIndex  float64  `gorm:"column:series_index"`
	Path         string   `gorm:"column:path"`
	UUID         *string  `gorm:"column:uuid"`
	HasCover     bool     `gorm:"column:has_cover"`
	Author       *string  `gorm:"column:author"`
	ISBN         *string  `gorm:"column:isbn"`
	Rating       *float64 `gorm:"column:rating"`
	Description  *string  `gorm:"column:description"`
	Publisher    *string  `gorm:"column:publisher"`
	Language     *string  `gorm:"column:language"`
	Series       *string  `gorm:"column:series"`
	Tags         *string  `gorm:"column:tags"`
	Formats      *string  `gorm:"column:formats"`
}

// Date columns are cast to TEXT so the driver hands back the stored string
// instead of a parsed time, which would zero out free-text pubdates.
const bookProjection = `
SELECT
	b.id AS id,
	b.title AS title,
	b.sort AS sort,
	CAST(b.timestamp AS TEXT) AS timestamp,
	CAST(b.pubdate AS TEXT) AS pubdate,
	CAST(b.last_modified AS TEXT) AS last_modified,
	b.series_index AS series_index,
	b.path AS path,
	b.uuid AS uuid,
	b.has_cover AS has_cover,
	(SELECT GROUP_CONCAT(a.name, ' & ' ORDER BY l.id)
		FROM books_authors_link l JOIN authors a ON a.id = l.author
		WHERE l.book = b.id) AS author,
	(SELECT i.val FROM identifiers i
		WHERE i.book = b.id AND i.type = 'isbn' LIMIT 1) AS isbn,
	(SELECT r.rating / 2.0
		FROM books_ratings_link l JOIN ratings r ON r.id = l.rating
		WHERE l.book = b.id LIMIT 1) AS rating,
	(SELECT c.text FROM comments c WHERE c.book = b.id) AS description,
	(SELECT p.name
		FROM books_publishers_link l JOIN publishers p ON p.id = l.publisher
		WHERE l.book = b.id LIMIT 1) AS publisher,
	(SELECT lg.lang_code
		FROM books_languages_link l JOIN languages lg ON lg.id = l.lang_code
		WHERE l.book = b.id ORDER BY l.item_order LIMIT 1) AS language,
	(SELECT s.name
		FROM books_series_link l JOIN series s ON s.id = l.series
		WHERE l.book = b.id LIMIT 1) AS series,
	(SELECT json_group_array(t.name ORDER BY l.id)
		FROM books_tags_link l JOIN tags t ON t.id = l.tag
		WHERE l.book = b.id) AS tags,
	(SELECT json_group_array(UPPER(d.format) ORDER BY d.format)
		FROM data d WHERE d.book = b.id) AS formats
FROM books b`

const bookOrder = " ORDER BY b.last_modified DESC, b.id DESC"

// ListOptions pages FindAll. A zero Limit returns every row.
type ListOptions struct {
	Limit  int
	Offset int
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return -1
	}
	return o.Limit
}

// SearchFilters narrows Search. Empty fields are ignored and the rest are ANDed.
type SearchFilters struct {
	Keyword   string
	Author    string
	Publisher string
	Limit     int
	Offset    int
}

// BookWrite is the full input for creating a book. Rating is on the 0-5 scale.
type BookWrite struct {
	Title       string
	Authors     []string
	Publisher   string
	Series      string
	SeriesIndex float64
	Tags        []string
	Language    string
	ISBN        string
	Rating      *float64
	Description string
	Pubdate     string
	HasCover    bool
}

// BookPatch changes a book. Nil fields are left untouched; empty strings clear
// the relation.
type BookPatch struct {
	Title       *string
	Authors     *[]string
	Publisher   *string
	Series      *string
	SeriesIndex *float64
	Tags        *[]string
	Language    *string
	ISBN        *string
	Rating      *float64
	Description *string
	Pubdate     *string
	HasCover    *bool
}

func (w BookWrite) patch() BookPatch {
	rating := 0.0
	if w.Rating != nil {
		rating = *w.Rating
	}
	return BookPatch{
		Authors:     &w.Authors,
		Publisher:   &w.Publisher,
		Series:      &w.Series,
		Tags:        &w.Tags,
		Language:    &w.Language,
		ISBN:        &w.ISBN,
		Rating:      &rating,
		Description: &w.Description,
	}
}

// BookRepository reads and writes books together with their link rows.
type BookRepository struct {
	base *database.BaseRepository
	now  func() time.Time
}

func NewBookRepository(base *database.BaseRepository) *BookRepository {
	return &BookRepository{base: base, now: time.Now}
}

func (r *BookRepository) stamp() string {
	return r.now().UTC().Format(TimeLayout)
}

// checkpoint runs a passive WAL checkpoint so this connection reads the
// latest frames committed by other connections to the same file.
func (r *BookRepository) checkpoint(ctx context.Context) {
	if _, err := r.base.Execute(ctx, "PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
		log.Warn().Err(err).Msg("wal checkpoint failed")
	}
}

// FindAll returns books ordered by last_modified, newest first.
func (r *BookRepository) FindAll(ctx context.Context, opts ListOptions) ([]BookRow, error) {
	r.checkpoint(ctx)

	var rows []BookRow
	query := bookProjection + bookOrder + " LIMIT ? OFFSET ?"
	if err := r.base.QueryAll(ctx, &rows, query, opts.limit(), opts.Offset); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return rows, nil
}

// FindByID returns one book or database.ErrNotFound.
func (r *BookRepository) FindByID(ctx context.Context, id int64) (*BookRow, error) {
	var row BookRow
	found, err := r.base.QueryOne(ctx, &row, bookProjection+" WHERE b.id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get book %d: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("book %d: %w", id, database.ErrNotFound)
	}
	return &row, nil
}

// FindByIDs returns the books among ids that exist, newest first.
func (r *BookRepository) FindByIDs(ctx context.Context, ids []int64) ([]BookRow, error) {
	if len(ids) == 0 {
		return []BookRow{}, nil
	}
	var rows []BookRow
	if err := r.base.QueryAll(ctx, &rows, bookProjection+" WHERE b.id IN ?"+bookOrder, ids); err != nil {
		return nil, fmt.Errorf("failed to get books: %w", err)
	}
	return rows, nil
}

// Search matches books against the non-empty filters.
func (r *BookRepository) Search(ctx context.Context, f SearchFilters) ([]BookRow, error) {
	var clauses []string
	var args []any

	if f.Keyword != "" {
		like := likePattern(f.Keyword)
		clauses = append(clauses, `(b.title LIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM identifiers i WHERE i.book = b.id AND i.val LIKE ? ESCAPE '\'))`)
		args = append(args, like, like)
	}
	if f.Author != "" {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM books_authors_link l JOIN authors a ON a.id = l.author
			WHERE l.book = b.id AND a.name LIKE ? ESCAPE '\')`)
		args = append(args, likePattern(f.Author))
	}
	if f.Publisher != "" {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM books_publishers_link l JOIN publishers p ON p.id = l.publisher
			WHERE l.book = b.id AND p.name LIKE ? ESCAPE '\')`)
		args = append(args, likePattern(f.Publisher))
	}

	query := bookProjection
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += bookOrder + " LIMIT ? OFFSET ?"
	args = append(args, ListOptions{Limit: f.Limit}.limit(), f.Offset)

	var rows []BookRow
	if err := r.base.QueryAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search books: %w", err)
	}
	return rows, nil
}

func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

// Create inserts a book and its relations in one transaction and returns the new id.
func (r *BookRepository) Create(ctx context.Context, in BookWrite) (int64, error) {
	var id int64
	err := r.base.Transaction(ctx, func(tx *database.BaseRepository) error {
		now := r.stamp()
		rec := database.Record{
			"title":         in.Title,
			"sort":          titleSort(in.Title),
			"author_sort":   authorSort(in.Authors),
			"timestamp":     now,
			"last_modified": now,
			"series_index":  seriesIndex(in.SeriesIndex),
			"uuid":          uuid.NewString(),
			"has_cover":     in.HasCover,
			"pubdate":       nullIfEmpty(in.Pubdate),
		}
		var err error
		if id, err = tx.Insert(ctx, booksTable, rec); err != nil {
			return err
		}
		path := bookPath(in.Authors, in.Title, id)
		if _, err := tx.Update(ctx, booksTable, database.Record{"path": path}, "id = ?", id); err != nil {
			return err
		}
		return writeRelations(ctx, tx, id, in.patch())
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create book: %w", err)
	}
	return id, nil
}

// Update applies p to an existing book in one transaction.
func (r *BookRepository) Update(ctx context.Context, id int64, p BookPatch) error {
	err := r.base.Transaction(ctx, func(tx *database.BaseRepository) error {
		exists, err := tx.Exists(ctx, booksTable, "id = ?", id)
		if err != nil {
			return err
		}
		if !exists {
			return database.ErrNotFound
		}

		rec := database.Record{"last_modified": r.stamp()}
		if p.Title != nil {
			rec["title"] = *p.Title
			rec["sort"] = titleSort(*p.Title)
		}
		if p.Authors != nil {
			rec["author_sort"] = authorSort(*p.Authors)
		}
		if p.SeriesIndex != nil {
			rec["series_index"] = seriesIndex(*p.SeriesIndex)
		}
		if p.Pubdate != nil {
			rec["pubdate"] = nullIfEmpty(*p.Pubdate)
		}
		if p.HasCover != nil {
			rec["has_cover"] = *p.HasCover
		}
		if _, err := tx.Update(ctx, booksTable, rec, "id = ?", id); err != nil {
			return err
		}
		return writeRelations(ctx, tx, id, p)
	})
	if err != nil {
		return fmt.Errorf("failed to update book %d: %w", id, err)
	}
	return nil
}

// Delete removes a book. Link tables, identifiers and comments cascade.
func (r *BookRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.base.Delete(ctx, booksTable, "id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete book %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("book %d: %w", id, database.ErrNotFound)
	}
	return nil
}

// Exists reports whether a book with id is present.
func (r *BookRepository) Exists(ctx context.Context, id int64) (bool, error) {
	return r.base.Exists(ctx, booksTable, "id = ?", id)
}

// AllIDs returns every book id in ascending order.
func (r *BookRepository) AllIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.base.QueryAll(ctx, &ids, "SELECT id FROM books ORDER BY id"); err != nil {
		return nil, err
	}
	return ids, nil
}

// Count returns the number of books.
func (r *BookRepository) Count(ctx context.Context) (int64, error) {
	return r.base.Count(ctx, booksTable, "")
}

func writeRelations(ctx context.Context, tx *database.BaseRepository, id int64, p BookPatch) error {
	if p.Authors != nil {
		if err := NewAuthorRepository(tx).LinkNames(ctx, id, *p.Authors); err != nil {
			return err
		}
	}
	single := []struct {
		value *string
		repo  nameRepository
	}{
		{p.Publisher, NewPublisherRepository(tx).nameRepository},
		{p.Series, newSeriesRepository(tx)},
		{p.Language, newLanguageRepository(tx)},
	}
	for _, s := range single {
		if s.value == nil {
			continue
		}
		if err := s.repo.LinkNames(ctx, id, []string{*s.value}); err != nil {
			return err
		}
	}
	if p.Tags != nil {
		if err := NewTagRepository(tx).LinkNames(ctx, id, *p.Tags); err != nil {
			return err
		}
	}
	if p.ISBN != nil {
		if err := writeISBN(ctx, tx, id, *p.ISBN); err != nil {
			return err
		}
	}
	if p.Rating != nil {
		if err := writeRating(ctx, tx, id, *p.Rating); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := writeComment(ctx, tx, id, *p.Description); err != nil {
			return err
		}
	}
	return nil
}

func writeISBN(ctx context.Context, tx *database.BaseRepository, id int64, isbn string) error {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		_, err := tx.Delete(ctx, identifiersTable, "book = ? AND type = 'isbn'", id)
		return err
	}
	_, err := tx.Execute(ctx, `INSERT INTO identifiers (book, type, val) VALUES (?, 'isbn', ?)
		ON CONFLICT(book, type) DO UPDATE SET val = excluded.val`, id, isbn)
	return err
}

// writeRating stores a 0-5 rating on Calibre's 0-10 scale. Zero clears it.
func writeRating(ctx context.Context, tx *database.BaseRepository, id int64, rating float64) error {
	if _, err := tx.Delete(ctx, ratingsLinkTable, "book = ?", id); err != nil {
		return err
	}
	stored := int(math.Round(rating * 2))
	if stored <= 0 {
		return nil
	}
	if stored > 10 {
		stored = 10
	}

	var ratingID int64
	found, err := tx.QueryOne(ctx, &ratingID, "SELECT id FROM ratings WHERE rating = ?", stored)
	if err != nil {
		return err
	}
	if !found {
		if ratingID, err = tx.Insert(ctx, ratingsTable, database.Record{"rating": stored}); err != nil {
			return err
		}
	}
	_, err = tx.Insert(ctx, ratingsLinkTable, database.Record{"book": id, "rating": ratingID})
	return err
}

func writeComment(ctx context.Context, tx *database.BaseRepository, id int64, text string) error {
	if strings.TrimSpace(text) == "" {
		_, err := tx.Delete(ctx, commentsTable, "book = ?", id)
		return err
	}
	_, err := tx.Execute(ctx, `INSERT INTO comments (book, text) VALUES (?, ?)
		ON CONFLICT(book) DO UPDATE SET text = excluded.text`, id, text)
	return err
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func seriesIndex(v float64) float64 {
	if v <= 0 {
		return 1.0
	}
	return v
}

func titleSort(title string) string {
	return database.TitleSort(title)
}

func authorSort(authors []string) string {
	sorted := make([]string, 0, len(authors))
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			sorted = append(sorted, sortName("authors", a))
		}
	}
	return strings.Join(sorted, " & ")
}

var pathReplacer = strings.NewReplacer("/", "_", `\`, "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_")

// bookPath builds the library-relative folder, "Author/Title (id)".
func bookPath(authors []string, title string, id int64) string {
	author := "Unknown"
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			author = a
			break
		}
	}
	return fmt.Sprintf("%s/%s (%d)", strings.TrimSpace(pathReplacer.Replace(author)), strings.TrimSpace(pathReplacer.Replace(title)), id)
}
