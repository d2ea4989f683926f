package calibre

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrlokans/booklog/internal/database"
)

// Named is one row of a Calibre name table together with its book count.
type Named struct {
	ID        int64  `gorm:"column:id" json:"id"`
	Name      string `gorm:"column:name" json:"name"`
	BookCount int64  `gorm:"column:book_count" json:"book_count"`
}

// nameTable describes a name table and the link table joining it to books.
type nameTable struct {
	table      database.Table
	nameColumn string
	link       database.Table
	linkColumn string
}

// nameRepository implements the find-or-create and relink logic shared by
// authors, publishers, tags, series and languages.
type nameRepository struct {
	base *database.BaseRepository
	t    nameTable
}

func (r nameRepository) findID(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	query := fmt.Sprintf("SELECT id FROM %s WHERE %s = ? LIMIT 1", r.t.table.Name, r.t.nameColumn)
	found, err := r.base.QueryOne(ctx, &id, query, name)
	if err != nil {
		return 0, false, err
	}
	return id, found, nil
}

// FindOrCreate returns the id for name, inserting a row when none matches.
// Names compare case-insensitively, as the Calibre columns are NOCASE.
func (r nameRepository) FindOrCreate(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%s: empty name", r.t.table.Name)
	}
	id, found, err := r.findID(ctx, name)
	if err != nil {
		return 0, err
	}
	if found {
		return id, nil
	}

	rec := database.Record{r.t.nameColumn: name}
	if r.t.table.Has("sort") {
		rec["sort"] = sortName(r.t.table.Name, name)
	}
	return r.base.Insert(ctx, r.t.table, rec)
}

// FindAll lists every row ordered by name, with the number of linked books.
func (r nameRepository) FindAll(ctx context.Context) ([]Named, error) {
	query := fmt.Sprintf(`
		SELECT n.id AS id, n.%[1]s AS name,
			(SELECT COUNT(*) FROM %[3]s l WHERE l.%[4]s = n.id) AS book_count
		FROM %[2]s n
		ORDER BY n.%[1]s COLLATE NOCASE`,
		r.t.nameColumn, r.t.table.Name, r.t.link.Name, r.t.linkColumn)
	var rows []Named
	if err := r.base.QueryAll(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByBook lists the rows linked to one book in link order.
func (r nameRepository) FindByBook(ctx context.Context, bookID int64) ([]Named, error) {
	query := fmt.Sprintf(`
		SELECT n.id AS id, n.%[1]s AS name, 0 AS book_count
		FROM %[3]s l JOIN %[2]s n ON n.id = l.%[4]s
		WHERE l.book = ?
		ORDER BY l.id`,
		r.t.nameColumn, r.t.table.Name, r.t.link.Name, r.t.linkColumn)
	var rows []Named
	if err := r.base.QueryAll(ctx, &rows, query, bookID); err != nil {
		return nil, err
	}
	return rows, nil
}

// Unlink removes every link between the book and this table.
func (r nameRepository) Unlink(ctx context.Context, bookID int64) error {
	_, err := r.base.Delete(ctx, r.t.link, "book = ?", bookID)
	return err
}

// Link replaces the book's links with ids, keeping their order.
func (r nameRepository) Link(ctx context.Context, bookID int64, ids []int64) error {
	if err := r.Unlink(ctx, bookID); err != nil {
		return err
	}
	seen := make(map[int64]bool, len(ids))
	for i, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		rec := database.Record{"book": bookID, r.t.linkColumn: id}
		if r.t.link.Has("item_order") {
			rec["item_order"] = i
		}
		if _, err := r.base.Insert(ctx, r.t.link, rec); err != nil {
			return err
		}
	}
	return nil
}

// LinkNames resolves names with FindOrCreate and links them to the book.
func (r nameRepository) LinkNames(ctx context.Context, bookID int64, names []string) error {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		id, err := r.FindOrCreate(ctx, name)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	return r.Link(ctx, bookID, ids)
}

// DeleteOrphans removes rows no book links to and returns how many went.
func (r nameRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	where := fmt.Sprintf("id NOT IN (SELECT %s FROM %s)", r.t.linkColumn, r.t.link.Name)
	return r.base.Delete(ctx, r.t.table, where)
}

// sortName derives the Calibre sort value. Authors sort as "Last, First".
func sortName(table, name string) string {
	if table != "authors" {
		return name
	}
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return name
	}
	last := parts[len(parts)-1]
	return last + ", " + strings.Join(parts[:len(parts)-1], " ")
}

var (
	authorsTable = nameTable{
		table:      database.Table{Name: "authors", Columns: []string{"name", "sort", "link"}},
		nameColumn: "name",
		link:       database.Table{Name: "books_authors_link", Columns: []string{"book", "author"}},
		linkColumn: "author",
	}
	publishersTable = nameTable{
		table:      database.Table{Name: "publishers", Columns: []string{"name", "sort", "link"}},
		nameColumn: "name",
		link:       database.Table{Name: "books_publishers_link", Columns: []string{"book", "publisher"}},
		linkColumn: "publisher",
	}
	tagsTable = nameTable{
		table:      database.Table{Name: "tags", Columns: []string{"name", "link"}},
		nameColumn: "name",
		link:       database.Table{Name: "books_tags_link", Columns: []string{"book", "tag"}},
		linkColumn: "tag",
	}
	seriesTable = nameTable{
		table:      database.Table{Name: "series", Columns: []string{"name", "sort", "link"}},
		nameColumn: "name",
		link:       database.Table{Name: "books_series_link", Columns: []string{"book", "series"}},
		linkColumn: "series",
	}
	languagesTable = nameTable{
		table:      database.Table{Name: "languages", Columns: []string{"lang_code", "link"}},
		nameColumn: "lang_code",
		link:       database.Table{Name: "books_languages_link", Columns: []string{"book", "lang_code", "item_order"}},
		linkColumn: "lang_code",
	}
)

// AuthorRepository manages the authors table and its book links.
type AuthorRepository struct{ nameRepository }

func NewAuthorRepository(base *database.BaseRepository) *AuthorRepository {
	return &AuthorRepository{nameRepository{base: base, t: authorsTable}}
}

// PublisherRepository manages the publishers table. A book has at most one publisher.
type PublisherRepository struct{ nameRepository }

func NewPublisherRepository(base *database.BaseRepository) *PublisherRepository {
	return &PublisherRepository{nameRepository{base: base, t: publishersTable}}
}

// TagRepository manages the tags table and its book links.
type TagRepository struct{ nameRepository }

func NewTagRepository(base *database.BaseRepository) *TagRepository {
	return &TagRepository{nameRepository{base: base, t: tagsTable}}
}

func newSeriesRepository(base *database.BaseRepository) nameRepository {
	return nameRepository{base: base, t: seriesTable}
}

func newLanguageRepository(base *database.BaseRepository) nameRepository {
	return nameRepository{base: base, t: languagesTable}
}
