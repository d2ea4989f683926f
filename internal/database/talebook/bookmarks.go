package talebook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mrlokans/booklog/internal/database"
)

var (
	bookmarksTable    = database.Table{Name: "qc_bookmarks", Columns: []string{"book_id", "content", "note", "page", "created_at", "updated_at"}}
	bookmarkTagsTable = database.Table{Name: "qc_bookmark_tags", Columns: []string{"bookmark_id", "tag_name"}}
)

// Bookmark is an excerpt attached to a book, with a free-text tag set.
type Bookmark struct {
	ID        int64    `gorm:"column:id" json:"id"`
	BookID    int64    `gorm:"column:book_id" json:"book_id"`
	Content   string   `gorm:"column:content" json:"content"`
	Note      string   `gorm:"column:note" json:"note"`
	Page      *int64   `gorm:"column:page" json:"page"`
	CreatedAt *string  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt *string  `gorm:"column:updated_at" json:"updated_at"`
	Tags      []string `gorm:"-" json:"tags"`
}

const bookmarkColumns = "id, book_id, content, note, page, created_at, updated_at"

// BookmarkInput creates a bookmark.
type BookmarkInput struct {
	BookID  int64
	Content string
	Note    string
	Page    *int64
	Tags    []string
}

// BookmarkPatch changes a bookmark. A non-nil Tags replaces the whole tag set.
type BookmarkPatch struct {
	Content *string
	Note    *string
	Page    *int64
	Tags    *[]string
}

// TagCount is a bookmark tag and the number of bookmarks carrying it.
type TagCount struct {
	Name  string `gorm:"column:name" json:"name"`
	Count int64  `gorm:"column:count" json:"count"`
}

type bookmarkTag struct {
	BookmarkID int64  `gorm:"column:bookmark_id"`
	TagName    string `gorm:"column:tag_name"`
}

type BookmarksRepository struct {
	base *database.BaseRepository
	now  clock
}

func NewBookmarksRepository(base *database.BaseRepository) *BookmarksRepository {
	return &BookmarksRepository{base: base, now: time.Now}
}

// FindByBook lists a book's bookmarks by page, then creation order.
func (r *BookmarksRepository) FindByBook(ctx context.Context, bookID int64) ([]Bookmark, error) {
	var rows []Bookmark
	err := r.base.QueryAll(ctx, &rows,
		"SELECT "+bookmarkColumns+" FROM qc_bookmarks WHERE book_id = ? ORDER BY page IS NULL, page, id", bookID)
	if err != nil {
		return nil, err
	}
	if err := r.loadTags(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Get returns one bookmark with its tags or database.ErrNotFound.
func (r *BookmarksRepository) Get(ctx context.Context, id int64) (*Bookmark, error) {
	var rows []Bookmark
	if err := r.base.QueryAll(ctx, &rows, "SELECT "+bookmarkColumns+" FROM qc_bookmarks WHERE id = ?", id); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("bookmark %d: %w", id, database.ErrNotFound)
	}
	if err := r.loadTags(ctx, rows); err != nil {
		return nil, err
	}
	return &rows[0], nil
}

func (r *BookmarksRepository) loadTags(ctx context.Context, bookmarks []Bookmark) error {
	if len(bookmarks) == 0 {
		return nil
	}
	ids := make([]int64, len(bookmarks))
	index := make(map[int64]int, len(bookmarks))
	for i := range bookmarks {
		ids[i] = bookmarks[i].ID
		index[bookmarks[i].ID] = i
		bookmarks[i].Tags = []string{}
	}

	var tags []bookmarkTag
	err := r.base.QueryAll(ctx, &tags,
		"SELECT bookmark_id, tag_name FROM qc_bookmark_tags WHERE bookmark_id IN ? ORDER BY id", ids)
	if err != nil {
		return err
	}
	for _, t := range tags {
		i := index[t.BookmarkID]
		bookmarks[i].Tags = append(bookmarks[i].Tags, t.TagName)
	}
	return nil
}

// Create inserts a bookmark and its tags in one transaction.
func (r *BookmarksRepository) Create(ctx context.Context, in BookmarkInput) (*Bookmark, error) {
	var id int64
	err := r.base.Transaction(ctx, func(tx *database.BaseRepository) error {
		now := r.now.stamp()
		var err error
		id, err = tx.Insert(ctx, bookmarksTable, database.Record{
			"book_id":    in.BookID,
			"content":    in.Content,
			"note":       in.Note,
			"page":       in.Page,
			"created_at": now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		return insertTags(ctx, tx, id, in.Tags)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bookmark: %w", err)
	}
	return r.Get(ctx, id)
}

// Update applies p. Replacing tags deletes the old set and inserts the new
// one inside the same transaction as the row update.
func (r *BookmarksRepository) Update(ctx context.Context, id int64, p BookmarkPatch) (*Bookmark, error) {
	err := r.base.Transaction(ctx, func(tx *database.BaseRepository) error {
		rec := database.Record{"updated_at": r.now.stamp()}
		if p.Content != nil {
			rec["content"] = *p.Content
		}
		if p.Note != nil {
			rec["note"] = *p.Note
		}
		if p.Page != nil {
			rec["page"] = *p.Page
		}
		n, err := tx.Update(ctx, bookmarksTable, rec, "id = ?", id)
		if err != nil {
			return err
		}
		if n == 0 {
			return database.ErrNotFound
		}
		if p.Tags == nil {
			return nil
		}
		if _, err := tx.Delete(ctx, bookmarkTagsTable, "bookmark_id = ?", id); err != nil {
			return err
		}
		return insertTags(ctx, tx, id, *p.Tags)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update bookmark %d: %w", id, err)
	}
	return r.Get(ctx, id)
}

func insertTags(ctx context.Context, tx *database.BaseRepository, bookmarkID int64, tags []string) error {
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		if _, err := tx.Insert(ctx, bookmarkTagsTable, database.Record{"bookmark_id": bookmarkID, "tag_name": tag}); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a bookmark; its tags cascade.
func (r *BookmarksRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.base.Delete(ctx, bookmarksTable, "id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("bookmark %d: %w", id, database.ErrNotFound)
	}
	return nil
}

// DeleteByBook removes every bookmark of a book.
func (r *BookmarksRepository) DeleteByBook(ctx context.Context, bookID int64) error {
	_, err := r.base.Delete(ctx, bookmarksTable, "book_id = ?", bookID)
	return err
}

// AllTags lists every bookmark tag with its usage count, most used first.
func (r *BookmarksRepository) AllTags(ctx context.Context) ([]TagCount, error) {
	var rows []TagCount
	err := r.base.QueryAll(ctx, &rows,
		"SELECT tag_name AS name, COUNT(*) AS count FROM qc_bookmark_tags GROUP BY tag_name ORDER BY count DESC, tag_name")
	return rows, err
}
