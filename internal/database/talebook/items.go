package talebook

import (
	"context"
	"fmt"
	"time"

	"github.com/mrlokans/booklog/internal/database"
)

// DefaultBookType is the book type of a book without an items row: a physical book.
const DefaultBookType = 1

var itemsTable = database.Table{Name: "items", Columns: []string{
	"book_id", "book_type", "count_guest", "count_visit", "count_download",
	"website", "collector_id", "sole", "book_count", "create_time",
}}

// Item marks a book as known to the app and carries its type and counters.
type Item struct {
	BookID        int64   `gorm:"column:book_id" json:"book_id"`
	BookType      int     `gorm:"column:book_type" json:"book_type"`
	CountGuest    int64   `gorm:"column:count_guest" json:"count_guest"`
	CountVisit    int64   `gorm:"column:count_visit" json:"count_visit"`
	CountDownload int64   `gorm:"column:count_download" json:"count_download"`
	Website       string  `gorm:"column:website" json:"website"`
	CollectorID   int64   `gorm:"column:collector_id" json:"collector_id"`
	Sole          int     `gorm:"column:sole" json:"sole"`
	BookCount     int     `gorm:"column:book_count" json:"book_count"`
	CreateTime    *string `gorm:"column:create_time" json:"create_time"`
}

const itemColumns = "book_id, book_type, count_guest, count_visit, count_download, website, collector_id, sole, book_count, create_time"

type ItemsRepository struct {
	base *database.BaseRepository
	now  clock
}

func NewItemsRepository(base *database.BaseRepository) *ItemsRepository {
	return &ItemsRepository{base: base, now: time.Now}
}

func (r *ItemsRepository) defaults() database.Record {
	return database.Record{
		"book_type":      DefaultBookType,
		"count_guest":    0,
		"count_visit":    0,
		"count_download": 0,
		"website":        "",
		"collector_id":   1,
		"sole":           0,
		"book_count":     1,
		"create_time":    r.now.stamp(),
	}
}

// FindByBookIDs returns the items rows for ids in one statement.
func (r *ItemsRepository) FindByBookIDs(ctx context.Context, ids []int64) ([]Item, error) {
	if len(ids) == 0 {
		return []Item{}, nil
	}
	var rows []Item
	err := r.base.QueryAll(ctx, &rows, "SELECT "+itemColumns+" FROM items WHERE book_id IN ?", ids)
	return rows, err
}

// Get returns the items row of a book or database.ErrNotFound.
func (r *ItemsRepository) Get(ctx context.Context, bookID int64) (*Item, error) {
	var item Item
	found, err := r.base.QueryOne(ctx, &item, "SELECT "+itemColumns+" FROM items WHERE book_id = ?", bookID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("item %d: %w", bookID, database.ErrNotFound)
	}
	return &item, nil
}

// Upsert updates the given columns, or inserts a default-filled row carrying them.
func (r *ItemsRepository) Upsert(ctx context.Context, bookID int64, changes database.Record) error {
	_, err := upsert(ctx, r.base, itemsTable, database.Record{"book_id": bookID}, changes, r.defaults())
	return err
}

// EnsureExists inserts a default row when the book has none and reports whether it did.
func (r *ItemsRepository) EnsureExists(ctx context.Context, bookID int64) (bool, error) {
	return upsert(ctx, r.base, itemsTable, database.Record{"book_id": bookID}, database.Record{}, r.defaults())
}

// SetBookType sets the type of a book, creating its items row when needed.
func (r *ItemsRepository) SetBookType(ctx context.Context, bookID int64, bookType int) error {
	return r.Upsert(ctx, bookID, database.Record{"book_type": bookType})
}

// IncrementVisit bumps the visit counter of an existing row.
func (r *ItemsRepository) IncrementVisit(ctx context.Context, bookID int64) error {
	_, err := r.base.Execute(ctx, "UPDATE items SET count_visit = count_visit + 1 WHERE book_id = ?", bookID)
	return err
}

func (r *ItemsRepository) Delete(ctx context.Context, bookID int64) error {
	_, err := r.base.Delete(ctx, itemsTable, "book_id = ?", bookID)
	return err
}

// BookIDs returns every book id that has an items row.
func (r *ItemsRepository) BookIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.base.QueryAll(ctx, &ids, "SELECT book_id FROM items ORDER BY book_id")
	return ids, err
}
