package talebook

import (
	"context"
	"fmt"
	"time"

	"github.com/mrlokans/booklog/internal/database"
)

var bookdataTable = database.Table{Name: "qc_bookdata", Columns: []string{
	"book_id", "page_count", "standard_price", "purchase_price", "purchase_date",
	"paper_binding", "hard_binding", "note", "total_reading_time", "read_pages",
	"reading_count", "last_read_date", "last_read_duration", "created_at", "updated_at",
}}

// BookdataColumns are the qc_bookdata columns a client may set directly.
// The reading accumulators are written only through AddReading.
var BookdataColumns = []string{
	"page_count", "standard_price", "purchase_price", "purchase_date",
	"paper_binding", "hard_binding", "note",
}

// Bookdata holds extension fields and reading-progress accumulators of one book.
type Bookdata struct {
	BookID           int64   `gorm:"column:book_id" json:"book_id"`
	PageCount        int64   `gorm:"column:page_count" json:"page_count"`
	StandardPrice    float64 `gorm:"column:standard_price" json:"standard_price"`
	PurchasePrice    float64 `gorm:"column:purchase_price" json:"purchase_price"`
	PurchaseDate     *string `gorm:"column:purchase_date" json:"purchase_date"`
	PaperBinding     int     `gorm:"column:paper_binding" json:"paper_binding"`
	HardBinding      int     `gorm:"column:hard_binding" json:"hard_binding"`
	Note             string  `gorm:"column:note" json:"note"`
	TotalReadingTime int64   `gorm:"column:total_reading_time" json:"total_reading_time"`
	ReadPages        int64   `gorm:"column:read_pages" json:"read_pages"`
	ReadingCount     int64   `gorm:"column:reading_count" json:"reading_count"`
	LastReadDate     *string `gorm:"column:last_read_date" json:"last_read_date"`
	LastReadDuration int64   `gorm:"column:last_read_duration" json:"last_read_duration"`
	CreatedAt        *string `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        *string `gorm:"column:updated_at" json:"updated_at"`
}

const bookdataColumns = "book_id, page_count, standard_price, purchase_price, purchase_date, paper_binding, hard_binding, note, " +
	"total_reading_time, read_pages, reading_count, last_read_date, last_read_duration, created_at, updated_at"

// Reading is one accumulated reading event.
type Reading struct {
	Duration int64 // seconds
	Pages    int64
	ReadAt   string
}

type BookdataRepository struct {
	base *database.BaseRepository
	now  clock
}

func NewBookdataRepository(base *database.BaseRepository) *BookdataRepository {
	return &BookdataRepository{base: base, now: time.Now}
}

func (r *BookdataRepository) FindByBookIDs(ctx context.Context, ids []int64) ([]Bookdata, error) {
	if len(ids) == 0 {
		return []Bookdata{}, nil
	}
	var rows []Bookdata
	err := r.base.QueryAll(ctx, &rows, "SELECT "+bookdataColumns+" FROM qc_bookdata WHERE book_id IN ?", ids)
	return rows, err
}

func (r *BookdataRepository) Get(ctx context.Context, bookID int64) (*Bookdata, error) {
	var row Bookdata
	found, err := r.base.QueryOne(ctx, &row, "SELECT "+bookdataColumns+" FROM qc_bookdata WHERE book_id = ?", bookID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bookdata %d: %w", bookID, database.ErrNotFound)
	}
	return &row, nil
}

// Upsert writes the given columns. At most one row exists per book.
func (r *BookdataRepository) Upsert(ctx context.Context, bookID int64, changes database.Record) error {
	now := r.now.stamp()
	set := database.Record{"updated_at": now}
	for k, v := range changes {
		set[k] = v
	}
	_, err := upsert(ctx, r.base, bookdataTable, database.Record{"book_id": bookID}, set, database.Record{"created_at": now})
	return err
}

// AddReading folds one reading event into the accumulators, creating the row if needed.
func (r *BookdataRepository) AddReading(ctx context.Context, bookID int64, reading Reading) error {
	return r.base.Transaction(ctx, func(tx *database.BaseRepository) error {
		now := r.now.stamp()
		if _, err := upsert(ctx, tx, bookdataTable, database.Record{"book_id": bookID}, database.Record{}, database.Record{"created_at": now}); err != nil {
			return err
		}
		readAt := reading.ReadAt
		if readAt == "" {
			readAt = now
		}
		_, err := tx.Execute(ctx, `UPDATE qc_bookdata SET
			total_reading_time = total_reading_time + ?,
			read_pages = read_pages + ?,
			reading_count = reading_count + 1,
			last_read_date = ?,
			last_read_duration = ?,
			updated_at = ?
			WHERE book_id = ?`,
			reading.Duration, reading.Pages, readAt, reading.Duration, now, bookID)
		return err
	})
}

func (r *BookdataRepository) Delete(ctx context.Context, bookID int64) error {
	_, err := r.base.Delete(ctx, bookdataTable, "book_id = ?", bookID)
	return err
}
