package talebook

import (
	"context"
	"fmt"
	"time"

	"github.com/mrlokans/booklog/internal/database"
)

var readingStateTable = database.Table{Name: "reading_state", Columns: []string{
	"book_id", "reader_id", "favorite", "favorite_date", "wants", "wants_date",
	"read_state", "read_date", "online_read", "download",
}}

// ReadingState is the per-reader state of one book.
type ReadingState struct {
	BookID       int64   `gorm:"column:book_id" json:"book_id"`
	ReaderID     int64   `gorm:"column:reader_id" json:"reader_id"`
	Favorite     int     `gorm:"column:favorite" json:"favorite"`
	FavoriteDate *string `gorm:"column:favorite_date" json:"favorite_date"`
	Wants        int     `gorm:"column:wants" json:"wants"`
	WantsDate    *string `gorm:"column:wants_date" json:"wants_date"`
	ReadState    int     `gorm:"column:read_state" json:"read_state"`
	ReadDate     *string `gorm:"column:read_date" json:"read_date"`
	OnlineRead   int     `gorm:"column:online_read" json:"online_read"`
	Download     int     `gorm:"column:download" json:"download"`
}

const readingStateColumns = "book_id, reader_id, favorite, favorite_date, wants, wants_date, read_state, read_date, online_read, download"

// ReadingStateChange lists the flags to set. Nil fields keep their value.
type ReadingStateChange struct {
	Favorite   *int `json:"favorite"`
	Wants      *int `json:"wants"`
	ReadState  *int `json:"read_state"`
	OnlineRead *int `json:"online_read"`
	Download   *int `json:"download"`
}

type ReadingStateRepository struct {
	base *database.BaseRepository
	now  clock
}

func NewReadingStateRepository(base *database.BaseRepository) *ReadingStateRepository {
	return &ReadingStateRepository{base: base, now: time.Now}
}

// FindByBookIDs returns the reader's state rows for ids in one statement.
func (r *ReadingStateRepository) FindByBookIDs(ctx context.Context, ids []int64, readerID int64) ([]ReadingState, error) {
	if len(ids) == 0 {
		return []ReadingState{}, nil
	}
	var rows []ReadingState
	err := r.base.QueryAll(ctx, &rows,
		"SELECT "+readingStateColumns+" FROM reading_state WHERE book_id IN ? AND reader_id = ?", ids, readerID)
	return rows, err
}

func (r *ReadingStateRepository) Get(ctx context.Context, bookID, readerID int64) (*ReadingState, error) {
	var row ReadingState
	found, err := r.base.QueryOne(ctx, &row,
		"SELECT "+readingStateColumns+" FROM reading_state WHERE book_id = ? AND reader_id = ?", bookID, readerID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("reading state %d/%d: %w", bookID, readerID, database.ErrNotFound)
	}
	return &row, nil
}

// stampedFlag pairs a flag column with its date column.
type stampedFlag struct {
	column, dateColumn string
	next               *int
	current            func(*ReadingState) int
}

// Upsert applies change and returns the resulting state. A flag's date is
// stamped when the flag becomes 1 from any other value and kept when it was
// already 1.
func (r *ReadingStateRepository) Upsert(ctx context.Context, bookID, readerID int64, change ReadingStateChange) (*ReadingState, error) {
	var result *ReadingState
	err := r.base.Transaction(ctx, func(tx *database.BaseRepository) error {
		repo := &ReadingStateRepository{base: tx, now: r.now}
		existing, err := repo.Get(ctx, bookID, readerID)
		if err != nil && !database.IsNotFound(err) {
			return err
		}

		now := r.now.stamp()
		changes := database.Record{}
		for _, f := range []stampedFlag{
			{"favorite", "favorite_date", change.Favorite, func(s *ReadingState) int { return s.Favorite }},
			{"wants", "wants_date", change.Wants, func(s *ReadingState) int { return s.Wants }},
			{"read_state", "read_date", change.ReadState, func(s *ReadingState) int { return s.ReadState }},
		} {
			if f.next == nil {
				continue
			}
			changes[f.column] = *f.next
			wasSet := existing != nil && f.current(existing) == 1
			if *f.next == 1 && !wasSet {
				changes[f.dateColumn] = now
			}
		}
		if change.OnlineRead != nil {
			changes["online_read"] = *change.OnlineRead
		}
		if change.Download != nil {
			changes["download"] = *change.Download
		}

		key := database.Record{"book_id": bookID, "reader_id": readerID}
		if _, err := upsert(ctx, tx, readingStateTable, key, changes, database.Record{}); err != nil {
			return err
		}
		result, err = repo.Get(ctx, bookID, readerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteByBook removes the state of every reader for a book.
func (r *ReadingStateRepository) DeleteByBook(ctx context.Context, bookID int64) error {
	_, err := r.base.Delete(ctx, readingStateTable, "book_id = ?", bookID)
	return err
}

// DeleteByReader removes every state row of a reader.
func (r *ReadingStateRepository) DeleteByReader(ctx context.Context, readerID int64) error {
	_, err := r.base.Delete(ctx, readingStateTable, "reader_id = ?", readerID)
	return err
}
