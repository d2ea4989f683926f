package talebook

import (
	"context"
	"fmt"
	"time"

	"github.com/mrlokans/booklog/internal/database"
)

var sessionsTable = database.Table{Name: "qc_reading_sessions", Columns: []string{
	"book_id", "reader_id", "start_time", "end_time", "duration",
	"start_page", "end_page", "pages_read", "note", "created_at",
}}

// Session is one timed reading of a book.
type Session struct {
	ID        int64   `gorm:"column:id" json:"id"`
	BookID    int64   `gorm:"column:book_id" json:"book_id"`
	ReaderID  int64   `gorm:"column:reader_id" json:"reader_id"`
	StartTime *string `gorm:"column:start_time" json:"start_time"`
	EndTime   *string `gorm:"column:end_time" json:"end_time"`
	Duration  int64   `gorm:"column:duration" json:"duration"`
	StartPage int64   `gorm:"column:start_page" json:"start_page"`
	EndPage   int64   `gorm:"column:end_page" json:"end_page"`
	PagesRead int64   `gorm:"column:pages_read" json:"pages_read"`
	Note      string  `gorm:"column:note" json:"note"`
	CreatedAt *string `gorm:"column:created_at" json:"created_at"`
}

const sessionColumns = "id, book_id, reader_id, start_time, end_time, duration, start_page, end_page, pages_read, note, created_at"

// SessionInput records a session. Duration is in seconds; when zero it is
// derived from StartTime and EndTime. PagesRead defaults to EndPage-StartPage.
type SessionInput struct {
	BookID    int64
	ReaderID  int64
	StartTime string
	EndTime   string
	Duration  int64
	StartPage int64
	EndPage   int64
	Note      string
}

// ReadingStats totals a reader's sessions.
type ReadingStats struct {
	ReaderID      int64 `gorm:"-" json:"reader_id"`
	Sessions      int64 `gorm:"column:sessions" json:"sessions"`
	Books         int64 `gorm:"column:books" json:"books"`
	TotalDuration int64 `gorm:"column:total_duration" json:"total_duration"`
	TotalPages    int64 `gorm:"column:total_pages" json:"total_pages"`
}

type SessionsRepository struct {
	base *database.BaseRepository
	now  clock
}

func NewSessionsRepository(base *database.BaseRepository) *SessionsRepository {
	return &SessionsRepository{base: base, now: time.Now}
}

// FindByBook lists a book's sessions, newest first.
func (r *SessionsRepository) FindByBook(ctx context.Context, bookID int64) ([]Session, error) {
	var rows []Session
	err := r.base.QueryAll(ctx, &rows,
		"SELECT "+sessionColumns+" FROM qc_reading_sessions WHERE book_id = ? ORDER BY id DESC", bookID)
	return rows, err
}

func (r *SessionsRepository) Get(ctx context.Context, id int64) (*Session, error) {
	var row Session
	found, err := r.base.QueryOne(ctx, &row, "SELECT "+sessionColumns+" FROM qc_reading_sessions WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("session %d: %w", id, database.ErrNotFound)
	}
	return &row, nil
}

// Record stores a session and folds it into the book's qc_bookdata
// accumulators in the same transaction.
func (r *SessionsRepository) Record(ctx context.Context, in SessionInput) (*Session, error) {
	now := r.now.stamp()
	duration := in.Duration
	if duration == 0 && in.StartTime != "" && in.EndTime != "" {
		start, errStart := time.Parse(TimeLayout, in.StartTime)
		end, errEnd := time.Parse(TimeLayout, in.EndTime)
		if errStart == nil && errEnd == nil && end.After(start) {
			duration = int64(end.Sub(start).Seconds())
		}
	}
	pages := in.EndPage - in.StartPage
	if pages < 0 {
		pages = 0
	}

	var id int64
	err := r.base.Transaction(ctx, func(tx *database.BaseRepository) error {
		var err error
		id, err = tx.Insert(ctx, sessionsTable, database.Record{
			"book_id":    in.BookID,
			"reader_id":  in.ReaderID,
			"start_time": nullIfEmpty(in.StartTime),
			"end_time":   nullIfEmpty(in.EndTime),
			"duration":   duration,
			"start_page": in.StartPage,
			"end_page":   in.EndPage,
			"pages_read": pages,
			"note":       in.Note,
			"created_at": now,
		})
		if err != nil {
			return err
		}

		readAt := in.EndTime
		if readAt == "" {
			readAt = now
		}
		bookdata := &BookdataRepository{base: tx, now: r.now}
		return bookdata.AddReading(ctx, in.BookID, Reading{Duration: duration, Pages: pages, ReadAt: readAt})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}
	return r.Get(ctx, id)
}

// Stats totals every session of a reader.
func (r *SessionsRepository) Stats(ctx context.Context, readerID int64) (*ReadingStats, error) {
	stats := ReadingStats{}
	_, err := r.base.QueryOne(ctx, &stats, `SELECT
		COUNT(*) AS sessions,
		COUNT(DISTINCT book_id) AS books,
		COALESCE(SUM(duration), 0) AS total_duration,
		COALESCE(SUM(pages_read), 0) AS total_pages
		FROM qc_reading_sessions WHERE reader_id = ?`, readerID)
	if err != nil {
		return nil, err
	}
	stats.ReaderID = readerID
	return &stats, nil
}

// DeleteByBook removes every session of a book.
func (r *SessionsRepository) DeleteByBook(ctx context.Context, bookID int64) error {
	_, err := r.base.Delete(ctx, sessionsTable, "book_id = ?", bookID)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
