package http

import (
	"context"

	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/database/calibre"
	"github.com/mrlokans/booklog/internal/database/talebook"
	"github.com/mrlokans/booklog/internal/entities"
	"github.com/mrlokans/booklog/internal/services"
	"github.com/mrlokans/booklog/internal/validation"
)

// Each controller depends on its own store interface. services.DatabaseService
// implements all of them; tests substitute hand-written fakes.

// BookStore covers book reads, writes and the name lists.
type BookStore interface {
	FindAll(ctx context.Context, opts services.FindOptions) ([]entities.Book, error)
	FindByID(ctx context.Context, id int64, readerID *int64) (*entities.Book, error)
	RecordVisit(ctx context.Context, id int64) error
	Search(ctx context.Context, opts services.SearchOptions) ([]entities.Book, error)
	AddBook(ctx context.Context, in entities.BookInput) (*entities.Book, error)
	UpdateBook(ctx context.Context, id int64, fields map[string]any) (*entities.Book, error)
	DeleteBook(ctx context.Context, id int64) error
	UpdateBookdata(ctx context.Context, id int64, fields map[string]any) (*talebook.Bookdata, error)
	SetBookType(ctx context.Context, id int64, bookType int) error
	Authors(ctx context.Context) ([]calibre.Named, error)
	Publishers(ctx context.Context) ([]calibre.Named, error)
	Tags(ctx context.Context) ([]calibre.Named, error)
}

// CoverStore resolves where a book lives in the library.
type CoverStore interface {
	BookLocation(ctx context.Context, id int64) (path string, hasCover bool, err error)
}

type GroupStore interface {
	Groups(ctx context.Context) ([]talebook.Group, error)
	CreateGroup(ctx context.Context, name, description string) (*talebook.Group, error)
	UpdateGroup(ctx context.Context, id int64, name, description *string) (*talebook.Group, error)
	DeleteGroup(ctx context.Context, id int64) error
	GroupBooks(ctx context.Context, groupID int64, readerID *int64) ([]entities.Book, error)
	AddBookToGroup(ctx context.Context, groupID, bookID int64) error
	RemoveBookFromGroup(ctx context.Context, groupID, bookID int64) error
}

type BookmarkStore interface {
	Bookmarks(ctx context.Context, bookID int64) ([]talebook.Bookmark, error)
	Bookmark(ctx context.Context, id int64) (*talebook.Bookmark, error)
	CreateBookmark(ctx context.Context, in talebook.BookmarkInput) (*talebook.Bookmark, error)
	UpdateBookmark(ctx context.Context, id int64, p talebook.BookmarkPatch) (*talebook.Bookmark, error)
	DeleteBookmark(ctx context.Context, id int64) error
	BookmarkTags(ctx context.Context) ([]talebook.TagCount, error)
}

type ReaderStore interface {
	Readers(ctx context.Context) ([]talebook.Reader, error)
	CreateReader(ctx context.Context, name, avatar string) (*talebook.Reader, error)
	DeleteReader(ctx context.Context, id int64) error
}

// ReadingStore covers per-reader state and reading sessions.
type ReadingStore interface {
	GetReadingState(ctx context.Context, bookID int64, readerID *int64) (*talebook.ReadingState, error)
	SetReadingState(ctx context.Context, bookID int64, readerID *int64, change talebook.ReadingStateChange) (*talebook.ReadingState, error)
	Sessions(ctx context.Context, bookID int64) ([]talebook.Session, error)
	RecordSession(ctx context.Context, req services.SessionRequest) (*talebook.Session, error)
	ReadingStats(ctx context.Context, readerID *int64) (*talebook.ReadingStats, error)
}

type AdminStore interface {
	SchemaReport(ctx context.Context) (*validation.SchemaReport, error)
	IntegrityReport(ctx context.Context) (*validation.IntegrityReport, error)
	SyncItems(ctx context.Context, bookIDs []int64) (*services.SyncResult, error)
}

// HealthChecker reports store connectivity.
type HealthChecker interface {
	Availability() services.Availability
	Ping(ctx context.Context) (map[database.Store]error, error)
}
