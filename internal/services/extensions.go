package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/database/talebook"
	"github.com/mrlokans/booklog/internal/entities"
	"github.com/mrlokans/booklog/internal/validation"
)

// GetReadingState returns the reader's state for a book. A book without a
// state row reads as all flags cleared.
func (s *DatabaseService) GetReadingState(ctx context.Context, bookID int64, readerID *int64) (*talebook.ReadingState, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	reader := s.reader(readerID)
	empty := &talebook.ReadingState{BookID: bookID, ReaderID: reader}
	if b.ext == nil {
		return empty, nil
	}
	state, err := b.ext.ReadingState.Get(ctx, bookID, reader)
	if database.IsNotFound(err) {
		return empty, nil
	}
	return state, err
}

// SetReadingState applies flag changes. Every flag must be 0 or 1.
func (s *DatabaseService) SetReadingState(ctx context.Context, bookID int64, readerID *int64, change talebook.ReadingStateChange) (*talebook.ReadingState, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}

	verr := &validation.ValidationError{}
	for name, flag := range map[string]*int{
		"favorite":    change.Favorite,
		"wants":       change.Wants,
		"read_state":  change.ReadState,
		"online_read": change.OnlineRead,
		"download":    change.Download,
	} {
		if flag != nil && *flag != 0 && *flag != 1 {
			verr.Errors = append(verr.Errors, validation.FieldError{Field: name, Message: "must be 0 or 1"})
		}
	}
	if len(verr.Errors) > 0 {
		return nil, verr
	}

	if err := requireTalebook(b); err != nil {
		return nil, err
	}
	if err := s.requireBook(ctx, b, bookID); err != nil {
		return nil, err
	}
	return b.ext.ReadingState.Upsert(ctx, bookID, s.reader(readerID), change)
}

func (s *DatabaseService) Groups(ctx context.Context) ([]talebook.Group, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if b.ext == nil {
		return []talebook.Group{}, nil
	}
	return b.ext.Groups.FindAll(ctx)
}

func (s *DatabaseService) Group(ctx context.Context, id int64) (*talebook.Group, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if err := requireTalebook(b); err != nil {
		return nil, err
	}
	return b.ext.Groups.Get(ctx, id)
}

func nameRequired(name string) error {
	if strings.TrimSpace(name) == "" {
		return &validation.ValidationError{Errors: []validation.FieldError{{Field: "name", Message: "is required"}}}
	}
	return nil
}

// CreateGroup creates a group. Names are unique.
func (s *DatabaseService) CreateGroup(ctx context.Context, name, description string) (*talebook.Group, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if err := nameRequired(name); err != nil {
		return nil, err
	}
	if err := requireTalebook(b); err != nil {
		return nil, err
	}
	return b.ext.Groups.Create(ctx, strings.TrimSpace(name), description)
}

func (s *DatabaseService) UpdateGroup(ctx context.Context, id int64, name, description *string) (*talebook.Group, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if name != nil {
		if err := nameRequired(*name); err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(*name)
		name = &trimmed
	}
	if err := requireTalebook(b); err != nil {
		return nil, err
	}
	return b.ext.Groups.Update(ctx, id, name, description)
}

func (s *DatabaseService) DeleteGroup(ctx context.Context, id int64) error {
	b, err := s.ready()
	if err != nil {
		return err
	}
	if err := requireTalebook(b); err != nil {
		return err
	}
	return b.ext.Groups.Delete(ctx, id)
}

// AddBookToGroup adds an existing book to an existing group.
func (s *DatabaseService) AddBookToGroup(ctx context.Context, groupID, bookID int64) error {
	b, err := s.ready()
	if err != nil {
		return err
	}
	if err := requireTalebook(b); err != nil {
		return err
	}
	if _, err := b.ext.Groups.Get(ctx, groupID); err != nil {
		return err
	}
	if err := s.requireBook(ctx, b, bookID); err != nil {
		return err
	}
	return b.ext.Groups.AddBook(ctx, groupID, bookID)
}

func (s *DatabaseService) RemoveBookFromGroup(ctx context.Context, groupID, bookID int64) error {
	b, err := s.ready()
	if err != nil {
		return err
	}
	if err := requireTalebook(b); err != nil {
		return err
	}
	return b.ext.Groups.RemoveBook(ctx, groupID, bookID)
}

// GroupBooks returns the enriched books of a group in membership order.
// Memberships whose book no longer exists are skipped.
func (s *DatabaseService) GroupBooks(ctx context.Context, groupID int64, readerID *int64) ([]entities.Book, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if err := requireTalebook(b); err != nil {
		return nil, err
	}
	if _, err := b.ext.Groups.Get(ctx, groupID); err != nil {
		return nil, err
	}
	ids, err := b.ext.Groups.BookIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if b.books == nil || len(ids) == 0 {
		return []entities.Book{}, nil
	}

	rows, err := b.books.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	books, err := enrichBooks(ctx, b.ext, rows, s.reader(readerID))
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]entities.Book, len(books))
	for _, book := range books {
		byID[book.ID] = book
	}
	ordered := make([]entities.Book, 0, len(books))
	for _, id := range ids {
		if book, ok := byID[id]; ok {
			ordered = append(ordered, book)
		}
	}
	return ordered, nil
}

// Bookmarks lists a book's bookmarks.
func (s *DatabaseService) Bookmarks(ctx context.Context, bookID int64) ([]talebook.Bookmark, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if b.ext == nil {
		return []talebook.Bookmark{}, nil
	}
	return b.ext.Bookmarks.FindByBook(ctx, bookID)
}

func (s *DatabaseService) Bookmark(ctx context.Context, id int64) (*talebook.Bookmark, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if err := requireTalebook(b); err != nil {
		return nil, err
	}
	return b.ext.Bookmarks.Get(ctx, id)
}

func validateBookmarkTags(tags []string) *validation.ValidationError {
	verr := &validation.ValidationError{}
	for i, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			verr.Errors = append(verr.Errors, validation.FieldError{Field: fmt.Sprintf("tags[%d]", i), Message: "must not be blank"})
		}
	}
	return verr
}

func (s *DatabaseService) CreateBookmark(ctx context.Context, in talebook.BookmarkInput) (*talebook.Bookmark, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	verr := validateBookmarkTags(in.Tags)
	if strings.TrimSpace(in.Content) == "" {
		verr.Errors = append(verr.Errors, validation.FieldError{Field: "content", Message: "is required"})
	}
	if len(verr.Errors) > 0 {
		return nil, verr
	}
	if err := requireTalebook(b); err != nil {
		return nil, err
	}
	if err := s.requireBook(ctx, b, in.BookID); err != nil {
		return nil, err
	}
	return b.ext.Bookmarks.Create(ctx, in)
}

// UpdateBookmark changes a bookmark. A non-nil tag list replaces the set.
func (s *DatabaseService) UpdateBookmark(ctx context.Context, id int64, p talebook.BookmarkPatch) (*talebook.Bookmark, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if p.Tags != nil {
		if verr := validateBookmarkTags(*p.Tags); len(verr.Errors) > 0 {
			return nil, verr
		}
	}
	if err := requireTalebook(b); err != nil {
		return nil, err
	}
	return b.ext.Bookmarks.Update(ctx, id, p)
}

func (s *DatabaseService) DeleteBookmark(ctx context.Context, id int64) error {
	b, err := s.ready()
	if err != nil {
		return err
	}
	if err := requireTalebook(b); err != nil {
		return err
	}
	return b.ext.Bookmarks.Delete(ctx, id)
}

func (s *DatabaseService) BookmarkTags(ctx context.Context) ([]talebook.TagCount, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if b.ext == nil {
		return []talebook.TagCount{}, nil
	}
	return b.ext.Bookmarks.AllTags(ctx)
}

func (s *DatabaseService) Readers(ctx context.Context) ([]talebook.Reader, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if b.ext == nil {
		return []talebook.Reader{}, nil
	}
	return b.ext.Readers.FindAll(ctx)
}

func (s *DatabaseService) CreateReader(ctx context.Context, name, avatar string) (*talebook.Reader, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if err := nameRequired(name); err != nil {
		return nil, err
	}
	if err := requireTalebook(b); err != nil {
		return nil, err
	}
	return b.ext.Readers.Create(ctx, strings.TrimSpace(name), avatar)
}

// DeleteReader removes a reader and every reading_state row of that reader.
func (s *DatabaseService) DeleteReader(ctx context.Context, id int64) error {
	b, err := s.ready()
	if err != nil {
		return err
	}
	if err := requireTalebook(b); err != nil {
		return err
	}
	if err := b.ext.Readers.Delete(ctx, id); err != nil {
		return err
	}
	if err := b.ext.ReadingState.DeleteByReader(ctx, id); err != nil {
		log.Warn().Err(err).Int64("reader_id", id).Msg("reading state of deleted reader left behind")
	}
	return nil
}

// SessionRequest records a reading session. An empty ReaderID means the default reader.
type SessionRequest struct {
	BookID    int64  `json:"book_id"`
	ReaderID  *int64 `json:"reader_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Duration  int64  `json:"duration"`
	StartPage int64  `json:"start_page"`
	EndPage   int64  `json:"end_page"`
	Note      string `json:"note"`
}

// RecordSession stores a session and updates the book's reading totals.
func (s *DatabaseService) RecordSession(ctx context.Context, req SessionRequest) (*talebook.Session, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}

	verr := &validation.ValidationError{}
	if req.Duration < 0 {
		verr.Errors = append(verr.Errors, validation.FieldError{Field: "duration", Message: "must be at least 0"})
	}
	if req.StartPage < 0 || req.EndPage < 0 {
		verr.Errors = append(verr.Errors, validation.FieldError{Field: "start_page", Message: "pages must be at least 0"})
	}
	if req.EndPage < req.StartPage {
		verr.Errors = append(verr.Errors, validation.FieldError{Field: "end_page", Message: "must not be before start_page"})
	}
	if len(verr.Errors) > 0 {
		return nil, verr
	}

	if err := requireTalebook(b); err != nil {
		return nil, err
	}
	if err := s.requireBook(ctx, b, req.BookID); err != nil {
		return nil, err
	}
	return b.ext.Sessions.Record(ctx, talebook.SessionInput{
		BookID:    req.BookID,
		ReaderID:  s.reader(req.ReaderID),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Duration:  req.Duration,
		StartPage: req.StartPage,
		EndPage:   req.EndPage,
		Note:      req.Note,
	})
}

func (s *DatabaseService) Sessions(ctx context.Context, bookID int64) ([]talebook.Session, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if b.ext == nil {
		return []talebook.Session{}, nil
	}
	return b.ext.Sessions.FindByBook(ctx, bookID)
}

func (s *DatabaseService) ReadingStats(ctx context.Context, readerID *int64) (*talebook.ReadingStats, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	reader := s.reader(readerID)
	if b.ext == nil {
		return &talebook.ReadingStats{ReaderID: reader}, nil
	}
	return b.ext.Sessions.Stats(ctx, reader)
}
