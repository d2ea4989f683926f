package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/database/calibre"
	"github.com/mrlokans/booklog/internal/database/talebook"
	"github.com/mrlokans/booklog/internal/entities"
	"github.com/mrlokans/booklog/internal/validation"
)

// FindOptions pages a book listing for one reader. A nil ReaderID means the default reader.
type FindOptions struct {
	Limit    int
	Offset   int
	ReaderID *int64
}

func (s *DatabaseService) reader(id *int64) int64 {
	if id == nil {
		return s.defaultReader
	}
	return *id
}

// FindAll lists enriched books, newest first. Without the bibliographic store it returns no books.
func (s *DatabaseService) FindAll(ctx context.Context, opts FindOptions) ([]entities.Book, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if b.books == nil {
		return []entities.Book{}, nil
	}
	rows, err := b.books.FindAll(ctx, calibre.ListOptions{Limit: opts.Limit, Offset: opts.Offset})
	if err != nil {
		return nil, err
	}
	return enrichBooks(ctx, b.ext, rows, s.reader(opts.ReaderID))
}

// FindByID returns one enriched book or database.ErrNotFound.
func (s *DatabaseService) FindByID(ctx context.Context, id int64, readerID *int64) (*entities.Book, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if b.books == nil {
		return nil, fmt.Errorf("book %d: %w", id, database.ErrNotFound)
	}
	row, err := b.books.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	books, err := enrichBooks(ctx, b.ext, []calibre.BookRow{*row}, s.reader(readerID))
	if err != nil {
		return nil, err
	}
	return &books[0], nil
}

// RecordVisit bumps the visit counter of a book. A book without an items
// row or an unavailable extension store records nothing.
func (s *DatabaseService) RecordVisit(ctx context.Context, id int64) error {
	b, err := s.ready()
	if err != nil {
		return err
	}
	if b.ext == nil {
		return nil
	}
	return b.ext.Items.IncrementVisit(ctx, id)
}

// SearchOptions narrows Search. Empty strings are ignored.
type SearchOptions struct {
	Keyword   string
	Author    string
	Publisher string
	Limit     int
	Offset    int
	ReaderID  *int64
}

func (s *DatabaseService) Search(ctx context.Context, opts SearchOptions) ([]entities.Book, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if b.books == nil {
		return []entities.Book{}, nil
	}
	rows, err := b.books.Search(ctx, calibre.SearchFilters{
		Keyword:   opts.Keyword,
		Author:    opts.Author,
		Publisher: opts.Publisher,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
	if err != nil {
		return nil, err
	}
	return enrichBooks(ctx, b.ext, rows, s.reader(opts.ReaderID))
}

// AddBook validates and creates a book. The bibliographic write is one
// transaction; the items row is written afterwards on the other store. A
// failure there is logged and handed to the items syncer, and the create
// still succeeds.
func (s *DatabaseService) AddBook(ctx context.Context, in entities.BookInput) (*entities.Book, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	if err := requireCalibre(b); err != nil {
		return nil, err
	}

	id, err := b.books.Create(ctx, calibre.BookWrite{
		Title:       in.Title,
		Authors:     in.Authors(),
		Publisher:   in.Publisher,
		Series:      in.Series,
		SeriesIndex: in.SeriesIndex,
		Tags:        in.Tags,
		Language:    in.Language,
		ISBN:        validation.NormalizeISBN(in.ISBN),
		Rating:      in.Rating,
		Description: in.Description,
		Pubdate:     in.Pubdate,
		HasCover:    in.HasCover,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("book_id", id).Str("title", in.Title).Msg("book created")

	if err := s.writeExtensionsForNewBook(ctx, b, id, in); err != nil {
		log.Error().Err(err).Int64("book_id", id).Msg("extension rows not written for new book")
		s.requestItemsSync(ctx, id)
	}
	return s.FindByID(ctx, id, nil)
}

func (s *DatabaseService) writeExtensionsForNewBook(ctx context.Context, b *bound, id int64, in entities.BookInput) error {
	if err := requireTalebook(b); err != nil {
		return err
	}
	item := database.Record{}
	if in.BookType != nil {
		item["book_type"] = *in.BookType
	}
	if err := b.ext.Items.Upsert(ctx, id, item); err != nil {
		return err
	}
	if in.Pages != nil {
		return b.ext.Bookdata.Upsert(ctx, id, database.Record{"page_count": *in.Pages})
	}
	return nil
}

func (s *DatabaseService) requestItemsSync(ctx context.Context, ids ...int64) {
	syncer := s.itemsSyncer()
	if syncer == nil {
		return
	}
	if err := syncer.RequestItemsSync(ctx, ids...); err != nil {
		log.Error().Err(err).Ints64("book_ids", ids).Msg("failed to request items sync")
	}
}

// bookUpdate is a type-checked partial update split by store.
type bookUpdate struct {
	patch    calibre.BookPatch
	touched  bool
	items    database.Record
	bookdata database.Record
}

func splitUpdate(fields map[string]any) bookUpdate {
	u := bookUpdate{items: database.Record{}, bookdata: database.Record{}}
	str := func(v any) *string {
		s, _ := v.(string)
		return &s
	}
	num := func(v any) *float64 {
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case int:
			f = float64(n)
		case int64:
			f = float64(n)
		}
		return &f
	}

	for name, v := range fields {
		u.touched = u.touched || isCalibreField(name)
		switch name {
		case "title":
			u.patch.Title = str(v)
		case "author":
			authors := entities.SplitAuthors(*str(v))
			u.patch.Authors = &authors
		case "isbn":
			isbn := validation.NormalizeISBN(*str(v))
			u.patch.ISBN = &isbn
		case "publisher":
			u.patch.Publisher = str(v)
		case "series":
			u.patch.Series = str(v)
		case "series_index":
			u.patch.SeriesIndex = num(v)
		case "language":
			u.patch.Language = str(v)
		case "description":
			u.patch.Description = str(v)
		case "pubdate":
			u.patch.Pubdate = str(v)
		case "rating":
			u.patch.Rating = num(v)
		case "has_cover":
			hasCover, _ := v.(bool)
			u.patch.HasCover = &hasCover
		case "tags":
			tags := toStrings(v)
			u.patch.Tags = &tags
		case "book_type":
			u.items["book_type"] = int(*num(v))
		case "pages":
			u.bookdata["page_count"] = int64(*num(v))
		case "paper_binding", "hard_binding":
			u.bookdata[name] = int(*num(v))
		case "standard_price", "purchase_price", "purchase_date", "note":
			u.bookdata[name] = v
		}
	}
	return u
}

func isCalibreField(name string) bool {
	switch name {
	case "book_type", "pages", "paper_binding", "hard_binding", "standard_price", "purchase_price", "purchase_date", "note":
		return false
	}
	return true
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

// UpdateBook applies a partial update decoded from JSON. Every field is
// type-checked before anything is written.
func (s *DatabaseService) UpdateBook(ctx context.Context, id int64, fields map[string]any) (*entities.Book, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateFields(fields); err != nil {
		return nil, err
	}
	if err := requireCalibre(b); err != nil {
		return nil, err
	}

	u := splitUpdate(fields)
	if len(u.items) > 0 || len(u.bookdata) > 0 {
		if err := requireTalebook(b); err != nil {
			return nil, err
		}
	}

	if u.touched {
		if err := b.books.Update(ctx, id, u.patch); err != nil {
			return nil, err
		}
	} else if err := s.requireBook(ctx, b, id); err != nil {
		return nil, err
	}

	if len(u.items) > 0 {
		if err := b.ext.Items.Upsert(ctx, id, u.items); err != nil {
			return nil, err
		}
	}
	if len(u.bookdata) > 0 {
		if err := b.ext.Bookdata.Upsert(ctx, id, u.bookdata); err != nil {
			return nil, err
		}
	}
	return s.FindByID(ctx, id, nil)
}

func (s *DatabaseService) requireBook(ctx context.Context, b *bound, id int64) error {
	if b.books == nil {
		// Without the bibliographic store the id cannot be checked.
		return nil
	}
	exists, err := b.books.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("book %d: %w", id, database.ErrNotFound)
	}
	return nil
}

// DeleteBook removes a book from the bibliographic store, where link rows
// cascade, then removes its extension rows on a best-effort basis.
func (s *DatabaseService) DeleteBook(ctx context.Context, id int64) error {
	b, err := s.ready()
	if err != nil {
		return err
	}
	if err := requireCalibre(b); err != nil {
		return err
	}
	if err := b.books.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Int64("book_id", id).Msg("book deleted")

	for name, orphans := range map[string]func(context.Context) (int64, error){
		"authors":    b.authors.DeleteOrphans,
		"publishers": b.publishers.DeleteOrphans,
		"tags":       b.tags.DeleteOrphans,
	} {
		if n, err := orphans(ctx); err != nil {
			log.Warn().Err(err).Str("table", name).Msg("orphan cleanup failed")
		} else if n > 0 {
			log.Debug().Int64("removed", n).Str("table", name).Msg("orphans removed")
		}
	}

	if b.ext == nil {
		log.Warn().Int64("book_id", id).Msg("extension store unavailable, extension rows left behind")
		return nil
	}
	cleanups := map[string]func(context.Context, int64) error{
		"items":               b.ext.Items.Delete,
		"qc_bookdata":         b.ext.Bookdata.Delete,
		"reading_state":       b.ext.ReadingState.DeleteByBook,
		"qc_bookmarks":        b.ext.Bookmarks.DeleteByBook,
		"qc_book_groups":      b.ext.Groups.DeleteByBook,
		"qc_reading_sessions": b.ext.Sessions.DeleteByBook,
	}
	for table, cleanup := range cleanups {
		if err := cleanup(ctx, id); err != nil {
			log.Warn().Err(err).Int64("book_id", id).Str("table", table).Msg("extension cleanup failed")
		}
	}
	return nil
}

// UpdateBookdata writes extension fields of a book. "pages" is accepted as
// an alias of page_count.
func (s *DatabaseService) UpdateBookdata(ctx context.Context, id int64, fields map[string]any) (*talebook.Bookdata, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if err := requireTalebook(b); err != nil {
		return nil, err
	}

	checked := make(map[string]any, len(fields))
	verr := &validation.ValidationError{}
	for name, v := range fields {
		if name == "page_count" {
			name = "pages"
		}
		if isCalibreField(name) || name == "book_type" {
			verr.Errors = append(verr.Errors, validation.FieldError{Field: name, Message: "is not a bookdata field"})
			continue
		}
		checked[name] = v
	}
	if len(verr.Errors) > 0 {
		return nil, verr
	}
	if err := s.validator.ValidateFields(checked); err != nil {
		return nil, err
	}
	if err := s.requireBook(ctx, b, id); err != nil {
		return nil, err
	}

	u := splitUpdate(checked)
	if err := b.ext.Bookdata.Upsert(ctx, id, u.bookdata); err != nil {
		return nil, err
	}
	return b.ext.Bookdata.Get(ctx, id)
}

// SetBookType stores the book type, creating the items row if needed.
func (s *DatabaseService) SetBookType(ctx context.Context, id int64, bookType int) error {
	b, err := s.ready()
	if err != nil {
		return err
	}
	if err := s.validator.ValidateFields(map[string]any{"book_type": float64(bookType)}); err != nil {
		return err
	}
	if err := requireTalebook(b); err != nil {
		return err
	}
	if err := s.requireBook(ctx, b, id); err != nil {
		return err
	}
	return b.ext.Items.SetBookType(ctx, id, bookType)
}

// Authors lists every author with its book count.
func (s *DatabaseService) Authors(ctx context.Context) ([]calibre.Named, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if b.authors == nil {
		return []calibre.Named{}, nil
	}
	return b.authors.FindAll(ctx)
}

func (s *DatabaseService) Publishers(ctx context.Context) ([]calibre.Named, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if b.publishers == nil {
		return []calibre.Named{}, nil
	}
	return b.publishers.FindAll(ctx)
}

func (s *DatabaseService) Tags(ctx context.Context) ([]calibre.Named, error) {
	b, err := s.ready()
	if err != nil {
		return nil, err
	}
	if b.tags == nil {
		return []calibre.Named{}, nil
	}
	return b.tags.FindAll(ctx)
}

// BookLocation returns the library-relative folder of a book and whether it has a cover.
func (s *DatabaseService) BookLocation(ctx context.Context, id int64) (string, bool, error) {
	b, err := s.ready()
	if err != nil {
		return "", false, err
	}
	if err := requireCalibre(b); err != nil {
		return "", false, err
	}
	row, err := b.books.FindByID(ctx, id)
	if err != nil {
		return "", false, err
	}
	return row.Path, row.HasCover, nil
}
