package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/booklog/internal/database/calibre"
	"github.com/mrlokans/booklog/internal/database/talebook"
	"github.com/mrlokans/booklog/internal/entities"
)

var yearPattern = regexp.MustCompile(`\d{4}`)

// calibreUndefinedYear is the year Calibre writes for an unknown pubdate.
const calibreUndefinedYear = 101

// publishYear returns the first four-digit run of pubdate as a year.
func publishYear(pubdate *string) *int {
	if pubdate == nil {
		return nil
	}
	m := yearPattern.FindString(*pubdate)
	if m == "" {
		return nil
	}
	year, err := strconv.Atoi(m)
	if err != nil || year <= calibreUndefinedYear {
		return nil
	}
	return &year
}

// parseList decodes a stored list. A malformed value is logged and read as empty.
func parseList(bookID int64, field string, raw *string) []string {
	list, err := calibre.ParseList(raw)
	if err != nil {
		log.Warn().Err(err).Int64("book_id", bookID).Str("field", field).Msg("stored list is malformed, using empty list")
	}
	return list
}

// extensionData holds the batched extension rows keyed by book id.
type extensionData struct {
	types    map[int64]int
	groups   map[int64][]entities.GroupRef
	bookdata map[int64]talebook.Bookdata
	states   map[int64]talebook.ReadingState
}

// loadExtensions issues four statements, one per extension table, for the
// whole batch. They run concurrently on separate pooled connections.
func loadExtensions(ctx context.Context, ext *talebook.Repositories, ids []int64, readerID int64) (*extensionData, error) {
	var (
		items    []talebook.Item
		groups   []talebook.BookGroup
		bookdata []talebook.Bookdata
		states   []talebook.ReadingState
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = ext.Items.FindByBookIDs(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		groups, err = ext.Groups.FindByBookIDs(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		bookdata, err = ext.Bookdata.FindByBookIDs(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		states, err = ext.ReadingState.FindByBookIDs(gctx, ids, readerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load extension rows: %w", err)
	}

	data := &extensionData{
		types:    make(map[int64]int, len(items)),
		groups:   make(map[int64][]entities.GroupRef),
		bookdata: make(map[int64]talebook.Bookdata, len(bookdata)),
		states:   make(map[int64]talebook.ReadingState, len(states)),
	}
	for _, it := range items {
		data.types[it.BookID] = it.BookType
	}
	for _, bg := range groups {
		data.groups[bg.BookID] = append(data.groups[bg.BookID], entities.GroupRef{ID: bg.GroupID, Name: bg.Name})
	}
	for _, bd := range bookdata {
		data.bookdata[bd.BookID] = bd
	}
	for _, st := range states {
		data.states[st.BookID] = st
	}
	return data, nil
}

// enrichBooks merges bibliographic rows with their extension rows. With no
// extension store every row gets the defaults through enrichBook.
func enrichBooks(ctx context.Context, ext *talebook.Repositories, rows []calibre.BookRow, readerID int64) ([]entities.Book, error) {
	books := make([]entities.Book, 0, len(rows))
	if len(rows) == 0 {
		return books, nil
	}
	if ext == nil {
		for _, row := range rows {
			books = append(books, enrichBook(row, nil))
		}
		return books, nil
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	data, err := loadExtensions(ctx, ext, ids, readerID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		books = append(books, enrichBook(row, data))
	}
	return books, nil
}

// enrichBook builds the Book view of one row. data may be nil; every
// missing extension value keeps its default.
func enrichBook(row calibre.BookRow, data *extensionData) entities.Book {
	b := entities.Book{
		ID:           row.ID,
		Title:        row.Title,
		Sort:         deref(row.Sort),
		Author:       deref(row.Author),
		ISBN:         deref(row.ISBN),
		Publisher:    deref(row.Publisher),
		Language:     deref(row.Language),
		Series:       deref(row.Series),
		SeriesIndex:  row.SeriesIndex,
		Description:  deref(row.Description),
		Tags:         parseList(row.ID, "tags", row.Tags),
		Formats:      parseList(row.ID, "formats", row.Formats),
		Pubdate:      row.Pubdate,
		PublishYear:  publishYear(row.Pubdate),
		Timestamp:    row.Timestamp,
		LastModified: row.LastModified,
		Path:         row.Path,
		UUID:         deref(row.UUID),
		HasCover:     row.HasCover,

		BookType: talebook.DefaultBookType,
		Groups:   []entities.GroupRef{},
	}
	if row.Rating != nil {
		b.Rating = *row.Rating
	}
	if row.HasCover {
		b.CoverURL = fmt.Sprintf("/api/books/%d/cover", row.ID)
	}
	if data == nil {
		return b
	}

	if t, ok := data.types[row.ID]; ok {
		b.BookType = t
	}
	if groups, ok := data.groups[row.ID]; ok {
		b.Groups = groups
	}
	if bd, ok := data.bookdata[row.ID]; ok {
		b.Pages = bd.PageCount
		b.StandardPrice = bd.StandardPrice
		b.PurchasePrice = bd.PurchasePrice
		b.PurchaseDate = bd.PurchaseDate
		b.PaperBinding = bd.PaperBinding
		b.HardBinding = bd.HardBinding
		b.Note = bd.Note
		b.TotalReadingTime = bd.TotalReadingTime
		b.ReadPages = bd.ReadPages
		b.ReadingCount = bd.ReadingCount
		b.LastReadDate = bd.LastReadDate
		b.LastReadDuration = bd.LastReadDuration
	}
	if st, ok := data.states[row.ID]; ok {
		b.Favorite = st.Favorite
		b.FavoriteDate = st.FavoriteDate
		b.Wants = st.Wants
		b.WantsDate = st.WantsDate
		b.ReadState = st.ReadState
		b.ReadDate = st.ReadDate
	}
	return b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
