package talebook

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/booklog/internal/config"
	"github.com/mrlokans/booklog/internal/database"
)

func setupTestStore(t *testing.T) (*Repositories, *testClock) {
	dir := t.TempDir()
	m := database.NewConnectionManager(database.Options{
		Paths: config.Paths{
			Calibre:  filepath.Join(dir, "metadata.db"),
			Talebook: filepath.Join(dir, "calibre-webserver.db"),
		},
		CreateIfMissing: true,
		Metrics:         database.NewMetrics(prometheus.NewRegistry()),
	})
	m.Init(context.Background())
	t.Cleanup(func() { m.Close() })
	require.True(t, m.IsTalebookAvailable())

	base := database.NewBaseRepository(m.Talebook(), database.StoreTalebook, m.Metrics())
	require.NoError(t, EnsureSchema(context.Background(), base))

	c := &testClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	store := New(base)
	store.Items.now = c.Now
	store.Bookdata.now = c.Now
	store.Bookmarks.now = c.Now
	store.ReadingState.now = c.Now
	store.Groups.now = c.Now
	store.Readers.now = c.Now
	store.Sessions.now = c.Now
	return store, c
}

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func intp(v int) *int { return &v }

func TestReadingState_FavoriteDateStamping(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()
	repo := store.ReadingState

	state, err := repo.Upsert(ctx, 1, 0, ReadingStateChange{Favorite: intp(1)})
	require.NoError(t, err)
	require.NotNil(t, state.FavoriteDate)
	firstStamp := *state.FavoriteDate
	assert.Equal(t, "2024-05-01T08:00:00Z", firstStamp)
	assert.Equal(t, 1, state.Favorite)

	clock.Advance(time.Hour)
	state, err = repo.Upsert(ctx, 1, 0, ReadingStateChange{Favorite: intp(1)})
	require.NoError(t, err)
	assert.Equal(t, firstStamp, *state.FavoriteDate, "already-set flag keeps its date")

	clock.Advance(time.Hour)
	state, err = repo.Upsert(ctx, 1, 0, ReadingStateChange{Favorite: intp(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, state.Favorite)

	clock.Advance(time.Hour)
	state, err = repo.Upsert(ctx, 1, 0, ReadingStateChange{Favorite: intp(1)})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T11:00:00Z", *state.FavoriteDate, "0 then 1 re-stamps")
}

func TestReadingState_PerReader(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	repo := store.ReadingState

	_, err := repo.Upsert(ctx, 1, 0, ReadingStateChange{Wants: intp(1)})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, 1, 7, ReadingStateChange{ReadState: intp(1)})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, 2, 0, ReadingStateChange{Favorite: intp(1)})
	require.NoError(t, err)

	rows, err := repo.FindByBookIDs(ctx, []int64{1, 2, 3}, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	other, err := repo.Get(ctx, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, other.ReadState)
	assert.NotNil(t, other.ReadDate)
	assert.Equal(t, 0, other.Wants)
	assert.Nil(t, other.WantsDate)

	require.NoError(t, repo.DeleteByBook(ctx, 1))
	_, err = repo.Get(ctx, 1, 7)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestItems_UpsertAndEnsureExists(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	items := store.Items

	created, err := items.EnsureExists(ctx, 10)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = items.EnsureExists(ctx, 10)
	require.NoError(t, err)
	assert.False(t, created)

	item, err := items.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, DefaultBookType, item.BookType)
	assert.Equal(t, 1, item.BookCount)
	require.NotNil(t, item.CreateTime)

	require.NoError(t, items.SetBookType(ctx, 10, 2))
	require.NoError(t, items.SetBookType(ctx, 11, 3))
	require.NoError(t, items.IncrementVisit(ctx, 10))

	rows, err := items.FindByBookIDs(ctx, []int64{10, 11})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	types := map[int64]int{}
	for _, r := range rows {
		types[r.BookID] = r.BookType
	}
	assert.Equal(t, map[int64]int{10: 2, 11: 3}, types)

	ids, err := items.BookIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids)

	err = items.Upsert(ctx, 10, database.Record{"bogus": 1})
	assert.ErrorIs(t, err, database.ErrUnknownColumn)
}

func TestBookdata_UpsertKeepsOneRow(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	repo := store.Bookdata

	require.NoError(t, repo.Upsert(ctx, 5, database.Record{"page_count": 320, "note": "signed"}))
	require.NoError(t, repo.Upsert(ctx, 5, database.Record{"purchase_price": 12.5}))

	rows, err := repo.FindByBookIDs(ctx, []int64{5})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(320), rows[0].PageCount)
	assert.Equal(t, "signed", rows[0].Note)
	assert.Equal(t, 12.5, rows[0].PurchasePrice)
	assert.NotNil(t, rows[0].CreatedAt)
}

func TestSessions_RecordUpdatesAccumulators(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Bookdata.Upsert(ctx, 3, database.Record{"page_count": 200}))

	s, err := store.Sessions.Record(ctx, SessionInput{
		BookID:    3,
		StartTime: "2024-05-01T20:00:00Z",
		EndTime:   "2024-05-01T20:30:00Z",
		StartPage: 10,
		EndPage:   40,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1800), s.Duration)
	assert.Equal(t, int64(30), s.PagesRead)

	_, err = store.Sessions.Record(ctx, SessionInput{BookID: 3, Duration: 600, StartPage: 40, EndPage: 50})
	require.NoError(t, err)

	data, err := store.Bookdata.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(200), data.PageCount)
	assert.Equal(t, int64(2400), data.TotalReadingTime)
	assert.Equal(t, int64(40), data.ReadPages)
	assert.Equal(t, int64(2), data.ReadingCount)
	assert.Equal(t, int64(600), data.LastReadDuration)
	assert.NotNil(t, data.LastReadDate)

	sessions, err := store.Sessions.FindByBook(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	stats, err := store.Sessions.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Sessions)
	assert.Equal(t, int64(1), stats.Books)
	assert.Equal(t, int64(2400), stats.TotalDuration)
	assert.Equal(t, int64(40), stats.TotalPages)
}

func TestSessions_StatsEmpty(t *testing.T) {
	store, _ := setupTestStore(t)

	stats, err := store.Sessions.Stats(context.Background(), 9)

	require.NoError(t, err)
	assert.Equal(t, int64(9), stats.ReaderID)
	assert.Zero(t, stats.Sessions)
	assert.Zero(t, stats.TotalDuration)
}

func TestBookmarks_TagReplacement(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	repo := store.Bookmarks

	page := int64(12)
	bm, err := repo.Create(ctx, BookmarkInput{BookID: 1, Content: "quote", Page: &page, Tags: []string{"a", "b", "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, bm.Tags)

	bm, err = repo.Update(ctx, bm.ID, BookmarkPatch{Tags: &[]string{"c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, bm.Tags)
	assert.Equal(t, "quote", bm.Content)

	note := "edited"
	bm, err = repo.Update(ctx, bm.ID, BookmarkPatch{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, bm.Tags, "nil tags keep the set")
	assert.Equal(t, "edited", bm.Note)

	_, err = repo.Create(ctx, BookmarkInput{BookID: 1, Content: "another", Tags: []string{"c", "d"}})
	require.NoError(t, err)

	tags, err := repo.AllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TagCount{{Name: "c", Count: 2}, {Name: "d", Count: 1}}, tags)

	list, err := repo.FindByBook(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "quote", list[0].Content)

	require.NoError(t, repo.Delete(ctx, bm.ID))
	tags, err = repo.AllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TagCount{{Name: "c", Count: 1}, {Name: "d", Count: 1}}, tags, "tags cascade with the bookmark")

	_, err = repo.Update(ctx, 999, BookmarkPatch{Note: &note})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestGroups_MembershipAndCascade(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	repo := store.Groups

	sci, err := repo.Create(ctx, "Sci-Fi", "space")
	require.NoError(t, err)
	fav, err := repo.Create(ctx, "Favourites", "")
	require.NoError(t, err)

	_, err = repo.Create(ctx, "Sci-Fi", "dup")
	assert.True(t, database.IsConstraintViolation(err))

	require.NoError(t, repo.AddBook(ctx, sci.ID, 1))
	require.NoError(t, repo.AddBook(ctx, sci.ID, 1))
	require.NoError(t, repo.AddBook(ctx, sci.ID, 2))
	require.NoError(t, repo.AddBook(ctx, fav.ID, 1))

	g, err := repo.Get(ctx, sci.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), g.BookCount)

	memberships, err := repo.FindByBookIDs(ctx, []int64{1})
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	assert.Equal(t, "Favourites", memberships[0].Name)

	require.NoError(t, repo.Delete(ctx, sci.ID))
	ids, err := repo.BookIDs(ctx, sci.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.ErrorIs(t, repo.RemoveBook(ctx, fav.ID, 2), database.ErrNotFound)
	require.NoError(t, repo.RemoveBook(ctx, fav.ID, 1))
}

func TestReaders_CRUD(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	r, err := store.Readers.Create(ctx, "Alex", "")
	require.NoError(t, err)
	assert.Equal(t, "Alex", r.Name)

	all, err := store.Readers.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.Readers.Delete(ctx, r.ID))
	assert.ErrorIs(t, store.Readers.Delete(ctx, r.ID), database.ErrNotFound)
}
