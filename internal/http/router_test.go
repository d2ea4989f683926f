package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/booklog/internal/config"
	"github.com/mrlokans/booklog/internal/covers"
	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/entities"
	"github.com/mrlokans/booklog/internal/services"
)

type testServer struct {
	router  *gin.Engine
	service *services.DatabaseService
	library string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	reg := prometheus.NewRegistry()
	conns := database.NewConnectionManager(database.Options{
		Loader: func() config.Paths {
			return config.Paths{
				Calibre:  filepath.Join(dir, "metadata.db"),
				Talebook: filepath.Join(dir, "calibre-webserver.db"),
			}
		},
		CreateIfMissing: true,
		Metrics:         database.NewMetrics(reg),
	})
	svc := services.NewDatabaseService(services.Options{Connections: conns, InitSchema: true})
	require.NoError(t, svc.Init(context.Background()))
	t.Cleanup(func() { svc.Close() })

	router := NewRouter(RouterConfig{
		Store:          svc,
		Library:        covers.NewLibrary(dir),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Version:        "test",
	})
	return &testServer{router: router, service: svc, library: dir}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) createBook(t *testing.T, title string) entities.Book {
	t.Helper()
	w := s.do(t, "POST", "/api/books", map[string]any{"title": title, "author": "Ursula K. Le Guin", "tags": []string{"sf"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[entities.Book](t, w)
}

func TestRouter_PingAndHealth(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, "GET", "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")

	w = s.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ready", health.State)
	assert.Equal(t, map[string]string{"calibre": "ok", "talebook": "ok"}, health.Checks)
}

func TestRouter_BookLifecycle(t *testing.T) {
	s := setupTestServer(t)
	book := s.createBook(t, "The Dispossessed")

	assert.Equal(t, "Ursula K. Le Guin", book.Author)
	assert.Equal(t, 1, book.BookType)
	assert.Equal(t, []string{"sf"}, book.Tags)

	w := s.do(t, "GET", "/api/books", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Data  []entities.Book `json:"data"`
		Count int             `json:"count"`
	}](t, w)
	assert.Equal(t, 1, list.Count)

	w = s.do(t, "PUT", "/api/books/"+itoa(book.ID), map[string]any{"series": "Hainish Cycle", "book_type": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[entities.Book](t, w)
	assert.Equal(t, "Hainish Cycle", updated.Series)
	assert.Equal(t, 2, updated.BookType)

	w = s.do(t, "GET", "/api/books/search?q=dispossessed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "The Dispossessed")

	w = s.do(t, "DELETE", "/api/books/"+itoa(book.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, "GET", "/api/books/"+itoa(book.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_GetBookCountsVisits(t *testing.T) {
	s := setupTestServer(t)
	book := s.createBook(t, "The Dispossessed")

	for range 3 {
		w := s.do(t, "GET", "/api/books/"+itoa(book.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := s.do(t, "GET", "/api/books/999", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	db, err := sql.Open(database.DriverName, filepath.Join(s.library, "calibre-webserver.db"))
	require.NoError(t, err)
	defer db.Close()

	var visits int64
	require.NoError(t, db.QueryRow("SELECT count_visit FROM items WHERE book_id = ?", book.ID).Scan(&visits))
	assert.Equal(t, int64(3), visits)
}

func TestRouter_BookErrors(t *testing.T) {
	s := setupTestServer(t)
	book := s.createBook(t, "Lathe of Heaven")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"invalid id", "GET", "/api/books/abc", nil, http.StatusBadRequest},
		{"missing book", "GET", "/api/books/999", nil, http.StatusNotFound},
		{"create missing title", "POST", "/api/books", map[string]any{"author": "x"}, http.StatusUnprocessableEntity},
		{"create bad isbn", "POST", "/api/books", map[string]any{"title": "x", "author": "y", "isbn": "9787111213827"}, http.StatusUnprocessableEntity},
		{"update wrong type", "PUT", "/api/books/" + itoa(book.ID), map[string]any{"title": 5}, http.StatusUnprocessableEntity},
		{"update unknown field", "PUT", "/api/books/" + itoa(book.ID), map[string]any{"uuid": "x"}, http.StatusUnprocessableEntity},
		{"update empty body", "PUT", "/api/books/" + itoa(book.ID), map[string]any{}, http.StatusBadRequest},
		{"update missing book", "PUT", "/api/books/999", map[string]any{"title": "x"}, http.StatusNotFound},
		{"type out of range", "PUT", "/api/books/" + itoa(book.ID) + "/type", map[string]any{"book_type": 9}, http.StatusUnprocessableEntity},
		{"type missing", "PUT", "/api/books/" + itoa(book.ID) + "/type", map[string]any{}, http.StatusBadRequest},
		{"delete missing book", "DELETE", "/api/books/999", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestRouter_BookdataAndType(t *testing.T) {
	s := setupTestServer(t)
	book := s.createBook(t, "Always Coming Home")

	w := s.do(t, "PUT", "/api/books/"+itoa(book.ID)+"/bookdata", map[string]any{"page_count": 523, "purchase_price": 12.5, "note": "signed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"page_count":523`)

	w = s.do(t, "PUT", "/api/books/"+itoa(book.ID)+"/bookdata", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, "PUT", "/api/books/"+itoa(book.ID)+"/type", map[string]any{"book_type": 3})
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[entities.Book](t, s.do(t, "GET", "/api/books/"+itoa(book.ID), nil))
	assert.Equal(t, 3, got.BookType)
	assert.Equal(t, int64(523), got.Pages)
	assert.Equal(t, "signed", got.Note)
}

func TestRouter_NameLists(t *testing.T) {
	s := setupTestServer(t)
	s.createBook(t, "A Wizard of Earthsea")

	for _, path := range []string{"/api/authors", "/api/tags"} {
		w := s.do(t, "GET", path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":1`)
	}
	w := s.do(t, "GET", "/api/publishers", nil)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestRouter_Cover(t *testing.T) {
	s := setupTestServer(t)
	w := s.do(t, "POST", "/api/books", map[string]any{"title": "Tehanu", "author": "Ursula K. Le Guin", "has_cover": true})
	require.Equal(t, http.StatusCreated, w.Code)
	book := decode[entities.Book](t, w)
	assert.Equal(t, "/api/books/"+itoa(book.ID)+"/cover", book.CoverURL)

	w = s.do(t, "GET", book.CoverURL, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	folder := filepath.Join(s.library, filepath.FromSlash(book.Path))
	require.NoError(t, os.MkdirAll(folder, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(folder, covers.CoverFile), []byte("jpeg"), 0644))

	w = s.do(t, "GET", book.CoverURL, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg", w.Body.String())

	plain := s.createBook(t, "No Cover")
	w = s.do(t, "GET", "/api/books/"+itoa(plain.ID)+"/cover", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Groups(t *testing.T) {
	s := setupTestServer(t)
	book := s.createBook(t, "The Word for World Is Forest")

	w := s.do(t, "POST", "/api/groups", map[string]any{"name": "Novellas", "description": "short ones"})
	require.Equal(t, http.StatusCreated, w.Code)
	group := decode[struct {
		ID int64 `json:"id"`
	}](t, w)

	w = s.do(t, "POST", "/api/groups", map[string]any{"name": "Novellas"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, "POST", "/api/groups/"+itoa(group.ID)+"/books", map[string]any{"book_id": book.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, "GET", "/api/groups/"+itoa(group.ID)+"/books", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "The Word for World Is Forest")

	got := decode[entities.Book](t, s.do(t, "GET", "/api/books/"+itoa(book.ID), nil))
	assert.Equal(t, []entities.GroupRef{{ID: group.ID, Name: "Novellas"}}, got.Groups)

	w = s.do(t, "PUT", "/api/groups/"+itoa(group.ID), map[string]any{"name": "Short novels"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Short novels")

	w = s.do(t, "DELETE", "/api/groups/"+itoa(group.ID)+"/books/"+itoa(book.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, "DELETE", "/api/groups/"+itoa(group.ID)+"/books/"+itoa(book.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, "DELETE", "/api/groups/"+itoa(group.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, "GET", "/api/groups/"+itoa(group.ID)+"/books", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Bookmarks(t *testing.T) {
	s := setupTestServer(t)
	book := s.createBook(t, "The Telling")

	w := s.do(t, "POST", "/api/bookmarks", map[string]any{"book_id": book.ID, "content": "To learn which questions are unanswerable", "page": 12, "tags": []string{"quote", "favourite"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bookmark := decode[struct {
		ID   int64    `json:"id"`
		Tags []string `json:"tags"`
	}](t, w)
	assert.ElementsMatch(t, []string{"quote", "favourite"}, bookmark.Tags)

	w = s.do(t, "PUT", "/api/bookmarks/"+itoa(bookmark.ID), map[string]any{"tags": []string{"reread"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tags":["reread"]`)

	w = s.do(t, "GET", "/api/bookmarks?book_id="+itoa(book.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = s.do(t, "GET", "/api/bookmarks/tags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"reread"`)

	w = s.do(t, "GET", "/api/bookmarks", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, "POST", "/api/bookmarks", map[string]any{"book_id": 999, "content": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, "DELETE", "/api/bookmarks/"+itoa(bookmark.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, "GET", "/api/bookmarks/"+itoa(bookmark.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ReadersAndReading(t *testing.T) {
	s := setupTestServer(t)
	book := s.createBook(t, "Four Ways to Forgiveness")

	w := s.do(t, "POST", "/api/readers", map[string]any{"name": "Sam"})
	require.Equal(t, http.StatusCreated, w.Code)
	reader := decode[struct {
		ID int64 `json:"id"`
	}](t, w)

	path := "/api/reading/state/" + itoa(book.ID) + "?reader_id=" + itoa(reader.ID)
	w = s.do(t, "PUT", path, map[string]any{"favorite": 1, "wants": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"favorite":1`)

	w = s.do(t, "PUT", path, map[string]any{"read_state": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, "GET", "/api/reading/state/"+itoa(book.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"favorite":0`)

	w = s.do(t, "POST", "/api/reading/sessions", map[string]any{"book_id": book.ID, "duration": 600, "start_page": 1, "end_page": 21})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, "GET", "/api/reading/sessions/"+itoa(book.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = s.do(t, "GET", "/api/reading/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_duration":600`)
	assert.Contains(t, w.Body.String(), `"total_pages":20`)

	w = s.do(t, "DELETE", "/api/readers/"+itoa(reader.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, "GET", path, nil)
	assert.Contains(t, w.Body.String(), `"favorite":0`)
}

func TestRouter_Admin(t *testing.T) {
	s := setupTestServer(t)
	s.createBook(t, "The Eye of the Heron")

	w := s.do(t, "GET", "/api/admin/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)

	w = s.do(t, "GET", "/api/admin/integrity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"book_count":1`)

	w = s.do(t, "POST", "/api/admin/sync-items", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"checked":1`)
}

func TestRouter_Metrics(t *testing.T) {
	s := setupTestServer(t)
	s.createBook(t, "Malafrena")

	w := s.do(t, "GET", "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "booklog_db_statements_total")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
