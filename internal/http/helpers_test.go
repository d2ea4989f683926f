package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/services"
	"github.com/mrlokans/booklog/internal/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseIDParam_Valid(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "123"}}

	id, ok := parseIDParam(c, "id")

	assert.True(t, ok)
	assert.Equal(t, int64(123), id)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseIDParam_Invalid(t *testing.T) {
	for _, value := range []string{"abc", "-1", "0", ""} {
		t.Run(value, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Params = gin.Params{{Key: "id", Value: value}}

			id, ok := parseIDParam(c, "id")

			assert.False(t, ok)
			assert.Zero(t, id)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "invalid id")
		})
	}
}

func TestParseQueryID_Missing(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	_, ok := parseQueryID(c, "book_id")

	assert.False(t, ok)
	assert.Contains(t, w.Body.String(), "book_id is required")
}

func TestParseReaderID(t *testing.T) {
	tests := []struct {
		query string
		want  *int64
		ok    bool
	}{
		{"", nil, true},
		{"?reader_id=0", ptr(int64(0)), true},
		{"?reader_id=12", ptr(int64(12)), true},
		{"?reader_id=-3", nil, false},
		{"?reader_id=x", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/"+tt.query, nil)

			got, ok := parseReaderID(c)

			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/?limit=10&offset=20", nil)

	limit, offset, ok := parsePage(c, defaultPageSize)

	assert.True(t, ok)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 20, offset)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/?limit=100000", nil)
	_, _, ok = parsePage(c, defaultPageSize)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePage_ZeroLimitRejected(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/?limit=0", nil)

	_, _, ok := parsePage(c, defaultPageSize)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	limit, offset, ok := parsePage(c, defaultPageSize)

	assert.True(t, ok)
	assert.Equal(t, defaultPageSize, limit)
	assert.Equal(t, 0, offset)
}

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &validation.ValidationError{Errors: []validation.FieldError{{Field: "title", Message: "is required"}}}, http.StatusUnprocessableEntity, "validation"},
		{"not found", fmt.Errorf("book 1: %w", database.ErrNotFound), http.StatusNotFound, "not_found"},
		{"constraint", fmt.Errorf("failed to create group: %w", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}), http.StatusConflict, "conflict"},
		{"store unavailable", fmt.Errorf("talebook: %w", database.ErrStoreUnavailable), http.StatusServiceUnavailable, "store_unavailable"},
		{"not ready", services.ErrNotReady, http.StatusServiceUnavailable, "not_ready"},
		{"unknown column", fmt.Errorf("%w: items.bogus", database.ErrUnknownColumn), http.StatusBadRequest, "bad_request"},
		{"other", errors.New("disk I/O error"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondServiceError(c, tt.err, "book", "test")

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
		})
	}
}

func ptr[T any](v T) *T { return &v }
