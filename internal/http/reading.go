package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booklog/internal/database/talebook"
	"github.com/mrlokans/booklog/internal/services"
)

type ReadingController struct {
	store ReadingStore
}

func NewReadingController(store ReadingStore) *ReadingController {
	return &ReadingController{store: store}
}

// GetState returns the reading state of a book for one reader.
// GET /api/reading/state/:bookId?reader_id=
func (rc *ReadingController) GetState(c *gin.Context) {
	bookID, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}
	readerID, ok := parseReaderID(c)
	if !ok {
		return
	}

	state, err := rc.store.GetReadingState(c.Request.Context(), bookID, readerID)
	if err != nil {
		respondServiceError(c, err, "reading state", "get reading state")
		return
	}
	c.JSON(http.StatusOK, state)
}

// SetState updates the given flags. Omitted flags keep their value.
// PUT /api/reading/state/:bookId?reader_id=
func (rc *ReadingController) SetState(c *gin.Context) {
	bookID, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}
	readerID, ok := parseReaderID(c)
	if !ok {
		return
	}
	var change talebook.ReadingStateChange
	if err := c.ShouldBindJSON(&change); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	state, err := rc.store.SetReadingState(c.Request.Context(), bookID, readerID, change)
	if err != nil {
		respondServiceError(c, err, "book", "set reading state")
		return
	}
	c.JSON(http.StatusOK, state)
}

// GET /api/reading/sessions/:bookId
func (rc *ReadingController) GetSessions(c *gin.Context) {
	bookID, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}

	sessions, err := rc.store.Sessions(c.Request.Context(), bookID)
	if err != nil {
		respondServiceError(c, err, "sessions", "list sessions")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: sessions, Count: len(sessions)})
}

// RecordSession stores a reading session and updates the book totals.
// POST /api/reading/sessions
func (rc *ReadingController) RecordSession(c *gin.Context) {
	var req services.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BookID <= 0 {
		respondBadRequest(c, "book_id is required")
		return
	}

	session, err := rc.store.RecordSession(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "book", "record session")
		return
	}
	respondCreated(c, session)
}

// GET /api/reading/stats?reader_id=
func (rc *ReadingController) GetStats(c *gin.Context) {
	readerID, ok := parseReaderID(c)
	if !ok {
		return
	}

	stats, err := rc.store.ReadingStats(c.Request.Context(), readerID)
	if err != nil {
		respondServiceError(c, err, "reading stats", "reading stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
