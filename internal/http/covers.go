package http

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mrlokans/booklog/internal/covers"
)

// CoversController serves cover images from the Calibre library directory.
type CoversController struct {
	library *covers.Library
	store   CoverStore
}

func NewCoversController(library *covers.Library, store CoverStore) *CoversController {
	return &CoversController{library: library, store: store}
}

// GetCover serves the cover.jpg of a book.
// GET /api/books/:id/cover
func (cc *CoversController) GetCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	bookPath, hasCover, err := cc.store.BookLocation(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "book", "get cover")
		return
	}
	if !hasCover {
		respondNotFound(c, "cover")
		return
	}

	path, err := cc.library.CoverPath(bookPath)
	if err != nil {
		if !errors.Is(err, covers.ErrNoCover) {
			log.Warn().Err(err).Int64("book_id", id).Msg("cover lookup failed")
		}
		respondNotFound(c, "cover")
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.File(path)
}
