package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booklog/internal/database/talebook"
)

type BookmarksController struct {
	store BookmarkStore
}

func NewBookmarksController(store BookmarkStore) *BookmarksController {
	return &BookmarksController{store: store}
}

type bookmarkRequest struct {
	BookID  int64     `json:"book_id"`
	Content *string   `json:"content"`
	Note    *string   `json:"note"`
	Page    *int64    `json:"page"`
	Tags    *[]string `json:"tags"`
}

// GetBookmarks lists the bookmarks of one book.
// GET /api/bookmarks?book_id=
func (bc *BookmarksController) GetBookmarks(c *gin.Context) {
	bookID, ok := parseQueryID(c, "book_id")
	if !ok {
		return
	}

	bookmarks, err := bc.store.Bookmarks(c.Request.Context(), bookID)
	if err != nil {
		respondServiceError(c, err, "bookmarks", "list bookmarks")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: bookmarks, Count: len(bookmarks)})
}

// GET /api/bookmarks/:id
func (bc *BookmarksController) GetBookmark(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	bookmark, err := bc.store.Bookmark(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "bookmark", "get bookmark")
		return
	}
	c.JSON(http.StatusOK, bookmark)
}

// POST /api/bookmarks
func (bc *BookmarksController) CreateBookmark(c *gin.Context) {
	var req bookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BookID <= 0 {
		respondBadRequest(c, "book_id is required")
		return
	}

	in := talebook.BookmarkInput{BookID: req.BookID, Page: req.Page}
	if req.Content != nil {
		in.Content = *req.Content
	}
	if req.Note != nil {
		in.Note = *req.Note
	}
	if req.Tags != nil {
		in.Tags = *req.Tags
	}

	bookmark, err := bc.store.CreateBookmark(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err, "book", "create bookmark")
		return
	}
	respondCreated(c, bookmark)
}

// UpdateBookmark changes a bookmark. A tags list replaces the whole set.
// PUT /api/bookmarks/:id
func (bc *BookmarksController) UpdateBookmark(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req bookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	bookmark, err := bc.store.UpdateBookmark(c.Request.Context(), id, talebook.BookmarkPatch{
		Content: req.Content,
		Note:    req.Note,
		Page:    req.Page,
		Tags:    req.Tags,
	})
	if err != nil {
		respondServiceError(c, err, "bookmark", "update bookmark")
		return
	}
	c.JSON(http.StatusOK, bookmark)
}

// DELETE /api/bookmarks/:id
func (bc *BookmarksController) DeleteBookmark(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := bc.store.DeleteBookmark(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "bookmark", "delete bookmark")
		return
	}
	respondSuccess(c, "bookmark deleted")
}

// GetTags lists every bookmark tag with its usage count.
// GET /api/bookmarks/tags
func (bc *BookmarksController) GetTags(c *gin.Context) {
	tags, err := bc.store.BookmarkTags(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "bookmark tags", "list bookmark tags")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: tags, Count: len(tags)})
}
