package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type GroupsController struct {
	store GroupStore
}

func NewGroupsController(store GroupStore) *GroupsController {
	return &GroupsController{store: store}
}

type groupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// GetAllGroups lists groups with their book counts.
// GET /api/groups
func (gc *GroupsController) GetAllGroups(c *gin.Context) {
	groups, err := gc.store.Groups(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "groups", "list groups")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: groups, Count: len(groups)})
}

// CreateGroup creates a group. Names are unique.
// POST /api/groups
func (gc *GroupsController) CreateGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == nil {
		respondBadRequest(c, "name is required")
		return
	}
	description := ""
	if req.Description != nil {
		description = *req.Description
	}

	group, err := gc.store.CreateGroup(c.Request.Context(), *req.Name, description)
	if err != nil {
		respondServiceError(c, err, "group", "create group")
		return
	}
	respondCreated(c, group)
}

// UpdateGroup renames a group or changes its description.
// PUT /api/groups/:id
func (gc *GroupsController) UpdateGroup(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	group, err := gc.store.UpdateGroup(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		respondServiceError(c, err, "group", "update group")
		return
	}
	c.JSON(http.StatusOK, group)
}

// DELETE /api/groups/:id
func (gc *GroupsController) DeleteGroup(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := gc.store.DeleteGroup(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "group", "delete group")
		return
	}
	respondSuccess(c, "group deleted")
}

// GetGroupBooks returns the enriched books of a group.
// GET /api/groups/:id/books
func (gc *GroupsController) GetGroupBooks(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	readerID, ok := parseReaderID(c)
	if !ok {
		return
	}

	books, err := gc.store.GroupBooks(c.Request.Context(), id, readerID)
	if err != nil {
		respondServiceError(c, err, "group", "list group books")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: books, Count: len(books)})
}

// AddBook adds a book to a group. Adding it twice is a no-op.
// POST /api/groups/:id/books
func (gc *GroupsController) AddBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		BookID int64 `json:"book_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.BookID <= 0 {
		respondBadRequest(c, "book_id is required")
		return
	}

	if err := gc.store.AddBookToGroup(c.Request.Context(), id, req.BookID); err != nil {
		respondServiceError(c, err, "group or book", "add book to group")
		return
	}
	respondSuccess(c, "book added to group")
}

// DELETE /api/groups/:id/books/:bookId
func (gc *GroupsController) RemoveBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	bookID, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}

	if err := gc.store.RemoveBookFromGroup(c.Request.Context(), id, bookID); err != nil {
		respondServiceError(c, err, "group membership", "remove book from group")
		return
	}
	respondSuccess(c, "book removed from group")
}
