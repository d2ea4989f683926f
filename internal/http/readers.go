package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ReadersController struct {
	store ReaderStore
}

func NewReadersController(store ReaderStore) *ReadersController {
	return &ReadersController{store: store}
}

// GET /api/readers
func (rc *ReadersController) GetAllReaders(c *gin.Context) {
	readers, err := rc.store.Readers(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "readers", "list readers")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: readers, Count: len(readers)})
}

// POST /api/readers
func (rc *ReadersController) CreateReader(c *gin.Context) {
	var req struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	reader, err := rc.store.CreateReader(c.Request.Context(), req.Name, req.Avatar)
	if err != nil {
		respondServiceError(c, err, "reader", "create reader")
		return
	}
	respondCreated(c, reader)
}

// DeleteReader removes a reader and their reading state.
// DELETE /api/readers/:id
func (rc *ReadersController) DeleteReader(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := rc.store.DeleteReader(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "reader", "delete reader")
		return
	}
	respondSuccess(c, "reader deleted")
}
