package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booklog/internal/services"
)

// AdminController exposes the schema and integrity reports and the items sync.
type AdminController struct {
	store  AdminStore
	syncer services.ItemsSyncer
}

// NewAdminController creates the controller. With a nil syncer the items
// sync runs inline instead of being queued.
func NewAdminController(store AdminStore, syncer services.ItemsSyncer) *AdminController {
	return &AdminController{store: store, syncer: syncer}
}

// GetSchema reports missing tables and columns in both stores.
// GET /api/admin/schema
func (ac *AdminController) GetSchema(c *gin.Context) {
	report, err := ac.store.SchemaReport(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "schema", "schema report")
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetIntegrity reports orphaned extension rows and books without items rows.
// GET /api/admin/integrity
func (ac *AdminController) GetIntegrity(c *gin.Context) {
	report, err := ac.store.IntegrityReport(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "integrity report", "integrity report")
		return
	}
	c.JSON(http.StatusOK, report)
}

// SyncItems creates missing items rows for the given books, or all books.
// POST /api/admin/sync-items
func (ac *AdminController) SyncItems(c *gin.Context) {
	var req struct {
		BookIDs []int64 `json:"book_ids"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	if ac.syncer != nil {
		if err := ac.syncer.RequestItemsSync(c.Request.Context(), req.BookIDs...); err != nil {
			respondInternalError(c, err, "queue items sync")
			return
		}
		respondAccepted(c, "items sync queued", gin.H{"book_ids": req.BookIDs})
		return
	}

	result, err := ac.store.SyncItems(c.Request.Context(), req.BookIDs)
	if err != nil {
		respondServiceError(c, err, "books", "sync items")
		return
	}
	c.JSON(http.StatusOK, result)
}
