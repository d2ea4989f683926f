package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/services"
	"github.com/mrlokans/booklog/internal/validation"
)

type unavailableAdminStore struct{}

func (unavailableAdminStore) SchemaReport(context.Context) (*validation.SchemaReport, error) {
	return nil, services.ErrNotReady
}

func (unavailableAdminStore) IntegrityReport(context.Context) (*validation.IntegrityReport, error) {
	return nil, database.ErrStoreUnavailable
}

func (unavailableAdminStore) SyncItems(context.Context, []int64) (*services.SyncResult, error) {
	return nil, database.ErrStoreUnavailable
}

type queueingSyncer struct {
	ids []int64
}

func (q *queueingSyncer) RequestItemsSync(_ context.Context, ids ...int64) error {
	q.ids = append(q.ids, ids...)
	return nil
}

func newAdminRouter(controller *AdminController) *gin.Engine {
	router := gin.New()
	router.GET("/api/admin/schema", controller.GetSchema)
	router.GET("/api/admin/integrity", controller.GetIntegrity)
	router.POST("/api/admin/sync-items", controller.SyncItems)
	return router
}

func TestAdminController_Unavailable(t *testing.T) {
	router := newAdminRouter(NewAdminController(unavailableAdminStore{}, nil))

	for _, path := range []string{"/api/admin/schema", "/api/admin/integrity"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/admin/sync-items", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminController_SyncItemsQueued(t *testing.T) {
	syncer := &queueingSyncer{}
	router := newAdminRouter(NewAdminController(unavailableAdminStore{}, syncer))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/admin/sync-items", strings.NewReader(`{"book_ids":[3,4]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []int64{3, 4}, syncer.ids)
}

func TestAdminController_SyncItemsBadBody(t *testing.T) {
	router := newAdminRouter(NewAdminController(unavailableAdminStore{}, &queueingSyncer{}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/admin/sync-items", strings.NewReader(`{"book_ids":"all"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
