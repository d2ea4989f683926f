package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/services"
)

type fakeHealth struct {
	availability services.Availability
	pings        map[database.Store]error
	err          error
}

func (f fakeHealth) Availability() services.Availability { return f.availability }

func (f fakeHealth) Ping(context.Context) (map[database.Store]error, error) {
	return f.pings, f.err
}

func TestHealthController_Status(t *testing.T) {
	tests := []struct {
		name    string
		checker fakeHealth
		code    int
		status  string
		checks  map[string]string
	}{
		{
			name: "both stores up",
			checker: fakeHealth{
				availability: services.Availability{State: "ready", Calibre: true, Talebook: true},
				pings:        map[database.Store]error{database.StoreCalibre: nil, database.StoreTalebook: nil},
			},
			code:   http.StatusOK,
			status: "healthy",
			checks: map[string]string{"calibre": "ok", "talebook": "ok"},
		},
		{
			name: "extension store missing",
			checker: fakeHealth{
				availability: services.Availability{State: "ready", Calibre: true},
				pings:        map[database.Store]error{database.StoreCalibre: nil, database.StoreTalebook: database.ErrStoreUnavailable},
			},
			code:   http.StatusOK,
			status: "degraded",
			checks: map[string]string{"calibre": "ok", "talebook": "error: " + database.ErrStoreUnavailable.Error()},
		},
		{
			name:    "service closed",
			checker: fakeHealth{availability: services.Availability{State: "closed"}, err: fmt.Errorf("ping: %w", services.ErrNotReady)},
			code:    http.StatusServiceUnavailable,
			status:  "unhealthy",
			checks:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := NewHealthController(tt.checker, "1.0.0")

			router := gin.New()
			router.GET("/health", controller.Status)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/health", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)

			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.status, response.Status)
			assert.Equal(t, "1.0.0", response.Version)
			assert.Equal(t, tt.checks, response.Checks)
			assert.NotEmpty(t, response.Time)
		})
	}
}
