package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	State   string            `json:"state"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	checker HealthChecker
	version string
}

func NewHealthController(checker HealthChecker, version string) *HealthController {
	return &HealthController{
		checker: checker,
		version: version,
	}
}

// Status pings both stores. A missing store degrades the service, it does
// not make it unhealthy; only a service that is not ready is unhealthy.
func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	availability := h.checker.Availability()
	pings, err := h.checker.Ping(c.Request.Context())
	if err != nil {
		status = "unhealthy"
	}
	for store, pingErr := range pings {
		if pingErr != nil {
			checks[string(store)] = "error: " + pingErr.Error()
			status = "degraded"
			continue
		}
		checks[string(store)] = "ok"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		State:   availability.State,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
