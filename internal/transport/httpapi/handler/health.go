package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports connectivity of a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health and readiness probes
type HealthHandler struct {
	db    Pinger
	cache Pinger
}

// NewHealthHandler creates a new health handler. cache may be nil when the
// service runs without Redis.
func NewHealthHandler(db, cache Pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

var startTime = time.Now()

// GetHealth handles GET /health
// Liveness: returns 200 whenever the process is serving requests.
func GetHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{
		Status: "ok",
		Uptime: time.Since(startTime).String(),
	}, http.StatusOK)
}

// GetReadiness handles GET /health/ready
// Readiness: verifies the dependencies a request would touch. The cache is
// reported but never gates readiness; the service degrades without it.
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "ready"
	httpStatus := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "not ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "healthy"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["cache"] = "unhealthy: " + err.Error()
		} else {
			checks["cache"] = "healthy"
		}
	}

	respondJSON(w, HealthResponse{
		Status: status,
		Uptime: time.Since(startTime).String(),
		Checks: checks,
	}, httpStatus)
}
