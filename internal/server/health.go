package server

import (
	"context"
	"net/http"
	"time"
)

// ComponentHealth represents health status of a single component.
type ComponentHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components []ComponentHealth `json:"components"`
}

// health reports whether the cache database is reachable. Unhealthy storage
// answers 503 so the endpoint can back a liveness probe.
func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbHealthy := true
	dbMessage := ""
	if err := h.store.Ping(ctx); err != nil {
		dbHealthy = false
		dbMessage = "cache database is not reachable"
		h.logger.WarnContext(ctx, "Health check failed", "component", "database", "error", err)
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !dbHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, r, statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Components: []ComponentHealth{
			{Name: "database", Healthy: dbHealthy, Message: dbMessage},
		},
	})
}
