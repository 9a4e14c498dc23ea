package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"mediagate/internal/repository"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	store   repository.Pinger // nil when the store is in-process
	version string
	started time.Time
}

func NewHealthHandler(store repository.Pinger, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version, started: time.Now()}
}

// LivenessResponse represents liveness probe response.
type LivenessResponse struct {
	Status string `json:"status"`
	Time   int64  `json:"timestamp"`
}

// ReadinessResponse represents readiness probe response.
type ReadinessResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// Liveness returns 200 if the service is running.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LivenessResponse{
		Status: "alive",
		Time:   time.Now().Unix(),
	})
}

// Readiness returns 200 if the service is ready to serve traffic, pinging the
// shared store when there is one.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, ReadinessResponse{Status: "ready", Store: "memory"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ReadinessResponse{Status: "not_ready", Store: "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, ReadinessResponse{Status: "ready", Store: "ok"})
}

// Status returns detailed status information.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"service":   "mediagate",
		"version":   h.version,
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(h.started).Seconds(),
	})
}
