package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/djlord-it/misfire-guard/internal/domain"
)

// SnapshotStatus exposes the snapshot cache state for /status.
type SnapshotStatus interface {
	Pipelines() []domain.Pipeline
	Warmed() bool
}

// PollerStatus exposes the compensation poller state for /status.
type PollerStatus interface {
	Started() bool
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	snapshot SnapshotStatus
	poller   PollerStatus
	db       HealthChecker
}

func NewHandler(snapshot SnapshotStatus, poller PollerStatus) *Handler {
	return &Handler{snapshot: snapshot, poller: poller}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case r.URL.Path == "/status" && r.Method == http.MethodGet:
		h.status(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// StatusResponse represents the /status endpoint response.
type StatusResponse struct {
	SnapshotWarmed    bool `json:"snapshot_warmed"`
	SnapshotPipelines int  `json:"snapshot_pipelines"`
	PollerStarted     bool `json:"poller_started"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		SnapshotWarmed:    h.snapshot.Warmed(),
		SnapshotPipelines: len(h.snapshot.Pipelines()),
		PollerStarted:     h.poller.Started(),
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
