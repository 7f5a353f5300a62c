package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/config"
	"github.com/peroxia-tech/peroxia-engine/pkg/services/workqueue"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthResponse reports liveness plus a few runtime gauges.
type HealthResponse struct {
	Status        string              `json:"status"`
	Database      string              `json:"database"`
	Realtime      *RealtimeHealth     `json:"realtime,omitempty"`
	Notifications *workqueue.Progress `json:"notifications,omitempty"`
}

// RealtimeHealth summarizes live channel occupancy.
type RealtimeHealth struct {
	Rooms       int `json:"rooms"`
	Subscribers int `json:"subscribers"`
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RoomStats exposes live channel occupancy.
type RoomStats interface {
	RoomCount() int
	Total() int
}

// QueueStats exposes background job progress.
type QueueStats interface {
	Progress() workqueue.Progress
}

// HealthHandler handles health check, ping and metrics endpoints.
type HealthHandler struct {
	cfg     *config.Config
	db      Pinger
	rooms   RoomStats
	queue   QueueStats
	metrics http.Handler
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Any of db, rooms, queue and
// metrics may be nil; the corresponding section is then omitted.
func NewHealthHandler(cfg *config.Config, db Pinger, rooms RoomStats, queue QueueStats, metrics http.Handler, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		cfg:     cfg,
		db:      db,
		rooms:   rooms,
		queue:   queue,
		metrics: metrics,
		logger:  logger,
	}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

// Health handles GET /health requests.
// Responds 503 when the database cannot be reached.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok", Database: "unknown"}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("Health check database ping failed", zap.Error(err))
			response.Status = "degraded"
			response.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			response.Database = "ok"
		}
	}

	if h.rooms != nil {
		response.Realtime = &RealtimeHealth{
			Rooms:       h.rooms.RoomCount(),
			Subscribers: h.rooms.Total(),
		}
	}
	if h.queue != nil {
		p := h.queue.Progress()
		response.Notifications = &p
	}

	writeJSON(w, h.logger, status, response)
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "peroxia-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	writeJSON(w, h.logger, http.StatusOK, response)
}
