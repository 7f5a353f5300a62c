package handlers

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/realtime"
)

// LiveHandler upgrades project live channel requests to WebSocket
// connections and keeps them registered until the peer goes away.
type LiveHandler struct {
	gate           *realtime.Gate
	registry       *realtime.Registry
	originPatterns []string
	logger         *zap.Logger
}

// NewLiveHandler creates a live channel handler. originPatterns are host
// patterns accepted for cross-origin upgrades; "*" accepts any origin.
func NewLiveHandler(gate *realtime.Gate, registry *realtime.Registry, originPatterns []string, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{
		gate:           gate,
		registry:       registry,
		originPatterns: originPatterns,
		logger:         logger.Named("live"),
	}
}

// RegisterRoutes registers the live channel route on the given mux.
// The credential travels in the query string, so no auth middleware applies.
func (h *LiveHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/projects/{pid}", h.Connect)
}

// credential returns the token from ?token=, falling back to a bearer header.
func credential(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// Connect handles GET /ws/projects/{pid}?token=<jwt>
//
// The connection is accepted first so that rejections can be reported as a
// close frame (1008 with the reason code) rather than an HTTP status.
func (h *LiveHandler) Connect(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		return
	}

	result := h.gate.Admit(r.Context(), credential(r), projectID)
	if !result.Admitted() {
		_ = conn.Close(result.CloseStatus(), string(result.Reason))
		return
	}

	sub := realtime.NewWSSubscriber(conn, result.UserID)
	h.registry.Add(projectID, sub)
	defer h.registry.Remove(projectID, sub)

	h.logger.Info("Live channel opened",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", result.UserID.String()),
		zap.String("subscriber_id", sub.ID().String()))

	// Inbound messages are ignored; CloseRead keeps control frames flowing
	// and cancels ctx once the peer closes or the connection breaks.
	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()

	h.logger.Info("Live channel closed",
		zap.String("project_id", projectID.String()),
		zap.String("subscriber_id", sub.ID().String()))
}

// CloseAll closes every registered live channel. Used on shutdown, since
// hijacked connections are not tracked by http.Server.
func (h *LiveHandler) CloseAll(reason string) {
	for _, projectID := range h.registry.Rooms() {
		for _, sub := range h.registry.Snapshot(projectID) {
			sub.Close(reason)
		}
	}
}
