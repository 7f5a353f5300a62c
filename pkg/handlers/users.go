package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/auth"
	"github.com/peroxia-tech/peroxia-engine/pkg/services"
)

// UsersHandler serves the authenticated user's own account.
type UsersHandler struct {
	userService services.UserService
	logger      *zap.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(userService services.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers the users handler's routes on the given mux.
func (h *UsersHandler) RegisterRoutes(mux *http.ServeMux, prefix string, authMiddleware *auth.Middleware, scope Middleware) {
	mux.HandleFunc("GET "+prefix+"/users/me", authMiddleware.RequireAuth(scope(h.Me)))
}

// Me handles GET /users/me
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "User not found", "get user")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, user)
}
