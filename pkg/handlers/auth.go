package handlers

import (
	"errors"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/repositories"
	"github.com/peroxia-tech/peroxia-engine/pkg/services"
)

// Middleware wraps a handler, for example with rate limiting.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// LoginRequest is the JSON form of the login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthHandler handles signup and login.
type AuthHandler struct {
	userService services.UserService
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(userService services.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
// Both endpoints accept credentials, so they sit behind the limiter.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, prefix string, scope, limit Middleware) {
	mux.HandleFunc("POST "+prefix+"/auth/signup", limit(scope(h.Signup)))
	mux.HandleFunc("POST "+prefix+"/auth/login", limit(scope(h.Login)))
}

// Signup handles POST /auth/signup
// Creates a user and returns it without the password hash.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := h.userService.Signup(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrUsernameTaken):
			writeError(w, h.logger, http.StatusBadRequest, "username_taken", "Username already taken")
		case errors.Is(err, repositories.ErrEmailTaken):
			writeError(w, h.logger, http.StatusBadRequest, "email_taken", "Email already registered")
		default:
			writeServiceError(w, h.logger, err, "User not found", "sign up")
		}
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, user)
}

// Login handles POST /auth/login
// Accepts form fields (username, password) or the same fields as JSON.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid form body")
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	result, err := h.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err, "User not found", "log in")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}
