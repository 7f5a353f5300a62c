package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/auth"
	"github.com/peroxia-tech/peroxia-engine/pkg/models"
	"github.com/peroxia-tech/peroxia-engine/pkg/services"
)

// CreateProjectRequest is the body of POST /projects.
type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// AddMemberRequest is the body of POST /projects/{pid}/members.
type AddMemberRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

// ProjectsHandler handles project and membership requests.
type ProjectsHandler struct {
	projectService services.ProjectService
	logger         *zap.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(projectService services.ProjectService, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux, prefix string, authMiddleware *auth.Middleware, scope Middleware) {
	mux.HandleFunc("GET "+prefix+"/projects", authMiddleware.RequireAuth(scope(h.List)))
	mux.HandleFunc("POST "+prefix+"/projects", authMiddleware.RequireAuth(scope(h.Create)))
	mux.HandleFunc("GET "+prefix+"/projects/{pid}", authMiddleware.RequireAuth(scope(h.Get)))
	mux.HandleFunc("POST "+prefix+"/projects/{pid}/members", authMiddleware.RequireAuth(scope(h.AddMember)))
}

// List handles GET /projects
// Returns the projects the caller is a member of.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	projects, err := h.projectService.ListForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Project not found", "list projects")
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}

	writeJSON(w, h.logger, http.StatusOK, projects)
}

// Create handles POST /projects
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	project, err := h.projectService.Create(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		writeServiceError(w, h.logger, err, "Project not found", "create project")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, project)
}

// Get handles GET /projects/{pid}
// Returns the project with its members.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	project, err := h.projectService.Get(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Project not found", "get project")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, project)
}

// AddMember handles POST /projects/{pid}/members
// Only the project owner may add members.
func (h *ProjectsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID == uuid.Nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	if err := h.projectService.AddMember(r.Context(), userID, projectID, req.UserID); err != nil {
		writeServiceError(w, h.logger, err, "Project or user not found", "add project member")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, map[string]uuid.UUID{
		"project_id": projectID,
		"user_id":    req.UserID,
	})
}
