package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/auth"
	"github.com/peroxia-tech/peroxia-engine/pkg/models"
	"github.com/peroxia-tech/peroxia-engine/pkg/services"
)

// CreateTaskRequest is the body of POST /projects/{pid}/tasks.
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
}

// UpdateTaskRequest is the body of PUT /tasks/{tid}. Absent fields are left
// unchanged; "assignee_id": null unassigns the task.
type UpdateTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	AssigneeID  json.RawMessage `json:"assignee_id"`
}

// UpdateStatusRequest is the body of PATCH /tasks/{tid}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// toUpdate converts the request body into a models.TaskUpdate.
func (req UpdateTaskRequest) toUpdate() (models.TaskUpdate, bool) {
	update := models.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		update.Status = &status
	}

	switch raw := bytes.TrimSpace(req.AssigneeID); {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		update.ClearAssignee = true
	default:
		var id uuid.UUID
		if err := json.Unmarshal(raw, &id); err != nil {
			return update, false
		}
		update.AssigneeID = &id
	}
	return update, true
}

// TasksHandler handles task requests.
type TasksHandler struct {
	taskService services.TaskService
	logger      *zap.Logger
}

// NewTasksHandler creates a new tasks handler.
func NewTasksHandler(taskService services.TaskService, logger *zap.Logger) *TasksHandler {
	return &TasksHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// RegisterRoutes registers the tasks handler's routes on the given mux.
func (h *TasksHandler) RegisterRoutes(mux *http.ServeMux, prefix string, authMiddleware *auth.Middleware, scope Middleware) {
	mux.HandleFunc("GET "+prefix+"/projects/{pid}/tasks", authMiddleware.RequireAuth(scope(h.List)))
	mux.HandleFunc("POST "+prefix+"/projects/{pid}/tasks", authMiddleware.RequireAuth(scope(h.Create)))
	mux.HandleFunc("PUT "+prefix+"/tasks/{tid}", authMiddleware.RequireAuth(scope(h.Update)))
	mux.HandleFunc("PATCH "+prefix+"/tasks/{tid}/status", authMiddleware.RequireAuth(scope(h.UpdateStatus)))
}

// List handles GET /projects/{pid}/tasks
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	tasks, err := h.taskService.List(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Project not found", "list tasks")
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}

	writeJSON(w, h.logger, http.StatusOK, tasks)
}

// Create handles POST /projects/{pid}/tasks
// Subscribers of the project receive task_created once the task is stored.
func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	task, err := h.taskService.Create(r.Context(), userID, projectID, services.TaskCreate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Project not found", "create task")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, task)
}

// Update handles PUT /tasks/{tid}
// Subscribers receive task_updated; a new assignee is notified in the background.
func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	taskID, ok := ParseTaskID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	update, ok := req.toUpdate()
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_assignee", "assignee_id must be a user ID or null")
		return
	}

	task, err := h.taskService.Update(r.Context(), userID, taskID, update)
	if err != nil {
		writeServiceError(w, h.logger, err, "Task not found", "update task")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, task)
}

// UpdateStatus handles PATCH /tasks/{tid}/status
// Subscribers receive status_changed.
func (h *TasksHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	taskID, ok := ParseTaskID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	task, err := h.taskService.UpdateStatus(r.Context(), userID, taskID, req.Status)
	if err != nil {
		writeServiceError(w, h.logger, err, "Task not found", "update task status")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, task)
}
