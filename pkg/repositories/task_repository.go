package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/peroxia-tech/peroxia-engine/pkg/apperrors"
	"github.com/peroxia-tech/peroxia-engine/pkg/database"
	"github.com/peroxia-tech/peroxia-engine/pkg/models"
)

// TaskRepository defines the interface for task data access.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Task, error)
	// Update persists title, description, status and assignee of task and refreshes UpdatedAt.
	Update(ctx context.Context, task *models.Task) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) (*models.Task, error)
}

// taskRepository implements TaskRepository using PostgreSQL.
type taskRepository struct{}

// NewTaskRepository creates a new task repository.
func NewTaskRepository() TaskRepository {
	return &taskRepository{}
}

var _ TaskRepository = (*taskRepository)(nil)

const taskColumns = `id, project_id, title, description, status, assignee_id, created_at, updated_at`

// Create inserts a new task. An unknown assignee returns apperrors.ErrInvalidAssignee.
func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := scope.Conn.Exec(ctx, query,
		task.ID,
		task.ProjectID,
		task.Title,
		task.Description,
		string(task.Status),
		task.AssigneeID,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return mapTaskWriteError("create", err)
	}

	return nil
}

// Get retrieves a task by ID.
func (r *taskRepository) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	task, err := scanTask(scope.Conn.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListByProject returns all tasks of a project in creation order.
func (r *taskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Task, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE project_id = $1
		ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// Update writes the mutable fields of task.
func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	task.UpdatedAt = time.Now().UTC()

	tag, err := scope.Conn.Exec(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, assignee_id = $5, updated_at = $6
		WHERE id = $1`,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		task.AssigneeID,
		task.UpdatedAt,
	)
	if err != nil {
		return mapTaskWriteError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// UpdateStatus sets only the status column and returns the updated row.
func (r *taskRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) (*models.Task, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	task, err := scanTask(scope.Conn.QueryRow(ctx, `
		UPDATE tasks
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+taskColumns, id, string(status), time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}
	return task, nil
}

func mapTaskWriteError(op string, err error) error {
	if isForeignKeyViolation(err) {
		if constraintName(err) == "tasks_assignee_id_fkey" {
			return apperrors.ErrInvalidAssignee
		}
		return apperrors.ErrNotFound
	}
	return fmt.Errorf("failed to %s task: %w", op, err)
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		t      models.Task
		status string
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	return &t, nil
}
