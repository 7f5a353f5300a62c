package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/apperrors"
	"github.com/peroxia-tech/peroxia-engine/pkg/database"
	"github.com/peroxia-tech/peroxia-engine/pkg/models"
	"github.com/peroxia-tech/peroxia-engine/pkg/realtime"
	"github.com/peroxia-tech/peroxia-engine/pkg/repositories"
)

// TaskCreate carries the fields of a new task. An empty Status means todo.
type TaskCreate struct {
	Title       string
	Description *string
	Status      string
}

// TaskService defines the interface for task operations.
//
// Every successful mutation is announced to the project's live channel
// after its transaction commits. Delivery problems never fail the mutation.
type TaskService interface {
	List(ctx context.Context, callerID, projectID uuid.UUID) ([]*models.Task, error)
	Create(ctx context.Context, callerID, projectID uuid.UUID, req TaskCreate) (*models.Task, error)
	Update(ctx context.Context, callerID, taskID uuid.UUID, update models.TaskUpdate) (*models.Task, error)
	UpdateStatus(ctx context.Context, callerID, taskID uuid.UUID, status string) (*models.Task, error)
}

type taskService struct {
	taskRepo  repositories.TaskRepository
	userRepo  repositories.UserRepository
	projects  ProjectService
	tx        database.TxManager
	notifier  realtime.Notifier
	assignees AssignmentNotifier
	logger    *zap.Logger
}

// NewTaskService creates a new task service with dependencies.
func NewTaskService(
	taskRepo repositories.TaskRepository,
	userRepo repositories.UserRepository,
	projects ProjectService,
	tx database.TxManager,
	notifier realtime.Notifier,
	assignees AssignmentNotifier,
	logger *zap.Logger,
) TaskService {
	return &taskService{
		taskRepo:  taskRepo,
		userRepo:  userRepo,
		projects:  projects,
		tx:        tx,
		notifier:  notifier,
		assignees: assignees,
		logger:    logger.Named("tasks"),
	}
}

var _ TaskService = (*taskService)(nil)

func parseStatus(raw string) (models.TaskStatus, error) {
	status, err := models.ParseTaskStatus(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", err.Error(), apperrors.ErrInvalidInput)
	}
	return status, nil
}

func (s *taskService) List(ctx context.Context, callerID, projectID uuid.UUID) ([]*models.Task, error) {
	if _, err := s.projects.RequireMember(ctx, callerID, projectID); err != nil {
		return nil, err
	}
	return s.taskRepo.ListByProject(ctx, projectID)
}

func (s *taskService) Create(ctx context.Context, callerID, projectID uuid.UUID, req TaskCreate) (*models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("task title is required: %w", apperrors.ErrInvalidInput)
	}

	status := models.TaskStatusTodo
	if req.Status != "" {
		var err error
		if status, err = parseStatus(req.Status); err != nil {
			return nil, err
		}
	}

	if _, err := s.projects.RequireMember(ctx, callerID, projectID); err != nil {
		return nil, err
	}

	task := &models.Task{
		ProjectID:   projectID,
		Title:       title,
		Description: req.Description,
		Status:      status,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}

	s.notifier.Notify(projectID, realtime.TaskCreated(task))
	return task, nil
}

// getForCaller loads a task and checks the caller belongs to its project.
func (s *taskService) getForCaller(ctx context.Context, callerID, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.RequireMember(ctx, callerID, task.ProjectID); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) Update(ctx context.Context, callerID, taskID uuid.UUID, update models.TaskUpdate) (*models.Task, error) {
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, fmt.Errorf("task title cannot be empty: %w", apperrors.ErrInvalidInput)
		}
		update.Title = &title
	}
	if update.Status != nil {
		if _, err := parseStatus(string(*update.Status)); err != nil {
			return nil, err
		}
	}

	var (
		task     *models.Task
		assignee *models.User
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		task, err = s.getForCaller(ctx, callerID, taskID)
		if err != nil {
			return err
		}

		if update.Title != nil {
			task.Title = *update.Title
		}
		if update.Description != nil {
			task.Description = update.Description
		}
		if update.Status != nil {
			task.Status = *update.Status
		}

		switch {
		case update.ClearAssignee:
			task.AssigneeID = nil
		case update.AssigneeID != nil && !sameAssignee(task.AssigneeID, *update.AssigneeID):
			assignee, err = s.userRepo.GetByID(ctx, *update.AssigneeID)
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.ErrInvalidAssignee
			}
			if err != nil {
				return err
			}
			id := *update.AssigneeID
			task.AssigneeID = &id
		}

		return s.taskRepo.Update(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(task.ProjectID, realtime.TaskUpdated(task))

	if assignee != nil {
		s.assignees.NotifyAssignment(task.ID, assignee.Email, task.Title)
	}
	return task, nil
}

func sameAssignee(current *uuid.UUID, next uuid.UUID) bool {
	return current != nil && *current == next
}

func (s *taskService) UpdateStatus(ctx context.Context, callerID, taskID uuid.UUID, raw string) (*models.Task, error) {
	status, err := parseStatus(raw)
	if err != nil {
		return nil, err
	}

	if _, err := s.getForCaller(ctx, callerID, taskID); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.UpdateStatus(ctx, taskID, status)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Task status changed",
		zap.String("task_id", task.ID.String()),
		zap.String("status", string(status)))

	s.notifier.Notify(task.ProjectID, realtime.StatusChanged(task))
	return task, nil
}
