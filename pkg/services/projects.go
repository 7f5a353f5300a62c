package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/apperrors"
	"github.com/peroxia-tech/peroxia-engine/pkg/database"
	"github.com/peroxia-tech/peroxia-engine/pkg/models"
	"github.com/peroxia-tech/peroxia-engine/pkg/repositories"
)

// ProjectService defines the interface for project and membership operations.
// callerID is always the authenticated user.
type ProjectService interface {
	// Create stores the project and adds the owner as its first member atomically.
	Create(ctx context.Context, callerID uuid.UUID, name string, description *string) (*models.Project, error)
	ListForUser(ctx context.Context, callerID uuid.UUID) ([]*models.Project, error)
	// Get returns apperrors.ErrForbidden if the caller is not a member.
	Get(ctx context.Context, callerID, projectID uuid.UUID) (*models.ProjectWithMembers, error)
	// AddMember is restricted to the project owner.
	AddMember(ctx context.Context, callerID, projectID, userID uuid.UUID) error
	// RequireMember returns apperrors.ErrNotFound for a missing project and
	// apperrors.ErrForbidden when the caller does not belong to it.
	RequireMember(ctx context.Context, callerID, projectID uuid.UUID) (*models.Project, error)
}

type projectService struct {
	projectRepo repositories.ProjectRepository
	userRepo    repositories.UserRepository
	tx          database.TxManager
	logger      *zap.Logger
}

// NewProjectService creates a new project service with dependencies.
func NewProjectService(
	projectRepo repositories.ProjectRepository,
	userRepo repositories.UserRepository,
	tx database.TxManager,
	logger *zap.Logger,
) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		userRepo:    userRepo,
		tx:          tx,
		logger:      logger.Named("projects"),
	}
}

var _ ProjectService = (*projectService)(nil)

func (s *projectService) Create(ctx context.Context, callerID uuid.UUID, name string, description *string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("project name is required: %w", apperrors.ErrInvalidInput)
	}

	project := &models.Project{
		Name:        name,
		Description: description,
		OwnerID:     callerID,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.projectRepo.Create(ctx, project); err != nil {
			return err
		}
		return s.projectRepo.AddMember(ctx, project.ID, callerID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Project created",
		zap.String("project_id", project.ID.String()),
		zap.String("owner_id", callerID.String()))
	return project, nil
}

func (s *projectService) ListForUser(ctx context.Context, callerID uuid.UUID) ([]*models.Project, error) {
	return s.projectRepo.ListForUser(ctx, callerID)
}

func (s *projectService) RequireMember(ctx context.Context, callerID, projectID uuid.UUID) (*models.Project, error) {
	project, err := s.projectRepo.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if project.OwnerID == callerID {
		return project, nil
	}

	member, err := s.projectRepo.IsMember(ctx, projectID, callerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperrors.ErrForbidden
	}
	return project, nil
}

func (s *projectService) Get(ctx context.Context, callerID, projectID uuid.UUID) (*models.ProjectWithMembers, error) {
	project, err := s.RequireMember(ctx, callerID, projectID)
	if err != nil {
		return nil, err
	}

	members, err := s.projectRepo.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &models.ProjectWithMembers{
		Project: *project,
		Members: members,
	}, nil
}

func (s *projectService) AddMember(ctx context.Context, callerID, projectID, userID uuid.UUID) error {
	project, err := s.projectRepo.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if project.OwnerID != callerID {
		return fmt.Errorf("only the project owner can add members: %w", apperrors.ErrForbidden)
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}

	if err := s.projectRepo.AddMember(ctx, projectID, userID); err != nil {
		return err
	}

	s.logger.Info("Project member added",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", userID.String()))
	return nil
}
