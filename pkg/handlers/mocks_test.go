package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/auth"
	"github.com/peroxia-tech/peroxia-engine/pkg/models"
	"github.com/peroxia-tech/peroxia-engine/pkg/services"
	"github.com/peroxia-tech/peroxia-engine/pkg/testhelpers"
)

// mockUserService is a configurable mock for handler tests.
type mockUserService struct {
	user        *models.User
	loginResult *services.LoginResult
	err         error

	capturedSignup   services.SignupRequest
	capturedUsername string
	capturedPassword string
}

func (m *mockUserService) Signup(ctx context.Context, req services.SignupRequest) (*models.User, error) {
	m.capturedSignup = req
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

func (m *mockUserService) Login(ctx context.Context, username, password string) (*services.LoginResult, error) {
	m.capturedUsername = username
	m.capturedPassword = password
	if m.err != nil {
		return nil, m.err
	}
	return m.loginResult, nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

// mockProjectService is a configurable mock for handler tests.
type mockProjectService struct {
	project  *models.Project
	projects []*models.Project
	detail   *models.ProjectWithMembers
	err      error

	capturedCaller uuid.UUID
	capturedMember uuid.UUID
}

func (m *mockProjectService) Create(ctx context.Context, callerID uuid.UUID, name string, description *string) (*models.Project, error) {
	m.capturedCaller = callerID
	if m.err != nil {
		return nil, m.err
	}
	return m.project, nil
}

func (m *mockProjectService) ListForUser(ctx context.Context, callerID uuid.UUID) ([]*models.Project, error) {
	m.capturedCaller = callerID
	return m.projects, m.err
}

func (m *mockProjectService) Get(ctx context.Context, callerID, projectID uuid.UUID) (*models.ProjectWithMembers, error) {
	m.capturedCaller = callerID
	if m.err != nil {
		return nil, m.err
	}
	return m.detail, nil
}

func (m *mockProjectService) AddMember(ctx context.Context, callerID, projectID, userID uuid.UUID) error {
	m.capturedCaller = callerID
	m.capturedMember = userID
	return m.err
}

func (m *mockProjectService) RequireMember(ctx context.Context, callerID, projectID uuid.UUID) (*models.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.project, nil
}

// mockTaskService is a configurable mock for handler tests.
type mockTaskService struct {
	task  *models.Task
	tasks []*models.Task
	err   error

	capturedCreate services.TaskCreate
	capturedUpdate models.TaskUpdate
	capturedStatus string
}

func (m *mockTaskService) List(ctx context.Context, callerID, projectID uuid.UUID) ([]*models.Task, error) {
	return m.tasks, m.err
}

func (m *mockTaskService) Create(ctx context.Context, callerID, projectID uuid.UUID, req services.TaskCreate) (*models.Task, error) {
	m.capturedCreate = req
	if m.err != nil {
		return nil, m.err
	}
	return m.task, nil
}

func (m *mockTaskService) Update(ctx context.Context, callerID, taskID uuid.UUID, update models.TaskUpdate) (*models.Task, error) {
	m.capturedUpdate = update
	if m.err != nil {
		return nil, m.err
	}
	return m.task, nil
}

func (m *mockTaskService) UpdateStatus(ctx context.Context, callerID, taskID uuid.UUID, status string) (*models.Task, error) {
	m.capturedStatus = status
	if m.err != nil {
		return nil, m.err
	}
	return m.task, nil
}

// passthrough stands in for the database scope middleware.
func passthrough(next http.HandlerFunc) http.HandlerFunc { return next }

// newTestAuthMiddleware verifies tokens signed with testhelpers.TestJWTSecret.
func newTestAuthMiddleware(t *testing.T) *auth.Middleware {
	t.Helper()
	verifier, err := auth.NewVerifier(context.Background(), &auth.VerifierConfig{Secret: testhelpers.TestJWTSecret})
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}
	t.Cleanup(verifier.Close)
	return auth.NewMiddleware(auth.NewAuthService(verifier, zap.NewNop()), zap.NewNop())
}

// bearer returns an Authorization header value for userID.
func bearer(userID uuid.UUID) string {
	return "Bearer " + testhelpers.GenerateTestJWT(testhelpers.TestJWTSecret, userID.String(), "tester", time.Time{})
}
