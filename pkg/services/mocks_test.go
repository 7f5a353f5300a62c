package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peroxia-tech/peroxia-engine/pkg/apperrors"
	"github.com/peroxia-tech/peroxia-engine/pkg/models"
	"github.com/peroxia-tech/peroxia-engine/pkg/realtime"
	"github.com/peroxia-tech/peroxia-engine/pkg/repositories"
)

// mockUserRepository is an in-memory UserRepository.
type mockUserRepository struct {
	users     map[uuid.UUID]*models.User
	createErr error
	getErr    error
}

func newMockUserRepository(users ...*models.User) *mockUserRepository {
	m := &mockUserRepository{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Username == user.Username {
			return repositories.ErrUsernameTaken
		}
		if u.Email == user.Email {
			return repositories.ErrEmailTaken
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// mockProjectRepository is an in-memory ProjectRepository.
type mockProjectRepository struct {
	projects     map[uuid.UUID]*models.Project
	members      map[uuid.UUID][]uuid.UUID
	users        *mockUserRepository
	addMemberErr error
}

func newMockProjectRepository(users *mockUserRepository) *mockProjectRepository {
	return &mockProjectRepository{
		projects: make(map[uuid.UUID]*models.Project),
		members:  make(map[uuid.UUID][]uuid.UUID),
		users:    users,
	}
}

func (m *mockProjectRepository) Create(ctx context.Context, project *models.Project) error {
	project.ID = uuid.New()
	project.CreatedAt = time.Now()
	project.UpdatedAt = project.CreatedAt
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepository) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	if p, ok := m.projects[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockProjectRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	var out []*models.Project
	for pid, ids := range m.members {
		for _, id := range ids {
			if id == userID {
				out = append(out, m.projects[pid])
			}
		}
	}
	return out, nil
}

func (m *mockProjectRepository) AddMember(ctx context.Context, projectID, userID uuid.UUID) error {
	if m.addMemberErr != nil {
		return m.addMemberErr
	}
	if _, ok := m.projects[projectID]; !ok {
		return apperrors.ErrNotFound
	}
	for _, id := range m.members[projectID] {
		if id == userID {
			return apperrors.ErrAlreadyMember
		}
	}
	m.members[projectID] = append(m.members[projectID], userID)
	return nil
}

func (m *mockProjectRepository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]*models.User, error) {
	var out []*models.User
	for _, id := range m.members[projectID] {
		if u, ok := m.users.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockProjectRepository) IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	for _, id := range m.members[projectID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockProjectRepository) IsMemberOrOwner(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	if p, ok := m.projects[projectID]; ok && p.OwnerID == userID {
		return true, nil
	}
	return m.IsMember(ctx, projectID, userID)
}

// mockTaskRepository is an in-memory TaskRepository.
type mockTaskRepository struct {
	tasks     map[uuid.UUID]*models.Task
	updateErr error
}

func newMockTaskRepository() *mockTaskRepository {
	return &mockTaskRepository{tasks: make(map[uuid.UUID]*models.Task)}
}

func (m *mockTaskRepository) Create(ctx context.Context, task *models.Task) error {
	task.ID = uuid.New()
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *mockTaskRepository) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	if t, ok := m.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockTaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Task, error) {
	var out []*models.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTaskRepository) Update(ctx context.Context, task *models.Task) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.tasks[task.ID]; !ok {
		return apperrors.ErrNotFound
	}
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *mockTaskRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) (*models.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	t.Status = status
	cp := *t
	return &cp, nil
}

// fakeTx runs fn directly and records whether the unit of work committed.
type fakeTx struct {
	commits   int
	rollbacks int
}

func (f *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

// recordingNotifier captures envelopes passed to Notify.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notified
}

type notified struct {
	projectID uuid.UUID
	env       realtime.Envelope
}

func (n *recordingNotifier) Notify(projectID uuid.UUID, env realtime.Envelope) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notified{projectID: projectID, env: env})
}

func (n *recordingNotifier) kinds() []realtime.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]realtime.EventKind, len(n.events))
	for i, e := range n.events {
		out[i] = e.env.Event
	}
	return out
}

// recordingAssignments captures assignment notifications.
type recordingAssignments struct {
	mu     sync.Mutex
	emails []string
}

func (r *recordingAssignments) NotifyAssignment(taskID uuid.UUID, email, taskTitle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, email)
}

// recordingMailer captures sent notifications.
type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *recordingMailer) SendAssignmentNotification(ctx context.Context, to, taskTitle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+":"+taskTitle)
	return nil
}

func newTestUser(username string) *models.User {
	return &models.User{
		ID:       uuid.New(),
		Username: username,
		Email:    username + "@example.com",
	}
}
