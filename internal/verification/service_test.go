package verification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"kabonia/marketplace/marketplace-backend/internal/auth"
	"kabonia/marketplace/marketplace-backend/internal/projects"
	"kabonia/marketplace/marketplace-backend/pkg/apperrors"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, v *Verification) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Verification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Verification), args.Error(1)
}

func (m *MockRepository) GetActiveForProject(ctx context.Context, projectID uuid.UUID) (*Verification, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Verification), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filter VerificationFilter) ([]Verification, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]Verification), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, v *Verification) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

type MockProjectStore struct {
	mock.Mock
}

func (m *MockProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*projects.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*projects.Project), args.Error(1)
}

func (m *MockProjectStore) UpdateStatus(ctx context.Context, id uuid.UUID, status projects.ProjectStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockProjectStore) SetVerifiedCapacity(ctx context.Context, id uuid.UUID, capacity float64) error {
	args := m.Called(ctx, id, capacity)
	return args.Error(0)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func newMocks() (*MockRepository, *MockProjectStore, *MockUserStore, Service) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectStore)
	mockUsers := new(MockUserStore)
	service := NewService(mockRepo, mockProjects, mockUsers, zap.NewNop())
	return mockRepo, mockProjects, mockUsers, service
}

func verifier(id uuid.UUID) *auth.User {
	return &auth.User{ID: id, Role: "verifier"}
}

func TestRequestVerification(t *testing.T) {
	mockRepo, mockProjects, _, service := newMocks()

	ctx := context.Background()
	ownerID := uuid.New()
	project := &projects.Project{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Status:  projects.StatusDraft,
	}

	mockProjects.On("GetByID", ctx, project.ID).Return(project, nil)
	mockRepo.On("GetActiveForProject", ctx, project.ID).Return(nil, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*verification.Verification")).Return(nil)
	mockProjects.On("UpdateStatus", ctx, project.ID, projects.StatusPendingVerification).Return(nil)

	v, err := service.RequestVerification(ctx, project.ID, ownerID, "initial survey complete")

	assert.NoError(t, err)
	assert.Equal(t, StatusPending, v.Status)
	assert.Equal(t, project.ID, v.ProjectID)
	mockRepo.AssertExpectations(t)
	mockProjects.AssertExpectations(t)
}

func TestRequestVerificationAlreadyActive(t *testing.T) {
	mockRepo, mockProjects, _, service := newMocks()

	ctx := context.Background()
	ownerID := uuid.New()
	project := &projects.Project{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Status:  projects.StatusPendingVerification,
	}

	mockProjects.On("GetByID", ctx, project.ID).Return(project, nil)
	mockRepo.On("GetActiveForProject", ctx, project.ID).Return(&Verification{
		ID:     uuid.New(),
		Status: StatusInProgress,
	}, nil)

	_, err := service.RequestVerification(ctx, project.ID, ownerID, "")

	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestApproveGrantsCapacity(t *testing.T) {
	mockRepo, mockProjects, mockUsers, service := newMocks()

	ctx := context.Background()
	reviewerID := uuid.New()
	projectID := uuid.New()
	v := &Verification{
		ID:        uuid.New(),
		ProjectID: projectID,
		Status:    StatusInProgress,
	}

	mockRepo.On("GetByID", ctx, v.ID).Return(v, nil)
	mockUsers.On("GetUserByID", ctx, reviewerID).Return(verifier(reviewerID), nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*verification.Verification")).Return(nil)
	mockProjects.On("SetVerifiedCapacity", ctx, projectID, 5000.0).Return(nil)
	mockProjects.On("UpdateStatus", ctx, projectID, projects.StatusVerified).Return(nil)

	approved, err := service.Approve(ctx, v.ID, reviewerID, 5000, "field audit passed")

	assert.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, 5000.0, *approved.CarbonCaptureVerified)
	assert.NotNil(t, approved.CompletedAt)
	mockProjects.AssertExpectations(t)
}

func TestApproveRequiresVerifierRole(t *testing.T) {
	mockRepo, _, mockUsers, service := newMocks()

	ctx := context.Background()
	reviewerID := uuid.New()
	v := &Verification{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		Status:    StatusPending,
	}

	mockRepo.On("GetByID", ctx, v.ID).Return(v, nil)
	mockUsers.On("GetUserByID", ctx, reviewerID).Return(&auth.User{ID: reviewerID, Role: "user"}, nil)

	_, err := service.Approve(ctx, v.ID, reviewerID, 100, "")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestApproveTerminalVerification(t *testing.T) {
	mockRepo, _, _, service := newMocks()

	ctx := context.Background()
	v := &Verification{
		ID:     uuid.New(),
		Status: StatusApproved,
	}

	mockRepo.On("GetByID", ctx, v.ID).Return(v, nil)

	_, err := service.Approve(ctx, v.ID, uuid.New(), 100, "")

	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestRejectSendsProjectBackToDraft(t *testing.T) {
	mockRepo, mockProjects, mockUsers, service := newMocks()

	ctx := context.Background()
	reviewerID := uuid.New()
	projectID := uuid.New()
	v := &Verification{
		ID:        uuid.New(),
		ProjectID: projectID,
		Status:    StatusInProgress,
	}

	mockRepo.On("GetByID", ctx, v.ID).Return(v, nil)
	mockUsers.On("GetUserByID", ctx, reviewerID).Return(verifier(reviewerID), nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*verification.Verification")).Return(nil)
	mockProjects.On("UpdateStatus", ctx, projectID, projects.StatusDraft).Return(nil)

	rejected, err := service.Reject(ctx, v.ID, reviewerID, "evidence incomplete")

	assert.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)

	// notes are mandatory on rejection
	_, err = service.Reject(ctx, v.ID, reviewerID, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}
