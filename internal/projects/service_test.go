package projects

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, project *Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Project), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filter ProjectFilter) ([]Project, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]Project), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, project *Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status ProjectStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockRepository) SetVerifiedCapacity(ctx context.Context, id uuid.UUID, capacity float64) error {
	args := m.Called(ctx, id, capacity)
	return args.Error(0)
}

func (m *MockRepository) SetToken(ctx context.Context, id uuid.UUID, tokenID string) error {
	args := m.Called(ctx, id, tokenID)
	return args.Error(0)
}

func (m *MockRepository) DecrementCredits(ctx context.Context, id uuid.UUID, amount float64) (bool, error) {
	args := m.Called(ctx, id, amount)
	return args.Bool(0), args.Error(1)
}

func TestCreateProject(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	ownerID := uuid.New()

	mockRepo.On("Create", ctx, mock.AnythingOfType("*projects.Project")).Return(nil)

	project, err := service.CreateProject(ctx, CreateProjectRequest{
		Name:                   "Rio Verde Reforestation",
		Description:            "Replanting degraded pasture",
		Location:               "Brazil",
		Area:                   1200,
		ProjectType:            TypeReforestation,
		EstimatedCarbonCapture: 5000,
	}, ownerID)

	assert.NoError(t, err)
	assert.Equal(t, StatusDraft, project.Status)
	assert.Equal(t, ownerID, project.OwnerID)
	assert.Zero(t, project.CarbonCredits)

	mockRepo.AssertExpectations(t)
}

func TestCreateProjectValidation(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())
	ctx := context.Background()

	_, err := service.CreateProject(ctx, CreateProjectRequest{ProjectType: TypeSolar}, uuid.New())
	assert.Error(t, err, "missing name")

	_, err = service.CreateProject(ctx, CreateProjectRequest{Name: "X", ProjectType: "volcano"}, uuid.New())
	assert.Error(t, err, "unknown type")

	_, err = service.CreateProject(ctx, CreateProjectRequest{Name: "X", ProjectType: TypeWind, Area: -1}, uuid.New())
	assert.Error(t, err, "negative area")
}

func TestSubmitForVerification(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	ownerID := uuid.New()
	projectID := uuid.New()

	mockRepo.On("GetByID", ctx, projectID).Return(&Project{
		ID:      projectID,
		OwnerID: ownerID,
		Status:  StatusDraft,
	}, nil)
	mockRepo.On("UpdateStatus", ctx, projectID, StatusPendingVerification).Return(nil)

	project, err := service.SubmitForVerification(ctx, projectID, ownerID)

	assert.NoError(t, err)
	assert.Equal(t, StatusPendingVerification, project.Status)
	mockRepo.AssertExpectations(t)
}

func TestSubmitForVerificationWrongState(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	ownerID := uuid.New()
	projectID := uuid.New()

	mockRepo.On("GetByID", ctx, projectID).Return(&Project{
		ID:      projectID,
		OwnerID: ownerID,
		Status:  StatusActive,
	}, nil)

	_, err := service.SubmitForVerification(ctx, projectID, ownerID)
	assert.Error(t, err)
	mockRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProjectOwnershipAndState(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	ownerID := uuid.New()
	projectID := uuid.New()

	mockRepo.On("GetByID", ctx, projectID).Return(&Project{
		ID:      projectID,
		OwnerID: ownerID,
		Status:  StatusActive,
	}, nil)

	name := "Renamed"
	_, err := service.UpdateProject(ctx, projectID, UpdateProjectRequest{Name: &name}, ownerID)
	assert.Error(t, err, "non-draft projects are immutable")

	_, err = service.UpdateProject(ctx, projectID, UpdateProjectRequest{Name: &name}, uuid.New())
	assert.Error(t, err, "non-owner cannot edit")
}
