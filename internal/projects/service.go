package projects

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kabonia/marketplace/marketplace-backend/pkg/apperrors"
	"kabonia/marketplace/marketplace-backend/pkg/workflows"
)

type CreateProjectRequest struct {
	Name                   string      `json:"name"`
	Description            string      `json:"description"`
	Location               string      `json:"location"`
	Area                   float64     `json:"area"`
	ProjectType            ProjectType `json:"project_type"`
	EstimatedCarbonCapture float64     `json:"estimated_carbon_capture"`
	StartDate              *time.Time  `json:"start_date"`
	EndDate                *time.Time  `json:"end_date"`
}

type UpdateProjectRequest struct {
	Name                   *string    `json:"name"`
	Description            *string    `json:"description"`
	Location               *string    `json:"location"`
	Area                   *float64   `json:"area"`
	EstimatedCarbonCapture *float64   `json:"estimated_carbon_capture"`
	ActualCarbonCapture    *float64   `json:"actual_carbon_capture"`
	StartDate              *time.Time `json:"start_date"`
	EndDate                *time.Time `json:"end_date"`
}

type Service interface {
	CreateProject(ctx context.Context, req CreateProjectRequest, ownerID uuid.UUID) (*Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error)
	GetUserProjects(ctx context.Context, ownerID uuid.UUID) ([]Project, error)
	UpdateProject(ctx context.Context, id uuid.UUID, req UpdateProjectRequest, userID uuid.UUID) (*Project, error)
	SubmitForVerification(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*Project, error)
	CompleteProject(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*Project, error)
}

type projectService struct {
	repo         Repository
	stateMachine *workflows.StateMachine
	logger       *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) Service {
	return &projectService{
		repo:         repo,
		stateMachine: workflows.NewStateMachine(),
		logger:       logger,
	}
}

func (s *projectService) CreateProject(ctx context.Context, req CreateProjectRequest, ownerID uuid.UUID) (*Project, error) {
	if req.Name == "" {
		return nil, apperrors.InvalidRequest("name is required")
	}
	if !ValidProjectType(req.ProjectType) {
		return nil, apperrors.InvalidRequest("unknown project type: %s", req.ProjectType)
	}
	if req.Area < 0 || req.EstimatedCarbonCapture < 0 {
		return nil, apperrors.InvalidRequest("area and estimated carbon capture must be non-negative")
	}
	if ownerID == uuid.Nil {
		return nil, apperrors.InvalidRequest("owner is required")
	}

	project := &Project{
		ID:                     uuid.New(),
		Name:                   req.Name,
		Description:            req.Description,
		Location:               req.Location,
		Area:                   req.Area,
		ProjectType:            req.ProjectType,
		EstimatedCarbonCapture: req.EstimatedCarbonCapture,
		Status:                 StatusDraft,
		OwnerID:                ownerID,
		StartDate:              req.StartDate,
		EndDate:                req.EndDate,
		CreatedAt:              time.Now(),
		UpdatedAt:              time.Now(),
	}

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		zap.String("project_id", project.ID.String()),
		zap.String("type", string(project.ProjectType)))

	return project, nil
}

func (s *projectService) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperrors.NotFound("project %s not found", id)
	}
	return project, nil
}

func (s *projectService) ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error) {
	return s.repo.List(ctx, filter)
}

func (s *projectService) GetUserProjects(ctx context.Context, ownerID uuid.UUID) ([]Project, error) {
	return s.repo.List(ctx, ProjectFilter{OwnerID: &ownerID})
}

func (s *projectService) UpdateProject(ctx context.Context, id uuid.UUID, req UpdateProjectRequest, userID uuid.UUID) (*Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != userID {
		return nil, apperrors.Unauthorized("only the owner can update project %s", id)
	}
	if project.Status != StatusDraft {
		return nil, apperrors.InvalidState("project %s can only be edited while in draft", id)
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Location != nil {
		project.Location = *req.Location
	}
	if req.Area != nil {
		project.Area = *req.Area
	}
	if req.EstimatedCarbonCapture != nil {
		project.EstimatedCarbonCapture = *req.EstimatedCarbonCapture
	}
	if req.ActualCarbonCapture != nil {
		project.ActualCarbonCapture = *req.ActualCarbonCapture
	}
	if req.StartDate != nil {
		project.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		project.EndDate = req.EndDate
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *projectService) SubmitForVerification(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*Project, error) {
	return s.transition(ctx, id, userID, StatusPendingVerification)
}

func (s *projectService) CompleteProject(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*Project, error) {
	return s.transition(ctx, id, userID, StatusCompleted)
}

func (s *projectService) transition(ctx context.Context, id uuid.UUID, userID uuid.UUID, to ProjectStatus) (*Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != userID {
		return nil, apperrors.Unauthorized("only the owner can change the status of project %s", id)
	}
	if !s.stateMachine.CanTransition(string(project.Status), string(to)) {
		return nil, apperrors.InvalidState("cannot move project %s from %s to %s", id, project.Status, to)
	}

	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	project.Status = to

	s.logger.Info("project status changed",
		zap.String("project_id", id.String()),
		zap.String("status", string(to)))

	return project, nil
}
