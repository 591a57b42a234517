package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kabonia/marketplace/marketplace-backend/internal/auth"
	"kabonia/marketplace/marketplace-backend/internal/projects"
	"kabonia/marketplace/marketplace-backend/pkg/apperrors"
)

const roleVerifier = "verifier"

// ProjectStore is the slice of the project repository reviews depend on
type ProjectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*projects.Project, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status projects.ProjectStatus) error
	SetVerifiedCapacity(ctx context.Context, id uuid.UUID, capacity float64) error
}

// UserStore resolves reviewer roles
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error)
}

type Service interface {
	RequestVerification(ctx context.Context, projectID, requesterID uuid.UUID, notes string) (*Verification, error)
	StartReview(ctx context.Context, verificationID, reviewerID uuid.UUID) (*Verification, error)
	Approve(ctx context.Context, verificationID, reviewerID uuid.UUID, capacity float64, notes string) (*Verification, error)
	Reject(ctx context.Context, verificationID, reviewerID uuid.UUID, notes string) (*Verification, error)
	GetVerification(ctx context.Context, id uuid.UUID) (*Verification, error)
	ListVerifications(ctx context.Context, filter VerificationFilter) ([]Verification, error)
}

type verificationService struct {
	repo        Repository
	projectRepo ProjectStore
	users       UserStore
	logger      *zap.Logger
}

func NewService(repo Repository, projectRepo ProjectStore, users UserStore, logger *zap.Logger) Service {
	return &verificationService{
		repo:        repo,
		projectRepo: projectRepo,
		users:       users,
		logger:      logger,
	}
}

// RequestVerification opens a review for a project. A project carries at most
// one open verification at a time.
func (s *verificationService) RequestVerification(ctx context.Context, projectID, requesterID uuid.UUID, notes string) (*Verification, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperrors.NotFound("project not found: %s", projectID)
	}
	if project.OwnerID != requesterID {
		return nil, apperrors.InvalidRequest("only the project owner can request verification")
	}
	if project.Status != projects.StatusDraft && project.Status != projects.StatusPendingVerification {
		return nil, apperrors.InvalidState("project must be in draft or pending verification, current status: %s", project.Status)
	}

	active, err := s.repo.GetActiveForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperrors.InvalidState("project already has an active verification")
	}

	v := &Verification{
		ID:          uuid.New(),
		ProjectID:   projectID,
		RequesterID: requesterID,
		Status:      StatusPending,
		Notes:       notes,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}

	if project.Status == projects.StatusDraft {
		if err := s.projectRepo.UpdateStatus(ctx, projectID, projects.StatusPendingVerification); err != nil {
			return nil, err
		}
	}

	s.logger.Info("verification requested",
		zap.String("verification_id", v.ID.String()),
		zap.String("project_id", projectID.String()))

	return v, nil
}

func (s *verificationService) StartReview(ctx context.Context, verificationID, reviewerID uuid.UUID) (*Verification, error) {
	v, err := s.getOpenVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if err := s.requireVerifier(ctx, reviewerID); err != nil {
		return nil, err
	}
	if v.Status != StatusPending {
		return nil, apperrors.InvalidState("verification must be pending to start review, current status: %s", v.Status)
	}

	v.Status = StatusInProgress
	v.ReviewerID = &reviewerID
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("verification review started",
		zap.String("verification_id", verificationID.String()),
		zap.String("reviewer_id", reviewerID.String()))

	return v, nil
}

// Approve marks the verification approved and grants the project its verified
// credit capacity.
func (s *verificationService) Approve(ctx context.Context, verificationID, reviewerID uuid.UUID, capacity float64, notes string) (*Verification, error) {
	if capacity <= 0 {
		return nil, apperrors.InvalidRequest("verified carbon capture must be positive")
	}

	v, err := s.getOpenVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if err := s.requireVerifier(ctx, reviewerID); err != nil {
		return nil, err
	}

	now := time.Now()
	v.Status = StatusApproved
	v.ReviewerID = &reviewerID
	v.CarbonCaptureVerified = &capacity
	v.CompletedAt = &now
	if notes != "" {
		v.Notes = notes
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}

	if err := s.projectRepo.SetVerifiedCapacity(ctx, v.ProjectID, capacity); err != nil {
		return nil, err
	}
	if err := s.projectRepo.UpdateStatus(ctx, v.ProjectID, projects.StatusVerified); err != nil {
		return nil, err
	}

	s.logger.Info("verification approved",
		zap.String("verification_id", verificationID.String()),
		zap.String("project_id", v.ProjectID.String()),
		zap.Float64("capacity", capacity))

	return v, nil
}

// Reject closes the verification and sends the project back to draft.
func (s *verificationService) Reject(ctx context.Context, verificationID, reviewerID uuid.UUID, notes string) (*Verification, error) {
	if notes == "" {
		return nil, apperrors.InvalidRequest("notes are required when rejecting a verification")
	}

	v, err := s.getOpenVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if err := s.requireVerifier(ctx, reviewerID); err != nil {
		return nil, err
	}

	now := time.Now()
	v.Status = StatusRejected
	v.ReviewerID = &reviewerID
	v.Notes = notes
	v.CompletedAt = &now
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}

	if err := s.projectRepo.UpdateStatus(ctx, v.ProjectID, projects.StatusDraft); err != nil {
		return nil, err
	}

	s.logger.Info("verification rejected",
		zap.String("verification_id", verificationID.String()),
		zap.String("project_id", v.ProjectID.String()))

	return v, nil
}

func (s *verificationService) GetVerification(ctx context.Context, id uuid.UUID) (*Verification, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, apperrors.NotFound("verification not found: %s", id)
	}
	return v, nil
}

func (s *verificationService) ListVerifications(ctx context.Context, filter VerificationFilter) ([]Verification, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

func (s *verificationService) getOpenVerification(ctx context.Context, id uuid.UUID) (*Verification, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, apperrors.NotFound("verification not found: %s", id)
	}
	if v.Status.Terminal() {
		return nil, apperrors.InvalidState("verification already %s", v.Status)
	}
	return v, nil
}

func (s *verificationService) requireVerifier(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.NotFound("user not found: %s", userID)
	}
	if user.Role != roleVerifier {
		return apperrors.Unauthorized("only verifiers can review verifications")
	}
	return nil
}
