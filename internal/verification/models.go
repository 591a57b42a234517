package verification

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

// Terminal reports whether the status allows no further review
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Verification is a review request that decides a project's credit capacity
type Verification struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	ProjectID             uuid.UUID  `db:"project_id" json:"project_id"`
	RequesterID           uuid.UUID  `db:"requester_id" json:"requester_id"`
	ReviewerID            *uuid.UUID `db:"reviewer_id" json:"reviewer_id,omitempty"`
	Status                Status     `db:"status" json:"status"`
	Notes                 string     `db:"notes" json:"notes"`
	CarbonCaptureVerified *float64   `db:"carbon_capture_verified" json:"carbon_capture_verified,omitempty"`
	CompletedAt           *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// VerificationFilter narrows verification queries
type VerificationFilter struct {
	ProjectID *uuid.UUID
	Status    *Status
	Limit     int
	Offset    int
}
