package projects

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus is the lifecycle state of a carbon project.
type ProjectStatus string

const (
	StatusDraft               ProjectStatus = "draft"
	StatusPendingVerification ProjectStatus = "pending_verification"
	StatusVerified            ProjectStatus = "verified"
	StatusActive              ProjectStatus = "active"
	StatusCompleted           ProjectStatus = "completed"
)

// ProjectType categorizes the carbon-capture methodology.
type ProjectType string

const (
	TypeReforestation    ProjectType = "reforestation"
	TypeSolar            ProjectType = "solar"
	TypeWind             ProjectType = "wind"
	TypeConservation     ProjectType = "conservation"
	TypeMethaneCapture   ProjectType = "methane_capture"
	TypeEnergyEfficiency ProjectType = "energy_efficiency"
	TypeBiomass          ProjectType = "biomass"
)

// ValidProjectType reports whether t is a known project type.
func ValidProjectType(t ProjectType) bool {
	switch t {
	case TypeReforestation, TypeSolar, TypeWind, TypeConservation,
		TypeMethaneCapture, TypeEnergyEfficiency, TypeBiomass:
		return true
	}
	return false
}

// Project represents a carbon project
type Project struct {
	ID                     uuid.UUID     `db:"id" json:"id"`
	Name                   string        `db:"name" json:"name"`
	Description            string        `db:"description" json:"description"`
	Location               string        `db:"location" json:"location"`
	Area                   float64       `db:"area" json:"area"` // hectares
	ProjectType            ProjectType   `db:"project_type" json:"project_type"`
	EstimatedCarbonCapture float64       `db:"estimated_carbon_capture" json:"estimated_carbon_capture"`
	ActualCarbonCapture    float64       `db:"actual_carbon_capture" json:"actual_carbon_capture"`
	CarbonCredits          float64       `db:"carbon_credits" json:"carbon_credits"` // remaining mintable capacity
	Status                 ProjectStatus `db:"status" json:"status"`
	OwnerID                uuid.UUID     `db:"owner_id" json:"owner_id"`
	TokenID                *string       `db:"token_id" json:"token_id,omitempty"`
	StartDate              *time.Time    `db:"start_date" json:"start_date,omitempty"`
	EndDate                *time.Time    `db:"end_date" json:"end_date,omitempty"`
	CreatedAt              time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time     `db:"updated_at" json:"updated_at"`
}

// ProjectFilter narrows project list queries.
type ProjectFilter struct {
	OwnerID *uuid.UUID
	Status  *ProjectStatus
	Type    *ProjectType
	Limit   int
	Offset  int
}
