package verification

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, v *Verification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Verification, error)
	GetActiveForProject(ctx context.Context, projectID uuid.UUID) (*Verification, error)
	List(ctx context.Context, filter VerificationFilter) ([]Verification, error)
	Update(ctx context.Context, v *Verification) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, v *Verification) error {
	query := `
		INSERT INTO verifications (
			id, project_id, requester_id, reviewer_id, status, notes,
			carbon_capture_verified, completed_at
		) VALUES (
			:id, :project_id, :requester_id, :reviewer_id, :status, :notes,
			:carbon_capture_verified, :completed_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, v)
	return err
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Verification, error) {
	var v Verification
	err := r.db.GetContext(ctx, &v, "SELECT * FROM verifications WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &v, err
}

func (r *postgresRepository) GetActiveForProject(ctx context.Context, projectID uuid.UUID) (*Verification, error) {
	var v Verification
	err := r.db.GetContext(ctx, &v, `
		SELECT * FROM verifications
		WHERE project_id = $1 AND status IN ('pending', 'in_progress')
		ORDER BY created_at DESC
		LIMIT 1`, projectID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &v, err
}

func (r *postgresRepository) List(ctx context.Context, filter VerificationFilter) ([]Verification, error) {
	var list []Verification
	query := "SELECT * FROM verifications WHERE 1=1"
	var args []interface{}
	argCount := 1

	if filter.ProjectID != nil {
		query += fmt.Sprintf(" AND project_id = $%d", argCount)
		args = append(args, *filter.ProjectID)
		argCount++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filter.Status)
		argCount++
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	err := r.db.SelectContext(ctx, &list, query, args...)
	return list, err
}

func (r *postgresRepository) Update(ctx context.Context, v *Verification) error {
	query := `
		UPDATE verifications SET
			reviewer_id = :reviewer_id,
			status = :status,
			notes = :notes,
			carbon_capture_verified = :carbon_capture_verified,
			completed_at = :completed_at,
			updated_at = now()
		WHERE id = :id`
	_, err := r.db.NamedExecContext(ctx, query, v)
	return err
}
