package projects

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, project *Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	List(ctx context.Context, filter ProjectFilter) ([]Project, error)
	Update(ctx context.Context, project *Project) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status ProjectStatus) error
	SetVerifiedCapacity(ctx context.Context, id uuid.UUID, capacity float64) error
	SetToken(ctx context.Context, id uuid.UUID, tokenID string) error

	// DecrementCredits atomically reduces carbon_credits by amount, only if
	// enough capacity remains. Returns false when the conditional update
	// matched no row (capacity exhausted or project missing).
	DecrementCredits(ctx context.Context, id uuid.UUID, amount float64) (bool, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, project *Project) error {
	query := `
		INSERT INTO projects (
			id, name, description, location, area, project_type,
			estimated_carbon_capture, actual_carbon_capture, carbon_credits,
			status, owner_id, token_id, start_date, end_date
		) VALUES (
			:id, :name, :description, :location, :area, :project_type,
			:estimated_carbon_capture, :actual_carbon_capture, :carbon_credits,
			:status, :owner_id, :token_id, :start_date, :end_date
		)`
	_, err := r.db.NamedExecContext(ctx, query, project)
	return err
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	var project Project
	err := r.db.GetContext(ctx, &project, "SELECT * FROM projects WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &project, err
}

func (r *postgresRepository) List(ctx context.Context, filter ProjectFilter) ([]Project, error) {
	var projects []Project
	query := "SELECT * FROM projects WHERE 1=1"
	var args []interface{}
	argCount := 1

	if filter.OwnerID != nil {
		query += fmt.Sprintf(" AND owner_id = $%d", argCount)
		args = append(args, *filter.OwnerID)
		argCount++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filter.Status)
		argCount++
	}
	if filter.Type != nil {
		query += fmt.Sprintf(" AND project_type = $%d", argCount)
		args = append(args, *filter.Type)
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

	err := r.db.SelectContext(ctx, &projects, query, args...)
	return projects, err
}

func (r *postgresRepository) Update(ctx context.Context, project *Project) error {
	query := `
		UPDATE projects SET
			name = :name,
			description = :description,
			location = :location,
			area = :area,
			project_type = :project_type,
			estimated_carbon_capture = :estimated_carbon_capture,
			actual_carbon_capture = :actual_carbon_capture,
			start_date = :start_date,
			end_date = :end_date,
			updated_at = now()
		WHERE id = :id`
	_, err := r.db.NamedExecContext(ctx, query, project)
	return err
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status ProjectStatus) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE projects SET status = $1, updated_at = now() WHERE id = $2", status, id)
	return err
}

func (r *postgresRepository) SetVerifiedCapacity(ctx context.Context, id uuid.UUID, capacity float64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE projects SET carbon_credits = $1, actual_carbon_capture = $1, updated_at = now() WHERE id = $2", capacity, id)
	return err
}

func (r *postgresRepository) SetToken(ctx context.Context, id uuid.UUID, tokenID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE projects SET token_id = $1, updated_at = now() WHERE id = $2", tokenID, id)
	return err
}

func (r *postgresRepository) DecrementCredits(ctx context.Context, id uuid.UUID, amount float64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET carbon_credits = carbon_credits - $1, updated_at = now()
		WHERE id = $2 AND carbon_credits >= $1`,
		amount, id)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
