package tokens

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateToken(ctx context.Context, token *Token) error
	GetByTokenID(ctx context.Context, tokenID string) (*Token, error)
	GetByProjectID(ctx context.Context, projectID uuid.UUID) (*Token, error)
	ListTokens(ctx context.Context, filter TokenFilter) ([]Token, error)
	AdjustSupplyForMint(ctx context.Context, projectID uuid.UUID, tokenID string, amount float64) (bool, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateToken(ctx context.Context, token *Token) error {
	query := `
		INSERT INTO tokens (
			id, token_id, project_id, token_name, token_symbol, decimals,
			initial_supply, current_supply, max_supply, creator_id
		) VALUES (
			:id, :token_id, :project_id, :token_name, :token_symbol, :decimals,
			:initial_supply, :current_supply, :max_supply, :creator_id
		)`
	_, err := r.db.NamedExecContext(ctx, query, token)
	return err
}

func (r *postgresRepository) GetByTokenID(ctx context.Context, tokenID string) (*Token, error) {
	var token Token
	err := r.db.GetContext(ctx, &token, "SELECT * FROM tokens WHERE token_id = $1", tokenID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &token, err
}

func (r *postgresRepository) GetByProjectID(ctx context.Context, projectID uuid.UUID) (*Token, error) {
	var token Token
	err := r.db.GetContext(ctx, &token, "SELECT * FROM tokens WHERE project_id = $1", projectID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &token, err
}

func (r *postgresRepository) ListTokens(ctx context.Context, filter TokenFilter) ([]Token, error) {
	var tokens []Token
	query := "SELECT * FROM tokens WHERE 1=1"
	var args []interface{}
	argCount := 1

	if filter.ProjectID != nil {
		query += fmt.Sprintf(" AND project_id = $%d", argCount)
		args = append(args, *filter.ProjectID)
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

	err := r.db.SelectContext(ctx, &tokens, query, args...)
	return tokens, err
}

// AdjustSupplyForMint moves minted amount from the project's remaining credit
// capacity into the token supply inside a single database transaction. Both
// updates are guarded: the project must still hold enough credits and the
// token must stay under its max supply. Returns false when either guard
// rejects the mint, leaving the database untouched.
func (r *postgresRepository) AdjustSupplyForMint(ctx context.Context, projectID uuid.UUID, tokenID string, amount float64) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE projects
		SET carbon_credits = carbon_credits - $1, updated_at = now()
		WHERE id = $2 AND carbon_credits >= $1`,
		amount, projectID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows != 1 {
		return false, nil
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE tokens
		SET current_supply = current_supply + $1, last_mint_at = now(), updated_at = now()
		WHERE token_id = $2 AND (max_supply IS NULL OR current_supply + $1 <= max_supply)`,
		amount, tokenID)
	if err != nil {
		return false, err
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows != 1 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
