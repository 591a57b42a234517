package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Balance(ctx context.Context, tokenID string, userID uuid.UUID) (float64, error)
	UserHoldings(ctx context.Context, userID uuid.UUID) ([]Holding, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// Balance derives the user's holdings from the confirmed transaction log:
// incoming amounts minus outgoing amounts. Pending and failed transactions
// never count.
func (r *postgresRepository) Balance(ctx context.Context, tokenID string, userID uuid.UUID) (float64, error) {
	var balance float64
	err := r.db.GetContext(ctx, &balance, `
		SELECT COALESCE(SUM(CASE WHEN receiver_id = $2 THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE token_id = $1
		  AND status = 'confirmed'
		  AND (receiver_id = $2 OR sender_id = $2)`,
		tokenID, userID)
	return balance, err
}

func (r *postgresRepository) UserHoldings(ctx context.Context, userID uuid.UUID) ([]Holding, error) {
	var holdings []Holding
	err := r.db.SelectContext(ctx, &holdings, `
		SELECT tx.token_id,
		       tk.token_name,
		       tk.token_symbol,
		       tk.project_id,
		       SUM(CASE WHEN tx.receiver_id = $1 THEN tx.amount ELSE -tx.amount END) AS balance
		FROM transactions tx
		JOIN tokens tk ON tk.token_id = tx.token_id
		WHERE tx.status = 'confirmed'
		  AND (tx.receiver_id = $1 OR tx.sender_id = $1)
		GROUP BY tx.token_id, tk.token_name, tk.token_symbol, tk.project_id
		HAVING SUM(CASE WHEN tx.receiver_id = $1 THEN tx.amount ELSE -tx.amount END) > 0
		ORDER BY tk.token_symbol`,
		userID)
	return holdings, err
}
