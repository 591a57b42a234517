package valuation

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	PricePoints(ctx context.Context, tokenID string, days int) ([]PricePoint, error)
	RecentPrices(ctx context.Context, tokenID string, days int) ([]float64, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// PricePoints returns daily average trade prices from the confirmed
// transaction log, oldest first. An empty tokenID aggregates the whole market.
func (r *postgresRepository) PricePoints(ctx context.Context, tokenID string, days int) ([]PricePoint, error) {
	var points []PricePoint
	query := `
		SELECT date_trunc('day', created_at) AS day, AVG(price) AS price
		FROM transactions
		WHERE status = 'confirmed'
		  AND type IN ('buy', 'sell')
		  AND price IS NOT NULL
		  AND created_at > now() - ($1 * interval '1 day')`
	args := []interface{}{days}

	if tokenID != "" {
		query += fmt.Sprintf(" AND token_id = $%d", len(args)+1)
		args = append(args, tokenID)
	}
	query += " GROUP BY 1 ORDER BY 1"

	err := r.db.SelectContext(ctx, &points, query, args...)
	return points, err
}

func (r *postgresRepository) RecentPrices(ctx context.Context, tokenID string, days int) ([]float64, error) {
	var prices []float64
	query := `
		SELECT price
		FROM transactions
		WHERE status = 'confirmed'
		  AND type IN ('buy', 'sell')
		  AND price IS NOT NULL
		  AND created_at > now() - ($1 * interval '1 day')`
	args := []interface{}{days}

	if tokenID != "" {
		query += fmt.Sprintf(" AND token_id = $%d", len(args)+1)
		args = append(args, tokenID)
	}
	query += " ORDER BY created_at DESC"

	err := r.db.SelectContext(ctx, &prices, query, args...)
	return prices, err
}
