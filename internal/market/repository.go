package market

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TokenRef is the listing-side view of a token and its project state
type TokenRef struct {
	TokenID       string    `db:"token_id"`
	ProjectID     uuid.UUID `db:"project_id"`
	ProjectStatus string    `db:"project_status"`
}

type Repository interface {
	CreateListing(ctx context.Context, listing *Listing) error
	GetListingByID(ctx context.Context, id uuid.UUID) (*Listing, error)
	ListListings(ctx context.Context, filter ListingFilter) ([]Listing, error)
	DecrementRemaining(ctx context.Context, id uuid.UUID, amount float64) (bool, error)
	DeactivateListing(ctx context.Context, id uuid.UUID) error
	ExpireListings(ctx context.Context, now time.Time) (int64, error)

	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ConfirmTransaction(ctx context.Context, id uuid.UUID, consensusAt time.Time) (bool, error)
	FailTransaction(ctx context.Context, id uuid.UUID) (bool, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)

	GetTokenRef(ctx context.Context, tokenID string) (*TokenRef, error)
	CountActiveListings(ctx context.Context) (int, error)
	RecentTrades(ctx context.Context, limit int) ([]Transaction, error)
	TradeTotals(ctx context.Context) (float64, float64, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateListing(ctx context.Context, listing *Listing) error {
	query := `
		INSERT INTO listings (
			id, token_id, project_id, seller_id, amount, remaining, price, expiration_date, active
		) VALUES (
			:id, :token_id, :project_id, :seller_id, :amount, :remaining, :price, :expiration_date, :active
		)`
	_, err := r.db.NamedExecContext(ctx, query, listing)
	return err
}

func (r *postgresRepository) GetListingByID(ctx context.Context, id uuid.UUID) (*Listing, error) {
	var listing Listing
	err := r.db.GetContext(ctx, &listing, "SELECT * FROM listings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &listing, err
}

func (r *postgresRepository) ListListings(ctx context.Context, filter ListingFilter) ([]Listing, error) {
	var listings []Listing
	query := "SELECT * FROM listings WHERE active AND remaining > 0 AND expiration_date > now()"
	var args []interface{}
	argCount := 1

	if filter.TokenID != "" {
		query += fmt.Sprintf(" AND token_id = $%d", argCount)
		args = append(args, filter.TokenID)
		argCount++
	}
	if filter.SellerID != nil {
		query += fmt.Sprintf(" AND seller_id = $%d", argCount)
		args = append(args, *filter.SellerID)
		argCount++
	}
	if filter.MinPrice != nil {
		query += fmt.Sprintf(" AND price >= $%d", argCount)
		args = append(args, *filter.MinPrice)
		argCount++
	}
	if filter.MaxPrice != nil {
		query += fmt.Sprintf(" AND price <= $%d", argCount)
		args = append(args, *filter.MaxPrice)
		argCount++
	}

	query += " ORDER BY price ASC, created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	err := r.db.SelectContext(ctx, &listings, query, args...)
	return listings, err
}

// DecrementRemaining atomically takes amount from a listing. The guard in the
// WHERE clause makes concurrent oversells lose the race instead of driving
// remaining negative; the listing deactivates in the same statement when it
// sells out. Returns false when the guard rejected the update.
func (r *postgresRepository) DecrementRemaining(ctx context.Context, id uuid.UUID, amount float64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE listings
		SET remaining = remaining - $1,
		    active = (remaining - $1 > 0),
		    updated_at = now()
		WHERE id = $2 AND active AND remaining >= $1`,
		amount, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *postgresRepository) DeactivateListing(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE listings SET active = false, updated_at = now() WHERE id = $1", id)
	return err
}

// ExpireListings deactivates listings whose expiry has passed and returns the
// number swept.
func (r *postgresRepository) ExpireListings(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE listings SET active = false, updated_at = now() WHERE active AND expiration_date < $1", now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *postgresRepository) CreateTransaction(ctx context.Context, tx *Transaction) error {
	query := `
		INSERT INTO transactions (
			id, transaction_id, token_id, project_id, type, sender_id, receiver_id,
			amount, price, total_price, status, memo, listing_id, consensus_at
		) VALUES (
			:id, :transaction_id, :token_id, :project_id, :type, :sender_id, :receiver_id,
			:amount, :price, :total_price, :status, :memo, :listing_id, :consensus_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, tx)
	return err
}

func (r *postgresRepository) GetTransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	var tx Transaction
	err := r.db.GetContext(ctx, &tx, "SELECT * FROM transactions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &tx, err
}

// ConfirmTransaction moves a pending transaction to confirmed. Terminal
// transactions never change again, so the update is gated on status.
func (r *postgresRepository) ConfirmTransaction(ctx context.Context, id uuid.UUID, consensusAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'confirmed', consensus_at = $1, updated_at = now()
		WHERE id = $2 AND status = 'pending'`,
		consensusAt, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *postgresRepository) FailTransaction(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'failed', updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *postgresRepository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	var txs []Transaction
	query := "SELECT * FROM transactions WHERE status = 'confirmed'"
	var args []interface{}
	argCount := 1

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND (sender_id = $%d OR receiver_id = $%d)", argCount, argCount)
		args = append(args, *filter.UserID)
		argCount++
	}
	if filter.TokenID != "" {
		query += fmt.Sprintf(" AND token_id = $%d", argCount)
		args = append(args, filter.TokenID)
		argCount++
	}
	if filter.ProjectID != nil {
		query += fmt.Sprintf(" AND project_id = $%d", argCount)
		args = append(args, *filter.ProjectID)
		argCount++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argCount)
		args = append(args, filter.Type)
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

	err := r.db.SelectContext(ctx, &txs, query, args...)
	return txs, err
}

func (r *postgresRepository) GetTokenRef(ctx context.Context, tokenID string) (*TokenRef, error) {
	var ref TokenRef
	err := r.db.GetContext(ctx, &ref, `
		SELECT t.token_id, t.project_id, p.status AS project_status
		FROM tokens t
		JOIN projects p ON p.id = t.project_id
		WHERE t.token_id = $1`, tokenID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &ref, err
}

func (r *postgresRepository) CountActiveListings(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM listings WHERE active AND remaining > 0 AND expiration_date > now()")
	return count, err
}

func (r *postgresRepository) RecentTrades(ctx context.Context, limit int) ([]Transaction, error) {
	var txs []Transaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT * FROM transactions
		WHERE status = 'confirmed' AND type IN ('buy', 'sell') AND price IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	return txs, err
}

func (r *postgresRepository) TradeTotals(ctx context.Context) (float64, float64, error) {
	var agg tradeAggregate
	err := r.db.GetContext(ctx, &agg, `
		SELECT COALESCE(SUM(amount), 0) AS total_amount,
		       COALESCE(SUM(total_price), 0) AS total_value
		FROM transactions
		WHERE status = 'confirmed' AND type IN ('buy', 'sell')`)
	return agg.TotalAmount, agg.TotalValue, err
}
