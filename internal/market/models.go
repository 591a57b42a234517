package market

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies ledger transactions
type TransactionType string

const (
	TxMint     TransactionType = "mint"
	TxTransfer TransactionType = "transfer"
	TxBuy      TransactionType = "buy"
	TxSell     TransactionType = "sell"
)

// TransactionStatus is the confirmation state of a transaction.
// Pending is the only mutable state; confirmed and failed are terminal.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxConfirmed TransactionStatus = "confirmed"
	TxFailed    TransactionStatus = "failed"
)

// Listing is a sell offer for a quantity of carbon credit tokens
type Listing struct {
	ID             uuid.UUID `db:"id" json:"id"`
	TokenID        string    `db:"token_id" json:"token_id"`
	ProjectID      uuid.UUID `db:"project_id" json:"project_id"`
	SellerID       uuid.UUID `db:"seller_id" json:"seller_id"`
	Amount         float64   `db:"amount" json:"amount"`
	Remaining      float64   `db:"remaining" json:"remaining"`
	Price          float64   `db:"price" json:"price"` // USD per credit
	ExpirationDate time.Time `db:"expiration_date" json:"expiration_date"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Expired reports whether the listing expiry has passed
func (l *Listing) Expired(now time.Time) bool {
	return l.ExpirationDate.Before(now)
}

// Transaction is an append-only record of a token movement
type Transaction struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	TransactionID string            `db:"transaction_id" json:"transaction_id"`
	TokenID       string            `db:"token_id" json:"token_id"`
	ProjectID     uuid.UUID         `db:"project_id" json:"project_id"`
	Type          TransactionType   `db:"type" json:"type"`
	SenderID      *uuid.UUID        `db:"sender_id" json:"sender_id,omitempty"` // nil for mints
	ReceiverID    uuid.UUID         `db:"receiver_id" json:"receiver_id"`
	Amount        float64           `db:"amount" json:"amount"`
	Price         *float64          `db:"price" json:"price,omitempty"`
	TotalPrice    *float64          `db:"total_price" json:"total_price,omitempty"`
	Status        TransactionStatus `db:"status" json:"status"`
	Memo          string            `db:"memo" json:"memo"`
	ListingID     *uuid.UUID        `db:"listing_id" json:"listing_id,omitempty"`
	ConsensusAt   *time.Time        `db:"consensus_at" json:"consensus_at,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// ListingFilter narrows listing queries
type ListingFilter struct {
	TokenID  string
	SellerID *uuid.UUID
	MinPrice *float64
	MaxPrice *float64
	Limit    int
	Offset   int
}

// TransactionFilter narrows transaction history queries
type TransactionFilter struct {
	UserID    *uuid.UUID
	TokenID   string
	ProjectID *uuid.UUID
	Type      TransactionType
	Limit     int
	Offset    int
}

// MarketSummary is an aggregate view over confirmed trades
type MarketSummary struct {
	AveragePrice      float64       `json:"average_price"`
	ActiveListings    int           `json:"active_listings"`
	TotalVolumeTraded float64       `json:"total_volume_traded"`
	TotalValueTraded  float64       `json:"total_value_traded"`
	RecentTrades      []Transaction `json:"recent_trades"`
	GeneratedAt       time.Time     `json:"generated_at"`
}

// tradeAggregate holds the summed volume and value of confirmed trades
type tradeAggregate struct {
	TotalAmount float64 `db:"total_amount"`
	TotalValue  float64 `db:"total_value"`
}
