package wallet

import "github.com/google/uuid"

// Holding is a user's confirmed balance in a single token
type Holding struct {
	TokenID     string    `db:"token_id" json:"token_id"`
	TokenName   string    `db:"token_name" json:"token_name"`
	TokenSymbol string    `db:"token_symbol" json:"token_symbol"`
	ProjectID   uuid.UUID `db:"project_id" json:"project_id"`
	Balance     float64   `db:"balance" json:"balance"`
}
