package tokens

import (
	"time"

	"github.com/google/uuid"
)

// Token is a fungible carbon credit token backing a project
type Token struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	TokenID       string     `db:"token_id" json:"token_id"` // external ledger id
	ProjectID     uuid.UUID  `db:"project_id" json:"project_id"`
	TokenName     string     `db:"token_name" json:"token_name"`
	TokenSymbol   string     `db:"token_symbol" json:"token_symbol"`
	Decimals      int        `db:"decimals" json:"decimals"`
	InitialSupply float64    `db:"initial_supply" json:"initial_supply"`
	CurrentSupply float64    `db:"current_supply" json:"current_supply"`
	MaxSupply     *float64   `db:"max_supply" json:"max_supply,omitempty"`
	CreatorID     *uuid.UUID `db:"creator_id" json:"creator_id,omitempty"`
	LastMintAt    *time.Time `db:"last_mint_at" json:"last_mint_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// TokenFilter narrows token queries
type TokenFilter struct {
	ProjectID *uuid.UUID
	Limit     int
	Offset    int
}
