package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kabonia/marketplace/marketplace-backend/internal/tokens"
)

// Local is an in-process custody backend. It hands out ledger-shaped token
// and transaction identifiers without talking to an external network, which
// keeps the rest of the system working against the same Ledger seams a real
// custody integration would use.
type Local struct {
	mu      sync.Mutex
	nextID  int64
	account string
	logger  *zap.Logger
}

func NewLocal(logger *zap.Logger) *Local {
	return &Local{
		nextID:  1000,
		account: "0.0.2",
		logger:  logger,
	}
}

func (l *Local) CreateToken(ctx context.Context, params tokens.CreateTokenParams) (string, error) {
	l.mu.Lock()
	l.nextID++
	tokenID := fmt.Sprintf("0.0.%d", l.nextID)
	l.mu.Unlock()

	l.logger.Info("ledger token created",
		zap.String("token_id", tokenID),
		zap.String("symbol", params.TokenSymbol),
		zap.Int("decimals", params.Decimals))

	return tokenID, nil
}

func (l *Local) Mint(ctx context.Context, tokenID string, amount float64) (string, error) {
	txID := l.transactionID()

	l.logger.Info("ledger mint",
		zap.String("token_id", tokenID),
		zap.Float64("amount", amount),
		zap.String("transaction_id", txID))

	return txID, nil
}

func (l *Local) Transfer(ctx context.Context, tokenID string, from, to uuid.UUID, amount float64) (string, error) {
	txID := l.transactionID()

	l.logger.Info("ledger transfer",
		zap.String("token_id", tokenID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Float64("amount", amount),
		zap.String("transaction_id", txID))

	return txID, nil
}

// transactionID mimics the account@seconds.nanos shape of consensus ledger
// transaction ids so downstream records stay parseable either way.
func (l *Local) transactionID() string {
	now := time.Now()
	return fmt.Sprintf("%s@%d.%09d", l.account, now.Unix(), now.Nanosecond())
}
