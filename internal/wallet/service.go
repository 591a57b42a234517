package wallet

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	Balance(ctx context.Context, tokenID string, userID uuid.UUID) (float64, error)
	GetUserTokens(ctx context.Context, userID uuid.UUID) ([]Holding, error)
}

type walletService struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) Service {
	return &walletService{repo: repo, logger: logger}
}

func (s *walletService) Balance(ctx context.Context, tokenID string, userID uuid.UUID) (float64, error) {
	return s.repo.Balance(ctx, tokenID, userID)
}

func (s *walletService) GetUserTokens(ctx context.Context, userID uuid.UUID) ([]Holding, error) {
	holdings, err := s.repo.UserHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if holdings == nil {
		holdings = []Holding{}
	}
	return holdings, nil
}
