package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kabonia/marketplace/marketplace-backend/internal/market"
	"kabonia/marketplace/marketplace-backend/internal/projects"
	"kabonia/marketplace/marketplace-backend/pkg/apperrors"
)

// ProjectStore is the slice of the project repository minting depends on
type ProjectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*projects.Project, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status projects.ProjectStatus) error
	SetToken(ctx context.Context, id uuid.UUID, tokenID string) error
}

// TransactionLog appends and settles transaction records
type TransactionLog interface {
	CreateTransaction(ctx context.Context, tx *market.Transaction) error
	ConfirmTransaction(ctx context.Context, id uuid.UUID, consensusAt time.Time) (bool, error)
	FailTransaction(ctx context.Context, id uuid.UUID) (bool, error)
}

// CreateTokenParams describe a new token on the custody backend
type CreateTokenParams struct {
	TokenName     string
	TokenSymbol   string
	Decimals      int
	InitialSupply float64
}

// Ledger is the custody backend for token lifecycle operations
type Ledger interface {
	CreateToken(ctx context.Context, params CreateTokenParams) (string, error)
	Mint(ctx context.Context, tokenID string, amount float64) (string, error)
	Transfer(ctx context.Context, tokenID string, from, to uuid.UUID, amount float64) (string, error)
}

// Balances reports confirmed holdings, used to gate transfers
type Balances interface {
	Balance(ctx context.Context, tokenID string, userID uuid.UUID) (float64, error)
}

const defaultDecimals = 2

type MintResult struct {
	Token       *Token              `json:"token"`
	Transaction *market.Transaction `json:"transaction"`
}

type Service interface {
	MintCredits(ctx context.Context, projectID uuid.UUID, amount float64, ownerID uuid.UUID) (*MintResult, error)
	Transfer(ctx context.Context, tokenID string, senderID, receiverID uuid.UUID, amount float64) (*market.Transaction, error)
	GetToken(ctx context.Context, tokenID string) (*Token, error)
	GetProjectToken(ctx context.Context, projectID uuid.UUID) (*Token, error)
	ListTokens(ctx context.Context, filter TokenFilter) ([]Token, error)
}

type tokenService struct {
	repo        Repository
	projectRepo ProjectStore
	txLog       TransactionLog
	ledger      Ledger
	balances    Balances
	logger      *zap.Logger
}

func NewService(repo Repository, projectRepo ProjectStore, txLog TransactionLog, ledger Ledger, balances Balances, logger *zap.Logger) Service {
	return &tokenService{
		repo:        repo,
		projectRepo: projectRepo,
		txLog:       txLog,
		ledger:      ledger,
		balances:    balances,
		logger:      logger,
	}
}

// MintCredits converts part of a project's verified credit capacity into token
// supply held by the project owner. The token is created lazily on first mint.
// The capacity decrement and supply increment commit together; losing the
// capacity race marks the opened transaction failed and reports a conflict.
func (s *tokenService) MintCredits(ctx context.Context, projectID uuid.UUID, amount float64, ownerID uuid.UUID) (*MintResult, error) {
	if amount <= 0 {
		return nil, apperrors.InvalidRequest("mint amount must be positive")
	}

	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperrors.NotFound("project not found: %s", projectID)
	}
	if project.OwnerID != ownerID {
		return nil, apperrors.InvalidRequest("only the project owner can mint credits")
	}
	if project.Status != projects.StatusVerified && project.Status != projects.StatusActive {
		return nil, apperrors.InvalidState("project must be verified or active to mint, current status: %s", project.Status)
	}
	if amount > project.CarbonCredits {
		return nil, apperrors.InvalidRequest("mint amount %.2f exceeds remaining capacity %.2f", amount, project.CarbonCredits)
	}

	token, err := s.repo.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		token, err = s.createProjectToken(ctx, project, ownerID)
		if err != nil {
			return nil, err
		}
	}

	externalID, err := s.ledger.Mint(ctx, token.TokenID, amount)
	if err != nil {
		return nil, err
	}

	tx := &market.Transaction{
		ID:            uuid.New(),
		TransactionID: externalID,
		TokenID:       token.TokenID,
		ProjectID:     projectID,
		Type:          market.TxMint,
		ReceiverID:    ownerID,
		Amount:        amount,
		Status:        market.TxPending,
		Memo:          fmt.Sprintf("minted %.2f %s for project %s", amount, token.TokenSymbol, project.Name),
	}
	if err := s.txLog.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	minted, err := s.repo.AdjustSupplyForMint(ctx, projectID, token.TokenID, amount)
	if err != nil {
		return nil, err
	}
	if !minted {
		if _, failErr := s.txLog.FailTransaction(ctx, tx.ID); failErr != nil {
			s.logger.Error("failed to mark mint transaction failed",
				zap.String("transaction_id", tx.ID.String()), zap.Error(failErr))
		}
		return nil, apperrors.Conflict("project capacity or token supply changed concurrently, mint not executed")
	}

	consensusAt := time.Now()
	if _, err := s.txLog.ConfirmTransaction(ctx, tx.ID, consensusAt); err != nil {
		return nil, err
	}
	tx.Status = market.TxConfirmed
	tx.ConsensusAt = &consensusAt

	token.CurrentSupply += amount
	token.LastMintAt = &consensusAt

	s.logger.Info("minted credits",
		zap.String("project_id", projectID.String()),
		zap.String("token_id", token.TokenID),
		zap.Float64("amount", amount))

	return &MintResult{Token: token, Transaction: tx}, nil
}

// createProjectToken provisions a token for the project's first mint. Max
// supply is fixed at twice the verified capacity at creation time; a verified
// project becomes active once it carries a token.
func (s *tokenService) createProjectToken(ctx context.Context, project *projects.Project, ownerID uuid.UUID) (*Token, error) {
	params := CreateTokenParams{
		TokenName:     project.Name + " Carbon Credits",
		TokenSymbol:   DeriveTokenSymbol(string(project.ProjectType)),
		Decimals:      defaultDecimals,
		InitialSupply: 0,
	}
	tokenID, err := s.ledger.CreateToken(ctx, params)
	if err != nil {
		return nil, err
	}

	maxSupply := project.CarbonCredits * 2
	token := &Token{
		ID:            uuid.New(),
		TokenID:       tokenID,
		ProjectID:     project.ID,
		TokenName:     params.TokenName,
		TokenSymbol:   params.TokenSymbol,
		Decimals:      params.Decimals,
		InitialSupply: 0,
		CurrentSupply: 0,
		MaxSupply:     &maxSupply,
		CreatorID:     &ownerID,
	}
	if err := s.repo.CreateToken(ctx, token); err != nil {
		return nil, err
	}

	if err := s.projectRepo.SetToken(ctx, project.ID, tokenID); err != nil {
		return nil, err
	}
	if project.Status == projects.StatusVerified {
		if err := s.projectRepo.UpdateStatus(ctx, project.ID, projects.StatusActive); err != nil {
			return nil, err
		}
		project.Status = projects.StatusActive
	}

	s.logger.Info("created project token",
		zap.String("project_id", project.ID.String()),
		zap.String("token_id", tokenID),
		zap.String("symbol", token.TokenSymbol))

	return token, nil
}

// Transfer moves tokens directly between two users outside the marketplace.
func (s *tokenService) Transfer(ctx context.Context, tokenID string, senderID, receiverID uuid.UUID, amount float64) (*market.Transaction, error) {
	if amount <= 0 {
		return nil, apperrors.InvalidRequest("transfer amount must be positive")
	}
	if senderID == receiverID {
		return nil, apperrors.InvalidRequest("cannot transfer tokens to yourself")
	}

	token, err := s.repo.GetByTokenID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, apperrors.NotFound("token not found: %s", tokenID)
	}

	balance, err := s.balances.Balance(ctx, tokenID, senderID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, apperrors.InvalidRequest("insufficient balance: have %.2f, tried to transfer %.2f", balance, amount)
	}

	externalID, err := s.ledger.Transfer(ctx, tokenID, senderID, receiverID, amount)
	if err != nil {
		return nil, err
	}

	consensusAt := time.Now()
	tx := &market.Transaction{
		ID:            uuid.New(),
		TransactionID: externalID,
		TokenID:       tokenID,
		ProjectID:     token.ProjectID,
		Type:          market.TxTransfer,
		SenderID:      &senderID,
		ReceiverID:    receiverID,
		Amount:        amount,
		Status:        market.TxConfirmed,
		Memo:          fmt.Sprintf("transferred %.2f %s", amount, token.TokenSymbol),
		ConsensusAt:   &consensusAt,
	}
	if err := s.txLog.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	s.logger.Info("transferred tokens",
		zap.String("token_id", tokenID),
		zap.String("sender_id", senderID.String()),
		zap.String("receiver_id", receiverID.String()),
		zap.Float64("amount", amount))

	return tx, nil
}

func (s *tokenService) GetToken(ctx context.Context, tokenID string) (*Token, error) {
	token, err := s.repo.GetByTokenID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, apperrors.NotFound("token not found: %s", tokenID)
	}
	return token, nil
}

func (s *tokenService) GetProjectToken(ctx context.Context, projectID uuid.UUID) (*Token, error) {
	token, err := s.repo.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, apperrors.NotFound("no token for project: %s", projectID)
	}
	return token, nil
}

func (s *tokenService) ListTokens(ctx context.Context, filter TokenFilter) ([]Token, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.repo.ListTokens(ctx, filter)
}
