package market

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kabonia/marketplace/marketplace-backend/pkg/apperrors"
)

// BalanceChecker reports a user's confirmed holdings of a token
type BalanceChecker interface {
	Balance(ctx context.Context, tokenID string, userID uuid.UUID) (float64, error)
}

// Ledger moves tokens between accounts on the custody backend and returns the
// external transaction id
type Ledger interface {
	Transfer(ctx context.Context, tokenID string, from, to uuid.UUID, amount float64) (string, error)
}

// Broadcaster pushes market events to connected clients
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

const summaryCacheKey = "market:summary"

type CreateListingRequest struct {
	TokenID        string    `json:"token_id"`
	Amount         float64   `json:"amount"`
	Price          float64   `json:"price"`
	ExpirationDate time.Time `json:"expiration_date"`
}

type PurchaseResult struct {
	Transaction *Transaction `json:"transaction"`
	Listing     *Listing     `json:"listing"`
}

type Service interface {
	CreateListing(ctx context.Context, req CreateListingRequest, sellerID uuid.UUID) (*Listing, error)
	GetListing(ctx context.Context, id uuid.UUID) (*Listing, error)
	GetListings(ctx context.Context, filter ListingFilter) ([]Listing, error)
	ExecutePurchase(ctx context.Context, listingID, buyerID uuid.UUID, amount float64) (*PurchaseResult, error)
	CancelListing(ctx context.Context, listingID, sellerID uuid.UUID) (*Listing, error)
	GetTransactionHistory(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	GetMarketSummary(ctx context.Context) (*MarketSummary, error)
	SweepExpiredListings(ctx context.Context) (int64, error)
}

type marketService struct {
	repo        Repository
	balances    BalanceChecker
	ledger      Ledger
	broadcaster Broadcaster
	cache       *SummaryCache
	logger      *zap.Logger
}

func NewService(repo Repository, balances BalanceChecker, ledger Ledger, broadcaster Broadcaster, cache *SummaryCache, logger *zap.Logger) Service {
	return &marketService{
		repo:        repo,
		balances:    balances,
		ledger:      ledger,
		broadcaster: broadcaster,
		cache:       cache,
		logger:      logger,
	}
}

func (s *marketService) CreateListing(ctx context.Context, req CreateListingRequest, sellerID uuid.UUID) (*Listing, error) {
	if req.Amount <= 0 {
		return nil, apperrors.InvalidRequest("listing amount must be positive")
	}
	if req.Price <= 0 {
		return nil, apperrors.InvalidRequest("listing price must be positive")
	}
	if !req.ExpirationDate.After(time.Now()) {
		return nil, apperrors.InvalidRequest("expiration date must be in the future")
	}

	ref, err := s.repo.GetTokenRef(ctx, req.TokenID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, apperrors.NotFound("token not found: %s", req.TokenID)
	}
	if ref.ProjectStatus != "active" {
		return nil, apperrors.InvalidState("project must be active to list tokens, current status: %s", ref.ProjectStatus)
	}

	balance, err := s.balances.Balance(ctx, req.TokenID, sellerID)
	if err != nil {
		return nil, err
	}
	if balance < req.Amount {
		return nil, apperrors.InvalidRequest("not enough tokens to list: have %.2f, tried to list %.2f", balance, req.Amount)
	}

	listing := &Listing{
		ID:             uuid.New(),
		TokenID:        req.TokenID,
		ProjectID:      ref.ProjectID,
		SellerID:       sellerID,
		Amount:         req.Amount,
		Remaining:      req.Amount,
		Price:          req.Price,
		ExpirationDate: req.ExpirationDate,
		Active:         true,
	}
	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return nil, err
	}

	s.logger.Info("created listing",
		zap.String("listing_id", listing.ID.String()),
		zap.String("token_id", listing.TokenID),
		zap.Float64("amount", listing.Amount),
		zap.Float64("price", listing.Price))

	s.cache.Invalidate(summaryCacheKey)
	s.broadcast("listing.created", listing)

	return listing, nil
}

func (s *marketService) GetListing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	listing, err := s.repo.GetListingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, apperrors.NotFound("listing not found: %s", id)
	}
	return listing, nil
}

func (s *marketService) GetListings(ctx context.Context, filter ListingFilter) ([]Listing, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.repo.ListListings(ctx, filter)
}

// ExecutePurchase takes amount credits from a listing on behalf of buyerID.
// The transaction record is opened before the listing is touched and is never
// deleted afterwards: losing the remaining-amount race marks it failed and the
// listing is left unchanged.
func (s *marketService) ExecutePurchase(ctx context.Context, listingID, buyerID uuid.UUID, amount float64) (*PurchaseResult, error) {
	if amount <= 0 {
		return nil, apperrors.InvalidRequest("purchase amount must be positive")
	}

	listing, err := s.repo.GetListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, apperrors.NotFound("listing not found: %s", listingID)
	}
	if !listing.Active {
		return nil, apperrors.InvalidState("listing is no longer active")
	}
	if listing.Expired(time.Now()) {
		return nil, apperrors.InvalidState("listing has expired")
	}
	if amount > listing.Remaining {
		return nil, apperrors.InvalidRequest("not enough tokens available: requested %.2f, available %.2f", amount, listing.Remaining)
	}
	if listing.SellerID == buyerID {
		return nil, apperrors.InvalidRequest("cannot buy your own listing")
	}

	externalID, err := s.ledger.Transfer(ctx, listing.TokenID, listing.SellerID, buyerID, amount)
	if err != nil {
		return nil, err
	}

	price := listing.Price
	totalPrice, _ := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(price)).
		Round(2).
		Float64()

	sellerID := listing.SellerID
	tx := &Transaction{
		ID:            uuid.New(),
		TransactionID: externalID,
		TokenID:       listing.TokenID,
		ProjectID:     listing.ProjectID,
		Type:          TxBuy,
		SenderID:      &sellerID,
		ReceiverID:    buyerID,
		Amount:        amount,
		Price:         &price,
		TotalPrice:    &totalPrice,
		Status:        TxPending,
		Memo:          "marketplace purchase",
		ListingID:     &listing.ID,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	taken, err := s.repo.DecrementRemaining(ctx, listingID, amount)
	if err != nil {
		return nil, err
	}
	if !taken {
		if _, failErr := s.repo.FailTransaction(ctx, tx.ID); failErr != nil {
			s.logger.Error("failed to mark transaction failed",
				zap.String("transaction_id", tx.ID.String()), zap.Error(failErr))
		}
		return nil, apperrors.Conflict("listing changed concurrently, purchase not executed")
	}

	consensusAt := time.Now()
	if _, err := s.repo.ConfirmTransaction(ctx, tx.ID, consensusAt); err != nil {
		return nil, err
	}
	tx.Status = TxConfirmed
	tx.ConsensusAt = &consensusAt

	listing.Remaining -= amount
	if listing.Remaining <= 0 {
		listing.Active = false
	}

	s.logger.Info("executed purchase",
		zap.String("listing_id", listingID.String()),
		zap.String("buyer_id", buyerID.String()),
		zap.Float64("amount", amount),
		zap.Float64("total_price", totalPrice))

	s.cache.Invalidate(summaryCacheKey)
	s.broadcast("purchase.executed", tx)

	return &PurchaseResult{Transaction: tx, Listing: listing}, nil
}

func (s *marketService) CancelListing(ctx context.Context, listingID, sellerID uuid.UUID) (*Listing, error) {
	listing, err := s.repo.GetListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, apperrors.NotFound("listing not found: %s", listingID)
	}
	if listing.SellerID != sellerID {
		return nil, apperrors.InvalidRequest("only the seller can cancel a listing")
	}
	if !listing.Active {
		return nil, apperrors.InvalidState("listing is already inactive")
	}

	if err := s.repo.DeactivateListing(ctx, listingID); err != nil {
		return nil, err
	}
	listing.Active = false

	s.logger.Info("cancelled listing", zap.String("listing_id", listingID.String()))

	s.cache.Invalidate(summaryCacheKey)
	s.broadcast("listing.cancelled", listing)

	return listing, nil
}

func (s *marketService) GetTransactionHistory(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.repo.ListTransactions(ctx, filter)
}

func (s *marketService) GetMarketSummary(ctx context.Context) (*MarketSummary, error) {
	if cached, ok := s.cache.Get(summaryCacheKey); ok {
		return cached, nil
	}

	recent, err := s.repo.RecentTrades(ctx, 100)
	if err != nil {
		return nil, err
	}

	var priceSum float64
	var priceCount int
	for _, tx := range recent {
		if tx.Price != nil && *tx.Price > 0 {
			priceSum += *tx.Price
			priceCount++
		}
	}
	averagePrice := 0.0
	if priceCount > 0 {
		averagePrice = priceSum / float64(priceCount)
	}

	activeListings, err := s.repo.CountActiveListings(ctx)
	if err != nil {
		return nil, err
	}

	totalVolume, totalValue, err := s.repo.TradeTotals(ctx)
	if err != nil {
		return nil, err
	}

	if len(recent) > 5 {
		recent = recent[:5]
	}
	summary := &MarketSummary{
		AveragePrice:      averagePrice,
		ActiveListings:    activeListings,
		TotalVolumeTraded: totalVolume,
		TotalValueTraded:  totalValue,
		RecentTrades:      recent,
		GeneratedAt:       time.Now(),
	}

	s.cache.Set(summaryCacheKey, summary)

	return summary, nil
}

// SweepExpiredListings deactivates listings past their expiry. Run from the
// periodic scheduler.
func (s *marketService) SweepExpiredListings(ctx context.Context) (int64, error) {
	swept, err := s.repo.ExpireListings(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		s.logger.Info("expired listings swept", zap.Int64("count", swept))
		s.cache.Invalidate(summaryCacheKey)
	}
	return swept, nil
}

func (s *marketService) broadcast(event string, payload interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(event, payload)
	}
}
