package market

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"kabonia/marketplace/marketplace-backend/pkg/apperrors"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateListing(ctx context.Context, listing *Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockRepository) GetListingByID(ctx context.Context, id uuid.UUID) (*Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Listing), args.Error(1)
}

func (m *MockRepository) ListListings(ctx context.Context, filter ListingFilter) ([]Listing, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]Listing), args.Error(1)
}

func (m *MockRepository) DecrementRemaining(ctx context.Context, id uuid.UUID, amount float64) (bool, error) {
	args := m.Called(ctx, id, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) DeactivateListing(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ExpireListings(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) CreateTransaction(ctx context.Context, tx *Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockRepository) GetTransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Transaction), args.Error(1)
}

func (m *MockRepository) ConfirmTransaction(ctx context.Context, id uuid.UUID, consensusAt time.Time) (bool, error) {
	args := m.Called(ctx, id, consensusAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) FailTransaction(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]Transaction), args.Error(1)
}

func (m *MockRepository) GetTokenRef(ctx context.Context, tokenID string) (*TokenRef, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TokenRef), args.Error(1)
}

func (m *MockRepository) CountActiveListings(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) RecentTrades(ctx context.Context, limit int) ([]Transaction, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]Transaction), args.Error(1)
}

func (m *MockRepository) TradeTotals(ctx context.Context) (float64, float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

type stubBalances struct {
	balance float64
}

func (s *stubBalances) Balance(ctx context.Context, tokenID string, userID uuid.UUID) (float64, error) {
	return s.balance, nil
}

type stubLedger struct {
	seq int64
}

func (s *stubLedger) Transfer(ctx context.Context, tokenID string, from, to uuid.UUID, amount float64) (string, error) {
	return fmt.Sprintf("ledger-tx-%d", atomic.AddInt64(&s.seq, 1)), nil
}

func newTestService(repo Repository, balance float64) (Service, *SummaryCache) {
	cache := NewSummaryCache(time.Minute)
	svc := NewService(repo, &stubBalances{balance: balance}, &stubLedger{}, nil, cache, zap.NewNop())
	return svc, cache
}

func activeListing(sellerID uuid.UUID, remaining float64) *Listing {
	return &Listing{
		ID:             uuid.New(),
		TokenID:        "CC_RIO-1",
		ProjectID:      uuid.New(),
		SellerID:       sellerID,
		Amount:         100,
		Remaining:      remaining,
		Price:          12.5,
		ExpirationDate: time.Now().Add(24 * time.Hour),
		Active:         true,
	}
}

func TestCreateListing(t *testing.T) {
	mockRepo := new(MockRepository)
	service, cache := newTestService(mockRepo, 500)
	defer cache.Stop()

	ctx := context.Background()
	sellerID := uuid.New()

	mockRepo.On("GetTokenRef", ctx, "CC_RIO-1").Return(&TokenRef{
		TokenID:       "CC_RIO-1",
		ProjectID:     uuid.New(),
		ProjectStatus: "active",
	}, nil)
	mockRepo.On("CreateListing", ctx, mock.AnythingOfType("*market.Listing")).Return(nil)

	listing, err := service.CreateListing(ctx, CreateListingRequest{
		TokenID:        "CC_RIO-1",
		Amount:         100,
		Price:          12.5,
		ExpirationDate: time.Now().Add(48 * time.Hour),
	}, sellerID)

	assert.NoError(t, err)
	assert.True(t, listing.Active)
	assert.Equal(t, listing.Amount, listing.Remaining)
	mockRepo.AssertExpectations(t)
}

func TestCreateListingProjectNotActive(t *testing.T) {
	mockRepo := new(MockRepository)
	service, cache := newTestService(mockRepo, 500)
	defer cache.Stop()

	ctx := context.Background()

	mockRepo.On("GetTokenRef", ctx, "CC_RIO-1").Return(&TokenRef{
		TokenID:       "CC_RIO-1",
		ProjectID:     uuid.New(),
		ProjectStatus: "verified",
	}, nil)

	_, err := service.CreateListing(ctx, CreateListingRequest{
		TokenID:        "CC_RIO-1",
		Amount:         10,
		Price:          5,
		ExpirationDate: time.Now().Add(time.Hour),
	}, uuid.New())

	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	mockRepo.AssertNotCalled(t, "CreateListing", mock.Anything, mock.Anything)
}

func TestCreateListingInsufficientBalance(t *testing.T) {
	mockRepo := new(MockRepository)
	service, cache := newTestService(mockRepo, 5)
	defer cache.Stop()

	ctx := context.Background()

	mockRepo.On("GetTokenRef", ctx, "CC_RIO-1").Return(&TokenRef{
		TokenID:       "CC_RIO-1",
		ProjectID:     uuid.New(),
		ProjectStatus: "active",
	}, nil)

	_, err := service.CreateListing(ctx, CreateListingRequest{
		TokenID:        "CC_RIO-1",
		Amount:         10,
		Price:          5,
		ExpirationDate: time.Now().Add(time.Hour),
	}, uuid.New())

	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	mockRepo.AssertNotCalled(t, "CreateListing", mock.Anything, mock.Anything)
}

func TestExecutePurchase(t *testing.T) {
	mockRepo := new(MockRepository)
	service, cache := newTestService(mockRepo, 0)
	defer cache.Stop()

	ctx := context.Background()
	sellerID := uuid.New()
	buyerID := uuid.New()
	listing := activeListing(sellerID, 100)

	mockRepo.On("GetListingByID", ctx, listing.ID).Return(listing, nil)
	mockRepo.On("CreateTransaction", ctx, mock.AnythingOfType("*market.Transaction")).Return(nil)
	mockRepo.On("DecrementRemaining", ctx, listing.ID, 40.0).Return(true, nil)
	mockRepo.On("ConfirmTransaction", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("time.Time")).Return(true, nil)

	result, err := service.ExecutePurchase(ctx, listing.ID, buyerID, 40)

	assert.NoError(t, err)
	assert.Equal(t, TxConfirmed, result.Transaction.Status)
	assert.Equal(t, TxBuy, result.Transaction.Type)
	assert.Equal(t, 500.0, *result.Transaction.TotalPrice)
	assert.Equal(t, 60.0, result.Listing.Remaining)
	assert.True(t, result.Listing.Active)
	mockRepo.AssertExpectations(t)
}

func TestExecutePurchaseDrainsListing(t *testing.T) {
	mockRepo := new(MockRepository)
	service, cache := newTestService(mockRepo, 0)
	defer cache.Stop()

	ctx := context.Background()
	listing := activeListing(uuid.New(), 25)

	mockRepo.On("GetListingByID", ctx, listing.ID).Return(listing, nil)
	mockRepo.On("CreateTransaction", ctx, mock.AnythingOfType("*market.Transaction")).Return(nil)
	mockRepo.On("DecrementRemaining", ctx, listing.ID, 25.0).Return(true, nil)
	mockRepo.On("ConfirmTransaction", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("time.Time")).Return(true, nil)

	result, err := service.ExecutePurchase(ctx, listing.ID, uuid.New(), 25)

	assert.NoError(t, err)
	assert.Zero(t, result.Listing.Remaining)
	assert.False(t, result.Listing.Active)
}

func TestExecutePurchaseValidation(t *testing.T) {
	mockRepo := new(MockRepository)
	service, cache := newTestService(mockRepo, 0)
	defer cache.Stop()

	ctx := context.Background()
	sellerID := uuid.New()

	t.Run("over remaining", func(t *testing.T) {
		listing := activeListing(sellerID, 10)
		mockRepo.On("GetListingByID", ctx, listing.ID).Return(listing, nil)

		_, err := service.ExecutePurchase(ctx, listing.ID, uuid.New(), 11)
		assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	})

	t.Run("self purchase", func(t *testing.T) {
		listing := activeListing(sellerID, 10)
		mockRepo.On("GetListingByID", ctx, listing.ID).Return(listing, nil)

		_, err := service.ExecutePurchase(ctx, listing.ID, sellerID, 5)
		assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	})

	t.Run("expired", func(t *testing.T) {
		listing := activeListing(sellerID, 10)
		listing.ExpirationDate = time.Now().Add(-time.Hour)
		mockRepo.On("GetListingByID", ctx, listing.ID).Return(listing, nil)

		_, err := service.ExecutePurchase(ctx, listing.ID, uuid.New(), 5)
		assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	})

	t.Run("inactive", func(t *testing.T) {
		listing := activeListing(sellerID, 10)
		listing.Active = false
		mockRepo.On("GetListingByID", ctx, listing.ID).Return(listing, nil)

		_, err := service.ExecutePurchase(ctx, listing.ID, uuid.New(), 5)
		assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	})

	t.Run("not found", func(t *testing.T) {
		missing := uuid.New()
		mockRepo.On("GetListingByID", ctx, missing).Return(nil, nil)

		_, err := service.ExecutePurchase(ctx, missing, uuid.New(), 5)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	mockRepo.AssertNotCalled(t, "DecrementRemaining", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutePurchaseLosesRace(t *testing.T) {
	mockRepo := new(MockRepository)
	service, cache := newTestService(mockRepo, 0)
	defer cache.Stop()

	ctx := context.Background()
	listing := activeListing(uuid.New(), 10)

	mockRepo.On("GetListingByID", ctx, listing.ID).Return(listing, nil)
	mockRepo.On("CreateTransaction", ctx, mock.AnythingOfType("*market.Transaction")).Return(nil)
	mockRepo.On("DecrementRemaining", ctx, listing.ID, 10.0).Return(false, nil)
	mockRepo.On("FailTransaction", ctx, mock.AnythingOfType("uuid.UUID")).Return(true, nil)

	_, err := service.ExecutePurchase(ctx, listing.ID, uuid.New(), 10)

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	mockRepo.AssertCalled(t, "FailTransaction", ctx, mock.AnythingOfType("uuid.UUID"))
	mockRepo.AssertNotCalled(t, "ConfirmTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelListing(t *testing.T) {
	mockRepo := new(MockRepository)
	service, cache := newTestService(mockRepo, 0)
	defer cache.Stop()

	ctx := context.Background()
	sellerID := uuid.New()
	listing := activeListing(sellerID, 50)

	mockRepo.On("GetListingByID", ctx, listing.ID).Return(listing, nil)
	mockRepo.On("DeactivateListing", ctx, listing.ID).Return(nil)

	cancelled, err := service.CancelListing(ctx, listing.ID, sellerID)

	assert.NoError(t, err)
	assert.False(t, cancelled.Active)

	// only the seller may cancel
	other := activeListing(sellerID, 50)
	mockRepo.On("GetListingByID", ctx, other.ID).Return(other, nil)
	_, err = service.CancelListing(ctx, other.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	// already inactive
	inactive := activeListing(sellerID, 50)
	inactive.Active = false
	mockRepo.On("GetListingByID", ctx, inactive.ID).Return(inactive, nil)
	_, err = service.CancelListing(ctx, inactive.ID, sellerID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestGetMarketSummaryCaches(t *testing.T) {
	mockRepo := new(MockRepository)
	service, cache := newTestService(mockRepo, 0)
	defer cache.Stop()

	ctx := context.Background()
	price := 10.0
	trades := []Transaction{
		{ID: uuid.New(), Type: TxBuy, Status: TxConfirmed, Amount: 5, Price: &price},
	}

	mockRepo.On("RecentTrades", ctx, 100).Return(trades, nil).Once()
	mockRepo.On("CountActiveListings", ctx).Return(3, nil).Once()
	mockRepo.On("TradeTotals", ctx).Return(5.0, 50.0, nil).Once()

	first, err := service.GetMarketSummary(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 10.0, first.AveragePrice)
	assert.Equal(t, 3, first.ActiveListings)
	assert.Equal(t, 5.0, first.TotalVolumeTraded)
	assert.Equal(t, 50.0, first.TotalValueTraded)

	// second call is served from the cache; the Once expectations above
	// fail the test if the repository is hit again
	second, err := service.GetMarketSummary(ctx)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	mockRepo.AssertExpectations(t)
}

// concurrentRepo is a thread-safe in-memory Repository used to exercise the
// purchase path under contention.
type concurrentRepo struct {
	MockRepository

	mu      sync.Mutex
	listing Listing
	txs     map[uuid.UUID]*Transaction
}

func newConcurrentRepo(listing Listing) *concurrentRepo {
	return &concurrentRepo{
		listing: listing,
		txs:     make(map[uuid.UUID]*Transaction),
	}
}

func (r *concurrentRepo) GetListingByID(ctx context.Context, id uuid.UUID) (*Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.listing
	return &snapshot, nil
}

func (r *concurrentRepo) CreateTransaction(ctx context.Context, tx *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *tx
	r.txs[tx.ID] = &stored
	return nil
}

func (r *concurrentRepo) DecrementRemaining(ctx context.Context, id uuid.UUID, amount float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.listing.Active || r.listing.Remaining < amount {
		return false, nil
	}
	r.listing.Remaining -= amount
	r.listing.Active = r.listing.Remaining > 0
	return true, nil
}

func (r *concurrentRepo) ConfirmTransaction(ctx context.Context, id uuid.UUID, consensusAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok || tx.Status != TxPending {
		return false, nil
	}
	tx.Status = TxConfirmed
	tx.ConsensusAt = &consensusAt
	return true, nil
}

func (r *concurrentRepo) FailTransaction(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok || tx.Status != TxPending {
		return false, nil
	}
	tx.Status = TxFailed
	return true, nil
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	const (
		initialRemaining = 10.0
		purchaseAmount   = 1.0
		buyers           = 50
	)

	sellerID := uuid.New()
	listing := *activeListing(sellerID, initialRemaining)
	repo := newConcurrentRepo(listing)

	cache := NewSummaryCache(time.Minute)
	defer cache.Stop()
	service := NewService(repo, &stubBalances{}, &stubLedger{}, nil, cache, zap.NewNop())

	ctx := context.Background()
	var wg sync.WaitGroup
	var successes int64
	errs := make(chan error, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.ExecutePurchase(ctx, listing.ID, uuid.New(), purchaseAmount)
			if err != nil {
				errs <- err
				return
			}
			atomic.AddInt64(&successes, 1)
		}()
	}
	wg.Wait()
	close(errs)

	assert.Equal(t, int64(initialRemaining/purchaseAmount), successes)

	for err := range errs {
		rejected := apperrors.IsKind(err, apperrors.KindConflict) ||
			apperrors.IsKind(err, apperrors.KindInvalidRequest) ||
			apperrors.IsKind(err, apperrors.KindInvalidState)
		assert.True(t, rejected, "unexpected error: %v", err)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	assert.Zero(t, repo.listing.Remaining)
	assert.False(t, repo.listing.Active)
	assert.GreaterOrEqual(t, repo.listing.Remaining, 0.0)

	var confirmed float64
	for _, tx := range repo.txs {
		switch tx.Status {
		case TxConfirmed:
			confirmed += tx.Amount
		case TxPending:
			t.Errorf("transaction %s left pending", tx.ID)
		}
	}
	assert.Equal(t, initialRemaining, confirmed)
}
