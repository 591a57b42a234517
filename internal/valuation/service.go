package valuation

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kabonia/marketplace/marketplace-backend/internal/projects"
	"kabonia/marketplace/marketplace-backend/pkg/apperrors"
)

const (
	baseValuePerTon = 15.0
	confidence      = 0.85

	// trend direction thresholds in percent
	trendThreshold = 2.0
)

var typeMultipliers = map[projects.ProjectType]float64{
	projects.TypeReforestation:    1.2,
	projects.TypeConservation:     1.0,
	projects.TypeSolar:            0.9,
	projects.TypeWind:             0.9,
	projects.TypeMethaneCapture:   1.1,
	projects.TypeEnergyEfficiency: 0.95,
	projects.TypeBiomass:          1.05,
}

// ProjectStore resolves projects for valuation
type ProjectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*projects.Project, error)
}

type Service interface {
	GetValuation(ctx context.Context, projectID uuid.UUID) (*Valuation, error)
	GetPriceRecommendation(ctx context.Context, projectID uuid.UUID) (*Recommendation, error)
	GetMarketTrend(ctx context.Context, tokenID string) (*Trend, error)
	GetPriceHistory(ctx context.Context, tokenID string, days int) ([]PricePoint, error)
}

type valuationService struct {
	repo        Repository
	projectRepo ProjectStore
	logger      *zap.Logger
}

func NewService(repo Repository, projectRepo ProjectStore, logger *zap.Logger) Service {
	return &valuationService{
		repo:        repo,
		projectRepo: projectRepo,
		logger:      logger,
	}
}

// CreditValue estimates the dollar value of one credit from project
// attributes: a base value per ton scaled by methodology, location, project
// size and duration. Rounded to cents.
func CreditValue(project *projects.Project) float64 {
	multiplier, ok := typeMultipliers[project.ProjectType]
	if !ok {
		multiplier = 1.0
	}

	locationPremium := 1.0
	if strings.Contains(strings.ToLower(project.Location), "rainforest") {
		locationPremium = 1.3
	}

	scaleFactor := math.Min(1.0, 0.7+0.3*math.Min(project.Area/1000, 1.0))

	durationYears := 0.0
	if project.StartDate != nil && project.EndDate != nil && project.EndDate.After(*project.StartDate) {
		durationYears = project.EndDate.Sub(*project.StartDate).Hours() / (24 * 365)
	}
	durabilityFactor := math.Min(1.5, 0.8+0.7*math.Min(durationYears/30, 1.0))

	value := baseValuePerTon * multiplier * locationPremium * scaleFactor * durabilityFactor
	return math.Round(value*100) / 100
}

func (s *valuationService) GetValuation(ctx context.Context, projectID uuid.UUID) (*Valuation, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperrors.NotFound("project not found: %s", projectID)
	}

	value := CreditValue(project)
	return &Valuation{
		CreditValue:             value,
		Confidence:              confidence,
		RecommendedInitialPrice: math.Round(value*1.1*100) / 100,
		PriceRange: PriceRange{
			Min: math.Round(value*0.9*100) / 100,
			Max: math.Round(value*1.3*100) / 100,
		},
	}, nil
}

// GetPriceRecommendation blends the model value with the recent market
// average, weighted 70/30 toward the model. Without market data the model
// value stands alone.
func (s *valuationService) GetPriceRecommendation(ctx context.Context, projectID uuid.UUID) (*Recommendation, error) {
	valuation, err := s.GetValuation(ctx, projectID)
	if err != nil {
		return nil, err
	}

	prices, err := s.repo.RecentPrices(ctx, "", 7)
	if err != nil {
		return nil, err
	}

	marketAverage := 0.0
	recommended := valuation.CreditValue
	if len(prices) > 0 {
		marketAverage = mean(prices)
		recommended = valuation.CreditValue*0.7 + marketAverage*0.3
	}

	trend, err := s.GetMarketTrend(ctx, "")
	if err != nil {
		return nil, err
	}

	return &Recommendation{
		RecommendedPrice: math.Round(recommended*100) / 100,
		ModelValue:       valuation.CreditValue,
		MarketAverage:    math.Round(marketAverage*100) / 100,
		Confidence:       valuation.Confidence,
		PriceRange:       valuation.PriceRange,
		MarketTrend:      trend.Direction,
	}, nil
}

// GetMarketTrend compares the last seven days of trade prices against the
// seven days before them. Moves within two percent count as stable.
// Volatility is the coefficient of variation over the full window.
func (s *valuationService) GetMarketTrend(ctx context.Context, tokenID string) (*Trend, error) {
	points, err := s.repo.PricePoints(ctx, tokenID, 14)
	if err != nil {
		return nil, err
	}

	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}

	trend := &Trend{Direction: "stable", SampleSize: len(prices)}
	if len(prices) < 2 {
		return trend, nil
	}

	mid := len(prices) / 2
	earlier := mean(prices[:mid])
	later := mean(prices[mid:])
	if earlier > 0 {
		trend.ChangePercent = math.Round((later-earlier)/earlier*100*100) / 100
	}

	switch {
	case trend.ChangePercent > trendThreshold:
		trend.Direction = "rising"
	case trend.ChangePercent < -trendThreshold:
		trend.Direction = "falling"
	}

	m := mean(prices)
	if m > 0 {
		trend.Volatility = math.Round(stddev(prices, m)/m*10000) / 10000
	}

	return trend, nil
}

func (s *valuationService) GetPriceHistory(ctx context.Context, tokenID string, days int) ([]PricePoint, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	points, err := s.repo.PricePoints(ctx, tokenID, days)
	if err != nil {
		return nil, err
	}
	if points == nil {
		points = []PricePoint{}
	}
	return points, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
