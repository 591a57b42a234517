package valuation

import "time"

// PriceRange bounds a valuation estimate
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Valuation is a model-derived estimate of a project's credit value
type Valuation struct {
	CreditValue             float64    `json:"credit_value"`
	Confidence              float64    `json:"confidence"`
	RecommendedInitialPrice float64    `json:"recommended_initial_price"`
	PriceRange              PriceRange `json:"price_range"`
}

// PricePoint is a daily average trade price
type PricePoint struct {
	Day   time.Time `db:"day" json:"day"`
	Price float64   `db:"price" json:"price"`
}

// Recommendation blends the valuation model with observed market prices
type Recommendation struct {
	RecommendedPrice float64    `json:"recommended_price"`
	ModelValue       float64    `json:"model_value"`
	MarketAverage    float64    `json:"market_average"`
	Confidence       float64    `json:"confidence"`
	PriceRange       PriceRange `json:"price_range"`
	MarketTrend      string     `json:"market_trend"`
}

// Trend summarizes recent market movement for a token
type Trend struct {
	Direction     string  `json:"direction"` // rising, falling or stable
	ChangePercent float64 `json:"change_percent"`
	Volatility    float64 `json:"volatility"`
	SampleSize    int     `json:"sample_size"`
}
