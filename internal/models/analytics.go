package models

// ForecastFactors are the dimensionless signals a demand forecast was built from.
type ForecastFactors struct {
	Historical float64 `json:"historical"`
	Seasonal   float64 `json:"seasonal"`
	Weather    float64 `json:"weather"`
	Trend      float64 `json:"trend"`
}

// DemandForecast is a computed demand prediction for a single product.
// It is a view, never persisted.
type DemandForecast struct {
	ProductID        string          `json:"product_id"`
	ForecastedDemand int             `json:"forecasted_demand"`
	Confidence       float64         `json:"confidence"`
	Factors          ForecastFactors `json:"factors"`
	Timeframe        string          `json:"timeframe"`
	Recommendations  []string        `json:"recommendations"`
}

// PriceImpact estimates the effect of moving to the optimized price.
type PriceImpact struct {
	SalesIncrease float64 `json:"sales_increase"` // percent
	RevenueChange float64 `json:"revenue_change"` // currency
	MarginChange  float64 `json:"margin_change"`  // percent
}

// PriceOptimization is a computed price recommendation for a single product.
type PriceOptimization struct {
	ProductID      string      `json:"product_id"`
	CurrentPrice   float64     `json:"current_price"`
	OptimizedPrice float64     `json:"optimized_price"`
	ExpectedImpact PriceImpact `json:"expected_impact"`
	Confidence     float64     `json:"confidence"`
	Reasoning      []string    `json:"reasoning"`
}

// TrendDirection classifies the movement of a category's sales.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
)

// TrendAnalysis is a computed per-category trend summary.
type TrendAnalysis struct {
	Category         string         `json:"category"`
	Trend            TrendDirection `json:"trend"`
	Strength         float64        `json:"strength"`
	Timeframe        string         `json:"timeframe"`
	AffectedProducts []string       `json:"affected_products"`
	Factors          []string       `json:"factors"`
	Recommendations  []string       `json:"recommendations"`
}
