package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/platewise/storepulse/internal/logger"
	"github.com/platewise/storepulse/internal/models"
)

// Elasticity bands driving the price recommendation.
const (
	inelasticLower = -1.5 // elasticity above this (and below upper) tolerates a raise
	inelasticUpper = -0.5
	highlyElastic  = -2.0 // elasticity below this calls for a cut

	raiseFactor = 1.05
	cutFactor   = 0.95

	// UnitElasticity is the default when history cannot support an estimate:
	// demand assumed to fall one-for-one with price.
	UnitElasticity = -1.0
)

// ProductStore is the slice of the data layer the optimizer reads from.
type ProductStore interface {
	FindProduct(productID string) (*models.Product, error)
}

// SalesReader supplies per-product sales history.
type SalesReader interface {
	HistoricalSales(storeID, productID string, windowDays int) ([]models.SalesObservation, error)
}

// Config holds the price optimizer thresholds.
type Config struct {
	MinDataPoints int
	HistoryDays   int
	Channel       string // price channel used as the current price
}

// DefaultConfig returns the optimizer defaults.
func DefaultConfig() Config {
	return Config{
		MinDataPoints: 10,
		HistoryDays:   90,
		Channel:       "phone",
	}
}

// Service computes price optimizations.
type Service struct {
	products ProductStore
	sales    SalesReader
	market   MarketDataProvider
	cfg      Config
}

// New creates a pricing service.
func New(products ProductStore, sales SalesReader, market MarketDataProvider, cfg Config) *Service {
	return &Service{products: products, sales: sales, market: market, cfg: cfg}
}

// Elasticity computes price elasticity from consecutive (price, sales) pairs:
// the mean of %ΔSales / %ΔPrice over pairs with a non-zero price change.
// Defaults to UnitElasticity with fewer than 2 points or no valid pairs.
func Elasticity(history []models.SalesObservation) float64 {
	if len(history) < 2 {
		return UnitElasticity
	}

	var sum float64
	pairs := 0
	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1], history[i]
		if prev.UnitPrice == 0 || prev.Quantity == 0 {
			continue
		}
		priceChange := (cur.UnitPrice - prev.UnitPrice) / prev.UnitPrice
		if priceChange == 0 {
			continue
		}
		salesChange := float64(cur.Quantity-prev.Quantity) / float64(prev.Quantity)
		sum += salesChange / priceChange
		pairs++
	}
	if pairs == 0 {
		return UnitElasticity
	}
	return sum / float64(pairs)
}

// OptimizePrice recommends a price for a product. Returns (nil, nil) when the
// product does not exist, has no priced variation, or the sales history is
// shorter than MinDataPoints: "cannot optimize yet", not a failure.
func (s *Service) OptimizePrice(storeID, productID string) (*models.PriceOptimization, error) {
	product, err := s.products.FindProduct(productID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	currentPrice := product.DefaultPrice(s.cfg.Channel)
	if currentPrice == 0 {
		return nil, nil
	}

	history, err := s.sales.HistoricalSales(storeID, productID, s.cfg.HistoryDays)
	if err != nil {
		return nil, err
	}
	if len(history) < s.cfg.MinDataPoints {
		return nil, nil
	}

	elasticity := Elasticity(history)

	market, err := s.market.CompetitivePrice(storeID, productID, currentPrice)
	if err != nil {
		// Missing market signal degrades to "no competitive pressure".
		logger.Warn("Failed to read market data for %s/%s: %v", storeID, productID, err)
		market = MarketData{Average: currentPrice, Position: PositionCompetitive}
	}

	optimized := currentPrice
	switch {
	case elasticity > inelasticLower && elasticity < inelasticUpper:
		optimized = currentPrice * raiseFactor
	case elasticity < highlyElastic:
		optimized = currentPrice * cutFactor
	}

	if market.Position == PositionPremium && currentPrice-market.Average > 2 {
		if ceiling := market.Average + 1; optimized > ceiling {
			optimized = ceiling
		}
	}
	optimized = math.Round(optimized*100) / 100

	priceChangeRatio := 0.0
	if currentPrice > 0 {
		priceChangeRatio = (optimized - currentPrice) / currentPrice
	}
	salesChange := elasticity * priceChangeRatio
	avgSales := meanQuantity(history)
	newSales := avgSales * (1 + salesChange)
	revenueChange := newSales*optimized - avgSales*currentPrice

	confidence := optimizationConfidence(len(history), elasticity, market.Position)

	return &models.PriceOptimization{
		ProductID:      productID,
		CurrentPrice:   currentPrice,
		OptimizedPrice: optimized,
		ExpectedImpact: models.PriceImpact{
			SalesIncrease: salesChange * 100,
			RevenueChange: revenueChange,
			MarginChange:  priceChangeRatio * 100,
		},
		Confidence: confidence,
		Reasoning:  reasoning(currentPrice, optimized, elasticity, revenueChange, market),
	}, nil
}

func meanQuantity(history []models.SalesObservation) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, obs := range history {
		sum += float64(obs.Quantity)
	}
	return sum / float64(len(history))
}

func optimizationConfidence(points int, elasticity float64, position string) float64 {
	confidence := 0.3
	if points >= 5 {
		confidence += 0.2
	}
	if points >= 10 {
		confidence += 0.2
	}
	if math.Abs(elasticity-UnitElasticity) < 0.5 {
		confidence += 0.2
	}
	if position == PositionCompetitive {
		confidence += 0.1
	}
	return math.Min(confidence, 0.9)
}

func reasoning(current, optimized, elasticity, revenueChange float64, market MarketData) []string {
	var reasons []string

	changePct := 0.0
	if current > 0 {
		changePct = (optimized - current) / current * 100
	}
	switch {
	case optimized > current:
		reasons = append(reasons, fmt.Sprintf(
			"Demand is relatively inelastic (%.2f); a %.1f%% increase should hold sales volume", elasticity, changePct))
	case optimized < current:
		reasons = append(reasons, fmt.Sprintf(
			"Demand is highly elastic (%.2f); a %.1f%% cut should recover volume", elasticity, -changePct))
	default:
		reasons = append(reasons, "Current price is already near optimal for the observed elasticity")
	}

	switch {
	case revenueChange > 0:
		reasons = append(reasons, fmt.Sprintf("Expected revenue gain of %.2f over the forecast window", revenueChange))
	case revenueChange < 0:
		reasons = append(reasons, fmt.Sprintf("Expected revenue dip of %.2f, traded for volume", -revenueChange))
	}

	if market.Position == PositionPremium {
		reasons = append(reasons, fmt.Sprintf(
			"Premium position vs market average %.2f; recommendation capped to stay competitive", market.Average))
	}

	return reasons
}
