// Package trends detects rising and falling sales categories.
package trends

import (
	"fmt"
	"sort"
	"time"

	"github.com/platewise/storepulse/internal/models"
)

// Classification thresholds. Boundaries are strict: a 10% change is stable.
const (
	directionThreshold = 0.1
	actionThreshold    = 0.2 // strength above which stock recommendations fire
	shiftThreshold     = 0.3
	weekendShare       = 0.4
)

// Store is the slice of the data layer the detector reads from.
type Store interface {
	FindOrders(storeID string, from, to time.Time) ([]models.Order, error)
}

// Config holds the trend detector thresholds.
type Config struct {
	MinDataPoints int
	TrendDays     int
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{MinDataPoints: 10, TrendDays: 30}
}

// Service detects per-category sales trends.
type Service struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// New creates a trend detection service.
func New(store Store, cfg Config) *Service {
	return &Service{store: store, cfg: cfg, now: time.Now}
}

// NewWithClock creates a trend detection service with an injected clock.
func NewWithClock(store Store, cfg Config, now func() time.Time) *Service {
	return &Service{store: store, cfg: cfg, now: now}
}

type categorySeries struct {
	observations []models.SalesObservation
	products     map[string]bool
}

// DetectTrends analyzes every category with enough recent observations and
// returns the analyses sorted by descending strength. Categories with sparse
// history are omitted rather than reported at low confidence.
func (s *Service) DetectTrends(storeID string) ([]models.TrendAnalysis, error) {
	now := s.now()
	orders, err := s.store.FindOrders(storeID, now.AddDate(0, 0, -s.cfg.TrendDays), now)
	if err != nil {
		return nil, fmt.Errorf("failed to read order history: %w", err)
	}

	categories := make(map[string]*categorySeries)
	for _, order := range orders {
		for _, item := range order.Items {
			series, ok := categories[item.Category]
			if !ok {
				series = &categorySeries{products: make(map[string]bool)}
				categories[item.Category] = series
			}
			series.observations = append(series.observations, models.SalesObservation{
				Timestamp: order.CreatedAt,
				Quantity:  item.Quantity,
				UnitPrice: item.Price,
				Revenue:   item.Price * float64(item.Quantity),
			})
			series.products[item.ProductID] = true
		}
	}

	var analyses []models.TrendAnalysis
	for category, series := range categories {
		if len(series.observations) < s.cfg.MinDataPoints {
			continue
		}
		analyses = append(analyses, s.analyzeCategory(category, series))
	}

	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].Strength > analyses[j].Strength
	})
	return analyses, nil
}

func (s *Service) analyzeCategory(category string, series *categorySeries) models.TrendAnalysis {
	obs := series.observations
	sort.Slice(obs, func(i, j int) bool { return obs[i].Timestamp.Before(obs[j].Timestamp) })

	mid := len(obs) / 2
	firstAvg := meanQuantity(obs[:mid])
	secondAvg := meanQuantity(obs[mid:])

	change := 0.0
	if firstAvg != 0 {
		change = (secondAvg - firstAvg) / firstAvg
	}

	direction := models.TrendStable
	if change > directionThreshold {
		direction = models.TrendRising
	} else if change < -directionThreshold {
		direction = models.TrendFalling
	}
	strength := change
	if strength < 0 {
		strength = -strength
	}

	products := make([]string, 0, len(series.products))
	for id := range series.products {
		products = append(products, id)
	}
	sort.Strings(products)

	return models.TrendAnalysis{
		Category:         category,
		Trend:            direction,
		Strength:         strength,
		Timeframe:        fmt.Sprintf("last %d days", s.cfg.TrendDays),
		AffectedProducts: products,
		Factors:          factors(obs, change),
		Recommendations:  recommendations(category, direction, strength),
	}
}

func meanQuantity(obs []models.SalesObservation) float64 {
	if len(obs) == 0 {
		return 0
	}
	var sum float64
	for _, o := range obs {
		sum += float64(o.Quantity)
	}
	return sum / float64(len(obs))
}

func factors(obs []models.SalesObservation, change float64) []string {
	var tags []string

	weekend := 0
	for _, o := range obs {
		switch o.Timestamp.Weekday() {
		case time.Saturday, time.Sunday:
			weekend++
		}
	}
	if float64(weekend)/float64(len(obs)) > weekendShare {
		tags = append(tags, "strong weekend activity")
	}

	if change > shiftThreshold || change < -shiftThreshold {
		tags = append(tags, "significant demand shift")
	}
	return tags
}

func recommendations(category string, direction models.TrendDirection, strength float64) []string {
	switch {
	case direction == models.TrendRising && strength > actionThreshold:
		return []string{
			fmt.Sprintf("Increase stock for %s to meet rising demand", category),
			fmt.Sprintf("Highlight %s prominently on the menu", category),
		}
	case direction == models.TrendFalling && strength > actionThreshold:
		return []string{
			fmt.Sprintf("Reduce stock for %s to limit waste", category),
			fmt.Sprintf("Consider a promotion to revive %s", category),
		}
	default:
		return []string{"Maintain current strategy"}
	}
}
