package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/platewise/storepulse/internal/logger"
	"github.com/platewise/storepulse/internal/models"
)

// Factor weights of the multiplicative demand model.
const (
	seasonalWeight = 0.3
	trendWeight    = 0.4
	weatherWeight  = 0.2

	weatherBoost = 0.3 // factor for products on the active weather list

	baselineWindow = 7 // observations feeding the base demand
)

// Config holds the forecaster thresholds.
type Config struct {
	MinDataPoints     int // below this, no forecast is produced
	SeasonalMinPoints int // below this, the seasonal factor is 0
	TrendWindow       int // points per half of the trend comparison
	HistoryDays       int // trailing window read from the order log
}

// DefaultConfig returns the forecaster defaults.
func DefaultConfig() Config {
	return Config{
		MinDataPoints:     10,
		SeasonalMinPoints: 14,
		TrendWindow:       14,
		HistoryDays:       90,
	}
}

// Service computes demand forecasts for a store's products.
type Service struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// New creates a forecast service.
func New(store Store, cfg Config) *Service {
	return &Service{store: store, cfg: cfg, now: time.Now}
}

// NewWithClock creates a forecast service with an injected clock, for tests.
func NewWithClock(store Store, cfg Config, now func() time.Time) *Service {
	return &Service{store: store, cfg: cfg, now: now}
}

// SeasonalFactor returns the relative deviation of the current weekday's mean
// quantity from the overall mean: (dayAvg - overallAvg) / overallAvg.
// Returns 0 for short series or a zero overall mean.
func (s *Service) SeasonalFactor(series []models.SalesObservation) float64 {
	return seasonalFactor(series, s.now().Weekday(), s.cfg.SeasonalMinPoints)
}

func seasonalFactor(series []models.SalesObservation, day time.Weekday, minPoints int) float64 {
	if len(series) < minPoints {
		return 0
	}

	var overallSum float64
	var daySum float64
	dayCount := 0
	for _, obs := range series {
		overallSum += float64(obs.Quantity)
		if obs.Timestamp.Weekday() == day {
			daySum += float64(obs.Quantity)
			dayCount++
		}
	}

	overallAvg := overallSum / float64(len(series))
	if overallAvg == 0 || dayCount == 0 {
		return 0
	}
	dayAvg := daySum / float64(dayCount)
	return (dayAvg - overallAvg) / overallAvg
}

// TrendFactor compares the mean quantity of the most recent trend window
// against the preceding window: (recentAvg - olderAvg) / olderAvg.
// Returns 0 for fewer than 5 points or a zero older mean.
func (s *Service) TrendFactor(series []models.SalesObservation) float64 {
	return trendFactor(series, s.cfg.TrendWindow)
}

func trendFactor(series []models.SalesObservation, window int) float64 {
	if len(series) < 5 {
		return 0
	}

	recentStart := len(series) - window
	if recentStart < 0 {
		recentStart = 0
	}
	olderStart := recentStart - window
	if olderStart < 0 {
		olderStart = 0
	}

	recentAvg := meanQuantity(series[recentStart:])
	older := series[olderStart:recentStart]
	if len(older) == 0 {
		return 0
	}
	olderAvg := meanQuantity(older)
	if olderAvg == 0 {
		return 0
	}
	return (recentAvg - olderAvg) / olderAvg
}

func meanQuantity(series []models.SalesObservation) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, obs := range series {
		sum += float64(obs.Quantity)
	}
	return sum / float64(len(series))
}

// quantityVariance computes the population variance of quantities with
// Welford's algorithm.
func quantityVariance(series []models.SalesObservation) float64 {
	if len(series) < 2 {
		return 0
	}
	var count int
	var mean, m2 float64
	for _, obs := range series {
		count++
		q := float64(obs.Quantity)
		delta := q - mean
		mean += delta / float64(count)
		m2 += delta * (q - mean)
	}
	return m2 / float64(count)
}

// ForecastDemand predicts demand for a product over the coming days.
// Returns (nil, nil) when the history holds fewer than MinDataPoints
// observations: "cannot forecast yet", not a failure.
func (s *Service) ForecastDemand(storeID, productID string, days int) (*models.DemandForecast, error) {
	history, err := s.HistoricalSales(storeID, productID, s.cfg.HistoryDays)
	if err != nil {
		return nil, err
	}
	if len(history) < s.cfg.MinDataPoints {
		return nil, nil
	}

	baseStart := len(history) - baselineWindow
	if baseStart < 0 {
		baseStart = 0
	}
	baseDemand := meanQuantity(history[baseStart:])

	seasonal := s.SeasonalFactor(history)
	trend := s.TrendFactor(history)

	weather := 0.0
	active, err := s.store.FindActiveWeatherProducts(storeID)
	if err != nil {
		// Missing weather signal degrades to zero impact.
		logger.Warn("Failed to read weather products for store %s: %v", storeID, err)
	} else if active[productID] {
		weather = weatherBoost
	}

	raw := baseDemand *
		(1 + seasonalWeight*seasonal) *
		(1 + trendWeight*trend) *
		(1 + weatherWeight*weather)
	forecast := int(math.Round(raw))
	if forecast < 0 {
		// Factors below -1/weight would flip the sign; demand never goes negative.
		forecast = 0
	}

	confidence := forecastConfidence(history, seasonal, trend)
	recommendations := forecastRecommendations(baseDemand, float64(forecast), confidence)

	return &models.DemandForecast{
		ProductID:        productID,
		ForecastedDemand: forecast,
		Confidence:       confidence,
		Factors: models.ForecastFactors{
			Historical: baseDemand,
			Seasonal:   seasonal,
			Weather:    weather,
			Trend:      trend,
		},
		Timeframe:       fmt.Sprintf("next %d days", days),
		Recommendations: recommendations,
	}, nil
}

func forecastConfidence(history []models.SalesObservation, seasonal, trend float64) float64 {
	confidence := 0.5
	if len(history) >= 30 {
		confidence += 0.2
	}
	if len(history) >= 60 {
		confidence += 0.1
	}
	if math.Abs(seasonal) < 0.2 {
		confidence += 0.1
	}
	if math.Abs(trend) < 0.3 {
		confidence += 0.1
	}
	if quantityVariance(history) < 2 {
		confidence += 0.1
	}
	return math.Min(confidence, 0.95)
}

func forecastRecommendations(baseDemand, forecast, confidence float64) []string {
	var recs []string

	change := 0.0
	if baseDemand > 0 {
		change = (forecast - baseDemand) / baseDemand
	}

	switch {
	case change > 0.2 && confidence > 0.7:
		recs = append(recs,
			"Increase stock to cover the forecasted demand spike",
			"Consider a promotion to capture the elevated demand")
	case change < -0.2 && confidence > 0.7:
		recs = append(recs,
			"Reduce stock to limit waste during the forecasted dip",
			"Run a promotion to stimulate demand")
	}
	if confidence < 0.5 {
		recs = append(recs, "Insufficient data, keep monitoring")
	}
	return recs
}
