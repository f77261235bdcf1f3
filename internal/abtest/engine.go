// Package abtest manages the A/B test lifecycle: creation, traffic counting,
// significance analysis, and applying winners.
package abtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/storepulse/internal/logger"
	"github.com/platewise/storepulse/internal/models"
)

// Store is the slice of the data layer the engine reads and writes.
type Store interface {
	SaveTest(test *models.ABTest) error
	GetTest(storeID, testID string) (*models.ABTest, error)
	ListActiveTests(storeID string) ([]*models.ABTest, error)
}

// Applier pushes a winning variant's configuration out to the store.
type Applier interface {
	Apply(storeID string, testType models.TestType, config models.VariantConfig) error
}

// LogApplier records winning configurations in the log. Stands in until the
// serving layer exposes a write path for each config type.
type LogApplier struct{}

// Apply logs the configuration that won.
func (LogApplier) Apply(storeID string, testType models.TestType, config models.VariantConfig) error {
	switch testType {
	case models.TestPrice:
		logger.Info("Store %s: applying winning price %.2f", storeID, config.Price)
	case models.TestRecommendation:
		logger.Info("Store %s: applying winning recommendations %v", storeID, config.Recommendations)
	case models.TestUpsell:
		logger.Info("Store %s: applying winning upsell prompt %q", storeID, config.UpsellPrompt)
	case models.TestMessage:
		logger.Info("Store %s: applying winning message %q", storeID, config.Message)
	default:
		logger.Info("Store %s: no applier for %s tests", storeID, testType)
	}
	return nil
}

// Config holds the engine's decision thresholds.
type Config struct {
	SignificanceThreshold float64
	MinSampleSize         int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{SignificanceThreshold: 0.95, MinSampleSize: 100}
}

// Engine drives A/B tests from draft through completion.
type Engine struct {
	store   Store
	applier Applier
	cfg     Config
	now     func() time.Time
}

// New creates an A/B test engine.
func New(store Store, applier Applier, cfg Config) *Engine {
	return &Engine{store: store, applier: applier, cfg: cfg, now: time.Now}
}

// NewWithClock creates an A/B test engine with an injected clock.
func NewWithClock(store Store, applier Applier, cfg Config, now func() time.Time) *Engine {
	return &Engine{store: store, applier: applier, cfg: cfg, now: now}
}

// CreateTest validates and persists a new test in the draft state. An empty
// ID or sample size is filled in; malformed definitions are rejected before
// anything is written.
func (e *Engine) CreateTest(test *models.ABTest) error {
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	if test.SampleSize <= 0 {
		test.SampleSize = e.cfg.MinSampleSize
	}
	test.Status = models.StatusDraft
	test.Results = nil
	test.EndDate = nil

	if err := test.Validate(); err != nil {
		return err
	}
	return e.store.SaveTest(test)
}

// StartTest moves a draft test to running, resetting all variant counters and
// stamping the start date.
func (e *Engine) StartTest(storeID, testID string) error {
	test, err := e.store.GetTest(storeID, testID)
	if err != nil {
		return err
	}
	if test.Status == models.StatusRunning {
		return nil
	}
	if test.Status == models.StatusCompleted {
		return fmt.Errorf("test %s is already completed", testID)
	}

	for i := range test.Variants {
		test.Variants[i].Sessions = 0
		test.Variants[i].Conversions = 0
		test.Variants[i].Revenue = 0
	}
	test.Status = models.StatusRunning
	test.StartDate = e.now()
	test.EndDate = nil
	test.Results = nil

	return e.store.SaveTest(test)
}

// RecordSession counts one session against a variant. Sessions on tests that
// are not running are dropped.
func (e *Engine) RecordSession(storeID, testID, variantID string) error {
	return e.recordTraffic(storeID, testID, variantID, func(v *models.Variant) {
		v.Sessions++
	})
}

// RecordConversion counts one conversion and its revenue against a variant.
func (e *Engine) RecordConversion(storeID, testID, variantID string, revenue float64) error {
	return e.recordTraffic(storeID, testID, variantID, func(v *models.Variant) {
		v.Conversions++
		v.Revenue += revenue
	})
}

func (e *Engine) recordTraffic(storeID, testID, variantID string, apply func(*models.Variant)) error {
	test, err := e.store.GetTest(storeID, testID)
	if err != nil {
		return err
	}
	if test.Status != models.StatusRunning {
		logger.Debug("Dropping traffic for test %s in state %s", testID, test.Status)
		return nil
	}
	for i := range test.Variants {
		if test.Variants[i].ID == variantID {
			apply(&test.Variants[i])
			return e.store.SaveTest(test)
		}
	}
	return fmt.Errorf("variant %s not found in test %s: %w", variantID, testID, models.ErrNotFound)
}

// AnalyzeActiveTests evaluates every running test with enough samples and
// completes those with a significant winner, applying the winning variant's
// configuration. Returns the tests completed by this pass.
func (e *Engine) AnalyzeActiveTests(storeID string) ([]*models.ABTest, error) {
	tests, err := e.store.ListActiveTests(storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tests: %w", err)
	}

	var completed []*models.ABTest
	for _, test := range tests {
		if test.TotalSessions() < test.SampleSize {
			continue
		}

		results := e.evaluate(test)
		test.Results = results
		test.Confidence = results.Confidence

		if results.Significance {
			now := e.now()
			test.Status = models.StatusCompleted
			test.EndDate = &now
			if winner := variantByID(test, results.Winner); winner != nil {
				if err := e.applier.Apply(storeID, test.Type, winner.Config); err != nil {
					logger.Warn("Failed to apply winning config for test %s: %v", test.ID, err)
				}
			}
			completed = append(completed, test)
		}

		if err := e.store.SaveTest(test); err != nil {
			logger.Error("Failed to persist analysis for test %s: %v", test.ID, err)
		}
	}
	return completed, nil
}

// evaluate compares every non-control variant against the control and picks
// the candidate whose improvement and confidence both beat the running best.
func (e *Engine) evaluate(test *models.ABTest) *models.TestResults {
	control := test.Control()
	if control == nil {
		return &models.TestResults{Recommendation: "Test has no control variant"}
	}

	controlRate := 0.0
	if control.Sessions > 0 {
		controlRate = float64(control.Conversions) / float64(control.Sessions)
	}

	var (
		winner          *models.Variant
		bestImprovement float64
		bestConfidence  float64
	)
	for i := range test.Variants {
		v := &test.Variants[i]
		if v.IsControl || v.Sessions == 0 {
			continue
		}

		confidence := zConfidence(control.Conversions, control.Sessions, v.Conversions, v.Sessions)
		rate := float64(v.Conversions) / float64(v.Sessions)
		improvement := 0.0
		if controlRate > 0 {
			improvement = (rate - controlRate) / controlRate
		}

		if improvement > bestImprovement && confidence > bestConfidence {
			winner = v
			bestImprovement = improvement
			bestConfidence = confidence
		}
	}

	results := &models.TestResults{
		Confidence:   bestConfidence,
		Lift:         bestImprovement * 100,
		Significance: winner != nil && bestConfidence >= e.cfg.SignificanceThreshold,
	}
	switch {
	case winner == nil:
		results.Recommendation = "No variant outperforms the control"
	case results.Significance:
		results.Winner = winner.ID
		low, high := wilsonInterval(winner.Conversions, winner.Sessions)
		results.Recommendation = fmt.Sprintf(
			"Adopt %s: %.1f%% lift, conversion 95%% CI %.1f%%-%.1f%%",
			winner.Name, results.Lift, low*100, high*100)
	default:
		results.Winner = winner.ID
		results.Recommendation = fmt.Sprintf(
			"%s leads with %.1f%% lift but confidence %.2f is below threshold, keep collecting",
			winner.Name, results.Lift, bestConfidence)
	}
	return results
}

func variantByID(test *models.ABTest, id string) *models.Variant {
	for i := range test.Variants {
		if test.Variants[i].ID == id {
			return &test.Variants[i]
		}
	}
	return nil
}
