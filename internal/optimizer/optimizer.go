// Package optimizer runs the per-store real-time optimization loop.
package optimizer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/storepulse/internal/logger"
	"github.com/platewise/storepulse/internal/models"
	"github.com/platewise/storepulse/internal/telegram"
)

// Store is the slice of the data layer the loop reads and writes.
type Store interface {
	FindOrders(storeID string, from, to time.Time) ([]models.Order, error)
	CountCallLogs(storeID string, since time.Time) (int, error)
	FindActiveWeatherProducts(storeID string) (map[string]bool, error)
	GetOptimizationRules(storeID string) ([]models.OptimizationRule, error)
	SaveOptimizationRules(storeID string, rules []models.OptimizationRule) error
	ListActiveTests(storeID string) ([]*models.ABTest, error)
	AddSnapshot(snapshot *models.MetricsSnapshot) error
}

// TestEngine is the A/B test surface the loop drives each tick.
type TestEngine interface {
	CreateTest(test *models.ABTest) error
	StartTest(storeID, testID string) error
	AnalyzeActiveTests(storeID string) ([]*models.ABTest, error)
}

// RuleLearner tunes predictive rules from sampled performance.
type RuleLearner interface {
	LearnAndImprove(storeID string) ([]models.PredictiveRule, error)
}

// Config holds the loop thresholds.
type Config struct {
	TickInterval      time.Duration
	MetricsWindow     time.Duration
	MinConversionRate float64
	MinAvgOrderValue  float64
	MaxBounceRate     float64

	// LearnInterval is the number of ticks between rule-learning passes.
	LearnInterval int
}

// DefaultConfig returns the loop defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:      60 * time.Second,
		MetricsWindow:     time.Hour,
		MinConversionRate: 0.05,
		MinAvgOrderValue:  15.0,
		MaxBounceRate:     0.7,
		LearnInterval:     60,
	}
}

// Optimizer is the real-time optimization loop for a single store. Start and
// Stop are safe to call repeatedly; ticks never overlap, a tick due while the
// previous one still runs is skipped.
type Optimizer struct {
	storeID   string
	store     Store
	engine    TestEngine
	learner   RuleLearner
	notifier  telegram.Notifier
	estimator SessionEstimator
	cfg       Config
	now       func() time.Time

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	busy      atomic.Bool
	tickCount int

	consecutiveFailures int
}

// New creates an optimizer for one store.
func New(storeID string, store Store, engine TestEngine, learner RuleLearner,
	notifier telegram.Notifier, estimator SessionEstimator, cfg Config) *Optimizer {
	return &Optimizer{
		storeID:   storeID,
		store:     store,
		engine:    engine,
		learner:   learner,
		notifier:  notifier,
		estimator: estimator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start launches the loop. A second Start while running is a no-op.
func (o *Optimizer) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.done = make(chan struct{})

	logger.Info("Starting optimization loop for store %s (interval: %v)", o.storeID, o.cfg.TickInterval)
	go o.run(ctx, o.done)
}

// Stop cancels the loop and waits for any in-flight tick to finish. Calling
// Stop when not running is a no-op.
func (o *Optimizer) Stop() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.cancel = nil
	o.done = nil
	o.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.Info("Stopped optimization loop for store %s", o.storeID)
}

func (o *Optimizer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	o.handleTickResult(o.tick())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.handleTickResult(o.tick())
		}
	}
}

// handleTickResult tracks consecutive failures and alerts on the first
// failure of a sequence and on recovery.
func (o *Optimizer) handleTickResult(err error) {
	if err != nil {
		o.consecutiveFailures++
		logger.Error("Optimization tick failed for store %s: %v", o.storeID, err)
		if o.consecutiveFailures == 1 {
			if sendErr := o.notifier.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification: %v", sendErr)
			}
		}
		return
	}
	if o.consecutiveFailures > 0 {
		if sendErr := o.notifier.SendRecovery(o.consecutiveFailures); sendErr != nil {
			logger.Warn("Failed to send recovery notification: %v", sendErr)
		}
	}
	o.consecutiveFailures = 0
}

// tick runs one optimization pass. Steps after metrics collection absorb
// their own failures so one bad dependency cannot abort the pass.
func (o *Optimizer) tick() error {
	if !o.busy.CompareAndSwap(false, true) {
		logger.Warn("Skipping optimization tick for store %s: previous tick still running", o.storeID)
		return nil
	}
	defer o.busy.Store(false)

	now := o.now()
	o.tickCount++
	logger.Debug("Starting optimization tick %d for store %s", o.tickCount, o.storeID)

	metrics, err := o.collectMetrics(now)
	if err != nil {
		return err
	}

	completed, err := o.engine.AnalyzeActiveTests(o.storeID)
	if err != nil {
		logger.Error("Failed to analyze active tests for store %s: %v", o.storeID, err)
	}
	for _, test := range completed {
		logger.Info("Test %s completed for store %s: %s", test.ID, o.storeID, test.Results.Recommendation)
		if err := o.notifier.AnnounceWinner(o.storeID, test); err != nil {
			logger.Warn("Failed to announce test winner: %v", err)
		}
	}

	o.evaluateRules(metrics, now)
	o.detectOpportunities(metrics)

	if o.cfg.LearnInterval > 0 && o.tickCount%o.cfg.LearnInterval == 0 {
		if _, err := o.learner.LearnAndImprove(o.storeID); err != nil {
			logger.Error("Rule learning failed for store %s: %v", o.storeID, err)
		}
	}

	snapshot := &models.MetricsSnapshot{
		ID:        uuid.NewString(),
		StoreID:   o.storeID,
		Timestamp: now,
		Metrics:   metrics,
	}
	if active, err := o.store.ListActiveTests(o.storeID); err == nil {
		for _, test := range active {
			snapshot.Tests = append(snapshot.Tests, test.ID)
		}
	}
	if err := o.store.AddSnapshot(snapshot); err != nil {
		logger.Error("Failed to persist metrics snapshot for store %s: %v", o.storeID, err)
	}

	logger.Debug("Optimization tick complete for store %s (conversion: %.3f, sessions: %d)",
		o.storeID, metrics.ConversionRate, metrics.SessionCount)
	return nil
}

// evaluateRules checks every active optimization rule against the current
// metrics and fires the ones whose trigger conditions hold.
func (o *Optimizer) evaluateRules(metrics models.Metrics, now time.Time) {
	rules, err := o.store.GetOptimizationRules(o.storeID)
	if err != nil {
		logger.Error("Failed to load optimization rules for store %s: %v", o.storeID, err)
		return
	}
	if len(rules) == 0 {
		return
	}

	fired := 0
	for i := range rules {
		rule := &rules[i]
		if !rule.IsActive || !o.ruleTriggered(rule, metrics, now) {
			continue
		}

		rule.Performance.TotalTriggers++
		fired++
		logger.Info("Optimization rule %q triggered for store %s (action: %s)", rule.Name, o.storeID, rule.Action)
		if err := o.notifier.AlertRuleTriggered(o.storeID, *rule); err != nil {
			logger.Warn("Failed to send rule alert: %v", err)
		}
	}

	if fired > 0 {
		if err := o.store.SaveOptimizationRules(o.storeID, rules); err != nil {
			logger.Error("Failed to persist optimization rules for store %s: %v", o.storeID, err)
		}
	}
}

func (o *Optimizer) ruleTriggered(rule *models.OptimizationRule, metrics models.Metrics, now time.Time) bool {
	c := rule.Conditions
	switch rule.Trigger {
	case models.TriggerTimeBased:
		hour := now.Hour()
		if c.HourFrom <= c.HourTo {
			return hour >= c.HourFrom && hour < c.HourTo
		}
		// Overnight window, e.g. 22-6.
		return hour >= c.HourFrom || hour < c.HourTo
	case models.TriggerPerformanceBased:
		if c.MaxConversionRate > 0 && metrics.ConversionRate < c.MaxConversionRate {
			return true
		}
		return c.MaxAvgOrderValue > 0 && metrics.AvgOrderValue < c.MaxAvgOrderValue
	case models.TriggerTrafficBased:
		if metrics.SessionCount < c.MinSessionCount {
			return false
		}
		return c.MinConversionRate == 0 || metrics.ConversionRate >= c.MinConversionRate
	case models.TriggerWeatherBased:
		active, err := o.store.FindActiveWeatherProducts(o.storeID)
		if err != nil {
			logger.Warn("Failed to read weather products for store %s: %v", o.storeID, err)
			return false
		}
		return len(active) > 0
	default:
		return false
	}
}
