package optimizer

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/platewise/storepulse/internal/models"
)

type fakeStore struct {
	orders      []models.Order
	callCount   int
	weather     map[string]bool
	rules       []models.OptimizationRule
	savedRules  []models.OptimizationRule
	activeTests []*models.ABTest
	snapshots   []*models.MetricsSnapshot
	findOrdersN int
	ordersErr   error
}

func (f *fakeStore) FindOrders(storeID string, from, to time.Time) ([]models.Order, error) {
	f.findOrdersN++
	return f.orders, f.ordersErr
}

func (f *fakeStore) CountCallLogs(storeID string, since time.Time) (int, error) {
	return f.callCount, nil
}

func (f *fakeStore) FindActiveWeatherProducts(storeID string) (map[string]bool, error) {
	return f.weather, nil
}

func (f *fakeStore) GetOptimizationRules(storeID string) ([]models.OptimizationRule, error) {
	return f.rules, nil
}

func (f *fakeStore) SaveOptimizationRules(storeID string, rules []models.OptimizationRule) error {
	f.savedRules = rules
	return nil
}

func (f *fakeStore) ListActiveTests(storeID string) ([]*models.ABTest, error) {
	return f.activeTests, nil
}

func (f *fakeStore) AddSnapshot(snapshot *models.MetricsSnapshot) error {
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

type fakeEngine struct {
	created   []*models.ABTest
	started   []string
	completed []*models.ABTest
}

func (f *fakeEngine) CreateTest(test *models.ABTest) error {
	f.created = append(f.created, test)
	return nil
}

func (f *fakeEngine) StartTest(storeID, testID string) error {
	f.started = append(f.started, testID)
	return nil
}

func (f *fakeEngine) AnalyzeActiveTests(storeID string) ([]*models.ABTest, error) {
	return f.completed, nil
}

type fakeLearner struct {
	calls int
}

func (f *fakeLearner) LearnAndImprove(storeID string) ([]models.PredictiveRule, error) {
	f.calls++
	return nil, nil
}

type recordingNotifier struct {
	alerts     []models.OptimizationRule
	winners    []*models.ABTest
	errors     []error
	recoveries []int
}

func (r *recordingNotifier) AlertRuleTriggered(storeID string, rule models.OptimizationRule) error {
	r.alerts = append(r.alerts, rule)
	return nil
}

func (r *recordingNotifier) AnnounceWinner(storeID string, test *models.ABTest) error {
	r.winners = append(r.winners, test)
	return nil
}

func (r *recordingNotifier) SendError(err error) error {
	r.errors = append(r.errors, err)
	return nil
}

func (r *recordingNotifier) SendRecovery(n int) error {
	r.recoveries = append(r.recoveries, n)
	return nil
}

type fixedEstimator struct {
	estimate SessionEstimate
}

func (f *fixedEstimator) Estimate(storeID string, at time.Time) SessionEstimate {
	return f.estimate
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
}

func orderAt(total float64, at time.Time) models.Order {
	return models.Order{ID: "o-1", StoreID: "store-1", Total: total, CreatedAt: at}
}

func healthyConfig() Config {
	cfg := DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond
	return cfg
}

func newTestOptimizer(store *fakeStore, engine *fakeEngine, learner *fakeLearner,
	notifier *recordingNotifier, est SessionEstimate, cfg Config) *Optimizer {
	o := New("store-1", store, engine, learner, notifier, &fixedEstimator{estimate: est}, cfg)
	o.now = fixedNow
	return o
}

func TestCollectMetrics(t *testing.T) {
	now := fixedNow()
	store := &fakeStore{
		orders: []models.Order{
			orderAt(20, now.Add(-10*time.Minute)),
			orderAt(30, now.Add(-20*time.Minute)),
		},
		callCount: 10,
	}
	o := newTestOptimizer(store, &fakeEngine{}, &fakeLearner{}, &recordingNotifier{},
		SessionEstimate{BaselineSessions: 40, BounceRate: 0.5, Satisfaction: 4.0}, healthyConfig())

	metrics, err := o.collectMetrics(now)
	if err != nil {
		t.Fatalf("collectMetrics failed: %v", err)
	}
	if metrics.SessionCount != 50 {
		t.Errorf("Expected 50 sessions (10 calls + 40 baseline), got %d", metrics.SessionCount)
	}
	// 2 orders / 50 sessions
	if math.Abs(metrics.ConversionRate-0.04) > 1e-9 {
		t.Errorf("Expected conversion rate 0.04, got %v", metrics.ConversionRate)
	}
	if metrics.AvgOrderValue != 25 {
		t.Errorf("Expected avg order value 25, got %v", metrics.AvgOrderValue)
	}
	if metrics.Revenue != 50 {
		t.Errorf("Expected revenue 50, got %v", metrics.Revenue)
	}
	if metrics.BounceRate != 0.5 {
		t.Errorf("Expected estimator bounce rate, got %v", metrics.BounceRate)
	}
}

func TestCollectMetrics_NoTraffic(t *testing.T) {
	store := &fakeStore{}
	o := newTestOptimizer(store, &fakeEngine{}, &fakeLearner{}, &recordingNotifier{},
		SessionEstimate{}, healthyConfig())

	metrics, err := o.collectMetrics(fixedNow())
	if err != nil {
		t.Fatalf("collectMetrics failed: %v", err)
	}
	if metrics.ConversionRate != 0 || metrics.AvgOrderValue != 0 {
		t.Errorf("Expected zero metrics without traffic, got %+v", metrics)
	}
}

func TestTick_PersistsSnapshotWithActiveTests(t *testing.T) {
	store := &fakeStore{
		activeTests: []*models.ABTest{{ID: "t-1", Status: models.StatusRunning}},
	}
	completed := &models.ABTest{
		ID:      "t-2",
		Results: &models.TestResults{Winner: "v-1", Recommendation: "Adopt v-1"},
	}
	engine := &fakeEngine{completed: []*models.ABTest{completed}}
	notifier := &recordingNotifier{}
	// Healthy metrics so no automatic tests launch.
	o := newTestOptimizer(store, engine, &fakeLearner{}, notifier,
		SessionEstimate{BaselineSessions: 100, BounceRate: 0.2}, Config{
			TickInterval:      time.Minute,
			MetricsWindow:     time.Hour,
			MinConversionRate: 0,
			MinAvgOrderValue:  0,
			MaxBounceRate:     0.7,
		})

	if err := o.tick(); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if len(store.snapshots) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(store.snapshots))
	}
	snap := store.snapshots[0]
	if snap.ID == "" || snap.StoreID != "store-1" {
		t.Errorf("Malformed snapshot: %+v", snap)
	}
	if len(snap.Tests) != 1 || snap.Tests[0] != "t-1" {
		t.Errorf("Expected active test IDs on the snapshot, got %v", snap.Tests)
	}
	if len(notifier.winners) != 1 || notifier.winners[0].ID != "t-2" {
		t.Errorf("Expected completed test announced, got %+v", notifier.winners)
	}
}

func TestTick_SkippedWhileBusy(t *testing.T) {
	store := &fakeStore{}
	o := newTestOptimizer(store, &fakeEngine{}, &fakeLearner{}, &recordingNotifier{},
		SessionEstimate{}, healthyConfig())

	o.busy.Store(true)
	if err := o.tick(); err != nil {
		t.Fatalf("Skipped tick must not fail: %v", err)
	}
	if store.findOrdersN != 0 {
		t.Error("Busy optimizer must skip the tick entirely")
	}
}

func TestTick_RunsLearnerOnInterval(t *testing.T) {
	learner := &fakeLearner{}
	cfg := healthyConfig()
	cfg.LearnInterval = 2
	o := newTestOptimizer(&fakeStore{}, &fakeEngine{}, learner, &recordingNotifier{},
		SessionEstimate{BaselineSessions: 100}, cfg)

	for i := 0; i < 4; i++ {
		if err := o.tick(); err != nil {
			t.Fatalf("tick failed: %v", err)
		}
	}
	if learner.calls != 2 {
		t.Errorf("Expected 2 learning passes over 4 ticks, got %d", learner.calls)
	}
}

func TestHandleTickResult_FailureAndRecovery(t *testing.T) {
	notifier := &recordingNotifier{}
	o := newTestOptimizer(&fakeStore{}, &fakeEngine{}, &fakeLearner{}, notifier,
		SessionEstimate{}, healthyConfig())

	tickErr := errors.New("db unavailable")
	o.handleTickResult(tickErr)
	o.handleTickResult(tickErr)
	if len(notifier.errors) != 1 {
		t.Errorf("Expected one error notification for a failure sequence, got %d", len(notifier.errors))
	}

	o.handleTickResult(nil)
	if len(notifier.recoveries) != 1 || notifier.recoveries[0] != 2 {
		t.Errorf("Expected recovery after 2 failures, got %v", notifier.recoveries)
	}

	o.handleTickResult(nil)
	if len(notifier.recoveries) != 1 {
		t.Error("Recovery must only be sent once per failure sequence")
	}
}

func TestDetectOpportunities_LaunchesTests(t *testing.T) {
	store := &fakeStore{}
	engine := &fakeEngine{}
	o := newTestOptimizer(store, engine, &fakeLearner{}, &recordingNotifier{},
		SessionEstimate{}, healthyConfig())

	// Everything weak: conversion 0.01, AOV 10, bounce 0.9.
	o.detectOpportunities(models.Metrics{ConversionRate: 0.01, AvgOrderValue: 10, BounceRate: 0.9})

	if len(engine.created) != 3 {
		t.Fatalf("Expected 3 automatic tests, got %d", len(engine.created))
	}
	types := map[models.TestType]bool{}
	for _, test := range engine.created {
		types[test.Type] = true
		if len(test.Variants) != 2 {
			t.Errorf("Expected two-variant template, got %d variants", len(test.Variants))
		}
		if test.Variants[0].Traffic != 50 || test.Variants[1].Traffic != 50 {
			t.Errorf("Expected a 50/50 split, got %v/%v", test.Variants[0].Traffic, test.Variants[1].Traffic)
		}
		if !test.Variants[0].IsControl || test.Variants[1].IsControl {
			t.Errorf("Expected exactly the first variant as control")
		}
	}
	if !types[models.TestRecommendation] || !types[models.TestUpsell] || !types[models.TestMessage] {
		t.Errorf("Expected recommendation, upsell and message tests, got %v", types)
	}
	if len(engine.started) != 3 {
		t.Errorf("Expected all automatic tests started, got %d", len(engine.started))
	}
}

func TestDetectOpportunities_DedupedByActiveType(t *testing.T) {
	store := &fakeStore{
		activeTests: []*models.ABTest{{ID: "t-1", Type: models.TestRecommendation, Status: models.StatusRunning}},
	}
	engine := &fakeEngine{}
	o := newTestOptimizer(store, engine, &fakeLearner{}, &recordingNotifier{},
		SessionEstimate{}, healthyConfig())

	o.detectOpportunities(models.Metrics{ConversionRate: 0.01, AvgOrderValue: 20, BounceRate: 0.2})

	if len(engine.created) != 0 {
		t.Errorf("Expected no new test while one of the type is active, got %d", len(engine.created))
	}
}

func TestEvaluateRules(t *testing.T) {
	store := &fakeStore{
		rules: []models.OptimizationRule{
			{
				ID: "r-1", Name: "Lunch rush pricing", Trigger: models.TriggerTimeBased,
				Conditions: models.OptimizationConditions{HourFrom: 11, HourTo: 14},
				Action:     models.OptAdjustPrice, IsActive: true,
			},
			{
				ID: "r-2", Name: "Night owl", Trigger: models.TriggerTimeBased,
				Conditions: models.OptimizationConditions{HourFrom: 22, HourTo: 6},
				Action:     models.OptUpdatePriority, IsActive: true,
			},
			{
				ID: "r-3", Name: "Inactive", Trigger: models.TriggerTimeBased,
				Conditions: models.OptimizationConditions{HourFrom: 11, HourTo: 14},
				Action:     models.OptAdjustPrice, IsActive: false,
			},
		},
	}
	notifier := &recordingNotifier{}
	o := newTestOptimizer(store, &fakeEngine{}, &fakeLearner{}, notifier,
		SessionEstimate{}, healthyConfig())

	// fixedNow is 12:00 UTC: inside 11-14, outside 22-6.
	o.evaluateRules(models.Metrics{}, fixedNow())

	if len(notifier.alerts) != 1 || notifier.alerts[0].ID != "r-1" {
		t.Fatalf("Expected only the lunch rule to fire, got %+v", notifier.alerts)
	}
	if store.savedRules == nil {
		t.Fatal("Expected rules persisted after firing")
	}
	if store.savedRules[0].Performance.TotalTriggers != 1 {
		t.Errorf("Expected trigger count incremented, got %d", store.savedRules[0].Performance.TotalTriggers)
	}
	if store.savedRules[1].Performance.TotalTriggers != 0 {
		t.Errorf("Night rule must not fire at noon")
	}
}

func TestRuleTriggered(t *testing.T) {
	store := &fakeStore{weather: map[string]bool{"p-1": true}}
	o := newTestOptimizer(store, &fakeEngine{}, &fakeLearner{}, &recordingNotifier{},
		SessionEstimate{}, healthyConfig())

	tests := []struct {
		name    string
		rule    models.OptimizationRule
		metrics models.Metrics
		want    bool
	}{
		{
			"performance fires below max conversion",
			models.OptimizationRule{Trigger: models.TriggerPerformanceBased,
				Conditions: models.OptimizationConditions{MaxConversionRate: 0.05}},
			models.Metrics{ConversionRate: 0.02},
			true,
		},
		{
			"performance holds above max conversion",
			models.OptimizationRule{Trigger: models.TriggerPerformanceBased,
				Conditions: models.OptimizationConditions{MaxConversionRate: 0.05}},
			models.Metrics{ConversionRate: 0.08},
			false,
		},
		{
			"traffic fires at session threshold",
			models.OptimizationRule{Trigger: models.TriggerTrafficBased,
				Conditions: models.OptimizationConditions{MinSessionCount: 100}},
			models.Metrics{SessionCount: 150},
			true,
		},
		{
			"traffic holds below session threshold",
			models.OptimizationRule{Trigger: models.TriggerTrafficBased,
				Conditions: models.OptimizationConditions{MinSessionCount: 100}},
			models.Metrics{SessionCount: 50},
			false,
		},
		{
			"weather fires with active products",
			models.OptimizationRule{Trigger: models.TriggerWeatherBased},
			models.Metrics{},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.ruleTriggered(&tt.rule, tt.metrics, fixedNow()); got != tt.want {
				t.Errorf("ruleTriggered() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	store := &fakeStore{}
	o := newTestOptimizer(store, &fakeEngine{}, &fakeLearner{}, &recordingNotifier{},
		SessionEstimate{BaselineSessions: 100}, healthyConfig())

	// Stop before Start is a no-op.
	o.Stop()

	o.Start()
	o.Start() // idempotent
	time.Sleep(30 * time.Millisecond)
	o.Stop()
	o.Stop() // no-op

	if store.findOrdersN == 0 {
		t.Error("Expected at least one tick to have run")
	}
	if len(store.snapshots) == 0 {
		t.Error("Expected snapshots persisted by the loop")
	}
}

func TestSimulatedSessions_StableWithinHour(t *testing.T) {
	est := SimulatedSessions{}
	at := fixedNow()
	first := est.Estimate("store-1", at)
	second := est.Estimate("store-1", at.Add(10*time.Minute))
	if first != second {
		t.Errorf("Expected a stable estimate within the hour, got %+v then %+v", first, second)
	}
	if first.BaselineSessions < 20 || first.BaselineSessions >= 60 {
		t.Errorf("Baseline %d outside [20, 60)", first.BaselineSessions)
	}
	if first.BounceRate < 0.3 || first.BounceRate >= 0.7 {
		t.Errorf("Bounce rate %v outside [0.3, 0.7)", first.BounceRate)
	}
}
