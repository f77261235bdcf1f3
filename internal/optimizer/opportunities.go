package optimizer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/platewise/storepulse/internal/logger"
	"github.com/platewise/storepulse/internal/models"
)

// detectOpportunities launches an automatic A/B test for each weak metric
// that does not already have a test of the matching type in flight.
func (o *Optimizer) detectOpportunities(metrics models.Metrics) {
	active, err := o.store.ListActiveTests(o.storeID)
	if err != nil {
		logger.Error("Failed to list active tests for store %s: %v", o.storeID, err)
		return
	}
	activeTypes := make(map[models.TestType]bool, len(active))
	for _, test := range active {
		activeTypes[test.Type] = true
	}

	if metrics.ConversionRate < o.cfg.MinConversionRate && !activeTypes[models.TestRecommendation] {
		o.launchAutoTest(autoRecommendationTest(o.storeID), "low conversion rate", metrics.ConversionRate)
	}
	if metrics.AvgOrderValue < o.cfg.MinAvgOrderValue && !activeTypes[models.TestUpsell] {
		o.launchAutoTest(autoUpsellTest(o.storeID), "low average order value", metrics.AvgOrderValue)
	}
	if metrics.BounceRate > o.cfg.MaxBounceRate && !activeTypes[models.TestMessage] {
		o.launchAutoTest(autoMessageTest(o.storeID), "high bounce rate", metrics.BounceRate)
	}
}

func (o *Optimizer) launchAutoTest(test *models.ABTest, reason string, value float64) {
	logger.Info("Store %s: %s (%.3f), launching %s test %q", o.storeID, reason, value, test.Type, test.Name)
	if err := o.engine.CreateTest(test); err != nil {
		logger.Error("Failed to create automatic %s test for store %s: %v", test.Type, o.storeID, err)
		return
	}
	if err := o.engine.StartTest(o.storeID, test.ID); err != nil {
		logger.Error("Failed to start automatic %s test for store %s: %v", test.Type, o.storeID, err)
	}
}

// autoTest is the fixed two-variant 50/50 template all automatic tests use.
func autoTest(storeID, name string, testType models.TestType, alternative models.Variant) *models.ABTest {
	alternative.ID = uuid.NewString()
	alternative.Traffic = 50
	return &models.ABTest{
		ID:      uuid.NewString(),
		StoreID: storeID,
		Name:    name,
		Type:    testType,
		Variants: []models.Variant{
			{ID: uuid.NewString(), Name: "Current", Traffic: 50, IsControl: true},
			alternative,
		},
		TargetMetric: "conversion_rate",
	}
}

func autoRecommendationTest(storeID string) *models.ABTest {
	return autoTest(storeID, fmt.Sprintf("Auto: recommendations for %s", storeID), models.TestRecommendation,
		models.Variant{
			Name: "Trending items first",
			Config: models.VariantConfig{
				Recommendations: []string{"trending", "bestsellers", "seasonal"},
			},
		})
}

func autoUpsellTest(storeID string) *models.ABTest {
	return autoTest(storeID, fmt.Sprintf("Auto: upsell prompt for %s", storeID), models.TestUpsell,
		models.Variant{
			Name: "Dessert suggestion",
			Config: models.VariantConfig{
				UpsellPrompt: "Would you like to add a dessert for a sweet finish?",
			},
		})
}

func autoMessageTest(storeID string) *models.ABTest {
	return autoTest(storeID, fmt.Sprintf("Auto: greeting message for %s", storeID), models.TestMessage,
		models.Variant{
			Name: "Warmer greeting",
			Config: models.VariantConfig{
				Message: "Welcome back! Today's specials are ready for you.",
			},
		})
}
