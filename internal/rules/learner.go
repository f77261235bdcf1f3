package rules

import (
	"fmt"

	"github.com/platewise/storepulse/internal/logger"
	"github.com/platewise/storepulse/internal/models"
)

// Threshold adjustment bounds. A rule that keeps succeeding gets a looser
// confidence gate, a failing one a stricter gate, never past these limits.
const (
	goodSuccessRate = 0.8
	poorSuccessRate = 0.6

	thresholdStep    = 0.1
	thresholdFloor   = 0.5
	thresholdCeiling = 0.9

	confidenceCarry = 0.7
	confidenceBlend = 0.3
)

// Store is the slice of the data layer the learner reads and writes.
type Store interface {
	GetPredictiveRules(storeID string) ([]models.PredictiveRule, error)
	SavePredictiveRules(storeID string, rules []models.PredictiveRule) error
}

// Learner tunes predictive rules against sampled performance.
type Learner struct {
	store   Store
	sampler PerformanceSampler
}

// New creates a rule learner.
func New(store Store, sampler PerformanceSampler) *Learner {
	return &Learner{store: store, sampler: sampler}
}

// LearnAndImprove samples each rule's recent performance, adjusts its
// confidence gate and blended confidence, and persists the full rule set.
// Rules whose sample cannot be read are left untouched.
func (l *Learner) LearnAndImprove(storeID string) ([]models.PredictiveRule, error) {
	rules, err := l.store.GetPredictiveRules(storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load predictive rules: %w", err)
	}
	if len(rules) == 0 {
		return rules, nil
	}

	for i := range rules {
		sample, err := l.sampler.Sample(storeID, rules[i])
		if err != nil {
			logger.Warn("Failed to sample performance for rule %s: %v", rules[i].ID, err)
			continue
		}
		improveRule(&rules[i], sample)
	}

	if err := l.store.SavePredictiveRules(storeID, rules); err != nil {
		return nil, fmt.Errorf("failed to persist predictive rules: %w", err)
	}
	return rules, nil
}

func improveRule(rule *models.PredictiveRule, sample PerformanceSample) {
	switch {
	case sample.SuccessRate > goodSuccessRate:
		rule.Conditions.MinConfidence -= thresholdStep
		if rule.Conditions.MinConfidence < thresholdFloor {
			rule.Conditions.MinConfidence = thresholdFloor
		}
	case sample.SuccessRate < poorSuccessRate:
		rule.Conditions.MinConfidence += thresholdStep
		if rule.Conditions.MinConfidence > thresholdCeiling {
			rule.Conditions.MinConfidence = thresholdCeiling
		}
	}

	rule.Confidence = rule.Confidence*confidenceCarry + sample.AverageConfidence*confidenceBlend

	rule.Performance = models.RulePerformance{
		SuccessRate:   sample.SuccessRate,
		TotalTriggers: sample.TotalTriggers,
		RevenueImpact: sample.RevenueImpact,
	}
}
