// Package rules adjusts persisted predictive rules from observed performance.
package rules

import (
	"hash/fnv"
	"math/rand"

	"github.com/platewise/storepulse/internal/models"
)

// PerformanceSample is one observation window of a rule's effectiveness.
type PerformanceSample struct {
	SuccessRate       float64
	TotalTriggers     int
	RevenueImpact     float64
	AverageConfidence float64
}

// PerformanceSampler supplies rule performance measurements. The production
// analytics feed does not exist yet; implementations may simulate it, and
// tests inject fakes.
type PerformanceSampler interface {
	Sample(storeID string, rule models.PredictiveRule) (PerformanceSample, error)
}

// SimulatedSampler derives a stable pseudo-random performance sample per
// (store, rule) so repeated learning passes agree with each other.
type SimulatedSampler struct{}

// Sample returns a deterministic synthetic performance observation.
func (SimulatedSampler) Sample(storeID string, rule models.PredictiveRule) (PerformanceSample, error) {
	h := fnv.New64a()
	h.Write([]byte(storeID))
	h.Write([]byte{0})
	h.Write([]byte(rule.ID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	return PerformanceSample{
		SuccessRate:       0.4 + 0.6*rng.Float64(),
		TotalTriggers:     5 + rng.Intn(50),
		RevenueImpact:     500 * rng.Float64(),
		AverageConfidence: 0.5 + 0.4*rng.Float64(),
	}, nil
}
