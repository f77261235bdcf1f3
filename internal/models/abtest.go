package models

import (
	"fmt"
	"math"
	"time"
)

// TestType identifies what an A/B test experiments on.
type TestType string

const (
	TestPrice          TestType = "price"
	TestRecommendation TestType = "recommendation"
	TestUpsell         TestType = "upsell"
	TestLayout         TestType = "layout"
	TestMessage        TestType = "message"
)

// TestStatus is the lifecycle state of an A/B test.
// draft -> running -> {completed, paused}. Pausing and resuming are
// administrative actions; the engine never enters or leaves paused on its own.
type TestStatus string

const (
	StatusDraft     TestStatus = "draft"
	StatusRunning   TestStatus = "running"
	StatusCompleted TestStatus = "completed"
	StatusPaused    TestStatus = "paused"
)

// VariantConfig is the action-specific payload a winning variant applies.
// The test type selects which field is meaningful.
type VariantConfig struct {
	Price           float64  `json:"price,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	UpsellPrompt    string   `json:"upsell_prompt,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// Variant is one arm of an A/B test. Counters only ever increment.
type Variant struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Config      VariantConfig `json:"config"`
	Traffic     float64       `json:"traffic"` // percent share, 0-100
	Conversions int           `json:"conversions"`
	Revenue     float64       `json:"revenue"`
	Sessions    int           `json:"sessions"`
	IsControl   bool          `json:"is_control"`
}

// TestResults is the computed outcome attached to a test once enough samples exist.
type TestResults struct {
	Winner         string  `json:"winner,omitempty"` // variant ID
	Confidence     float64 `json:"confidence"`
	Lift           float64 `json:"lift"` // percent relative to control
	Significance   bool    `json:"significance"`
	Recommendation string  `json:"recommendation"`
}

// ABTest is a persisted experiment on a store's behavior.
type ABTest struct {
	ID           string       `json:"id"`
	StoreID      string       `json:"store_id"`
	Name         string       `json:"name"`
	Type         TestType     `json:"type"`
	Status       TestStatus   `json:"status"`
	Variants     []Variant    `json:"variants"`
	TargetMetric string       `json:"target_metric"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      *time.Time   `json:"end_date,omitempty"`
	SampleSize   int          `json:"sample_size"`
	Confidence   float64      `json:"confidence"`
	Results      *TestResults `json:"results,omitempty"`
}

const trafficTolerance = 0.01

// Validate enforces the structural invariants of a test definition: traffic
// shares summing to 100 and exactly one control variant.
func (t *ABTest) Validate() error {
	if t.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	switch t.Type {
	case TestPrice, TestRecommendation, TestUpsell, TestLayout, TestMessage:
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown test type %q", t.Type)}
	}
	if len(t.Variants) < 2 {
		return &ValidationError{Field: "variants", Reason: "need at least two variants"}
	}
	var trafficSum float64
	controls := 0
	for _, v := range t.Variants {
		if v.Traffic < 0 || v.Traffic > 100 {
			return &ValidationError{Field: "variants", Reason: fmt.Sprintf("variant %q traffic out of range", v.Name)}
		}
		trafficSum += v.Traffic
		if v.IsControl {
			controls++
		}
	}
	if math.Abs(trafficSum-100) > trafficTolerance {
		return &ValidationError{Field: "variants", Reason: fmt.Sprintf("traffic shares sum to %.2f, want 100", trafficSum)}
	}
	if controls != 1 {
		return &ValidationError{Field: "variants", Reason: fmt.Sprintf("exactly one control variant required, got %d", controls)}
	}
	return nil
}

// Control returns the control variant, or nil if the test is malformed.
func (t *ABTest) Control() *Variant {
	for i := range t.Variants {
		if t.Variants[i].IsControl {
			return &t.Variants[i]
		}
	}
	return nil
}

// TotalSessions sums sessions across all variants.
func (t *ABTest) TotalSessions() int {
	total := 0
	for _, v := range t.Variants {
		total += v.Sessions
	}
	return total
}
