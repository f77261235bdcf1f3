package models

import "errors"

// PredictiveRuleType identifies what a predictive rule forecasts or watches.
type PredictiveRuleType string

const (
	RuleDemandForecast    PredictiveRuleType = "demand_forecast"
	RulePriceOptimization PredictiveRuleType = "price_optimization"
	RuleInventoryAlert    PredictiveRuleType = "inventory_alert"
	RuleTrendDetection    PredictiveRuleType = "trend_detection"
)

// PredictiveAction is what a predictive rule does when it fires.
type PredictiveAction string

const (
	ActionBoostProduct PredictiveAction = "boost_product"
	ActionAdjustPrice  PredictiveAction = "adjust_price"
	ActionAlertManager PredictiveAction = "alert_manager"
	ActionAutoReorder  PredictiveAction = "auto_reorder"
)

// RuleConditions filters when a predictive rule may fire.
type RuleConditions struct {
	MinConfidence float64  `json:"min_confidence"`
	Categories    []string `json:"categories,omitempty"`
	ProductIDs    []string `json:"product_ids,omitempty"`
}

// RulePerformance tracks how a predictive rule has performed since its last review.
type RulePerformance struct {
	SuccessRate   float64 `json:"success_rate"`
	TotalTriggers int     `json:"total_triggers"`
	RevenueImpact float64 `json:"revenue_impact"`
}

// PredictiveRule is a persisted, learnable business rule. Only the learner mutates
// its confidence and performance; rules are created externally and never deleted here.
type PredictiveRule struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Type        PredictiveRuleType `json:"type"`
	Conditions  RuleConditions     `json:"conditions"`
	Action      PredictiveAction   `json:"action"`
	Parameters  map[string]float64 `json:"parameters,omitempty"`
	Confidence  float64            `json:"confidence"`
	IsActive    bool               `json:"is_active"`
	Performance RulePerformance    `json:"performance"`
}

// Validate checks predictive rule field constraints.
func (r *PredictiveRule) Validate() error {
	if r.ID == "" {
		return errors.New("rule ID must not be empty")
	}
	switch r.Type {
	case RuleDemandForecast, RulePriceOptimization, RuleInventoryAlert, RuleTrendDetection:
	default:
		return errors.New("unknown rule type: " + string(r.Type))
	}
	switch r.Action {
	case ActionBoostProduct, ActionAdjustPrice, ActionAlertManager, ActionAutoReorder:
	default:
		return errors.New("unknown rule action: " + string(r.Action))
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return errors.New("rule confidence must be between 0.0 and 1.0")
	}
	return nil
}

// OptimizationTrigger identifies what kind of condition fires an optimization rule.
type OptimizationTrigger string

const (
	TriggerTimeBased        OptimizationTrigger = "time_based"
	TriggerPerformanceBased OptimizationTrigger = "performance_based"
	TriggerTrafficBased     OptimizationTrigger = "traffic_based"
	TriggerWeatherBased     OptimizationTrigger = "weather_based"
)

// OptimizationAction is what an optimization rule applies when triggered.
type OptimizationAction string

const (
	OptAdjustPrice           OptimizationAction = "adjust_price"
	OptChangeRecommendations OptimizationAction = "change_recommendations"
	OptModifyUpsell          OptimizationAction = "modify_upsell"
	OptUpdatePriority        OptimizationAction = "update_priority"
)

// OptimizationConditions gate an optimization rule against the live metrics.
type OptimizationConditions struct {
	HourFrom          int     `json:"hour_from,omitempty"`
	HourTo            int     `json:"hour_to,omitempty"`
	MaxConversionRate float64 `json:"max_conversion_rate,omitempty"`
	MinConversionRate float64 `json:"min_conversion_rate,omitempty"`
	MinSessionCount   int     `json:"min_session_count,omitempty"`
	MaxAvgOrderValue  float64 `json:"max_avg_order_value,omitempty"`
}

// OptimizationPerformance tracks how often a rule fired and what it achieved.
type OptimizationPerformance struct {
	TotalTriggers int     `json:"total_triggers"`
	SuccessRate   float64 `json:"success_rate"`
	AverageImpact float64 `json:"average_impact"`
}

// OptimizationRule is a trigger-based rule evaluated by the real-time loop each tick.
type OptimizationRule struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Trigger     OptimizationTrigger     `json:"trigger"`
	Conditions  OptimizationConditions  `json:"conditions"`
	Action      OptimizationAction      `json:"action"`
	Parameters  map[string]float64      `json:"parameters,omitempty"`
	IsActive    bool                    `json:"is_active"`
	Performance OptimizationPerformance `json:"performance"`
}

// Validate checks optimization rule field constraints.
func (r *OptimizationRule) Validate() error {
	if r.ID == "" {
		return errors.New("rule ID must not be empty")
	}
	switch r.Trigger {
	case TriggerTimeBased, TriggerPerformanceBased, TriggerTrafficBased, TriggerWeatherBased:
	default:
		return errors.New("unknown rule trigger: " + string(r.Trigger))
	}
	switch r.Action {
	case OptAdjustPrice, OptChangeRecommendations, OptModifyUpsell, OptUpdatePriority:
	default:
		return errors.New("unknown rule action: " + string(r.Action))
	}
	return nil
}
