// Package models defines the core domain entities: sales observations, forecasts,
// optimization results, rules, A/B tests, and metrics snapshots.
package models

import (
	"errors"
	"time"
)

// Order is a completed order as read from the order log.
type Order struct {
	ID        string      `json:"id"`
	StoreID   string      `json:"store_id"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"total"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderItem is a single line item within an order.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Category  string  `json:"category"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Validate checks order field constraints.
func (o *Order) Validate() error {
	if o.ID == "" {
		return errors.New("order ID must not be empty")
	}
	if o.StoreID == "" {
		return errors.New("order store ID must not be empty")
	}
	if o.Total < 0 {
		return errors.New("order total must not be negative")
	}
	for _, item := range o.Items {
		if item.ProductID == "" {
			return errors.New("order item product ID must not be empty")
		}
		if item.Quantity < 0 {
			return errors.New("order item quantity must not be negative")
		}
		if item.Price < 0 {
			return errors.New("order item price must not be negative")
		}
	}
	return nil
}

// SalesObservation is a normalized per-product or per-category sales data point,
// derived on demand from the order log and never persisted independently.
type SalesObservation struct {
	Timestamp time.Time `json:"timestamp"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Revenue   float64   `json:"revenue"`
}

// PriceVariation is one sellable price point of a product.
type PriceVariation struct {
	Name      string             `json:"name"`
	IsDefault bool               `json:"is_default"`
	Prices    map[string]float64 `json:"prices"` // channel -> amount
}

// Product is a sellable menu item with its price variations.
type Product struct {
	ID         string           `json:"id"`
	StoreID    string           `json:"store_id"`
	Name       string           `json:"name"`
	Category   string           `json:"category"`
	Variations []PriceVariation `json:"variations"`
}

// DefaultPrice returns the price of the default (or first) variation on the
// given channel, falling back to any channel when the requested one is absent.
// Returns 0 when the product has no priced variation.
func (p *Product) DefaultPrice(channel string) float64 {
	var chosen *PriceVariation
	for i := range p.Variations {
		if p.Variations[i].IsDefault {
			chosen = &p.Variations[i]
			break
		}
	}
	if chosen == nil && len(p.Variations) > 0 {
		chosen = &p.Variations[0]
	}
	if chosen == nil {
		return 0
	}
	if price, ok := chosen.Prices[channel]; ok {
		return price
	}
	for _, price := range chosen.Prices {
		return price
	}
	return 0
}

// MetricsSnapshot is one tick's view of live store performance, persisted as an
// append-only time series.
type MetricsSnapshot struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"store_id"`
	Timestamp time.Time `json:"timestamp"`
	Metrics   Metrics   `json:"metrics"`
	Tests     []string  `json:"tests"` // active A/B test IDs
}

// Metrics holds the live performance figures collected each tick.
type Metrics struct {
	ConversionRate       float64 `json:"conversion_rate"`
	AvgOrderValue        float64 `json:"avg_order_value"`
	Revenue              float64 `json:"revenue"`
	SessionCount         int     `json:"session_count"`
	BounceRate           float64 `json:"bounce_rate"`
	CustomerSatisfaction float64 `json:"customer_satisfaction"`
}
