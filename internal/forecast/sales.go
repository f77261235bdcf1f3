// Package forecast derives demand forecasts from a store's order history.
package forecast

import (
	"fmt"
	"time"

	"github.com/platewise/storepulse/internal/models"
)

// Store is the slice of the data layer the forecaster reads from.
type Store interface {
	FindOrders(storeID string, from, to time.Time) ([]models.Order, error)
	FindActiveWeatherProducts(storeID string) (map[string]bool, error)
}

// HistoricalSales returns normalized per-product sales observations over the
// trailing window, oldest first. An empty history is a valid result, not an
// error; callers treat short histories as the low-confidence case.
func (s *Service) HistoricalSales(storeID, productID string, windowDays int) ([]models.SalesObservation, error) {
	return s.salesWindow(storeID, windowDays, func(item models.OrderItem) bool {
		return item.ProductID == productID
	})
}

// CategorySales returns normalized per-category sales observations over the
// trailing window, oldest first.
func (s *Service) CategorySales(storeID, category string, windowDays int) ([]models.SalesObservation, error) {
	return s.salesWindow(storeID, windowDays, func(item models.OrderItem) bool {
		return item.Category == category
	})
}

func (s *Service) salesWindow(storeID string, windowDays int, match func(models.OrderItem) bool) ([]models.SalesObservation, error) {
	now := s.now()
	orders, err := s.store.FindOrders(storeID, now.AddDate(0, 0, -windowDays), now)
	if err != nil {
		return nil, fmt.Errorf("failed to read order history: %w", err)
	}

	var observations []models.SalesObservation
	for _, order := range orders {
		for _, item := range order.Items {
			if !match(item) {
				continue
			}
			observations = append(observations, models.SalesObservation{
				Timestamp: order.CreatedAt,
				Quantity:  item.Quantity,
				UnitPrice: item.Price,
				Revenue:   item.Price * float64(item.Quantity),
			})
		}
	}
	return observations, nil
}
