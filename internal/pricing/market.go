// Package pricing estimates price elasticity and recommends price changes.
package pricing

import (
	"hash/fnv"
	"math/rand"
)

// Position classifies a store's price relative to the market.
const (
	PositionPremium     = "premium"
	PositionCompetitive = "competitive"
	PositionValue       = "value"
)

// MarketData is a competitive-price signal for one product.
type MarketData struct {
	Average  float64
	Position string
}

// MarketDataProvider supplies competitive pricing. The production feed does
// not exist yet; implementations may simulate it, and tests inject fakes.
type MarketDataProvider interface {
	CompetitivePrice(storeID, productID string, currentPrice float64) (MarketData, error)
}

// SimulatedMarket derives a stable pseudo-random competitive price around the
// current price. Deterministic per (store, product) so repeated optimization
// runs agree with each other.
type SimulatedMarket struct{}

// CompetitivePrice estimates the market average within ±10% of the current
// price and classifies the store's position against it.
func (SimulatedMarket) CompetitivePrice(storeID, productID string, currentPrice float64) (MarketData, error) {
	h := fnv.New64a()
	h.Write([]byte(storeID))
	h.Write([]byte{0})
	h.Write([]byte(productID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	average := currentPrice * (0.9 + 0.2*rng.Float64())

	position := PositionCompetitive
	switch gap := currentPrice - average; {
	case gap > 2:
		position = PositionPremium
	case gap < -2:
		position = PositionValue
	}

	return MarketData{Average: average, Position: position}, nil
}
