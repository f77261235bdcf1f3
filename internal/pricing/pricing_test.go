package pricing

import (
	"testing"

	"github.com/platewise/storepulse/internal/models"
)

type fakeProducts struct {
	products map[string]*models.Product
}

func (f *fakeProducts) FindProduct(productID string) (*models.Product, error) {
	if p, ok := f.products[productID]; ok {
		return p, nil
	}
	return nil, models.ErrNotFound
}

type fakeSales struct {
	history []models.SalesObservation
}

func (f *fakeSales) HistoricalSales(storeID, productID string, windowDays int) ([]models.SalesObservation, error) {
	return f.history, nil
}

type fakeMarket struct {
	data MarketData
}

func (f *fakeMarket) CompetitivePrice(storeID, productID string, currentPrice float64) (MarketData, error) {
	return f.data, nil
}

func observations(pricesAndQuantities ...float64) []models.SalesObservation {
	var obs []models.SalesObservation
	for i := 0; i+1 < len(pricesAndQuantities); i += 2 {
		obs = append(obs, models.SalesObservation{
			UnitPrice: pricesAndQuantities[i],
			Quantity:  int(pricesAndQuantities[i+1]),
		})
	}
	return obs
}

func TestElasticity_Defaults(t *testing.T) {
	if got := Elasticity(nil); got != UnitElasticity {
		t.Errorf("Elasticity(nil) = %v, want %v", got, UnitElasticity)
	}
	if got := Elasticity(observations(10, 5)); got != UnitElasticity {
		t.Errorf("Elasticity(single point) = %v, want %v", got, UnitElasticity)
	}
	// Constant price: no valid pairs.
	if got := Elasticity(observations(10, 5, 10, 8, 10, 3)); got != UnitElasticity {
		t.Errorf("Elasticity(constant price) = %v, want %v", got, UnitElasticity)
	}
}

func TestElasticity_Computed(t *testing.T) {
	// Price +10%, sales -20% -> elasticity -2.
	got := Elasticity(observations(10, 10, 11, 8))
	if got < -2.001 || got > -1.999 {
		t.Errorf("Elasticity() = %v, want -2", got)
	}
}

func newTestService(products *fakeProducts, sales *fakeSales, market MarketDataProvider) *Service {
	return New(products, sales, market, DefaultConfig())
}

// steadyThen builds a history of constant (basePrice, baseQty) observations
// with one final deviating point, so that the final pair alone determines the
// measured elasticity.
func steadyThen(points int, basePrice float64, baseQty int, lastPrice float64, lastQty int) []models.SalesObservation {
	var obs []models.SalesObservation
	for i := 0; i < points-1; i++ {
		obs = append(obs, models.SalesObservation{UnitPrice: basePrice, Quantity: baseQty})
	}
	return append(obs, models.SalesObservation{UnitPrice: lastPrice, Quantity: lastQty})
}

func product(id string, price float64) *models.Product {
	return &models.Product{
		ID:      id,
		StoreID: "store-1",
		Name:    "Lemonade",
		Variations: []models.PriceVariation{
			{Name: "Regular", IsDefault: true, Prices: map[string]float64{"phone": price}},
		},
	}
}

func TestOptimizePrice_ProductNotFound(t *testing.T) {
	svc := newTestService(&fakeProducts{}, &fakeSales{}, &fakeMarket{})
	opt, err := svc.OptimizePrice("store-1", "missing")
	if err != nil {
		t.Fatalf("OptimizePrice failed: %v", err)
	}
	if opt != nil {
		t.Errorf("Expected nil for missing product, got %+v", opt)
	}
}

func TestOptimizePrice_InsufficientHistory(t *testing.T) {
	products := &fakeProducts{products: map[string]*models.Product{"p-1": product("p-1", 10.0)}}
	sales := &fakeSales{history: observations(10, 100, 11, 92)}
	svc := newTestService(products, sales, &fakeMarket{})

	opt, err := svc.OptimizePrice("store-1", "p-1")
	if err != nil {
		t.Fatalf("OptimizePrice failed: %v", err)
	}
	if opt != nil {
		t.Errorf("Expected nil below the history threshold, got %+v", opt)
	}
}

func TestOptimizePrice_InelasticRaise(t *testing.T) {
	products := &fakeProducts{products: map[string]*models.Product{"p-1": product("p-1", 10.0)}}
	// Final pair: price +10%, sales -8% -> elasticity -0.8 (inelastic band).
	sales := &fakeSales{history: steadyThen(10, 10, 100, 11, 92)}
	market := &fakeMarket{data: MarketData{Average: 10.2, Position: PositionCompetitive}}
	svc := newTestService(products, sales, market)

	opt, err := svc.OptimizePrice("store-1", "p-1")
	if err != nil || opt == nil {
		t.Fatalf("OptimizePrice failed: %v %v", opt, err)
	}
	if opt.OptimizedPrice != 10.5 {
		t.Errorf("Expected 5%% raise to 10.50, got %v", opt.OptimizedPrice)
	}
	if opt.ExpectedImpact.MarginChange < 4.99 || opt.ExpectedImpact.MarginChange > 5.01 {
		t.Errorf("Expected margin change 5%%, got %v", opt.ExpectedImpact.MarginChange)
	}
	if len(opt.Reasoning) == 0 {
		t.Error("Expected reasoning strings")
	}
}

func TestOptimizePrice_HighlyElasticCut(t *testing.T) {
	products := &fakeProducts{products: map[string]*models.Product{"p-1": product("p-1", 10.0)}}
	// Final pair: price +10%, sales -30% -> elasticity -3 (highly elastic).
	sales := &fakeSales{history: steadyThen(10, 10, 100, 11, 70)}
	market := &fakeMarket{data: MarketData{Average: 10.0, Position: PositionCompetitive}}
	svc := newTestService(products, sales, market)

	opt, err := svc.OptimizePrice("store-1", "p-1")
	if err != nil || opt == nil {
		t.Fatalf("OptimizePrice failed: %v %v", opt, err)
	}
	if opt.OptimizedPrice != 9.5 {
		t.Errorf("Expected 5%% cut to 9.50, got %v", opt.OptimizedPrice)
	}
}

func TestOptimizePrice_NeutralBand(t *testing.T) {
	products := &fakeProducts{products: map[string]*models.Product{"p-1": product("p-1", 10.0)}}
	// Final pair: price +10%, sales -17% -> elasticity -1.7: between the bands, hold.
	sales := &fakeSales{history: steadyThen(10, 10, 100, 11, 83)}
	market := &fakeMarket{data: MarketData{Average: 10.0, Position: PositionCompetitive}}
	svc := newTestService(products, sales, market)

	opt, err := svc.OptimizePrice("store-1", "p-1")
	if err != nil || opt == nil {
		t.Fatalf("OptimizePrice failed: %v %v", opt, err)
	}
	if opt.OptimizedPrice != 10.0 {
		t.Errorf("Expected unchanged price, got %v", opt.OptimizedPrice)
	}
	if opt.ExpectedImpact.RevenueChange != 0 {
		t.Errorf("Expected zero revenue change, got %v", opt.ExpectedImpact.RevenueChange)
	}
}

func TestOptimizePrice_PremiumCap(t *testing.T) {
	products := &fakeProducts{products: map[string]*models.Product{"p-1": product("p-1", 20.0)}}
	// Inelastic: raise would push to 21, but market average is 16.
	sales := &fakeSales{history: steadyThen(10, 19, 100, 20, 96)}
	market := &fakeMarket{data: MarketData{Average: 16.0, Position: PositionPremium}}
	svc := newTestService(products, sales, market)

	opt, err := svc.OptimizePrice("store-1", "p-1")
	if err != nil || opt == nil {
		t.Fatalf("OptimizePrice failed: %v %v", opt, err)
	}
	if opt.OptimizedPrice != 17.0 {
		t.Errorf("Expected cap at market average + 1 = 17.00, got %v", opt.OptimizedPrice)
	}
}

func TestOptimizePrice_Idempotent(t *testing.T) {
	products := &fakeProducts{products: map[string]*models.Product{"p-1": product("p-1", 10.0)}}
	sales := &fakeSales{history: steadyThen(10, 10, 100, 11, 92)}
	svc := newTestService(products, sales, &fakeMarket{data: MarketData{Average: 10.2, Position: PositionCompetitive}})

	first, err := svc.OptimizePrice("store-1", "p-1")
	if err != nil || first == nil {
		t.Fatalf("OptimizePrice failed: %v %v", first, err)
	}
	for i := 0; i < 5; i++ {
		again, err := svc.OptimizePrice("store-1", "p-1")
		if err != nil || again == nil {
			t.Fatalf("OptimizePrice failed: %v %v", again, err)
		}
		if again.OptimizedPrice != first.OptimizedPrice {
			t.Errorf("Run %d: price %v differs from first run %v", i, again.OptimizedPrice, first.OptimizedPrice)
		}
	}
}

func TestSimulatedMarket_Deterministic(t *testing.T) {
	m := SimulatedMarket{}
	first, err := m.CompetitivePrice("store-1", "p-1", 10.0)
	if err != nil {
		t.Fatalf("CompetitivePrice failed: %v", err)
	}
	second, err := m.CompetitivePrice("store-1", "p-1", 10.0)
	if err != nil {
		t.Fatalf("CompetitivePrice failed: %v", err)
	}
	if first != second {
		t.Errorf("Expected stable market data, got %+v then %+v", first, second)
	}
	if first.Average < 9.0 || first.Average > 11.0 {
		t.Errorf("Average %v outside the ±10%% band", first.Average)
	}
}

func TestOptimizationConfidence(t *testing.T) {
	tests := []struct {
		name       string
		points     int
		elasticity float64
		position   string
		want       float64
	}{
		{"sparse history", 2, -3.0, PositionPremium, 0.3},
		{"five points near unit elastic", 5, -1.2, PositionValue, 0.7},
		{"full ladder capped", 12, -1.0, PositionCompetitive, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := optimizationConfidence(tt.points, tt.elasticity, tt.position)
			if got < tt.want-1e-9 || got > tt.want+1e-9 {
				t.Errorf("optimizationConfidence() = %v, want %v", got, tt.want)
			}
		})
	}
}
