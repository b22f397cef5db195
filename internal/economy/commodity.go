// Package economy provides the galaxy-wide commodity market, economic events,
// sector economies, trade execution, and market analytics.
package economy

import (
	"fmt"
	"math"
)

// Category groups commodities by the kind of good they are.
type Category uint8

const (
	CategoryFood Category = iota
	CategoryMinerals
	CategoryTechnology
	CategoryWeapons
	CategoryMedicine
	CategoryLuxury
	CategoryEnergy
	CategoryChemicals
)

var categoryNames = [...]string{
	CategoryFood:       "food",
	CategoryMinerals:   "minerals",
	CategoryTechnology: "technology",
	CategoryWeapons:    "weapons",
	CategoryMedicine:   "medicine",
	CategoryLuxury:     "luxury",
	CategoryEnergy:     "energy",
	CategoryChemicals:  "chemicals",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", c)
}

// ParseCategory maps a lower-case category name to its Category.
func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown commodity category %q", name)
}

// Update rule coefficients.
const (
	priceFloorRatio   = 0.8
	oversupplyRatio   = 1.2
	undersupplyRatio  = 0.8
	pricePressure     = 0.1
	trendWeight       = 0.5
	noiseScale        = 0.1
	seasonalFrequency = 0.1
	trendDecay        = 0.9
	reversionRate     = 0.05
	trendNoise        = 0.02
	maxTrend          = 0.5

	demandElasticity = -0.5
	supplyElasticity = 0.3
	elasticityFloor  = 10
	stockJitter      = 10
	maxStock         = 1e12
)

// MarketTuning holds the engine-wide constants for commodity updates.
type MarketTuning struct {
	SeasonalAmplitude float64 // Default 0.15
	HistoryLength     int     // Price points kept per commodity
}

// DefaultMarketTuning returns the reference tuning.
func DefaultMarketTuning() MarketTuning {
	return MarketTuning{SeasonalAmplitude: 0.15, HistoryLength: 200}
}

// CommodityParams describes a commodity at engine creation.
type CommodityParams struct {
	Name           string
	Category       Category
	BasePrice      float64
	ProductionCost float64
	Supply         int64
	Demand         int64
	Volatility     float64 // (0, 1]
}

// Commodity is the galaxy-wide market state for one tradable good.
type Commodity struct {
	Name           string    `json:"name"`
	Category       Category  `json:"category"`
	BasePrice      float64   `json:"base_price"`      // Immutable reference price
	CurrentPrice   float64   `json:"current_price"`   // Never below ProductionCost * 0.8
	Supply         int64     `json:"supply"`          // >= 1
	Demand         int64     `json:"demand"`          // >= 1
	Volatility     float64   `json:"volatility"`      // Scales price noise
	Trend          float64   `json:"trend"`           // [-0.5, 0.5]
	ProductionCost float64   `json:"production_cost"` // Immutable floor reference
	SeasonalFactor float64   `json:"seasonal_factor"` // Derived from the turn counter
	EventModifier  float64   `json:"event_modifier"`  // 1.0 unless an event is active
	PriceHistory   []float64 `json:"price_history"`
}

// NewCommodity creates a commodity priced at its base price.
func NewCommodity(p CommodityParams) (*Commodity, error) {
	switch {
	case p.Name == "":
		return nil, fmt.Errorf("commodity name is empty")
	case !(p.BasePrice > 0) || math.IsInf(p.BasePrice, 0):
		return nil, fmt.Errorf("commodity %q: base price must be positive", p.Name)
	case !(p.ProductionCost > 0) || math.IsInf(p.ProductionCost, 0):
		return nil, fmt.Errorf("commodity %q: production cost must be positive", p.Name)
	case !(p.Volatility > 0) || p.Volatility > 1:
		return nil, fmt.Errorf("commodity %q: volatility %.3f outside (0, 1]", p.Name, p.Volatility)
	}

	c := &Commodity{
		Name:           p.Name,
		Category:       p.Category,
		BasePrice:      p.BasePrice,
		CurrentPrice:   p.BasePrice,
		Supply:         max(p.Supply, 1),
		Demand:         max(p.Demand, 1),
		Volatility:     p.Volatility,
		ProductionCost: p.ProductionCost,
		SeasonalFactor: 1.0,
		EventModifier:  1.0,
	}
	c.CurrentPrice = max(c.CurrentPrice, c.PriceFloor())
	c.PriceHistory = []float64{c.CurrentPrice}
	return c, nil
}

// PriceFloor is the lowest price the market will quote for this commodity.
func (c *Commodity) PriceFloor() float64 {
	return c.ProductionCost * priceFloorRatio
}

// SupplyDemandRatio returns supply over demand, with demand floored at 1.
func (c *Commodity) SupplyDemandRatio() float64 {
	return float64(c.Supply) / float64(max(c.Demand, 1))
}

// SeasonalFactor returns the sinusoidal seasonal multiplier for a turn.
func SeasonalFactor(turn uint32, amplitude float64) float64 {
	return 1.0 + math.Sin(float64(turn)*seasonalFrequency)*amplitude
}

// Update advances the commodity by one turn. All randomness comes from rng.
func (c *Commodity) Update(turn uint32, rng Rand, tuning MarketTuning) {
	c.repair()

	pressure := 0.0
	switch ratio := c.SupplyDemandRatio(); {
	case ratio > oversupplyRatio:
		pressure = -pricePressure
	case ratio < undersupplyRatio:
		pressure = pricePressure
	}
	trendFactor := c.Trend * trendWeight
	randomFactor := rng.NormFloat64() * c.Volatility * noiseScale
	c.SeasonalFactor = SeasonalFactor(turn, tuning.SeasonalAmplitude)

	total := (pressure + trendFactor + randomFactor) * c.SeasonalFactor * c.EventModifier

	before := c.CurrentPrice
	m := 1.0 + total
	next := before * m
	if math.IsNaN(next) || math.IsInf(next, 0) {
		m, next = 1.0, before
	}
	c.CurrentPrice = max(next, c.PriceFloor())

	// Mean reversion pulls the trend back toward base price.
	reversion := (c.BasePrice - c.CurrentPrice) / c.BasePrice * reversionRate
	c.Trend = clamp(c.Trend*trendDecay+reversion+rng.NormFloat64()*trendNoise, -maxTrend, maxTrend)

	c.applyElasticity(m)
	c.Supply = max(c.Supply+jitter(rng), 1)
	c.Demand = max(c.Demand+jitter(rng), 1)

	c.recordPrice(tuning.HistoryLength)
}

// applyElasticity translates the turn's price multiplier into supply/demand.
// m is the multiplier before the floor, so a clamped price still feeds back.
// Higher prices choke demand and draw out supply.
func (c *Commodity) applyElasticity(m float64) {
	demand := float64(c.Demand) * (1 + (m-1)*demandElasticity)
	supply := float64(c.Supply) * (1 + (m-1)*supplyElasticity)
	c.Demand = stockLevel(demand, elasticityFloor)
	c.Supply = stockLevel(supply, elasticityFloor)
}

// repair restores invariants on state that arrived from outside the update rule.
func (c *Commodity) repair() {
	if c.EventModifier <= 0 || math.IsNaN(c.EventModifier) || math.IsInf(c.EventModifier, 0) {
		c.EventModifier = 1.0
	}
	if math.IsNaN(c.CurrentPrice) || math.IsInf(c.CurrentPrice, 0) {
		c.CurrentPrice = c.BasePrice
	}
	c.CurrentPrice = max(c.CurrentPrice, c.PriceFloor())
	if math.IsNaN(c.Trend) {
		c.Trend = 0
	}
	c.Trend = clamp(c.Trend, -maxTrend, maxTrend)
	c.Supply = max(c.Supply, 1)
	c.Demand = max(c.Demand, 1)
}

func (c *Commodity) recordPrice(limit int) {
	c.PriceHistory = append(c.PriceHistory, c.CurrentPrice)
	if limit > 0 && len(c.PriceHistory) > limit {
		c.PriceHistory = append(c.PriceHistory[:0], c.PriceHistory[len(c.PriceHistory)-limit:]...)
	}
}

// Clone returns a deep copy of the commodity.
func (c *Commodity) Clone() Commodity {
	out := *c
	out.PriceHistory = append([]float64(nil), c.PriceHistory...)
	return out
}

// scaleStock multiplies a stock level by a modifier, keeping it >= 1.
func scaleStock(v int64, mod float64) int64 {
	return stockLevel(float64(v)*mod, 1)
}

func stockLevel(v float64, floor int64) int64 {
	if math.IsNaN(v) || v < float64(floor) {
		return floor
	}
	if v > maxStock {
		return maxStock
	}
	return int64(v)
}

func jitter(rng Rand) int64 {
	return int64(rng.IntN(2*stockJitter+1) - stockJitter)
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
