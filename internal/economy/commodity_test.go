package economy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommodity_Validation(t *testing.T) {
	valid := CommodityParams{Name: "Food", BasePrice: 50, ProductionCost: 30, Supply: 500, Demand: 500, Volatility: 0.2}

	cases := map[string]func(p *CommodityParams){
		"empty name":        func(p *CommodityParams) { p.Name = "" },
		"zero base price":   func(p *CommodityParams) { p.BasePrice = 0 },
		"nan base price":    func(p *CommodityParams) { p.BasePrice = math.NaN() },
		"negative cost":     func(p *CommodityParams) { p.ProductionCost = -1 },
		"zero volatility":   func(p *CommodityParams) { p.Volatility = 0 },
		"volatility over 1": func(p *CommodityParams) { p.Volatility = 1.5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			_, err := NewCommodity(p)
			assert.Error(t, err)
		})
	}

	c, err := NewCommodity(valid)
	require.NoError(t, err)
	assert.Equal(t, 50.0, c.CurrentPrice)
	assert.Equal(t, 1.0, c.EventModifier)
	assert.Equal(t, []float64{50}, c.PriceHistory)
}

func TestNewCommodity_FloorsStockAndPrice(t *testing.T) {
	c, err := NewCommodity(CommodityParams{Name: "Odd", BasePrice: 10, ProductionCost: 100, Supply: 0, Demand: -5, Volatility: 0.1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Supply)
	assert.Equal(t, int64(1), c.Demand)
	assert.Equal(t, 80.0, c.CurrentPrice)
}

func TestUpdate_FoodFloor_Scenario(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		c := newCommodityForTest(t, "Food", 50, 30, 500, 500, 0.2)
		c.Update(1, seeded(seed), DefaultMarketTuning())
		assert.GreaterOrEqual(t, c.CurrentPrice, 24.0, "seed %d", seed)
	}
}

func TestUpdate_OversupplyByHand(t *testing.T) {
	c := newCommodityForTest(t, "Food", 50, 30, 1000, 500, 0.2)

	c.Update(0, quiet, DefaultMarketTuning())

	// Pressure -0.1, no trend, no noise, seasonal factor 1 at turn 0.
	assert.InDelta(t, 45.0, c.CurrentPrice, 1e-9)
	assert.InDelta(t, 0.005, c.Trend, 1e-12)
	assert.InDelta(t, 525, c.Demand, 1)
	assert.InDelta(t, 970, c.Supply, 1)
	assert.Equal(t, 1.0, c.SeasonalFactor)
	assert.Len(t, c.PriceHistory, 2)
}

func TestUpdate_ElasticityAtPriceFloor(t *testing.T) {
	c := newCommodityForTest(t, "Food", 50, 30, 1000, 500, 0.2)
	c.CurrentPrice = c.PriceFloor()

	c.Update(0, quiet, DefaultMarketTuning())

	// The floor holds the price, but the 0.9 multiplier still moves stock.
	assert.Equal(t, c.PriceFloor(), c.CurrentPrice)
	assert.InDelta(t, 525, c.Demand, 1)
	assert.InDelta(t, 970, c.Supply, 1)
}

func TestUpdate_UndersupplyRaisesPrice(t *testing.T) {
	c := newCommodityForTest(t, "Tritium", 300, 180, 100, 500, 0.5)
	c.Update(0, quiet, DefaultMarketTuning())
	assert.InDelta(t, 330.0, c.CurrentPrice, 1e-9)
	assert.Less(t, c.Trend, 0.0, "mean reversion pulls back toward base")
}

func TestUpdate_EventModifierScalesChange(t *testing.T) {
	c := newCommodityForTest(t, "Tritium", 300, 180, 100, 500, 0.5)
	c.EventModifier = 2.5
	c.Update(0, quiet, DefaultMarketTuning())
	assert.InDelta(t, 300*1.25, c.CurrentPrice, 1e-9)
}

func TestUpdate_Invariants(t *testing.T) {
	rng := seeded(7)
	tuning := DefaultMarketTuning()
	commodities := []*Commodity{
		newCommodityForTest(t, "Glut", 50, 30, 1_000_000, 1, 1.0),
		newCommodityForTest(t, "Famine", 50, 30, 1, 1_000_000, 1.0),
		newCommodityForTest(t, "Calm", 20, 10, 800, 700, 0.01),
	}
	commodities[0].Trend = 0.5
	commodities[1].Trend = -0.5
	commodities[1].EventModifier = 3

	for turn := uint32(1); turn <= 1000; turn++ {
		for _, c := range commodities {
			c.Update(turn, rng, tuning)
			require.GreaterOrEqual(t, c.CurrentPrice, c.PriceFloor(), "%s turn %d", c.Name, turn)
			require.GreaterOrEqual(t, c.Supply, int64(1))
			require.GreaterOrEqual(t, c.Demand, int64(1))
			require.GreaterOrEqual(t, c.Trend, -0.5)
			require.LessOrEqual(t, c.Trend, 0.5)
			require.False(t, math.IsNaN(c.CurrentPrice) || math.IsInf(c.CurrentPrice, 0))
			require.LessOrEqual(t, len(c.PriceHistory), tuning.HistoryLength)
		}
	}
}

func TestUpdate_RepairsBadState(t *testing.T) {
	c := newCommodityForTest(t, "Food", 50, 30, 500, 500, 0.2)
	c.CurrentPrice = math.NaN()
	c.EventModifier = 0
	c.Trend = math.Inf(1)
	c.Supply = -20

	require.NotPanics(t, func() { c.Update(3, seeded(1), DefaultMarketTuning()) })
	assert.False(t, math.IsNaN(c.CurrentPrice))
	assert.GreaterOrEqual(t, c.CurrentPrice, 24.0)
	assert.Equal(t, 1.0, c.EventModifier)
	assert.LessOrEqual(t, c.Trend, 0.5)
	assert.GreaterOrEqual(t, c.Supply, int64(1))
}

func TestUpdate_SameSeedSameHistory(t *testing.T) {
	a := newCommodityForTest(t, "Iron", 80, 50, 500, 450, 0.25)
	b := newCommodityForTest(t, "Iron", 80, 50, 500, 450, 0.25)
	ra, rb := seeded(11), seeded(11)
	for turn := uint32(1); turn <= 100; turn++ {
		a.Update(turn, ra, DefaultMarketTuning())
		b.Update(turn, rb, DefaultMarketTuning())
	}
	assert.Equal(t, a.PriceHistory, b.PriceHistory)
	assert.Equal(t, a.Supply, b.Supply)
}

func TestSeasonalFactor(t *testing.T) {
	assert.Equal(t, 1.0, SeasonalFactor(0, 0.15))
	assert.InDelta(t, 1+math.Sin(1.0)*0.15, SeasonalFactor(10, 0.15), 1e-12)
	assert.Equal(t, 1.0, SeasonalFactor(10, 0))
}

func TestJitter_Range(t *testing.T) {
	rng := seeded(3)
	seen := map[int64]bool{}
	for i := 0; i < 5000; i++ {
		j := jitter(rng)
		require.GreaterOrEqual(t, j, int64(-10))
		require.LessOrEqual(t, j, int64(10))
		seen[j] = true
	}
	assert.Len(t, seen, 21)
}

func TestCommodity_CloneIsDeep(t *testing.T) {
	c := newCommodityForTest(t, "Food", 50, 30, 500, 500, 0.2)
	cp := c.Clone()
	cp.PriceHistory[0] = 1
	assert.Equal(t, 50.0, c.PriceHistory[0])
}
