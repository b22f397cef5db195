package economy

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubRand returns fixed draws so single updates can be checked by hand.
type stubRand struct {
	f float64 // Float64
	n float64 // NormFloat64
	i int     // IntN, capped at n-1
}

func (s stubRand) Float64() float64     { return s.f }
func (s stubRand) NormFloat64() float64 { return s.n }
func (s stubRand) IntN(n int) int       { return min(s.i, n-1) }

// quiet draws zero noise and zero stock jitter.
var quiet = stubRand{f: 0.5, n: 0, i: stockJitter}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x5eed))
}

func newCommodityForTest(t *testing.T, name string, base, cost float64, supply, demand int64, vol float64) *Commodity {
	t.Helper()
	c, err := NewCommodity(CommodityParams{
		Name:           name,
		Category:       CategoryFood,
		BasePrice:      base,
		ProductionCost: cost,
		Supply:         supply,
		Demand:         demand,
		Volatility:     vol,
	})
	require.NoError(t, err)
	return c
}

func marketForTest(t *testing.T) map[string]*Commodity {
	t.Helper()
	return map[string]*Commodity{
		"Food":    newCommodityForTest(t, "Food", 50, 30, 500, 500, 0.2),
		"Iron":    newCommodityForTest(t, "Iron", 80, 50, 500, 450, 0.25),
		"Tritium": newCommodityForTest(t, "Tritium", 300, 180, 200, 220, 0.5),
	}
}

func knownIn(market map[string]*Commodity) func(string) bool {
	return func(name string) bool {
		_, ok := market[name]
		return ok
	}
}
