package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTables = SpecializationTables{
	Exports: map[string][]string{
		"mining":      {"Iron", "Titanium"},
		"industrial":  {"Electronics", "Weapons"},
		"agriculture": {"Food", "Water"},
	},
	Imports: map[string][]string{
		"mining":      {"Food", "Medicine"},
		"industrial":  {"Iron", "Titanium"},
		"agriculture": {"Electronics"},
	},
}

func TestQuotePrice_ImportAtFullStability_Scenario(t *testing.T) {
	iron := newCommodityForTest(t, "Iron", 80, 50, 500, 450, 0.25)
	s := NewSectorEconomy(SectorParams{
		ID:              1,
		WealthLevel:     1.0,
		Specializations: []string{"industrial"},
		Stability:       1.0,
		Corruption:      0.0,
	}, testTables)
	require.Equal(t, ConditionStable, s.Condition)
	require.True(t, s.IsImport("Iron"))

	// Full stability draws nothing from the generator.
	assert.InDelta(t, 80*1.1, s.QuotePrice(iron, nil, RoundNone), 1e-9)
}

func TestQuotePrice_ExportWithCorruption(t *testing.T) {
	iron := newCommodityForTest(t, "Iron", 80, 50, 500, 450, 0.25)
	s := NewSectorEconomy(SectorParams{ID: 1, WealthLevel: 1.0, Specializations: []string{"mining"}, Stability: 1, Corruption: 0.5}, testTables)
	assert.InDelta(t, 80*0.85, s.QuotePrice(iron, quiet, RoundNone), 1e-9)
}

func TestQuotePrice_ConditionAndWealth(t *testing.T) {
	water := newCommodityForTest(t, "Water", 20, 10, 800, 700, 0.1)
	s := NewSectorEconomy(SectorParams{ID: 1, WealthLevel: 2.0, Stability: 1}, testTables)
	require.Equal(t, ConditionGrowth, s.Condition)
	assert.InDelta(t, 20*2.0*1.1, s.QuotePrice(water, quiet, RoundNone), 1e-9)

	s.Condition = ConditionDepression
	assert.InDelta(t, 20*2.0*0.8, s.QuotePrice(water, quiet, RoundNone), 1e-9)
}

func TestQuotePrice_VarianceBounds(t *testing.T) {
	water := newCommodityForTest(t, "Water", 20, 10, 800, 700, 0.1)
	s := NewSectorEconomy(SectorParams{ID: 1, WealthLevel: 1.0, Stability: 0}, testTables)

	assert.InDelta(t, 16.0, s.QuotePrice(water, stubRand{f: 0}, RoundNone), 1e-9)

	rng := seeded(5)
	for i := 0; i < 1000; i++ {
		q := s.QuotePrice(water, rng, RoundNone)
		require.GreaterOrEqual(t, q, 16.0)
		require.Less(t, q, 24.0)
	}
}

func TestQuotePrice_RoundingAndFloor(t *testing.T) {
	iron := newCommodityForTest(t, "Iron", 80, 50, 500, 450, 0.25)
	s := NewSectorEconomy(SectorParams{ID: 1, WealthLevel: 1.0, Specializations: []string{"industrial"}, Stability: 1}, testTables)
	assert.Equal(t, 88.0, s.QuotePrice(iron, quiet, RoundWhole))

	dust := newCommodityForTest(t, "Dust", 0.5, 0.3, 100, 100, 0.1)
	poor := NewSectorEconomy(SectorParams{ID: 2, WealthLevel: 0.1, Stability: 1}, testTables)
	assert.Equal(t, 1.0, poor.QuotePrice(dust, quiet, RoundNone))
	assert.Equal(t, 1.0, poor.QuotePrice(dust, quiet, RoundWhole))
}

func TestDeriveTradeLists_ExportsWinTies(t *testing.T) {
	imports, exports := DeriveTradeLists([]string{"mining", "industrial", "mining"}, testTables)
	assert.Equal(t, []string{"Electronics", "Iron", "Titanium", "Weapons"}, exports)
	assert.Equal(t, []string{"Food", "Medicine"}, imports)

	for _, name := range imports {
		assert.NotContains(t, exports, name)
	}
}

func TestDeriveTradeLists_UnknownSpecialization(t *testing.T) {
	imports, exports := DeriveTradeLists([]string{"piracy"}, testTables)
	assert.Empty(t, imports)
	assert.Empty(t, exports)
}

func TestNewSectorEconomy_ClampsInputs(t *testing.T) {
	s := NewSectorEconomy(SectorParams{
		ID:          1,
		WealthLevel: 9,
		Stability:   -1,
		Corruption:  4,
		TradeRoutes: []SectorID{5, 2, 5},
	}, testTables)
	assert.Equal(t, 3.0, s.WealthLevel)
	assert.Equal(t, 0.0, s.Stability)
	assert.Equal(t, 1.0, s.Corruption)
	assert.Equal(t, []SectorID{2, 5}, s.TradeRoutes)

	poor := NewSectorEconomy(SectorParams{ID: 2, WealthLevel: 0.5}, testTables)
	assert.Equal(t, ConditionRecession, poor.Condition)
}

func TestAdvance_WealthStaysInBounds(t *testing.T) {
	rng := seeded(9)
	rich := NewSectorEconomy(SectorParams{ID: 1, WealthLevel: 3.0}, testTables)
	rich.Condition = ConditionBoom
	poor := NewSectorEconomy(SectorParams{ID: 2, WealthLevel: 0.1}, testTables)
	poor.Condition = ConditionDepression

	for turn := uint32(1); turn <= 2000; turn++ {
		for _, s := range []*SectorEconomy{rich, poor} {
			s.Advance(turn, rng, DefaultSectorTuning())
			require.GreaterOrEqual(t, s.WealthLevel, 0.1)
			require.LessOrEqual(t, s.WealthLevel, 3.0)
		}
	}
}

func TestAdvance_ConditionReroll(t *testing.T) {
	roll := stubRand{f: 0}
	tuning := DefaultSectorTuning()

	cases := []struct {
		name   string
		wealth float64
		from   MarketCondition
		want   MarketCondition
	}{
		{"rich sector grows", 2.0, ConditionStable, ConditionGrowth},
		{"poor sector slumps", 0.5, ConditionStable, ConditionRecession},
		{"middling sector settles", 1.0, ConditionBoom, ConditionStable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSectorEconomy(SectorParams{ID: 1, WealthLevel: tc.wealth}, testTables)
			s.Condition = tc.from
			assert.True(t, s.Advance(1, roll, tuning))
			assert.Equal(t, tc.want, s.Condition)
		})
	}

	s := NewSectorEconomy(SectorParams{ID: 1, WealthLevel: 2.0}, testTables)
	s.Condition = ConditionStable
	assert.False(t, s.Advance(1, stubRand{f: 0.5}, tuning), "no re-roll above the change probability")
	assert.Equal(t, ConditionStable, s.Condition)
}

func TestParseRoundingPolicy(t *testing.T) {
	p, err := ParseRoundingPolicy("whole")
	require.NoError(t, err)
	assert.Equal(t, RoundWhole, p)

	p, err = ParseRoundingPolicy("")
	require.NoError(t, err)
	assert.Equal(t, RoundNone, p)

	_, err = ParseRoundingPolicy("bankers")
	assert.Error(t, err)
}
