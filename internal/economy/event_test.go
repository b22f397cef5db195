package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortageTemplate() EventTemplate {
	return EventTemplate{
		Kind:            EventResourceShortage,
		Description:     "Refinery outages",
		Affected:        []string{"Tritium"},
		PriceModifiers:  map[string]float64{"Tritium": 2.5},
		SupplyModifiers: map[string]float64{"Tritium": 0.5},
		MinDuration:     20,
		MaxDuration:     20,
	}
}

func newEventEngineForTest(t *testing.T, market map[string]*Commodity, probability float64, templates ...EventTemplate) *EventEngine {
	t.Helper()
	ee, err := NewEventEngine(templates, probability, knownIn(market))
	require.NoError(t, err)
	return ee
}

func TestResourceShortage_Scenario(t *testing.T) {
	market := marketForTest(t)
	ee := newEventEngineForTest(t, market, 0, shortageTemplate())
	rng := seeded(1)

	ev, ok := ee.Trigger(EventResourceShortage, 5, market, rng)
	require.True(t, ok)
	assert.Equal(t, uint32(20), ev.Duration)
	assert.Equal(t, uint32(5), ev.StartTurn)
	assert.Equal(t, 2.5, market["Tritium"].EventModifier)
	assert.Equal(t, int64(100), market["Tritium"].Supply)
	assert.Equal(t, int64(220), market["Tritium"].Demand, "unspecified modifiers default to 1.0")
	assert.Equal(t, 1.0, market["Iron"].EventModifier)

	for turn := uint32(6); turn < 25; turn++ {
		expired, _ := ee.Advance(turn, market, nil, rng)
		require.Empty(t, expired, "turn %d", turn)
		require.Equal(t, 2.5, market["Tritium"].EventModifier)
	}

	expired, triggered := ee.Advance(25, market, nil, rng)
	require.Len(t, expired, 1)
	assert.Empty(t, triggered)
	assert.Equal(t, ev.ID, expired[0].ID)
	assert.Equal(t, 1.0, market["Tritium"].EventModifier)
	assert.Empty(t, ee.Active())
}

func TestOverlappingEvents_LastWriteWins(t *testing.T) {
	market := marketForTest(t)
	boom := EventTemplate{
		Kind:           EventTradeBoom,
		Description:    "Boom",
		Affected:       []string{"Tritium"},
		PriceModifiers: map[string]float64{"Tritium": 1.4},
		MinDuration:    50,
		MaxDuration:    50,
	}
	ee := newEventEngineForTest(t, market, 0, shortageTemplate(), boom)
	rng := seeded(1)

	_, ok := ee.Trigger(EventResourceShortage, 0, market, rng)
	require.True(t, ok)
	_, ok = ee.Trigger(EventTradeBoom, 1, market, rng)
	require.True(t, ok)
	assert.Equal(t, 1.4, market["Tritium"].EventModifier, "later event overwrites")

	expired, _ := ee.Advance(20, market, nil, rng)
	require.Len(t, expired, 1)
	assert.Equal(t, 1.0, market["Tritium"].EventModifier, "expiry resets regardless of other active events")
	assert.Len(t, ee.Active(), 1)
}

func TestTrigger_NoneAndUnknownAreNoOps(t *testing.T) {
	market := marketForTest(t)
	ee := newEventEngineForTest(t, market, 0, shortageTemplate())

	ev, ok := ee.Trigger(EventNone, 0, market, seeded(1))
	assert.False(t, ok)
	assert.Nil(t, ev)

	ev, ok = ee.Trigger(EventPlague, 0, market, seeded(1))
	assert.False(t, ok)
	assert.Nil(t, ev)
	assert.Empty(t, ee.Active())
	assert.Equal(t, 1.0, market["Tritium"].EventModifier)
}

func TestAdvance_RandomTriggerProbability(t *testing.T) {
	market := marketForTest(t)
	never := newEventEngineForTest(t, market, 0, shortageTemplate())
	always := newEventEngineForTest(t, market, 1, shortageTemplate())
	rng := seeded(2)

	for turn := uint32(0); turn < 10; turn++ {
		_, triggered := never.Advance(turn, market, nil, rng)
		assert.Empty(t, triggered)
	}

	_, triggered := always.Advance(0, market, nil, rng)
	require.Len(t, triggered, 1)
	assert.Equal(t, EventResourceShortage, triggered[0].Kind)
}

func TestNewEvent_DurationInRange(t *testing.T) {
	market := marketForTest(t)
	tmpl := shortageTemplate()
	tmpl.MinDuration, tmpl.MaxDuration = 10, 25
	ee := newEventEngineForTest(t, market, 0, tmpl)
	rng := seeded(4)

	seen := map[uint32]bool{}
	for i := 0; i < 500; i++ {
		ev, ok := ee.Trigger(EventResourceShortage, 0, market, rng)
		require.True(t, ok)
		require.GreaterOrEqual(t, ev.Duration, uint32(10))
		require.LessOrEqual(t, ev.Duration, uint32(25))
		seen[ev.Duration] = true
	}
	assert.Len(t, seen, 16)
}

func TestTriggerInSector_ScopesPriceEffect(t *testing.T) {
	market := marketForTest(t)
	ee := newEventEngineForTest(t, market, 0, shortageTemplate())
	sector := NewSectorEconomy(SectorParams{ID: 3, Name: "Vega Reach", WealthLevel: 1, Stability: 1}, SpecializationTables{})
	sectors := map[SectorID]*SectorEconomy{3: sector}
	rng := seeded(1)

	ev, ok := ee.TriggerInSector(EventResourceShortage, sector, 0, market, rng)
	require.True(t, ok)
	require.NotNil(t, ev.Scope)
	assert.Equal(t, SectorID(3), *ev.Scope)
	assert.Equal(t, 1.0, market["Tritium"].EventModifier)
	assert.Equal(t, 2.5, sector.LocalModifiers["Tritium"])
	assert.Equal(t, int64(100), market["Tritium"].Supply, "supply effect is galaxy-wide")

	quote := sector.QuotePrice(market["Tritium"], quiet, RoundNone)
	assert.InDelta(t, 300*2.5, quote, 1e-9)

	expired, _ := ee.Advance(20, market, sectors, rng)
	require.Len(t, expired, 1)
	assert.NotContains(t, sector.LocalModifiers, "Tritium")

	_, ok = ee.TriggerInSector(EventResourceShortage, nil, 0, market, rng)
	assert.False(t, ok)
}

func TestEventIDs_Deterministic(t *testing.T) {
	m1, m2 := marketForTest(t), marketForTest(t)
	a := newEventEngineForTest(t, m1, 0, shortageTemplate())
	b := newEventEngineForTest(t, m2, 0, shortageTemplate())

	ea, _ := a.Trigger(EventResourceShortage, 9, m1, seeded(1))
	eb, _ := b.Trigger(EventResourceShortage, 9, m2, seeded(1))
	assert.Equal(t, ea.ID, eb.ID)

	ec, _ := a.Trigger(EventResourceShortage, 9, m1, seeded(1))
	assert.NotEqual(t, ea.ID, ec.ID)
	assert.Equal(t, uint64(2), a.Sequence())
}

func TestNewEventEngine_RejectsBadCatalog(t *testing.T) {
	market := marketForTest(t)
	cases := map[string]func(tmpl *EventTemplate){
		"none kind":          func(tmpl *EventTemplate) { tmpl.Kind = EventNone },
		"no affected":        func(tmpl *EventTemplate) { tmpl.Affected = nil; tmpl.PriceModifiers = nil; tmpl.SupplyModifiers = nil },
		"unknown commodity":  func(tmpl *EventTemplate) { tmpl.Affected = append(tmpl.Affected, "Unobtainium") },
		"unaffected key":     func(tmpl *EventTemplate) { tmpl.DemandModifiers = map[string]float64{"Iron": 1.2} },
		"non-positive value": func(tmpl *EventTemplate) { tmpl.PriceModifiers["Tritium"] = 0 },
		"zero duration":      func(tmpl *EventTemplate) { tmpl.MinDuration = 0 },
		"inverted duration":  func(tmpl *EventTemplate) { tmpl.MinDuration, tmpl.MaxDuration = 30, 10 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tmpl := shortageTemplate()
			mutate(&tmpl)
			_, err := NewEventEngine([]EventTemplate{tmpl}, 0.05, knownIn(market))
			assert.Error(t, err)
		})
	}

	_, err := NewEventEngine([]EventTemplate{shortageTemplate(), shortageTemplate()}, 0.05, knownIn(market))
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewEventEngine(nil, 1.5, knownIn(market))
	assert.Error(t, err)
}

func TestEventTemplate_ValidateReportsInStableOrder(t *testing.T) {
	tmpl := shortageTemplate()
	tmpl.PriceModifiers = map[string]float64{"Tritium": 2.5, "Zinc": 1.1, "Argon": 1.1}
	tmpl.DemandModifiers = map[string]float64{"Mica": 1.2}
	anything := func(string) bool { return true }

	want := `resource_shortage: price modifier for unaffected commodity "Argon"
resource_shortage: price modifier for unaffected commodity "Zinc"
resource_shortage: demand modifier for unaffected commodity "Mica"`
	for i := 0; i < 20; i++ {
		err := tmpl.Validate(anything)
		require.Error(t, err)
		require.Equal(t, want, err.Error())
	}
}

func TestEventEngine_Restore(t *testing.T) {
	market := marketForTest(t)
	ee := newEventEngineForTest(t, market, 0, shortageTemplate())
	ev, _ := ee.Trigger(EventResourceShortage, 0, market, seeded(1))
	saved := []EconomicEvent{ev.Clone()}

	other := newEventEngineForTest(t, market, 0, shortageTemplate())
	other.Restore(saved, ee.Sequence())
	require.Len(t, other.Active(), 1)
	assert.Equal(t, ev.ID, other.Active()[0].ID)

	expired, _ := other.Advance(20, market, nil, seeded(1))
	assert.Len(t, expired, 1)
	assert.Equal(t, 1.0, market["Tritium"].EventModifier)
}

func TestExpired_BeforeStartTurn(t *testing.T) {
	ev := &EconomicEvent{StartTurn: 10, Duration: 5}
	assert.False(t, ev.Expired(3))
	assert.False(t, ev.Expired(14))
	assert.True(t, ev.Expired(15))
}

func TestParseEventKind(t *testing.T) {
	kind, ok := ParseEventKind("war_declared")
	assert.True(t, ok)
	assert.Equal(t, EventWarDeclared, kind)

	_, ok = ParseEventKind("alien_invasion")
	assert.False(t, ok)
}
