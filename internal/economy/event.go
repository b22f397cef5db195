package economy

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"

	"github.com/google/uuid"
)

// EventKind identifies a type of economic disruption.
type EventKind uint8

const (
	EventNone EventKind = iota // No-op; never triggered
	EventResourceShortage
	EventTradeBoom
	EventTechBreakthrough
	EventPlague
	EventPirateActivity
	EventWarDeclared
	EventMarketCrash
	EventMiningDiscovery
)

var eventKindNames = [...]string{
	EventNone:             "none",
	EventResourceShortage: "resource_shortage",
	EventTradeBoom:        "trade_boom",
	EventTechBreakthrough: "tech_breakthrough",
	EventPlague:           "plague",
	EventPirateActivity:   "pirate_activity",
	EventWarDeclared:      "war_declared",
	EventMarketCrash:      "market_crash",
	EventMiningDiscovery:  "mining_discovery",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("event(%d)", k)
}

// ParseEventKind maps an event kind name to its EventKind.
func ParseEventKind(name string) (EventKind, bool) {
	for i, n := range eventKindNames {
		if n == name {
			return EventKind(i), true
		}
	}
	return EventNone, false
}

// eventIDSpace namespaces the name-based UUIDs given to events.
var eventIDSpace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("starmarket.economic-event"))

// EventTemplate is the catalog entry for one event kind.
type EventTemplate struct {
	Kind            EventKind
	Description     string
	Affected        []string
	PriceModifiers  map[string]float64
	SupplyModifiers map[string]float64
	DemandModifiers map[string]float64
	MinDuration     uint32 // Turns
	MaxDuration     uint32
}

// Validate checks the template against the set of traded commodities.
func (t EventTemplate) Validate(known func(string) bool) error {
	var errs []error
	if t.Kind == EventNone || int(t.Kind) >= len(eventKindNames) {
		errs = append(errs, fmt.Errorf("template kind %s cannot be triggered", t.Kind))
	}
	if len(t.Affected) == 0 {
		errs = append(errs, fmt.Errorf("%s: no affected commodities", t.Kind))
	}
	for _, name := range t.Affected {
		if !known(name) {
			errs = append(errs, fmt.Errorf("%s: unknown commodity %q", t.Kind, name))
		}
	}
	if t.MinDuration == 0 || t.MinDuration > t.MaxDuration {
		errs = append(errs, fmt.Errorf("%s: duration range [%d, %d] invalid", t.Kind, t.MinDuration, t.MaxDuration))
	}
	for _, set := range []struct {
		label string
		mods  map[string]float64
	}{
		{"price", t.PriceModifiers},
		{"supply", t.SupplyModifiers},
		{"demand", t.DemandModifiers},
	} {
		for _, name := range slices.Sorted(maps.Keys(set.mods)) {
			if !slices.Contains(t.Affected, name) {
				errs = append(errs, fmt.Errorf("%s: %s modifier for unaffected commodity %q", t.Kind, set.label, name))
			}
			if mod := set.mods[name]; !(mod > 0) {
				errs = append(errs, fmt.Errorf("%s: %s modifier for %q must be positive", t.Kind, set.label, name))
			}
		}
	}
	return errors.Join(errs...)
}

// EconomicEvent is an active, time-boxed disruption.
type EconomicEvent struct {
	ID              string             `json:"id"`
	Kind            EventKind          `json:"kind"`
	Description     string             `json:"description"`
	Affected        []string           `json:"affected"`
	PriceModifiers  map[string]float64 `json:"price_modifiers"`
	SupplyModifiers map[string]float64 `json:"supply_modifiers"`
	DemandModifiers map[string]float64 `json:"demand_modifiers"`
	Duration        uint32             `json:"duration"`
	StartTurn       uint32             `json:"start_turn"`
	Scope           *SectorID          `json:"scope,omitempty"` // nil = galaxy-wide
}

// Expired reports whether the event has run its full duration by turn.
func (e *EconomicEvent) Expired(turn uint32) bool {
	return turn >= e.StartTurn && turn-e.StartTurn >= e.Duration
}

// Clone returns a deep copy of the event.
func (e *EconomicEvent) Clone() EconomicEvent {
	out := *e
	out.Affected = slices.Clone(e.Affected)
	out.PriceModifiers = cloneModifiers(e.PriceModifiers)
	out.SupplyModifiers = cloneModifiers(e.SupplyModifiers)
	out.DemandModifiers = cloneModifiers(e.DemandModifiers)
	if e.Scope != nil {
		scope := *e.Scope
		out.Scope = &scope
	}
	return out
}

// EventEngine owns the event catalog and the set of active events.
type EventEngine struct {
	catalog     map[EventKind]EventTemplate
	kinds       []EventKind // Triggerable kinds in enum order
	probability float64
	active      []*EconomicEvent
	seq         uint64
}

// NewEventEngine validates the catalog and returns an engine with no active events.
func NewEventEngine(templates []EventTemplate, probability float64, known func(string) bool) (*EventEngine, error) {
	if probability < 0 || probability > 1 {
		return nil, fmt.Errorf("event probability %.3f outside [0, 1]", probability)
	}
	ee := &EventEngine{
		catalog:     make(map[EventKind]EventTemplate, len(templates)),
		probability: probability,
	}
	for _, t := range templates {
		if err := t.Validate(known); err != nil {
			return nil, fmt.Errorf("event catalog: %w", err)
		}
		if _, dup := ee.catalog[t.Kind]; dup {
			return nil, fmt.Errorf("event catalog: duplicate template for %s", t.Kind)
		}
		ee.catalog[t.Kind] = t
		ee.kinds = append(ee.kinds, t.Kind)
	}
	slices.Sort(ee.kinds)
	return ee, nil
}

// Template returns the catalog entry for kind.
func (ee *EventEngine) Template(kind EventKind) (EventTemplate, bool) {
	t, ok := ee.catalog[kind]
	return t, ok
}

// Advance expires finished events, then rolls for a new random one.
func (ee *EventEngine) Advance(turn uint32, market map[string]*Commodity, sectors map[SectorID]*SectorEconomy, rng Rand) (expired, triggered []*EconomicEvent) {
	n := 0
	for _, ev := range ee.active {
		if ev.Expired(turn) {
			revert(ev, market, sectors)
			expired = append(expired, ev)
			continue
		}
		ee.active[n] = ev
		n++
	}
	clear(ee.active[n:])
	ee.active = ee.active[:n]

	if rng.Float64() < ee.probability && len(ee.kinds) > 0 {
		kind := ee.kinds[rng.IntN(len(ee.kinds))]
		if ev, ok := ee.Trigger(kind, turn, market, rng); ok {
			triggered = append(triggered, ev)
		}
	}
	return expired, triggered
}

// Trigger starts a galaxy-wide event of the given kind. Unknown kinds and
// EventNone are ignored.
func (ee *EventEngine) Trigger(kind EventKind, turn uint32, market map[string]*Commodity, rng Rand) (*EconomicEvent, bool) {
	ev, ok := ee.newEvent(kind, turn, rng)
	if !ok {
		return nil, false
	}
	apply(ev, market, nil)
	ee.active = append(ee.active, ev)
	slog.Info("economic event triggered", "kind", ev.Kind.String(), "id", ev.ID, "turn", turn, "duration", ev.Duration)
	return ev, true
}

// TriggerInSector starts an event whose price effect is local to one sector.
// Supply and demand effects still land on the shared commodity.
func (ee *EventEngine) TriggerInSector(kind EventKind, sector *SectorEconomy, turn uint32, market map[string]*Commodity, rng Rand) (*EconomicEvent, bool) {
	if sector == nil {
		return nil, false
	}
	ev, ok := ee.newEvent(kind, turn, rng)
	if !ok {
		return nil, false
	}
	id := sector.ID
	ev.Scope = &id
	apply(ev, market, sector)
	ee.active = append(ee.active, ev)
	slog.Info("economic event triggered", "kind", ev.Kind.String(), "id", ev.ID, "turn", turn, "duration", ev.Duration, "sector", id)
	return ev, true
}

func (ee *EventEngine) newEvent(kind EventKind, turn uint32, rng Rand) (*EconomicEvent, bool) {
	if kind == EventNone {
		return nil, false
	}
	t, ok := ee.catalog[kind]
	if !ok {
		return nil, false
	}
	span := int(t.MaxDuration - t.MinDuration)
	duration := t.MinDuration + uint32(rng.IntN(span+1))

	ee.seq++
	affected := slices.Clone(t.Affected)
	sort.Strings(affected)
	return &EconomicEvent{
		ID:              uuid.NewSHA1(eventIDSpace, fmt.Appendf(nil, "%s/%d/%d", kind, turn, ee.seq)).String(),
		Kind:            kind,
		Description:     t.Description,
		Affected:        affected,
		PriceModifiers:  cloneModifiers(t.PriceModifiers),
		SupplyModifiers: cloneModifiers(t.SupplyModifiers),
		DemandModifiers: cloneModifiers(t.DemandModifiers),
		Duration:        duration,
		StartTurn:       turn,
	}, true
}

// Active returns the active events ordered by start turn.
func (ee *EventEngine) Active() []*EconomicEvent {
	out := slices.Clone(ee.active)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTurn != out[j].StartTurn {
			return out[i].StartTurn < out[j].StartTurn
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Sequence returns the number of events created so far.
func (ee *EventEngine) Sequence() uint64 {
	return ee.seq
}

// Restore replaces the active set verbatim. Modifiers already on commodities
// and sectors are assumed to be part of the restored state.
func (ee *EventEngine) Restore(active []EconomicEvent, seq uint64) {
	ee.active = ee.active[:0]
	for i := range active {
		ev := active[i].Clone()
		ee.active = append(ee.active, &ev)
	}
	ee.seq = seq
}

// apply writes an event's modifiers. Price modifiers are last-write-wins:
// a later event on the same commodity overwrites the earlier one.
func apply(ev *EconomicEvent, market map[string]*Commodity, sector *SectorEconomy) {
	for _, name := range ev.Affected {
		c, ok := market[name]
		if !ok {
			continue
		}
		price := modifier(ev.PriceModifiers, name)
		if sector == nil {
			c.EventModifier = price
		} else {
			sector.setLocalModifier(name, price)
		}
		c.Supply = scaleStock(c.Supply, modifier(ev.SupplyModifiers, name))
		c.Demand = scaleStock(c.Demand, modifier(ev.DemandModifiers, name))
	}
}

// revert resets price effects to neutral, regardless of what other events
// wrote in the meantime.
func revert(ev *EconomicEvent, market map[string]*Commodity, sectors map[SectorID]*SectorEconomy) {
	if ev.Scope != nil {
		if s, ok := sectors[*ev.Scope]; ok {
			for _, name := range ev.Affected {
				s.clearLocalModifier(name)
			}
		}
	} else {
		for _, name := range ev.Affected {
			if c, ok := market[name]; ok {
				c.EventModifier = 1.0
			}
		}
	}
	slog.Info("economic event expired", "kind", ev.Kind.String(), "id", ev.ID)
}

func modifier(mods map[string]float64, name string) float64 {
	if m, ok := mods[name]; ok {
		return m
	}
	return 1.0
}

func cloneModifiers(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
