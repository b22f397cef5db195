package economy

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// SectorID is a unique identifier for a populated sector.
type SectorID = uint64

// MarketCondition is a sector's macro-economic state.
type MarketCondition uint8

const (
	ConditionDepression MarketCondition = iota
	ConditionRecession
	ConditionStable
	ConditionGrowth
	ConditionBoom
)

var conditionNames = [...]string{"depression", "recession", "stable", "growth", "boom"}

// Per-condition price multiplier and per-turn wealth drift.
var (
	conditionPriceFactor = [...]float64{0.8, 0.9, 1.0, 1.1, 1.2}
	conditionWealthDrift = [...]float64{-0.02, -0.01, 0.0, 0.01, 0.02}
)

func (m MarketCondition) String() string {
	if int(m) < len(conditionNames) {
		return conditionNames[m]
	}
	return fmt.Sprintf("condition(%d)", m)
}

// PriceFactor returns the quote multiplier for the condition.
func (m MarketCondition) PriceFactor() float64 {
	if int(m) < len(conditionPriceFactor) {
		return conditionPriceFactor[m]
	}
	return 1.0
}

func (m MarketCondition) wealthDrift() float64 {
	if int(m) < len(conditionWealthDrift) {
		return conditionWealthDrift[m]
	}
	return 0
}

// ParseCondition maps a condition name to its MarketCondition.
func ParseCondition(name string) (MarketCondition, error) {
	for i, n := range conditionNames {
		if n == name {
			return MarketCondition(i), nil
		}
	}
	return ConditionStable, fmt.Errorf("unknown market condition %q", name)
}

// Sector bounds and coefficients.
const (
	minWealth        = 0.1
	maxWealth        = 3.0
	growthThreshold  = 1.5
	declineThreshold = 0.7
	wealthNoise      = 0.005

	importMarkup     = 1.1
	importCorruption = 0.2
	exportDiscount   = 0.9
	exportCorruption = 0.1
	varianceScale    = 0.2
	minQuote         = 1.0
)

// RoundingPolicy controls how sector quotes are rounded.
type RoundingPolicy uint8

const (
	RoundNone  RoundingPolicy = iota // Keep fractional credits
	RoundWhole                       // Round to whole credits
)

// ParseRoundingPolicy maps "none" or "whole" to a RoundingPolicy.
func ParseRoundingPolicy(name string) (RoundingPolicy, error) {
	switch name {
	case "", "none":
		return RoundNone, nil
	case "whole":
		return RoundWhole, nil
	}
	return RoundNone, fmt.Errorf("unknown rounding policy %q", name)
}

func (p RoundingPolicy) apply(price float64) float64 {
	if p == RoundWhole {
		price = math.Round(price)
	}
	if math.IsNaN(price) {
		return minQuote
	}
	return max(price, minQuote)
}

// SectorTuning holds the engine-wide constants for sector updates.
type SectorTuning struct {
	ConditionChangeProbability float64 // Default 0.1
	Rounding                   RoundingPolicy
}

// DefaultSectorTuning returns the reference tuning.
func DefaultSectorTuning() SectorTuning {
	return SectorTuning{ConditionChangeProbability: 0.1, Rounding: RoundNone}
}

// SectorParams are the creation parameters supplied by the galaxy generator.
type SectorParams struct {
	ID                 SectorID
	Name               string
	WealthLevel        float64
	Population         uint64
	IndustrialCapacity float64
	Specializations    []string
	Stability          float64
	Corruption         float64
	TradeRoutes        []SectorID
}

// SpecializationTables map a specialization to what it exports and imports.
type SpecializationTables struct {
	Exports map[string][]string
	Imports map[string][]string
}

// SectorEconomy holds the regional modifiers applied on top of galaxy-wide prices.
type SectorEconomy struct {
	ID                 SectorID           `json:"id"`
	Name               string             `json:"name"`
	WealthLevel        float64            `json:"wealth_level"` // [0.1, 3.0]
	Population         uint64             `json:"population"`
	IndustrialCapacity float64            `json:"industrial_capacity"`
	Specializations    []string           `json:"specializations"`
	Imports            []string           `json:"imports"` // Disjoint from Exports
	Exports            []string           `json:"exports"`
	TradeRoutes        []SectorID         `json:"trade_routes"`
	Condition          MarketCondition    `json:"condition"`
	Stability          float64            `json:"stability"`  // [0, 1]; 1 = no local variance
	Corruption         float64            `json:"corruption"` // [0, 1]
	LocalModifiers     map[string]float64 `json:"local_modifiers,omitempty"`
}

// NewSectorEconomy builds a sector economy, deriving its trade lists from
// its specializations.
func NewSectorEconomy(p SectorParams, tables SpecializationTables) *SectorEconomy {
	imports, exports := DeriveTradeLists(p.Specializations, tables)
	s := &SectorEconomy{
		ID:                 p.ID,
		Name:               p.Name,
		WealthLevel:        clamp(finiteOr(p.WealthLevel, 1.0), minWealth, maxWealth),
		Population:         p.Population,
		IndustrialCapacity: max(finiteOr(p.IndustrialCapacity, 0), 0),
		Specializations:    slices.Clone(p.Specializations),
		Imports:            imports,
		Exports:            exports,
		TradeRoutes:        slices.Clone(p.TradeRoutes),
		Stability:          clamp(finiteOr(p.Stability, 1.0), 0, 1),
		Corruption:         clamp(finiteOr(p.Corruption, 0), 0, 1),
	}
	slices.Sort(s.TradeRoutes)
	s.TradeRoutes = slices.Compact(s.TradeRoutes)
	s.Condition = initialCondition(s.WealthLevel)
	return s
}

// DeriveTradeLists unions the specialization tables. Any commodity both
// exported and imported stays an export.
func DeriveTradeLists(specializations []string, tables SpecializationTables) (imports, exports []string) {
	for _, spec := range specializations {
		exports = append(exports, tables.Exports[spec]...)
		imports = append(imports, tables.Imports[spec]...)
	}
	sort.Strings(exports)
	exports = slices.Compact(exports)
	sort.Strings(imports)
	imports = slices.Compact(imports)
	imports = slices.DeleteFunc(imports, func(name string) bool {
		_, found := slices.BinarySearch(exports, name)
		return found
	})
	return imports, exports
}

// IsImport reports whether the sector imports the commodity.
func (s *SectorEconomy) IsImport(name string) bool {
	return slices.Contains(s.Imports, name)
}

// IsExport reports whether the sector exports the commodity.
func (s *SectorEconomy) IsExport(name string) bool {
	return slices.Contains(s.Exports, name)
}

// QuotePrice turns a galaxy-wide price into this sector's local price.
func (s *SectorEconomy) QuotePrice(c *Commodity, rng Rand, rounding RoundingPolicy) float64 {
	price := c.CurrentPrice * s.WealthLevel

	switch {
	case s.IsImport(c.Name):
		price *= importMarkup + s.Corruption*importCorruption
	case s.IsExport(c.Name):
		price *= exportDiscount - s.Corruption*exportCorruption
	}

	price *= s.Condition.PriceFactor()
	if mod, ok := s.LocalModifiers[c.Name]; ok {
		price *= mod
	}

	if variance := (1 - s.Stability) * varianceScale; variance > 0 {
		price *= 1 - variance + rng.Float64()*2*variance
	}
	return rounding.apply(price)
}

// Advance drifts wealth and occasionally re-rolls the market condition.
// Returns true when the condition changed.
func (s *SectorEconomy) Advance(turn uint32, rng Rand, tuning SectorTuning) bool {
	drift := s.Condition.wealthDrift() + rng.NormFloat64()*wealthNoise
	s.WealthLevel = clamp(finiteOr(s.WealthLevel*(1+drift), 1.0), minWealth, maxWealth)

	if rng.Float64() >= tuning.ConditionChangeProbability {
		return false
	}
	next := s.rollCondition(rng)
	changed := next != s.Condition
	s.Condition = next
	return changed
}

func (s *SectorEconomy) rollCondition(rng Rand) MarketCondition {
	switch {
	case s.WealthLevel > growthThreshold:
		if rng.Float64() < 0.5 {
			return ConditionGrowth
		}
		return ConditionBoom
	case s.WealthLevel < declineThreshold:
		if rng.Float64() < 0.5 {
			return ConditionRecession
		}
		return ConditionDepression
	default:
		return ConditionStable
	}
}

func initialCondition(wealth float64) MarketCondition {
	switch {
	case wealth > growthThreshold:
		return ConditionGrowth
	case wealth < declineThreshold:
		return ConditionRecession
	default:
		return ConditionStable
	}
}

func (s *SectorEconomy) setLocalModifier(name string, mod float64) {
	if s.LocalModifiers == nil {
		s.LocalModifiers = make(map[string]float64)
	}
	s.LocalModifiers[name] = mod
}

func (s *SectorEconomy) clearLocalModifier(name string) {
	delete(s.LocalModifiers, name)
	if len(s.LocalModifiers) == 0 {
		s.LocalModifiers = nil
	}
}

// Clone returns a deep copy of the sector economy.
func (s *SectorEconomy) Clone() SectorEconomy {
	out := *s
	out.Specializations = slices.Clone(s.Specializations)
	out.Imports = slices.Clone(s.Imports)
	out.Exports = slices.Clone(s.Exports)
	out.TradeRoutes = slices.Clone(s.TradeRoutes)
	out.LocalModifiers = cloneModifiers(s.LocalModifiers)
	return out
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
