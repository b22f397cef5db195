// Package config loads the market engine's tuning, commodity catalog, event
// catalog, and specialization tables from YAML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/talgya/starmarket/internal/economy"
)

//go:embed economy.yaml
var defaultYAML []byte

// Config is the root document.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Simulation  SimulationConfig  `yaml:"simulation" json:"simulation"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Market      MarketConfig      `yaml:"market" json:"market"`
	Sectors     SectorsConfig     `yaml:"sectors" json:"sectors"`
	History     HistoryConfig     `yaml:"history" json:"history"`
	Quotes      QuotesConfig      `yaml:"quotes" json:"quotes"`
	Commodities []CommodityConfig `yaml:"commodities" json:"commodities"`
	Events      EventsConfig      `yaml:"events" json:"events"`
}

// SimulationConfig drives the headless runner.
type SimulationConfig struct {
	Seed        uint64 `yaml:"seed" json:"seed"` // 0 = random
	Turns       int    `yaml:"turns" json:"turns"`
	Sectors     int    `yaml:"sectors" json:"sectors"`
	ReportEvery int    `yaml:"report_every" json:"report_every"`
	SaveEvery   int    `yaml:"save_every" json:"save_every"`
}

type StorageConfig struct {
	Path string `yaml:"path" json:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // text or json
}

type MarketConfig struct {
	SeasonalAmplitude float64 `yaml:"seasonal_amplitude" json:"seasonal_amplitude"`
	PriceHistory      int     `yaml:"price_history" json:"price_history"`
}

type SectorsConfig struct {
	ConditionChangeProbability float64                         `yaml:"condition_change_probability" json:"condition_change_probability"`
	Rounding                   string                          `yaml:"rounding" json:"rounding"`
	Specializations            map[string]SpecializationConfig `yaml:"specializations" json:"specializations"`
}

type SpecializationConfig struct {
	Exports []string `yaml:"exports" json:"exports"`
	Imports []string `yaml:"imports" json:"imports"`
}

type HistoryConfig struct {
	TradeRecords int `yaml:"trade_records" json:"trade_records"`
	Feed         int `yaml:"feed" json:"feed"`
}

type QuotesConfig struct {
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

type CommodityConfig struct {
	Name           string  `yaml:"name" json:"name"`
	Category       string  `yaml:"category" json:"category"`
	BasePrice      float64 `yaml:"base_price" json:"base_price"`
	ProductionCost float64 `yaml:"production_cost" json:"production_cost"`
	Supply         int64   `yaml:"supply" json:"supply"`
	Demand         int64   `yaml:"demand" json:"demand"`
	Volatility     float64 `yaml:"volatility" json:"volatility"`
}

type EventsConfig struct {
	Probability float64       `yaml:"probability" json:"probability"`
	Catalog     []EventConfig `yaml:"catalog" json:"catalog"`
}

type EventConfig struct {
	Kind            string             `yaml:"kind" json:"kind"`
	Description     string             `yaml:"description" json:"description"`
	Affected        []string           `yaml:"affected" json:"affected"`
	PriceModifiers  map[string]float64 `yaml:"price_modifiers" json:"price_modifiers"`
	SupplyModifiers map[string]float64 `yaml:"supply_modifiers" json:"supply_modifiers"`
	DemandModifiers map[string]float64 `yaml:"demand_modifiers" json:"demand_modifiers"`
	Duration        []uint32           `yaml:"duration" json:"duration"` // [min, max] turns
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded economy.yaml: %v", err))
	}
	return cfg
}

// Load reads and validates the config at path. An empty path returns the
// embedded default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the whole document, reporting every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Market.PriceHistory < 2 {
		errs = append(errs, fmt.Errorf("market.price_history must be at least 2"))
	}
	if c.Market.SeasonalAmplitude < 0 || c.Market.SeasonalAmplitude >= 1 {
		errs = append(errs, fmt.Errorf("market.seasonal_amplitude %.3f outside [0, 1)", c.Market.SeasonalAmplitude))
	}
	if p := c.Sectors.ConditionChangeProbability; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("sectors.condition_change_probability %.3f outside [0, 1]", p))
	}
	if _, err := economy.ParseRoundingPolicy(c.Sectors.Rounding); err != nil {
		errs = append(errs, fmt.Errorf("sectors.rounding: %w", err))
	}
	if p := c.Events.Probability; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("events.probability %.3f outside [0, 1]", p))
	}
	if c.History.TradeRecords <= 0 || c.History.Feed <= 0 {
		errs = append(errs, fmt.Errorf("history limits must be positive"))
	}
	if c.Quotes.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("quotes.cache_size must be positive"))
	}

	if len(c.Commodities) == 0 {
		errs = append(errs, fmt.Errorf("no commodities configured"))
	}
	if _, err := c.CommodityParams(); err != nil {
		errs = append(errs, err)
	}
	known := c.commodityNames()

	for _, spec := range c.SpecializationNames() {
		tbl := c.Sectors.Specializations[spec]
		for _, name := range append(append([]string(nil), tbl.Exports...), tbl.Imports...) {
			if !known[name] {
				errs = append(errs, fmt.Errorf("specialization %s: unknown commodity %q", spec, name))
			}
		}
	}

	templates, err := c.EventTemplates()
	if err != nil {
		errs = append(errs, err)
	}
	for _, t := range templates {
		if err := t.Validate(func(name string) bool { return known[name] }); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// CommodityParams converts the commodity catalog.
func (c *Config) CommodityParams() ([]economy.CommodityParams, error) {
	var errs []error
	seen := make(map[string]bool, len(c.Commodities))
	out := make([]economy.CommodityParams, 0, len(c.Commodities))
	for _, cc := range c.Commodities {
		cat, err := economy.ParseCategory(cc.Category)
		if err != nil {
			errs = append(errs, fmt.Errorf("commodity %q: %w", cc.Name, err))
			continue
		}
		if seen[cc.Name] {
			errs = append(errs, fmt.Errorf("duplicate commodity %q", cc.Name))
			continue
		}
		seen[cc.Name] = true
		p := economy.CommodityParams{
			Name:           cc.Name,
			Category:       cat,
			BasePrice:      cc.BasePrice,
			ProductionCost: cc.ProductionCost,
			Supply:         cc.Supply,
			Demand:         cc.Demand,
			Volatility:     cc.Volatility,
		}
		if _, err := economy.NewCommodity(p); err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// EventTemplates converts the event catalog.
func (c *Config) EventTemplates() ([]economy.EventTemplate, error) {
	var errs []error
	out := make([]economy.EventTemplate, 0, len(c.Events.Catalog))
	for _, ec := range c.Events.Catalog {
		kind, ok := economy.ParseEventKind(ec.Kind)
		if !ok || kind == economy.EventNone {
			errs = append(errs, fmt.Errorf("event catalog: kind %q cannot be triggered", ec.Kind))
			continue
		}
		if len(ec.Duration) != 2 {
			errs = append(errs, fmt.Errorf("event %s: duration must be [min, max]", ec.Kind))
			continue
		}
		out = append(out, economy.EventTemplate{
			Kind:            kind,
			Description:     ec.Description,
			Affected:        ec.Affected,
			PriceModifiers:  ec.PriceModifiers,
			SupplyModifiers: ec.SupplyModifiers,
			DemandModifiers: ec.DemandModifiers,
			MinDuration:     ec.Duration[0],
			MaxDuration:     ec.Duration[1],
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

// SpecializationTables converts the specialization import/export tables.
func (c *Config) SpecializationTables() economy.SpecializationTables {
	t := economy.SpecializationTables{
		Exports: make(map[string][]string, len(c.Sectors.Specializations)),
		Imports: make(map[string][]string, len(c.Sectors.Specializations)),
	}
	for spec, tbl := range c.Sectors.Specializations {
		t.Exports[spec] = append([]string(nil), tbl.Exports...)
		t.Imports[spec] = append([]string(nil), tbl.Imports...)
	}
	return t
}

// SpecializationNames returns the configured specializations, sorted.
func (c *Config) SpecializationNames() []string {
	names := make([]string, 0, len(c.Sectors.Specializations))
	for spec := range c.Sectors.Specializations {
		names = append(names, spec)
	}
	sort.Strings(names)
	return names
}

// MarketTuning returns the commodity update constants.
func (c *Config) MarketTuning() economy.MarketTuning {
	return economy.MarketTuning{
		SeasonalAmplitude: c.Market.SeasonalAmplitude,
		HistoryLength:     c.Market.PriceHistory,
	}
}

// SectorTuning returns the sector update constants.
func (c *Config) SectorTuning() economy.SectorTuning {
	rounding, _ := economy.ParseRoundingPolicy(c.Sectors.Rounding)
	return economy.SectorTuning{
		ConditionChangeProbability: c.Sectors.ConditionChangeProbability,
		Rounding:                   rounding,
	}
}

func (c *Config) commodityNames() map[string]bool {
	known := make(map[string]bool, len(c.Commodities))
	for _, cc := range c.Commodities {
		known[cc.Name] = true
	}
	return known
}
