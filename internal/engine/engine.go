// Package engine owns a session's market state and advances it one turn at a
// time. A MarketEngine is single-actor: callers serialize access.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"sort"

	lru "github.com/hashicorp/golang-lru"

	"github.com/talgya/starmarket/internal/config"
	"github.com/talgya/starmarket/internal/economy"
	"github.com/talgya/starmarket/internal/entropy"
)

// Feed categories.
const (
	CategoryEvent        = "event"
	CategoryCondition    = "condition"
	CategoryTrade        = "trade"
	CategoryIntervention = "intervention"
)

// FeedEntry is a notable occurrence in the market.
type FeedEntry struct {
	Turn        uint32 `json:"turn" db:"turn"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"`
}

// ConditionChange records a sector moving to a new market condition.
type ConditionChange struct {
	Sector economy.SectorID        `json:"sector"`
	From   economy.MarketCondition `json:"from"`
	To     economy.MarketCondition `json:"to"`
}

// TurnReport summarizes what one AdvanceTurn did.
type TurnReport struct {
	Turn             uint32                  `json:"turn"`
	Expired          []economy.EconomicEvent `json:"expired,omitempty"`
	Triggered        []economy.EconomicEvent `json:"triggered,omitempty"`
	ConditionChanges []ConditionChange       `json:"condition_changes,omitempty"`
}

type quoteKey struct {
	sector economy.SectorID
	turn   uint32
}

// MarketEngine holds the complete market state and wires the economy
// components together.
type MarketEngine struct {
	src       *entropy.Source
	rng       *rand.Rand
	quoteSeed uint64 // Keys the per-sector, per-turn quote variance streams

	market  map[string]*economy.Commodity
	names   []string // Sorted commodity names
	sectors map[economy.SectorID]*economy.SectorEconomy
	ids     []economy.SectorID // Sorted sector IDs

	events   *economy.EventEngine
	trades   *economy.TradeHistory
	executor economy.TradeExecutor
	quotes   *lru.Cache

	tables       economy.SpecializationTables
	marketTuning economy.MarketTuning
	sectorTuning economy.SectorTuning
	tradeLimit   int

	turn      uint32
	feed      []FeedEntry
	feedLimit int
}

// New builds an engine from a validated configuration. All randomness in the
// session is drawn from src.
func New(cfg *config.Config, src *entropy.Source) (*MarketEngine, error) {
	if src == nil {
		return nil, errors.New("engine: nil random source")
	}
	params, err := cfg.CommodityParams()
	if err != nil {
		return nil, fmt.Errorf("commodities: %w", err)
	}
	if len(params) == 0 {
		return nil, errors.New("engine: no commodities configured")
	}

	e := &MarketEngine{
		src:          src,
		rng:          entropy.NewRand(src),
		market:       make(map[string]*economy.Commodity, len(params)),
		sectors:      make(map[economy.SectorID]*economy.SectorEconomy),
		tables:       cfg.SpecializationTables(),
		marketTuning: cfg.MarketTuning(),
		sectorTuning: cfg.SectorTuning(),
		tradeLimit:   cfg.History.TradeRecords,
		feedLimit:    cfg.History.Feed,
	}
	e.quoteSeed = e.rng.Uint64()
	for _, p := range params {
		c, err := economy.NewCommodity(p)
		if err != nil {
			return nil, err
		}
		e.market[c.Name] = c
		e.names = append(e.names, c.Name)
	}
	sort.Strings(e.names)

	templates, err := cfg.EventTemplates()
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	e.events, err = economy.NewEventEngine(templates, cfg.Events.Probability, e.known)
	if err != nil {
		return nil, err
	}

	e.trades = economy.NewTradeHistory(e.tradeLimit)
	e.executor = economy.TradeExecutor{History: e.trades}

	e.quotes, err = lru.New(max(cfg.Quotes.CacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("quote cache: %w", err)
	}

	slog.Info("market engine created",
		"commodities", len(e.names),
		"event_kinds", len(templates),
		"event_probability", cfg.Events.Probability,
	)
	return e, nil
}

func (e *MarketEngine) known(name string) bool {
	_, ok := e.market[name]
	return ok
}

// Turn returns the most recently advanced turn.
func (e *MarketEngine) Turn() uint32 {
	return e.turn
}

// AddSector creates the economy for a newly populated sector.
func (e *MarketEngine) AddSector(p economy.SectorParams) (economy.SectorEconomy, error) {
	if _, dup := e.sectors[p.ID]; dup {
		return economy.SectorEconomy{}, fmt.Errorf("sector %d already has an economy", p.ID)
	}
	s := economy.NewSectorEconomy(p, e.tables)
	e.sectors[s.ID] = s
	e.ids = append(e.ids, s.ID)
	slices.Sort(e.ids)
	slog.Debug("sector economy added", "sector", s.ID, "name", s.Name, "condition", s.Condition.String(), "wealth", s.WealthLevel)
	return s.Clone(), nil
}

// AdvanceTurn updates every commodity, then the event engine, then every
// sector, in a fixed order so a seed replays identically.
func (e *MarketEngine) AdvanceTurn(turn uint32) TurnReport {
	e.turn = turn
	report := TurnReport{Turn: turn}

	for _, name := range e.names {
		e.market[name].Update(turn, e.rng, e.marketTuning)
	}

	expired, triggered := e.events.Advance(turn, e.market, e.sectors, e.rng)
	for _, ev := range expired {
		report.Expired = append(report.Expired, ev.Clone())
		e.emit(CategoryEvent, fmt.Sprintf("%s has run its course", ev.Kind))
	}
	for _, ev := range triggered {
		report.Triggered = append(report.Triggered, ev.Clone())
		e.emit(CategoryEvent, ev.Description)
	}

	for _, id := range e.ids {
		s := e.sectors[id]
		from := s.Condition
		if s.Advance(turn, e.rng, e.sectorTuning) {
			report.ConditionChanges = append(report.ConditionChanges, ConditionChange{Sector: id, From: from, To: s.Condition})
			e.emit(CategoryCondition, fmt.Sprintf("%s slides from %s into %s", s.Name, from, s.Condition))
		}
	}

	e.quotes.Purge()

	slog.Debug("turn advanced",
		"turn", turn,
		"active_events", len(e.events.Active()),
		"expired", len(report.Expired),
		"triggered", len(report.Triggered),
		"condition_changes", len(report.ConditionChanges),
	)
	return report
}

// QuoteSectorPrices returns the sector's local price for every commodity.
// Repeated calls within a turn return the same prices.
func (e *MarketEngine) QuoteSectorPrices(id economy.SectorID) (map[string]float64, error) {
	prices, err := e.sectorQuotes(id)
	if err != nil {
		return nil, err
	}
	return maps.Clone(prices), nil
}

func (e *MarketEngine) sectorQuotes(id economy.SectorID) (map[string]float64, error) {
	s, ok := e.sectors[id]
	if !ok {
		return nil, fmt.Errorf("quote sector %d: %w", id, economy.ErrInvalidSector)
	}
	key := quoteKey{sector: id, turn: e.turn}
	if v, ok := e.quotes.Get(key); ok {
		return v.(map[string]float64), nil
	}
	// Quote variance has its own stream so reading prices never shifts the
	// simulation's random sequence.
	rng := entropy.Substream(e.quoteSeed, uint64(id), uint64(e.turn))
	prices := make(map[string]float64, len(e.names))
	for _, name := range e.names {
		prices[name] = s.QuotePrice(e.market[name], rng, e.sectorTuning.Rounding)
	}
	e.quotes.Add(key, prices)
	return prices, nil
}

// Quote returns one commodity's local price in a sector.
func (e *MarketEngine) Quote(id economy.SectorID, commodity string) (float64, error) {
	if _, err := e.lookup(commodity); err != nil {
		return 0, err
	}
	prices, err := e.sectorQuotes(id)
	if err != nil {
		return 0, err
	}
	return prices[commodity], nil
}

// Execute buys or sells quantity units of a commodity in a sector at the
// sector's current quote.
func (e *MarketEngine) Execute(commodity string, quantity int64, id economy.SectorID, isBuy bool) (economy.TradeReceipt, error) {
	c, err := e.lookup(commodity)
	if err != nil {
		return economy.TradeReceipt{}, err
	}
	s, ok := e.sectors[id]
	if !ok {
		return economy.TradeReceipt{}, fmt.Errorf("trade in sector %d: %w", id, economy.ErrInvalidSector)
	}
	unit, err := e.Quote(id, commodity)
	if err != nil {
		return economy.TradeReceipt{}, err
	}

	receipt, err := e.executor.Execute(c, quantity, s, isBuy, e.turn, unit)
	if err != nil {
		dir := economy.Sell
		if isBuy {
			dir = economy.Buy
		}
		return economy.TradeReceipt{}, fmt.Errorf("%s %s: %w", dir, commodity, err)
	}
	if receipt.LargeTrade {
		// The galaxy price moved; local quotes must follow.
		e.quotes.Purge()
		e.emit(CategoryTrade, fmt.Sprintf("A %d-unit %s of %s shakes the market in %s", quantity, receipt.Direction, commodity, s.Name))
	}
	slog.Debug("trade executed",
		"turn", e.turn,
		"commodity", commodity,
		"direction", receipt.Direction.String(),
		"quantity", quantity,
		"unit_price", unit,
		"total", receipt.Total.String(),
		"sector", id,
	)
	return receipt, nil
}

// Trigger starts a galaxy-wide event of the given kind. Unknown kinds and
// EventNone are ignored.
func (e *MarketEngine) Trigger(kind economy.EventKind) (economy.EconomicEvent, bool) {
	ev, ok := e.events.Trigger(kind, e.turn, e.market, e.rng)
	if !ok {
		return economy.EconomicEvent{}, false
	}
	e.quotes.Purge()
	e.emit(CategoryEvent, ev.Description)
	return ev.Clone(), true
}

// TriggerInSector starts an event whose price effect is confined to one sector.
func (e *MarketEngine) TriggerInSector(kind economy.EventKind, id economy.SectorID) (economy.EconomicEvent, error) {
	s, ok := e.sectors[id]
	if !ok {
		return economy.EconomicEvent{}, fmt.Errorf("trigger in sector %d: %w", id, economy.ErrInvalidSector)
	}
	ev, ok := e.events.TriggerInSector(kind, s, e.turn, e.market, e.rng)
	if !ok {
		return economy.EconomicEvent{}, fmt.Errorf("trigger %s: %w", kind, economy.ErrUnknownEventKind)
	}
	e.quotes.Purge()
	e.emit(CategoryEvent, fmt.Sprintf("%s: %s", s.Name, ev.Description))
	return ev.Clone(), nil
}

// Commodity returns a copy of one commodity's market state.
func (e *MarketEngine) Commodity(name string) (economy.Commodity, error) {
	c, err := e.lookup(name)
	if err != nil {
		return economy.Commodity{}, err
	}
	return c.Clone(), nil
}

// Commodities returns copies of every commodity, sorted by name.
func (e *MarketEngine) Commodities() []economy.Commodity {
	out := make([]economy.Commodity, 0, len(e.names))
	for _, name := range e.names {
		out = append(out, e.market[name].Clone())
	}
	return out
}

// Sector returns a copy of one sector's economy.
func (e *MarketEngine) Sector(id economy.SectorID) (economy.SectorEconomy, error) {
	s, ok := e.sectors[id]
	if !ok {
		return economy.SectorEconomy{}, fmt.Errorf("sector %d: %w", id, economy.ErrInvalidSector)
	}
	return s.Clone(), nil
}

// Sectors returns copies of every sector economy, sorted by ID.
func (e *MarketEngine) Sectors() []economy.SectorEconomy {
	out := make([]economy.SectorEconomy, 0, len(e.ids))
	for _, id := range e.ids {
		out = append(out, e.sectors[id].Clone())
	}
	return out
}

// Trend reports the short and long price change of a commodity.
func (e *MarketEngine) Trend(name string) (economy.TrendReport, error) {
	c, err := e.lookup(name)
	if err != nil {
		return economy.TrendReport{}, err
	}
	return economy.Trend(c), nil
}

// Outlook classifies a commodity's market.
func (e *MarketEngine) Outlook(name string) (economy.MarketOutlook, error) {
	c, err := e.lookup(name)
	if err != nil {
		return economy.MarketOutlook{}, err
	}
	return economy.AnalyzeOutlook(c), nil
}

// BestOpportunities ranks buy-in-from, sell-elsewhere trades. A nil reachable
// list uses the origin's trade routes. Reachable sectors without an economy
// are skipped.
func (e *MarketEngine) BestOpportunities(from economy.SectorID, reachable []economy.SectorID, limit int) ([]economy.Opportunity, error) {
	origin, ok := e.sectors[from]
	if !ok {
		return nil, fmt.Errorf("opportunities from sector %d: %w", from, economy.ErrInvalidSector)
	}
	if reachable == nil {
		reachable = origin.TradeRoutes
	}
	reachable = slices.Clone(reachable)
	slices.Sort(reachable)
	reachable = slices.Compact(reachable)

	quotes := make(map[economy.SectorID]map[string]float64, len(reachable)+1)
	home, err := e.sectorQuotes(from)
	if err != nil {
		return nil, err
	}
	quotes[from] = home
	for _, id := range reachable {
		if _, ok := e.sectors[id]; !ok {
			continue
		}
		prices, err := e.sectorQuotes(id)
		if err != nil {
			return nil, err
		}
		quotes[id] = prices
	}
	return economy.BestOpportunities(from, reachable, quotes, limit), nil
}

// ActiveEvents returns copies of the active events, oldest first.
func (e *MarketEngine) ActiveEvents() []economy.EconomicEvent {
	active := e.events.Active()
	out := make([]economy.EconomicEvent, 0, len(active))
	for _, ev := range active {
		out = append(out, ev.Clone())
	}
	return out
}

// Trades returns up to n of the most recent trades, newest first.
func (e *MarketEngine) Trades(n int) []economy.TradeRecord {
	return e.trades.Recent(n)
}

// Feed returns up to n of the most recent feed entries, oldest first.
func (e *MarketEngine) Feed(n int) []FeedEntry {
	start := max(len(e.feed)-max(n, 0), 0)
	return slices.Clone(e.feed[start:])
}

func (e *MarketEngine) lookup(name string) (*economy.Commodity, error) {
	c, ok := e.market[name]
	if !ok {
		return nil, economy.NewUnknownCommodityError(name, e.names)
	}
	return c, nil
}

func (e *MarketEngine) emit(category, description string) {
	e.feed = append(e.feed, FeedEntry{Turn: e.turn, Description: description, Category: category})
	// Trim old entries to prevent unbounded growth.
	if e.feedLimit > 0 && len(e.feed) > e.feedLimit {
		e.feed = append(e.feed[:0], e.feed[len(e.feed)-e.feedLimit:]...)
	}
}
