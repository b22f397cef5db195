package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/talgya/starmarket/internal/economy"
	"github.com/talgya/starmarket/internal/entropy"
)

// State is the engine's full state blob. Restoring it into an engine built
// from the same configuration resumes the session exactly, including the
// random sequence.
type State struct {
	Turn         uint32                  `json:"turn"`
	RNG          []byte                  `json:"rng"`
	EventSeq     uint64                  `json:"event_seq"`
	QuoteSeed    uint64                  `json:"quote_seed"`
	Commodities  []economy.Commodity     `json:"commodities"`
	Sectors      []economy.SectorEconomy `json:"sectors"`
	ActiveEvents []economy.EconomicEvent `json:"active_events"`
	Trades       []economy.TradeRecord   `json:"trades"`
	Feed         []FeedEntry             `json:"feed"`
}

// Snapshot copies the engine's state. Cached quotes are left out: quote
// variance is keyed by sector and turn, so a restored engine quotes the same
// prices at any point in the turn.
func (e *MarketEngine) Snapshot() (State, error) {
	rng, err := entropy.SaveState(e.src)
	if err != nil {
		return State{}, err
	}
	st := State{
		Turn:        e.turn,
		RNG:         rng,
		EventSeq:    e.events.Sequence(),
		QuoteSeed:   e.quoteSeed,
		Commodities: e.Commodities(),
		Sectors:     e.Sectors(),
		Trades:      e.trades.Records(),
		Feed:        slices.Clone(e.feed),
	}
	st.ActiveEvents = e.ActiveEvents()
	return st, nil
}

// Restore replaces the engine's state with st. On error the engine is left
// unchanged.
func (e *MarketEngine) Restore(st State) error {
	if len(st.Commodities) == 0 {
		return errors.New("restore: state has no commodities")
	}

	market := make(map[string]*economy.Commodity, len(st.Commodities))
	names := make([]string, 0, len(st.Commodities))
	for i := range st.Commodities {
		c := st.Commodities[i].Clone()
		if _, dup := market[c.Name]; dup {
			return fmt.Errorf("restore: duplicate commodity %q", c.Name)
		}
		market[c.Name] = &c
		names = append(names, c.Name)
	}
	sort.Strings(names)

	sectors := make(map[economy.SectorID]*economy.SectorEconomy, len(st.Sectors))
	ids := make([]economy.SectorID, 0, len(st.Sectors))
	for i := range st.Sectors {
		s := st.Sectors[i].Clone()
		if _, dup := sectors[s.ID]; dup {
			return fmt.Errorf("restore: duplicate sector %d", s.ID)
		}
		sectors[s.ID] = &s
		ids = append(ids, s.ID)
	}
	slices.Sort(ids)

	for _, ev := range st.ActiveEvents {
		for _, name := range ev.Affected {
			if _, ok := market[name]; !ok {
				return fmt.Errorf("restore: event %s: %w", ev.ID, economy.NewUnknownCommodityError(name, names))
			}
		}
		if ev.Scope != nil {
			if _, ok := sectors[*ev.Scope]; !ok {
				return fmt.Errorf("restore: event %s scoped to sector %d: %w", ev.ID, *ev.Scope, economy.ErrInvalidSector)
			}
		}
	}

	// Validate the RNG state on a scratch source before touching the engine.
	if err := entropy.RestoreState(entropy.NewSource(1), st.RNG); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if err := entropy.RestoreState(e.src, st.RNG); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	e.market = market
	e.names = names
	e.sectors = sectors
	e.ids = ids
	e.events.Restore(st.ActiveEvents, st.EventSeq)

	e.trades = economy.NewTradeHistory(e.tradeLimit)
	for _, r := range st.Trades {
		e.trades.Append(r)
	}
	e.executor = economy.TradeExecutor{History: e.trades}

	e.feed = slices.Clone(st.Feed)
	if e.feedLimit > 0 && len(e.feed) > e.feedLimit {
		e.feed = e.feed[len(e.feed)-e.feedLimit:]
	}
	e.turn = st.Turn
	e.quoteSeed = st.QuoteSeed
	e.quotes.Purge()

	slog.Info("market engine restored",
		"turn", st.Turn,
		"commodities", len(names),
		"sectors", len(ids),
		"active_events", len(st.ActiveEvents),
	)
	return nil
}
