// Package persistence provides SQLite-based engine state storage.
package persistence

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/starmarket/internal/economy"
	"github.com/talgya/starmarket/internal/engine"
)

// Metadata keys.
const (
	metaTurn      = "turn"
	metaRNG       = "rng_state"
	metaEventSeq  = "event_seq"
	metaQuoteSeed = "quote_seed"
)

// DB wraps a SQLite connection for engine state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path, creating its
// directory if needed.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; the engine is single-actor anyway.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commodities (
		name TEXT PRIMARY KEY,
		category INTEGER NOT NULL,
		base_price REAL NOT NULL,
		current_price REAL NOT NULL,
		supply INTEGER NOT NULL,
		demand INTEGER NOT NULL,
		volatility REAL NOT NULL,
		trend REAL NOT NULL,
		production_cost REAL NOT NULL,
		seasonal_factor REAL NOT NULL,
		event_modifier REAL NOT NULL,
		history_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sectors (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		wealth_level REAL NOT NULL,
		population INTEGER NOT NULL,
		industrial_capacity REAL NOT NULL,
		market_condition INTEGER NOT NULL,
		stability REAL NOT NULL,
		corruption REAL NOT NULL,
		specializations_json TEXT NOT NULL,
		imports_json TEXT NOT NULL,
		exports_json TEXT NOT NULL,
		routes_json TEXT NOT NULL,
		local_modifiers_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS active_events (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		kind INTEGER NOT NULL,
		description TEXT NOT NULL,
		start_turn INTEGER NOT NULL,
		duration INTEGER NOT NULL,
		scope INTEGER,
		affected_json TEXT NOT NULL,
		price_json TEXT NOT NULL,
		supply_json TEXT NOT NULL,
		demand_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn INTEGER NOT NULL,
		commodity TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		sector_id INTEGER NOT NULL,
		direction INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feed (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS engine_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_turn ON trades(turn);
	CREATE INDEX IF NOT EXISTS idx_trades_commodity ON trades(commodity);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type commodityRow struct {
	Name           string  `db:"name"`
	Category       uint8   `db:"category"`
	BasePrice      float64 `db:"base_price"`
	CurrentPrice   float64 `db:"current_price"`
	Supply         int64   `db:"supply"`
	Demand         int64   `db:"demand"`
	Volatility     float64 `db:"volatility"`
	Trend          float64 `db:"trend"`
	ProductionCost float64 `db:"production_cost"`
	SeasonalFactor float64 `db:"seasonal_factor"`
	EventModifier  float64 `db:"event_modifier"`
	HistoryJSON    string  `db:"history_json"`
}

type sectorRow struct {
	ID                  int64   `db:"id"`
	Name                string  `db:"name"`
	WealthLevel         float64 `db:"wealth_level"`
	Population          int64   `db:"population"`
	IndustrialCapacity  float64 `db:"industrial_capacity"`
	Condition           uint8   `db:"market_condition"`
	Stability           float64 `db:"stability"`
	Corruption          float64 `db:"corruption"`
	SpecializationsJSON string  `db:"specializations_json"`
	ImportsJSON         string  `db:"imports_json"`
	ExportsJSON         string  `db:"exports_json"`
	RoutesJSON          string  `db:"routes_json"`
	LocalModifiersJSON  string  `db:"local_modifiers_json"`
}

type eventRow struct {
	ID           string        `db:"id"`
	Position     int           `db:"position"`
	Kind         uint8         `db:"kind"`
	Description  string        `db:"description"`
	StartTurn    uint32        `db:"start_turn"`
	Duration     uint32        `db:"duration"`
	Scope        sql.NullInt64 `db:"scope"`
	AffectedJSON string        `db:"affected_json"`
	PriceJSON    string        `db:"price_json"`
	SupplyJSON   string        `db:"supply_json"`
	DemandJSON   string        `db:"demand_json"`
}

// SaveCommodities writes all commodities to the database (full replace).
func (db *DB) SaveCommodities(tx *sqlx.Tx, commodities []economy.Commodity) error {
	if _, err := tx.Exec("DELETE FROM commodities"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO commodities
		(name, category, base_price, current_price, supply, demand, volatility,
		 trend, production_cost, seasonal_factor, event_modifier, history_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range commodities {
		historyJSON, _ := json.Marshal(c.PriceHistory)
		_, err := stmt.Exec(
			c.Name, uint8(c.Category), c.BasePrice, c.CurrentPrice,
			c.Supply, c.Demand, c.Volatility, c.Trend, c.ProductionCost,
			c.SeasonalFactor, c.EventModifier, string(historyJSON),
		)
		if err != nil {
			return fmt.Errorf("insert commodity %s: %w", c.Name, err)
		}
	}
	return nil
}

// SaveSectors writes all sector economies to the database (full replace).
func (db *DB) SaveSectors(tx *sqlx.Tx, sectors []economy.SectorEconomy) error {
	if _, err := tx.Exec("DELETE FROM sectors"); err != nil {
		return err
	}

	for _, s := range sectors {
		specsJSON, _ := json.Marshal(s.Specializations)
		importsJSON, _ := json.Marshal(s.Imports)
		exportsJSON, _ := json.Marshal(s.Exports)
		routesJSON, _ := json.Marshal(s.TradeRoutes)
		modsJSON, _ := json.Marshal(s.LocalModifiers)

		_, err := tx.Exec(`INSERT INTO sectors
			(id, name, wealth_level, population, industrial_capacity, market_condition,
			 stability, corruption, specializations_json, imports_json,
			 exports_json, routes_json, local_modifiers_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(s.ID), s.Name, s.WealthLevel, int64(s.Population),
			s.IndustrialCapacity, uint8(s.Condition), s.Stability, s.Corruption,
			string(specsJSON), string(importsJSON), string(exportsJSON),
			string(routesJSON), string(modsJSON),
		)
		if err != nil {
			return fmt.Errorf("insert sector %d: %w", s.ID, err)
		}
	}
	return nil
}

// SaveActiveEvents writes the active events to the database (full replace).
func (db *DB) SaveActiveEvents(tx *sqlx.Tx, events []economy.EconomicEvent) error {
	if _, err := tx.Exec("DELETE FROM active_events"); err != nil {
		return err
	}

	for i, ev := range events {
		var scope sql.NullInt64
		if ev.Scope != nil {
			scope = sql.NullInt64{Int64: int64(*ev.Scope), Valid: true}
		}
		affectedJSON, _ := json.Marshal(ev.Affected)
		priceJSON, _ := json.Marshal(ev.PriceModifiers)
		supplyJSON, _ := json.Marshal(ev.SupplyModifiers)
		demandJSON, _ := json.Marshal(ev.DemandModifiers)

		_, err := tx.Exec(`INSERT INTO active_events
			(id, position, kind, description, start_turn, duration, scope,
			 affected_json, price_json, supply_json, demand_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, i, uint8(ev.Kind), ev.Description, ev.StartTurn, ev.Duration, scope,
			string(affectedJSON), string(priceJSON), string(supplyJSON), string(demandJSON),
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", ev.ID, err)
		}
	}
	return nil
}

// SaveTrades writes the retained trade history (full replace).
func (db *DB) SaveTrades(tx *sqlx.Tx, trades []economy.TradeRecord) error {
	if _, err := tx.Exec("DELETE FROM trades"); err != nil {
		return err
	}
	for _, r := range trades {
		_, err := tx.Exec(
			"INSERT INTO trades (turn, commodity, quantity, price, sector_id, direction) VALUES (?, ?, ?, ?, ?, ?)",
			r.Turn, r.Commodity, r.Quantity, r.Price, int64(r.Sector), uint8(r.Direction),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveFeed writes the retained feed entries (full replace).
func (db *DB) SaveFeed(tx *sqlx.Tx, feed []engine.FeedEntry) error {
	if _, err := tx.Exec("DELETE FROM feed"); err != nil {
		return err
	}
	for _, f := range feed {
		_, err := tx.Exec(
			"INSERT INTO feed (turn, description, category) VALUES (?, ?, ?)",
			f.Turn, f.Description, f.Category,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveMeta stores a key-value pair in engine metadata.
func (db *DB) SaveMeta(key, value string) error {
	return saveMeta(db.conn, key, value)
}

func saveMeta(ex sqlx.Execer, key, value string) error {
	_, err := ex.Exec(
		"INSERT OR REPLACE INTO engine_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM engine_meta WHERE key = ?", key)
	return value, err
}

// HasEngineState reports whether a saved engine state exists.
func (db *DB) HasEngineState() bool {
	var count int
	if err := db.conn.Get(&count, "SELECT COUNT(*) FROM engine_meta WHERE key = ?", metaRNG); err != nil {
		return false
	}
	return count > 0
}

// SaveEngineState performs a full save of the engine state in one transaction.
func (db *DB) SaveEngineState(st engine.State) error {
	slog.Info("saving engine state", "turn", st.Turn, "commodities", len(st.Commodities), "sectors", len(st.Sectors))

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := db.SaveCommodities(tx, st.Commodities); err != nil {
		return fmt.Errorf("save commodities: %w", err)
	}
	if err := db.SaveSectors(tx, st.Sectors); err != nil {
		return fmt.Errorf("save sectors: %w", err)
	}
	if err := db.SaveActiveEvents(tx, st.ActiveEvents); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveTrades(tx, st.Trades); err != nil {
		return fmt.Errorf("save trades: %w", err)
	}
	if err := db.SaveFeed(tx, st.Feed); err != nil {
		return fmt.Errorf("save feed: %w", err)
	}
	meta := map[string]string{
		metaTurn:      strconv.FormatUint(uint64(st.Turn), 10),
		metaRNG:       base64.StdEncoding.EncodeToString(st.RNG),
		metaEventSeq:  strconv.FormatUint(st.EventSeq, 10),
		metaQuoteSeed: strconv.FormatUint(st.QuoteSeed, 10),
	}
	for k, v := range meta {
		if err := saveMeta(tx, k, v); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("engine state saved")
	return nil
}

// LoadEngineState reads the full engine state back.
func (db *DB) LoadEngineState() (engine.State, error) {
	var st engine.State

	rngStr, err := db.GetMeta(metaRNG)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return st, fmt.Errorf("no saved engine state")
		}
		return st, fmt.Errorf("load meta: %w", err)
	}
	if st.RNG, err = base64.StdEncoding.DecodeString(rngStr); err != nil {
		return st, fmt.Errorf("decode rng state: %w", err)
	}
	if turnStr, err := db.GetMeta(metaTurn); err == nil {
		if t, err := strconv.ParseUint(turnStr, 10, 32); err == nil {
			st.Turn = uint32(t)
		}
	}
	if seqStr, err := db.GetMeta(metaEventSeq); err == nil {
		if s, err := strconv.ParseUint(seqStr, 10, 64); err == nil {
			st.EventSeq = s
		}
	}
	if seedStr, err := db.GetMeta(metaQuoteSeed); err == nil {
		if s, err := strconv.ParseUint(seedStr, 10, 64); err == nil {
			st.QuoteSeed = s
		}
	}

	if st.Commodities, err = db.loadCommodities(); err != nil {
		return st, fmt.Errorf("load commodities: %w", err)
	}
	if st.Sectors, err = db.loadSectors(); err != nil {
		return st, fmt.Errorf("load sectors: %w", err)
	}
	if st.ActiveEvents, err = db.loadActiveEvents(); err != nil {
		return st, fmt.Errorf("load events: %w", err)
	}
	if st.Trades, err = db.loadTrades(); err != nil {
		return st, fmt.Errorf("load trades: %w", err)
	}
	if err := db.conn.Select(&st.Feed, "SELECT turn, description, category FROM feed ORDER BY id"); err != nil {
		return st, fmt.Errorf("load feed: %w", err)
	}

	slog.Info("engine state loaded", "turn", st.Turn, "commodities", len(st.Commodities), "sectors", len(st.Sectors), "active_events", len(st.ActiveEvents))
	return st, nil
}

func (db *DB) loadCommodities() ([]economy.Commodity, error) {
	var rows []commodityRow
	if err := db.conn.Select(&rows, "SELECT * FROM commodities ORDER BY name"); err != nil {
		return nil, err
	}
	out := make([]economy.Commodity, 0, len(rows))
	for _, r := range rows {
		c := economy.Commodity{
			Name:           r.Name,
			Category:       economy.Category(r.Category),
			BasePrice:      r.BasePrice,
			CurrentPrice:   r.CurrentPrice,
			Supply:         r.Supply,
			Demand:         r.Demand,
			Volatility:     r.Volatility,
			Trend:          r.Trend,
			ProductionCost: r.ProductionCost,
			SeasonalFactor: r.SeasonalFactor,
			EventModifier:  r.EventModifier,
		}
		if err := json.Unmarshal([]byte(r.HistoryJSON), &c.PriceHistory); err != nil {
			return nil, fmt.Errorf("commodity %s history: %w", r.Name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (db *DB) loadSectors() ([]economy.SectorEconomy, error) {
	var rows []sectorRow
	if err := db.conn.Select(&rows, "SELECT * FROM sectors ORDER BY id"); err != nil {
		return nil, err
	}
	out := make([]economy.SectorEconomy, 0, len(rows))
	for _, r := range rows {
		s := economy.SectorEconomy{
			ID:                 economy.SectorID(r.ID),
			Name:               r.Name,
			WealthLevel:        r.WealthLevel,
			Population:         uint64(r.Population),
			IndustrialCapacity: r.IndustrialCapacity,
			Condition:          economy.MarketCondition(r.Condition),
			Stability:          r.Stability,
			Corruption:         r.Corruption,
		}
		for _, f := range []struct {
			data string
			into any
		}{
			{r.SpecializationsJSON, &s.Specializations},
			{r.ImportsJSON, &s.Imports},
			{r.ExportsJSON, &s.Exports},
			{r.RoutesJSON, &s.TradeRoutes},
			{r.LocalModifiersJSON, &s.LocalModifiers},
		} {
			if err := json.Unmarshal([]byte(f.data), f.into); err != nil {
				return nil, fmt.Errorf("sector %d: %w", r.ID, err)
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (db *DB) loadActiveEvents() ([]economy.EconomicEvent, error) {
	var rows []eventRow
	if err := db.conn.Select(&rows, "SELECT * FROM active_events ORDER BY position"); err != nil {
		return nil, err
	}
	out := make([]economy.EconomicEvent, 0, len(rows))
	for _, r := range rows {
		ev := economy.EconomicEvent{
			ID:          r.ID,
			Kind:        economy.EventKind(r.Kind),
			Description: r.Description,
			StartTurn:   r.StartTurn,
			Duration:    r.Duration,
		}
		if r.Scope.Valid {
			scope := economy.SectorID(r.Scope.Int64)
			ev.Scope = &scope
		}
		for _, f := range []struct {
			data string
			into any
		}{
			{r.AffectedJSON, &ev.Affected},
			{r.PriceJSON, &ev.PriceModifiers},
			{r.SupplyJSON, &ev.SupplyModifiers},
			{r.DemandJSON, &ev.DemandModifiers},
		} {
			if err := json.Unmarshal([]byte(f.data), f.into); err != nil {
				return nil, fmt.Errorf("event %s: %w", r.ID, err)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

func (db *DB) loadTrades() ([]economy.TradeRecord, error) {
	var trades []economy.TradeRecord
	err := db.conn.Select(&trades,
		"SELECT turn, commodity, quantity, price, sector_id, direction FROM trades ORDER BY id",
	)
	return trades, err
}

// RecentTrades returns the most recent N trades, newest first.
func (db *DB) RecentTrades(limit int) ([]economy.TradeRecord, error) {
	var trades []economy.TradeRecord
	err := db.conn.Select(&trades,
		"SELECT turn, commodity, quantity, price, sector_id, direction FROM trades ORDER BY id DESC LIMIT ?",
		limit,
	)
	return trades, err
}

// RecentFeed returns the most recent N feed entries, newest first.
func (db *DB) RecentFeed(limit int) ([]engine.FeedEntry, error) {
	var feed []engine.FeedEntry
	err := db.conn.Select(&feed,
		"SELECT turn, description, category FROM feed ORDER BY id DESC LIMIT ?",
		limit,
	)
	return feed, err
}
