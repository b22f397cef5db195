// Command econsim runs the market engine headless: it seeds a galaxy of
// sector economies, advances turns, and saves state to SQLite.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/talgya/starmarket/internal/config"
	"github.com/talgya/starmarket/internal/economy"
	"github.com/talgya/starmarket/internal/engine"
	"github.com/talgya/starmarket/internal/entropy"
	"github.com/talgya/starmarket/internal/galaxy"
	"github.com/talgya/starmarket/internal/logging"
	"github.com/talgya/starmarket/internal/persistence"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment variables")
	}

	cfg, err := config.Load(os.Getenv("STARMARKET_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(); err != nil {
		slog.Error("invalid environment overrides", "error", err)
		os.Exit(1)
	}
	logging.Init(cfg.Logging, os.Stdout)

	slog.Info("starmarket economic simulation",
		"commodities", len(cfg.Commodities),
		"event_kinds", len(cfg.Events.Catalog),
		"turns", cfg.Simulation.Turns,
	)

	// ── Database ──────────────────────────────────────────────────────
	dbPath := cfg.Storage.Path
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── Engine ────────────────────────────────────────────────────────
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = entropy.RandomSeed()
	}
	src := entropy.NewSource(seed)
	eng, err := engine.New(cfg, src)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	// ── Load or Seed State ────────────────────────────────────────────
	if db.HasEngineState() {
		slog.Info("found saved engine state, loading...")
		st, err := db.LoadEngineState()
		if err != nil {
			slog.Error("failed to load engine state", "error", err)
			os.Exit(1)
		}
		if err := eng.Restore(st); err != nil {
			slog.Error("failed to restore engine state", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("no saved state found, seeding galaxy...", "seed", seed)
		gen := galaxy.DefaultGenConfig()
		gen.Seed = seed
		gen.Sectors = cfg.Simulation.Sectors
		gen.Specializations = cfg.SpecializationNames()
		for _, p := range galaxy.Params(galaxy.SeedSectors(gen)) {
			s, err := eng.AddSector(p)
			if err != nil {
				slog.Error("failed to add sector", "sector", p.ID, "error", err)
				os.Exit(1)
			}
			slog.Info("sector",
				"id", s.ID,
				"name", s.Name,
				"condition", s.Condition.String(),
				"wealth", fmt.Sprintf("%.2f", s.WealthLevel),
				"population", humanize.Comma(int64(s.Population)),
				"exports", s.Exports,
				"imports", s.Imports,
			)
		}
		save(db, eng)
	}

	// ── Clock ─────────────────────────────────────────────────────────
	clock := engine.NewClock(eng.Turn())
	clock.ReportEvery = uint32(max(cfg.Simulation.ReportEvery, 0))
	clock.SaveEvery = uint32(max(cfg.Simulation.SaveEvery, 0))
	clock.OnTurn = func(turn uint32) {
		r := eng.AdvanceTurn(turn)
		for _, ev := range r.Triggered {
			slog.Info("event", "turn", turn, "kind", ev.Kind.String(), "duration", ev.Duration, "description", ev.Description)
		}
	}
	clock.OnReport = func(turn uint32) { report(eng, turn) }
	clock.OnSave = func(uint32) { save(db, eng) }

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if clock.Turn > 0 {
		fmt.Printf("Resuming from turn %d\n", clock.Turn)
	}
	fmt.Printf("Running %d turns across %d sectors... (Ctrl+C to stop)\n", cfg.Simulation.Turns, len(eng.Sectors()))

	done := clock.RunTurns(ctx, cfg.Simulation.Turns)

	// Final save on shutdown.
	slog.Info("final save...")
	save(db, eng)

	fmt.Printf("Simulation stopped after %d turns at turn %d. Engine state saved.\n", done, clock.Turn)
}

func save(db *persistence.DB, eng *engine.MarketEngine) {
	st, err := eng.Snapshot()
	if err != nil {
		slog.Error("snapshot failed", "error", err)
		return
	}
	if err := db.SaveEngineState(st); err != nil {
		slog.Error("save failed", "error", err)
	}
}

// report logs a market summary: every commodity's price and outlook, active
// events, and the best arbitrage from the first sector.
func report(eng *engine.MarketEngine, turn uint32) {
	slog.Info("market report", "turn", turn, "active_events", len(eng.ActiveEvents()))

	for _, c := range eng.Commodities() {
		outlook := economy.AnalyzeOutlook(&c)
		trend := economy.Trend(&c)
		slog.Info("commodity",
			"name", c.Name,
			"price", humanize.CommafWithDigits(c.CurrentPrice, 2),
			"supply", humanize.Comma(c.Supply),
			"demand", humanize.Comma(c.Demand),
			"trend_short", fmt.Sprintf("%+.1f%%", trend.Short),
			"outlook", outlook.Outlook.String(),
			"recommendation", string(outlook.Recommendation),
		)
	}

	for _, ev := range eng.ActiveEvents() {
		slog.Info("active event", "kind", ev.Kind.String(), "started", ev.StartTurn, "remaining", ev.StartTurn+ev.Duration-turn)
	}

	sectors := eng.Sectors()
	if len(sectors) == 0 {
		return
	}
	from := sectors[0]
	opps, err := eng.BestOpportunities(from.ID, nil, 3)
	if err != nil {
		slog.Warn("opportunity scan failed", "error", err)
		return
	}
	for _, o := range opps {
		slog.Info("opportunity",
			"commodity", o.Commodity,
			"from", from.Name,
			"to", o.To,
			"buy", humanize.CommafWithDigits(o.BuyPrice, 2),
			"sell", humanize.CommafWithDigits(o.SellPrice, 2),
			"margin", fmt.Sprintf("%.1f%%", o.Margin*100),
		)
	}

	for _, f := range eng.Feed(5) {
		slog.Info("feed", "turn", f.Turn, "category", f.Category, "description", f.Description)
	}
}
