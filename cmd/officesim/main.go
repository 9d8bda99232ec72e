// Command officesim runs one office knowledge-diffusion simulation, stores the
// results, and optionally keeps serving them over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/office-diffusion/internal/agents"
	"github.com/talgya/office-diffusion/internal/api"
	"github.com/talgya/office-diffusion/internal/config"
	"github.com/talgya/office-diffusion/internal/engine"
	"github.com/talgya/office-diffusion/internal/entropy"
	"github.com/talgya/office-diffusion/internal/metrics"
	"github.com/talgya/office-diffusion/internal/office"
	"github.com/talgya/office-diffusion/internal/persistence"
)

func main() {
	if err := run(); err != nil {
		slog.Error("officesim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "YAML config file")
		ticks      = flag.Int("ticks", -1, "number of ticks (overrides config)")
		seed       = flag.Uint64("seed", 0, "random seed (overrides config; 0 keeps config)")
		mode       = flag.String("mode", "", "movement mode: simple, enriched, continuous")
		baseline   = flag.Bool("baseline", false, "use the higher baseline sharing probabilities")
		dbPath     = flag.String("db", "", "SQLite database path (overrides config)")
		tickLog    = flag.String("ticklog", "", "zstd tick log path (overrides config)")
		serve      = flag.Bool("serve", false, "keep serving the API after the run completes")
		top        = flag.Int("top", 5, "agents to list per centrality measure")
		replay     = flag.String("replay", "", "print the coverage series of a tick log and exit")
	)
	flag.Parse()

	if *replay != "" {
		return replayTickLog(*replay)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *ticks >= 0 {
		cfg.Run.Ticks = *ticks
	}
	if *seed != 0 {
		cfg.Office.Seed = *seed
	}
	if *mode != "" {
		if cfg.Run.Mode, err = engine.ParseMode(*mode); err != nil {
			return err
		}
	}
	if *baseline {
		d := engine.BaselineDiffusion()
		d.HierarchyPenalty = cfg.Office.HierarchyAdjustment
		cfg.Run.Diffusion = &d
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *tickLog != "" {
		cfg.TickLog = *tickLog
	}

	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Seed ─────────────────────────────────────────────────────────
	if cfg.Office.Seed == 0 {
		src := entropy.NewClient(os.Getenv("RANDOM_ORG_API_KEY"))
		cfg.Office.Seed = src.Seed(ctx)
		slog.Info("drew fresh seed", "seed", cfg.Office.Seed, "random_org", src.Enabled())
	}

	// ── Database ─────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.DBPath != "" {
		if db, err = persistence.Open(cfg.DBPath); err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.DBPath)
	}

	// ── Simulation ───────────────────────────────────────────────────
	sim, err := engine.Initialize(cfg.Office)
	if err != nil {
		return err
	}

	var tl *persistence.TickLog
	if cfg.TickLog != "" {
		if tl, err = persistence.NewTickLog(cfg.TickLog); err != nil {
			return fmt.Errorf("open tick log: %w", err)
		}
		defer tl.Close()
	}

	// ── HTTP API ─────────────────────────────────────────────────────
	var apiServer *api.Server
	if cfg.Port > 0 {
		apiServer = api.NewServer(sim, db, cfg.Port)
		if apiServer.AdminKey == "" {
			slog.Warn("OFFICESIM_ADMIN_KEY not set, admin endpoints disabled")
		}
		httpServer := apiServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		}()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	}

	sim.OnTickDone = func(ts engine.TickSummary) {
		if tl != nil {
			entry := persistence.TickEntry{
				Run:          cfg.Label,
				Tick:         ts.Tick,
				Informed:     ts.Diffusion.Informed,
				Percent:      ts.Diffusion.Percent,
				Interactions: ts.Interactions,
			}
			if f := sim.Recorder.LastFrame(); f != nil {
				entry.Occupancy = make([]int, sim.Floor.Len())
				for id, occ := range f.Occupants {
					entry.Occupancy[id] = len(occ)
				}
			}
			if err := tl.Write(entry); err != nil {
				slog.Warn("tick log write failed", "tick", ts.Tick, "error", err)
			}
		}
		if apiServer != nil {
			apiServer.Publish(ts)
		}
	}

	// ── Run ──────────────────────────────────────────────────────────
	start := time.Now()
	snap, runErr := sim.Run(ctx, cfg.Run)
	if runErr != nil && !errors.Is(runErr, engine.ErrStopped) && snap.Ticks() == 0 {
		return runErr
	}

	participants := make([]agents.AgentID, len(sim.Agents))
	for i, a := range sim.Agents {
		participants[i] = a.ID
	}
	centrality := metrics.Centrality(snap.Interactions, participants)
	report(snap, centrality, *top, time.Since(start))

	if db != nil {
		rec := &persistence.RunRecord{
			Label:      cfg.Label,
			Seed:       sim.Seed(),
			Mode:       sim.Mode().String(),
			Status:     sim.State().String(),
			Population: len(sim.Agents),
		}
		if err := db.SaveRun(rec, sim.Floor, snap, centrality); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		slog.Info("run saved", "id", rec.ID, "label", rec.Label)
	}

	if *serve && apiServer != nil && ctx.Err() == nil {
		fmt.Println("Run finished; serving results (Ctrl+C to stop)")
		<-ctx.Done()
	}
	if runErr != nil && !errors.Is(runErr, engine.ErrStopped) {
		return runErr
	}
	return nil
}

// replayTickLog prints one line per tick from a stored tick log.
func replayTickLog(path string) error {
	entries, err := persistence.ReadTickLog(path)
	if err != nil {
		return fmt.Errorf("read tick log: %w", err)
	}
	for _, e := range entries {
		fmt.Printf("%-12s tick %4d  informed %4d (%5s%%)  shares %s\n",
			e.Run, e.Tick, e.Informed, humanize.FtoaWithDigits(e.Percent, 1), humanize.Comma(int64(e.Interactions)))
	}
	fmt.Printf("%s ticks\n", humanize.Comma(int64(len(entries))))
	return nil
}

// report prints the run summary and the most central agents.
func report(snap metrics.Snapshot, rows []metrics.CentralityRow, k int, elapsed time.Duration) {
	final := snap.Final()
	fmt.Printf("\n%s ticks in %s: %d/%d agents informed (%s%%), %s interactions\n",
		humanize.Comma(int64(snap.Ticks())), elapsed.Round(time.Millisecond),
		final.Informed, final.Total, humanize.FtoaWithDigits(final.Percent, 1),
		humanize.Comma(int64(len(snap.Interactions))))

	totals := snap.TypeTotals()
	for t, n := range totals {
		fmt.Printf("  %-13s %s agent-ticks\n", office.SpaceType(t).String()+":", humanize.Comma(int64(n)))
	}

	if k <= 0 || len(snap.Interactions) == 0 {
		return
	}
	measures := []struct {
		name string
		f    func(metrics.CentralityRow) float64
	}{
		{"degree", func(r metrics.CentralityRow) float64 { return r.Degree }},
		{"closeness", func(r metrics.CentralityRow) float64 { return r.Closeness }},
		{"betweenness", func(r metrics.CentralityRow) float64 { return r.Betweenness }},
		{"pagerank", func(r metrics.CentralityRow) float64 { return r.PageRank }},
	}
	for _, m := range measures {
		fmt.Printf("top %d by %s:", k, m.name)
		for _, r := range metrics.TopBy(rows, k, m.f) {
			fmt.Printf(" %d(%.3f)", r.Agent, m.f(r))
		}
		fmt.Println()
	}
}
