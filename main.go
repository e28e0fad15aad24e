package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/plant"
	"github.com/pthm-cable/cultivar/sim"
	"github.com/pthm-cable/cultivar/store"
	"github.com/pthm-cable/cultivar/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	days := flag.Float64("days", 0, "Simulated days to run (0 = use config)")
	name := flag.String("name", "plant-1", "Display name for the simulated plant")
	strain := flag.String("strain", "og-1", "Strain id (opaque catalog reference)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	dbPath := flag.String("db", "", "SQLite database for snapshot persistence (empty = disabled)")
	autoHarvest := flag.Bool("auto-harvest", true, "Harvest automatically once the readiness threshold is met")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if !*autoHarvest {
		cfg.Sim.AutoHarvest = false
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	maxDays := cfg.Sim.MaxDays
	if *days > 0 {
		maxDays = *days
	}

	id := plant.NewIdentity(*name, *strain, *strain+"-geno")
	p, err := sim.New(cfg, id, rngSeed)
	if err != nil {
		slog.Error("failed to build plant", "error", err)
		os.Exit(1)
	}

	weather := sim.NewWeather(cfg.Sim.Weather, rngSeed)
	collector := telemetry.NewCollector()

	output, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output dir", "error", err)
		os.Exit(1)
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		slog.Warn("failed to write config snapshot", "error", err)
	}

	var db *store.DB
	if *dbPath != "" {
		db, err = store.Open(*dbPath)
		if err != nil {
			slog.Error("failed to open snapshot store", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	slog.Info("run started",
		"plant", id.ID,
		"name", id.Name,
		"seed", rngSeed,
		"max_days", maxDays)

	var lastSaved uint64
	sinceLog := 0.0
	for day := 0.0; day < maxDays; day += cfg.Sim.DeltaDays {
		cond := weather.ConditionsAt(day)
		p.Tick(cfg.Sim.DeltaDays, cond)

		careFor(p)

		rec := collector.Observe(p)
		if err := output.WriteDay(rec); err != nil {
			slog.Warn("telemetry write failed", "error", err)
		}

		// Persist each newly committed snapshot version.
		syn := p.Synchronizer()
		if db != nil && syn.Version() > lastSaved {
			if err := db.Save(syn.Committed(), syn.Version(), p.Day()); err != nil {
				slog.Warn("snapshot save failed", "error", err)
			} else {
				lastSaved = syn.Version()
			}
		}

		sinceLog += cfg.Sim.DeltaDays
		if cfg.Sim.LogEveryDays > 0 && sinceLog >= cfg.Sim.LogEveryDays {
			sinceLog = 0
			logProgress(p, rec)
		}

		if cfg.Sim.AutoHarvest && !p.Harvested() && p.CheckHarvestReadiness().IsReady {
			res := p.Harvest("auto")
			slog.Info("auto-harvest", "ok", res.OK, "message", res.Message)
		}
		if p.Harvested() {
			break
		}
	}

	if err := output.WriteHarvest(p.HarvestHistory()); err != nil {
		slog.Warn("harvest history write failed", "error", err)
	}
	if payload, err := p.Synchronizer().Export(); err == nil {
		if err := output.WriteSnapshot(payload); err != nil {
			slog.Warn("snapshot write failed", "error", err)
		}
	}

	printSummary(p)
}

// careFor is the host's simple husbandry policy: top up whichever pool is
// running low.
func careFor(p *sim.Plant) {
	if p.Harvested() {
		return
	}
	rs := p.GetResourceSummary()
	if rs.Water < 0.5 {
		p.Water(0.4)
	}
	if rs.Nutrient < 0.5 {
		feed := make(map[string]float64, len(rs.Nutrients))
		for name := range rs.Nutrients {
			feed[name] = 0.3
		}
		p.Feed(feed)
	}
}

func logProgress(p *sim.Plant, rec telemetry.DayStats) {
	slog.Info("progress",
		"day", rec.Day,
		"stage", rec.Stage,
		"progress", rec.Progress,
		"height_m", rec.Height,
		"biomass_g", rec.Biomass,
		"health", rec.Health,
		"readiness", rec.Readiness)
}

func printSummary(p *sim.Plant) {
	st := p.GetStateSummary()
	gr := p.GetGrowthSummary()

	fmt.Fprintf(os.Stderr, "\n=== Run summary: %s ===\n", p.Identity().Name)
	fmt.Fprintf(os.Stderr, "Final stage:   %s (%s days old)\n", st.Stage, humanize.Ftoa(st.AgeDays))
	fmt.Fprintf(os.Stderr, "Height:        %s m, biomass %s g\n",
		humanize.FtoaWithDigits(st.Height, 2), humanize.FtoaWithDigits(gr.Biomass.Total(), 1))
	fmt.Fprintf(os.Stderr, "Events seen:   %s\n", humanize.Comma(int64(len(p.Bus().History()))))

	if attempts := p.HarvestHistory(); len(attempts) > 0 {
		a := attempts[len(attempts)-1]
		fmt.Fprintf(os.Stderr, "Harvest:       %s g at %.1f%% potency, grade %s (day %s)\n",
			humanize.FtoaWithDigits(a.Yield, 1), a.Potency*100, a.Grade, humanize.Ftoa(a.Day))
	} else {
		fmt.Fprintf(os.Stderr, "Harvest:       none\n")
	}
	fmt.Fprintf(os.Stderr, "Sync version:  %d (dirty: %v)\n",
		p.Synchronizer().Version(), p.Synchronizer().Dirty())
}
