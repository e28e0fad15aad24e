package snapshot_test

import (
	"math/rand"
	"testing"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/environ"
	"github.com/pthm-cable/cultivar/growth"
	"github.com/pthm-cable/cultivar/harvest"
	"github.com/pthm-cable/cultivar/plant"
	"github.com/pthm-cable/cultivar/resource"
	"github.com/pthm-cable/cultivar/snapshot"
	"github.com/pthm-cable/cultivar/state"
)

type graph struct {
	cfg *config.Config
	st  *state.Coordinator
	rm  *resource.Manager
	gp  *growth.Processor
	hv  *harvest.Operator
	syn *snapshot.Synchronizer
}

func newGraph(t *testing.T, mutate func(*config.Config)) *graph {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	if mutate != nil {
		mutate(cfg)
	}

	env, err := environ.NewModel(cfg.Environment)
	if err != nil {
		t.Fatalf("building model: %v", err)
	}
	rng := rand.New(rand.NewSource(7))

	g := &graph{cfg: cfg}
	g.st = state.NewCoordinator(cfg.State)
	g.rm = resource.NewManager(cfg.Resource)
	g.gp = growth.NewProcessor(cfg, env, g.st, g.rm, rng)
	g.hv = harvest.NewOperator(cfg.Harvest, g.st, g.gp, g.rm, rng)
	g.syn = snapshot.NewSynchronizer(cfg, snapshot.Components{
		Identity: plant.NewIdentity("plant-1", "og-1", "og-1-geno"),
		State:    g.st,
		Resource: g.rm,
		Growth:   g.gp,
		Harvest:  g.hv,
	})
	return g
}

func (g *graph) advance(days int) {
	cond := environ.Conditions{LightPPFD: 600, TempC: 24, Humidity: 60}
	for i := 0; i < days; i++ {
		g.st.UpdateAge(1)
		g.rm.Update(1)
		g.gp.Tick(1, cond)
		g.hv.Reassess(1, 1)
	}
}

func TestSyncFromComponents(t *testing.T) {
	g := newGraph(t, nil)
	g.advance(10)

	res := g.syn.SyncFromComponents()
	if !res.OK || !res.Validation.Valid {
		t.Fatalf("sync failed: %+v", res.Validation.Issues)
	}
	if res.Version != 1 || g.syn.Version() != 1 {
		t.Errorf("version = %d, want 1", res.Version)
	}

	snap := g.syn.Committed()
	if snap.AgeDays != 10 {
		t.Errorf("snapshot age = %v, want 10", snap.AgeDays)
	}
	if snap.GrowthProgress != g.gp.Progress() {
		t.Errorf("snapshot progress = %v, live %v", snap.GrowthProgress, g.gp.Progress())
	}
	if snap.WaterLevel != g.rm.WaterLevel() {
		t.Errorf("snapshot water = %v, live %v", snap.WaterLevel, g.rm.WaterLevel())
	}
	bioSum := snap.BiomassRoot + snap.BiomassLeaf + snap.BiomassStem
	if snap.BiomassTotal != bioSum {
		t.Errorf("snapshot biomass total %v != component sum %v", snap.BiomassTotal, bioSum)
	}
}

func TestLazyAutoSync(t *testing.T) {
	g := newGraph(t, nil)

	g.syn.Update(1)
	if g.syn.Version() != 0 {
		t.Error("clean synchronizer synced without a dirty flag")
	}

	g.advance(1)
	g.syn.MarkDirty("growth progress changed")
	if !g.syn.Dirty() {
		t.Fatal("dirty flag not set")
	}

	g.syn.Update(1)
	if g.syn.Version() == 0 {
		t.Error("dirty synchronizer never synced")
	}
	if g.syn.Dirty() {
		t.Error("dirty flag survived a successful sync")
	}
}

func TestAutoSyncRespectsFrequency(t *testing.T) {
	g := newGraph(t, func(cfg *config.Config) { cfg.Sync.FrequencyDays = 5 })

	g.advance(1)
	g.syn.MarkDirty("change")
	g.syn.Update(1)
	if g.syn.Version() != 0 {
		t.Error("synced before the frequency interval elapsed")
	}
	g.syn.Update(4)
	if g.syn.Version() != 1 {
		t.Errorf("version = %d, want 1 after the interval", g.syn.Version())
	}
}

func TestSyncToComponents(t *testing.T) {
	g := newGraph(t, nil)

	snap := g.syn.Committed()
	snap.Stage = "vegetative"
	snap.AgeDays = 30
	snap.DaysInStage = 10
	snap.WaterLevel = 0.42
	snap.EnergyLevel = 0.5
	snap.GrowthProgress = 0.3
	snap.BiomassRoot, snap.BiomassLeaf, snap.BiomassStem = 10, 20, 5
	snap.BiomassTotal = 35
	snap.OverallHealth = 0.75
	snap.Height = 0.4

	res := g.syn.SyncToComponents(snap)
	if !res.OK {
		t.Fatalf("push failed: %+v", res.Validation.Issues)
	}

	if g.st.Stage() != plant.StageVegetative || g.st.AgeDays() != 30 {
		t.Errorf("pushed state: stage %v age %v", g.st.Stage(), g.st.AgeDays())
	}
	if g.rm.WaterLevel() != 0.42 {
		t.Errorf("pushed water = %v", g.rm.WaterLevel())
	}
	if g.gp.Progress() != 0.3 || g.gp.BiomassPool().Total() != 35 {
		t.Errorf("pushed growth: progress %v biomass %v", g.gp.Progress(), g.gp.BiomassPool().Total())
	}
	if g.st.Vitality().Health != 0.75 {
		t.Errorf("pushed health = %v", g.st.Vitality().Health)
	}
}

func TestSyncToComponentsAbortsOnInvalid(t *testing.T) {
	g := newGraph(t, nil)
	g.advance(5)

	var failed []snapshot.Result
	g.syn.OnValidationFailed(func(r snapshot.Result) { failed = append(failed, r) })

	snap := g.syn.Committed()
	snap.OverallHealth = 1.2

	healthBefore := g.st.Vitality().Health
	res := g.syn.SyncToComponents(snap)

	if res.OK {
		t.Fatal("invalid snapshot pushed")
	}
	if g.st.Vitality().Health != healthBefore {
		t.Error("aborted push mutated live components")
	}
	if g.syn.Version() != 0 {
		t.Errorf("aborted push bumped version to %d", g.syn.Version())
	}
	if len(failed) != 1 || failed[0].CriticalCount() != 1 {
		t.Errorf("validation-failed callbacks = %v", failed)
	}
}

func TestAutoCorrectOnSync(t *testing.T) {
	g := newGraph(t, func(cfg *config.Config) { cfg.Validation.AutoCorrect = true })

	var corrected [][]snapshot.Correction
	g.syn.OnCorrected(func(cs []snapshot.Correction) { corrected = append(corrected, cs) })

	snap := g.syn.Committed()
	snap.OverallHealth = 1.3

	res := g.syn.SyncToComponents(snap)
	if !res.OK {
		t.Fatalf("correctable snapshot rejected: %+v", res.Validation.Issues)
	}
	if len(res.Corrections) != 1 || res.Corrections[0].Field != "OverallHealth" {
		t.Errorf("corrections = %v", res.Corrections)
	}
	if g.st.Vitality().Health != 1 {
		t.Errorf("pushed health = %v, want corrected 1", g.st.Vitality().Health)
	}
	if len(corrected) != 1 {
		t.Errorf("corrected callbacks = %d", len(corrected))
	}
}

func TestExportImportRoundTripThroughSyncer(t *testing.T) {
	g := newGraph(t, nil)
	g.advance(10)
	g.syn.SyncFromComponents()

	payload, err := g.syn.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	ageAtExport := g.st.AgeDays()
	progressAtExport := g.gp.Progress()

	// Keep living, then restore the earlier state.
	g.advance(20)
	if g.st.AgeDays() == ageAtExport {
		t.Fatal("graph did not advance")
	}

	res, err := g.syn.ImportAndSync(payload)
	if err != nil || !res.OK {
		t.Fatalf("import failed: %v, %+v", err, res.Validation.Issues)
	}
	if g.st.AgeDays() != ageAtExport {
		t.Errorf("restored age = %v, want %v", g.st.AgeDays(), ageAtExport)
	}
	if g.gp.Progress() != progressAtExport {
		t.Errorf("restored progress = %v, want %v", g.gp.Progress(), progressAtExport)
	}
}

func TestImportAndSyncMalformed(t *testing.T) {
	g := newGraph(t, nil)
	if _, err := g.syn.ImportAndSync("{broken"); err == nil {
		t.Error("malformed payload accepted")
	}
	if g.syn.Version() != 0 {
		t.Error("malformed import bumped the version")
	}
}
