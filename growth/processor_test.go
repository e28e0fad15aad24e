package growth

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/environ"
	"github.com/pthm-cable/cultivar/plant"
)

type stubState struct {
	stage plant.GrowthStage
	age   float64
	vit   plant.Vitality
}

func (s *stubState) Stage() plant.GrowthStage { return s.stage }
func (s *stubState) AgeDays() float64         { return s.age }
func (s *stubState) Vitality() plant.Vitality { return s.vit }

type stubResource struct{ overall float64 }

func (s *stubResource) Overall() float64 { return s.overall }

var optimal = environ.Conditions{LightPPFD: 600, TempC: 24, Humidity: 60}

func testProcessor(t *testing.T, st *stubState, res *stubResource) *Processor {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	env, err := environ.NewModel(cfg.Environment)
	if err != nil {
		t.Fatalf("building model: %v", err)
	}
	return NewProcessor(cfg, env, st, res, rand.New(rand.NewSource(1)))
}

func TestTickAdvancesProgress(t *testing.T) {
	st := &stubState{stage: plant.StageSeedling, vit: plant.Vitality{Health: 1}}
	res := &stubResource{overall: 1}
	p := testProcessor(t, st, res)

	rep := p.Tick(1, optimal)

	// Everything at factor 1 on day one: progress moves by exactly the base rate.
	if math.Abs(rep.Progress-0.02) > 1e-9 {
		t.Errorf("progress after one optimal day = %v, want 0.02", rep.Progress)
	}
	if math.Abs(rep.TotalModifier-1) > 1e-9 {
		t.Errorf("total modifier = %v, want 1", rep.TotalModifier)
	}
	if math.Abs(rep.Biomass.Total()-2.5) > 1e-9 {
		t.Errorf("biomass after one day = %v, want 2.5", rep.Biomass.Total())
	}
	if len(rep.Anomalies) != 0 {
		t.Errorf("unexpected anomalies: %v", rep.Anomalies)
	}
}

func TestTickScalesWithHealth(t *testing.T) {
	st := &stubState{stage: plant.StageSeedling, vit: plant.Vitality{Health: 0.5}}
	res := &stubResource{overall: 1}
	p := testProcessor(t, st, res)

	rep := p.Tick(1, optimal)
	if math.Abs(rep.Progress-0.01) > 1e-9 {
		t.Errorf("progress at half health = %v, want 0.01", rep.Progress)
	}
}

func TestProgressClampsAtOne(t *testing.T) {
	st := &stubState{stage: plant.StageMature, vit: plant.Vitality{Health: 1}}
	res := &stubResource{overall: 1}
	p := testProcessor(t, st, res)
	p.Restore(0.999, 0.02, environ.Biomass{}, 1, 1.2, 0.8)

	rep := p.Tick(5, optimal)
	if rep.Progress != 1 {
		t.Errorf("progress = %v, want clamp at 1", rep.Progress)
	}
}

func TestProgressCallback(t *testing.T) {
	st := &stubState{stage: plant.StageSeedling, vit: plant.Vitality{Health: 1}}
	res := &stubResource{overall: 1}
	p := testProcessor(t, st, res)

	var old, new float64
	p.OnProgressChanged(func(o, n float64) { old, new = o, n })

	p.Tick(1, optimal)
	if old != 0 || math.Abs(new-0.02) > 1e-9 {
		t.Errorf("callback saw %v -> %v", old, new)
	}
}

func TestHeightCurve(t *testing.T) {
	st := &stubState{stage: plant.StageSeedling, vit: plant.Vitality{Health: 1}}
	p := testProcessor(t, st, &stubResource{overall: 1})

	p.Restore(0.5, 0.02, environ.Biomass{}, 1, 1.2, 0.8)
	if got := p.Height(); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("height at mid progress = %v, want half of max (0.6)", got)
	}

	prev := -1.0
	for _, prog := range []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0} {
		p.Restore(prog, 0.02, environ.Biomass{}, 1, 1.2, 0.8)
		h := p.Height()
		if h <= prev {
			t.Errorf("height must increase with progress: %v at %v after %v", h, prog, prev)
		}
		if h < 0 || h > 1.2 {
			t.Errorf("height %v outside [0, max]", h)
		}
		prev = h
	}
}

func TestWidthCurve(t *testing.T) {
	st := &stubState{stage: plant.StageSeedling, vit: plant.Vitality{Health: 1}}
	p := testProcessor(t, st, &stubResource{overall: 1})

	p.Restore(0, 0.02, environ.Biomass{}, 1, 1.2, 0.8)
	if got := p.Width(); got != 0 {
		t.Errorf("width at zero progress = %v", got)
	}
	p.Restore(1, 0.02, environ.Biomass{}, 1, 1.2, 0.8)
	if got := p.Width(); math.Abs(got-0.8) > 1e-9 {
		t.Errorf("width at full progress = %v, want max width 0.8", got)
	}
}

func TestMaturityRamp(t *testing.T) {
	st := &stubState{stage: plant.StageFlowering, age: 50, vit: plant.Vitality{Health: 1}}
	res := &stubResource{overall: 1}

	tests := []struct {
		name     string
		progress float64
		want     float64
	}{
		{"before flowering onset", 0.3, 0},
		{"at onset", 0.65, 0},
		{"full progress", 1.0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProcessor(t, st, res)
			p.Restore(tt.progress, 1e-12, environ.Biomass{}, 1, 1.2, 0.8)
			rep := p.Tick(1e-9, optimal)
			if math.Abs(rep.Maturity-tt.want) > 1e-6 {
				t.Errorf("maturity at progress %v = %v, want %v", tt.progress, rep.Maturity, tt.want)
			}
		})
	}
}

func TestLowModifierAnomaly(t *testing.T) {
	st := &stubState{stage: plant.StageVegetative, vit: plant.Vitality{Health: 1}}
	res := &stubResource{overall: 0.05}
	p := testProcessor(t, st, res)

	var seen []Anomaly
	p.OnAnomaly(func(a Anomaly) { seen = append(seen, a) })

	rep := p.Tick(1, optimal)
	if len(rep.Anomalies) != 1 || rep.Anomalies[0].Kind != AnomalyLowModifier {
		t.Fatalf("anomalies = %v, want one low_modifier", rep.Anomalies)
	}
	if len(seen) != 1 || seen[0].Kind != AnomalyLowModifier {
		t.Errorf("callback anomalies = %v", seen)
	}
	// Starved growth still ticks; anomalies never interrupt.
	if rep.Progress <= 0 {
		t.Error("progress should still advance under a starved modifier")
	}
}

func TestRecommendStageByAge(t *testing.T) {
	st := &stubState{stage: plant.StageSeedling, age: 14, vit: plant.Vitality{Health: 1}}
	p := testProcessor(t, st, &stubResource{overall: 1})

	rep := p.Tick(1, optimal)
	if !rep.HasRecommended || rep.Recommended != plant.StageVegetative {
		t.Errorf("recommendation = %v (%v), want vegetative", rep.Recommended, rep.HasRecommended)
	}
}

func TestRecommendStageByProgress(t *testing.T) {
	st := &stubState{stage: plant.StageSeedling, age: 5, vit: plant.Vitality{Health: 1}}
	p := testProcessor(t, st, &stubResource{overall: 1})
	p.Restore(0.3, 0.02, environ.Biomass{}, 1, 1.2, 0.8)

	rep := p.Tick(1, optimal)
	if !rep.HasRecommended || rep.Recommended != plant.StageVegetative {
		t.Errorf("recommendation = %v (%v), want vegetative by progress", rep.Recommended, rep.HasRecommended)
	}
}

func TestNoRecommendationBelowThresholds(t *testing.T) {
	st := &stubState{stage: plant.StageSeedling, age: 5, vit: plant.Vitality{Health: 1}}
	p := testProcessor(t, st, &stubResource{overall: 1})

	rep := p.Tick(1, optimal)
	if rep.HasRecommended {
		t.Errorf("unexpected recommendation %v", rep.Recommended)
	}
}

func TestNoRecommendationForTerminalStages(t *testing.T) {
	for _, stage := range []plant.GrowthStage{plant.StageMature, plant.StageDormant} {
		st := &stubState{stage: stage, age: 200, vit: plant.Vitality{Health: 1}}
		p := testProcessor(t, st, &stubResource{overall: 1})
		p.Restore(1, 0.02, environ.Biomass{}, 1, 1.2, 0.8)

		if rep := p.Tick(1, optimal); rep.HasRecommended {
			t.Errorf("stage %v got recommendation %v", stage, rep.Recommended)
		}
	}
}

func TestWeeklyRederiveKeepsVigorInBand(t *testing.T) {
	cfg, _ := config.Load("")
	st := &stubState{stage: plant.StageVegetative, vit: plant.Vitality{Health: 1}}
	p := testProcessor(t, st, &stubResource{overall: 1})

	for day := 0; day < 120; day++ {
		st.age += 1
		p.Tick(1, optimal)
		if v := p.Vigor(); v < cfg.Growth.VigorMin || v > cfg.Growth.VigorMax {
			t.Fatalf("vigor %v left [%v, %v] on day %d", v, cfg.Growth.VigorMin, cfg.Growth.VigorMax, day)
		}
		if h := p.MaxHeight(); h < cfg.Growth.MaxHeight*0.5 || h > cfg.Growth.MaxHeight*1.5 {
			t.Fatalf("max height %v left its band on day %d", h, day)
		}
	}
}

func TestRingOrderAndBounds(t *testing.T) {
	r := newRing(3)
	for i := 1; i <= 5; i++ {
		r.push(Measurement{Day: float64(i)})
	}
	ms := r.ordered()
	if len(ms) != 3 {
		t.Fatalf("ring length = %d, want 3", len(ms))
	}
	for i, want := range []float64{3, 4, 5} {
		if ms[i].Day != want {
			t.Errorf("ms[%d].Day = %v, want %v", i, ms[i].Day, want)
		}
	}
}

func TestRingSlopes(t *testing.T) {
	r := newRing(10)
	if _, _, ok := r.slopes(3); ok {
		t.Error("slopes on an underfilled ring should not be ok")
	}

	// Declining height, rising biomass.
	for i := 0; i < 8; i++ {
		r.push(Measurement{Day: float64(i), Height: 1 - 0.01*float64(i), Biomass: float64(i) * 2})
	}
	hs, bs, ok := r.slopes(7)
	if !ok {
		t.Fatal("slopes not ok with 8 samples")
	}
	if math.Abs(hs-(-0.01)) > 1e-9 {
		t.Errorf("height slope = %v, want -0.01", hs)
	}
	if math.Abs(bs-2) > 1e-9 {
		t.Errorf("biomass slope = %v, want 2", bs)
	}
}
