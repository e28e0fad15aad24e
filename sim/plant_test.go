package sim

import (
	"testing"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/environ"
	"github.com/pthm-cable/cultivar/events"
	"github.com/pthm-cable/cultivar/plant"
)

var optimal = environ.Conditions{LightPPFD: 600, TempC: 24, Humidity: 60}

func testPlant(t *testing.T, mutate func(*config.Config)) *Plant {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	if mutate != nil {
		mutate(cfg)
	}
	p, err := New(cfg, plant.NewIdentity("plant-1", "og-1", "og-1-geno"), 42)
	if err != nil {
		t.Fatalf("building plant: %v", err)
	}
	return p
}

// tend keeps every pool topped up so scenario runs are not starved.
func tend(p *Plant) {
	rs := p.GetResourceSummary()
	if rs.Water < 0.8 {
		p.Water(0.5)
	}
	if rs.Nutrient < 0.8 {
		feed := make(map[string]float64, len(rs.Nutrients))
		for name := range rs.Nutrients {
			feed[name] = 0.5
		}
		p.Feed(feed)
	}
}

func runDays(p *Plant, days int, cond environ.Conditions) {
	for i := 0; i < days; i++ {
		p.Tick(1, cond)
		tend(p)
	}
}

func TestFourteenOptimalDaysReachVegetative(t *testing.T) {
	p := testPlant(t, nil)
	runDays(p, 14, optimal)

	st := p.GetStateSummary()
	if st.Stage != plant.StageVegetative {
		t.Errorf("stage after 14 tended days = %v, want vegetative", st.Stage)
	}
	if st.AgeDays != 14 {
		t.Errorf("age = %v, want 14", st.AgeDays)
	}
	gr := p.GetGrowthSummary()
	if gr.Progress <= 0 {
		t.Errorf("progress = %v, want > 0", gr.Progress)
	}
	if gr.Biomass.Total() <= 0 {
		t.Error("no biomass accumulated")
	}
	if st.Height <= 0 {
		t.Error("no height derived")
	}

	// The transition shows up on the bus.
	stages := p.Bus().HistoryByType(events.StageChanged)
	if len(stages) != 1 {
		t.Errorf("stage events = %d, want 1", len(stages))
	}
}

func TestNeglectedPlantLosesHealth(t *testing.T) {
	p := testPlant(t, nil)
	for i := 0; i < 40; i++ {
		p.Tick(1, optimal)
	}
	tended := testPlant(t, nil)
	runDays(tended, 40, optimal)

	if p.GetStateSummary().Health >= tended.GetStateSummary().Health {
		t.Errorf("neglected health %v should trail tended health %v",
			p.GetStateSummary().Health, tended.GetStateSummary().Health)
	}
	if len(p.Bus().HistoryByType(events.CriticalResource)) == 0 {
		t.Error("no critical resource events after 40 untended days")
	}
}

func TestWaterRejectsNegative(t *testing.T) {
	p := testPlant(t, nil)
	p.Tick(1, optimal)
	before := p.GetResourceSummary().Water

	res := p.Water(-0.5)
	if res.OK {
		t.Fatal("negative watering accepted")
	}
	if p.GetResourceSummary().Water != before {
		t.Error("rejected watering mutated the pool")
	}
}

func TestTrainingAddsStress(t *testing.T) {
	p := testPlant(t, nil)
	p.Tick(1, optimal)

	res := p.ApplyTraining()
	if !res.OK {
		t.Fatalf("training failed: %s", res.Message)
	}
	if got := p.GetStateSummary().Stress; got < 0.05-1e-9 {
		t.Errorf("stress after training = %v, want >= 0.05", got)
	}
}

func TestManualStageCommandValidated(t *testing.T) {
	p := testPlant(t, nil)
	if res := p.SetGrowthStage(plant.StageMature); res.OK {
		t.Error("seedling-to-mature skip accepted")
	}
	if res := p.SetGrowthStage(plant.StageDormant); !res.OK {
		t.Errorf("dormancy rejected: %s", res.Message)
	}
	if p.GetStateSummary().Stage != plant.StageDormant {
		t.Errorf("stage = %v", p.GetStateSummary().Stage)
	}
}

func TestFullLifecycleAndHarvest(t *testing.T) {
	p := testPlant(t, nil)

	harvestedAt := -1.0
	for day := 0; day < 200; day++ {
		p.Tick(1, optimal)
		tend(p)
		if !p.Harvested() && p.CheckHarvestReadiness().IsReady {
			res := p.Harvest("auto")
			if !res.OK {
				t.Fatalf("harvest failed: %s", res.Message)
			}
			harvestedAt = p.Day()
			break
		}
	}
	if harvestedAt < 0 {
		t.Fatalf("plant never reached readiness; progress %v, readiness %v",
			p.GetGrowthSummary().Progress, p.CheckHarvestReadiness().Readiness)
	}

	hist := p.HarvestHistory()
	if len(hist) != 1 {
		t.Fatalf("harvest history = %d entries", len(hist))
	}
	if hist[0].Yield <= 0 || hist[0].Potency < 0.05 {
		t.Errorf("attempt = %+v", hist[0])
	}
	if len(p.Bus().HistoryByType(events.HarvestCompleted)) == 0 {
		t.Error("no harvest event on the bus")
	}

	// Second harvest fails; history is untouched.
	if res := p.Harvest("again"); res.OK {
		t.Error("second harvest accepted")
	}
	if len(p.HarvestHistory()) != 1 {
		t.Error("second harvest mutated history")
	}
}

func TestHarvestedPlantIsTerminal(t *testing.T) {
	p := testPlant(t, nil)
	runDays(p, 30, optimal)
	if res := p.Harvest("early"); !res.OK {
		t.Fatalf("harvest failed: %s", res.Message)
	}

	progress := p.GetGrowthSummary().Progress
	age := p.GetStateSummary().AgeDays

	p.Tick(5, optimal)
	if p.GetGrowthSummary().Progress != progress {
		t.Error("harvested plant kept growing")
	}
	if p.GetStateSummary().AgeDays != age {
		t.Error("harvested plant kept aging")
	}
	if p.Day() != 35 {
		t.Errorf("plant clock = %v, want 35 (clock still advances)", p.Day())
	}

	if res := p.Water(0.2); res.OK {
		t.Error("watering accepted after harvest")
	}
	if res := p.Feed(map[string]float64{"nitrogen": 0.2}); res.OK {
		t.Error("feeding accepted after harvest")
	}
	if res := p.ApplyTraining(); res.OK {
		t.Error("training accepted after harvest")
	}
}

func TestSnapshotRoundTripThroughPlant(t *testing.T) {
	p := testPlant(t, nil)
	runDays(p, 20, optimal)

	payload, err := p.Synchronizer().Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	ageAtExport := p.GetStateSummary().AgeDays

	runDays(p, 10, optimal)
	res, err := p.Synchronizer().ImportAndSync(payload)
	if err != nil || !res.OK {
		t.Fatalf("import: %v, %+v", err, res.Validation.Issues)
	}
	if got := p.GetStateSummary().AgeDays; got != ageAtExport {
		t.Errorf("restored age = %v, want %v", got, ageAtExport)
	}
}

func TestWeatherDeterministicAndBounded(t *testing.T) {
	cfg, _ := config.Load("")
	a := NewWeather(cfg.Sim.Weather, 42)
	b := NewWeather(cfg.Sim.Weather, 42)

	for day := 0.0; day < 50; day++ {
		ca, cb := a.ConditionsAt(day), b.ConditionsAt(day)
		if ca != cb {
			t.Fatalf("same seed diverged on day %v: %+v vs %+v", day, ca, cb)
		}
		if ca.LightPPFD < 0 {
			t.Errorf("negative light on day %v", day)
		}
		if ca.Humidity < 0 || ca.Humidity > 100 {
			t.Errorf("humidity %v out of range on day %v", ca.Humidity, day)
		}
		w := cfg.Sim.Weather
		if ca.LightPPFD > w.BaselineLight+w.LightSwing || ca.TempC > w.BaselineTemp+w.TempSwing ||
			ca.TempC < w.BaselineTemp-w.TempSwing {
			t.Errorf("conditions beyond swing bounds on day %v: %+v", day, ca)
		}
	}

	other := NewWeather(cfg.Sim.Weather, 43)
	same := true
	for day := 0.0; day < 10; day++ {
		if a.ConditionsAt(day) != other.ConditionsAt(day) {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical weather")
	}
}
