// Package sim wires one plant's component graph and drives it tick by tick.
// Each orchestrator receives only the components it reads, passed at
// construction; there is no ambient lookup between siblings.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/environ"
	"github.com/pthm-cable/cultivar/events"
	"github.com/pthm-cable/cultivar/growth"
	"github.com/pthm-cable/cultivar/harvest"
	"github.com/pthm-cable/cultivar/plant"
	"github.com/pthm-cable/cultivar/resource"
	"github.com/pthm-cable/cultivar/snapshot"
	"github.com/pthm-cable/cultivar/state"
)

// Plant is the aggregate root: the full component graph for one cultivated
// individual plus the per-field single-writer wiring between them.
type Plant struct {
	cfg *config.Config
	id  plant.Identity

	env *environ.Model
	st  *state.Coordinator
	rm  *resource.Manager
	gp  *growth.Processor
	hv  *harvest.Operator
	bus *events.Bus
	syn *snapshot.Synchronizer

	clock      float64
	lastReport growth.Report
}

// New builds and wires the component graph for a freshly initialized plant.
func New(cfg *config.Config, id plant.Identity, seed int64) (*Plant, error) {
	env, err := environ.NewModel(cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("building environment model: %w", err)
	}

	rng := rand.New(rand.NewSource(seed))

	p := &Plant{cfg: cfg, id: id, env: env}
	p.st = state.NewCoordinator(cfg.State)
	p.rm = resource.NewManager(cfg.Resource)
	p.gp = growth.NewProcessor(cfg, env, p.st, p.rm, rng)
	p.hv = harvest.NewOperator(cfg.Harvest, p.st, p.gp, p.rm, rng)
	p.bus = events.NewBus(cfg.Events)
	p.syn = snapshot.NewSynchronizer(cfg, snapshot.Components{
		Identity: id,
		State:    p.st,
		Resource: p.rm,
		Growth:   p.gp,
		Harvest:  p.hv,
	})

	p.wire()
	return p, nil
}

// wire routes component change callbacks into the event bus and the
// synchronizer's dirty flag.
func (p *Plant) wire() {
	p.rm.OnLevelChanged(func(t resource.Type, old, new float64) {
		p.bus.Raise(events.Event{
			Type: events.ResourceLevelChanged, Source: "resource",
			Field: t.String(), Old: old, New: new,
		})
		p.syn.MarkDirty("resource level changed")
	})
	p.rm.OnCritical(func(t resource.Type, level float64) {
		p.bus.Raise(events.Event{
			Type: events.CriticalResource, Source: "resource",
			Field: t.String(), New: level,
			Message: fmt.Sprintf("%s critically low", t),
		})
	})
	p.st.OnStageChanged(func(old, new plant.GrowthStage) {
		p.bus.Raise(events.Event{
			Type: events.StageChanged, Source: "state",
			Message: fmt.Sprintf("%s -> %s", old, new),
		})
		p.syn.MarkDirty("stage changed")
	})
	p.st.OnHealthChanged(func(old, new float64) {
		p.bus.Raise(events.Event{
			Type: events.HealthChanged, Source: "state",
			Field: "health", Old: old, New: new,
		})
		p.syn.MarkDirty("health changed")
	})
	p.gp.OnProgressChanged(func(old, new float64) {
		p.bus.Raise(events.Event{
			Type: events.GrowthProgressChanged, Source: "growth",
			Field: "progress", Old: old, New: new,
		})
		p.syn.MarkDirty("growth progress changed")
	})
	p.gp.OnAnomaly(func(a growth.Anomaly) {
		p.bus.Raise(events.Event{
			Type: events.GrowthAnomaly, Source: "growth",
			Field: a.Kind.String(), New: a.Value,
		})
	})
	p.hv.OnCompleted(func(a harvest.Attempt) {
		p.bus.Raise(events.Event{
			Type: events.HarvestCompleted, Source: "harvest",
			New:     a.Yield,
			Message: fmt.Sprintf("%.1f g at grade %s", a.Yield, a.Grade),
		})
		p.syn.MarkDirty("harvest completed")
	})
	p.syn.OnValidationFailed(func(res snapshot.Result) {
		p.bus.Raise(events.Event{
			Type: events.ValidationFailed, Source: "snapshot",
			New:     float64(res.CriticalCount()),
			Message: fmt.Sprintf("%d critical issues", res.CriticalCount()),
		})
	})
	p.syn.OnCorrected(func(cs []snapshot.Correction) {
		for _, c := range cs {
			p.bus.Raise(events.Event{
				Type: events.ValueCorrected, Source: "snapshot",
				Field: c.Field, Old: c.Old, New: c.New,
			})
		}
	})
}

// Tick advances the whole graph by deltaDays in the dependency order:
// resources and growth first, then state metrics and harvest reassessment,
// then event dispatch, then the synchronizer's lazy check.
func (p *Plant) Tick(deltaDays float64, cond environ.Conditions) {
	if deltaDays <= 0 {
		return
	}
	p.clock += deltaDays

	if !p.hv.Harvested() {
		p.st.UpdateAge(deltaDays)
		p.rm.Update(deltaDays)

		rep := p.gp.Tick(deltaDays, cond)
		p.lastReport = rep

		p.st.UpdatePhysical(plant.Physical{
			Height:           rep.Height,
			Width:            rep.Width,
			LeafArea:         rep.LeafArea,
			RootMassFraction: rep.Biomass.RootFraction(),
		})
		p.st.UpdateMaturity(rep.Maturity)
		p.updateVitals(deltaDays)

		if rep.HasRecommended {
			// The processor only recommends; the coordinator decides.
			p.st.SetGrowthStage(rep.Recommended, "growth thresholds reached")
		}

		p.hv.Reassess(deltaDays, rep.EnvFactor)
	} else {
		// Terminal: the plant no longer grows, but clocks and deferred
		// mechanisms still advance.
		p.hv.Reassess(deltaDays, 1.0)
	}

	p.bus.Update(deltaDays)
	p.syn.Update(deltaDays)
}

// updateVitals moves health toward a target set by resource supply and
// stress, and lets stress relax. Health is written only here and by explicit
// host calls through the coordinator.
func (p *Plant) updateVitals(deltaDays float64) {
	vit := p.st.Vitality()

	target := plant.Clamp01(0.55 + 0.55*p.rm.Overall() - 0.5*vit.Stress)
	health := vit.Health + (target-vit.Health)*plant.Clamp01(0.15*deltaDays)
	p.st.UpdateHealth(health)

	p.st.UpdateStressLevel(vit.Stress * (1 - plant.Clamp01(0.04*deltaDays)))
}

// Water is the watering command entry point. A harvested plant rejects it.
func (p *Plant) Water(amount float64) plant.Result {
	if p.hv.Harvested() {
		return plant.Fail("plant already harvested")
	}
	return p.rm.Water(amount)
}

// Feed is the feeding command entry point.
func (p *Plant) Feed(nutrients map[string]float64) plant.Result {
	if p.hv.Harvested() {
		return plant.Fail("plant already harvested")
	}
	return p.rm.Feed(nutrients)
}

// ApplyTraining spends energy on training and applies the resulting stress.
func (p *Plant) ApplyTraining() plant.Result {
	if p.hv.Harvested() {
		return plant.Fail("plant already harvested")
	}
	res := p.rm.ApplyTraining()
	if res.OK {
		p.st.AddStress(res.Metric("stress_increase"))
	}
	return res
}

// SetGrowthStage is the host's manual stage command; it is subject to the
// same transition rules as recommendations.
func (p *Plant) SetGrowthStage(stage plant.GrowthStage) plant.Result {
	return p.st.SetGrowthStage(stage, "host request")
}

// Harvest executes the harvest transaction.
func (p *Plant) Harvest(method string) plant.Result {
	return p.hv.Harvest(method)
}

// CheckHarvestReadiness returns the side-effect-free readiness assessment.
func (p *Plant) CheckHarvestReadiness() harvest.Report {
	return p.hv.CheckReadiness()
}

// HarvestHistory returns past harvest attempts.
func (p *Plant) HarvestHistory() []harvest.Attempt {
	return p.hv.History()
}

// StateSummary is the stage/vitality/morphology view.
type StateSummary struct {
	Stage       plant.GrowthStage
	AgeDays     float64
	DaysInStage float64
	Health      float64
	Stress      float64
	Maturity    float64
	Height      float64
	Width       float64
	LeafArea    float64
	Position    plant.Position
}

// GetStateSummary returns the current state view.
func (p *Plant) GetStateSummary() StateSummary {
	phys := p.st.Physical()
	vit := p.st.Vitality()
	return StateSummary{
		Stage:       p.st.Stage(),
		AgeDays:     p.st.AgeDays(),
		DaysInStage: p.st.DaysInStage(),
		Health:      vit.Health,
		Stress:      vit.Stress,
		Maturity:    vit.Maturity,
		Height:      phys.Height,
		Width:       phys.Width,
		LeafArea:    phys.LeafArea,
		Position:    p.st.Position(),
	}
}

// GrowthSummary is the progress/biomass view.
type GrowthSummary struct {
	Progress      float64
	DailyRate     float64
	EnvFactor     float64
	TotalModifier float64
	Biomass       environ.Biomass
	GeneticVigor  float64
	MaxHeight     float64
}

// GetGrowthSummary returns the current growth view.
func (p *Plant) GetGrowthSummary() GrowthSummary {
	return GrowthSummary{
		Progress:      p.gp.Progress(),
		DailyRate:     p.gp.DailyRate(),
		EnvFactor:     p.lastReport.EnvFactor,
		TotalModifier: p.lastReport.TotalModifier,
		Biomass:       p.gp.BiomassPool(),
		GeneticVigor:  p.gp.Vigor(),
		MaxHeight:     p.gp.MaxHeight(),
	}
}

// ResourceSummary is the water/nutrient/energy view.
type ResourceSummary struct {
	Water        float64
	Nutrient     float64
	Energy       float64
	Nutrients    map[string]float64
	LastWatering float64
	LastFeeding  float64
	LastTraining float64
}

// GetResourceSummary returns the current resource view.
func (p *Plant) GetResourceSummary() ResourceSummary {
	return ResourceSummary{
		Water:        p.rm.WaterLevel(),
		Nutrient:     p.rm.NutrientLevel(),
		Energy:       p.rm.EnergyLevel(),
		Nutrients:    p.rm.NutrientLevels(),
		LastWatering: p.rm.LastWatering(),
		LastFeeding:  p.rm.LastFeeding(),
		LastTraining: p.rm.LastTraining(),
	}
}

// Identity returns the plant's identity.
func (p *Plant) Identity() plant.Identity { return p.id }

// Harvested reports whether the plant is terminal.
func (p *Plant) Harvested() bool { return p.hv.Harvested() }

// Day returns the plant's sim-day clock.
func (p *Plant) Day() float64 { return p.clock }

// Bus exposes the event bus for host subscriptions.
func (p *Plant) Bus() *events.Bus { return p.bus }

// Synchronizer exposes the snapshot synchronizer.
func (p *Plant) Synchronizer() *snapshot.Synchronizer { return p.syn }

// LastReport returns the most recent growth tick report.
func (p *Plant) LastReport() growth.Report { return p.lastReport }
