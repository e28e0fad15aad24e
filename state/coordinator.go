// Package state owns the canonical growth-stage state machine and the
// plant's physical and vitality attributes. All other components read stage
// state through getters; only the coordinator writes it.
package state

import (
	"math"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/plant"
)

// HistoryEntry is one audit snapshot of coordinator state, tagged with the
// reason that produced it.
type HistoryEntry struct {
	AgeDays float64
	Stage   plant.GrowthStage
	Health  float64
	Stress  float64
	Reason  string
}

// Coordinator is the sole writer of stage, physical and vitality fields.
type Coordinator struct {
	cfg config.StateConfig

	stage       plant.GrowthStage
	ageDays     float64
	daysInStage float64
	position    plant.Position
	physical    plant.Physical
	vitality    plant.Vitality

	history []HistoryEntry

	onStageChanged  func(old, new plant.GrowthStage)
	onHealthChanged func(old, new float64)
}

// NewCoordinator creates a coordinator for a freshly initialized plant:
// seedling stage, full health, zero age and maturity.
func NewCoordinator(cfg config.StateConfig) *Coordinator {
	c := &Coordinator{
		cfg:   cfg,
		stage: plant.StageSeedling,
		vitality: plant.Vitality{
			Health:         1.0,
			Vigor:          1.0,
			Stress:         0.0,
			ImmuneResponse: 0.8,
			Maturity:       0.0,
		},
	}
	c.record("initialized")
	return c
}

// OnStageChanged registers the stage transition callback.
func (c *Coordinator) OnStageChanged(fn func(old, new plant.GrowthStage)) { c.onStageChanged = fn }

// OnHealthChanged registers the health change callback. Deltas below the
// configured noise threshold do not fire it.
func (c *Coordinator) OnHealthChanged(fn func(old, new float64)) { c.onHealthChanged = fn }

// SetGrowthStage attempts a stage transition. Invalid transitions are
// rejected with no state change; the stage machine never force-applies.
func (c *Coordinator) SetGrowthStage(next plant.GrowthStage, reason string) plant.Result {
	if !c.stage.CanTransitionTo(next) {
		return plant.Fail("invalid stage transition %s -> %s", c.stage, next)
	}
	old := c.stage
	c.stage = next
	c.daysInStage = 0
	c.record(reason)
	if c.onStageChanged != nil {
		c.onStageChanged(old, next)
	}
	return plant.Ok("stage %s -> %s", old, next)
}

// UpdateAge advances age and days-in-stage together, keeping the
// days-in-stage <= age invariant by construction.
func (c *Coordinator) UpdateAge(deltaDays float64) {
	if deltaDays <= 0 {
		return
	}
	c.ageDays += deltaDays
	c.daysInStage += deltaDays
}

// UpdateHealth sets overall health, clamped to [0,1].
func (c *Coordinator) UpdateHealth(health float64) {
	old := c.vitality.Health
	c.vitality.Health = plant.Clamp01(health)
	if c.onHealthChanged != nil && math.Abs(c.vitality.Health-old) >= c.cfg.NoiseThreshold {
		c.onHealthChanged(old, c.vitality.Health)
	}
}

// UpdateStressLevel sets the stress level, clamped to [0,1].
func (c *Coordinator) UpdateStressLevel(stress float64) {
	c.vitality.Stress = plant.Clamp01(stress)
}

// AddStress raises stress by delta, clamped to [0,1].
func (c *Coordinator) AddStress(delta float64) {
	c.UpdateStressLevel(c.vitality.Stress + delta)
}

// UpdatePhysical sets the physical characteristics. Negative values clamp to
// zero; the root-mass fraction clamps to [0,1].
func (c *Coordinator) UpdatePhysical(p plant.Physical) {
	c.physical = plant.Physical{
		Height:           math.Max(0, p.Height),
		Width:            math.Max(0, p.Width),
		LeafArea:         math.Max(0, p.LeafArea),
		RootMassFraction: plant.Clamp01(p.RootMassFraction),
	}
}

// UpdatePosition moves the plant.
func (c *Coordinator) UpdatePosition(pos plant.Position) {
	c.position = pos
}

// UpdateVitality sets the full vitality group, each field clamped to [0,1].
// Health changes route through UpdateHealth so the callback still fires.
func (c *Coordinator) UpdateVitality(v plant.Vitality) {
	c.UpdateHealth(v.Health)
	c.vitality.Vigor = plant.Clamp01(v.Vigor)
	c.vitality.Stress = plant.Clamp01(v.Stress)
	c.vitality.ImmuneResponse = plant.Clamp01(v.ImmuneResponse)
	c.vitality.Maturity = plant.Clamp01(v.Maturity)
}

// UpdateMaturity sets the maturity level, clamped to [0,1].
func (c *Coordinator) UpdateMaturity(m float64) {
	c.vitality.Maturity = plant.Clamp01(m)
}

// Stage returns the current growth stage.
func (c *Coordinator) Stage() plant.GrowthStage { return c.stage }

// AgeDays returns the plant's age in days.
func (c *Coordinator) AgeDays() float64 { return c.ageDays }

// DaysInStage returns the days spent in the current stage.
func (c *Coordinator) DaysInStage() float64 { return c.daysInStage }

// Position returns the world position.
func (c *Coordinator) Position() plant.Position { return c.position }

// Physical returns the physical attribute group.
func (c *Coordinator) Physical() plant.Physical { return c.physical }

// Vitality returns the vitality attribute group.
func (c *Coordinator) Vitality() plant.Vitality { return c.vitality }

// History returns the recorded state snapshots, oldest first.
func (c *Coordinator) History() []HistoryEntry {
	out := make([]HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

// Restore overwrites coordinator state from a snapshot without transition
// validation or callbacks; it is the synchronizer's push path. The stage and
// age relationship is validated upstream before Restore runs.
func (c *Coordinator) Restore(stage plant.GrowthStage, ageDays, daysInStage float64, pos plant.Position, phys plant.Physical, vit plant.Vitality) {
	c.stage = stage
	c.ageDays = math.Max(0, ageDays)
	c.daysInStage = plant.Clamp(daysInStage, 0, c.ageDays)
	c.position = pos
	c.UpdatePhysical(phys)
	c.vitality = plant.Vitality{
		Health:         plant.Clamp01(vit.Health),
		Vigor:          plant.Clamp01(vit.Vigor),
		Stress:         plant.Clamp01(vit.Stress),
		ImmuneResponse: plant.Clamp01(vit.ImmuneResponse),
		Maturity:       plant.Clamp01(vit.Maturity),
	}
	c.record("restored from snapshot")
}

// record appends a history entry, trimming the oldest past capacity.
func (c *Coordinator) record(reason string) {
	if !c.cfg.RecordHistory || c.cfg.HistorySize <= 0 {
		return
	}
	c.history = append(c.history, HistoryEntry{
		AgeDays: c.ageDays,
		Stage:   c.stage,
		Health:  c.vitality.Health,
		Stress:  c.vitality.Stress,
		Reason:  reason,
	})
	if len(c.history) > c.cfg.HistorySize {
		c.history = c.history[len(c.history)-c.cfg.HistorySize:]
	}
}
