// Package resource tracks the plant's water, nutrient and energy pools and
// applies consumption, watering, feeding and training operations.
package resource

import (
	"math"

	"github.com/agnivade/levenshtein"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/plant"
)

// Type identifies one of the tracked resource pools.
type Type uint8

const (
	Water Type = iota
	Nutrient
	Energy
)

var typeNames = [...]string{"water", "nutrient", "energy"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Never marks a timestamp field as "event has not happened yet".
const Never = -1.0

// Manager is the sole writer of the plant's resource fields. Levels live in
// [0,1]; the aggregate nutrient level is the mean of the named components.
type Manager struct {
	cfg config.ResourceConfig

	water     float64
	energy    float64
	nutrients map[string]float64

	clock        float64 // current sim-day, advanced by Update
	lastWatering float64
	lastFeeding  float64
	lastTraining float64

	// Critical state per resource type, used to fire the callback only on
	// the crossing into critical territory.
	critical [3]bool

	onLevelChanged func(t Type, old, new float64)
	onCritical     func(t Type, level float64)
}

// NewManager creates a manager with full pools.
func NewManager(cfg config.ResourceConfig) *Manager {
	m := &Manager{
		cfg:          cfg,
		water:        1.0,
		energy:       1.0,
		nutrients:    make(map[string]float64, len(cfg.Nutrients)),
		lastWatering: Never,
		lastFeeding:  Never,
		lastTraining: Never,
	}
	for _, name := range cfg.Nutrients {
		m.nutrients[name] = 1.0
	}
	return m
}

// OnLevelChanged registers the level-changed callback. Deltas below the
// configured noise threshold do not fire it.
func (m *Manager) OnLevelChanged(fn func(t Type, old, new float64)) { m.onLevelChanged = fn }

// OnCritical registers the critical-level callback, fired once per crossing
// below a resource's critical threshold.
func (m *Manager) OnCritical(fn func(t Type, level float64)) { m.onCritical = fn }

// Water adds water to the pool. Negative or non-finite amounts are rejected
// when limit validation is enabled; the addition clamps at a full pool.
func (m *Manager) Water(amount float64) plant.Result {
	if m.cfg.LimitValidation && !validAmount(amount) {
		return plant.Fail("invalid water amount %v", amount)
	}
	old := m.water
	m.water = plant.Clamp01(m.water + amount)
	m.lastWatering = m.clock
	m.notifyLevel(Water, old, m.water)
	m.clearCritical(Water, m.water, m.cfg.CriticalWater)
	return plant.Ok("watered").With("water_level", m.water).With("absorbed", m.water-old)
}

// Feed adds the named nutrient amounts. The whole map is validated before any
// mutation: an empty map, an unknown nutrient name, or an invalid amount
// rejects the feeding untouched. Unknown names carry a closest-match
// suggestion when one is plausible.
func (m *Manager) Feed(amounts map[string]float64) plant.Result {
	if len(amounts) == 0 {
		return plant.Fail("empty nutrient map")
	}
	for name, amount := range amounts {
		if _, ok := m.nutrients[name]; !ok {
			if sugg := m.suggestNutrient(name); sugg != "" {
				return plant.Fail("unknown nutrient %q (did you mean %q?)", name, sugg)
			}
			return plant.Fail("unknown nutrient %q", name)
		}
		if m.cfg.LimitValidation && !validAmount(amount) {
			return plant.Fail("invalid amount %v for nutrient %q", amount, name)
		}
	}

	oldAgg := m.NutrientLevel()
	for name, amount := range amounts {
		m.nutrients[name] = plant.Clamp01(m.nutrients[name] + amount)
	}
	m.lastFeeding = m.clock
	agg := m.NutrientLevel()
	m.notifyLevel(Nutrient, oldAgg, agg)
	m.clearCritical(Nutrient, agg, m.cfg.CriticalNutrient)
	return plant.Ok("fed %d nutrients", len(amounts)).With("nutrient_level", agg)
}

// ApplyTraining spends the fixed training energy cost. It fails without
// state change when reserves are insufficient; on success the caller is
// expected to apply the reported stress increase to the plant's vitality.
func (m *Manager) ApplyTraining() plant.Result {
	if m.energy < m.cfg.TrainingEnergyCost {
		return plant.Fail("insufficient energy for training: %.2f < %.2f",
			m.energy, m.cfg.TrainingEnergyCost)
	}
	old := m.energy
	m.energy -= m.cfg.TrainingEnergyCost
	m.lastTraining = m.clock
	m.notifyLevel(Energy, old, m.energy)
	m.checkCritical(Energy, m.energy, m.cfg.CriticalEnergy)
	return plant.Ok("training applied").
		With("energy_level", m.energy).
		With("stress_increase", m.cfg.TrainingStress)
}

// Update applies deltaDays of consumption to every pool and fires critical
// callbacks for pools crossing below their thresholds.
func (m *Manager) Update(deltaDays float64) {
	if deltaDays <= 0 {
		return
	}
	m.clock += deltaDays

	oldWater := m.water
	m.water = plant.Clamp01(m.water - m.cfg.WaterPerDay*deltaDays)
	m.notifyLevel(Water, oldWater, m.water)
	m.checkCritical(Water, m.water, m.cfg.CriticalWater)

	oldAgg := m.NutrientLevel()
	for name, level := range m.nutrients {
		m.nutrients[name] = plant.Clamp01(level - m.cfg.NutrientPerDay*deltaDays)
	}
	agg := m.NutrientLevel()
	m.notifyLevel(Nutrient, oldAgg, agg)
	m.checkCritical(Nutrient, agg, m.cfg.CriticalNutrient)

	oldEnergy := m.energy
	m.energy = plant.Clamp01(m.energy - m.cfg.EnergyPerDay*deltaDays)
	m.notifyLevel(Energy, oldEnergy, m.energy)
	m.checkCritical(Energy, m.energy, m.cfg.CriticalEnergy)
}

// WaterLevel returns the water pool level.
func (m *Manager) WaterLevel() float64 { return m.water }

// EnergyLevel returns the energy reserve level.
func (m *Manager) EnergyLevel() float64 { return m.energy }

// NutrientLevel returns the aggregate nutrient level: the mean of the named
// components.
func (m *Manager) NutrientLevel() float64 {
	if len(m.nutrients) == 0 {
		return 0
	}
	var sum float64
	for _, level := range m.nutrients {
		sum += level
	}
	return sum / float64(len(m.nutrients))
}

// NutrientLevels returns a copy of the named nutrient map.
func (m *Manager) NutrientLevels() map[string]float64 {
	out := make(map[string]float64, len(m.nutrients))
	for name, level := range m.nutrients {
		out[name] = level
	}
	return out
}

// LastWatering returns the sim-day of the last watering, or Never.
func (m *Manager) LastWatering() float64 { return m.lastWatering }

// LastFeeding returns the sim-day of the last feeding, or Never.
func (m *Manager) LastFeeding() float64 { return m.lastFeeding }

// LastTraining returns the sim-day of the last training, or Never.
func (m *Manager) LastTraining() float64 { return m.lastTraining }

// Overall condenses the three pools into one supply factor for the growth
// modifier pipeline: the mean of water, aggregate nutrient, and energy.
func (m *Manager) Overall() float64 {
	return (m.water + m.NutrientLevel() + m.energy) / 3
}

// Restore overwrites all pools and timestamps from a snapshot. Unknown
// nutrient names are dropped; nutrients missing from the snapshot keep their
// current level. Restore bypasses callbacks: it is a synchronization path,
// not a husbandry operation.
func (m *Manager) Restore(water, energy float64, nutrients map[string]float64, lastWatering, lastFeeding, lastTraining float64) {
	m.water = plant.Clamp01(water)
	m.energy = plant.Clamp01(energy)
	for name, level := range nutrients {
		if _, ok := m.nutrients[name]; ok {
			m.nutrients[name] = plant.Clamp01(level)
		}
	}
	m.lastWatering = lastWatering
	m.lastFeeding = lastFeeding
	m.lastTraining = lastTraining
}

func (m *Manager) notifyLevel(t Type, old, new float64) {
	if m.onLevelChanged == nil {
		return
	}
	if math.Abs(new-old) < m.cfg.NoiseThreshold {
		return
	}
	m.onLevelChanged(t, old, new)
}

func (m *Manager) checkCritical(t Type, level, threshold float64) {
	if level < threshold && !m.critical[t] {
		m.critical[t] = true
		if m.onCritical != nil {
			m.onCritical(t, level)
		}
	}
}

func (m *Manager) clearCritical(t Type, level, threshold float64) {
	if level >= threshold {
		m.critical[t] = false
	}
}

// suggestNutrient returns the closest canonical nutrient name within an edit
// distance of 3, or the empty string when nothing is close.
func (m *Manager) suggestNutrient(name string) string {
	best, bestDist := "", 4
	for _, known := range m.cfg.Nutrients {
		if d := levenshtein.ComputeDistance(name, known); d < bestDist {
			best, bestDist = known, d
		}
	}
	return best
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
