package snapshot

import (
	"log/slog"

	"github.com/pthm-cable/cultivar/environ"
	"github.com/pthm-cable/cultivar/growth"
	"github.com/pthm-cable/cultivar/harvest"
	"github.com/pthm-cable/cultivar/plant"
	"github.com/pthm-cable/cultivar/resource"
	"github.com/pthm-cable/cultivar/state"

	"github.com/pthm-cable/cultivar/config"
)

// Components is the live component graph the synchronizer mirrors. The
// synchronizer is the only component that reads from all of them, and it
// does so within one synchronous pass, so the snapshot is consistent as of
// the tick it was taken.
type Components struct {
	Identity plant.Identity
	State    *state.Coordinator
	Resource *resource.Manager
	Growth   *growth.Processor
	Harvest  *harvest.Operator
}

// SyncResult is the outcome of a synchronization pass.
type SyncResult struct {
	OK          bool
	Version     uint64
	Validation  Result
	Corrections []Correction
}

// Synchronizer maintains the committed snapshot, its version counter and the
// dirty flag, and moves data between the snapshot and the live components.
type Synchronizer struct {
	cfg         config.SyncConfig
	autoCorrect bool
	validator   *Validator
	comps       Components

	committed Snapshot
	version   uint64
	dirty     bool
	lastDirty string // most recent dirty reason, for diagnostics

	clock    float64
	lastSync float64

	onValidationFailed func(Result)
	onCorrected        func([]Correction)
}

// NewSynchronizer wires a synchronizer to the component graph. The initial
// committed snapshot is taken immediately so there is always a consistent
// fallback.
func NewSynchronizer(cfg *config.Config, comps Components) *Synchronizer {
	s := &Synchronizer{
		cfg:         cfg.Sync,
		autoCorrect: cfg.Validation.AutoCorrect,
		validator:   NewValidator(cfg),
		comps:       comps,
	}
	s.committed = s.collect()
	return s
}

// OnValidationFailed registers the callback fired when a sync aborts on
// validation.
func (s *Synchronizer) OnValidationFailed(fn func(Result)) { s.onValidationFailed = fn }

// OnCorrected registers the callback fired when auto-correction repairs a
// snapshot. Correction is a distinct non-fatal outcome, not a failure.
func (s *Synchronizer) OnCorrected(fn func([]Correction)) { s.onCorrected = fn }

// MarkDirty flags the committed snapshot as stale. Mutation callbacks from
// the other components call this.
func (s *Synchronizer) MarkDirty(reason string) {
	s.dirty = true
	s.lastDirty = reason
}

// Update implements the lazy auto-sync policy: sync only when the dirty flag
// is set and the configured interval has elapsed since the last sync.
func (s *Synchronizer) Update(deltaDays float64) {
	s.clock += deltaDays
	if !s.cfg.AutoSync || !s.dirty {
		return
	}
	if s.clock-s.lastSync < s.cfg.FrequencyDays {
		return
	}
	s.SyncFromComponents()
}

// SyncFromComponents pulls current values from the live components into a
// candidate snapshot, validates it, and commits it on success. On failure
// the previously committed snapshot is retained untouched.
func (s *Synchronizer) SyncFromComponents() SyncResult {
	candidate := s.collect()
	res := SyncResult{Validation: Result{Valid: true}}

	if s.cfg.ValidateOnSync {
		res.Validation = s.validator.Validate(candidate)
		if !res.Validation.Valid && s.autoCorrect {
			corrected, corrections := s.validator.AutoCorrect(candidate)
			if len(corrections) > 0 {
				candidate = corrected
				res.Corrections = corrections
				if s.onCorrected != nil {
					s.onCorrected(corrections)
				}
				res.Validation = s.validator.Validate(candidate)
			}
		}
		if !res.Validation.Valid {
			slog.Warn("snapshot sync aborted",
				"critical_issues", res.Validation.CriticalCount(),
				"dirty_reason", s.lastDirty)
			if s.onValidationFailed != nil {
				s.onValidationFailed(res.Validation)
			}
			res.OK = false
			res.Version = s.version
			return res
		}
	}

	s.committed = candidate
	s.version++
	s.dirty = false
	s.lastSync = s.clock
	res.OK = true
	res.Version = s.version
	return res
}

// SyncToComponents validates an externally supplied snapshot and pushes it
// into the live components. An invalid snapshot aborts with no mutation.
func (s *Synchronizer) SyncToComponents(snap Snapshot) SyncResult {
	res := SyncResult{Validation: Result{Valid: true}}

	res.Validation = s.validator.Validate(snap)
	if !res.Validation.Valid && s.autoCorrect {
		corrected, corrections := s.validator.AutoCorrect(snap)
		if len(corrections) > 0 {
			snap = corrected
			res.Corrections = corrections
			if s.onCorrected != nil {
				s.onCorrected(corrections)
			}
			res.Validation = s.validator.Validate(snap)
		}
	}
	if !res.Validation.Valid {
		if s.onValidationFailed != nil {
			s.onValidationFailed(res.Validation)
		}
		res.OK = false
		res.Version = s.version
		return res
	}

	s.push(snap)
	s.committed = snap
	s.version++
	s.dirty = false
	s.lastSync = s.clock
	res.OK = true
	res.Version = s.version
	return res
}

// Export serializes the committed snapshot to the exchange format.
func (s *Synchronizer) Export() (string, error) {
	return Export(s.committed)
}

// ImportAndSync parses an exchange payload and pushes it into the
// components. Malformed input fails without touching the committed snapshot.
func (s *Synchronizer) ImportAndSync(payload string) (SyncResult, error) {
	snap, err := Import(payload)
	if err != nil {
		return SyncResult{Version: s.version}, err
	}
	return s.SyncToComponents(snap), nil
}

// Committed returns the last committed snapshot.
func (s *Synchronizer) Committed() Snapshot { return s.committed }

// Version returns the monotonically increasing sync version.
func (s *Synchronizer) Version() uint64 { return s.version }

// Dirty reports whether live state has changed since the last commit.
func (s *Synchronizer) Dirty() bool { return s.dirty }

// collect pulls every component's current values into a flat snapshot.
func (s *Synchronizer) collect() Snapshot {
	id := s.comps.Identity
	st := s.comps.State
	rm := s.comps.Resource
	gp := s.comps.Growth
	hv := s.comps.Harvest

	phys := st.Physical()
	vit := st.Vitality()
	bio := gp.BiomassPool()
	wStart, wEnd := hv.Window()

	return Snapshot{
		ID:         id.ID,
		Name:       id.Name,
		StrainID:   id.StrainID,
		GenotypeID: id.GenotypeID,
		CreatedAt:  id.CreatedAt,
		ParentID:   id.ParentID,
		Generation: id.Generation,

		Stage:            st.Stage().String(),
		AgeDays:          st.AgeDays(),
		DaysInStage:      st.DaysInStage(),
		Position:         st.Position(),
		Height:           phys.Height,
		Width:            phys.Width,
		LeafArea:         phys.LeafArea,
		RootMassFraction: phys.RootMassFraction,

		OverallHealth:  vit.Health,
		Vigor:          vit.Vigor,
		StressLevel:    vit.Stress,
		ImmuneResponse: vit.ImmuneResponse,
		Maturity:       vit.Maturity,

		WaterLevel:    rm.WaterLevel(),
		NutrientLevel: rm.NutrientLevel(),
		EnergyLevel:   rm.EnergyLevel(),
		Nutrients:     rm.NutrientLevels(),
		LastWatering:  rm.LastWatering(),
		LastFeeding:   rm.LastFeeding(),
		LastTraining:  rm.LastTraining(),

		GrowthProgress: gp.Progress(),
		DailyRate:      gp.DailyRate(),
		BiomassTotal:   bio.Total(),
		BiomassRoot:    bio.Root,
		BiomassLeaf:    bio.Leaf,
		BiomassStem:    bio.Stem,
		GeneticVigor:   gp.Vigor(),
		MaxHeight:      gp.MaxHeight(),
		MaxWidth:       gp.MaxWidth(),

		Readiness:        hv.Readiness(),
		EstimatedYield:   hv.EstimatedYield(),
		EstimatedPotency: hv.EstimatedPotency(),
		OptimalDay:       hv.OptimalDay(),
		WindowStart:      wStart,
		WindowEnd:        wEnd,
		Harvested:        hv.Harvested(),
	}
}

// push writes a validated snapshot into the live components.
func (s *Synchronizer) push(snap Snapshot) {
	stage, _ := plant.ParseStage(snap.Stage) // validated upstream

	s.comps.State.Restore(stage, snap.AgeDays, snap.DaysInStage, snap.Position,
		plant.Physical{
			Height:           snap.Height,
			Width:            snap.Width,
			LeafArea:         snap.LeafArea,
			RootMassFraction: snap.RootMassFraction,
		},
		plant.Vitality{
			Health:         snap.OverallHealth,
			Vigor:          snap.Vigor,
			Stress:         snap.StressLevel,
			ImmuneResponse: snap.ImmuneResponse,
			Maturity:       snap.Maturity,
		})

	s.comps.Resource.Restore(snap.WaterLevel, snap.EnergyLevel, snap.Nutrients,
		snap.LastWatering, snap.LastFeeding, snap.LastTraining)

	s.comps.Growth.Restore(snap.GrowthProgress, snap.DailyRate,
		environ.Biomass{Root: snap.BiomassRoot, Leaf: snap.BiomassLeaf, Stem: snap.BiomassStem},
		snap.GeneticVigor, snap.MaxHeight, snap.MaxWidth)

	s.comps.Harvest.Restore(snap.Readiness, snap.EstimatedYield, snap.EstimatedPotency,
		snap.OptimalDay, snap.WindowStart, snap.WindowEnd, snap.Harvested)
}
