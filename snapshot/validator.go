package snapshot

import (
	"fmt"
	"math"
	"time"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/plant"
)

// Severity classifies a validation issue. Only critical issues invalidate
// the snapshot as a whole.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

var severityNames = [...]string{"info", "warning", "critical"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "unknown"
}

// Issue is one validation finding.
type Issue struct {
	Field    string
	Severity Severity
	Message  string
}

// Result aggregates all findings of a validation pass. Every check runs;
// issues accumulate rather than short-circuit.
type Result struct {
	Valid  bool
	Issues []Issue
}

// CriticalCount returns the number of critical issues.
func (r Result) CriticalCount() int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// Correction records one auto-corrected field value.
type Correction struct {
	Field string
	Old   float64
	New   float64
}

// biomassTolerance bounds the acceptable drift between the stored biomass
// total and the component sum.
const biomassTolerance = 1e-6

// Validator runs the rule set over a snapshot.
type Validator struct {
	stages config.StagesConfig
	growth config.GrowthConfig

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewValidator creates a validator using the configured stage and growth
// parameters for the consistency rules.
func NewValidator(cfg *config.Config) *Validator {
	return &Validator{stages: cfg.Stages, growth: cfg.Growth, now: time.Now}
}

// fractional fields checked against [0,1].
type rangeRule struct {
	field string
	value func(*Snapshot) float64
	set   func(*Snapshot, float64)
	lo    float64
	hi    float64
}

func (v *Validator) rangeRules() []rangeRule {
	return []rangeRule{
		{"OverallHealth", func(s *Snapshot) float64 { return s.OverallHealth }, func(s *Snapshot, x float64) { s.OverallHealth = x }, 0, 1},
		{"Vigor", func(s *Snapshot) float64 { return s.Vigor }, func(s *Snapshot, x float64) { s.Vigor = x }, 0, 1},
		{"StressLevel", func(s *Snapshot) float64 { return s.StressLevel }, func(s *Snapshot, x float64) { s.StressLevel = x }, 0, 1},
		{"ImmuneResponse", func(s *Snapshot) float64 { return s.ImmuneResponse }, func(s *Snapshot, x float64) { s.ImmuneResponse = x }, 0, 1},
		{"Maturity", func(s *Snapshot) float64 { return s.Maturity }, func(s *Snapshot, x float64) { s.Maturity = x }, 0, 1},
		{"WaterLevel", func(s *Snapshot) float64 { return s.WaterLevel }, func(s *Snapshot, x float64) { s.WaterLevel = x }, 0, 1},
		{"NutrientLevel", func(s *Snapshot) float64 { return s.NutrientLevel }, func(s *Snapshot, x float64) { s.NutrientLevel = x }, 0, 1},
		{"EnergyLevel", func(s *Snapshot) float64 { return s.EnergyLevel }, func(s *Snapshot, x float64) { s.EnergyLevel = x }, 0, 1},
		{"Readiness", func(s *Snapshot) float64 { return s.Readiness }, func(s *Snapshot, x float64) { s.Readiness = x }, 0, 1},
		{"EstimatedPotency", func(s *Snapshot) float64 { return s.EstimatedPotency }, func(s *Snapshot, x float64) { s.EstimatedPotency = x }, 0, 1},
		{"RootMassFraction", func(s *Snapshot) float64 { return s.RootMassFraction }, func(s *Snapshot, x float64) { s.RootMassFraction = x }, 0, 1},
		{"GeneticVigor", func(s *Snapshot) float64 { return s.GeneticVigor }, func(s *Snapshot, x float64) { s.GeneticVigor = x }, v.growth.VigorMin, v.growth.VigorMax},
	}
}

// Validate runs every rule and accumulates the findings.
func (v *Validator) Validate(s Snapshot) Result {
	var issues []Issue

	// Identity checks.
	if s.ID == "" {
		issues = append(issues, Issue{"ID", SeverityCritical, "plant id is empty"})
	}
	if s.Name == "" {
		issues = append(issues, Issue{"Name", SeverityWarning, "display name is empty"})
	}
	if s.Generation < 1 {
		issues = append(issues, Issue{"Generation", SeverityCritical, "generation must be >= 1"})
	}
	if s.CreatedAt.After(v.now()) {
		issues = append(issues, Issue{"CreatedAt", SeverityWarning, "creation date is in the future"})
	}

	// Range checks.
	for _, r := range v.rangeRules() {
		val := r.value(&s)
		if math.IsNaN(val) || val < r.lo || val > r.hi {
			issues = append(issues, Issue{r.field, SeverityCritical,
				fmt.Sprintf("value %v outside [%v, %v]", val, r.lo, r.hi)})
		}
	}

	// Growth progress: [0,1] canonical, up to 2.0 tolerated for debug
	// overflow display, beyond that invalid.
	switch {
	case math.IsNaN(s.GrowthProgress) || s.GrowthProgress < 0 || s.GrowthProgress > 2:
		issues = append(issues, Issue{"GrowthProgress", SeverityCritical,
			fmt.Sprintf("value %v outside [0, 2]", s.GrowthProgress)})
	case s.GrowthProgress > 1:
		issues = append(issues, Issue{"GrowthProgress", SeverityWarning,
			fmt.Sprintf("value %v above canonical range [0, 1]", s.GrowthProgress)})
	}

	// Age consistency.
	if s.AgeDays < 0 {
		issues = append(issues, Issue{"AgeDays", SeverityCritical, "age is negative"})
	}
	if s.DaysInStage < 0 || s.DaysInStage > s.AgeDays {
		issues = append(issues, Issue{"DaysInStage", SeverityCritical,
			"days in stage exceeds age"})
	}

	// Biomass sum invariant.
	sum := s.BiomassRoot + s.BiomassLeaf + s.BiomassStem
	if math.Abs(sum-s.BiomassTotal) > biomassTolerance+1e-9*math.Abs(sum) {
		issues = append(issues, Issue{"BiomassTotal", SeverityCritical,
			fmt.Sprintf("total %v does not match component sum %v", s.BiomassTotal, sum)})
	}

	// Stage / logical consistency.
	issues = append(issues, v.stageIssues(s)...)

	if s.OverallHealth > 0.8 && s.StressLevel > 0.8 {
		issues = append(issues, Issue{"StressLevel", SeverityWarning,
			"high health with high stress is implausible"})
	}
	if s.Harvested && s.Readiness > 0 && s.Readiness < 0.2 {
		issues = append(issues, Issue{"Harvested", SeverityWarning,
			"harvested flag with near-zero readiness"})
	}

	critical := false
	for _, is := range issues {
		if is.Severity == SeverityCritical {
			critical = true
			break
		}
	}
	return Result{Valid: !critical, Issues: issues}
}

// stageIssues checks the stage string, minimum age per stage, and the
// height-vs-stage plausibility band.
func (v *Validator) stageIssues(s Snapshot) []Issue {
	var issues []Issue
	stage, ok := plant.ParseStage(s.Stage)
	if !ok {
		return append(issues, Issue{"Stage", SeverityCritical,
			fmt.Sprintf("unknown stage %q", s.Stage)})
	}

	var minAge float64
	switch stage {
	case plant.StageVegetative:
		minAge = v.stages.VegetativeAge
	case plant.StageFlowering:
		minAge = v.stages.FloweringAge
	case plant.StageMature:
		minAge = v.stages.MatureAge
	}
	// Half the threshold accounts for fast progress-driven transitions.
	if minAge > 0 && s.AgeDays < minAge/2 {
		issues = append(issues, Issue{"Stage", SeverityWarning,
			fmt.Sprintf("stage %s at age %.1f days is implausibly early", stage, s.AgeDays)})
	}

	// Expected height band per stage, generous at both ends.
	var lo, hi float64
	switch stage {
	case plant.StageSeedling:
		lo, hi = 0, 0.25
	case plant.StageVegetative:
		lo, hi = 0.0, 0.9
	case plant.StageFlowering:
		lo, hi = 0.1, 2.0
	case plant.StageMature:
		lo, hi = 0.2, 2.5
	default:
		lo, hi = 0, 3.0
	}
	if s.Height < lo || s.Height > hi {
		issues = append(issues, Issue{"Height", SeverityWarning,
			fmt.Sprintf("height %.2f m outside expected band [%.2f, %.2f] for stage %s",
				s.Height, lo, hi, stage)})
	}
	return issues
}

// AutoCorrect clamps out-of-range numeric fields to their valid bands and
// returns the corrected copy together with the list of corrections. The
// caller's snapshot is never mutated; corrections are a distinct non-fatal
// outcome, separate from validation failure.
func (v *Validator) AutoCorrect(s Snapshot) (Snapshot, []Correction) {
	var corrections []Correction

	for _, r := range v.rangeRules() {
		val := r.value(&s)
		if math.IsNaN(val) {
			continue // not correctable by clamping
		}
		clamped := plant.Clamp(val, r.lo, r.hi)
		if clamped != val {
			corrections = append(corrections, Correction{Field: r.field, Old: val, New: clamped})
			r.set(&s, clamped)
		}
	}

	if !math.IsNaN(s.GrowthProgress) {
		clamped := plant.Clamp(s.GrowthProgress, 0, 1)
		if clamped != s.GrowthProgress {
			corrections = append(corrections, Correction{Field: "GrowthProgress", Old: s.GrowthProgress, New: clamped})
			s.GrowthProgress = clamped
		}
	}

	if s.AgeDays < 0 {
		corrections = append(corrections, Correction{Field: "AgeDays", Old: s.AgeDays, New: 0})
		s.AgeDays = 0
	}
	if s.DaysInStage < 0 {
		corrections = append(corrections, Correction{Field: "DaysInStage", Old: s.DaysInStage, New: 0})
		s.DaysInStage = 0
	}
	if s.DaysInStage > s.AgeDays {
		corrections = append(corrections, Correction{Field: "DaysInStage", Old: s.DaysInStage, New: s.AgeDays})
		s.DaysInStage = s.AgeDays
	}

	sum := s.BiomassRoot + s.BiomassLeaf + s.BiomassStem
	if math.Abs(sum-s.BiomassTotal) > biomassTolerance {
		corrections = append(corrections, Correction{Field: "BiomassTotal", Old: s.BiomassTotal, New: sum})
		s.BiomassTotal = sum
	}

	return s, corrections
}
