package harvest

import (
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/environ"
	"github.com/pthm-cable/cultivar/plant"
)

// StateReader is the slice of coordinator state the operator reads.
type StateReader interface {
	Stage() plant.GrowthStage
	AgeDays() float64
	Vitality() plant.Vitality
}

// GrowthReader is the slice of growth state the operator reads.
type GrowthReader interface {
	BiomassPool() environ.Biomass
	Vigor() float64
}

// ResourceReader is the slice of resource state the operator reads.
type ResourceReader interface {
	Overall() float64
}

// Attempt is one executed harvest, kept in a bounded history.
type Attempt struct {
	Day       float64 `csv:"day"`
	Method    string  `csv:"method"`
	Readiness float64 `csv:"readiness"`
	Yield     float64 `csv:"yield_g"`
	Potency   float64 `csv:"potency"`
	Grade     string  `csv:"grade"`
}

// Report is the side-effect-free readiness assessment.
type Report struct {
	Readiness        float64
	IsReady          bool
	Factors          Factors
	EstimatedYield   float64
	EstimatedPotency float64
	OptimalDay       float64
	WindowStart      float64
	WindowEnd        float64
	DaysToOptimal    float64
	Grade            Grade
	Recommendations  []string
}

// Operator is the sole writer of harvest fields. It reassesses readiness
// each tick and executes the harvest transaction exactly once.
type Operator struct {
	cfg  config.HarvestConfig
	calc *Calculator

	st  StateReader
	gr  GrowthReader
	res ResourceReader

	clock     float64
	envFactor float64 // latest environmental factor, supplied by the host tick

	readiness        float64
	factors          Factors
	estimatedYield   float64
	estimatedPotency float64
	optimalDay       float64
	windowStart      float64
	windowEnd        float64

	harvested bool
	history   []Attempt

	onCompleted func(Attempt)
}

// NewOperator wires an operator to the components it reads.
func NewOperator(cfg config.HarvestConfig, st StateReader, gr GrowthReader, res ResourceReader, rng *rand.Rand) *Operator {
	return &Operator{
		cfg:       cfg,
		calc:      NewCalculator(cfg, rng),
		st:        st,
		gr:        gr,
		res:       res,
		envFactor: 1.0,
	}
}

// OnCompleted registers the harvest-completed callback.
func (o *Operator) OnCompleted(fn func(Attempt)) { o.onCompleted = fn }

// Reassess advances the operator clock and recomputes readiness, estimates
// and the harvest window. A harvested plant is terminal: reassessment is a
// no-op.
func (o *Operator) Reassess(deltaDays, envFactor float64) {
	o.clock += deltaDays
	if o.harvested {
		return
	}
	o.envFactor = envFactor

	vit := o.st.Vitality()
	age := o.st.AgeDays()
	biomass := o.gr.BiomassPool().Total()

	o.factors = o.calc.ReadinessFactors(age, vit.Maturity, biomass, vit.Health)
	o.readiness = o.calc.OverallReadiness(o.factors, vit.Maturity, vit.Health)

	care := plant.Clamp(0.5+0.5*o.res.Overall(), 0.5, 1.0)
	genetic := plant.Clamp(o.gr.Vigor(), 0.5, 1.5)
	env := plant.Clamp(o.envFactor, 0.5, 1.2)
	o.estimatedYield = o.calc.EstimateYield(biomass, vit.Health, vit.Maturity, env, genetic, care)
	o.estimatedPotency = o.calc.EstimatePotency(vit.Maturity, vit.Health)
	o.optimalDay, o.windowStart, o.windowEnd = o.calc.Window(o.clock, age, vit.Maturity)
}

// CheckReadiness returns the current assessment without side effects.
func (o *Operator) CheckReadiness() Report {
	return Report{
		Readiness:        o.readiness,
		IsReady:          o.calc.IsReady(o.readiness),
		Factors:          o.factors,
		EstimatedYield:   o.estimatedYield,
		EstimatedPotency: o.estimatedPotency,
		OptimalDay:       o.optimalDay,
		WindowStart:      o.windowStart,
		WindowEnd:        o.windowEnd,
		DaysToOptimal:    o.calc.DaysToOptimal(o.st.AgeDays(), o.st.Vitality().Maturity),
		Grade:            GradeFor(o.readiness),
		Recommendations:  o.recommendations(),
	}
}

// Harvest executes the harvest transaction. Harvest is not gated on
// readiness; an early harvest simply pays the readiness discount on yield,
// potency and grade. A second call fails cleanly with no mutation.
func (o *Operator) Harvest(method string) plant.Result {
	if o.harvested {
		return plant.Fail("plant already harvested")
	}
	if method == "" {
		method = "manual"
	}

	actualYield := o.calc.ActualYield(o.estimatedYield, o.readiness)
	actualPotency := o.calc.ActualPotency(o.estimatedPotency, o.readiness)
	grade := o.calc.ExecutionGrade(o.readiness, actualYield, actualPotency)

	attempt := Attempt{
		Day:       o.clock,
		Method:    method,
		Readiness: o.readiness,
		Yield:     actualYield,
		Potency:   actualPotency,
		Grade:     grade.String(),
	}
	o.harvested = true
	o.recordAttempt(attempt)

	slog.Info("harvest completed",
		"method", method,
		"readiness", o.readiness,
		"yield_g", actualYield,
		"potency", actualPotency,
		"grade", grade.String())

	if o.onCompleted != nil {
		o.onCompleted(attempt)
	}

	return plant.Ok("harvested %.1f g at grade %s", actualYield, grade).
		With("yield_g", actualYield).
		With("potency", actualPotency).
		With("readiness", o.readiness).
		With("grade", float64(grade))
}

// recommendations produces post-harvest (or pre-harvest) husbandry hints.
func (o *Operator) recommendations() []string {
	var recs []string
	switch {
	case o.harvested:
		recs = append(recs, "dry slowly at 18-20°C and 55-60% humidity")
		if o.readiness >= o.cfg.ReadinessThreshold {
			recs = append(recs, "cure for at least 14 days for full potency")
		} else {
			recs = append(recs, "harvested early: expect reduced potency after cure")
		}
	case o.calc.IsReady(o.readiness):
		recs = append(recs, "harvest window open: flush nutrients and harvest")
	case o.readiness >= 0.6:
		recs = append(recs, "approaching readiness: begin pre-harvest flush")
	default:
		recs = append(recs, "not ready: continue normal feeding schedule")
	}
	return recs
}

// Readiness returns the last assessed readiness score.
func (o *Operator) Readiness() float64 { return o.readiness }

// EstimatedYield returns the last yield estimate in grams.
func (o *Operator) EstimatedYield() float64 { return o.estimatedYield }

// EstimatedPotency returns the last potency estimate.
func (o *Operator) EstimatedPotency() float64 { return o.estimatedPotency }

// OptimalDay returns the estimated optimal harvest sim-day.
func (o *Operator) OptimalDay() float64 { return o.optimalDay }

// Window returns the harvest window bounds in sim-days.
func (o *Operator) Window() (start, end float64) { return o.windowStart, o.windowEnd }

// Harvested reports whether the harvest transaction has executed.
func (o *Operator) Harvested() bool { return o.harvested }

// History returns the recorded harvest attempts, oldest first.
func (o *Operator) History() []Attempt {
	out := make([]Attempt, len(o.history))
	copy(out, o.history)
	return out
}

// Restore overwrites harvest state from a snapshot.
func (o *Operator) Restore(readiness, estimatedYield, estimatedPotency, optimalDay, windowStart, windowEnd float64, harvested bool) {
	o.readiness = plant.Clamp01(readiness)
	o.estimatedYield = maxf(0, estimatedYield)
	o.estimatedPotency = maxf(0, estimatedPotency)
	o.optimalDay = optimalDay
	o.windowStart = windowStart
	o.windowEnd = windowEnd
	o.harvested = harvested
}

func (o *Operator) recordAttempt(a Attempt) {
	o.history = append(o.history, a)
	if o.cfg.HistorySize > 0 && len(o.history) > o.cfg.HistorySize {
		o.history = o.history[len(o.history)-o.cfg.HistorySize:]
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
