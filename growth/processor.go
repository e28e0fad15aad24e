// Package growth advances the plant's growth progress each tick and derives
// its morphology. The processor recommends stage transitions from age and
// progress thresholds but never commits them; stage state belongs to the
// state coordinator.
package growth

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/environ"
	"github.com/pthm-cable/cultivar/plant"
)

// StateReader is the slice of coordinator state the processor reads.
type StateReader interface {
	Stage() plant.GrowthStage
	AgeDays() float64
	Vitality() plant.Vitality
}

// ResourceReader is the slice of resource state the processor reads.
type ResourceReader interface {
	Overall() float64
}

// AnomalyKind tags a growth anomaly warning.
type AnomalyKind uint8

const (
	AnomalyLowModifier AnomalyKind = iota
	AnomalyHeightRegression
	AnomalyBiomassRegression
)

var anomalyNames = [...]string{"low_modifier", "height_regression", "biomass_regression"}

func (k AnomalyKind) String() string {
	if int(k) < len(anomalyNames) {
		return anomalyNames[k]
	}
	return "unknown"
}

// Anomaly is a non-fatal growth warning.
type Anomaly struct {
	Kind  AnomalyKind
	Value float64 // the modifier or regression slope that tripped the check
}

// Report is the outcome of one growth tick.
type Report struct {
	EnvFactor     float64
	TotalModifier float64
	Progress      float64
	DailyRate     float64
	Height        float64
	Width         float64
	LeafArea      float64
	Biomass       environ.Biomass
	Maturity      float64
	Anomalies     []Anomaly

	// Recommended is the stage the thresholds point at, when it differs
	// from the current stage.
	Recommended    plant.GrowthStage
	HasRecommended bool
}

// Processor is the sole writer of growth and biomass fields.
type Processor struct {
	cfg        config.GrowthConfig
	biomassCfg config.BiomassConfig
	stagesCfg  config.StagesConfig

	env  *environ.Model
	dist *environ.Distributor
	st   StateReader
	res  ResourceReader
	rng  *rand.Rand

	progress  float64
	dailyRate float64
	biomass   environ.Biomass
	vigor     float64 // genetic vigor modifier, [VigorMin, VigorMax]
	maxHeight float64
	maxWidth  float64

	clock       float64
	sinceWeekly float64
	history     *ring

	onProgressChanged func(old, new float64)
	onAnomaly         func(Anomaly)
}

// NewProcessor wires a processor to the components it reads.
func NewProcessor(cfg *config.Config, env *environ.Model, st StateReader, res ResourceReader, rng *rand.Rand) *Processor {
	return &Processor{
		cfg:        cfg.Growth,
		biomassCfg: cfg.Biomass,
		stagesCfg:  cfg.Stages,
		env:        env,
		dist:       environ.NewDistributor(cfg.Biomass),
		st:         st,
		res:        res,
		rng:        rng,
		dailyRate:  cfg.Growth.BaseDailyRate,
		vigor:      1.0,
		maxHeight:  cfg.Growth.MaxHeight,
		maxWidth:   cfg.Growth.MaxWidth,
		history:    newRing(cfg.Growth.HistorySize),
	}
}

// OnProgressChanged registers the growth-progress callback.
func (p *Processor) OnProgressChanged(fn func(old, new float64)) { p.onProgressChanged = fn }

// OnAnomaly registers the anomaly warning callback.
func (p *Processor) OnAnomaly(fn func(Anomaly)) { p.onAnomaly = fn }

// Tick advances growth by deltaDays under the given conditions.
func (p *Processor) Tick(deltaDays float64, cond environ.Conditions) Report {
	p.clock += deltaDays
	p.sinceWeekly += deltaDays

	envFactor := p.env.Factor(cond)

	// Weekly: re-derive the daily rate from current progress, drift genetic
	// vigor, and let max height wander with it.
	if p.sinceWeekly >= 7 {
		p.sinceWeekly = 0
		p.rederiveWeekly()
	}

	vit := p.st.Vitality()
	resFactor := p.res.Overall()
	total := envFactor * vit.Health * resFactor * p.vigor

	oldProgress := p.progress
	p.progress = plant.Clamp01(p.progress + p.dailyRate*total*p.cfg.ProgressScale*deltaDays)
	if p.onProgressChanged != nil && p.progress != oldProgress {
		p.onProgressChanged(oldProgress, p.progress)
	}

	// Biomass accumulation and redistribution.
	gain := p.cfg.BiomassPerDay * total * deltaDays
	p.biomass = p.biomass.Add(p.dist.Distribute(gain, p.progress))
	p.dist.Update(deltaDays, p.progress, p.biomass)

	rep := Report{
		EnvFactor:     envFactor,
		TotalModifier: total,
		Progress:      p.progress,
		DailyRate:     p.dailyRate,
		Height:        p.Height(),
		Width:         p.Width(),
		LeafArea:      environ.LeafArea(p.biomass.Leaf, p.progress, p.biomassCfg),
		Biomass:       p.biomass,
		Maturity:      p.maturity(),
	}

	p.history.push(Measurement{
		Day:      p.clock,
		Progress: p.progress,
		Height:   rep.Height,
		Biomass:  p.biomass.Total(),
		Modifier: total,
	})
	rep.Anomalies = p.detectAnomalies(total)

	if next, ok := p.recommendStage(); ok {
		rep.Recommended = next
		rep.HasRecommended = true
	}
	return rep
}

// rederiveWeekly updates rate, vigor and max-height from current state.
func (p *Processor) rederiveWeekly() {
	p.dailyRate = p.cfg.BaseDailyRate * lerpTable(p.cfg.RateBandProgress, p.cfg.RateBandValue, p.progress)

	drift := (p.rng.Float64()*2 - 1) * p.cfg.VigorDriftPerWeek
	p.vigor = plant.Clamp(p.vigor+drift, p.cfg.VigorMin, p.cfg.VigorMax)

	// Max height tracks vigor slowly: vigorous plants stretch, weak ones
	// stay squat. Drift eases off as the plant ages out of structural growth.
	ageDamp := math.Max(0, 1-p.st.AgeDays()/120)
	p.maxHeight = plant.Clamp(p.maxHeight*(1+(p.vigor-1)*0.01*ageDamp),
		p.cfg.MaxHeight*0.5, p.cfg.MaxHeight*1.5)
}

// Height derives height from progress via a logistic curve, steepest around
// mid-cycle.
func (p *Processor) Height() float64 {
	return p.maxHeight / (1 + math.Exp(-p.cfg.HeightSteepness*(p.progress-0.5)))
}

// Width derives width from progress via a power curve.
func (p *Processor) Width() float64 {
	return p.maxWidth * math.Pow(p.progress, p.cfg.WidthExponent)
}

// maturity maps progress beyond flowering onset into [0,1].
func (p *Processor) maturity() float64 {
	onset := p.stagesCfg.FloweringProgress
	if p.progress <= onset || onset >= 1 {
		return 0
	}
	return plant.Clamp01((p.progress - onset) / (1 - onset))
}

// detectAnomalies runs the low-modifier check and, with enough history, the
// height/biomass regression checks. Anomalies warn and signal; they never
// interrupt the tick.
func (p *Processor) detectAnomalies(total float64) []Anomaly {
	var out []Anomaly
	if total < p.cfg.AnomalyMinModifier {
		out = append(out, Anomaly{Kind: AnomalyLowModifier, Value: total})
	}
	if hs, bs, ok := p.history.slopes(p.cfg.AnomalyMinSamples); ok {
		if hs < p.cfg.AnomalyHeightSlope {
			out = append(out, Anomaly{Kind: AnomalyHeightRegression, Value: hs})
		}
		if bs < p.cfg.AnomalyBiomassSlope {
			out = append(out, Anomaly{Kind: AnomalyBiomassRegression, Value: bs})
		}
	}
	for _, a := range out {
		slog.Warn("growth anomaly", "kind", a.Kind.String(), "value", a.Value, "day", p.clock)
		if p.onAnomaly != nil {
			p.onAnomaly(a)
		}
	}
	return out
}

// recommendStage checks whether age or progress qualifies the plant for the
// next forward stage. Dormant plants get no recommendation.
func (p *Processor) recommendStage() (plant.GrowthStage, bool) {
	stage := p.st.Stage()
	next, ok := stage.Next()
	if !ok || stage == plant.StageDormant {
		return stage, false
	}

	age := p.st.AgeDays()
	var ageThresh, progThresh float64
	switch next {
	case plant.StageVegetative:
		ageThresh, progThresh = p.stagesCfg.VegetativeAge, p.stagesCfg.VegetativeProgress
	case plant.StageFlowering:
		ageThresh, progThresh = p.stagesCfg.FloweringAge, p.stagesCfg.FloweringProgress
	case plant.StageMature:
		ageThresh, progThresh = p.stagesCfg.MatureAge, p.stagesCfg.MatureProgress
	default:
		return stage, false
	}
	if age >= ageThresh || p.progress >= progThresh {
		return next, true
	}
	return stage, false
}

// Progress returns growth progress in [0,1].
func (p *Processor) Progress() float64 { return p.progress }

// DailyRate returns the current re-derived daily growth rate.
func (p *Processor) DailyRate() float64 { return p.dailyRate }

// BiomassPool returns the accumulated biomass decomposition.
func (p *Processor) BiomassPool() environ.Biomass { return p.biomass }

// Vigor returns the genetic vigor modifier.
func (p *Processor) Vigor() float64 { return p.vigor }

// MaxHeight returns the current computed max height in meters.
func (p *Processor) MaxHeight() float64 { return p.maxHeight }

// MaxWidth returns the computed max width in meters.
func (p *Processor) MaxWidth() float64 { return p.maxWidth }

// History returns the buffered growth measurements, oldest first.
func (p *Processor) History() []Measurement { return p.history.ordered() }

// Restore overwrites growth state from a snapshot. The synchronizer
// validates ranges before pushing.
func (p *Processor) Restore(progress, dailyRate float64, biomass environ.Biomass, vigor, maxHeight, maxWidth float64) {
	p.progress = plant.Clamp01(progress)
	if dailyRate > 0 {
		p.dailyRate = dailyRate
	}
	p.biomass = biomass
	p.vigor = plant.Clamp(vigor, p.cfg.VigorMin, p.cfg.VigorMax)
	if maxHeight > 0 {
		p.maxHeight = maxHeight
	}
	if maxWidth > 0 {
		p.maxWidth = maxWidth
	}
}

// lerpTable linearly interpolates y(x) over a fixed band table, clamping to
// the endpoints outside the domain.
func lerpTable(xs, ys []float64, x float64) float64 {
	if len(xs) == 0 || len(xs) != len(ys) {
		return 1
	}
	if x <= xs[0] {
		return ys[0]
	}
	last := len(xs) - 1
	if x >= xs[last] {
		return ys[last]
	}
	for i := 1; i <= last; i++ {
		if x <= xs[i] {
			t := (x - xs[i-1]) / (xs[i] - xs[i-1])
			return ys[i-1] + t*(ys[i]-ys[i-1])
		}
	}
	return ys[last]
}
