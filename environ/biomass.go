package environ

import (
	"math"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/plant"
)

// Biomass is a root/leaf/stem decomposition of dry mass in grams. Total is
// always derived from the components, so the sum invariant holds by
// construction.
type Biomass struct {
	Root float64 `json:"root"`
	Leaf float64 `json:"leaf"`
	Stem float64 `json:"stem"`
}

// Total returns the summed biomass.
func (b Biomass) Total() float64 {
	return b.Root + b.Leaf + b.Stem
}

// Add returns the component-wise sum.
func (b Biomass) Add(o Biomass) Biomass {
	return Biomass{Root: b.Root + o.Root, Leaf: b.Leaf + o.Leaf, Stem: b.Stem + o.Stem}
}

// RootFraction returns the root share of the total, or 0 for an empty pool.
func (b Biomass) RootFraction() float64 {
	t := b.Total()
	if t <= 0 {
		return 0
	}
	return b.Root / t
}

// Distributor splits daily biomass gain across tissues with
// progress-dependent target ratios. Per-tissue multipliers self-adjust on a
// weekly cadence toward whichever tissue is under-represented relative to
// its current target.
type Distributor struct {
	cfg config.BiomassConfig

	rootMult float64
	leafMult float64
	stemMult float64

	sinceAdjust float64 // days since the last multiplier adjustment
}

// NewDistributor creates a distributor with neutral multipliers.
func NewDistributor(cfg config.BiomassConfig) *Distributor {
	return &Distributor{cfg: cfg, rootMult: 1, leafMult: 1, stemMult: 1}
}

// targetRatios returns the root/leaf/stem target shares at a given progress.
// Root allocation declines linearly over the cycle; leaf allocation peaks at
// mid-cycle; stem takes the remainder.
func (d *Distributor) targetRatios(progress float64) (root, leaf, stem float64) {
	p := plant.Clamp01(progress)
	root = d.cfg.RootRatioStart + (d.cfg.RootRatioEnd-d.cfg.RootRatioStart)*p
	peakedness := 1 - 2*math.Abs(p-0.5)
	leaf = d.cfg.LeafRatioBase + (d.cfg.LeafRatioPeak-d.cfg.LeafRatioBase)*peakedness
	stem = 1 - root - leaf
	if stem < 0 {
		stem = 0
	}
	return root, leaf, stem
}

// Distribute splits dailyGain into a Biomass increment using the target
// ratios at progress scaled by the current multipliers. The weighted shares
// are renormalized so the increment always sums to dailyGain.
func (d *Distributor) Distribute(dailyGain, progress float64) Biomass {
	if dailyGain <= 0 {
		return Biomass{}
	}
	root, leaf, stem := d.targetRatios(progress)
	wr := root * d.rootMult
	wl := leaf * d.leafMult
	ws := stem * d.stemMult
	sum := wr + wl + ws
	if sum <= 0 {
		// Degenerate multipliers; fall back to raw ratios.
		wr, wl, ws = root, leaf, stem
		sum = wr + wl + ws
		if sum <= 0 {
			return Biomass{Stem: dailyGain}
		}
	}
	return Biomass{
		Root: dailyGain * wr / sum,
		Leaf: dailyGain * wl / sum,
		Stem: dailyGain * ws / sum,
	}
}

// Update advances the adjustment clock and, once per configured period,
// nudges each multiplier toward the tissue whose accumulated share trails
// its current target.
func (d *Distributor) Update(deltaDays, progress float64, accumulated Biomass) {
	d.sinceAdjust += deltaDays
	if d.sinceAdjust < d.cfg.AdjustPeriodDays {
		return
	}
	d.sinceAdjust = 0

	total := accumulated.Total()
	if total <= 0 {
		return
	}

	root, leaf, stem := d.targetRatios(progress)
	d.rootMult = d.nudge(d.rootMult, accumulated.Root/total, root)
	d.leafMult = d.nudge(d.leafMult, accumulated.Leaf/total, leaf)
	d.stemMult = d.nudge(d.stemMult, accumulated.Stem/total, stem)
}

func (d *Distributor) nudge(mult, actual, target float64) float64 {
	switch {
	case actual < target:
		mult += d.cfg.AdjustStep
	case actual > target:
		mult -= d.cfg.AdjustStep
	}
	return plant.Clamp(mult, d.cfg.MultiplierMin, d.cfg.MultiplierMax)
}

// Multipliers returns the current per-tissue growth-rate multipliers.
func (d *Distributor) Multipliers() (root, leaf, stem float64) {
	return d.rootMult, d.leafMult, d.stemMult
}

// leafAreaShape is the stage-shaped multiplier for leaf area: ramps up from
// establishment, peaks near flowering onset, and eases down as leaves senesce.
var leafAreaShapeProgress = []float64{0.0, 0.3, 0.6, 1.0}
var leafAreaShapeValue = []float64{0.6, 1.0, 1.15, 0.9}

// LeafArea converts leaf mass to projected leaf area at a given progress.
func LeafArea(leafMass, progress float64, cfg config.BiomassConfig) float64 {
	if leafMass <= 0 {
		return 0
	}
	return leafMass * cfg.SpecificLeafArea * lerpTable(leafAreaShapeProgress, leafAreaShapeValue, plant.Clamp01(progress))
}

// lerpTable linearly interpolates y(x) over a small fixed table, clamping to
// the endpoints outside the domain.
func lerpTable(xs, ys []float64, x float64) float64 {
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
