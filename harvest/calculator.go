// Package harvest estimates harvest readiness, yield and potency, and
// executes the one-shot harvest transaction. Calculators are total
// functions; impossible inputs clamp instead of erroring.
package harvest

import (
	"math/rand"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/plant"
)

// Factors are the per-indicator readiness components.
type Factors struct {
	Trichome float64
	Pistil   float64
	Calyx    float64
}

// Calculator evaluates readiness and quality from plant metrics.
type Calculator struct {
	cfg config.HarvestConfig
	rng *rand.Rand
}

// NewCalculator creates a calculator. The rng drives the potency quality
// variance only.
func NewCalculator(cfg config.HarvestConfig, rng *rand.Rand) *Calculator {
	return &Calculator{cfg: cfg, rng: rng}
}

// ReadinessFactors derives the trichome/pistil/calyx indicators. Each is an
// age-beyond-flowering ramp shaped by maturity, biomass or health.
func (c *Calculator) ReadinessFactors(ageDays, maturity, biomassTotal, health float64) Factors {
	beyond := ageDays - c.cfg.MinFloweringAge
	if beyond < 0 {
		beyond = 0
	}
	// Trichomes cloud over roughly three weeks past flowering onset.
	trichomeRamp := plant.Clamp01(beyond / 21)
	// Pistils brown faster, over about two weeks.
	pistilRamp := plant.Clamp01(beyond / 14)
	// Calyces need mass to swell; 150 g of dry biomass saturates the factor.
	massFactor := plant.Clamp01(biomassTotal / 150)

	return Factors{
		Trichome: trichomeRamp * (0.5 + 0.5*maturity),
		Pistil:   pistilRamp * maturity,
		Calyx:    (0.3 + 0.7*maturity) * massFactor * plant.Clamp01(0.5+0.5*health),
	}
}

// OverallReadiness combines the trichome indicator with maturity and health
// using the configured weights.
func (c *Calculator) OverallReadiness(f Factors, maturity, health float64) float64 {
	return plant.Clamp01(f.Trichome*c.cfg.TrichomeWeight +
		maturity*c.cfg.MaturityWeight +
		health*c.cfg.HealthWeight)
}

// IsReady reports whether a readiness score clears the configured threshold.
func (c *Calculator) IsReady(readiness float64) bool {
	return readiness >= c.cfg.ReadinessThreshold
}

// MaturityPenalty scales yield by distance from the optimal maturity band:
// flat 1.0 inside [MaturityOptimalLow, 1.0], linearly reduced to a floor of
// MaturityUnderFloor below the band, and degraded toward MaturityOverFloor
// for over-ripeness past 1.0.
func (c *Calculator) MaturityPenalty(maturity float64) float64 {
	lo := c.cfg.MaturityOptimalLow
	switch {
	case maturity < lo:
		frac := 0.0
		if lo > 0 {
			frac = maturity / lo
		}
		return c.cfg.MaturityUnderFloor + (1-c.cfg.MaturityUnderFloor)*frac
	case maturity <= 1.0:
		return 1.0
	default:
		over := maturity - 1.0
		pen := 1.0 - over*2
		if pen < c.cfg.MaturityOverFloor {
			pen = c.cfg.MaturityOverFloor
		}
		return pen
	}
}

// EstimateYield returns the expected dry yield in grams.
func (c *Calculator) EstimateYield(biomassTotal, health, maturity, envMod, geneticMod, careMod float64) float64 {
	y := biomassTotal * c.cfg.BaseYieldFraction * envMod * geneticMod * careMod * health
	return y * c.MaturityPenalty(maturity)
}

// EstimatePotency returns the expected potency fraction. The maturity bonus
// is earned only above MaturityOptimalLow, peaking in the last tenth of the
// maturity range; a small random quality variance is folded in.
func (c *Calculator) EstimatePotency(maturity, health float64) float64 {
	p := c.cfg.PotencyBase
	if maturity > c.cfg.MaturityOptimalLow {
		span := 1.0 - c.cfg.MaturityOptimalLow
		peak := plant.Clamp01((maturity - c.cfg.MaturityOptimalLow) / (span * 0.5))
		p += c.cfg.PotencyMaturityBonus * peak
	}
	p += c.cfg.PotencyHealthBonus * health
	p += (c.rng.Float64()*2 - 1) * c.cfg.PotencyVariance
	return plant.Clamp(p, c.cfg.PotencyMin, c.cfg.PotencyMax)
}

// DaysToOptimal estimates the days until optimal harvest: the remaining
// maturity gap at nominal speed, plus any days until the minimum flowering
// age is reached.
func (c *Calculator) DaysToOptimal(ageDays, maturity float64) float64 {
	gap := plant.Clamp01(1 - maturity)
	days := gap * c.cfg.MaturityDaysSpan
	if wait := c.cfg.MinFloweringAge - ageDays; wait > 0 {
		days += wait
	}
	return days
}

// Window returns the optimal harvest day and its window, centered on the
// optimal day with the configured full width.
func (c *Calculator) Window(nowDay, ageDays, maturity float64) (optimal, start, end float64) {
	optimal = nowDay + c.DaysToOptimal(ageDays, maturity)
	half := c.cfg.WindowDays / 2
	return optimal, optimal - half, optimal + half
}

// ActualYield applies the execution-time readiness discount with the
// configured floor.
func (c *Calculator) ActualYield(estimated, readiness float64) float64 {
	d := readiness
	if d < c.cfg.ActualYieldFloor {
		d = c.cfg.ActualYieldFloor
	}
	return estimated * plant.Clamp01(d)
}

// ActualPotency applies the execution-time readiness discount with the
// configured floor.
func (c *Calculator) ActualPotency(estimated, readiness float64) float64 {
	d := readiness
	if d < c.cfg.ActualPotencyFloor {
		d = c.cfg.ActualPotencyFloor
	}
	return estimated * plant.Clamp01(d)
}

// ExecutionGrade bumps the base readiness grade by yield and potency
// bonuses, clamped to the grade range.
func (c *Calculator) ExecutionGrade(readiness, actualYield, actualPotency float64) Grade {
	g := GradeFor(readiness)
	bonus := 0
	if actualYield >= 100 {
		bonus++
	}
	if actualPotency >= 0.25 {
		bonus++
	}
	return g.Bump(bonus)
}
