// Package main fits the base daily growth rate so a well-tended plant under
// reference conditions reaches maturity at a target day.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/environ"
	"github.com/pthm-cable/cultivar/plant"
	"github.com/pthm-cable/cultivar/sim"
)

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	targetDay := flag.Float64("target-day", 90, "Day at which the plant should reach mature progress")
	seeds := flag.Int("seeds", 3, "Seeds averaged per evaluation")
	maxEvals := flag.Int("max-evals", 60, "Maximum objective evaluations")
	flag.Parse()

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			rate := denormalize(x[0])
			return evaluate(baseCfg, rate, *targetDay, evalSeeds)
		},
	}

	settings := &optimize.Settings{FuncEvaluations: *maxEvals}
	init := []float64{normalize(baseCfg.Growth.BaseDailyRate)}

	result, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	if err != nil {
		log.Fatalf("optimization failed: %v", err)
	}

	best := denormalize(result.X[0])
	fmt.Printf("base_daily_rate: %.5f (objective %.2f after %d evaluations)\n",
		best, result.F, result.Stats.FuncEvaluations)
	fmt.Printf("set growth.base_daily_rate: %.5f in your config to hit day %.0f\n",
		best, *targetDay)
}

// rateBounds keep the search in a sane band.
const (
	rateMin = 0.005
	rateMax = 0.06
)

func normalize(rate float64) float64 {
	return (rate - rateMin) / (rateMax - rateMin)
}

func denormalize(x float64) float64 {
	return rateMin + plant.Clamp01(x)*(rateMax-rateMin)
}

// evaluate runs the reference scenario for each seed and scores the squared
// distance between the mature-progress day and the target.
func evaluate(base *config.Config, rate, targetDay float64, seeds []int64) float64 {
	var total float64
	for _, seed := range seeds {
		cfg := *base
		cfg.Growth.BaseDailyRate = rate

		day, reached := matureDay(&cfg, seed, targetDay*2)
		if !reached {
			total += targetDay * targetDay // never matured: heavy penalty
			continue
		}
		diff := day - targetDay
		total += diff * diff
	}
	return total / float64(len(seeds))
}

// matureDay simulates a perfectly tended plant under baseline conditions and
// returns the day growth progress crosses the mature threshold.
func matureDay(cfg *config.Config, seed int64, maxDays float64) (float64, bool) {
	id := plant.NewIdentity("calibration", "reference", "reference-geno")
	p, err := sim.New(cfg, id, seed)
	if err != nil {
		log.Fatalf("failed to build plant: %v", err)
	}

	cond := environ.Conditions{
		LightPPFD: cfg.Sim.Weather.BaselineLight,
		TempC:     cfg.Sim.Weather.BaselineTemp,
		Humidity:  cfg.Sim.Weather.BaselineHumidity,
	}

	feed := make(map[string]float64, len(cfg.Resource.Nutrients))
	for _, n := range cfg.Resource.Nutrients {
		feed[n] = 0.2
	}

	for day := 0.0; day < maxDays; day += cfg.Sim.DeltaDays {
		p.Tick(cfg.Sim.DeltaDays, cond)
		p.Water(0.2)
		p.Feed(feed)

		if p.GetGrowthSummary().Progress >= cfg.Stages.MatureProgress {
			return p.Day(), true
		}
	}
	return math.NaN(), false
}
