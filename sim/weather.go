package sim

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/environ"
	"github.com/pthm-cable/cultivar/plant"
)

// Weather produces daily environmental conditions from coherent noise around
// the configured baselines, so multi-day runs see smooth, plausible drift
// rather than uniform randomness.
type Weather struct {
	cfg   config.WeatherConfig
	noise opensimplex.Noise
}

// NewWeather creates a deterministic weather driver for a seed.
func NewWeather(cfg config.WeatherConfig, seed int64) *Weather {
	return &Weather{cfg: cfg, noise: opensimplex.New(seed)}
}

// ConditionsAt samples the conditions for a sim-day. The three channels use
// separated noise rows so they drift independently.
func (w *Weather) ConditionsAt(day float64) environ.Conditions {
	x := day * w.cfg.NoiseScale
	return environ.Conditions{
		LightPPFD: maxf(0, w.cfg.BaselineLight+w.cfg.LightSwing*w.noise.Eval2(x, 0.0)),
		TempC:     w.cfg.BaselineTemp + w.cfg.TempSwing*w.noise.Eval2(x, 37.7),
		Humidity:  plant.Clamp(w.cfg.BaselineHumidity+w.cfg.HumiditySwing*w.noise.Eval2(x, 91.3), 0, 100),
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
