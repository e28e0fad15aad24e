// Package environ provides the environmental response and biomass
// distribution calculators. All functions are total: out-of-range inputs
// clamp to curve floors instead of signaling errors.
package environ

import (
	"fmt"

	"gonum.org/v1/gonum/interp"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/plant"
)

// Conditions is a single reading of the growing environment.
type Conditions struct {
	LightPPFD float64 // Photosynthetic photon flux density, µmol/m²/s
	TempC     float64 // Air temperature, °C
	Humidity  float64 // Relative humidity, %
}

// Model evaluates environmental optimality. The per-factor curves are
// piecewise linear: a low floor below the band, flat 1.0 inside it, and a
// ramp down to a second floor above it. Outside the fitted range the curves
// hold their endpoint values.
type Model struct {
	cfg      config.EnvironmentConfig
	light    interp.PiecewiseLinear
	temp     interp.PiecewiseLinear
	humidity interp.PiecewiseLinear
}

// NewModel builds a model from the configured optimality bands.
func NewModel(cfg config.EnvironmentConfig) (*Model, error) {
	m := &Model{cfg: cfg}
	if err := fitBand(&m.light, cfg.Light); err != nil {
		return nil, fmt.Errorf("light band: %w", err)
	}
	if err := fitBand(&m.temp, cfg.Temp); err != nil {
		return nil, fmt.Errorf("temp band: %w", err)
	}
	if err := fitBand(&m.humidity, cfg.Humidity); err != nil {
		return nil, fmt.Errorf("humidity band: %w", err)
	}
	return m, nil
}

func fitBand(pl *interp.PiecewiseLinear, b config.BandConfig) error {
	xs := []float64{b.Min, b.OptimalLow, b.OptimalHigh, b.Max}
	ys := []float64{b.FloorBelow, 1.0, 1.0, b.FloorAbove}
	return pl.Fit(xs, ys)
}

// LightOptimality returns the light response factor for a PPFD reading.
func (m *Model) LightOptimality(ppfd float64) float64 {
	return m.light.Predict(ppfd)
}

// TempOptimality returns the temperature response factor.
func (m *Model) TempOptimality(tempC float64) float64 {
	return m.temp.Predict(tempC)
}

// HumidityOptimality returns the humidity response factor.
func (m *Model) HumidityOptimality(humidity float64) float64 {
	return m.humidity.Predict(humidity)
}

// Factor combines the three responses into one growth modifier, weighted per
// config and clamped to [FactorMin, FactorMax].
func (m *Model) Factor(c Conditions) float64 {
	f := m.LightOptimality(c.LightPPFD)*m.cfg.LightWeight +
		m.TempOptimality(c.TempC)*m.cfg.TempWeight +
		m.HumidityOptimality(c.Humidity)*m.cfg.HumidityWeight
	return plant.Clamp(f, m.cfg.FactorMin, m.cfg.FactorMax)
}
