// Package telemetry collects per-day run records and writes structured
// experiment output.
package telemetry

import (
	"github.com/pthm-cable/cultivar/sim"
)

// DayStats is one per-day observation of a plant, shaped for CSV output.
type DayStats struct {
	Day       float64 `csv:"day"`
	Stage     string  `csv:"stage"`
	AgeDays   float64 `csv:"age_days"`
	Progress  float64 `csv:"progress"`
	Height    float64 `csv:"height_m"`
	Width     float64 `csv:"width_m"`
	LeafArea  float64 `csv:"leaf_area_m2"`
	Biomass   float64 `csv:"biomass_g"`
	Health    float64 `csv:"health"`
	Stress    float64 `csv:"stress"`
	Maturity  float64 `csv:"maturity"`
	Water     float64 `csv:"water"`
	Nutrient  float64 `csv:"nutrient"`
	Energy    float64 `csv:"energy"`
	EnvFactor float64 `csv:"env_factor"`
	Modifier  float64 `csv:"total_modifier"`
	Readiness float64 `csv:"readiness"`
	Harvested bool    `csv:"harvested"`
}

// Collector accumulates per-day records over a run.
type Collector struct {
	records []DayStats
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Observe samples a plant into a DayStats record and retains it.
func (c *Collector) Observe(p *sim.Plant) DayStats {
	st := p.GetStateSummary()
	gr := p.GetGrowthSummary()
	rs := p.GetResourceSummary()
	hr := p.CheckHarvestReadiness()

	rec := DayStats{
		Day:       p.Day(),
		Stage:     st.Stage.String(),
		AgeDays:   st.AgeDays,
		Progress:  gr.Progress,
		Height:    st.Height,
		Width:     st.Width,
		LeafArea:  st.LeafArea,
		Biomass:   gr.Biomass.Total(),
		Health:    st.Health,
		Stress:    st.Stress,
		Maturity:  st.Maturity,
		Water:     rs.Water,
		Nutrient:  rs.Nutrient,
		Energy:    rs.Energy,
		EnvFactor: gr.EnvFactor,
		Modifier:  gr.TotalModifier,
		Readiness: hr.Readiness,
		Harvested: p.Harvested(),
	}
	c.records = append(c.records, rec)
	return rec
}

// Records returns all collected records, oldest first.
func (c *Collector) Records() []DayStats {
	return c.records
}
