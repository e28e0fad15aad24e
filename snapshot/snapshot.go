// Package snapshot mirrors the live component graph into a flat serializable
// record, validates it, and synchronizes it in both directions. The snapshot
// field names and types are a contract consumed by external collaborators.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pthm-cable/cultivar/plant"
)

// SchemaVersion is incremented when the snapshot format changes.
const SchemaVersion = 1

// FormatTag identifies exported payloads.
const FormatTag = "cultivar-snapshot"

// Snapshot is the flat serializable representation of the full plant
// aggregate at a point in time.
type Snapshot struct {
	// Identity
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StrainID   string    `json:"strain_id"`
	GenotypeID string    `json:"genotype_id"`
	CreatedAt  time.Time `json:"created_at"`
	ParentID   string    `json:"parent_id,omitempty"`
	Generation int       `json:"generation"`

	// State
	Stage            string         `json:"stage"`
	AgeDays          float64        `json:"age_days"`
	DaysInStage      float64        `json:"days_in_stage"`
	Position         plant.Position `json:"position"`
	Height           float64        `json:"height"`
	Width            float64        `json:"width"`
	LeafArea         float64        `json:"leaf_area"`
	RootMassFraction float64        `json:"root_mass_fraction"`

	// Vitality
	OverallHealth  float64 `json:"overall_health"`
	Vigor          float64 `json:"vigor"`
	StressLevel    float64 `json:"stress_level"`
	ImmuneResponse float64 `json:"immune_response"`
	Maturity       float64 `json:"maturity"`

	// Resources
	WaterLevel    float64            `json:"water_level"`
	NutrientLevel float64            `json:"nutrient_level"`
	EnergyLevel   float64            `json:"energy_level"`
	Nutrients     map[string]float64 `json:"nutrients"`
	LastWatering  float64            `json:"last_watering"`
	LastFeeding   float64            `json:"last_feeding"`
	LastTraining  float64            `json:"last_training"`

	// Growth
	GrowthProgress float64 `json:"growth_progress"`
	DailyRate      float64 `json:"daily_rate"`
	BiomassTotal   float64 `json:"biomass_total"`
	BiomassRoot    float64 `json:"biomass_root"`
	BiomassLeaf    float64 `json:"biomass_leaf"`
	BiomassStem    float64 `json:"biomass_stem"`
	GeneticVigor   float64 `json:"genetic_vigor"`
	MaxHeight      float64 `json:"max_height"`
	MaxWidth       float64 `json:"max_width"`

	// Harvest
	Readiness        float64 `json:"readiness"`
	EstimatedYield   float64 `json:"estimated_yield"`
	EstimatedPotency float64 `json:"estimated_potency"`
	OptimalDay       float64 `json:"optimal_day"`
	WindowStart      float64 `json:"window_start"`
	WindowEnd        float64 `json:"window_end"`
	Harvested        bool    `json:"harvested"`
}

// Meta is the envelope metadata attached to exported snapshots.
type Meta struct {
	PlantID       string    `json:"plant_id"`
	SerializedAt  time.Time `json:"serialized_at"`
	Format        string    `json:"format"`
	SchemaVersion int       `json:"schema_version"`
}

// Envelope is the exchange payload: metadata plus the snapshot record.
type Envelope struct {
	Meta Meta     `json:"meta"`
	Data Snapshot `json:"data"`
}

// Export serializes a snapshot into the exchange string format.
func Export(s Snapshot) (string, error) {
	env := Envelope{
		Meta: Meta{
			PlantID:       s.ID,
			SerializedAt:  time.Now().UTC(),
			Format:        FormatTag,
			SchemaVersion: SchemaVersion,
		},
		Data: s,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}
	return string(data), nil
}

// Import parses an exchange string. Malformed input, a wrong format tag, or
// an unsupported schema version fail without producing a snapshot.
func Import(payload string) (Snapshot, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Snapshot{}, fmt.Errorf("parsing snapshot payload: %w", err)
	}
	if env.Meta.Format != FormatTag {
		return Snapshot{}, fmt.Errorf("unexpected format tag %q", env.Meta.Format)
	}
	if env.Meta.SchemaVersion > SchemaVersion {
		return Snapshot{}, fmt.Errorf("unsupported schema version %d (max %d)",
			env.Meta.SchemaVersion, SchemaVersion)
	}
	return env.Data, nil
}
