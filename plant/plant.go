// Package plant holds the shared vocabulary of the simulation: lifecycle
// stages, plant identity, attribute groups, and operation results.
package plant

import (
	"time"

	"github.com/google/uuid"
)

// Identity carries the immutable identity of one cultivated individual.
type Identity struct {
	ID         string
	Name       string
	StrainID   string // Resolved externally; opaque here
	GenotypeID string
	CreatedAt  time.Time
	ParentID   string // Empty for founder plants
	Generation int    // 1 for founders
}

// NewIdentity creates a founder identity with a fresh UUID.
func NewIdentity(name, strainID, genotypeID string) Identity {
	return Identity{
		ID:         uuid.NewString(),
		Name:       name,
		StrainID:   strainID,
		GenotypeID: genotypeID,
		CreatedAt:  time.Now().UTC(),
		Generation: 1,
	}
}

// NewOffspringIdentity creates an identity descending from a parent.
func NewOffspringIdentity(name, strainID, genotypeID string, parent Identity) Identity {
	id := NewIdentity(name, strainID, genotypeID)
	id.ParentID = parent.ID
	id.Generation = parent.Generation + 1
	return id
}

// Position is the plant's world position. Placement itself is host concern;
// the core only stores and snapshots it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Physical holds observable morphology.
type Physical struct {
	Height           float64 // meters
	Width            float64 // meters
	LeafArea         float64 // m²
	RootMassFraction float64 // root share of total biomass, [0,1]
}

// Vitality holds health-related attributes, all in [0,1].
type Vitality struct {
	Health         float64
	Vigor          float64
	Stress         float64
	ImmuneResponse float64
	Maturity       float64
}

// Clamp returns v limited to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 returns v limited to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}
