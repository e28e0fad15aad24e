// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Sim         SimConfig         `yaml:"sim"`
	Environment EnvironmentConfig `yaml:"environment"`
	Growth      GrowthConfig      `yaml:"growth"`
	Biomass     BiomassConfig     `yaml:"biomass"`
	Stages      StagesConfig      `yaml:"stages"`
	Resource    ResourceConfig    `yaml:"resource"`
	Harvest     HarvestConfig     `yaml:"harvest"`
	State       StateConfig       `yaml:"state"`
	Events      EventsConfig      `yaml:"events"`
	Sync        SyncConfig        `yaml:"sync"`
	Validation  ValidationConfig  `yaml:"validation"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimConfig holds top-level run parameters for the headless driver.
type SimConfig struct {
	DeltaDays    float64       `yaml:"delta_days"`     // Simulated days advanced per tick
	MaxDays      float64       `yaml:"max_days"`       // Stop after this many sim-days (0 = unlimited)
	Weather      WeatherConfig `yaml:"weather"`        // Noise-driven daily conditions
	AutoHarvest  bool          `yaml:"auto_harvest"`   // Harvest automatically once the readiness threshold is met
	LogEveryDays float64       `yaml:"log_every_days"` // Progress log cadence (0 = quiet)
}

// WeatherConfig drives daily environmental conditions from coherent noise.
type WeatherConfig struct {
	BaselineLight    float64 `yaml:"baseline_light"`    // PPFD (µmol/m²/s)
	BaselineTemp     float64 `yaml:"baseline_temp"`     // °C
	BaselineHumidity float64 `yaml:"baseline_humidity"` // Relative humidity %
	LightSwing       float64 `yaml:"light_swing"`       // Max noise deviation from baseline
	TempSwing        float64 `yaml:"temp_swing"`
	HumiditySwing    float64 `yaml:"humidity_swing"`
	NoiseScale       float64 `yaml:"noise_scale"` // Noise frequency in day units
}

// BandConfig describes a piecewise-linear optimality curve: flat 1.0 inside
// [OptimalLow, OptimalHigh], ramping to floor values at Min and Max.
type BandConfig struct {
	Min         float64 `yaml:"min"`
	OptimalLow  float64 `yaml:"optimal_low"`
	OptimalHigh float64 `yaml:"optimal_high"`
	Max         float64 `yaml:"max"`
	FloorBelow  float64 `yaml:"floor_below"` // Factor at or below Min
	FloorAbove  float64 `yaml:"floor_above"` // Factor at or above Max
}

// EnvironmentConfig holds optimality bands and factor weighting.
type EnvironmentConfig struct {
	Light    BandConfig `yaml:"light"`
	Temp     BandConfig `yaml:"temp"`
	Humidity BandConfig `yaml:"humidity"`

	LightWeight    float64 `yaml:"light_weight"`
	TempWeight     float64 `yaml:"temp_weight"`
	HumidityWeight float64 `yaml:"humidity_weight"`

	FactorMin float64 `yaml:"factor_min"` // Combined factor clamp floor
	FactorMax float64 `yaml:"factor_max"` // Combined factor clamp ceiling
}

// GrowthConfig holds growth-progress and morphology parameters.
type GrowthConfig struct {
	BaseDailyRate   float64 `yaml:"base_daily_rate"`  // Progress per day before modifiers
	ProgressScale   float64 `yaml:"progress_scale"`   // Fixed k applied to the modifier product
	MaxHeight       float64 `yaml:"max_height"`       // Genetic max height in meters (pre-vigor)
	MaxWidth        float64 `yaml:"max_width"`        // Genetic max width in meters
	HeightSteepness float64 `yaml:"height_steepness"` // Logistic curve steepness around progress 0.5
	WidthExponent   float64 `yaml:"width_exponent"`   // Width = maxWidth * progress^exp

	BiomassPerDay float64 `yaml:"biomass_per_day"` // Dry-mass gain in grams/day at modifier 1.0

	// Weekly re-derivation: daily rate multiplier interpolated over progress.
	RateBandProgress []float64 `yaml:"rate_band_progress"`
	RateBandValue    []float64 `yaml:"rate_band_value"`

	VigorDriftPerWeek float64 `yaml:"vigor_drift_per_week"` // Max weekly genetic vigor drift
	VigorMin          float64 `yaml:"vigor_min"`
	VigorMax          float64 `yaml:"vigor_max"`

	HistorySize         int     `yaml:"history_size"`          // Measurement ring buffer capacity
	AnomalyMinModifier  float64 `yaml:"anomaly_min_modifier"`  // Total modifier below this raises a warning
	AnomalyHeightSlope  float64 `yaml:"anomaly_height_slope"`  // Regression slope below this (m/day) flags height regression
	AnomalyBiomassSlope float64 `yaml:"anomaly_biomass_slope"` // Same for biomass (g/day)
	AnomalyMinSamples   int     `yaml:"anomaly_min_samples"`   // Ring entries required before regression runs
}

// BiomassConfig holds biomass distribution parameters.
type BiomassConfig struct {
	SpecificLeafArea float64 `yaml:"specific_leaf_area"` // m² leaf area per gram of leaf mass
	RootRatioStart   float64 `yaml:"root_ratio_start"`   // Root fraction of daily gain at progress 0
	RootRatioEnd     float64 `yaml:"root_ratio_end"`     // Root fraction at progress 1
	LeafRatioBase    float64 `yaml:"leaf_ratio_base"`    // Leaf fraction at progress extremes
	LeafRatioPeak    float64 `yaml:"leaf_ratio_peak"`    // Leaf fraction at mid-cycle
	AdjustPeriodDays float64 `yaml:"adjust_period_days"` // How often tissue multipliers self-adjust
	AdjustStep       float64 `yaml:"adjust_step"`        // Multiplier nudge toward under-represented tissue
	MultiplierMin    float64 `yaml:"multiplier_min"`
	MultiplierMax    float64 `yaml:"multiplier_max"`
}

// StagesConfig holds stage transition thresholds (age in days, progress in [0,1]).
type StagesConfig struct {
	VegetativeAge      float64 `yaml:"vegetative_age"`
	FloweringAge       float64 `yaml:"flowering_age"`
	MatureAge          float64 `yaml:"mature_age"`
	VegetativeProgress float64 `yaml:"vegetative_progress"`
	FloweringProgress  float64 `yaml:"flowering_progress"`
	MatureProgress     float64 `yaml:"mature_progress"`
}

// ResourceConfig holds resource pool parameters.
type ResourceConfig struct {
	WaterPerDay    float64 `yaml:"water_per_day"`    // Water consumption rate
	NutrientPerDay float64 `yaml:"nutrient_per_day"` // Per-nutrient consumption rate
	EnergyPerDay   float64 `yaml:"energy_per_day"`   // Energy reserve drain

	CriticalWater    float64 `yaml:"critical_water"`
	CriticalNutrient float64 `yaml:"critical_nutrient"`
	CriticalEnergy   float64 `yaml:"critical_energy"`

	NoiseThreshold  float64 `yaml:"noise_threshold"`  // Level deltas below this do not fire callbacks
	LimitValidation bool    `yaml:"limit_validation"` // Reject invalid amounts and clamp additions to [0,1]

	TrainingEnergyCost float64 `yaml:"training_energy_cost"`
	TrainingStress     float64 `yaml:"training_stress"`

	Nutrients []string `yaml:"nutrients"` // Canonical nutrient component names
}

// HarvestConfig holds readiness, yield and potency parameters.
type HarvestConfig struct {
	TrichomeWeight     float64 `yaml:"trichome_weight"`
	MaturityWeight     float64 `yaml:"maturity_weight"`
	HealthWeight       float64 `yaml:"health_weight"`
	ReadinessThreshold float64 `yaml:"readiness_threshold"` // Overall readiness at or above this = ready

	MinFloweringAge float64 `yaml:"min_flowering_age"` // Days before trichome development starts

	BaseYieldFraction  float64 `yaml:"base_yield_fraction"` // Harvestable fraction of total biomass
	MaturityOptimalLow float64 `yaml:"maturity_optimal_low"`
	MaturityUnderFloor float64 `yaml:"maturity_under_floor"` // Penalty floor below the optimal band
	MaturityOverFloor  float64 `yaml:"maturity_over_floor"`  // Penalty floor for over-ripeness

	PotencyBase          float64 `yaml:"potency_base"`
	PotencyMaturityBonus float64 `yaml:"potency_maturity_bonus"` // Max bonus, earned above maturity 0.8
	PotencyHealthBonus   float64 `yaml:"potency_health_bonus"`
	PotencyVariance      float64 `yaml:"potency_variance"` // Random quality variance half-width
	PotencyMin           float64 `yaml:"potency_min"`
	PotencyMax           float64 `yaml:"potency_max"`

	WindowDays       float64 `yaml:"window_days"`        // Full harvest window width in days
	MaturityDaysSpan float64 `yaml:"maturity_days_span"` // Days for maturity to travel 0 -> 1 under nominal growth

	ActualYieldFloor   float64 `yaml:"actual_yield_floor"` // Readiness discount floor at execution
	ActualPotencyFloor float64 `yaml:"actual_potency_floor"`

	HistorySize int `yaml:"history_size"` // Harvest attempt history capacity
}

// StateConfig holds state coordinator parameters.
type StateConfig struct {
	RecordHistory  bool    `yaml:"record_history"`
	HistorySize    int     `yaml:"history_size"`
	NoiseThreshold float64 `yaml:"noise_threshold"` // Attribute deltas below this do not fire callbacks
}

// EventsConfig holds event bus parameters.
type EventsConfig struct {
	HistorySize    int     `yaml:"history_size"`
	BatchEnabled   bool    `yaml:"batch_enabled"`
	BatchDelayDays float64 `yaml:"batch_delay_days"` // Flush the batch after this much sim time
	BatchMaxSize   int     `yaml:"batch_max_size"`   // Flush immediately at this size (0 = no size limit)
}

// SyncConfig holds data synchronizer parameters.
type SyncConfig struct {
	AutoSync       bool    `yaml:"auto_sync"`
	FrequencyDays  float64 `yaml:"frequency_days"` // Minimum sim time between lazy auto-syncs
	ValidateOnSync bool    `yaml:"validate_on_sync"`
}

// ValidationConfig holds snapshot validator parameters.
type ValidationConfig struct {
	AutoCorrect bool `yaml:"auto_correct"` // Clamp out-of-range numerics instead of failing
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	NutrientIndex map[string]int // name -> position in ResourceConfig.Nutrients
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	return cfg, nil
}

// WriteYAML saves the current configuration to a file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	// Default nutrient set if none specified
	if len(c.Resource.Nutrients) == 0 {
		c.Resource.Nutrients = []string{"nitrogen", "phosphorus", "potassium", "calcium", "magnesium"}
	}

	idx := make(map[string]int, len(c.Resource.Nutrients))
	for i, name := range c.Resource.Nutrients {
		idx[name] = i
	}
	c.Derived.NutrientIndex = idx

	// Rate bands default to a gentle bell over progress
	if len(c.Growth.RateBandProgress) == 0 {
		c.Growth.RateBandProgress = []float64{0.0, 0.25, 0.5, 0.75, 1.0}
		c.Growth.RateBandValue = []float64{0.8, 1.2, 1.0, 0.7, 0.4}
	}
}
