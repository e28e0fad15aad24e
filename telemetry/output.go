package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/cultivar/config"
	"github.com/pthm-cable/cultivar/harvest"
)

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir           string
	telemetryFile *os.File

	telemetryHeaderWritten bool
}

// NewOutputManager creates an output manager and initializes the output
// directory. Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating telemetry.csv: %w", err)
	}
	om.telemetryFile = f

	return om, nil
}

// WriteConfig saves the active configuration alongside the run output.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteDay appends one per-day record to telemetry.csv.
func (om *OutputManager) WriteDay(rec DayStats) error {
	if om == nil {
		return nil
	}
	records := []DayStats{rec}

	if !om.telemetryHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, om.telemetryFile); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		om.telemetryHeaderWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, om.telemetryFile); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WriteHarvest writes the harvest attempt history to harvest.csv.
func (om *OutputManager) WriteHarvest(attempts []harvest.Attempt) error {
	if om == nil || len(attempts) == 0 {
		return nil
	}
	f, err := os.Create(filepath.Join(om.dir, "harvest.csv"))
	if err != nil {
		return fmt.Errorf("creating harvest.csv: %w", err)
	}
	defer f.Close()
	if err := gocsv.Marshal(attempts, f); err != nil {
		return fmt.Errorf("writing harvest history: %w", err)
	}
	return nil
}

// WriteSnapshot saves an exported snapshot payload to snapshot.json.
func (om *OutputManager) WriteSnapshot(payload string) error {
	if om == nil {
		return nil
	}
	return os.WriteFile(filepath.Join(om.dir, "snapshot.json"), []byte(payload), 0644)
}

// Close flushes and closes the output files.
func (om *OutputManager) Close() error {
	if om == nil || om.telemetryFile == nil {
		return nil
	}
	return om.telemetryFile.Close()
}
