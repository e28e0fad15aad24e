// Package store provides SQLite-backed persistence for plant snapshots. It
// is a host-side collaborator: the core only produces and consumes snapshot
// records, and the store keeps them versioned per plant.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/cultivar/snapshot"
)

// ErrNotFound is returned when no snapshot exists for a plant.
var ErrNotFound = errors.New("store: snapshot not found")

// DB wraps a SQLite connection for snapshot persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		plant_id   TEXT NOT NULL,
		version    INTEGER NOT NULL,
		sim_day    REAL NOT NULL,
		payload    TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (plant_id, version)
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_plant ON snapshots(plant_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Save persists one snapshot at its sync version. Saving the same version
// twice overwrites the stored payload.
func (db *DB) Save(snap snapshot.Snapshot, version uint64, simDay float64) error {
	payload, err := snapshot.Export(snap)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT OR REPLACE INTO snapshots (plant_id, version, sim_day, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		snap.ID, version, simDay, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadLatest returns the highest-version snapshot for a plant.
func (db *DB) LoadLatest(plantID string) (snapshot.Snapshot, uint64, error) {
	var row struct {
		Version uint64 `db:"version"`
		Payload string `db:"payload"`
	}
	err := db.conn.Get(&row, `
		SELECT version, payload FROM snapshots
		WHERE plant_id = ? ORDER BY version DESC LIMIT 1`, plantID)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.Snapshot{}, 0, ErrNotFound
	}
	if err != nil {
		return snapshot.Snapshot{}, 0, fmt.Errorf("load snapshot: %w", err)
	}

	snap, err := snapshot.Import(row.Payload)
	if err != nil {
		return snapshot.Snapshot{}, 0, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, row.Version, nil
}

// Versions lists the stored sync versions for a plant, ascending.
func (db *DB) Versions(plantID string) ([]uint64, error) {
	var versions []uint64
	err := db.conn.Select(&versions, `
		SELECT version FROM snapshots WHERE plant_id = ? ORDER BY version ASC`, plantID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}
