package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/cultivar/snapshot"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSnap(id string, age float64) snapshot.Snapshot {
	return snapshot.Snapshot{
		ID:         id,
		Name:       "plant-1",
		Generation: 1,
		Stage:      "vegetative",
		AgeDays:    age,
	}
}

func TestSaveAndLoadLatest(t *testing.T) {
	db := testDB(t)

	if err := db.Save(testSnap("p-1", 10), 1, 10); err != nil {
		t.Fatalf("save v1: %v", err)
	}
	if err := db.Save(testSnap("p-1", 20), 2, 20); err != nil {
		t.Fatalf("save v2: %v", err)
	}

	snap, version, err := db.LoadLatest("p-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}
	if snap.AgeDays != 20 || snap.ID != "p-1" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestLoadLatestNotFound(t *testing.T) {
	db := testDB(t)
	_, _, err := db.LoadLatest("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveSameVersionOverwrites(t *testing.T) {
	db := testDB(t)

	if err := db.Save(testSnap("p-1", 10), 1, 10); err != nil {
		t.Fatal(err)
	}
	if err := db.Save(testSnap("p-1", 11), 1, 11); err != nil {
		t.Fatalf("overwrite save: %v", err)
	}

	snap, version, err := db.LoadLatest("p-1")
	if err != nil {
		t.Fatal(err)
	}
	if version != 1 || snap.AgeDays != 11 {
		t.Errorf("got version %d age %v, want 1 / 11", version, snap.AgeDays)
	}

	versions, err := db.Versions("p-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Errorf("versions = %v, want one entry", versions)
	}
}

func TestVersionsAscendingPerPlant(t *testing.T) {
	db := testDB(t)

	for _, v := range []uint64{3, 1, 2} {
		if err := db.Save(testSnap("p-1", float64(v)), v, float64(v)); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Save(testSnap("p-2", 1), 1, 1); err != nil {
		t.Fatal(err)
	}

	versions, err := db.Versions("p-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 3 {
		t.Fatalf("versions = %v", versions)
	}
	for i, want := range []uint64{1, 2, 3} {
		if versions[i] != want {
			t.Errorf("versions[%d] = %d, want %d", i, versions[i], want)
		}
	}
}
