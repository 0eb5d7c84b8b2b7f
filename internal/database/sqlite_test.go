package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func cycle(id string, started time.Time) *monitor.CycleRecord {
	return &monitor.CycleRecord{
		CycleID:    id,
		StartedAt:  started,
		FinishedAt: sql.NullTime{Time: started.Add(2 * time.Second), Valid: true},
		Status:     monitor.OutcomeCompleted.String(),
		Scanned:    10,
		Hashed:     3,
		Reused:     7,
		New:        2,
		Modified:   1,
		Deleted:    1,
		Moved:      1,
	}
}

func TestSQLiteDatabase_RecordCycle(t *testing.T) {
	t.Run("assigns increasing IDs", func(t *testing.T) {
		db := newTestDB(t)
		start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

		first, err := db.RecordCycle(cycle("c-1", start))
		if err != nil {
			t.Fatalf("RecordCycle() error = %v", err)
		}
		rec := cycle("c-2", start.Add(time.Minute))
		second, err := db.RecordCycle(rec)
		if err != nil {
			t.Fatalf("RecordCycle() error = %v", err)
		}
		if second <= first {
			t.Errorf("IDs = %d, %d; want increasing", first, second)
		}
		if rec.ID != second {
			t.Errorf("rec.ID = %d, want %d", rec.ID, second)
		}

		maxID, err := db.MaxCycleID()
		if err != nil {
			t.Fatalf("MaxCycleID() error = %v", err)
		}
		if maxID != second {
			t.Errorf("MaxCycleID() = %d, want %d", maxID, second)
		}
	})

	t.Run("duplicate cycle ID fails and writes nothing", func(t *testing.T) {
		db := newTestDB(t)
		start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

		if _, err := db.RecordCycle(cycle("c-1", start)); err != nil {
			t.Fatalf("RecordCycle() error = %v", err)
		}
		dup := cycle("c-1", start)
		dup.Moves = []monitor.Move{{From: "a.pdf", To: "Documents/a.pdf", Category: "Documents"}}
		if _, err := db.RecordCycle(dup); err == nil {
			t.Fatal("RecordCycle() expected error for duplicate cycle ID")
		}

		moves, err := db.ListMoves("c-1")
		if err != nil {
			t.Fatalf("ListMoves() error = %v", err)
		}
		if len(moves) != 0 {
			t.Errorf("ListMoves() = %v, want none after rollback", moves)
		}
	})
}

func TestSQLiteDatabase_ListCycles(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	for i, id := range []string{"c-1", "c-2", "c-3"} {
		rec := cycle(id, start.Add(time.Duration(i)*time.Minute))
		rec.DryRun = id == "c-2"
		if _, err := db.RecordCycle(rec); err != nil {
			t.Fatalf("RecordCycle() error = %v", err)
		}
	}

	got, err := db.ListCycles(2)
	if err != nil {
		t.Fatalf("ListCycles() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListCycles() returned %d rows, want 2", len(got))
	}
	if got[0].CycleID != "c-3" || got[1].CycleID != "c-2" {
		t.Errorf("ListCycles() order = %s, %s; want c-3, c-2", got[0].CycleID, got[1].CycleID)
	}

	c2 := got[1]
	if !c2.DryRun {
		t.Error("DryRun = false, want true")
	}
	if !c2.StartedAt.Equal(start.Add(time.Minute)) {
		t.Errorf("StartedAt = %v, want %v", c2.StartedAt, start.Add(time.Minute))
	}
	if !c2.FinishedAt.Valid || !c2.FinishedAt.Time.Equal(start.Add(time.Minute+2*time.Second)) {
		t.Errorf("FinishedAt = %v", c2.FinishedAt)
	}
	if c2.Scanned != 10 || c2.Hashed != 3 || c2.Reused != 7 || c2.New != 2 || c2.Modified != 1 || c2.Deleted != 1 || c2.Moved != 1 {
		t.Errorf("counters = %+v", c2)
	}
	if c2.Status != "completed" {
		t.Errorf("Status = %s, want completed", c2.Status)
	}
}

func TestSQLiteDatabase_ListMoves(t *testing.T) {
	db := newTestDB(t)
	rec := cycle("c-1", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	rec.Moves = []monitor.Move{
		{From: "setup.exe", To: "Programs/setup.exe", Category: "Programs"},
		{From: "x.pdf", To: "Documents/x_1.pdf", Category: "Documents", Renamed: true},
	}
	if _, err := db.RecordCycle(rec); err != nil {
		t.Fatalf("RecordCycle() error = %v", err)
	}

	got, err := db.ListMoves("c-1")
	if err != nil {
		t.Fatalf("ListMoves() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListMoves() returned %d moves, want 2", len(got))
	}
	if got[0] != rec.Moves[0] || got[1] != rec.Moves[1] {
		t.Errorf("ListMoves() = %+v, want %+v", got, rec.Moves)
	}
}

func TestSQLiteDatabase_MaxCycleIDEmpty(t *testing.T) {
	db := newTestDB(t)

	id, err := db.MaxCycleID()
	if err != nil {
		t.Fatalf("MaxCycleID() error = %v", err)
	}
	if id != 0 {
		t.Errorf("MaxCycleID() = %d, want 0", id)
	}
}

func TestSQLiteDatabase_CheckMigrations(t *testing.T) {
	db := newTestDB(t)
	if err := db.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() error = %v", err)
	}

	raw, err := OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("OpenConnection() error = %v", err)
	}
	unmigrated := NewSQLiteDatabaseFromDB(raw)
	defer unmigrated.Close()
	if err := unmigrated.CheckMigrations(); err == nil {
		t.Error("CheckMigrations() expected error for unmigrated database")
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.RecordCycle(cycle("c-1", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))); err != nil {
		t.Fatalf("RecordCycle() error = %v", err)
	}

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	restored, err := NewSQLiteDatabase(dest)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase(backup) error = %v", err)
	}
	defer restored.Close()

	if restored.Path() != dest {
		t.Errorf("Path() = %s, want %s", restored.Path(), dest)
	}
	maxID, err := restored.MaxCycleID()
	if err != nil {
		t.Fatalf("MaxCycleID() error = %v", err)
	}
	if maxID != 1 {
		t.Errorf("restored MaxCycleID() = %d, want 1", maxID)
	}
}
