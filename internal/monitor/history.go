package monitor

import (
	"database/sql"
	"time"
)

// CycleRecord is one row of cycle history.
type CycleRecord struct {
	ID         int64
	CycleID    string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
	DryRun     bool
	Scanned    int
	Hashed     int
	Reused     int
	New        int
	Modified   int
	Deleted    int
	Moved      int
	Warnings   int

	// Moves performed by the cycle; written with the row, not loaded by ListCycles.
	Moves []Move
}

// History records completed cycles.
type History interface {
	// RecordCycle stores a cycle and its moves and returns its auto-increment ID.
	RecordCycle(rec *CycleRecord) (int64, error)

	// ListMoves returns the moves recorded for a cycle, in the order performed.
	ListMoves(cycleID string) ([]Move, error)

	// ListCycles returns the most recent cycles, newest first.
	ListCycles(limit int) ([]*CycleRecord, error)

	// MaxCycleID returns the highest recorded ID, or 0.
	MaxCycleID() (int64, error)

	// CheckMigrations reports whether the schema is at the latest version.
	CheckMigrations() error

	// BackupTo writes a consistent copy of the history to destPath.
	BackupTo(destPath string) error

	Close() error
}

// NewCycleRecord converts a finished cycle into a history row.
func NewCycleRecord(res *CycleResult) *CycleRecord {
	rec := &CycleRecord{
		CycleID:   res.CycleID,
		StartedAt: res.StartedAt,
		Status:    res.Outcome.String(),
		DryRun:    res.DryRun,
		Scanned:   res.Scanned,
		Hashed:    res.Hashed,
		Reused:    res.Reused,
		New:       len(res.Summary.New),
		Modified:  len(res.Summary.Modified),
		Deleted:   len(res.Summary.Deleted),
		Moved:     len(res.Summary.Moved),
		Warnings:  len(res.Warnings),
		Moves:     res.Moves,
	}
	if !res.FinishedAt.IsZero() {
		rec.FinishedAt = sql.NullTime{Time: res.FinishedAt, Valid: true}
	}
	return rec
}
