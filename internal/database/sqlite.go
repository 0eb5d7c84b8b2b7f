package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/guijianchou/IDM-Download-Monitor/internal/database/migrations"
	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements monitor.History using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path and applies pending migrations.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured
// and migrated.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:   db,
		path: "",
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every new connection to ":memory:" is a fresh, empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// The monitor loop and a concurrent `dlmon history` may both hold the file.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Cycle history

func (s *SQLiteDatabase) RecordCycle(rec *monitor.CycleRecord) (int64, error) {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO cycles (
			cycle_id, started_at, finished_at, status, dry_run,
			scanned, hashed, reused,
			new_files, modified_files, deleted_files, moved_files, warnings
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CycleID, rec.StartedAt, rec.FinishedAt, rec.Status, rec.DryRun,
		rec.Scanned, rec.Hashed, rec.Reused,
		rec.New, rec.Modified, rec.Deleted, rec.Moved, rec.Warnings,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting cycle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading cycle ID: %w", err)
	}

	for _, mv := range rec.Moves {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO moves (cycle_id, from_path, to_path, category, renamed) VALUES (?, ?, ?, ?, ?)",
			rec.CycleID, mv.From, mv.To, mv.Category, mv.Renamed,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting move %s: %w", mv.From, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing cycle: %w", err)
	}

	rec.ID = id
	return id, nil
}

func (s *SQLiteDatabase) ListCycles(limit int) ([]*monitor.CycleRecord, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, cycle_id, started_at, finished_at, status, dry_run,
			scanned, hashed, reused,
			new_files, modified_files, deleted_files, moved_files, warnings
		FROM cycles
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing cycles: %w", err)
	}
	defer rows.Close()

	var result []*monitor.CycleRecord
	for rows.Next() {
		var rec monitor.CycleRecord
		if err := rows.Scan(
			&rec.ID, &rec.CycleID, &rec.StartedAt, &rec.FinishedAt, &rec.Status, &rec.DryRun,
			&rec.Scanned, &rec.Hashed, &rec.Reused,
			&rec.New, &rec.Modified, &rec.Deleted, &rec.Moved, &rec.Warnings,
		); err != nil {
			return nil, fmt.Errorf("scanning cycle: %w", err)
		}
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing cycles: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) ListMoves(cycleID string) ([]monitor.Move, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT from_path, to_path, category, renamed FROM moves WHERE cycle_id = ? ORDER BY id", cycleID)
	if err != nil {
		return nil, fmt.Errorf("listing moves: %w", err)
	}
	defer rows.Close()

	var result []monitor.Move
	for rows.Next() {
		var mv monitor.Move
		if err := rows.Scan(&mv.From, &mv.To, &mv.Category, &mv.Renamed); err != nil {
			return nil, fmt.Errorf("scanning move: %w", err)
		}
		result = append(result, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing moves: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) MaxCycleID() (int64, error) {
	var id int64
	err := s.db.QueryRowContext(context.Background(), "SELECT COALESCE(MAX(id), 0) FROM cycles").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("getting max cycle ID: %w", err)
	}
	return id, nil
}

// Path returns the database file path, or "" for a wrapped connection.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ monitor.History = (*SQLiteDatabase)(nil)
