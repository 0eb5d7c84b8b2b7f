package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/guijianchou/IDM-Download-Monitor/internal/config"
	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// HistoryFileName is the SQLite file inside the data directory.
const HistoryFileName = "history.db"

// NewHistoryFromConfig creates the cycle history store for the database config type.
// Type "none" disables history and returns a nil History without error.
func NewHistoryFromConfig(cfg config.DatabaseConfig) (monitor.History, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return open(filepath.Join(cfg.DataDir, HistoryFileName))
	case "memory":
		return open(":memory:")
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// open avoids returning a typed nil inside the interface on error.
func open(path string) (monitor.History, error) {
	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}
