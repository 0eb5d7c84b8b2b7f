package testutil

import (
	"testing"

	"github.com/guijianchou/IDM-Download-Monitor/internal/database"
	"github.com/guijianchou/IDM-Download-Monitor/internal/database/migrations"
)

// NewTestHistory creates an in-memory cycle history database with schema applied.
// The database is automatically closed when the test completes.
func NewTestHistory(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := migrations.MigrateUp(sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
