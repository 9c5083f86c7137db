package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/teranos/boss/db"
)

// CreateTestDB creates a migrated SQLite database in the test's temp dir.
// A file is used rather than :memory: so every pooled connection shares
// the same database. Cleanup is registered via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.OpenWithMigrations(filepath.Join(t.TempDir(), "boss.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return conn
}
