package testutil

import (
	"testing"

	"capsule-go/internal/database"
)

// NewTestStore opens an in-memory SQLite store migrated to the latest
// schema. The store is closed when the test finishes.
func NewTestStore(t *testing.T) *database.SQLiteStore {
	t.Helper()

	store, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.MigrateUp(); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return store
}
