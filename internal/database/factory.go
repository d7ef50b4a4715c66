package database

import (
	"fmt"
	"os"
	"path/filepath"

	"capsule-go/internal/config"
)

// NewStoreFromConfig creates a SQLiteStore based on the database config type.
// The schema is migrated to the latest version on open.
func NewStoreFromConfig(cfg config.DatabaseConfig) (*SQLiteStore, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		path = filepath.Join(cfg.DataDir, "capsules.db")
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	store, err := NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}

	if err := store.MigrateUp(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return store, nil
}
