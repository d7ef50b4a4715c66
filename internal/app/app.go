package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"capsule-go/internal/capsule"
	"capsule-go/internal/config"
	"capsule-go/internal/database"
	"capsule-go/internal/model"
	"capsule-go/internal/vault"
)

// CapsuleApp is the application layer between the CLI/server and the
// capsule service. It constructs all dependencies from config and
// manages their lifecycle on Close.
type CapsuleApp struct {
	cfg     *config.Config
	store   *database.SQLiteStore
	objects capsule.ObjectStore
	service *capsule.Service
	logger  capsule.Logger
	logFile *os.File
}

// NewCapsuleApp creates a fully wired CapsuleApp from the given config.
// operation identifies the command being run (e.g. "Create", "Serve").
// The caller must call Close when done.
func NewCapsuleApp(ctx context.Context, cfg *config.Config, operation string) (*CapsuleApp, error) {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	objects, err := vault.NewObjectStoreFromConfig(ctx, cfg.Vault)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	if err := objects.ValidateSetup(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("validating vault: %w", err)
	}

	opID := operation + "-" + time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	svc := capsule.NewService(store, store, objects, store, logger, capsule.RealClock{}, capsule.UUIDGenerator{})

	return &CapsuleApp{
		cfg:     cfg,
		store:   store,
		objects: objects,
		service: svc,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// Config returns the application configuration.
func (a *CapsuleApp) Config() *config.Config {
	return a.cfg
}

// Service returns the wired capsule service.
func (a *CapsuleApp) Service() *capsule.Service {
	return a.service
}

// Logger returns the application logger.
func (a *CapsuleApp) Logger() capsule.Logger {
	return a.logger
}

// History returns a capsule's audit trail in append order.
func (a *CapsuleApp) History(ctx context.Context, capsuleID string) ([]*model.AuditEntry, error) {
	return a.store.ListAuditEntries(ctx, capsuleID)
}

// Close releases the database connection and the log file.
func (a *CapsuleApp) Close() error {
	var firstErr error

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
