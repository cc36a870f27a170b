// Package store persists outcome records. Three implementations share one
// interface: an in-memory store for tests and ad-hoc runs, and SQLite and
// Postgres stores for durable history. Persistence failures are reported as
// database errors and are never fatal to a run.
package store

import (
	"context"
	"fmt"

	"github.com/haasonsaas/webpilot/internal/config"
	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/pkg/models"
)

// Store persists and retrieves outcome records. Implementations are safe
// for concurrent use.
type Store interface {
	SaveResult(ctx context.Context, result *models.ExecutionResult) error
	GetResults(ctx context.Context, testID string) ([]models.ExecutionResult, error)
	ListResults(ctx context.Context, limit, offset int) ([]models.ExecutionResult, error)
	Close() error
}

// DefaultListLimit applies when ListResults is called with limit <= 0.
const DefaultListLimit = 50

// Open builds the store selected by the configuration. Supported drivers:
// memory (default), sqlite, postgres.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		if cfg.DSN == "" {
			return nil, errdefs.Configuration("storage.dsn", "sqlite requires a dsn (database file path)")
		}
		return OpenSQL("sqlite", cfg.DSN)
	case "postgres":
		if cfg.DSN == "" {
			return nil, errdefs.Configuration("storage.dsn", "postgres requires a dsn")
		}
		return OpenSQL("postgres", cfg.DSN)
	default:
		return nil, errdefs.Configuration("storage.driver",
			fmt.Sprintf("unknown driver %q (supported: memory, sqlite, postgres)", cfg.Driver))
	}
}
