// Package persistence selects the optional checkpoint mirror backend.
// Packages outside this facade depend on domain.CheckpointStore, never on
// the infra implementations directly.
package persistence

import (
	"context"
	"fmt"

	"spendgraph/internal/config"
	"spendgraph/internal/infra/persistence/postgres"
	"spendgraph/internal/infra/persistence/sqlite"
	"spendgraph/pkg/domain"
)

// Open returns the configured checkpoint store, or nil when mirroring is
// disabled.
func Open(ctx context.Context, cfg config.Checkpoint) (domain.CheckpointStore, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "sqlite":
		return sqlite.NewStore(cfg.Path)
	case "postgres":
		return postgres.NewStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q", cfg.Driver)
	}
}
