package core

import (
	"context"
	"fmt"

	"latticecore/internal/artifact"
	"latticecore/internal/infra/persistence/memory"
	"latticecore/internal/infra/persistence/postgres"
	"latticecore/internal/infra/persistence/sqlite"
	"latticecore/pkg/runlog"
)

// OpenRunLog opens the run ledger cfg selects. An empty driver means sqlite.
func OpenRunLog(ctx context.Context, cfg RunLogConfig) (runlog.Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = RunLogSQLite
	}
	switch driver {
	case RunLogMemory:
		return memory.NewStore(), nil
	case RunLogSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case RunLogPostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown run log driver %s", driver)
	}
}

// OpenArtifactStore opens the artifact backend cfg selects.
func OpenArtifactStore(ctx context.Context, cfg artifact.Config) (artifact.Store, error) {
	return artifact.Open(ctx, cfg)
}
