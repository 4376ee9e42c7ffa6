package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spatialdeez/microstore/internal/config"
	"github.com/spatialdeez/microstore/internal/db"
	repo "github.com/spatialdeez/microstore/internal/repository"
	"github.com/spatialdeez/microstore/internal/repository/memory"
	"github.com/spatialdeez/microstore/internal/repository/postgres"
)

// OpenStore builds the configured store. The returned close func releases
// its connections.
func OpenStore(ctx context.Context, cfg config.Config) (repo.Store, func(), error) {
	if cfg.StoreDriver == "memory" {
		slog.Warn("using in-memory store, data is lost on exit")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.Migrate {
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
	}
	return postgres.NewStore(pool), pool.Close, nil
}
