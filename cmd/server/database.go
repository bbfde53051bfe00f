package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-vocab/internal/config"
	"github.com/phrazzld/scry-vocab/internal/platform/postgres"
	"github.com/phrazzld/scry-vocab/internal/platform/sqlite"
	"github.com/phrazzld/scry-vocab/internal/store"
)

// database bundles the store for the configured driver with its lifecycle hooks.
type database struct {
	driver  string
	store   store.ReviewItemStore
	migrate func(ctx context.Context, command string) error
	close   func() error
}

// openDatabase connects to the configured backend and builds its ReviewItemStore.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*database, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.URL, cfg.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		logger.Info("database connection established", slog.String("driver", cfg.Driver))
		return &database{
			driver: cfg.Driver,
			store:  postgres.NewPostgresReviewItemStore(db, logger),
			migrate: func(ctx context.Context, command string) error {
				return postgres.Migrate(ctx, db, command, logger)
			},
			close: db.Close,
		}, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		logger.Info("database connection established", slog.String("driver", cfg.Driver))
		return &database{
			driver: cfg.Driver,
			store:  sqlite.NewSQLiteReviewItemStore(db, logger),
			migrate: func(ctx context.Context, command string) error {
				return sqlite.Migrate(ctx, db.DB, command, logger)
			},
			close: db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
