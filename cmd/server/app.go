package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-vocab/internal/config"
	"github.com/phrazzld/scry-vocab/internal/domain/srs"
	"github.com/phrazzld/scry-vocab/internal/platform/clock"
	"github.com/phrazzld/scry-vocab/internal/redact"
	"github.com/phrazzld/scry-vocab/internal/service/auth"
	"github.com/phrazzld/scry-vocab/internal/service/review"
	"github.com/phrazzld/scry-vocab/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *database

	jwtService    auth.JWTService
	srsService    srs.Service
	reviewService review.Service

	taskQueue  *task.TaskQueue
	workerPool *task.WorkerPool
}

// newApplication wires services on top of an open, migrated database and
// starts the ingestion retry workers.
func newApplication(cfg *config.Config, logger *slog.Logger, db *database) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	loc, err := cfg.Review.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid review timezone %q: %w", cfg.Review.Timezone, err)
	}
	app.srsService = srs.NewServiceWithParams(srs.NewParams(srs.ParamsConfig{
		AgainDelayMinutes: cfg.Review.AgainDelayMinutes,
		MaxIntervalDays:   cfg.Review.MaxIntervalDays,
		Location:          loc,
	}))

	app.taskQueue = task.NewTaskQueue(cfg.Task.QueueSize, logger)
	app.workerPool = task.NewWorkerPool(app.taskQueue, task.WorkerPoolConfig{
		WorkerCount: cfg.Task.WorkerCount,
	}, logger)
	app.workerPool.SetErrorHandler(func(t task.Task, err error) {
		logger.Error("background task failed",
			slog.String("task_id", t.ID().String()),
			slog.String("task_type", t.Type()),
			slog.String("error", redact.Error(err)))
	})

	retry := task.NewIngestRetryScheduler(app.taskQueue, db.store, task.RetryPolicy{
		MaxAttempts: cfg.Task.RetryMaxAttempts,
		Backoff:     cfg.Task.RetryBackoff(),
	}, logger)

	app.reviewService = review.NewService(db.store, app.srsService, clock.System(), review.Config{
		BatchSize:       cfg.Review.IngestBatchSize,
		DefaultDueLimit: cfg.Review.DefaultDueLimit,
		Retry:           retry,
	}, logger)

	app.workerPool.Start()

	logger.Info("application initialized",
		slog.String("timezone", loc.String()),
		slog.Int("ingest_batch_size", cfg.Review.IngestBatchSize),
		slog.Int("worker_count", cfg.Task.WorkerCount))
	return app, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the workers and closes the database.
func (app *application) cleanup() {
	if app.workerPool != nil {
		app.workerPool.Stop()
	}
	if app.taskQueue != nil {
		app.taskQueue.Close()
	}

	if app.db != nil {
		if err := app.db.close(); err != nil {
			app.logger.Error("error closing database connection", "error", redact.Error(err))
		}
	}

	app.logger.Info("application shutdown completed")
}
