// Package server initializes and runs the garden sync server. It wires the
// PostgreSQL document store, the S3 photo store and the streak bookkeeping
// into per-owner engines, handles graceful shutdown, and runs the periodic
// background refresh sweep.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/verdora/gardensync/internal/garden/engine"
	"github.com/verdora/gardensync/internal/garden/images"
	"github.com/verdora/gardensync/internal/garden/notify"
	"github.com/verdora/gardensync/internal/garden/repositories/repomanager"
	"github.com/verdora/gardensync/internal/garden/streaks"
	"github.com/verdora/gardensync/internal/logging"
	"github.com/verdora/gardensync/internal/server/config"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	manager   *engine.Manager
	refresher *engine.Refresher
}

func NewApp(c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("repo manager init error: %w", err)
	}
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	plantRepo := rm.Plants(db)
	achievementRepo := rm.Achievements(db)

	photoStore, err := images.NewS3Store(context.Background(), images.S3Config{
		RootUser:     c.S3RootUser,
		RootPassword: c.S3RootPassword,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("photo store init error: %w", err)
	}

	streakSvc := streaks.NewService(achievementRepo, logger)
	notifier := notify.NewNotifier(notify.NewLogPusher(logger), logger)

	manager := engine.NewManager(plantRepo, photoStore, streakSvc, notifier, logger)
	refresher := engine.NewRefresher(manager, plantRepo, streakSvc, c.RefreshInterval, logger)

	return &App{config: c, logger: logger, db: db, manager: manager, refresher: refresher}, nil
}

// Manager exposes the per-owner engine vendor for transport layers.
func (app *App) Manager() *engine.Manager {
	return app.manager
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.refresher.Run(ctx); err != nil && ctx.Err() == nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	app.manager.Cleanup()
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}
}
