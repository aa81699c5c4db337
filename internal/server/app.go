// Package server wires configuration, storage, background cleanup and the
// gRPC transport into the running challenge service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bily-amin/habitica/internal/logging"
	"github.com/bily-amin/habitica/internal/otelx"
	"github.com/bily-amin/habitica/internal/server/cleanup"
	"github.com/bily-amin/habitica/internal/server/config"
	"github.com/bily-amin/habitica/internal/server/notify"
	"github.com/bily-amin/habitica/internal/server/repositories/repomanager"
	"github.com/bily-amin/habitica/internal/server/services"
	"github.com/bily-amin/habitica/internal/server/storage"

	gs "github.com/bily-amin/habitica/internal/server/grpc"
)

const (
	serviceName     = "challenges"
	shutdownTimeout = 10 * time.Second
	webhookTimeout  = 5 * time.Second
)

type App struct {
	config *config.Config
	logger logging.Logger
}

func NewApp(c *config.Config) (*App, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}

	return &App{config: c, logger: logging.NewJSONLogger(os.Stdout, level)}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) notifier() notify.Notifier {
	if app.config.NotifyWebhookURL != "" {
		return notify.NewWebhookNotifier(app.config.NotifyWebhookURL, webhookTimeout)
	}
	return notify.NewLogNotifier(app.logger)
}

func (app *App) dispatcherConfig() cleanup.Config {
	return cleanup.Config{
		Workers:   app.config.CleanupWorkers,
		QueueSize: app.config.CleanupQueueSize,
		Attempts:  app.config.CleanupAttempts,
		BaseDelay: app.config.CleanupBaseDelay,
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// drains pending cleanup jobs and flushes traces.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	shutdownTracing, err := otelx.Setup(ctx, serviceName, app.config.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			app.logger.Warn(flushCtx, "trace flush failed", "error", err)
		}
	}()

	db, err := repomanager.Open(ctx, app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	store, err := storage.NewS3Store(ctx, app.config)
	if err != nil {
		return fmt.Errorf("object storage init error: %w", err)
	}

	dispatcher := cleanup.NewDispatcher(app.dispatcherConfig(), app.logger)
	dispatcher.Start()

	svc := services.NewChallengeService(db, rm, app.config, dispatcher, app.notifier(), store, app.logger)
	srv := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, svc, app.config.SecretKey)

	runErr := srv.Run(ctx)
	if runErr != nil {
		app.logger.Error(ctx, "gRPC server stopped", "error", runErr)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := dispatcher.Stop(stopCtx); err != nil {
		app.logger.Error(stopCtx, "cleanup queue not drained", "error", err, "alert", true)
	}

	app.logger.Info(stopCtx, "App stopped")
	return runErr
}
