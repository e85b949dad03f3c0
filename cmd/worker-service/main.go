package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/openmusic/internal/app"
	"github.com/cuongbtq/openmusic/internal/worker"
	"github.com/cuongbtq/openmusic/internal/worker/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath, "WORKER_SERVICE_CONFIG_PATH", "configs/worker-service/config.yaml")
	if err != nil {
		return err
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := app.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	errorReporter, err := app.InitReporter(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize error reporter: %w", err)
	}
	defer errorReporter.Flush(2 * time.Second)

	// Initialize PostgreSQL client
	dbClient, err := app.InitPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize RabbitMQ client
	rabbitClient, err := app.InitRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		dbClient.Close()
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	// Closed after the worker stopped, in-flight handlers still settle on them
	cleanup := func() {
		if err := rabbitClient.Close(); err != nil {
			appLogger.Error("Failed to close RabbitMQ client", slog.Any("error", err))
		}
		if err := dbClient.Close(); err != nil {
			appLogger.Error("Failed to close database client", slog.Any("error", err))
		}
	}
	defer cleanup()

	mailSender, err := app.InitMailer(&cfg.SMTP, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:        appLogger.Component("worker"),
		Store:         storage.NewStorage(dbClient.GetDB(), appLogger.Logger),
		Mailer:        mailSender,
		Broker:        rabbitClient,
		Reporter:      errorReporter,
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:    cfg.Worker.JobTimeout,
		MaxAttempts:   cfg.Export.MaxAttempts,
		ConsumerTag:   cfg.RabbitMQ.Consumer.Tag,

		ResubscribeAttempts: cfg.RabbitMQ.Connection.RetryAttempts,
		ResubscribeDelay:    cfg.RabbitMQ.Connection.RetryInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, unsettled messages will be redelivered")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}
