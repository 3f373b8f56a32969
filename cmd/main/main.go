package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/config"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/delivery"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/deliveryworker"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/healthcheck"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/observer"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/queue"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/retryworker"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/storage"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting Lead Intake Service",
		zap.String("environment", cfg.Environment),
		zap.Int("cdp_systems", len(cfg.CDP.Systems)),
		zap.Bool("queue_enabled", cfg.Queue.Enabled),
	)

	// Initialize repository
	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	// Initialize delivery dispatcher
	dispatcher, err := delivery.NewDispatcher(postgresRepo, delivery.NewHTTPClient(), cfg.CDP, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize delivery dispatcher", zap.Error(err))
	}

	// Initialize JetStream client and delivery worker when the queue is on
	var jsClient *queue.Client
	var deliveryWorker *deliveryworker.Worker
	if cfg.Queue.Enabled {
		jsClient, err = initJetStreamClient(cfg.Queue.URL)
		if err != nil {
			logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
		}

		deliveryWorker, err = deliveryworker.NewWorker(cfg.Queue, logger.Log, jsClient, dispatcher, postgresRepo)
		if err != nil {
			logger.Log.Fatal("Failed to initialize delivery worker", zap.Error(err))
		}
	}

	// Initialize retry scheduler
	retryWorker := retryworker.NewWorker(cfg.Retry, cfg.CDP, postgresRepo, dispatcher, logger.Log)

	// Create health check server
	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.Port), logger.Log)
	healthServer.RegisterReadinessCheck("postgres", postgresRepo.Ping)
	if jsClient != nil {
		healthServer.RegisterReadinessCheck("nats", jsClient.Ready)
	}

	// Register metrics handler if enabled BEFORE starting the server
	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.Port))
	} else {
		logger.Log.Info("Metrics endpoint disabled", zap.String("environment", cfg.Environment))
	}

	healthServer.Start()

	logger.Log.Info("Health check endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.Port)),
	)

	// Start retry scheduler
	if err := retryWorker.Start(); err != nil {
		logger.Log.Fatal("Failed to start retry scheduler", zap.Error(err))
	}

	// Start delivery worker in a separate goroutine
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()
	sigChan := make(chan os.Signal, 1)
	if deliveryWorker != nil {
		go func() {
			if err := deliveryWorker.Start(mainCtx); err != nil {
				logger.Log.Error("Delivery worker failed, initiating shutdown...", zap.Error(err))
				mainCancel()
				select {
				case sigChan <- syscall.SIGTERM:
				default:
					logger.Log.Warn("Could not send SIGTERM to signal channel immediately")
				}
			}
		}()
	}

	// Wait for termination signal
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	mainCancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	var wg sync.WaitGroup
	wg.Add(4)

	// Shutdown retry scheduler
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping retry scheduler")
		start := time.Now()
		retryWorker.Stop()
		logger.Log.Info("[shutdown] Retry scheduler stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping retry scheduler",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Shutdown delivery worker and dispatcher
	utils.SafeGo(func() {
		defer wg.Done()
		if deliveryWorker != nil {
			logger.Log.Info("[shutdown] Stopping delivery worker")
			start := time.Now()
			deliveryWorker.Stop()
			logger.Log.Info("[shutdown] Delivery worker stopped",
				zap.Duration("duration", time.Since(start)))
		}
		dispatcher.Close()
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping delivery worker",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Shutdown health check server (includes metrics if enabled)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping health check server")
		start := time.Now()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] Health check server stopped",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping health check server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Close database and queue connections
	utils.SafeGo(func() {
		defer wg.Done()

		logger.Log.Info("[shutdown] Closing PostgreSQL connection")
		pgStart := time.Now()
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] PostgreSQL connection closed",
				zap.Duration("duration", time.Since(pgStart)))
		}

		if jsClient != nil {
			logger.Log.Info("[shutdown] Closing JetStream connection")
			jsStart := time.Now()
			jsClient.Close()
			logger.Log.Info("[shutdown] JetStream connection closed",
				zap.Duration("duration", time.Since(jsStart)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing connections",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Wait with a timeout for all components to shut down
	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("Lead Intake Service shutdown complete")
}

// Initialize PostgreSQL repository
func initPostgresRepo(dsn string, autoMigrate bool) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	repo, err := storage.NewPostgresRepo(dsn, autoMigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}

// initJetStreamClient initializes the JetStream delivery queue client
func initJetStreamClient(url string) (*queue.Client, error) {
	client, err := queue.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream client: %w", err)
	}
	return client, nil
}
