// cmd/sync-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"huntflow-sync/internal/bus"
	"huntflow-sync/internal/common/config"
	"huntflow-sync/internal/common/database"
	"huntflow-sync/internal/common/files"
	"huntflow-sync/internal/common/huntflow"
	"huntflow-sync/internal/common/intranet"
	"huntflow-sync/internal/common/logger"
	"huntflow-sync/internal/handlers"
	"huntflow-sync/internal/store"
	syncengine "huntflow-sync/internal/sync"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("config load failed: %v", err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting sync manager...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Case Store ---
	caseStore := store.NewPostgresStore(pg.GetDB())
	if err := caseStore.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}

	// --- Init External Service Clients ---
	trackingClient := huntflow.NewClient(cfg.Huntflow, log)
	defer trackingClient.Close()

	directoryClient := intranet.NewClient(cfg.Intranet)
	downloader := files.NewDownloader(config.GetDuration(cfg.Huntflow.Timeout))

	zapLog.Info("All external service clients initialized")

	// --- Init Service Bus with retry ---
	registry := bus.NewRegistry()
	eventHandlers := handlers.New(
		caseStore,
		trackingClient,
		directoryClient,
		downloader,
		cfg.Huntflow.Statuses,
		log,
	)
	eventHandlers.Register(registry)

	var kafkaBus *bus.KafkaBus
	err = retryWithBackoff(func() error {
		var err error
		kafkaBus, err = bus.NewKafkaBus(cfg.Bus, registry, log)
		return err
	}, 10, 2*time.Second, zapLog, "Kafka client initialization")

	if err != nil {
		zapLog.Fatal("kafka client failed after retries", zap.Error(err))
	}
	zapLog.Info("Kafka client connected successfully")

	// --- Start Event Listener ---
	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		if err := kafkaBus.Listen(ctx); err != nil {
			zapLog.Error("event listener stopped with error", zap.Error(err))
		}
	}()

	// --- Start Reconciliation Scheduler ---
	engine := syncengine.NewEngine(
		caseStore,
		trackingClient,
		kafkaBus,
		cfg.Huntflow.VacancyID,
		cfg.Huntflow.Statuses,
		log,
	)
	runLock := syncengine.NewRunLock(
		redisClient.GetClient(),
		cfg.Sync.LockKey,
		time.Duration(cfg.Sync.LockTTLSeconds)*time.Second,
	)
	scheduler := syncengine.NewScheduler(
		engine,
		runLock,
		time.Duration(cfg.Sync.IntervalMinutes)*time.Minute,
		log,
	)

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Start(ctx)
	}()
	zapLog.Info("Reconciliation scheduler started",
		zap.Int("intervalMinutes", cfg.Sync.IntervalMinutes),
	)

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	cancel()

	stopped := make(chan struct{})
	go func() {
		<-listenerDone
		<-schedulerDone
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(30 * time.Second):
		zapLog.Warn("shutdown timed out, exiting anyway")
	}

	kafkaBus.Close()

	zapLog.Info("Sync manager stopped gracefully")
}
