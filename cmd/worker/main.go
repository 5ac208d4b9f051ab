package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/benvon/contact-relay/internal/config"
	"github.com/benvon/contact-relay/internal/logger"
	"github.com/benvon/contact-relay/internal/queue"
	"github.com/benvon/contact-relay/internal/workers"
	"go.uber.org/zap"
)

// tallyRetention is how many days of per-day tallies the worker keeps
const tallyRetention = 30 * 24 * time.Hour

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup happens first
func run() int {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger("contact-relay-worker", debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("rabbitmq_url_not_configured")
	}

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, err := queue.ConnectWithRetry(ctx, cfg.RabbitMQURL, queue.DefaultRetryPolicy, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := bus.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	recorder := workers.NewEventRecorder(zapLogger)
	gc := queue.NewGarbageCollector(bus, 0, 0, zapLogger)

	var wg sync.WaitGroup
	var consumerLost atomic.Bool

	wg.Add(1)
	go func() {
		defer wg.Done()
		// the recorder only returns early when the broker drops the consumer
		if err := recorder.Run(ctx, bus, cfg.RabbitMQPrefetch); !errors.Is(err, context.Canceled) {
			zapLogger.Error("event_recorder_stopped", zap.Error(err))
			consumerLost.Store(true)
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dlq_gc_stopped", zap.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				yesterday := recorder.Tally(now.UTC().AddDate(0, 0, -1).Format(time.DateOnly))
				zapLogger.Info("contact_tally",
					zap.String("day", yesterday.Day),
					zap.Int("total", yesterday.Total),
					zap.Int("backup", yesterday.Backup),
					zap.Int("retried", yesterday.Retried),
				)
				if dropped := recorder.Forget(now.Add(-tallyRetention)); dropped > 0 {
					zapLogger.Debug("tallies_forgotten", zap.Int("days", dropped))
				}
			}
		}
	}()

	zapLogger.Info("worker_started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zapLogger.Info("shutdown_signal_received")
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()

	if consumerLost.Load() {
		zapLogger.Error("worker_stopped_consumer_lost")
		return 1
	}
	zapLogger.Info("worker_stopped")
	return 0
}
