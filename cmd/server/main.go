package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/contact-relay/api/openapi"
	"github.com/benvon/contact-relay/internal/config"
	"github.com/benvon/contact-relay/internal/handlers"
	"github.com/benvon/contact-relay/internal/logger"
	"github.com/benvon/contact-relay/internal/mailer"
	"github.com/benvon/contact-relay/internal/metrics"
	"github.com/benvon/contact-relay/internal/middleware"
	"github.com/benvon/contact-relay/internal/queue"
	"github.com/benvon/contact-relay/internal/ratelimit"
	"github.com/benvon/contact-relay/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "contact-relay"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		// stderr sync errors are expected on some platforms
		_ = logger.Sync(zapLogger)
	}()

	missing := cfg.Mail.MissingKeys()
	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.Strings("allowed_origins", middleware.AllowedOrigins(cfg.FrontendURL)),
		zap.String("ratelimit_store", cfg.RateLimitStore),
		zap.Bool("backup_recipient", cfg.Mail.ToBackup != ""),
		zap.Strings("missing_mail_keys", missing),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)
	if len(missing) > 0 {
		zapLogger.Warn("mail_transport_not_configured", zap.Strings("missing", missing))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(ctx, telemetry.Options{
				ServiceName:    serviceName,
				ServiceVersion: handlers.Version,
				Endpoint:       cfg.OTELEndpoint,
				Insecure:       cfg.OTELInsecure,
				SampleRatio:    cfg.OTELSampleRatio,
			})
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	healthChecker := handlers.NewHealthChecker(cfg.Mail)

	// Redis is optional; it backs the contact limiter and the global limiter
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = ratelimit.NewRedisClient(cfg.RedisURL)
		if err != nil {
			if cfg.RateLimitStore == config.RateLimitStoreRedis {
				zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
			}
			zapLogger.Warn("redis_unavailable_using_memory_stores", zap.Error(err))
			redisClient = nil
		} else {
			zapLogger.Info("connected_to_redis")
			defer func() {
				if err := redisClient.Close(); err != nil {
					zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
				}
			}()
			healthChecker.AddCheck("redis", func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			})
		}
	}

	var limiter ratelimit.Limiter
	switch cfg.RateLimitStore {
	case config.RateLimitStoreRedis:
		limiter = ratelimit.NewRedisLimiter(redisClient, ratelimit.Options{})
	default:
		memLimiter := ratelimit.NewMemoryLimiter(ratelimit.Options{})
		go memLimiter.Start(ctx, 0)
		limiter = memLimiter
	}
	zapLogger.Info("contact_rate_limiter_ready",
		zap.String("store", cfg.RateLimitStore),
		zap.Duration("window", ratelimit.DefaultWindow),
		zap.Int("max_requests", ratelimit.DefaultMaxRequests),
	)

	// RabbitMQ is optional; without it no completion events are published
	contactOpts := []handlers.ContactOption{}
	if cfg.RabbitMQURL != "" {
		bus, err := queue.ConnectWithRetry(ctx, cfg.RabbitMQURL, queue.DefaultRetryPolicy, zapLogger)
		if err != nil {
			zapLogger.Error("failed_to_connect_to_rabbitmq_events_disabled", zap.Error(err))
		} else {
			zapLogger.Info("connected_to_rabbitmq")
			defer func() {
				if err := bus.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
			contactOpts = append(contactOpts, handlers.WithPublisher(bus))
			healthChecker.AddCheck("rabbitmq", bus.HealthCheck)
		}
	}

	// a nil *SMTPTransport must not become a non-nil interface
	var transport mailer.Transport
	if smtpTransport := mailer.NewTransportFromConfig(cfg.Mail); smtpTransport != nil {
		transport = smtpTransport
	}

	contactHandler := handlers.NewContactHandler(limiter, cfg.Mail, transport, zapLogger, contactOpts...)

	var openAPIHandler *handlers.OpenAPIHandler
	if cfg.OpenAPIPath != "" {
		openAPIHandler, err = handlers.NewOpenAPIHandlerFromFile(cfg.OpenAPIPath)
	} else {
		openAPIHandler, err = handlers.NewOpenAPIHandler(openapi.Document)
	}
	if err != nil {
		zapLogger.Fatal("failed_to_load_openapi_document", zap.Error(err))
	}

	globalRateLimit, err := middleware.GlobalRateLimit(cfg.GlobalRateLimit, redisClient, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_global_rate_limit", zap.Error(err))
	}

	if cfg.MetricsEnabled {
		metrics.RegisterDefault(zapLogger)
	}

	zapLogger.Info("setting_up_middleware")
	r := newRouter(routerConfig{
		logger:          zapLogger,
		frontendURL:     cfg.FrontendURL,
		enableHSTS:      cfg.EnableHSTS,
		tracing:         tracingEnabled,
		metrics:         cfg.MetricsEnabled,
		globalRateLimit: globalRateLimit,
		contact:         contactHandler,
		health:          healthChecker,
		openAPI:         openAPIHandler,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// room for a primary and a backup SMTP attempt
		WriteTimeout:   middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
