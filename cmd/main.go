package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/mstgnz/multipay/handler"
	"github.com/mstgnz/multipay/infra/config"
	"github.com/mstgnz/multipay/infra/logger"
	"github.com/mstgnz/multipay/infra/metrics"
	"github.com/mstgnz/multipay/infra/middle"
	"github.com/mstgnz/multipay/infra/opensearch"
	"github.com/mstgnz/multipay/infra/redis"
	"github.com/mstgnz/multipay/provider"
	"github.com/mstgnz/multipay/provider/jibit"
	"github.com/mstgnz/multipay/router"
	v1 "github.com/mstgnz/multipay/router/v1"
	goredis "github.com/redis/go-redis/v9"

	// Import for side-effect registration
	_ "github.com/mstgnz/multipay/provider/digipay"
	_ "github.com/mstgnz/multipay/provider/novinpal"
	_ "github.com/mstgnz/multipay/provider/paystar"
	_ "github.com/mstgnz/multipay/provider/poolam"
)

const version = "1.0.0"

func main() {
	// .env is optional, real deployments use the environment
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// OpenSearch client, event logger and log sink
	var osClient *opensearch.Client
	var eventLogger *opensearch.Logger
	var sink logger.Sink
	if cfg.EnableOpenSearch {
		osClient, err = opensearch.NewClient(cfg)
		if err != nil {
			osClient = nil
			fmt.Fprintf(os.Stderr, "opensearch: %v, continuing without it\n", err)
		} else {
			eventLogger = opensearch.NewLogger(osClient)
			sink = eventLogger
			if err := osClient.SetupIndices(ctx, provider.DefaultRegistry.Names()); err != nil {
				fmt.Fprintf(os.Stderr, "opensearch indices: %v\n", err)
			}
		}
	}

	logger.InitGlobalLogger(logger.SystemLoggerConfig{
		EnableConsole:    true,
		EnableOpenSearch: sink != nil,
		MinLevel:         logger.ParseLevel(cfg.LogLevel),
		Format:           cfg.LogFormat,
		Service:          "multipay",
		Version:          version,
		Environment:      cfg.Environment,
	}, sink)

	// Driver settings: SQLite when configured, then the environment on top
	var storage *config.SQLiteStorage
	if cfg.SQLitePath != "" {
		storage, err = config.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("Failed to open driver settings database", err, logger.LogContext{
				Fields: map[string]any{"path": cfg.SQLitePath},
			})
		}
		defer storage.Close()
	}

	settings := config.NewProviderConfig(storage)
	for _, name := range provider.DefaultRegistry.Names() {
		fields, err := provider.DefaultRegistry.RequiredConfig(name)
		if err != nil {
			continue
		}
		keys := make([]string, 0, len(fields))
		for _, field := range fields {
			keys = append(keys, field.Key)
		}
		if settings.LoadFromEnv(name, keys) {
			logger.Info("Driver configured from environment", logger.LogContext{Provider: name})
		}
	}

	checks := map[string]handler.HealthCheck{}

	// Redis backs the Jibit access token cache so every instance shares it
	if cfg.RedisAddr != "" {
		redisClient, err := redis.NewClient(ctx, cfg)
		if err != nil {
			logger.Warn("Redis unavailable, using in-memory token store", logger.LogContext{
				Fields: map[string]any{"addr": cfg.RedisAddr, "error": err.Error()},
			})
		} else {
			defer redisClient.Close()
			jibit.UseTokenStore(jibit.NewRedisTokenStore(redisClient))
			checks["redis"] = redisCheck(redisClient)
		}
	}

	if osClient != nil {
		checks["opensearch"] = osClient.Ping
	}

	var m *metrics.Metrics
	serviceOpts := []provider.ServiceOption{}
	if cfg.EnableMetrics {
		m = metrics.New("multipay", nil)
		serviceOpts = append(serviceOpts, provider.WithMetrics(m))
	}
	if eventLogger != nil {
		serviceOpts = append(serviceOpts, provider.WithPaymentLogger(eventLogger))
	}
	paymentService := provider.NewPaymentService(provider.DefaultRegistry, settings, serviceOpts...)

	handlers := v1.Handlers{
		Payment: handler.NewPaymentHandler(paymentService, config.App().Validator),
		Config:  handler.NewConfigHandler(settings, provider.DefaultRegistry),
	}
	if eventLogger != nil {
		handlers.Logs = handler.NewLogsHandler(eventLogger)
	}

	var rateLimiter *middle.RateLimiter
	if cfg.RateLimit > 0 {
		rateLimiter = middle.NewRateLimiter(cfg.RateLimit, time.Minute)
		go rateLimiter.Run(ctx)
	}

	if len(cfg.APIKeys) == 0 {
		logger.Warn("MULTIPAY_API_KEYS is not set, /v1 is unauthenticated")
	}

	// Chi Define Routes
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middle.APIKeyHeader, middle.RequestIDHeader},
		ExposedHeaders:   []string{"Content-Length", middle.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Routes(r, router.Options{
		APIKeys:     cfg.APIKeys,
		AllowedIPs:  cfg.AllowedIPs,
		RateLimiter: rateLimiter,
		Metrics:     m,
		Health:      handler.NewHealthHandler(paymentService, settings, version, cfg.Environment, checks),
		V1:          handlers,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", err)
		}
	}()

	logger.Info("API is running", logger.LogContext{
		Fields: map[string]any{
			"port":       cfg.Port,
			"drivers":    provider.DefaultRegistry.Names(),
			"configured": settings.Names(),
		},
	})

	// Block until a signal is received
	<-ctx.Done()

	logger.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
}

func redisCheck(client *goredis.Client) handler.HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
