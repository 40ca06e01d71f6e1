package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/odontogram-api/internal/config"
	"github.com/jwalitptl/odontogram-api/internal/handler/health"
	odontogramHandler "github.com/jwalitptl/odontogram-api/internal/handler/odontogram"
	prometheusHandler "github.com/jwalitptl/odontogram-api/internal/handler/prometheus"
	"github.com/jwalitptl/odontogram-api/internal/middleware"
	"github.com/jwalitptl/odontogram-api/internal/odontogram"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	"github.com/jwalitptl/odontogram-api/internal/repository/cached"
	"github.com/jwalitptl/odontogram-api/internal/repository/ords"
	"github.com/jwalitptl/odontogram-api/internal/repository/postgres"
	"github.com/jwalitptl/odontogram-api/internal/router"
	eventService "github.com/jwalitptl/odontogram-api/internal/service/event"
	"github.com/jwalitptl/odontogram-api/pkg/logger"
	"github.com/jwalitptl/odontogram-api/pkg/messaging"
	"github.com/jwalitptl/odontogram-api/pkg/messaging/redis"
	"github.com/jwalitptl/odontogram-api/pkg/metrics"
)

func main() {
	// Optional .env for local runs
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize logger
	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	})
	log.Logger = *appLogger.Zerolog()

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(registry, "odonto")

	// Initialize the clinical backend and the event emitter that goes with it
	var (
		backend repository.Backend
		emitter odontogram.Emitter
		checks  = map[string]health.Pinger{}
		cleanup []func()
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		cleanup = append(cleanup, func() { db.Close() })

		base := postgres.NewBaseRepository(db)
		backend = postgres.NewBackend(base)
		// Events are written to the outbox and relayed by cmd/worker.
		emitter = eventService.NewOutboxEmitter(postgres.NewOutboxRepository(base), appLogger)
		checks["database"] = health.PingFunc(db.PingContext)

	default:
		client := ords.NewClient(ords.Config{
			BaseURL:         cfg.ORDS.BaseURL,
			Timeout:         cfg.ORDS.Timeout,
			BearerToken:     cfg.ORDS.BearerToken,
			BreakerFailures: cfg.ORDS.BreakerFailures,
			BreakerCooldown: cfg.ORDS.BreakerCooldown,
		}, appMetrics, appLogger)
		backend = ords.NewBackend(client)
		checks["ords"] = client

		// There is no outbox table on the ORDS side, so events are published directly.
		broker, err := redis.NewRedisBroker(cfg.ToBrokerConfig(), appLogger.Zerolog())
		if err != nil {
			appLogger.Warn("redis unavailable, events stay in process", "error", err.Error())
			broker = messaging.NewMemoryBroker()
		}
		cleanup = append(cleanup, func() { broker.Close() })
		emitter = eventService.NewBrokerEmitter(broker, cfg.Redis.Channel, appLogger)
	}
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// Suggestions come from a read-only catalog; cache them per finding type
	backend.Catalog = cached.NewCatalogRepository(backend.Catalog, cfg.Cache.SuggestionTTL, appMetrics)

	// Initialize services
	service := odontogram.NewService(backend, emitter, appMetrics, appLogger, odontogram.Config{
		Resolution: odontogram.ParseResolution(cfg.Odontogram.SurfaceResolution),
	})

	// Initialize middleware
	if err := middleware.RegisterBindingValidators(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}
	sessionMiddleware := middleware.NewSessionMiddleware(middleware.SessionConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Disabled: cfg.JWT.Disabled,
	})
	if cfg.JWT.Disabled {
		appLogger.Warn("session tokens disabled, trusting X-Usuario-ID and X-Empresa-ID headers")
	}

	// Setup router
	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.Origins = cfg.Server.CORSOrigins
	}
	routerConfig := router.RouterConfig{
		CORSConfig:     corsConfig,
		RequestTimeout: cfg.Server.RequestTimeout,
		ReleaseMode:    cfg.Environment == "production",
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
	}
	r := router.NewRouter(
		sessionMiddleware,
		odontogramHandler.NewHandler(service),
		health.NewHandler(checks),
		prometheusHandler.New(registry, appMetrics),
		routerConfig,
	)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		appLogger.Info("starting server", "port", cfg.Server.Port, "backend", cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server exited properly")
}
