package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/odontogram-api/internal/config"
	"github.com/jwalitptl/odontogram-api/internal/handler/health"
	prometheusHandler "github.com/jwalitptl/odontogram-api/internal/handler/prometheus"
	"github.com/jwalitptl/odontogram-api/internal/repository/postgres"
	"github.com/jwalitptl/odontogram-api/pkg/logger"
	"github.com/jwalitptl/odontogram-api/pkg/messaging/redis"
	"github.com/jwalitptl/odontogram-api/pkg/metrics"
	"github.com/jwalitptl/odontogram-api/pkg/worker"
)

const healthPort = 8081

// setupHealthCheck serves liveness, readiness and metrics for the relay.
func setupHealthCheck(db health.Pinger, registry *prometheus.Registry, m *metrics.Metrics, appLogger *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	health.NewHandler(map[string]health.Pinger{"database": db}).RegisterRoutes(engine)
	engine.GET("/metrics", prometheusHandler.New(registry, m).Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", healthPort),
		Handler: engine,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	_ = godotenv.Load()

	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	}).WithFields(map[string]interface{}{"component": "outbox-relay"})
	log.Logger = *appLogger.Zerolog()

	if cfg.Backend != config.BackendPostgres {
		appLogger.Warn("outbox relay only runs against the postgres backend", "backend", cfg.Backend)
		return
	}

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(cfg.ToBrokerConfig(), appLogger.Zerolog())
	if err != nil {
		appLogger.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	registry := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(registry, "odonto")

	// Initialize repositories
	baseRepo := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)

	// Initialize and start outbox processor
	processor, err := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		cfg.Outbox.ToWorkerConfig(cfg.Redis.Channel),
		appLogger,
		appMetrics,
	)
	if err != nil {
		appLogger.Fatal(err, "Invalid outbox configuration")
	}

	// Setup health check endpoints
	healthSrv := setupHealthCheck(health.PingFunc(db.PingContext), registry, appMetrics, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("Shutting down...")
		cancel()
	}()

	processor.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "Health server forced to shutdown")
	}
}
