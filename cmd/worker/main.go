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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jwalitptl/renova-api/internal/config"
	"github.com/jwalitptl/renova-api/internal/email"
	"github.com/jwalitptl/renova-api/internal/handler"
	"github.com/jwalitptl/renova-api/internal/handler/health"
	"github.com/jwalitptl/renova-api/internal/notify"
	"github.com/jwalitptl/renova-api/internal/repository/postgres"
	"github.com/jwalitptl/renova-api/pkg/logger"
	"github.com/jwalitptl/renova-api/pkg/messaging"
	"github.com/jwalitptl/renova-api/pkg/messaging/redis"
	"github.com/jwalitptl/renova-api/pkg/metrics"
	"github.com/jwalitptl/renova-api/pkg/worker"
)

func setupHealthCheck(port int, store health.Pinger, reg prometheus.Gatherer, log *logger.Logger) *http.Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(store).RegisterRoutes(engine.Group(""))
	engine.GET("/metrics", handler.MetricsHandler(reg))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "Failed to load config")
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	}).With("worker")
	log.SetGlobal()

	if cfg.Database.Driver != "postgres" {
		log.Fatal(fmt.Errorf("unsupported driver %q", cfg.Database.Driver), "The worker reads the outbox from PostgreSQL")
	}

	loc, err := cfg.Schedule.Location()
	if err != nil {
		log.Fatal(err, "Invalid schedule timezone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := postgres.NewDB(connectCtx, cfg.Database)
	connectCancel()
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	store := postgres.NewStore(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg, "renova", "worker")

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:              cfg.Redis.URL,
		MaxRetries:       cfg.Redis.MaxRetries,
		PoolSize:         cfg.Redis.PoolSize,
		MinIdleConns:     cfg.Redis.MinIdleConns,
		BreakerFailures:  cfg.Redis.BreakerFailures,
		BreakerOpenDelay: cfg.Redis.BreakerOpenDelay,
	}, log, m)
	if err != nil {
		log.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	processor, err := worker.NewOutboxProcessor(store, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		MaxRetries:    cfg.Outbox.MaxRetries,
	}, log.With("outbox"), m)
	if err != nil {
		log.Fatal(err, "Invalid outbox configuration")
	}

	// Appointment e-mails are sent from the published events
	notifier := notify.NewService(store, email.New(cfg.Mail, log), loc, log, m)
	if err := notifier.Start(ctx, messaging.NewBrokerAdapter(broker, log)); err != nil {
		log.Fatal(err, "Failed to subscribe to appointment events")
	}

	healthSrv := setupHealthCheck(cfg.Outbox.HealthPort, store, reg, log)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down...")
		cancel()
	}()

	processor.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Health check server forced to shutdown")
	}
}
