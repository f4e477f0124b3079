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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/renova-api/internal/access"
	"github.com/jwalitptl/renova-api/internal/config"
	authhandler "github.com/jwalitptl/renova-api/internal/handler/auth"
	clienthandler "github.com/jwalitptl/renova-api/internal/handler/client"
	"github.com/jwalitptl/renova-api/internal/handler/health"
	ownerhandler "github.com/jwalitptl/renova-api/internal/handler/owner"
	therapisthandler "github.com/jwalitptl/renova-api/internal/handler/therapist"
	"github.com/jwalitptl/renova-api/internal/middleware"
	"github.com/jwalitptl/renova-api/internal/repository"
	"github.com/jwalitptl/renova-api/internal/repository/memory"
	"github.com/jwalitptl/renova-api/internal/repository/postgres"
	"github.com/jwalitptl/renova-api/internal/router"
	"github.com/jwalitptl/renova-api/internal/service/auth"
	"github.com/jwalitptl/renova-api/internal/service/client"
	"github.com/jwalitptl/renova-api/internal/service/owner"
	"github.com/jwalitptl/renova-api/internal/service/schedule"
	"github.com/jwalitptl/renova-api/internal/service/therapist"
	"github.com/jwalitptl/renova-api/pkg/logger"
	"github.com/jwalitptl/renova-api/pkg/metrics"
	"github.com/jwalitptl/renova-api/pkg/security"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "Failed to load configuration")
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})
	log.SetGlobal()

	loc, err := cfg.Schedule.Location()
	if err != nil {
		log.Fatal(err, "Invalid schedule timezone")
	}

	ctx := context.Background()

	// Initialize storage
	store, closeStore, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal(err, "Failed to initialize storage")
	}
	defer closeStore()

	// Metrics live on a private registry served at /metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg, "renova", "api")

	if err := middleware.RegisterValidators(); err != nil {
		log.Fatal(err, "Failed to register validators")
	}

	var encryptor security.Encryptor
	if cfg.Auth.FieldKey != "" {
		if encryptor, err = security.NewAESEncryptor([]byte(cfg.Auth.FieldKey)); err != nil {
			log.Fatal(err, "Failed to create field encryptor")
		}
	}

	// Initialize services
	tokens := access.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	resolver := access.NewResolver(store, tokens)
	authSvc := auth.NewService(store, security.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, encryptor, schedule.SystemClock, log)
	clientSvc := client.NewService(schedule.SystemClock, loc, m, log)
	therapistSvc := therapist.NewService(schedule.SystemClock, loc, m, log)
	ownerSvc := owner.NewService(log)

	// Setup router
	r := router.NewRouter(router.RouterConfig{
		Mode:             cfg.Server.Mode,
		MetricsPrefix:    "renova_http",
		Registerer:       reg,
		Gatherer:         reg,
		RequestTimeout:   cfg.Server.RequestTimeout,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit: middleware.RateLimiterConfig{
			Rate:    rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst:   cfg.RateLimit.Burst,
			IdleTTL: cfg.RateLimit.IdleTTL,
		},
		Security:  middleware.SecurityConfigFor(cfg.Auth.CookieSecure),
		SizeLimit: middleware.DefaultSizeLimitConfig(),
	}, []router.Handler{
		health.NewHandler(store),
		authhandler.NewHandler(authSvc, tokens.TTL(), cfg.Auth.CookieSecure),
	}, []router.Handler{
		clienthandler.NewHandler(clientSvc, resolver, loc),
		therapisthandler.NewHandler(therapistSvc, resolver, loc),
		ownerhandler.NewHandler(ownerSvc, resolver),
	})
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
		log.Info("Starting server", "addr", srv.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}

	log.Info("Server exited properly")
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (repository.Store, func(), error) {
	if cfg.Driver == "memory" {
		log.Warn("Using in-memory storage; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.AutoMigrate {
		if err := migrate(connectCtx, cfg); err != nil {
			return nil, nil, err
		}
		log.Info("Database schema is up to date")
	}

	db, err := postgres.NewDB(connectCtx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewStore(db), func() { db.Close() }, nil
}

// migrate runs on its own connection since closing the migrator closes it.
func migrate(ctx context.Context, cfg config.DatabaseConfig) error {
	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return err
	}
	m, err := postgres.NewMigrator(db)
	if err != nil {
		db.Close()
		return err
	}
	defer func() { _, _ = m.Close() }()
	return postgres.MigrateUp(m)
}
