package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"

	"github.com/jwalitptl/renova-api/internal/config"
	"github.com/jwalitptl/renova-api/internal/repository/postgres"
	"github.com/jwalitptl/renova-api/pkg/logger"
)

// usage: migrate [up | down | force <version> | version]
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "Failed to load configuration")
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	}).With("migrate")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}

	m, err := postgres.NewMigrator(db)
	if err != nil {
		log.Fatal(err, "Failed to create migrator")
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		if err := postgres.MigrateUp(m); err != nil {
			log.Fatal(err, "Migration failed")
		}
	case "down":
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal(err, "Rollback failed")
		}
	case "force":
		if len(os.Args) < 3 {
			log.Fatal(errors.New("missing version"), "Usage: migrate force <version>")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatal(err, "Invalid version")
		}
		if err := m.Force(version); err != nil {
			log.Fatal(err, "Force version failed")
		}
	case "version":
	default:
		log.Fatal(errors.New(cmd), "Unknown command")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatal(err, "Failed to read schema version")
	}
	log.Info("Schema ready", "version", version, "dirty", dirty)
}
