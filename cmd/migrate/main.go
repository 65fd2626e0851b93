package main

import (
	"context"
	"flag"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"example.com/gymassistant/internal/config"
	"example.com/gymassistant/internal/observability"
	persistence "example.com/gymassistant/internal/persistence/postgres"
)

func main() {
	flag.Parse()
	direction := flag.Arg(0)
	if direction == "" {
		direction = "up"
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat).WithField("direction", direction)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	switch direction {
	case "up":
		err = persistence.Migrate(ctx, pool)
	case "down":
		err = persistence.MigrateDown(ctx, pool)
	default:
		logger.Fatal("usage: migrate [up|down]")
	}
	if err != nil {
		logger.WithError(err).Fatal("migration failed")
	}
	logger.Info("migrations applied")
}
