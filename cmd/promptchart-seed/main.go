package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/promptchart/promptchart/internal/config"
	"github.com/promptchart/promptchart/internal/demo/seed"
	"github.com/promptchart/promptchart/internal/migrations"
	"github.com/promptchart/promptchart/internal/observability"
	"github.com/promptchart/promptchart/internal/store"
)

func main() {
	migrate := flag.Bool("migrate", true, "apply pending migrations before seeding")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("failed to load .env file", slog.Any("error", err))
	}
	cfg, err := config.LoadFromEnv("promptchart-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	seedCfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, store.DBConfig{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if *migrate {
		applied, err := migrations.NewRunner().Up(ctx, db, 0)
		if err != nil {
			logger.Error("migration failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied", slog.Int("count", applied))
	}

	dataset := seed.NewGenerator(seedCfg, clockwork.NewRealClock()).Generate()
	summary, err := seed.NewLoader(db, seedCfg.BatchSize, logger).Load(ctx, dataset, seedCfg.Truncate)
	if err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seed completed",
		slog.Int("products", summary.Products),
		slog.Int("users", summary.Users),
		slog.Int("orders", summary.Orders),
		slog.Int("order_products", summary.OrderProducts),
	)
}
