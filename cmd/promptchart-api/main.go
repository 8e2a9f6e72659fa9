package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/promptchart/promptchart/internal/api"
	"github.com/promptchart/promptchart/internal/chart"
	"github.com/promptchart/promptchart/internal/config"
	"github.com/promptchart/promptchart/internal/dashboard"
	"github.com/promptchart/promptchart/internal/nl2sql"
	"github.com/promptchart/promptchart/internal/observability"
	"github.com/promptchart/promptchart/internal/pinned"
	pinnedpostgres "github.com/promptchart/promptchart/internal/pinned/postgres"
	"github.com/promptchart/promptchart/internal/query/sqlengine"
	"github.com/promptchart/promptchart/internal/store"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("failed to load .env file", slog.Any("error", err))
	}
	cfg, err := config.LoadFromEnv("promptchart-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	queryDB, err := store.Open(context.Background(), store.DBConfig{
		Driver:          cfg.Store.Driver,
		DSN:             cfg.Store.DSN,
		ReadOnly:        cfg.Store.Driver == config.StoreDriverDuckDB,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open query store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = queryDB.Close() }()

	readiness := []api.ReadinessCheck{pingCheck(queryDB)}

	var pinnedStore pinned.Store
	if cfg.Pinned.DSN != "" {
		pinnedDB, err := store.Open(context.Background(), store.DBConfig{
			Driver:          config.StoreDriverPostgres,
			DSN:             cfg.Pinned.DSN,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open pinned chart store", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = pinnedDB.Close() }()
		repo := pinnedpostgres.NewRepository(pinnedDB, nil)
		pinnedStore = repo
		readiness = append(readiness, repo.HealthCheck)
	} else {
		logger.Warn("pinned chart store not configured; pinned endpoints are disabled")
	}

	completer, err := nl2sql.NewHTTPCompleter(nl2sql.CompletionConfig{
		BaseURL:        cfg.Completion.BaseURL,
		Path:           cfg.Completion.Path,
		APIKey:         cfg.Completion.APIKey,
		Model:          cfg.Completion.Model,
		Timeout:        cfg.Completion.Timeout,
		MaxAttempts:    cfg.Completion.MaxAttempts,
		InitialBackoff: cfg.Completion.InitialBackoff,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("failed to initialize completion client", slog.Any("error", err))
		os.Exit(1)
	}

	generator, err := nl2sql.NewGenerator(nl2sql.GeneratorConfig{
		Schema:    nl2sql.DefaultSchema(),
		Dialect:   nl2sql.DialectForDriver(cfg.Store.Driver),
		Completer: completer,
		Options: nl2sql.CompletionOptions{
			Temperature: cfg.Completion.Temperature,
			MaxTokens:   cfg.Completion.MaxTokens,
		},
		CacheTTL:        cfg.Completion.CacheTTL,
		FeedbackRetries: cfg.Completion.FeedbackRetries,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to initialize query generator", slog.Any("error", err))
		os.Exit(1)
	}
	defer generator.Close()

	engine := sqlengine.New(queryDB, sqlengine.Config{
		Timeout:    cfg.Store.QueryTimeout,
		ReadOnlyTx: cfg.Store.Driver == config.StoreDriverPostgres,
	})

	charts, err := dashboard.New(dashboard.Config{
		ReplayTimeout:     cfg.Pinned.ReplayTimeout,
		ReplayConcurrency: cfg.Pinned.ReplayConcurrency,
		SummaryEnabled:    cfg.Completion.SummaryEnabled,
	}, dashboard.Dependencies{
		Translator: generator,
		Engine:     engine,
		Inferrer:   chart.NewInferrer(chart.Options{Strict: !cfg.Chart.LenientNumbers}),
		Pinned:     pinnedStore,
		Completer:  completer,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to initialize chart service", slog.Any("error", err))
		os.Exit(1)
	}
	defer charts.Close()

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
		Charts:            charts,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("store_driver", cfg.Store.Driver),
			slog.Bool("pinned_enabled", pinnedStore != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
	}
}

func pingCheck(db *sql.DB) api.ReadinessCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}
