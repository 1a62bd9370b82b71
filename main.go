package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"growth-screener/config"
	"growth-screener/internal/api"
	"growth-screener/internal/backtest"
	"growth-screener/internal/cache"
	"growth-screener/internal/database"
	"growth-screener/internal/logging"
	"growth-screener/internal/market"
	"growth-screener/internal/screener"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default $SCREENER_CONFIG or config.yaml)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		defaultLogger := logging.Default()
		defaultLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize structured logging
	logCfg := cfg.Logging
	logCfg.Component = "main"
	logger := logging.New(&logCfg)
	logging.SetDefault(logger)
	logger.Info().Str("level", logCfg.Level).Msg("Structured logging initialized")

	ctx := context.Background()

	// Persistence is optional; without it history must be sent inline
	var (
		source market.DataSource = market.StaticSource{}
		deps   api.Dependencies
		repo   *database.Repository
	)
	if cfg.Database.Enabled {
		db, err := database.NewDB(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}

		repo = database.NewRepository(db)
		source = repo
		deps.Runs = repo
		deps.Database = repo
	} else {
		logger.Warn().Msg("Database disabled: symbol lookups will fail, send bars inline")
	}

	// Simulation cache degrades to direct computation when Redis is down
	var simCache *cache.SimulationCache
	if cfg.Redis.Enabled {
		svc, err := cache.NewCacheService(cfg.Redis, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize cache")
		}
		defer svc.Close()
		simCache = cache.NewSimulationCache(svc, time.Duration(cfg.Redis.TTLMinutes)*time.Minute, logger)
		deps.Cache = svc
	}
	deps.SimulationCache = simCache

	analyzerOpts := []screener.Option{
		screener.WithLogger(logger),
		screener.WithSimulationCache(simCache),
	}
	var store backtest.ResultStore
	if repo != nil {
		analyzerOpts = append(analyzerOpts, screener.WithReportStore(repo))
		store = repo
	}

	deps.Source = source
	deps.Analyzer = screener.NewAnalyzer(source, cfg.Engines, analyzerOpts...)
	deps.Backtests = backtest.NewBacktest(source, store, cfg.Engines.Backtest, logger)

	server := api.NewServer(cfg.Server, cfg.Engines, deps, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start web server")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.Server))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down web server")
	}

	logger.Info().Msg("Shutdown complete")
}

func shutdownTimeout(s config.ServerConfig) time.Duration {
	if s.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.ShutdownTimeout) * time.Second
}
