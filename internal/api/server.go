package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"growth-screener/config"
	"growth-screener/internal/backtest"
	"growth-screener/internal/cache"
	"growth-screener/internal/database"
	"growth-screener/internal/logging"
	"growth-screener/internal/market"
	"growth-screener/internal/montecarlo"
	"growth-screener/internal/screener"
)

// RunStore reads stored backtest runs.
type RunStore interface {
	GetBacktestRun(ctx context.Context, id string) (*database.BacktestRun, error)
	ListBacktestRuns(ctx context.Context, symbol string, limit int) ([]database.BacktestRun, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies are the services behind the API. Source, Analyzer and
// Backtests are required; the rest may be nil.
type Dependencies struct {
	Source          market.DataSource
	Analyzer        *screener.Analyzer
	Backtests       *backtest.Backtest
	Runs            RunStore
	Database        HealthChecker
	Cache           *cache.CacheService
	SimulationCache *cache.SimulationCache
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     config.ServerConfig
	engines    config.Engines
	deps       Dependencies
	simulator  *montecarlo.Engine
	logger     zerolog.Logger
	startedAt  time.Time
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, engines config.Engines, deps Dependencies, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "api").Logger()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware(logger))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	s := &Server{
		router:    router,
		config:    cfg,
		engines:   engines,
		deps:      deps,
		simulator: montecarlo.NewEngine(montecarlo.WithLogger(logger)),
		logger:    logger,
		startedAt: time.Now(),
	}
	s.setupRoutes()
	return s
}

// corsConfig allows every origin for "*" or an empty list, otherwise the
// comma-separated origins given.
func corsConfig(allowed string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", logging.TraceHeader}
	c.ExposeHeaders = []string{"Content-Length", logging.TraceHeader}

	var origins []string
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" && o != "*" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")

	v1.GET("/health", s.handleHealth)

	// Stateless engines
	v1.POST("/patterns", s.handlePatterns)
	v1.POST("/levels", s.handleLevels)
	v1.POST("/simulate", s.handleSimulate)
	v1.POST("/valuation", s.handleValuation)
	v1.POST("/checklist", s.handleChecklist)
	v1.POST("/position-size", s.handlePositionSize)
	v1.POST("/options/price", s.handleOptionPrice)
	v1.POST("/options/curve", s.handleOptionCurve)

	// Backtests
	v1.POST("/backtest", s.handleRunBacktest)
	v1.POST("/backtest/batch", s.handleRunBacktestBatch)
	v1.GET("/backtest/strategies", s.handleListStrategies)
	v1.GET("/backtests", s.handleListBacktests)
	v1.GET("/backtests/:id", s.handleGetBacktest)

	// Per-symbol analysis
	v1.GET("/analysis/:symbol", s.handleAnalysis)
	v1.POST("/screen", s.handleScreen)
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  seconds(s.config.ReadTimeout, 15),
		WriteTimeout: seconds(s.config.WriteTimeout, 15),
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

// handleHealth reports server, database and cache status with the cache
// circuit breaker counters. Only an unreachable database makes the server
// unhealthy; the cache is optional.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{
		"status":   "healthy",
		"uptime":   time.Since(s.startedAt).Round(time.Second).String(),
		"database": "disabled",
		"cache":    "disabled",
	}

	if s.deps.Cache != nil {
		stats := s.deps.Cache.GetStats()
		body["cache"] = "unhealthy"
		if stats.Healthy {
			body["cache"] = "healthy"
		}
		body["cache_stats"] = stats
	}

	if s.deps.Database != nil {
		if err := s.deps.Database.HealthCheck(ctx); err != nil {
			body["status"] = "unhealthy"
			body["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "healthy"
	}

	c.JSON(http.StatusOK, body)
}
