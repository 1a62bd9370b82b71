package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"growth-screener/config"
	"growth-screener/internal/analysis"
	"growth-screener/internal/cache"
	"growth-screener/internal/checklist"
	"growth-screener/internal/market"
	"growth-screener/internal/montecarlo"
	"growth-screener/internal/options"
	"growth-screener/internal/patterns"
	"growth-screener/internal/risk"
	"growth-screener/internal/valuation"
)

// seriesRequest carries either inline bars or a symbol to load from the
// data source. Inline bars win when both are given.
type seriesRequest struct {
	Symbol string            `json:"symbol"`
	Bars   []market.PriceBar `json:"bars"`
}

// dataset resolves the request into a dataset. With requireSeries the
// dataset is guaranteed to carry a series.
func (s *Server) dataset(ctx context.Context, req seriesRequest, requireSeries bool) (*market.Dataset, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	if len(req.Bars) > 0 {
		series, err := market.NewPriceSeries(symbol, req.Bars)
		if err != nil {
			return nil, err
		}
		return &market.Dataset{Series: series}, nil
	}
	if symbol == "" {
		if requireSeries {
			return nil, badRequest("bars or symbol is required")
		}
		return &market.Dataset{}, nil
	}
	if s.deps.Source == nil {
		return nil, badRequest("no data source configured: send bars inline")
	}

	ds, err := s.deps.Source.Fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if requireSeries && ds.Series == nil {
		return nil, market.ErrEmptySeries
	}
	return ds, nil
}

type patternsRequest struct {
	seriesRequest
	Window   int `json:"window"`
	Lookback int `json:"lookback"` // 0 scans the whole series
}

// handlePatterns detects candlestick patterns
// POST /api/v1/patterns
func (s *Server) handlePatterns(c *gin.Context) {
	var req patternsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ds, err := s.dataset(c.Request.Context(), req.seriesRequest, true)
	if err != nil {
		writeError(c, err)
		return
	}

	window := req.Window
	if window == 0 {
		window = s.engines.Patterns.Window
	}
	detector, err := patterns.NewDetector(window)
	if err != nil {
		writeError(c, err)
		return
	}

	var matches []patterns.Match
	if req.Lookback > 0 {
		matches, err = detector.Recent(ds.Series, req.Lookback)
	} else {
		matches, err = detector.Detect(ds.Series)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if matches == nil {
		matches = []patterns.Match{}
	}

	successResponse(c, gin.H{
		"symbol":  ds.Series.Symbol(),
		"window":  detector.Window(),
		"bars":    ds.Series.Len(),
		"matches": matches,
	})
}

type levelsRequest struct {
	seriesRequest
	Tolerance float64              `json:"tolerance"`
	TopK      int                  `json:"top_k"`
	Source    analysis.PriceSource `json:"source"`
}

// handleLevels clusters support and resistance levels
// POST /api/v1/levels
func (s *Server) handleLevels(c *gin.Context) {
	var req levelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	switch req.Source {
	case "", analysis.SourceClose, analysis.SourceHighLow:
	default:
		errorResponse(c, http.StatusBadRequest, "source must be close or high_low")
		return
	}

	ds, err := s.dataset(c.Request.Context(), req.seriesRequest, true)
	if err != nil {
		writeError(c, err)
		return
	}

	cfg := s.engines.Levels
	if req.Tolerance != 0 {
		cfg.Tolerance = req.Tolerance
	}
	if req.TopK > 0 {
		cfg.TopK = req.TopK
	}
	if req.Source != "" {
		cfg.Source = req.Source
	}

	levels, err := analysis.ClusterLevels(ds.Series, cfg)
	if err != nil {
		writeError(c, err)
		return
	}

	successResponse(c, gin.H{
		"symbol":     ds.Series.Symbol(),
		"last_close": ds.Series.Last().Close,
		"levels":     levels,
	})
}

type simulateRequest struct {
	seriesRequest
	Config       *config.MonteCarloOverrides `json:"config"`
	IncludePaths bool                        `json:"include_paths"`
}

// handleSimulate runs a Monte Carlo projection, served from the cache when
// the same closes and settings were simulated before.
// POST /api/v1/simulate
func (s *Server) handleSimulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	ds, err := s.dataset(ctx, req.seriesRequest, true)
	if err != nil {
		writeError(c, err)
		return
	}

	cfg := s.engines.Apply(&config.EngineOverrides{MonteCarlo: req.Config}).MonteCarlo
	if err := cfg.Validate(); err != nil {
		writeError(c, err)
		return
	}

	key := cache.SimulationKey(ds.Series.Symbol(), ds.Series.Closes(), cfg)
	res, hit, err := s.deps.SimulationCache.GetOrCompute(ctx, key, func(ctx context.Context) (*montecarlo.Result, error) {
		return s.simulator.Simulate(ctx, ds.Series, cfg)
	})
	if err != nil {
		writeError(c, err)
		return
	}

	out := *res
	if !req.IncludePaths {
		out.Paths = nil
	}
	successResponse(c, gin.H{
		"symbol": ds.Series.Symbol(),
		"cached": hit,
		"result": out,
	})
}

type valuationRequest struct {
	Fundamentals market.FundamentalsSnapshot `json:"fundamentals"`
	Price        float64                     `json:"price"`
	DCF          *config.DCFOverrides        `json:"dcf"`
}

// handleValuation computes DCF, Graham and relative fair values
// POST /api/v1/valuation
func (s *Server) handleValuation(c *gin.Context) {
	var req valuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Price <= 0 {
		errorResponse(c, http.StatusBadRequest, "price must be positive")
		return
	}

	cfg := s.engines.Apply(&config.EngineOverrides{DCF: req.DCF}).DCF
	result, err := valuation.Evaluate(req.Fundamentals, req.Price, cfg)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, result)
}

type checklistRequest struct {
	seriesRequest
	Fundamentals *market.FundamentalsSnapshot `json:"fundamentals"`
	Checklist    *config.ChecklistOverrides   `json:"checklist"`
	DCF          *config.DCFOverrides         `json:"dcf"`
}

// handleChecklist evaluates the growth checklist. Technical rules need bars
// or a stored series; without them they report unknown.
// POST /api/v1/checklist
func (s *Server) handleChecklist(c *gin.Context) {
	var req checklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Symbol == "" && len(req.Bars) == 0 && req.Fundamentals == nil {
		errorResponse(c, http.StatusBadRequest, "symbol, bars or fundamentals is required")
		return
	}

	ds, err := s.dataset(c.Request.Context(), req.seriesRequest, false)
	if err != nil {
		writeError(c, err)
		return
	}
	if req.Fundamentals != nil {
		ds.Fundamentals = *req.Fundamentals
	}

	engines := s.engines.Apply(&config.EngineOverrides{Checklist: req.Checklist, DCF: req.DCF})

	input := checklist.Input{Fundamentals: ds.Fundamentals}
	if ds.Series != nil {
		input.Technicals = analysis.ComputeTechnicals(ds.Series, analysis.DefaultTechnicalConfig())
	}
	if input.Technicals.Price != nil {
		v, err := valuation.Evaluate(ds.Fundamentals, *input.Technicals.Price, engines.DCF)
		if err != nil {
			writeError(c, err)
			return
		}
		input.Valuation = v
	}

	successResponse(c, gin.H{
		"technicals": input.Technicals,
		"valuation":  input.Valuation,
		"report":     checklist.Evaluate(input, engines.Checklist),
	})
}

// handlePositionSize sizes a long position by fixed-fractional risk
// POST /api/v1/position-size
func (s *Server) handlePositionSize(c *gin.Context) {
	var req risk.Parameters
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	size, err := risk.CalculatePositionSize(req)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, size)
}

// handleOptionPrice prices a European option with greeks
// POST /api/v1/options/price
func (s *Server) handleOptionPrice(c *gin.Context) {
	var req options.Inputs
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	typ, err := options.ParseType(string(req.Type))
	if err != nil {
		writeError(c, err)
		return
	}
	req.Type = typ

	quote, err := options.Evaluate(req)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, quote)
}

// handleOptionCurve suggests a call on a target price and returns its P/L
// profile
// POST /api/v1/options/curve
func (s *Server) handleOptionCurve(c *gin.Context) {
	var req options.CurveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	curve, err := options.PLCurve(req)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, curve)
}
