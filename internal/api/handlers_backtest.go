package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"growth-screener/config"
	"growth-screener/internal/backtest"
)

// maxBatchSize caps the requests accepted by one batch call.
const maxBatchSize = 50

type backtestRequest struct {
	Symbol   string                    `json:"symbol" binding:"required"`
	Strategy string                    `json:"strategy" binding:"required"`
	Params   backtest.Params           `json:"params"`
	Config   *config.BacktestOverrides `json:"config"`
	From     string                    `json:"from"` // YYYY-MM-DD or RFC3339
	To       string                    `json:"to"`
}

// parseDate accepts a calendar date or an RFC3339 timestamp. Empty is the
// zero time.
func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, badRequest(field + " must be YYYY-MM-DD or RFC3339")
	}
	return t, nil
}

// toRequest applies config overrides on top of the configured backtest
// settings.
func (s *Server) toRequest(req backtestRequest) (backtest.Request, error) {
	from, err := parseDate("from", req.From)
	if err != nil {
		return backtest.Request{}, err
	}
	to, err := parseDate("to", req.To)
	if err != nil {
		return backtest.Request{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return backtest.Request{}, badRequest("to must not be before from")
	}

	cfg := s.engines.Apply(&config.EngineOverrides{Backtest: req.Config}).Backtest
	return backtest.Request{
		Symbol:   req.Symbol,
		Strategy: req.Strategy,
		Params:   req.Params,
		Config:   &cfg,
		From:     from,
		To:       to,
	}, nil
}

// handleRunBacktest runs one strategy over a symbol's stored history
// POST /api/v1/backtest
// Body: {"symbol": "AAPL", "strategy": "ema_crossover", "params": {"fast": 10}, "from": "2023-01-01"}
func (s *Server) handleRunBacktest(c *gin.Context) {
	if s.deps.Backtests == nil {
		errorResponse(c, http.StatusServiceUnavailable, "backtesting is not configured")
		return
	}

	var body backtestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	req, err := s.toRequest(body)
	if err != nil {
		writeError(c, err)
		return
	}

	result, runID, err := s.deps.Backtests.Run(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	successResponse(c, gin.H{
		"run_id": runID,
		"result": result,
	})
}

// handleRunBacktestBatch runs several backtests concurrently. Failures are
// reported per request.
// POST /api/v1/backtest/batch
func (s *Server) handleRunBacktestBatch(c *gin.Context) {
	if s.deps.Backtests == nil {
		errorResponse(c, http.StatusServiceUnavailable, "backtesting is not configured")
		return
	}

	var body struct {
		Requests []backtestRequest `json:"requests" binding:"required,dive"`
		Workers  int               `json:"workers"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(body.Requests) == 0 || len(body.Requests) > maxBatchSize {
		errorResponse(c, http.StatusBadRequest, "requests must contain 1 to "+strconv.Itoa(maxBatchSize)+" entries")
		return
	}

	reqs := make([]backtest.Request, len(body.Requests))
	for i, r := range body.Requests {
		req, err := s.toRequest(r)
		if err != nil {
			writeError(c, err)
			return
		}
		reqs[i] = req
	}

	results := s.deps.Backtests.RunBatch(c.Request.Context(), reqs, body.Workers)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	successResponse(c, gin.H{
		"results": results,
		"count":   len(results),
		"failed":  failed,
	})
}

// handleListStrategies lists the registered strategy names
// GET /api/v1/backtest/strategies
func (s *Server) handleListStrategies(c *gin.Context) {
	successResponse(c, backtest.StrategyNames())
}

// handleListBacktests lists stored runs, newest first
// GET /api/v1/backtests?symbol=AAPL&limit=20
func (s *Server) handleListBacktests(c *gin.Context) {
	if s.deps.Runs == nil {
		errorResponse(c, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		errorResponse(c, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))

	runs, err := s.deps.Runs.ListBacktestRuns(c.Request.Context(), symbol, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, runs)
}

// handleGetBacktest returns one stored run with its full result
// GET /api/v1/backtests/:id
func (s *Server) handleGetBacktest(c *gin.Context) {
	if s.deps.Runs == nil {
		errorResponse(c, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	run, err := s.deps.Runs.GetBacktestRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, run)
}
