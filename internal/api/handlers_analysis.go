package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"growth-screener/config"
)

// maxScreenSymbols caps the symbols accepted by one screen call.
const maxScreenSymbols = 100

// handleAnalysis runs every engine over one symbol
// GET /api/v1/analysis/:symbol?simulate=true
func (s *Server) handleAnalysis(c *gin.Context) {
	var overrides *config.EngineOverrides
	if simulate, _ := strconv.ParseBool(c.Query("simulate")); simulate {
		overrides = &config.EngineOverrides{MonteCarlo: &config.MonteCarloOverrides{}}
	}

	result, err := s.deps.Analyzer.Analyze(c.Request.Context(), c.Param("symbol"), overrides)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, result)
}

// handleScreen analyses a list of symbols concurrently
// POST /api/v1/screen
// Body: {"symbols": ["AAPL", "MSFT"]}
func (s *Server) handleScreen(c *gin.Context) {
	var req struct {
		Symbols []string `json:"symbols" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Symbols) == 0 || len(req.Symbols) > maxScreenSymbols {
		errorResponse(c, http.StatusBadRequest, "symbols must contain 1 to "+strconv.Itoa(maxScreenSymbols)+" entries")
		return
	}

	results, err := s.deps.Analyzer.Screen(c.Request.Context(), req.Symbols)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, results)
}
