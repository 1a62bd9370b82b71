package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"growth-screener/internal/analysis"
	"growth-screener/internal/backtest"
	"growth-screener/internal/database"
	"growth-screener/internal/logging"
	"growth-screener/internal/market"
	"growth-screener/internal/montecarlo"
	"growth-screener/internal/options"
	"growth-screener/internal/patterns"
	"growth-screener/internal/risk"
	"growth-screener/internal/screener"
	"growth-screener/internal/valuation"
)

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// detailedErrorResponse adds the fields of a typed error to the envelope.
func detailedErrorResponse(c *gin.Context, statusCode int, message string, details gin.H) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
		"details": details,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// requestError is a malformed or incomplete request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

// unprocessable lists sentinel errors caused by request content.
var unprocessable = []error{
	market.ErrEmptySeries,
	patterns.ErrInvalidWindow,
	analysis.ErrInvalidTolerance,
	montecarlo.ErrInvalidPathCount,
	montecarlo.ErrInvalidHorizon,
	montecarlo.ErrInvalidPercentile,
	montecarlo.ErrPathCountLimit,
	montecarlo.ErrHorizonLimit,
	backtest.ErrStopAboveEntry,
	backtest.ErrInvalidEquity,
	backtest.ErrUnknownStrategy,
	screener.ErrEmptySymbol,
	screener.ErrInvalidSettings,
}

// writeError maps an engine error to a status code. Typed input errors are
// 422 with their fields under "details".
func writeError(c *gin.Context, err error) {
	var (
		seriesErr   *market.SeriesError
		shortErr    *market.InsufficientDataError
		historyErr  *montecarlo.InsufficientHistoryError
		dcfErr      *valuation.ConfigError
		stopErr     *risk.InvalidStopError
		paramErr    *risk.ParameterError
		optionErr   *options.InputError
		strategyErr *backtest.StrategyError
		reqErr      *requestError
	)

	switch {
	case errors.As(err, &reqErr):
		errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrSymbolNotFound), errors.Is(err, database.ErrNotFound):
		errorResponse(c, http.StatusNotFound, err.Error())
	case errors.As(err, &seriesErr):
		detailedErrorResponse(c, http.StatusUnprocessableEntity, err.Error(), gin.H{"index": seriesErr.Index, "field": seriesErr.Field})
	case errors.As(err, &shortErr):
		detailedErrorResponse(c, http.StatusUnprocessableEntity, err.Error(), gin.H{"op": shortErr.Op, "have": shortErr.Have, "need": shortErr.Need})
	case errors.As(err, &historyErr):
		detailedErrorResponse(c, http.StatusUnprocessableEntity, err.Error(), gin.H{"have": historyErr.Have, "need": historyErr.Need})
	case errors.As(err, &dcfErr):
		detailedErrorResponse(c, http.StatusUnprocessableEntity, err.Error(), gin.H{"field": dcfErr.Field})
	case errors.As(err, &stopErr):
		detailedErrorResponse(c, http.StatusUnprocessableEntity, err.Error(), gin.H{"entry": stopErr.Entry, "stop": stopErr.Stop})
	case errors.As(err, &paramErr):
		detailedErrorResponse(c, http.StatusUnprocessableEntity, err.Error(), gin.H{"field": paramErr.Field, "value": paramErr.Value})
	case errors.As(err, &optionErr):
		detailedErrorResponse(c, http.StatusUnprocessableEntity, err.Error(), gin.H{"field": optionErr.Field})
	case errors.As(err, &strategyErr):
		detailedErrorResponse(c, http.StatusUnprocessableEntity, err.Error(), gin.H{"index": strategyErr.Index, "rule": strategyErr.Rule})
	case isUnprocessable(err):
		errorResponse(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		errorResponse(c, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		errorResponse(c, 499, "request cancelled")
	default:
		logger := logging.FromContext(c.Request.Context())
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		errorResponse(c, http.StatusInternalServerError, "internal error")
	}
}

func isUnprocessable(err error) bool {
	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
