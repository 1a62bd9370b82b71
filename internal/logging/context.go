package logging

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TraceHeader carries the request trace ID.
const TraceHeader = "X-Trace-ID"

type contextKey string

const traceIDKey contextKey = "trace_id"

// GenerateTraceID generates a new trace ID
func GenerateTraceID() string {
	return uuid.NewString()
}

// FromContext retrieves the logger from context, falling back to Default.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return *l
		}
	}
	return Default()
}

// NewContext creates a new context with the logger
func NewContext(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// TraceID returns the trace ID stored by the HTTP middleware, if any.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// BacktestContext creates a logger context for a backtest run
func BacktestContext(l zerolog.Logger, symbol, strategy string, from, to time.Time) zerolog.Logger {
	return l.With().
		Str("component", "backtest").
		Str("symbol", symbol).
		Str("strategy", strategy).
		Str("start_date", from.Format("2006-01-02")).
		Str("end_date", to.Format("2006-01-02")).
		Logger()
}

// SimulationContext creates a logger context for Monte Carlo runs
func SimulationContext(l zerolog.Logger, symbol string, paths, horizon int) zerolog.Logger {
	return l.With().
		Str("component", "montecarlo").
		Str("symbol", symbol).
		Int("paths", paths).
		Int("horizon_days", horizon).
		Logger()
}

// AnalysisContext creates a logger context for single-symbol analysis
func AnalysisContext(l zerolog.Logger, symbol string) zerolog.Logger {
	return l.With().Str("component", "analysis").Str("symbol", symbol).Logger()
}

// DatabaseContext creates a logger context for database operations
func DatabaseContext(l zerolog.Logger, operation, table string) zerolog.Logger {
	return l.With().
		Str("component", "database").
		Str("operation", operation).
		Str("table", table).
		Logger()
}

// GinMiddleware attaches a trace-tagged logger to every request context and
// logs request completion.
func GinMiddleware(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = GenerateTraceID()
		}
		c.Header(TraceHeader, traceID)

		l := base.With().
			Str("component", "http").
			Str("trace_id", traceID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger()

		ctx := context.WithValue(NewContext(c.Request.Context(), l), traceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		event := l.Info()
		if status >= 500 {
			event = l.Error()
		} else if status >= 400 {
			event = l.Warn()
		}
		event.
			Int("status_code", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}
