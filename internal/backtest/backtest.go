package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"growth-screener/internal/market"
)

// ResultStore persists completed runs.
type ResultStore interface {
	SaveBacktestRun(ctx context.Context, result *Result, params Params) (string, error)
}

// Request describes one backtest: a symbol, a registered strategy and an
// optional date window.
type Request struct {
	Symbol   string    `json:"symbol"`
	Strategy string    `json:"strategy"`
	Params   Params    `json:"params,omitempty"`
	Config   *Config   `json:"config,omitempty"`
	From     time.Time `json:"from,omitempty"`
	To       time.Time `json:"to,omitempty"`
}

// Backtest loads history from a data source, runs a registered strategy
// over it and stores the result.
type Backtest struct {
	source   market.DataSource
	store    ResultStore
	engine   *Engine
	defaults Config
	logger   zerolog.Logger
}

// NewBacktest creates a new backtest runner. store may be nil.
func NewBacktest(source market.DataSource, store ResultStore, defaults Config, logger zerolog.Logger) *Backtest {
	return &Backtest{
		source:   source,
		store:    store,
		engine:   NewEngine(WithLogger(logger)),
		defaults: defaults,
		logger:   logger.With().Str("component", "backtest_runner").Logger(),
	}
}

// Run executes the backtest and returns the result together with the stored
// run ID, which is empty when no store is configured.
func (b *Backtest) Run(ctx context.Context, req Request) (*Result, string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, "", fmt.Errorf("symbol is required")
	}

	rule, err := NewRule(req.Strategy, req.Params)
	if err != nil {
		return nil, "", err
	}

	dataset, err := b.source.Fetch(ctx, symbol)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}
	if dataset.Series == nil {
		return nil, "", fmt.Errorf("no price history for %s: %w", symbol, market.ErrEmptySeries)
	}

	series, err := dataset.Series.Between(req.From, req.To)
	if err != nil {
		return nil, "", fmt.Errorf("no bars for %s in requested window: %w", symbol, err)
	}

	cfg := b.defaults
	if req.Config != nil {
		cfg = *req.Config
	}

	start := time.Now()
	result, err := b.engine.Run(ctx, series, rule, cfg)
	if err != nil {
		return nil, "", err
	}

	b.logger.Info().
		Str("symbol", symbol).
		Str("strategy", rule.Name()).
		Int("bars", series.Len()).
		Int("trades", result.TotalTrades).
		Float64("total_return_pct", result.TotalReturnPct).
		Dur("elapsed", time.Since(start)).
		Msg("Backtest completed")

	if b.store == nil {
		return result, "", nil
	}
	id, err := b.store.SaveBacktestRun(ctx, result, req.Params)
	if err != nil {
		return nil, "", fmt.Errorf("failed to save backtest run: %w", err)
	}
	return result, id, nil
}
