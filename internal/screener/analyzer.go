package screener

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"growth-screener/config"
	"growth-screener/internal/analysis"
	"growth-screener/internal/cache"
	"growth-screener/internal/checklist"
	"growth-screener/internal/logging"
	"growth-screener/internal/market"
	"growth-screener/internal/montecarlo"
	"growth-screener/internal/patterns"
	"growth-screener/internal/valuation"
)

var (
	// ErrEmptySymbol is returned for a blank symbol.
	ErrEmptySymbol = errors.New("symbol is required")
	// ErrInvalidSettings wraps engine settings rejected after overrides.
	ErrInvalidSettings = errors.New("invalid engine settings")
)

// ReportStore persists checklist reports.
type ReportStore interface {
	SaveChecklistReport(ctx context.Context, symbol string, report checklist.Report) (string, error)
}

// Analysis is the full report for one symbol. Sections that could not be
// computed are nil or empty and explained in Notes.
type Analysis struct {
	Symbol           string              `json:"symbol"`
	Price            *float64            `json:"price,omitempty"`
	Technicals       analysis.Technicals `json:"technicals"`
	Valuation        *valuation.Result   `json:"valuation,omitempty"`
	Checklist        checklist.Report    `json:"checklist"`
	ChecklistID      string              `json:"checklist_id,omitempty"`
	Patterns         []patterns.Match    `json:"patterns"`
	Levels           []analysis.Level    `json:"levels"`
	Simulation       *montecarlo.Result  `json:"simulation,omitempty"`
	SimulationCached bool                `json:"simulation_cached,omitempty"`
	Notes            []string            `json:"notes,omitempty"`
	AnalyzedAt       time.Time           `json:"analyzed_at"`
}

// ScreenResult is one symbol's outcome in a screen.
type ScreenResult struct {
	Symbol   string    `json:"symbol"`
	Analysis *Analysis `json:"analysis,omitempty"`
	Err      error     `json:"-"`
	Error    string    `json:"error,omitempty"`
}

// Analyzer runs every engine over one symbol's data.
type Analyzer struct {
	source   market.DataSource
	engines  config.Engines
	sim      *montecarlo.Engine
	simCache *cache.SimulationCache
	reports  ReportStore
	simulate bool
	workers  int
	logger   zerolog.Logger

	mu      sync.RWMutex
	results []ScreenResult
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the analyzer logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l.With().Str("component", "analyzer").Logger()
	}
}

// WithSimulationCache memoises Monte Carlo results.
func WithSimulationCache(c *cache.SimulationCache) Option {
	return func(a *Analyzer) { a.simCache = c }
}

// WithReportStore persists each checklist report.
func WithReportStore(s ReportStore) Option {
	return func(a *Analyzer) { a.reports = s }
}

// WithSimulation runs Monte Carlo on every analysis, not only when the call
// overrides it.
func WithSimulation(enabled bool) Option {
	return func(a *Analyzer) { a.simulate = enabled }
}

// WithWorkers bounds the number of symbols analysed at once by Screen.
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.workers = n }
}

// NewAnalyzer creates an analyzer over a data source.
func NewAnalyzer(source market.DataSource, engines config.Engines, opts ...Option) *Analyzer {
	a := &Analyzer{
		source:  source,
		engines: engines,
		workers: runtime.GOMAXPROCS(0),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.sim = montecarlo.NewEngine(montecarlo.WithLogger(a.logger))
	return a
}

// Analyze fetches one symbol and runs technicals, valuation, the checklist,
// recent patterns, support/resistance levels and optionally Monte Carlo.
// Overrides apply to this call only. Monte Carlo runs when the analyzer has
// simulation enabled or overrides carries a monte_carlo section.
func (a *Analyzer) Analyze(ctx context.Context, symbol string, overrides *config.EngineOverrides) (*Analysis, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	engines := a.engines.Apply(overrides)
	if err := engines.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	logger := logging.AnalysisContext(a.logger, symbol)
	start := time.Now()

	dataset, err := a.source.Fetch(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", symbol, err)
	}

	out := &Analysis{
		Symbol:     symbol,
		Patterns:   []patterns.Match{},
		Levels:     []analysis.Level{},
		AnalyzedAt: time.Now().UTC(),
	}

	series := dataset.Series
	if series != nil {
		out.Technicals = analysis.ComputeTechnicals(series, analysis.DefaultTechnicalConfig())
		out.Price = out.Technicals.Price
	} else {
		out.note("no price history: technicals, patterns, levels and simulation skipped")
	}

	if out.Price != nil {
		v, err := valuation.Evaluate(dataset.Fundamentals, *out.Price, engines.DCF)
		if err != nil {
			return nil, err
		}
		out.Valuation = v
	} else {
		out.note("no price: valuation skipped")
	}

	out.Checklist = checklist.Evaluate(checklist.Input{
		Fundamentals: dataset.Fundamentals,
		Valuation:    out.Valuation,
		Technicals:   out.Technicals,
	}, engines.Checklist)

	if series != nil {
		if err := a.scanPatterns(out, series, engines.Patterns); err != nil {
			return nil, err
		}

		levels, err := analysis.ClusterLevels(series, engines.Levels)
		if err != nil {
			return nil, err
		}
		out.Levels = levels

		if a.simulate || (overrides != nil && overrides.MonteCarlo != nil) {
			if err := a.runSimulation(ctx, out, series, engines.MonteCarlo); err != nil {
				return nil, err
			}
		}
	}

	if a.reports != nil {
		id, err := a.reports.SaveChecklistReport(ctx, symbol, out.Checklist)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to save checklist report")
		} else {
			out.ChecklistID = id
		}
	}

	logger.Info().
		Int("score", out.Checklist.Score).
		Int("patterns", len(out.Patterns)).
		Int("levels", len(out.Levels)).
		Bool("simulated", out.Simulation != nil).
		Dur("elapsed", time.Since(start)).
		Msg("Analysis completed")

	return out, nil
}

func (a *Analyzer) scanPatterns(out *Analysis, series *market.PriceSeries, cfg config.PatternConfig) error {
	detector, err := patterns.NewDetector(cfg.Window)
	if err != nil {
		return err
	}
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = series.Len()
	}

	matches, err := detector.Recent(series, lookback)
	var short *market.InsufficientDataError
	switch {
	case errors.As(err, &short):
		out.note(fmt.Sprintf("patterns skipped: %v", err))
	case err != nil:
		return err
	case matches != nil:
		out.Patterns = matches
	}
	return nil
}

func (a *Analyzer) runSimulation(ctx context.Context, out *Analysis, series *market.PriceSeries, cfg montecarlo.Config) error {
	key := cache.SimulationKey(out.Symbol, series.Closes(), cfg)
	res, hit, err := a.simCache.GetOrCompute(ctx, key, func(ctx context.Context) (*montecarlo.Result, error) {
		return a.sim.Simulate(ctx, series, cfg)
	})

	var short *montecarlo.InsufficientHistoryError
	switch {
	case errors.As(err, &short):
		out.note(fmt.Sprintf("simulation skipped: %v", err))
		return nil
	case err != nil:
		return err
	}
	out.Simulation = res
	out.SimulationCached = hit
	return nil
}

func (out *Analysis) note(msg string) {
	out.Notes = append(out.Notes, msg)
}

// Screen analyses symbols concurrently. A symbol that fails is reported in
// its ScreenResult and does not stop the others. Only cancellation of ctx
// returns an error. Results keep the order of symbols.
func (a *Analyzer) Screen(ctx context.Context, symbols []string) ([]ScreenResult, error) {
	start := time.Now()
	results := make([]ScreenResult, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.workers, 1))

	for i, symbol := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := ScreenResult{Symbol: strings.ToUpper(strings.TrimSpace(symbol))}
			res.Analysis, res.Err = a.Analyze(gctx, symbol, nil)
			if res.Err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				res.Error = res.Err.Error()
				a.logger.Warn().Err(res.Err).Str("symbol", res.Symbol).Msg("Screen: analysis failed")
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.results = results
	a.mu.Unlock()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	a.logger.Info().Int("symbols", len(symbols)).Int("failed", failed).Dur("elapsed", time.Since(start)).Msg("Screen completed")
	return results, nil
}

// LastScreen returns the results of the most recent completed Screen.
func (a *Analyzer) LastScreen() []ScreenResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ScreenResult, len(a.results))
	copy(out, a.results)
	return out
}

// Engines returns the configured engine settings.
func (a *Analyzer) Engines() config.Engines {
	return a.engines
}
