package montecarlo

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"growth-screener/internal/market"
)

var (
	ErrInvalidPathCount  = errors.New("path count must be positive")
	ErrInvalidHorizon    = errors.New("horizon must be at least one step")
	ErrInvalidPercentile = errors.New("percentiles must lie in [0, 100]")
	ErrPathCountLimit    = errors.New("path count exceeds limit")
	ErrHorizonLimit      = errors.New("horizon exceeds limit")
)

// Limits applied when MaxPathCount or MaxHorizonDays is zero.
const (
	DefaultMaxPathCount   = 20_000
	DefaultMaxHorizonDays = 756
)

// InsufficientHistoryError is returned when the series has too few returns to
// estimate drift and volatility.
type InsufficientHistoryError struct {
	Have int
	Need int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: have %d returns, need %d", e.Have, e.Need)
}

// Config controls a simulation run.
type Config struct {
	HorizonDays     int       `json:"horizon_days" yaml:"horizon_days"`
	PathCount       int       `json:"path_count" yaml:"path_count"`
	Seed            int64     `json:"seed" yaml:"seed"`
	Percentiles     []float64 `json:"percentiles" yaml:"percentiles"`
	MinObservations int       `json:"min_observations" yaml:"min_observations"`
	Workers         int       `json:"workers" yaml:"workers"`
	BatchSize       int       `json:"batch_size" yaml:"batch_size"`
	// Upper bounds on PathCount and HorizonDays; zero means the defaults.
	MaxPathCount   int `json:"max_path_count" yaml:"max_path_count"`
	MaxHorizonDays int `json:"max_horizon_days" yaml:"max_horizon_days"`
}

// DefaultConfig returns a 30-day, 1000-path, seed 42 simulation.
func DefaultConfig() Config {
	return Config{
		HorizonDays:     30,
		PathCount:       1000,
		Seed:            42,
		Percentiles:     []float64{5, 25, 50, 75, 95},
		MinObservations: 30,
		Workers:         runtime.GOMAXPROCS(0),
		BatchSize:       128,
		MaxPathCount:    DefaultMaxPathCount,
		MaxHorizonDays:  DefaultMaxHorizonDays,
	}
}

// Params are the estimated model parameters a run used.
type Params struct {
	Mu           float64 `json:"mu"`    // daily drift
	Sigma        float64 `json:"sigma"` // daily volatility
	Observations int     `json:"observations"`
	StartPrice   float64 `json:"start_price"`
	HorizonDays  int     `json:"horizon_days"`
	PathCount    int     `json:"path_count"`
	Seed         int64   `json:"seed"`
}

// Band is one percentile across every step of the horizon.
type Band struct {
	Percentile float64   `json:"percentile"`
	Values     []float64 `json:"values"` // index 0 is the start price
}

// TerminalStats summarises the distribution of final prices.
type TerminalStats struct {
	Mean              float64            `json:"mean"`
	StdDev            float64            `json:"std_dev"`
	Min               float64            `json:"min"`
	Max               float64            `json:"max"`
	ProbAboveStart    float64            `json:"prob_above_start"`
	ExpectedReturnPct float64            `json:"expected_return_pct"`
	Percentiles       map[string]float64 `json:"percentiles"`
}

// Result is a finished simulation.
type Result struct {
	Params   Params        `json:"params"`
	Paths    [][]float64   `json:"paths"`
	Bands    []Band        `json:"bands"`
	Terminal TerminalStats `json:"terminal"`
}

// Engine runs geometric Brownian motion simulations.
type Engine struct {
	logger zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l.With().Str("component", "montecarlo").Logger()
	}
}

// NewEngine creates a simulation engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Simulate estimates GBM parameters from the series closes and projects
// PathCount paths HorizonDays steps ahead. Output is identical for identical
// inputs and seed, independent of Workers.
func (e *Engine) Simulate(ctx context.Context, series *market.PriceSeries, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if series == nil {
		return nil, &InsufficientHistoryError{Have: 0, Need: cfg.MinObservations}
	}

	params, err := Estimate(series.Closes(), cfg.MinObservations)
	if err != nil {
		return nil, err
	}
	params.HorizonDays = cfg.HorizonDays
	params.PathCount = cfg.PathCount
	params.Seed = cfg.Seed

	e.logger.Debug().
		Str("symbol", series.Symbol()).
		Float64("mu", params.Mu).
		Float64("sigma", params.Sigma).
		Int("paths", cfg.PathCount).
		Msg("Starting simulation")

	paths, err := e.simulatePaths(ctx, params, cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Params:   params,
		Paths:    paths,
		Bands:    bands(paths, cfg.Percentiles, cfg.HorizonDays),
		Terminal: terminalStats(paths, params.StartPrice, cfg.Percentiles),
	}
	return result, nil
}

// Estimate derives daily drift and volatility from closing prices. Sigma is
// the sample standard deviation of log returns and Mu is chosen so that the
// median path drifts at the historical mean log return.
func Estimate(closes []float64, minObservations int) (Params, error) {
	n := len(closes) - 1
	if n < minObservations || n < 2 {
		return Params{}, &InsufficientHistoryError{Have: max(n, 0), Need: max(minObservations, 2)}
	}

	returns := make([]float64, n)
	sum := 0.0
	for i := 1; i < len(closes); i++ {
		r := math.Log(closes[i] / closes[i-1])
		returns[i-1] = r
		sum += r
	}
	mean := sum / float64(n)

	ss := 0.0
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	sigma := math.Sqrt(ss / float64(n-1))

	return Params{
		Mu:           mean + sigma*sigma/2,
		Sigma:        sigma,
		Observations: n,
		StartPrice:   closes[len(closes)-1],
	}, nil
}

func (e *Engine) simulatePaths(ctx context.Context, p Params, cfg Config) ([][]float64, error) {
	paths := make([][]float64, cfg.PathCount)
	drift := p.Mu - p.Sigma*p.Sigma/2

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for start := 0; start < cfg.PathCount; start += cfg.BatchSize {
		if err := gctx.Err(); err != nil {
			break
		}
		end := min(start+cfg.BatchSize, cfg.PathCount)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				paths[i] = simulatePath(p.StartPrice, drift, p.Sigma, cfg.HorizonDays, cfg.Seed, i)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

// simulatePath draws one path from its own PCG stream keyed by (seed, index)
// so batches can run in any order.
func simulatePath(s0, drift, sigma float64, horizon int, seed int64, index int) []float64 {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(index)))
	path := make([]float64, horizon+1)
	path[0] = s0
	price := s0
	for t := 1; t <= horizon; t++ {
		price *= math.Exp(drift + sigma*rng.NormFloat64())
		path[t] = price
	}
	return path
}

func bands(paths [][]float64, percentiles []float64, horizon int) []Band {
	out := make([]Band, len(percentiles))
	for j, pct := range percentiles {
		out[j] = Band{Percentile: pct, Values: make([]float64, horizon+1)}
	}

	column := make([]float64, len(paths))
	for t := 0; t <= horizon; t++ {
		for i, path := range paths {
			column[i] = path[t]
		}
		slices.Sort(column)
		for j, pct := range percentiles {
			out[j].Values[t] = Percentile(column, pct)
		}
	}
	return out
}

func terminalStats(paths [][]float64, start float64, percentiles []float64) TerminalStats {
	n := len(paths)
	final := make([]float64, n)
	sum, above := 0.0, 0
	for i, path := range paths {
		v := path[len(path)-1]
		final[i] = v
		sum += v
		if v > start {
			above++
		}
	}
	mean := sum / float64(n)

	ss := 0.0
	for _, v := range final {
		ss += (v - mean) * (v - mean)
	}
	std := 0.0
	if n > 1 {
		std = math.Sqrt(ss / float64(n-1))
	}

	slices.Sort(final)
	pcts := make(map[string]float64, len(percentiles))
	for _, pct := range percentiles {
		pcts[PercentileKey(pct)] = Percentile(final, pct)
	}

	return TerminalStats{
		Mean:              mean,
		StdDev:            std,
		Min:               final[0],
		Max:               final[n-1],
		ProbAboveStart:    float64(above) / float64(n),
		ExpectedReturnPct: (mean - start) / start * 100,
		Percentiles:       pcts,
	}
}

// Percentile returns the pct-th percentile of sorted values using linear
// interpolation between closest ranks.
func Percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// PercentileKey formats a percentile as a map key, e.g. "p5" or "p97.5".
func PercentileKey(pct float64) string {
	return fmt.Sprintf("p%g", pct)
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Percentiles == nil {
		c.Percentiles = d.Percentiles
	}
	if c.MinObservations <= 0 {
		c.MinObservations = d.MinObservations
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	return c
}

// Validate checks path count, horizon and percentiles.
func (c Config) Validate() error {
	if c.PathCount <= 0 {
		return ErrInvalidPathCount
	}
	if c.HorizonDays <= 0 {
		return ErrInvalidHorizon
	}
	if limit := cmp.Or(c.MaxPathCount, DefaultMaxPathCount); c.PathCount > limit {
		return fmt.Errorf("%w: %d > %d", ErrPathCountLimit, c.PathCount, limit)
	}
	if limit := cmp.Or(c.MaxHorizonDays, DefaultMaxHorizonDays); c.HorizonDays > limit {
		return fmt.Errorf("%w: %d > %d", ErrHorizonLimit, c.HorizonDays, limit)
	}
	for _, p := range c.Percentiles {
		if p < 0 || p > 100 || math.IsNaN(p) {
			return ErrInvalidPercentile
		}
	}
	return nil
}
