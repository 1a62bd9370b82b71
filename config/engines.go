package config

import (
	"errors"
	"fmt"

	"growth-screener/internal/analysis"
	"growth-screener/internal/backtest"
	"growth-screener/internal/checklist"
	"growth-screener/internal/montecarlo"
	"growth-screener/internal/patterns"
	"growth-screener/internal/valuation"
)

// PatternConfig controls candlestick scanning in analysis reports.
type PatternConfig struct {
	Window   int `yaml:"window" json:"window"`
	Lookback int `yaml:"lookback" json:"lookback"`
}

// Engines is the per-call configuration of every engine.
type Engines struct {
	MonteCarlo montecarlo.Config    `yaml:"monte_carlo" json:"monte_carlo"`
	DCF        valuation.Config     `yaml:"dcf" json:"dcf"`
	Checklist  checklist.Config     `yaml:"checklist" json:"checklist"`
	Backtest   backtest.Config      `yaml:"backtest" json:"backtest"`
	Patterns   PatternConfig        `yaml:"patterns" json:"patterns"`
	Levels     analysis.LevelConfig `yaml:"levels" json:"levels"`
}

// DefaultEngines returns the documented engine defaults.
func DefaultEngines() Engines {
	return Engines{
		MonteCarlo: montecarlo.DefaultConfig(),
		DCF:        valuation.DefaultConfig(),
		Checklist:  checklist.DefaultConfig(),
		Backtest:   backtest.DefaultConfig(),
		Patterns:   PatternConfig{Window: patterns.DefaultWindow, Lookback: 10},
		Levels:     analysis.DefaultLevelConfig(),
	}
}

// Validate checks every engine section.
func (e Engines) Validate() error {
	if err := e.MonteCarlo.Validate(); err != nil {
		return fmt.Errorf("monte_carlo: %w", err)
	}
	if err := e.DCF.Validate(); err != nil {
		return fmt.Errorf("dcf: %w", err)
	}
	if e.Checklist.RSIFloor >= e.Checklist.RSICeiling {
		return errors.New("checklist: rsi_floor must be below rsi_ceiling")
	}
	if e.Backtest.InitialEquity <= 0 {
		return errors.New("backtest: initial_equity must be positive")
	}
	if e.Backtest.RiskPctPerTrade <= 0 || e.Backtest.RiskPctPerTrade > 1 {
		return errors.New("backtest: risk_pct_per_trade must be in (0, 1]")
	}
	if e.Patterns.Window != 0 && e.Patterns.Window < patterns.MinWindow {
		return fmt.Errorf("patterns: %w", patterns.ErrInvalidWindow)
	}
	if e.Levels.Tolerance <= 0 {
		return fmt.Errorf("levels: %w", analysis.ErrInvalidTolerance)
	}
	return nil
}

// EngineOverrides changes a subset of engine settings for one call. Nil
// fields keep the configured value.
type EngineOverrides struct {
	MonteCarlo *MonteCarloOverrides `json:"monte_carlo,omitempty"`
	DCF        *DCFOverrides        `json:"dcf,omitempty"`
	Checklist  *ChecklistOverrides  `json:"checklist,omitempty"`
	Backtest   *BacktestOverrides   `json:"backtest,omitempty"`
	Patterns   *PatternOverrides    `json:"patterns,omitempty"`
	Levels     *LevelOverrides      `json:"levels,omitempty"`
}

type MonteCarloOverrides struct {
	HorizonDays *int      `json:"horizon_days,omitempty"`
	PathCount   *int      `json:"path_count,omitempty"`
	Seed        *int64    `json:"seed,omitempty"`
	Percentiles []float64 `json:"percentiles,omitempty"`
}

type DCFOverrides struct {
	Years              *int      `json:"years,omitempty"`
	DiscountRate       *float64  `json:"discount_rate,omitempty"`
	TerminalGrowthRate *float64  `json:"terminal_growth_rate,omitempty"`
	GrowthRate         *float64  `json:"growth_rate,omitempty"`
	GrowthSchedule     []float64 `json:"growth_schedule,omitempty"`
	TaxRate            *float64  `json:"tax_rate,omitempty"`
	PeerPE             *float64  `json:"peer_pe,omitempty"`
	PeerEVEBITDA       *float64  `json:"peer_ev_ebitda,omitempty"`
}

type ChecklistOverrides struct {
	PECeiling             *float64 `json:"pe_ceiling,omitempty"`
	PEGCeiling            *float64 `json:"peg_ceiling,omitempty"`
	RecommendationCeiling *float64 `json:"recommendation_ceiling,omitempty"`
	EPSGrowthFloor        *float64 `json:"eps_growth_floor,omitempty"`
	RSIFloor              *float64 `json:"rsi_floor,omitempty"`
	RSICeiling            *float64 `json:"rsi_ceiling,omitempty"`
}

type BacktestOverrides struct {
	InitialEquity   *float64 `json:"initial_equity,omitempty"`
	RiskPctPerTrade *float64 `json:"risk_pct_per_trade,omitempty"`
	MaxPositionPct  *float64 `json:"max_position_pct,omitempty"`
	Commission      *float64 `json:"commission,omitempty"`
	WarmupBars      *int     `json:"warmup_bars,omitempty"`
}

type PatternOverrides struct {
	Window   *int `json:"window,omitempty"`
	Lookback *int `json:"lookback,omitempty"`
}

type LevelOverrides struct {
	Tolerance *float64              `json:"tolerance,omitempty"`
	TopK      *int                  `json:"top_k,omitempty"`
	Source    *analysis.PriceSource `json:"source,omitempty"`
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Apply returns a copy of e with the overrides applied. A nil o returns e
// unchanged.
func (e Engines) Apply(o *EngineOverrides) Engines {
	if o == nil {
		return e
	}

	if mc := o.MonteCarlo; mc != nil {
		set(&e.MonteCarlo.HorizonDays, mc.HorizonDays)
		set(&e.MonteCarlo.PathCount, mc.PathCount)
		set(&e.MonteCarlo.Seed, mc.Seed)
		if mc.Percentiles != nil {
			e.MonteCarlo.Percentiles = append([]float64(nil), mc.Percentiles...)
		}
	}
	if d := o.DCF; d != nil {
		set(&e.DCF.Years, d.Years)
		set(&e.DCF.DiscountRate, d.DiscountRate)
		set(&e.DCF.TerminalGrowthRate, d.TerminalGrowthRate)
		set(&e.DCF.TaxRate, d.TaxRate)
		set(&e.DCF.PeerPE, d.PeerPE)
		if d.GrowthRate != nil {
			e.DCF.GrowthRate = d.GrowthRate
		}
		if d.PeerEVEBITDA != nil {
			e.DCF.PeerEVEBITDA = d.PeerEVEBITDA
		}
		if d.GrowthSchedule != nil {
			e.DCF.GrowthSchedule = append([]float64(nil), d.GrowthSchedule...)
		}
	}
	if c := o.Checklist; c != nil {
		set(&e.Checklist.PECeiling, c.PECeiling)
		set(&e.Checklist.PEGCeiling, c.PEGCeiling)
		set(&e.Checklist.RecommendationCeiling, c.RecommendationCeiling)
		set(&e.Checklist.EPSGrowthFloor, c.EPSGrowthFloor)
		set(&e.Checklist.RSIFloor, c.RSIFloor)
		set(&e.Checklist.RSICeiling, c.RSICeiling)
	}
	if b := o.Backtest; b != nil {
		set(&e.Backtest.InitialEquity, b.InitialEquity)
		set(&e.Backtest.RiskPctPerTrade, b.RiskPctPerTrade)
		set(&e.Backtest.MaxPositionPct, b.MaxPositionPct)
		set(&e.Backtest.Commission, b.Commission)
		set(&e.Backtest.WarmupBars, b.WarmupBars)
	}
	if p := o.Patterns; p != nil {
		set(&e.Patterns.Window, p.Window)
		set(&e.Patterns.Lookback, p.Lookback)
	}
	if l := o.Levels; l != nil {
		set(&e.Levels.Tolerance, l.Tolerance)
		set(&e.Levels.TopK, l.TopK)
		set(&e.Levels.Source, l.Source)
	}
	return e
}
