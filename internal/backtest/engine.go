package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"growth-screener/internal/market"
	"growth-screener/internal/risk"
)

// Exit reasons set by the engine.
const (
	ExitStopLoss    = "stop_loss"
	ExitEndOfSeries = "end_of_series"
)

var (
	// ErrStopAboveEntry is returned (wrapped in a StrategyError) when a rule
	// asks to enter with a stop above the entry price.
	ErrStopAboveEntry = errors.New("stop must be below entry for a long position")
	ErrInvalidEquity  = errors.New("initial equity must be positive")
	ErrNilRule        = errors.New("rule is nil")
)

// StrategyError reports a rule failure at a specific bar. The run is aborted
// and no partial result is returned.
type StrategyError struct {
	Index int
	Rule  string
	Err   error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s failed at bar %d: %v", e.Rule, e.Index, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// Config holds engine settings. Fractions, not percentages.
type Config struct {
	InitialEquity   float64 `json:"initial_equity" yaml:"initial_equity"`
	RiskPctPerTrade float64 `json:"risk_pct_per_trade" yaml:"risk_pct_per_trade"`
	MaxPositionPct  float64 `json:"max_position_pct" yaml:"max_position_pct"`
	Commission      float64 `json:"commission" yaml:"commission"` // per side, fraction of notional
	WarmupBars      int     `json:"warmup_bars" yaml:"warmup_bars"`
}

// DefaultConfig returns $100k equity risking 1% per trade without margin.
func DefaultConfig() Config {
	return Config{
		InitialEquity:   100_000,
		RiskPctPerTrade: 0.01,
		MaxPositionPct:  1.0,
	}
}

// Trade is a completed round trip.
type Trade struct {
	EntryIndex  int       `json:"entry_index"`
	ExitIndex   int       `json:"exit_index"`
	EntryTime   time.Time `json:"entry_time"`
	ExitTime    time.Time `json:"exit_time"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	StopPrice   float64   `json:"stop_price"`
	Size        int64     `json:"size"`
	Commission  float64   `json:"commission"`
	PnL         float64   `json:"pnl"`
	ReturnPct   float64   `json:"return_pct"`
	EntryReason string    `json:"entry_reason"`
	ExitReason  string    `json:"exit_reason"`
}

// EquityPoint represents account value at the close of a bar
type EquityPoint struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// ReasonPerformance tracks performance by entry reason
type ReasonPerformance struct {
	Reason      string  `json:"reason"`
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	NetProfit   float64 `json:"net_profit"`
}

// Result contains the trades, equity curve and performance metrics of a run.
type Result struct {
	Strategy           string                        `json:"strategy"`
	Symbol             string                        `json:"symbol"`
	Config             Config                        `json:"config"`
	StartTime          time.Time                     `json:"start_time"`
	EndTime            time.Time                     `json:"end_time"`
	InitialEquity      float64                       `json:"initial_equity"`
	FinalEquity        float64                       `json:"final_equity"`
	TotalReturnPct     float64                       `json:"total_return_pct"`
	BenchmarkReturnPct float64                       `json:"benchmark_return_pct"`
	MaxDrawdownPct     float64                       `json:"max_drawdown_pct"` // <= 0
	WinRate            float64                       `json:"win_rate"`         // 0..1
	TotalTrades        int                           `json:"total_trades"`
	WinningTrades      int                           `json:"winning_trades"`
	LosingTrades       int                           `json:"losing_trades"`
	GrossProfit        float64                       `json:"gross_profit"`
	GrossLoss          float64                       `json:"gross_loss"`
	ProfitFactor       *float64                      `json:"profit_factor"` // nil without losing trades
	AverageWin         float64                       `json:"average_win"`
	AverageLoss        float64                       `json:"average_loss"`
	SharpeRatio        float64                       `json:"sharpe_ratio"`
	ExposurePct        float64                       `json:"exposure_pct"`
	Trades             []Trade                       `json:"trades"`
	EquityCurve        []EquityPoint                 `json:"equity_curve"`
	ReasonStats        map[string]*ReasonPerformance `json:"reason_stats"`
}

// Engine runs one rule over one series, forward only.
type Engine struct {
	logger zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l.With().Str("component", "backtest").Logger()
	}
}

// NewEngine creates a backtest engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type openPosition struct {
	entryIndex int
	entryTime  time.Time
	entryPrice float64
	stop       float64
	size       int64
	cost       float64 // notional plus entry commission
	commission float64
	reason     string
}

// Run executes rule over series. Per bar: stop-loss check, rule decision,
// forced close on the final bar, then the mark-to-market equity point.
func (e *Engine) Run(ctx context.Context, series *market.PriceSeries, rule Rule, cfg Config) (*Result, error) {
	if rule == nil {
		return nil, ErrNilRule
	}
	if cfg.InitialEquity <= 0 {
		return nil, ErrInvalidEquity
	}
	if series == nil || series.Len() == 0 {
		return nil, market.ErrEmptySeries
	}
	if ctx == nil {
		ctx = context.Background()
	}

	n := series.Len()
	start := min(max(cfg.WarmupBars, 0), n-1)
	result := &Result{
		Strategy:      rule.Name(),
		Symbol:        series.Symbol(),
		Config:        cfg,
		StartTime:     series.Bar(start).Timestamp,
		EndTime:       series.Last().Timestamp,
		InitialEquity: cfg.InitialEquity,
		Trades:        make([]Trade, 0),
		EquityCurve:   make([]EquityPoint, 0, n-start),
		ReasonStats:   make(map[string]*ReasonPerformance),
	}

	cash := cfg.InitialEquity
	var pos *openPosition
	exposedBars := 0

	closePosition := func(t int, price float64, reason string) {
		bar := series.Bar(t)
		notional := float64(pos.size) * price
		exitCommission := notional * cfg.Commission
		cash += notional - exitCommission

		pnl := notional - exitCommission - pos.cost
		trade := Trade{
			EntryIndex:  pos.entryIndex,
			ExitIndex:   t,
			EntryTime:   pos.entryTime,
			ExitTime:    bar.Timestamp,
			EntryPrice:  pos.entryPrice,
			ExitPrice:   price,
			StopPrice:   pos.stop,
			Size:        pos.size,
			Commission:  pos.commission + exitCommission,
			PnL:         pnl,
			ReturnPct:   pnl / pos.cost * 100,
			EntryReason: pos.reason,
			ExitReason:  reason,
		}
		result.Trades = append(result.Trades, trade)
		updateReasonStats(result, trade)

		e.logger.Debug().
			Str("symbol", series.Symbol()).
			Int("exit_index", t).
			Float64("pnl", pnl).
			Str("reason", reason).
			Msg("Closed position")
		pos = nil
	}

	for t := start; t < n; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := series.Bar(t)

		// Stop-loss fills at the stop, or at the open when it gaps through.
		if pos != nil && t > pos.entryIndex && bar.Low <= pos.stop {
			closePosition(t, min(pos.stop, bar.Open), ExitStopLoss)
		}

		view := View{Series: series.Upto(t), Equity: cash}
		if pos != nil {
			view.Position = PositionView{
				Open:       true,
				EntryIndex: pos.entryIndex,
				EntryPrice: pos.entryPrice,
				Size:       pos.size,
				Stop:       pos.stop,
			}
			view.Equity += float64(pos.size) * bar.Close
		}

		decision, err := rule.Decide(view)
		if err != nil {
			return nil, &StrategyError{Index: t, Rule: rule.Name(), Err: err}
		}

		switch decision.Action {
		case ActionEnter:
			if pos != nil || t == n-1 {
				break
			}
			opened, err := e.open(t, bar, decision, cash, cfg)
			if err != nil {
				return nil, &StrategyError{Index: t, Rule: rule.Name(), Err: err}
			}
			if opened != nil {
				cash -= opened.cost
				pos = opened
			}
		case ActionExit:
			if pos != nil {
				closePosition(t, bar.Close, decision.Reason)
			}
		}

		if pos != nil && t == n-1 {
			closePosition(t, bar.Close, ExitEndOfSeries)
		}

		equity := cash
		if pos != nil {
			equity += float64(pos.size) * bar.Close
			exposedBars++
		}
		result.EquityCurve = append(result.EquityCurve, EquityPoint{Index: t, Timestamp: bar.Timestamp, Equity: equity})
	}

	calculateMetrics(result, series.Bar(start).Close, series.Last().Close, exposedBars)
	return result, nil
}

// open sizes a new position at the bar close. A nil position with a nil
// error means the risk budget buys zero shares.
func (e *Engine) open(t int, bar market.PriceBar, d Decision, cash float64, cfg Config) (*openPosition, error) {
	price := bar.Close
	if d.Stop > price {
		return nil, fmt.Errorf("%w: stop %.4f, entry %.4f", ErrStopAboveEntry, d.Stop, price)
	}

	size, err := risk.CalculatePositionSize(risk.Parameters{
		AccountEquity:  cash,
		RiskPct:        cfg.RiskPctPerTrade,
		EntryPrice:     price,
		StopPrice:      d.Stop,
		MaxPositionPct: cfg.MaxPositionPct,
	})
	if err != nil {
		return nil, err
	}

	shares := size.Shares
	for shares > 0 && float64(shares)*price*(1+cfg.Commission) > cash {
		shares--
	}
	if shares == 0 {
		e.logger.Debug().Int("index", t).Msg("Risk budget too small for one share, skipping entry")
		return nil, nil
	}

	notional := float64(shares) * price
	commission := notional * cfg.Commission
	return &openPosition{
		entryIndex: t,
		entryTime:  bar.Timestamp,
		entryPrice: price,
		stop:       d.Stop,
		size:       shares,
		cost:       notional + commission,
		commission: commission,
		reason:     d.Reason,
	}, nil
}

// updateReasonStats updates performance stats for an entry reason
func updateReasonStats(result *Result, trade Trade) {
	stats, exists := result.ReasonStats[trade.EntryReason]
	if !exists {
		stats = &ReasonPerformance{Reason: trade.EntryReason}
		result.ReasonStats[trade.EntryReason] = stats
	}

	stats.TotalTrades++
	if trade.PnL > 0 {
		stats.Wins++
	} else {
		stats.Losses++
	}
	stats.NetProfit += trade.PnL
	stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades)
}
