package backtest

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"growth-screener/internal/analysis"
	"growth-screener/internal/patterns"
)

// ErrUnknownStrategy is returned by NewRule for an unregistered name.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Built-in strategy names.
const (
	StrategyBuyAndHold    = "buy_and_hold"
	StrategyEMACrossover  = "ema_crossover"
	StrategyRSIReversion  = "rsi_reversion"
	StrategyTrendPullback = "trend_pullback"
	StrategyCandlestick   = "candlestick"
)

// defaultStopPct is the protective stop distance used by built-in rules.
const defaultStopPct = 0.08

// Params are numeric strategy parameters keyed by name.
type Params map[string]float64

func (p Params) get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

func (p Params) getInt(key string, def int) int {
	return int(p.get(key, float64(def)))
}

type factory func(Params) (Rule, error)

var registry = map[string]factory{
	StrategyBuyAndHold: func(p Params) (Rule, error) {
		return &BuyAndHold{StopPct: p.get("stop_pct", defaultStopPct)}, nil
	},
	StrategyEMACrossover: func(p Params) (Rule, error) {
		r := &EMACrossover{
			Fast:    p.getInt("fast", 20),
			Slow:    p.getInt("slow", 50),
			StopPct: p.get("stop_pct", defaultStopPct),
		}
		if r.Fast <= 0 || r.Fast >= r.Slow {
			return nil, fmt.Errorf("ema_crossover: fast period %d must be positive and below slow %d", r.Fast, r.Slow)
		}
		return r, nil
	},
	StrategyRSIReversion: func(p Params) (Rule, error) {
		r := &RSIReversion{
			Period:     p.getInt("period", 14),
			Oversold:   p.get("oversold", 30),
			Overbought: p.get("overbought", 70),
			StopPct:    p.get("stop_pct", defaultStopPct),
		}
		if r.Period < 2 || r.Oversold >= r.Overbought {
			return nil, fmt.Errorf("rsi_reversion: invalid period %d or band %.0f-%.0f", r.Period, r.Oversold, r.Overbought)
		}
		return r, nil
	},
	StrategyTrendPullback: func(p Params) (Rule, error) {
		return &TrendPullback{
			Fast:      p.getInt("fast", 20),
			Slow:      p.getInt("slow", 50),
			RSIPeriod: p.getInt("rsi_period", 14),
			EntryRSI:  p.get("entry_rsi", 45),
			ExitRSI:   p.get("exit_rsi", 70),
			StopPct:   p.get("stop_pct", defaultStopPct),
		}, nil
	},
	StrategyCandlestick: func(p Params) (Rule, error) {
		d, err := patterns.NewDetector(p.getInt("window", patterns.DefaultWindow))
		if err != nil {
			return nil, err
		}
		return &Candlestick{
			Detector:      d,
			MinConfidence: p.get("min_confidence", 0.6),
			StopBuffer:    p.get("stop_buffer", 0.005),
		}, nil
	},
}

// NewRule builds a registered strategy rule.
func NewRule(name string, params Params) (Rule, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	return f(params)
}

// StrategyNames lists registered strategies, sorted.
func StrategyNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stopBelow(price, pct float64) float64 {
	return price * (1 - pct)
}

// BuyAndHold enters on the first bar and holds to the end.
type BuyAndHold struct {
	StopPct float64
}

func (r *BuyAndHold) Name() string { return StrategyBuyAndHold }

func (r *BuyAndHold) Decide(v View) (Decision, error) {
	if v.Position.Open {
		return Hold(), nil
	}
	return Enter(stopBelow(v.Bar().Close, r.StopPct), "buy_and_hold"), nil
}

// EMACrossover is long while the fast EMA is above the slow EMA.
type EMACrossover struct {
	Fast    int
	Slow    int
	StopPct float64
}

func (r *EMACrossover) Name() string { return StrategyEMACrossover }

func (r *EMACrossover) Decide(v View) (Decision, error) {
	closes := v.Series.Closes()
	fast, slow := analysis.EMA(closes, r.Fast), analysis.EMA(closes, r.Slow)
	if slow == nil {
		return Hold(), nil
	}
	f, s := fast[len(fast)-1], slow[len(slow)-1]

	switch {
	case !v.Position.Open && f > s:
		return Enter(stopBelow(v.Bar().Close, r.StopPct), "ema_fast_above_slow"), nil
	case v.Position.Open && f < s:
		return Exit("ema_fast_below_slow"), nil
	}
	return Hold(), nil
}

// RSIReversion buys oversold and sells overbought.
type RSIReversion struct {
	Period     int
	Oversold   float64
	Overbought float64
	StopPct    float64
}

func (r *RSIReversion) Name() string { return StrategyRSIReversion }

func (r *RSIReversion) Decide(v View) (Decision, error) {
	rsi := analysis.RSI(v.Series.Closes(), r.Period)
	if rsi == nil {
		return Hold(), nil
	}
	last := rsi[len(rsi)-1]

	switch {
	case !v.Position.Open && last < r.Oversold:
		return Enter(stopBelow(v.Bar().Close, r.StopPct), "rsi_oversold"), nil
	case v.Position.Open && last > r.Overbought:
		return Exit("rsi_overbought"), nil
	}
	return Hold(), nil
}

// TrendPullback buys RSI dips inside an EMA uptrend and exits on an
// overbought RSI or a broken trend.
type TrendPullback struct {
	Fast      int
	Slow      int
	RSIPeriod int
	EntryRSI  float64
	ExitRSI   float64
	StopPct   float64
}

func (r *TrendPullback) Name() string { return StrategyTrendPullback }

func (r *TrendPullback) Decide(v View) (Decision, error) {
	closes := v.Series.Closes()
	fast, slow := analysis.EMA(closes, r.Fast), analysis.EMA(closes, r.Slow)
	rsi := analysis.RSI(closes, r.RSIPeriod)
	if fast == nil || slow == nil || rsi == nil {
		return Hold(), nil
	}
	f, s, last := fast[len(fast)-1], slow[len(slow)-1], rsi[len(rsi)-1]

	if !v.Position.Open {
		if f > s && last < r.EntryRSI {
			return Enter(stopBelow(v.Bar().Close, r.StopPct), "trend_pullback"), nil
		}
		return Hold(), nil
	}
	if last > r.ExitRSI {
		return Exit("rsi_overbought"), nil
	}
	if f < s {
		return Exit("trend_broken"), nil
	}
	return Hold(), nil
}

// Candlestick enters on bullish patterns completed at the current bar and
// exits on bearish ones.
type Candlestick struct {
	Detector      *patterns.Detector
	MinConfidence float64
	StopBuffer    float64
}

func (r *Candlestick) Name() string { return StrategyCandlestick }

func (r *Candlestick) Decide(v View) (Decision, error) {
	if v.Series.Len() < r.Detector.Window() {
		return Hold(), nil
	}
	matches, err := r.Detector.Recent(v.Series.Tail(r.Detector.Window()), 1)
	if err != nil {
		return Decision{}, err
	}
	matches = slices.DeleteFunc(matches, func(m patterns.Match) bool {
		return m.Confidence < r.MinConfidence
	})

	bar := v.Bar()
	for _, m := range matches {
		switch {
		case !v.Position.Open && m.Direction == patterns.Bullish:
			stop := bar.Low * (1 - r.StopBuffer)
			if stop >= bar.Close {
				continue
			}
			return Enter(stop, string(m.Kind)), nil
		case v.Position.Open && m.Direction == patterns.Bearish:
			return Exit(string(m.Kind)), nil
		}
	}
	return Hold(), nil
}
