package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// DefaultRiskPct is the fraction of equity risked per trade.
const DefaultRiskPct = 0.01

var maxShares = decimal.NewFromInt(math.MaxInt64)

// InvalidStopError is returned when the stop equals the entry price.
type InvalidStopError struct {
	Entry float64
	Stop  float64
}

func (e *InvalidStopError) Error() string {
	return fmt.Sprintf("invalid stop %.4f: zero distance from entry %.4f", e.Stop, e.Entry)
}

// ParameterError names an out-of-range sizing input.
type ParameterError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Parameters are the inputs to fixed-fractional position sizing.
// RiskPct and MaxPositionPct are fractions of equity.
type Parameters struct {
	AccountEquity float64 `json:"account_equity"`
	RiskPct       float64 `json:"risk_pct_per_trade"`
	EntryPrice    float64 `json:"entry_price"`
	StopPrice     float64 `json:"stop_price"`
	// MaxPositionPct caps position value as a fraction of equity; 0 means 1.0.
	MaxPositionPct float64 `json:"max_position_pct,omitempty"`
}

// PositionSize is the sizing result. Pct fields are percentages.
type PositionSize struct {
	Shares          int64   `json:"shares"`
	RiskPerShare    float64 `json:"risk_per_share"`
	DollarRisk      float64 `json:"dollar_risk"`
	PositionValue   float64 `json:"position_value"`
	PctOfEquity     float64 `json:"pct_of_equity"`
	RiskPctOfEquity float64 `json:"risk_pct_of_equity"`
	CappedByCapital bool    `json:"capped_by_capital"`
}

// CalculatePositionSize returns floor(equity * risk / |entry - stop|) shares,
// reduced so the position never costs more than equity * MaxPositionPct.
func CalculatePositionSize(p Parameters) (*PositionSize, error) {
	if p.RiskPct == 0 {
		p.RiskPct = DefaultRiskPct
	}
	if p.MaxPositionPct == 0 {
		p.MaxPositionPct = 1
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.EntryPrice == p.StopPrice {
		return nil, &InvalidStopError{Entry: p.EntryPrice, Stop: p.StopPrice}
	}

	equity := decimal.NewFromFloat(p.AccountEquity)
	entry := decimal.NewFromFloat(p.EntryPrice)
	distance := entry.Sub(decimal.NewFromFloat(p.StopPrice)).Abs()

	riskAmount := equity.Mul(decimal.NewFromFloat(p.RiskPct))
	riskShares, _ := riskAmount.QuoRem(distance, 0)

	capital := equity.Mul(decimal.NewFromFloat(p.MaxPositionPct))
	capShares, _ := capital.QuoRem(entry, 0)

	capped := capShares.LessThan(riskShares)
	limit := decimal.Min(riskShares, capShares)
	if limit.GreaterThan(maxShares) {
		return nil, &ParameterError{Field: "account_equity", Value: p.AccountEquity, Reason: "share count exceeds int64 range"}
	}
	shares := limit.IntPart()
	// Guard against float rounding in the caller's own cost arithmetic.
	for shares > 0 && float64(shares)*p.EntryPrice > p.AccountEquity*p.MaxPositionPct {
		shares--
		capped = true
	}

	qty := decimal.NewFromInt(shares)
	dollarRisk := qty.Mul(distance)
	value := qty.Mul(entry)
	hundred := decimal.NewFromInt(100)

	return &PositionSize{
		Shares:          shares,
		RiskPerShare:    distance.InexactFloat64(),
		DollarRisk:      dollarRisk.InexactFloat64(),
		PositionValue:   value.InexactFloat64(),
		PctOfEquity:     value.Div(equity).Mul(hundred).InexactFloat64(),
		RiskPctOfEquity: dollarRisk.Div(equity).Mul(hundred).InexactFloat64(),
		CappedByCapital: capped,
	}, nil
}

func (p Parameters) validate() error {
	switch {
	case p.AccountEquity <= 0:
		return &ParameterError{Field: "account_equity", Value: p.AccountEquity, Reason: "must be positive"}
	case p.EntryPrice <= 0:
		return &ParameterError{Field: "entry_price", Value: p.EntryPrice, Reason: "must be positive"}
	case p.StopPrice < 0:
		return &ParameterError{Field: "stop_price", Value: p.StopPrice, Reason: "must be non-negative"}
	case p.RiskPct < 0 || p.RiskPct > 1:
		return &ParameterError{Field: "risk_pct_per_trade", Value: p.RiskPct, Reason: "must be in (0, 1]"}
	case p.MaxPositionPct < 0 || p.MaxPositionPct > 1:
		return &ParameterError{Field: "max_position_pct", Value: p.MaxPositionPct, Reason: "must be in (0, 1]"}
	}
	return nil
}
