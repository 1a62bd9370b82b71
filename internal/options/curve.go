package options

import (
	"fmt"
	"math"
)

const (
	// ContractSize is the number of shares per listed contract.
	ContractSize = 100

	defaultDaysToExpiry = 30
	defaultRiskFreeRate = 0.042
	defaultVolatility   = 0.30
	otmFactor           = 1.05
	evalDaysRemaining   = 7
	curveSteps          = 40
)

// CurveRequest describes a suggested call on a growth target. Zero values
// select 30% volatility, 30 days to expiry and a 4.2% risk-free rate.
type CurveRequest struct {
	EntryPrice   float64  `json:"entry_price"`
	TargetPrice  float64  `json:"target_price"`
	Volatility   float64  `json:"volatility,omitempty"`
	DaysToExpiry int      `json:"days_to_expiry,omitempty"`
	RiskFreeRate *float64 `json:"risk_free_rate,omitempty"`
}

// CurvePoint is the profit or loss of one contract at an underlying price.
type CurvePoint struct {
	Underlying float64 `json:"underlying"`
	ProfitLoss float64 `json:"profit_loss"`
}

// Curve is the P/L profile of one suggested call contract, valued one week
// before expiry.
type Curve struct {
	SuggestedStrike float64      `json:"suggested_strike"`
	DaysToExpiry    int          `json:"days_to_expiry"`
	ContractCost    float64      `json:"contract_cost"`
	Volatility      float64      `json:"volatility"`
	RiskFreeRate    float64      `json:"risk_free_rate"`
	Greeks          Greeks       `json:"greeks"`
	Points          []CurvePoint `json:"points"`
}

// PLCurve suggests a call struck about 5% above entry and values it across
// underlying prices from 80% of entry to the larger of 110% of target and
// 130% of entry.
func PLCurve(req CurveRequest) (*Curve, error) {
	if req.EntryPrice <= 0 {
		return nil, &InputError{Field: "entry_price", Reason: fmt.Sprintf("must be positive, got %v", req.EntryPrice)}
	}
	if req.Volatility <= 0 {
		req.Volatility = defaultVolatility
	}
	if req.DaysToExpiry <= 0 {
		req.DaysToExpiry = defaultDaysToExpiry
	}
	rate := defaultRiskFreeRate
	if req.RiskFreeRate != nil {
		rate = *req.RiskFreeRate
	}

	strike := math.Round(req.EntryPrice*otmFactor*100) / 100
	now := Inputs{
		Spot:       req.EntryPrice,
		Strike:     strike,
		Years:      float64(req.DaysToExpiry) / 365,
		Rate:       rate,
		Volatility: req.Volatility,
		Type:       Call,
	}
	cost := price(now) * ContractSize
	greeks, err := CalculateGreeks(now)
	if err != nil {
		return nil, err
	}

	lo := req.EntryPrice * 0.8
	hi := math.Max(req.TargetPrice*1.1, req.EntryPrice*1.3)
	step := (hi - lo) / curveSteps

	later := now
	later.Years = evalDaysRemaining / 365.0
	points := make([]CurvePoint, 0, curveSteps+1)
	for i := 0; i <= curveSteps; i++ {
		later.Spot = lo + step*float64(i)
		points = append(points, CurvePoint{
			Underlying: later.Spot,
			ProfitLoss: price(later)*ContractSize - cost,
		})
	}

	return &Curve{
		SuggestedStrike: strike,
		DaysToExpiry:    req.DaysToExpiry,
		ContractCost:    cost,
		Volatility:      req.Volatility,
		RiskFreeRate:    rate,
		Greeks:          greeks,
		Points:          points,
	}, nil
}
