package options

import (
	"errors"
	"math"
	"testing"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func atTheMoney(typ Type) Inputs {
	return Inputs{Spot: 100, Strike: 100, Years: 1, Rate: 0.05, Volatility: 0.2, Type: typ}
}

func TestPrice_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want float64
	}{
		{"call", atTheMoney(Call), 10.4506},
		{"put", atTheMoney(Put), 5.5735},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Price(tt.in)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !near(got, tt.want, 1e-4) {
				t.Errorf("Expected %.4f, got %.4f", tt.want, got)
			}
		})
	}
}

func TestPrice_PutCallParity(t *testing.T) {
	for _, strike := range []float64{80, 95, 100, 120} {
		call := atTheMoney(Call)
		call.Strike = strike
		put := call
		put.Type = Put

		c, _ := Price(call)
		p, _ := Price(put)
		parity := call.Spot - strike*math.Exp(-call.Rate*call.Years)
		if !near(c-p, parity, 1e-9) {
			t.Errorf("Strike %.0f: expected C-P = %f, got %f", strike, parity, c-p)
		}
	}
}

func TestPrice_EdgeCases(t *testing.T) {
	expired := Inputs{Spot: 110, Strike: 100, Years: 0, Type: Call}
	if p, _ := Price(expired); p != 10 {
		t.Errorf("Expected intrinsic value 10, got %f", p)
	}
	expired.Type = Put
	if p, _ := Price(expired); p != 0 {
		t.Errorf("Expected worthless put, got %f", p)
	}

	flat := atTheMoney(Call)
	flat.Volatility = 0
	if p, _ := Price(flat); p != 0 {
		t.Errorf("Expected 0 for zero volatility, got %f", p)
	}

	if _, err := Price(Inputs{Spot: 100, Strike: 100, Years: 1, Type: "straddle"}); err == nil {
		t.Error("Expected error for unknown option type")
	}
	_, err := Price(Inputs{Spot: 0, Strike: 100, Years: 1, Type: Call})
	var inputErr *InputError
	if !errors.As(err, &inputErr) || inputErr.Field != "spot" {
		t.Errorf("Expected InputError on spot, got %v", err)
	}
}

func TestCalculateGreeks(t *testing.T) {
	call, err := CalculateGreeks(atTheMoney(Call))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	put, _ := CalculateGreeks(atTheMoney(Put))

	if !near(call.Delta, 0.6368, 1e-4) {
		t.Errorf("Expected call delta 0.6368, got %.4f", call.Delta)
	}
	if !near(call.Delta-put.Delta, 1, 1e-12) {
		t.Errorf("Expected call delta - put delta = 1, got %f", call.Delta-put.Delta)
	}
	if call.Gamma != put.Gamma || call.Vega != put.Vega {
		t.Error("Expected gamma and vega to match between call and put")
	}
	if !near(call.Vega, 0.3752, 1e-4) {
		t.Errorf("Expected vega 0.3752 per vol point, got %.4f", call.Vega)
	}
	if call.Theta >= 0 {
		t.Errorf("Expected negative daily theta for a long call, got %f", call.Theta)
	}
	if call.Rho <= 0 || put.Rho >= 0 {
		t.Errorf("Expected positive call rho and negative put rho, got %f and %f", call.Rho, put.Rho)
	}

	expired := atTheMoney(Call)
	expired.Years = 0
	if g, _ := CalculateGreeks(expired); g != (Greeks{}) {
		t.Errorf("Expected zero greeks at expiry, got %+v", g)
	}
}

func TestParseType(t *testing.T) {
	if typ, _ := ParseType(" PUT "); typ != Put {
		t.Errorf("Expected put, got %s", typ)
	}
	if typ, _ := ParseType(""); typ != Call {
		t.Errorf("Expected default call, got %s", typ)
	}
	if _, err := ParseType("butterfly"); err == nil {
		t.Error("Expected error for unknown type")
	}
}

func TestPLCurve(t *testing.T) {
	curve, err := PLCurve(CurveRequest{EntryPrice: 100, TargetPrice: 150})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if curve.SuggestedStrike != 105 {
		t.Errorf("Expected strike 105, got %f", curve.SuggestedStrike)
	}
	if curve.Volatility != 0.30 || curve.DaysToExpiry != 30 || curve.RiskFreeRate != 0.042 {
		t.Errorf("Expected defaults, got vol %f days %d rate %f", curve.Volatility, curve.DaysToExpiry, curve.RiskFreeRate)
	}
	if len(curve.Points) != 41 {
		t.Fatalf("Expected 41 points, got %d", len(curve.Points))
	}
	if curve.ContractCost <= 0 {
		t.Errorf("Expected positive contract cost, got %f", curve.ContractCost)
	}

	first, last := curve.Points[0], curve.Points[len(curve.Points)-1]
	if !near(first.Underlying, 80, 1e-9) || !near(last.Underlying, 165, 1e-9) {
		t.Errorf("Expected range 80..165, got %f..%f", first.Underlying, last.Underlying)
	}
	// deep out of the money a week before expiry the contract is nearly worthless
	if !near(first.ProfitLoss, -curve.ContractCost, 0.01) {
		t.Errorf("Expected loss of the premium at 80, got %f", first.ProfitLoss)
	}
	for i := 1; i < len(curve.Points); i++ {
		if curve.Points[i].ProfitLoss < curve.Points[i-1].ProfitLoss {
			t.Fatalf("Expected P/L to rise with the underlying at point %d", i)
		}
	}

	if _, err := PLCurve(CurveRequest{}); err == nil {
		t.Error("Expected error for zero entry price")
	}
}
