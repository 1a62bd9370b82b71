// Package options prices European options with the Black-Scholes model.
package options

import (
	"fmt"
	"math"
	"strings"
)

// Type is call or put.
type Type string

const (
	Call Type = "call"
	Put  Type = "put"
)

// ParseType accepts "call" or "put" in any case.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case Call, "":
		return Call, nil
	case Put:
		return Put, nil
	}
	return "", &InputError{Field: "type", Reason: fmt.Sprintf("must be call or put, got %q", s)}
}

// InputError names an invalid pricing input.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Inputs are the Black-Scholes parameters. Rate and volatility are annual
// fractions, Years is time to expiry in years.
type Inputs struct {
	Spot       float64 `json:"spot"`
	Strike     float64 `json:"strike"`
	Years      float64 `json:"years"`
	Rate       float64 `json:"rate"`
	Volatility float64 `json:"volatility"`
	Type       Type    `json:"type"`
}

func (in Inputs) validate() error {
	switch {
	case in.Spot <= 0:
		return &InputError{Field: "spot", Reason: fmt.Sprintf("must be positive, got %v", in.Spot)}
	case in.Strike <= 0:
		return &InputError{Field: "strike", Reason: fmt.Sprintf("must be positive, got %v", in.Strike)}
	case in.Type != Call && in.Type != Put:
		return &InputError{Field: "type", Reason: fmt.Sprintf("must be call or put, got %q", in.Type)}
	}
	return nil
}

// Greeks are per-contract-share sensitivities. Theta is per calendar day,
// vega per one volatility point and rho per one rate point.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// Quote is a theoretical price with its greeks.
type Quote struct {
	Inputs Inputs  `json:"inputs"`
	Price  float64 `json:"price"`
	Greeks Greeks  `json:"greeks"`
}

func normCDF(x float64) float64 {
	return (1 + math.Erf(x/math.Sqrt2)) / 2
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

func d1d2(in Inputs) (float64, float64) {
	sqrtT := math.Sqrt(in.Years)
	d1 := (math.Log(in.Spot/in.Strike) + (in.Rate+0.5*in.Volatility*in.Volatility)*in.Years) / (in.Volatility * sqrtT)
	return d1, d1 - in.Volatility*sqrtT
}

// Price returns the theoretical option price. An expired option is worth its
// intrinsic value; zero volatility prices at 0.
func Price(in Inputs) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	return price(in), nil
}

func price(in Inputs) float64 {
	if in.Years <= 0 {
		if in.Type == Call {
			return math.Max(0, in.Spot-in.Strike)
		}
		return math.Max(0, in.Strike-in.Spot)
	}
	if in.Volatility <= 0 {
		return 0
	}

	d1, d2 := d1d2(in)
	discount := in.Strike * math.Exp(-in.Rate*in.Years)
	if in.Type == Call {
		return in.Spot*normCDF(d1) - discount*normCDF(d2)
	}
	return discount*normCDF(-d2) - in.Spot*normCDF(-d1)
}

// CalculateGreeks returns zero greeks for expired or zero-volatility inputs.
func CalculateGreeks(in Inputs) (Greeks, error) {
	if err := in.validate(); err != nil {
		return Greeks{}, err
	}
	if in.Years <= 0 || in.Volatility <= 0 {
		return Greeks{}, nil
	}

	d1, d2 := d1d2(in)
	sqrtT := math.Sqrt(in.Years)
	pdf := normPDF(d1)
	discount := in.Strike * math.Exp(-in.Rate*in.Years)
	decay := -(in.Spot * pdf * in.Volatility) / (2 * sqrtT)

	g := Greeks{
		Gamma: pdf / (in.Spot * in.Volatility * sqrtT),
		Vega:  in.Spot * pdf * sqrtT / 100,
	}
	if in.Type == Call {
		g.Delta = normCDF(d1)
		g.Theta = (decay - in.Rate*discount*normCDF(d2)) / 365
		g.Rho = in.Years * discount * normCDF(d2) / 100
	} else {
		g.Delta = normCDF(d1) - 1
		g.Theta = (decay + in.Rate*discount*normCDF(-d2)) / 365
		g.Rho = -in.Years * discount * normCDF(-d2) / 100
	}
	return g, nil
}

// Evaluate prices the option and computes its greeks.
func Evaluate(in Inputs) (*Quote, error) {
	if in.Type == "" {
		in.Type = Call
	}
	p, err := Price(in)
	if err != nil {
		return nil, err
	}
	g, _ := CalculateGreeks(in)
	return &Quote{Inputs: in, Price: p, Greeks: g}, nil
}
