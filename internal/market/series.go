package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptySeries is returned when a series is built from zero bars.
var ErrEmptySeries = errors.New("price series must contain at least one bar")

// PriceBar is one OHLCV bar.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Body returns the absolute open/close distance.
func (b PriceBar) Body() float64 {
	if b.Close >= b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// Range returns high minus low.
func (b PriceBar) Range() float64 {
	return b.High - b.Low
}

// UpperWick returns the distance from the body top to the high.
func (b PriceBar) UpperWick() float64 {
	return b.High - max(b.Open, b.Close)
}

// LowerWick returns the distance from the body bottom to the low.
func (b PriceBar) LowerWick() float64 {
	return min(b.Open, b.Close) - b.Low
}

// IsBullish reports whether the bar closed above its open.
func (b PriceBar) IsBullish() bool {
	return b.Close > b.Open
}

// IsBearish reports whether the bar closed below its open.
func (b PriceBar) IsBearish() bool {
	return b.Close < b.Open
}

// SeriesError describes the first bar that violates a series invariant.
type SeriesError struct {
	Index  int
	Field  string
	Reason string
}

func (e *SeriesError) Error() string {
	return fmt.Sprintf("invalid bar %d (%s): %s", e.Index, e.Field, e.Reason)
}

// InsufficientDataError reports that an operation needs more bars than it got.
type InsufficientDataError struct {
	Op   string
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: have %d bars, need %d", e.Op, e.Have, e.Need)
}

// PriceSeries is an immutable, validated, time-ordered sequence of bars.
// Construct it with NewPriceSeries.
type PriceSeries struct {
	symbol string
	bars   []PriceBar
}

// NewPriceSeries validates bars and returns a series holding its own copy.
func NewPriceSeries(symbol string, bars []PriceBar) (*PriceSeries, error) {
	if len(bars) == 0 {
		return nil, ErrEmptySeries
	}
	for i, b := range bars {
		if err := validateBar(i, b); err != nil {
			return nil, err
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return nil, &SeriesError{Index: i, Field: "timestamp", Reason: "timestamps must be strictly increasing"}
		}
	}

	owned := make([]PriceBar, len(bars))
	copy(owned, bars)
	return &PriceSeries{symbol: symbol, bars: owned}, nil
}

func validateBar(i int, b PriceBar) error {
	switch {
	case b.Open <= 0:
		return &SeriesError{Index: i, Field: "open", Reason: "price must be positive"}
	case b.High <= 0:
		return &SeriesError{Index: i, Field: "high", Reason: "price must be positive"}
	case b.Low <= 0:
		return &SeriesError{Index: i, Field: "low", Reason: "price must be positive"}
	case b.Close <= 0:
		return &SeriesError{Index: i, Field: "close", Reason: "price must be positive"}
	case b.High < b.Low:
		return &SeriesError{Index: i, Field: "high", Reason: "high is below low"}
	case b.Volume < 0:
		return &SeriesError{Index: i, Field: "volume", Reason: "volume must be non-negative"}
	}
	return nil
}

// Symbol returns the ticker the series belongs to.
func (s *PriceSeries) Symbol() string { return s.symbol }

// Len returns the number of bars.
func (s *PriceSeries) Len() int { return len(s.bars) }

// Bar returns the bar at index i.
func (s *PriceSeries) Bar(i int) PriceBar { return s.bars[i] }

// Last returns the final bar.
func (s *PriceSeries) Last() PriceBar { return s.bars[len(s.bars)-1] }

// Bars returns a copy of all bars.
func (s *PriceSeries) Bars() []PriceBar {
	out := make([]PriceBar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Upto returns the prefix view ending at index t inclusive. The view shares
// storage with s but cannot grow into bars after t.
func (s *PriceSeries) Upto(t int) *PriceSeries {
	if t < 0 {
		t = 0
	}
	if t >= len(s.bars) {
		t = len(s.bars) - 1
	}
	return &PriceSeries{symbol: s.symbol, bars: s.bars[: t+1 : t+1]}
}

// Tail returns a view of the last n bars (or all bars when n >= Len).
func (s *PriceSeries) Tail(n int) *PriceSeries {
	if n >= len(s.bars) || n <= 0 {
		return s
	}
	return &PriceSeries{symbol: s.symbol, bars: s.bars[len(s.bars)-n:]}
}

// Between returns bars with from <= Timestamp <= to. A zero bound is open.
// Returns ErrEmptySeries when no bar falls in the range.
func (s *PriceSeries) Between(from, to time.Time) (*PriceSeries, error) {
	start, end := 0, len(s.bars)
	if !from.IsZero() {
		for start < end && s.bars[start].Timestamp.Before(from) {
			start++
		}
	}
	if !to.IsZero() {
		for end > start && s.bars[end-1].Timestamp.After(to) {
			end--
		}
	}
	if start == end {
		return nil, ErrEmptySeries
	}
	return &PriceSeries{symbol: s.symbol, bars: s.bars[start:end:end]}, nil
}

// Closes returns closing prices.
func (s *PriceSeries) Closes() []float64 {
	return s.column(func(b PriceBar) float64 { return b.Close })
}

// Opens returns opening prices.
func (s *PriceSeries) Opens() []float64 {
	return s.column(func(b PriceBar) float64 { return b.Open })
}

// Highs returns high prices.
func (s *PriceSeries) Highs() []float64 {
	return s.column(func(b PriceBar) float64 { return b.High })
}

// Lows returns low prices.
func (s *PriceSeries) Lows() []float64 {
	return s.column(func(b PriceBar) float64 { return b.Low })
}

// Volumes returns traded volumes.
func (s *PriceSeries) Volumes() []float64 {
	return s.column(func(b PriceBar) float64 { return b.Volume })
}

func (s *PriceSeries) column(f func(PriceBar) float64) []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = f(b)
	}
	return out
}
