package analysis

import (
	talib "github.com/markcheno/go-talib"
)

// EMA returns the exponential moving average of values. Entries before the
// first full period are 0. Returns nil when len(values) < period.
func EMA(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return nil
	}
	return talib.Ema(values, period)
}

// SMA returns the simple moving average of values, nil when too short.
func SMA(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return nil
	}
	return talib.Sma(values, period)
}

// RSI returns Wilder's relative strength index. The first period entries are
// 0. Returns nil unless there are at least period+1 values.
func RSI(values []float64, period int) []float64 {
	if period < 2 || len(values) < period+1 {
		return nil
	}
	return talib.Rsi(values, period)
}

// lastOf returns a pointer to the final element, nil for an empty slice.
func lastOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	v := values[len(values)-1]
	return &v
}

// backOf returns values[len-1-n], nil when out of range.
func backOf(values []float64, n int) *float64 {
	i := len(values) - 1 - n
	if i < 0 || i >= len(values) {
		return nil
	}
	v := values[i]
	return &v
}
