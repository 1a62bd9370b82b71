package montecarlo

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"growth-screener/internal/market"
)

func closesSeries(t *testing.T, closes []float64) *market.PriceSeries {
	t.Helper()
	start := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = market.PriceBar{Timestamp: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 100}
	}
	s, err := market.NewPriceSeries("SIM", bars)
	if err != nil {
		t.Fatalf("Failed to build series: %v", err)
	}
	return s
}

// noisyCloses is a deterministic zig-zag with an upward drift.
func noisyCloses(n int) []float64 {
	out := make([]float64, n)
	price := 100.0
	for i := range out {
		if i%3 == 0 {
			price *= 0.985
		} else {
			price *= 1.012
		}
		out[i] = price
	}
	return out
}

func TestSimulate_Reproducible(t *testing.T) {
	s := closesSeries(t, noisyCloses(120))
	cfg := DefaultConfig()
	cfg.PathCount = 500

	e := NewEngine()
	a, err := e.Simulate(context.Background(), s, cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	cfg.Workers = 1
	cfg.BatchSize = 7
	b, err := e.Simulate(context.Background(), s, cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !reflect.DeepEqual(a.Paths, b.Paths) {
		t.Error("Expected identical paths for the same seed regardless of workers")
	}
	if !reflect.DeepEqual(a.Bands, b.Bands) {
		t.Error("Expected identical percentile bands")
	}

	cfg.Seed = 7
	c, _ := e.Simulate(context.Background(), s, cfg)
	if reflect.DeepEqual(a.Paths, c.Paths) {
		t.Error("Expected different paths for a different seed")
	}
}

func TestSimulate_ZeroVolatility(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 50
	}
	cfg := DefaultConfig()
	cfg.PathCount = 64
	cfg.HorizonDays = 10

	res, err := NewEngine().Simulate(context.Background(), closesSeries(t, closes), cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Params.Sigma != 0 {
		t.Errorf("Expected sigma 0, got %f", res.Params.Sigma)
	}
	for i, path := range res.Paths {
		for step, v := range path {
			if v != 50 {
				t.Fatalf("Path %d step %d: expected 50, got %f", i, step, v)
			}
		}
	}
	for _, band := range res.Bands {
		for step, v := range band.Values {
			if v != 50 {
				t.Errorf("Band p%g step %d: expected 50, got %f", band.Percentile, step, v)
			}
		}
	}
	if res.Terminal.StdDev != 0 {
		t.Errorf("Expected zero terminal std dev, got %f", res.Terminal.StdDev)
	}
}

func TestSimulate_ConstantGrowth(t *testing.T) {
	closes := make([]float64, 40)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * 1.01
	}
	cfg := DefaultConfig()
	cfg.PathCount = 10
	cfg.HorizonDays = 5

	res, err := NewEngine().Simulate(context.Background(), closesSeries(t, closes), cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := closes[len(closes)-1] * math.Pow(1.01, 5)
	got := res.Paths[0][5]
	if math.Abs(got-want)/want > 1e-6 {
		t.Errorf("Expected deterministic drift projection %f, got %f", want, got)
	}
}

func TestSimulate_BandShape(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PathCount = 300
	res, err := NewEngine().Simulate(context.Background(), closesSeries(t, noisyCloses(90)), cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(res.Paths) != 300 || len(res.Paths[0]) != 31 {
		t.Fatalf("Expected 300 paths of 31 points, got %d x %d", len(res.Paths), len(res.Paths[0]))
	}
	if len(res.Bands) != 5 {
		t.Fatalf("Expected 5 bands, got %d", len(res.Bands))
	}
	last := cfg.HorizonDays
	for j := 1; j < len(res.Bands); j++ {
		if res.Bands[j].Values[last] < res.Bands[j-1].Values[last] {
			t.Errorf("Bands not monotone at percentile %g", res.Bands[j].Percentile)
		}
	}
	if p := res.Terminal.ProbAboveStart; p < 0 || p > 1 {
		t.Errorf("Probability out of range: %f", p)
	}
	if _, ok := res.Terminal.Percentiles["p50"]; !ok {
		t.Error("Expected p50 in terminal percentiles")
	}
}

func TestSimulate_Errors(t *testing.T) {
	e := NewEngine()
	short := closesSeries(t, noisyCloses(10))

	_, err := e.Simulate(context.Background(), short, DefaultConfig())
	var ihe *InsufficientHistoryError
	if !errors.As(err, &ihe) {
		t.Fatalf("Expected InsufficientHistoryError, got %v", err)
	}
	if ihe.Have != 9 || ihe.Need != 30 {
		t.Errorf("Expected have=9 need=30, got have=%d need=%d", ihe.Have, ihe.Need)
	}

	long := closesSeries(t, noisyCloses(60))
	cfg := DefaultConfig()
	cfg.PathCount = 0
	if _, err := e.Simulate(context.Background(), long, cfg); !errors.Is(err, ErrInvalidPathCount) {
		t.Errorf("Expected ErrInvalidPathCount, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.HorizonDays = 0
	if _, err := e.Simulate(context.Background(), long, cfg); !errors.Is(err, ErrInvalidHorizon) {
		t.Errorf("Expected ErrInvalidHorizon, got %v", err)
	}
}

func TestValidate_Limits(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
		want error
	}{
		{"paths above default limit", func(c *Config) { c.PathCount = 100_000_000 }, ErrPathCountLimit},
		{"horizon above default limit", func(c *Config) { c.HorizonDays = 10_000 }, ErrHorizonLimit},
		{"paths above configured limit", func(c *Config) { c.MaxPathCount = 100; c.PathCount = 101 }, ErrPathCountLimit},
		{"zero limit means default", func(c *Config) { c.MaxPathCount = 0; c.PathCount = DefaultMaxPathCount + 1 }, ErrPathCountLimit},
		{"at limit", func(c *Config) { c.MaxHorizonDays = 60; c.HorizonDays = 60 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSimulate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine().Simulate(ctx, closesSeries(t, noisyCloses(60)), DefaultConfig())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		pct  float64
		want float64
	}{
		{0, 1},
		{50, 3},
		{100, 5},
		{25, 2},
		{10, 1.4},
	}
	for _, tt := range tests {
		if got := Percentile(sorted, tt.pct); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Percentile(%g): expected %f, got %f", tt.pct, tt.want, got)
		}
	}
}
