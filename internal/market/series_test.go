package market

import (
	"context"
	"errors"
	"testing"
	"time"
)

func makeBars(closes ...float64) []PriceBar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = PriceBar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func TestNewPriceSeries_Valid(t *testing.T) {
	bars := makeBars(10, 11, 12)
	s, err := NewPriceSeries("AAPL", bars)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Expected 3 bars, got %d", s.Len())
	}

	// mutating the input must not affect the series
	bars[0].Close = 999
	if s.Bar(0).Close != 10 {
		t.Errorf("Expected series to own its bars, got close %f", s.Bar(0).Close)
	}
}

func TestNewPriceSeries_Invalid(t *testing.T) {
	dup := makeBars(10, 11)
	dup[1].Timestamp = dup[0].Timestamp

	badHigh := makeBars(10)
	badHigh[0].High = 5

	negVol := makeBars(10)
	negVol[0].Volume = -1

	zero := makeBars(10)
	zero[0].Close = 0

	tests := []struct {
		name  string
		bars  []PriceBar
		field string
	}{
		{"duplicate timestamp", dup, "timestamp"},
		{"high below low", badHigh, "high"},
		{"negative volume", negVol, "volume"},
		{"zero close", zero, "close"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPriceSeries("X", tt.bars)
			var se *SeriesError
			if !errors.As(err, &se) {
				t.Fatalf("Expected SeriesError, got %v", err)
			}
			if se.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, se.Field)
			}
		})
	}

	if _, err := NewPriceSeries("X", nil); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("Expected ErrEmptySeries, got %v", err)
	}
}

func TestPriceSeries_Upto(t *testing.T) {
	s, _ := NewPriceSeries("X", makeBars(1, 2, 3, 4, 5))
	prefix := s.Upto(2)
	if prefix.Len() != 3 {
		t.Fatalf("Expected prefix length 3, got %d", prefix.Len())
	}
	if prefix.Last().Close != 3 {
		t.Errorf("Expected last close 3, got %f", prefix.Last().Close)
	}
	closes := prefix.Closes()
	if len(closes) != 3 {
		t.Errorf("Expected 3 closes, got %d", len(closes))
	}
}

func TestPriceSeries_Between(t *testing.T) {
	s, _ := NewPriceSeries("X", makeBars(1, 2, 3, 4, 5))
	from := s.Bar(1).Timestamp
	to := s.Bar(3).Timestamp

	sub, err := s.Between(from, to)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sub.Len() != 3 || sub.Bar(0).Close != 2 {
		t.Errorf("Expected bars 2..4, got len %d first %f", sub.Len(), sub.Bar(0).Close)
	}

	all, _ := s.Between(time.Time{}, time.Time{})
	if all.Len() != 5 {
		t.Errorf("Expected open bounds to keep all bars, got %d", all.Len())
	}

	if _, err := s.Between(to.AddDate(1, 0, 0), time.Time{}); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("Expected ErrEmptySeries, got %v", err)
	}
}

func TestBarGeometry(t *testing.T) {
	b := PriceBar{Open: 10, High: 15, Low: 8, Close: 12}
	if b.Body() != 2 {
		t.Errorf("Expected body 2, got %f", b.Body())
	}
	if b.UpperWick() != 3 {
		t.Errorf("Expected upper wick 3, got %f", b.UpperWick())
	}
	if b.LowerWick() != 2 {
		t.Errorf("Expected lower wick 2, got %f", b.LowerWick())
	}
	if !b.IsBullish() {
		t.Error("Expected bullish bar")
	}
}

func TestIsUSExchange(t *testing.T) {
	for _, code := range []string{"NASDAQ", "nyse", "NMS", "NYQ", "PCX"} {
		if !IsUSExchange(code) {
			t.Errorf("Expected %s to be a US exchange", code)
		}
	}
	for _, code := range []string{"OTCMKTS", "LSE", ""} {
		if IsUSExchange(code) {
			t.Errorf("Expected %s not to be a US exchange", code)
		}
	}
}

func TestStaticSource(t *testing.T) {
	s, _ := NewPriceSeries("MSFT", makeBars(1, 2))
	src := StaticSource{"MSFT": {Series: s}}

	ds, err := src.Fetch(context.Background(), "msft")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ds.Series.Symbol() != "MSFT" {
		t.Errorf("Expected MSFT, got %s", ds.Series.Symbol())
	}
	if _, err := src.Fetch(context.Background(), "NOPE"); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("Expected ErrSymbolNotFound, got %v", err)
	}
}
