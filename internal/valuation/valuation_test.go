package valuation

import (
	"errors"
	"math"
	"testing"

	"growth-screener/internal/market"
)

func baseFundamentals() market.FundamentalsSnapshot {
	return market.FundamentalsSnapshot{
		EPS:               market.Float(5),
		BookValuePerShare: market.Float(20),
		FreeCashFlow:      market.Float(1_000),
		SharesOutstanding: market.Float(100),
		TotalCash:         market.Float(200),
		TotalDebt:         market.Float(100),
		EPSGrowth5Y:       market.Float(0.08),
	}
}

func TestGraham(t *testing.T) {
	fv, note := Graham(baseFundamentals())
	if note != nil {
		t.Fatalf("Unexpected note: %+v", note)
	}
	want := math.Sqrt(22.5 * 5 * 20)
	if math.Abs(fv-want) > 1e-9 {
		t.Errorf("Expected %f, got %f", want, fv)
	}

	f := baseFundamentals()
	f.EPS = market.Float(-1)
	if _, note := Graham(f); note == nil || note.Field != "eps" {
		t.Errorf("Expected eps note for negative EPS, got %+v", note)
	}
}

func TestDCF_KnownValue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Years = 1
	cfg.GrowthRate = market.Float(0.10)

	f := market.FundamentalsSnapshot{
		FreeCashFlow:      market.Float(100),
		SharesOutstanding: market.Float(10),
	}
	detail, fv, note := DCF(f, cfg)
	if note != nil {
		t.Fatalf("Unexpected note: %+v", note)
	}

	cf1 := 110.0
	pv := cf1 / 1.10
	tv := cf1 * 1.025 / (0.10 - 0.025)
	ev := pv + tv/1.10
	if math.Abs(fv-ev/10) > 1e-9 {
		t.Errorf("Expected %f, got %f", ev/10, fv)
	}
	if detail.NetCashApplied {
		t.Error("Expected net cash not applied without cash and debt")
	}
}

func TestDCF_OperatingIncomeFallback(t *testing.T) {
	f := market.FundamentalsSnapshot{
		OperatingIncome:   market.Float(1_000),
		SharesOutstanding: market.Float(100),
	}
	detail, _, note := DCF(f, DefaultConfig())
	if note != nil {
		t.Fatalf("Unexpected note: %+v", note)
	}
	if detail.CashFlowSource != "operating_income" {
		t.Errorf("Expected operating_income source, got %s", detail.CashFlowSource)
	}
	if math.Abs(detail.BaseCashFlow-790) > 1e-9 {
		t.Errorf("Expected after-tax base 790, got %f", detail.BaseCashFlow)
	}
}

func TestDCF_MonotoneInTerminalGrowth(t *testing.T) {
	f := baseFundamentals()
	prev := math.Inf(-1)
	for _, g := range []float64{0, 0.01, 0.02, 0.03, 0.05, 0.08} {
		cfg := DefaultConfig()
		cfg.TerminalGrowthRate = g
		_, fv, note := DCF(f, cfg)
		if note != nil {
			t.Fatalf("Unexpected note at g=%f: %+v", g, note)
		}
		if fv < prev {
			t.Errorf("DCF decreased when terminal growth rose to %f: %f < %f", g, fv, prev)
		}
		prev = fv
	}
}

func TestDCF_MonotoneInGrowth(t *testing.T) {
	f := baseFundamentals()
	rates := []float64{-3, -2.5, -2, -1.5, -1, -0.5, -0.05, 0, 0.05, 0.15, 0.25, 0.40}
	for _, years := range []int{4, 5} {
		prev := math.Inf(-1)
		for _, g := range rates {
			cfg := DefaultConfig()
			cfg.Years = years
			cfg.GrowthRate = market.Float(g)
			_, fv, _ := DCF(f, cfg)
			if fv < prev {
				t.Errorf("Years %d: DCF fell from %f to %f when growth rose to %f", years, prev, fv, g)
			}
			prev = fv
		}
	}
}

func TestDCF_GrowthBelowTotalLoss(t *testing.T) {
	f := baseFundamentals()
	f.EPSGrowth5Y = nil
	f.EPSGrowthNextYear = market.Float(-2)

	rates := growthRates(f, DefaultConfig())
	for i, g := range rates {
		if g != -1 {
			t.Errorf("Expected rate -1 in year %d, got %f", i+1, g)
		}
	}

	detail, _, _ := DCF(f, DefaultConfig())
	for i, cf := range detail.ProjectedCashFlows {
		if cf < 0 {
			t.Errorf("Expected non-negative cash flow in year %d, got %f", i+1, cf)
		}
	}

	cfg := DefaultConfig()
	cfg.GrowthSchedule = []float64{0.1, -4, 0.1, 0.1, 0.1}
	if rates := growthRates(f, cfg); rates[1] != -1 {
		t.Errorf("Expected scheduled rate clamped to -1, got %f", rates[1])
	}
}

func TestEquityNote_Attribution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GrowthRate = market.Float(-1)

	noDebt := baseFundamentals()
	noDebt.TotalDebt = nil
	noDebt.TotalCash = nil
	_, _, note := DCF(noDebt, cfg)
	if note == nil || note.Field != "equity_value" {
		t.Errorf("Expected equity_value note, got %+v", note)
	}

	indebted := baseFundamentals()
	indebted.TotalCash = nil
	_, _, note = DCF(indebted, cfg)
	if note == nil || note.Field != "total_debt" {
		t.Errorf("Expected total_debt note, got %+v", note)
	}

	rel := DefaultConfig()
	rel.PeerPE = 0
	rel.PeerEVEBITDA = market.Float(-1)
	f := market.FundamentalsSnapshot{EBITDA: market.Float(10), SharesOutstanding: market.Float(100)}
	if _, note := Relative(f, rel); note == nil || note.Field != "equity_value" {
		t.Errorf("Expected equity_value note from relative, got %+v", note)
	}
}

func TestGrowthRates_Fallbacks(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name string
		f    market.FundamentalsSnapshot
		cfg  Config
		want float64
	}{
		{"5y growth", market.FundamentalsSnapshot{EPSGrowth5Y: market.Float(0.12)}, cfg, 0.12},
		{"next year growth", market.FundamentalsSnapshot{EPSGrowthNextYear: market.Float(0.07)}, cfg, 0.07},
		{"default", market.FundamentalsSnapshot{}, cfg, 0.05},
		{"capped", market.FundamentalsSnapshot{EPSGrowth5Y: market.Float(0.9)}, cfg, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rates := growthRates(tt.f, tt.cfg)
			if len(rates) != tt.cfg.Years {
				t.Fatalf("Expected %d rates, got %d", tt.cfg.Years, len(rates))
			}
			if rates[0] != tt.want {
				t.Errorf("Expected %f, got %f", tt.want, rates[0])
			}
		})
	}
}

func TestEvaluate_Aggregate(t *testing.T) {
	res, err := Evaluate(baseFundamentals(), 50, DefaultConfig())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.FairValueDCF == nil || res.FairValueGraham == nil || res.FairValueRelative == nil {
		t.Fatalf("Expected all methods to produce values, notes: %+v", res.Notes)
	}
	want := (*res.FairValueDCF + *res.FairValueGraham + *res.FairValueRelative) / 3
	if math.Abs(*res.FairValueAggregate-want) > 1e-9 {
		t.Errorf("Expected aggregate %f, got %f", want, *res.FairValueAggregate)
	}
	if *res.FairValueRelative != 75 {
		t.Errorf("Expected relative value 75, got %f", *res.FairValueRelative)
	}
	wantMoS := (75.0 - 50) / 75 * 100
	if math.Abs(*res.MarginOfSafetyRelative-wantMoS) > 1e-9 {
		t.Errorf("Expected relative margin %f, got %f", wantMoS, *res.MarginOfSafetyRelative)
	}
	if res.MarginOfSafetyPct == nil {
		t.Error("Expected aggregate margin of safety")
	}
}

func TestEvaluate_MissingData(t *testing.T) {
	res, err := Evaluate(market.FundamentalsSnapshot{}, 10, DefaultConfig())
	if err != nil {
		t.Fatalf("Missing data must not error: %v", err)
	}
	if res.FairValueDCF != nil || res.FairValueGraham != nil || res.FairValueRelative != nil {
		t.Error("Expected no fair values")
	}
	if res.FairValueAggregate != nil || res.MarginOfSafetyPct != nil {
		t.Error("Expected nil aggregates")
	}
	if len(res.Notes) != 3 {
		t.Errorf("Expected 3 notes, got %d", len(res.Notes))
	}
}

func TestEvaluate_RelativeEVEBITDAFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeerEVEBITDA = market.Float(10)
	f := market.FundamentalsSnapshot{
		EPS:               market.Float(-2),
		EBITDA:            market.Float(50),
		SharesOutstanding: market.Float(10),
		TotalDebt:         market.Float(100),
	}
	fv, note := Relative(f, cfg)
	if note != nil {
		t.Fatalf("Unexpected note: %+v", note)
	}
	if fv != 40 {
		t.Errorf("Expected 40, got %f", fv)
	}
}

func TestEvaluate_InvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"zero years", func(c *Config) { c.Years = 0 }, "years"},
		{"discount below terminal", func(c *Config) { c.TerminalGrowthRate = 0.12 }, "discount_rate"},
		{"schedule length", func(c *Config) { c.GrowthSchedule = []float64{0.1} }, "growth_schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			_, err := Evaluate(baseFundamentals(), 10, cfg)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, ce.Field)
			}
		})
	}
}

func TestMarginOfSafety(t *testing.T) {
	if MarginOfSafety(0, 10) != nil {
		t.Error("Expected nil for zero fair value")
	}
	if v := MarginOfSafety(100, 80); v == nil || math.Abs(*v-20) > 1e-9 {
		t.Errorf("Expected 20, got %v", v)
	}
}
