package analysis

import "growth-screener/internal/market"

// TechnicalConfig controls indicator periods for ComputeTechnicals.
type TechnicalConfig struct {
	FastEMA       int `json:"fast_ema" yaml:"fast_ema"`
	SlowEMA       int `json:"slow_ema" yaml:"slow_ema"`
	RSIPeriod     int `json:"rsi_period" yaml:"rsi_period"`
	VolumePeriod  int `json:"volume_period" yaml:"volume_period"`
	SlopeLookback int `json:"slope_lookback" yaml:"slope_lookback"`
}

// DefaultTechnicalConfig returns the 20/50 EMA, RSI-14, 20-bar volume setup.
func DefaultTechnicalConfig() TechnicalConfig {
	return TechnicalConfig{
		FastEMA:       20,
		SlowEMA:       50,
		RSIPeriod:     14,
		VolumePeriod:  20,
		SlopeLookback: 5,
	}
}

func (c TechnicalConfig) withDefaults() TechnicalConfig {
	d := DefaultTechnicalConfig()
	if c.FastEMA <= 0 {
		c.FastEMA = d.FastEMA
	}
	if c.SlowEMA <= 0 {
		c.SlowEMA = d.SlowEMA
	}
	if c.RSIPeriod <= 1 {
		c.RSIPeriod = d.RSIPeriod
	}
	if c.VolumePeriod <= 0 {
		c.VolumePeriod = d.VolumePeriod
	}
	if c.SlopeLookback <= 0 {
		c.SlopeLookback = d.SlopeLookback
	}
	return c
}

// Technicals is the latest indicator snapshot of a series. A nil field means
// the series was too short to compute it.
type Technicals struct {
	Price         *float64 `json:"price,omitempty"`
	FastEMA       *float64 `json:"fast_ema,omitempty"`
	SlowEMA       *float64 `json:"slow_ema,omitempty"`
	SlowEMAPrior  *float64 `json:"slow_ema_prior,omitempty"` // SlowEMA SlopeLookback bars ago
	RSI           *float64 `json:"rsi,omitempty"`
	Volume        *float64 `json:"volume,omitempty"`
	AverageVolume *float64 `json:"average_volume,omitempty"` // trailing, excludes the last bar
	VWAP          *float64 `json:"vwap,omitempty"`           // over the last VolumePeriod bars
}

// ComputeTechnicals calculates the indicator snapshot used by the checklist.
func ComputeTechnicals(series *market.PriceSeries, cfg TechnicalConfig) Technicals {
	cfg = cfg.withDefaults()
	var t Technicals
	if series == nil || series.Len() == 0 {
		return t
	}

	closes := series.Closes()
	t.Price = lastOf(closes)
	t.Volume = lastOf(series.Volumes())

	t.FastEMA = lastOf(EMA(closes, cfg.FastEMA))
	slow := EMA(closes, cfg.SlowEMA)
	t.SlowEMA = lastOf(slow)
	if len(slow) >= cfg.SlowEMA+cfg.SlopeLookback {
		t.SlowEMAPrior = backOf(slow, cfg.SlopeLookback)
	}
	t.RSI = lastOf(RSI(closes, cfg.RSIPeriod))

	va := NewVolumeAnalyzer(cfg.VolumePeriod)
	if p := va.AnalyzeVolume(series); va.HasFullWindow(p) {
		avg := p.AverageVolume
		t.AverageVolume = &avg
	}
	if series.Len() >= cfg.VolumePeriod {
		if v := VWAP(series.Tail(cfg.VolumePeriod).Bars()); v > 0 {
			t.VWAP = &v
		}
	}
	return t
}
