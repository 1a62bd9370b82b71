package analysis

import (
	"growth-screener/internal/market"
)

// VolumeAnalyzer provides volume-based technical analysis
type VolumeAnalyzer struct {
	avgPeriod int // Period for average volume calculation
}

// VolumeProfile represents volume analysis results
type VolumeProfile struct {
	CurrentVolume float64 `json:"current_volume"`
	// AverageVolume is the trailing average of the bars before the current one.
	AverageVolume  float64 `json:"average_volume"`
	VolumeRatio    float64 `json:"volume_ratio"`     // Current / Average
	IsHighVolume   bool    `json:"is_high_volume"`   // Volume > 2x average
	IsClimaxVolume bool    `json:"is_climax_volume"` // Volume > 3x average
	OBV            float64 `json:"obv"`
	VolumeType     string  `json:"volume_type"` // "buying", "selling", "neutral"
	Periods        int     `json:"periods"`     // bars that went into AverageVolume
}

// NewVolumeAnalyzer creates a new volume analyzer
func NewVolumeAnalyzer(avgPeriod int) *VolumeAnalyzer {
	if avgPeriod <= 0 {
		avgPeriod = 20 // Default 20-period average
	}
	return &VolumeAnalyzer{
		avgPeriod: avgPeriod,
	}
}

// AnalyzeVolume profiles the last bar of the series against its trailing
// average. Returns nil when there is no prior bar to average.
func (va *VolumeAnalyzer) AnalyzeVolume(series *market.PriceSeries) *VolumeProfile {
	if series == nil || series.Len() < 2 {
		return nil
	}

	bars := series.Bars()
	current := bars[len(bars)-1]
	avgVolume, periods := va.trailingAverage(bars[:len(bars)-1])

	var volumeRatio float64
	if avgVolume > 0 {
		volumeRatio = current.Volume / avgVolume
	}

	return &VolumeProfile{
		CurrentVolume:  current.Volume,
		AverageVolume:  avgVolume,
		VolumeRatio:    volumeRatio,
		IsHighVolume:   volumeRatio > 2.0,
		IsClimaxVolume: volumeRatio > 3.0,
		OBV:            CalculateOBV(bars),
		VolumeType:     DetermineVolumeType(current),
		Periods:        periods,
	}
}

// HasFullWindow reports whether the profile averaged a complete period.
func (va *VolumeAnalyzer) HasFullWindow(p *VolumeProfile) bool {
	return p != nil && p.Periods >= va.avgPeriod
}

func (va *VolumeAnalyzer) trailingAverage(bars []market.PriceBar) (float64, int) {
	period := va.avgPeriod
	if len(bars) < period {
		period = len(bars)
	}
	if period == 0 {
		return 0, 0
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Volume
	}
	return sum / float64(period), period
}

// DetermineVolumeType identifies if volume is buying or selling pressure
func DetermineVolumeType(bar market.PriceBar) string {
	body := bar.Body()

	switch {
	case bar.IsBullish():
		// Strong buying if small upper wick
		if bar.UpperWick() < body*0.2 {
			return "buying"
		}
	case bar.IsBearish():
		if bar.LowerWick() < body*0.2 {
			return "selling"
		}
	}
	return "neutral"
}

// CalculateOBV calculates On-Balance Volume
// OBV = Previous OBV + Current Volume (if close up) or - Current Volume (if close down)
func CalculateOBV(bars []market.PriceBar) float64 {
	obv := 0.0
	for i := 1; i < len(bars); i++ {
		if bars[i].Close > bars[i-1].Close {
			obv += bars[i].Volume
		} else if bars[i].Close < bars[i-1].Close {
			obv -= bars[i].Volume
		}
	}
	return obv
}

// VWAP calculates the typical-price VWAP of the bars, 0 with no volume.
func VWAP(bars []market.PriceBar) float64 {
	totalVolumePrice := 0.0
	totalVolume := 0.0

	for _, b := range bars {
		typicalPrice := (b.High + b.Low + b.Close) / 3
		totalVolumePrice += typicalPrice * b.Volume
		totalVolume += b.Volume
	}

	if totalVolume == 0 {
		return 0
	}
	return totalVolumePrice / totalVolume
}
