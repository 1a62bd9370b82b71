package patterns

import (
	"errors"
	"iter"
	"time"

	"growth-screener/internal/market"
)

// PatternType represents different candlestick patterns
type PatternType string

const (
	// Single-bar patterns
	Doji           PatternType = "doji"
	DragonflyDoji  PatternType = "dragonfly_doji"
	GravestoneDoji PatternType = "gravestone_doji"
	Hammer         PatternType = "hammer"
	HangingMan     PatternType = "hanging_man"
	InvertedHammer PatternType = "inverted_hammer"
	ShootingStar   PatternType = "shooting_star"

	// Two-bar patterns
	BullishEngulfing PatternType = "bullish_engulfing"
	BearishEngulfing PatternType = "bearish_engulfing"
	BullishHarami    PatternType = "bullish_harami"
	BearishHarami    PatternType = "bearish_harami"

	// Three-bar patterns
	MorningStar PatternType = "morning_star"
	EveningStar PatternType = "evening_star"
)

// Direction is the bias a pattern implies.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

const (
	// DefaultWindow is the number of bars examined per evaluation.
	DefaultWindow = 5
	// MinWindow fits the longest pattern (three bars).
	MinWindow = 3
)

// ErrInvalidWindow is returned for windows shorter than MinWindow.
var ErrInvalidWindow = errors.New("pattern window must be at least 3 bars")

// Match is one detected pattern ending at BarIndex.
type Match struct {
	BarIndex   int         `json:"bar_index"`
	Timestamp  time.Time   `json:"timestamp"`
	Kind       PatternType `json:"kind"`
	Direction  Direction   `json:"direction"`
	Confidence float64     `json:"confidence"` // 0.0 to 1.0
}

// Detector detects candlestick patterns over a sliding window.
type Detector struct {
	window int
}

// NewDetector creates a detector. A window <= 0 selects DefaultWindow.
func NewDetector(window int) (*Detector, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	if window < MinWindow {
		return nil, ErrInvalidWindow
	}
	return &Detector{window: window}, nil
}

// Window returns the configured window length.
func (d *Detector) Window() int { return d.window }

// Scan returns a lazy sequence of matches. Each bar index from Window-1 on is
// evaluated once against the Window bars ending there. The sequence can be
// ranged over any number of times.
func (d *Detector) Scan(series *market.PriceSeries) (iter.Seq[Match], error) {
	if series.Len() < d.window {
		return nil, &market.InsufficientDataError{Op: "pattern scan", Have: series.Len(), Need: d.window}
	}
	bars := series.Bars()

	return func(yield func(Match) bool) {
		for i := d.window - 1; i < len(bars); i++ {
			for _, m := range d.evaluate(bars[i-d.window+1 : i+1]) {
				m.BarIndex = i
				m.Timestamp = bars[i].Timestamp
				if !yield(m) {
					return
				}
			}
		}
	}, nil
}

// Detect collects every match in bar order.
func (d *Detector) Detect(series *market.PriceSeries) ([]Match, error) {
	seq, err := d.Scan(series)
	if err != nil {
		return nil, err
	}
	var matches []Match
	for m := range seq {
		matches = append(matches, m)
	}
	return matches, nil
}

// Recent returns matches whose bar lies within the last lookback bars.
func (d *Detector) Recent(series *market.PriceSeries, lookback int) ([]Match, error) {
	seq, err := d.Scan(series)
	if err != nil {
		return nil, err
	}
	cutoff := series.Len() - lookback
	var matches []Match
	for m := range seq {
		if m.BarIndex >= cutoff {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// evaluate runs every predicate against the last bars of the window, in a
// fixed order. Index fields are filled in by the caller.
func (d *Detector) evaluate(window []market.PriceBar) []Match {
	var out []Match
	add := func(kind PatternType, dir Direction, conf float64) {
		out = append(out, Match{Kind: kind, Direction: dir, Confidence: clamp(conf)})
	}

	n := len(window)
	c := window[n-1]
	single := trendOf(window[:n-1])

	if isDoji(c) {
		add(Doji, Neutral, 0.50)
	}
	if isDragonflyDoji(c) {
		add(DragonflyDoji, Bullish, 0.62+trendBonus(single, -1))
	}
	if isGravestoneDoji(c) {
		add(GravestoneDoji, Bearish, 0.62+trendBonus(single, 1))
	}
	if isHammerShape(c) {
		switch single {
		case -1:
			add(Hammer, Bullish, singleCandleConfidence(c.LowerWick(), c.Body()))
		case 1:
			add(HangingMan, Bearish, singleCandleConfidence(c.LowerWick(), c.Body()))
		}
	}
	if isInvertedShape(c) {
		switch single {
		case -1:
			add(InvertedHammer, Bullish, singleCandleConfidence(c.UpperWick(), c.Body()))
		case 1:
			add(ShootingStar, Bearish, singleCandleConfidence(c.UpperWick(), c.Body()))
		}
	}

	p := window[n-2]
	double := trendOf(window[:n-2])
	if isBullishEngulfing(p, c) {
		add(BullishEngulfing, Bullish, engulfingConfidence(p, c)+trendBonus(double, -1))
	}
	if isBearishEngulfing(p, c) {
		add(BearishEngulfing, Bearish, engulfingConfidence(p, c)+trendBonus(double, 1))
	}
	if isBullishHarami(p, c) {
		add(BullishHarami, Bullish, 0.68+trendBonus(double, -1))
	}
	if isBearishHarami(p, c) {
		add(BearishHarami, Bearish, 0.68+trendBonus(double, 1))
	}

	f := window[n-3]
	triple := trendOf(window[:n-3])
	if isMorningStar(f, p, c) {
		add(MorningStar, Bullish, starConfidence(f, c)+trendBonus(triple, -1))
	}
	if isEveningStar(f, p, c) {
		add(EveningStar, Bearish, starConfidence(f, c)+trendBonus(triple, 1))
	}

	return out
}

// trendOf classifies the drift across the bars preceding a pattern:
// 1 for up, -1 for down, 0 when flat or there are no bars.
func trendOf(bars []market.PriceBar) int {
	if len(bars) == 0 {
		return 0
	}
	first, last := bars[0].Open, bars[len(bars)-1].Close
	drift := (last - first) / first
	switch {
	case drift > trendThreshold:
		return 1
	case drift < -trendThreshold:
		return -1
	}
	return 0
}

// trendBonus rewards reversal patterns that appear after the trend they reverse.
func trendBonus(trend, want int) float64 {
	if trend == want {
		return 0.05
	}
	return 0
}

func singleCandleConfidence(wick, body float64) float64 {
	confidence := 0.65
	if body > 0 && wick >= body*3 {
		confidence += 0.1
	}
	return confidence
}

func engulfingConfidence(c1, c2 market.PriceBar) float64 {
	confidence := 0.75
	if c2.Body() > c1.Body()*1.5 {
		confidence += 0.05
	}
	return confidence
}

func starConfidence(c1, c3 market.PriceBar) float64 {
	confidence := 0.7
	// Stronger confirmation candle = higher confidence
	if c3.Body() > c1.Body()*1.2 {
		confidence += 0.1
	}
	return confidence
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
