package analysis

import (
	"cmp"
	"errors"
	"slices"

	"growth-screener/internal/market"
)

// LevelKind classifies a level relative to the latest close.
type LevelKind string

const (
	Support    LevelKind = "support"
	Resistance LevelKind = "resistance"
)

// PriceSource selects which prices of each bar are clustered.
type PriceSource string

const (
	SourceClose   PriceSource = "close"
	SourceHighLow PriceSource = "high_low"
)

// ErrInvalidTolerance is returned for a non-positive or >= 1 tolerance.
var ErrInvalidTolerance = errors.New("level tolerance must be in (0, 1)")

// LevelConfig configures ClusterLevels.
type LevelConfig struct {
	Tolerance float64     `json:"tolerance" yaml:"tolerance"` // bin width as a fraction of price
	TopK      int         `json:"top_k" yaml:"top_k"`
	Source    PriceSource `json:"source" yaml:"source"`
}

// DefaultLevelConfig returns 0.5% bins on closes, top 5.
func DefaultLevelConfig() LevelConfig {
	return LevelConfig{Tolerance: 0.005, TopK: 5, Source: SourceClose}
}

// Level is a horizontal support or resistance level.
type Level struct {
	Price         float64   `json:"price"`
	StrengthScore float64   `json:"strength_score"` // cumulative volume
	TouchCount    int       `json:"touch_count"`    // distinct bars in the level
	Kind          LevelKind `json:"kind"`
}

type pricePoint struct {
	price  float64
	volume float64
	bar    int
}

type bin struct {
	anchor   float64
	volume   float64
	weighted float64 // sum of price*volume
	sum      float64 // sum of prices
	points   int
	bars     map[int]struct{}
}

func (b *bin) add(p pricePoint) {
	b.volume += p.volume
	b.weighted += p.price * p.volume
	b.sum += p.price
	b.points++
	b.bars[p.bar] = struct{}{}
}

func (b *bin) absorb(o *bin) {
	b.volume += o.volume
	b.weighted += o.weighted
	b.sum += o.sum
	b.points += o.points
	for k := range o.bars {
		b.bars[k] = struct{}{}
	}
}

// price is the volume-weighted price, or the plain mean with zero volume.
func (b *bin) price() float64 {
	if b.volume > 0 {
		return b.weighted / b.volume
	}
	return b.sum / float64(b.points)
}

// ClusterLevels groups bar prices into horizontal levels weighted by volume.
// Output is sorted by strength descending, then touches descending, then
// price ascending, and capped at TopK.
func ClusterLevels(series *market.PriceSeries, cfg LevelConfig) ([]Level, error) {
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultLevelConfig().Tolerance
	}
	if cfg.Tolerance < 0 || cfg.Tolerance >= 1 {
		return nil, ErrInvalidTolerance
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultLevelConfig().TopK
	}
	if series == nil || series.Len() == 0 {
		return nil, &market.InsufficientDataError{Op: "cluster levels", Have: 0, Need: 1}
	}

	points := collectPoints(series, cfg.Source)
	slices.SortFunc(points, func(a, b pricePoint) int {
		if c := cmp.Compare(a.price, b.price); c != 0 {
			return c
		}
		return cmp.Compare(a.bar, b.bar)
	})

	var bins []*bin
	var cur *bin
	for _, p := range points {
		if cur == nil || p.price > cur.anchor*(1+cfg.Tolerance) {
			cur = &bin{anchor: p.price, bars: make(map[int]struct{})}
			bins = append(bins, cur)
		}
		cur.add(p)
	}

	// Merge neighbours whose weighted prices ended up within tolerance.
	merged := bins[:1]
	for _, b := range bins[1:] {
		last := merged[len(merged)-1]
		if b.price() <= last.price()*(1+cfg.Tolerance) {
			last.absorb(b)
			continue
		}
		merged = append(merged, b)
	}

	lastClose := series.Last().Close
	levels := make([]Level, 0, len(merged))
	for _, b := range merged {
		price := b.price()
		kind := Resistance
		if price <= lastClose {
			kind = Support
		}
		levels = append(levels, Level{
			Price:         price,
			StrengthScore: b.volume,
			TouchCount:    len(b.bars),
			Kind:          kind,
		})
	}

	slices.SortFunc(levels, func(a, b Level) int {
		if c := cmp.Compare(b.StrengthScore, a.StrengthScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.TouchCount, a.TouchCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Price, b.Price)
	})

	if len(levels) > cfg.TopK {
		levels = levels[:cfg.TopK]
	}
	return levels, nil
}

func collectPoints(series *market.PriceSeries, source PriceSource) []pricePoint {
	bars := series.Bars()
	if source == SourceHighLow {
		points := make([]pricePoint, 0, len(bars)*2)
		for i, b := range bars {
			points = append(points,
				pricePoint{price: b.High, volume: b.Volume / 2, bar: i},
				pricePoint{price: b.Low, volume: b.Volume / 2, bar: i},
			)
		}
		return points
	}

	points := make([]pricePoint, len(bars))
	for i, b := range bars {
		points[i] = pricePoint{price: b.Close, volume: b.Volume, bar: i}
	}
	return points
}
