package patterns

import (
	"testing"

	"growth-screener/internal/market"
)

func bar(o, h, l, c float64) market.PriceBar {
	return market.PriceBar{Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

// TestBullishEngulfing tests Bullish Engulfing pattern detection
func TestBullishEngulfing(t *testing.T) {
	c1 := bar(100, 102, 98, 99) // Bearish
	c2 := bar(98, 105, 97, 104) // Bullish engulfing

	if !isBullishEngulfing(c1, c2) {
		t.Error("Should detect valid Bullish Engulfing pattern")
	}

	// Invalid - C1 not bearish
	if isBullishEngulfing(bar(99, 102, 98, 100), c2) {
		t.Error("Should NOT detect pattern when C1 is not bearish")
	}

	// Invalid - C2 doesn't engulf C1
	if isBullishEngulfing(c1, bar(99, 101, 98, 100)) {
		t.Error("Should NOT detect pattern when C2 doesn't engulf C1")
	}
}

// TestBearishEngulfing tests Bearish Engulfing pattern detection
func TestBearishEngulfing(t *testing.T) {
	c1 := bar(99, 102, 98, 100)
	c2 := bar(101, 103, 95, 96)

	if !isBearishEngulfing(c1, c2) {
		t.Error("Should detect valid Bearish Engulfing pattern")
	}
	if isBearishEngulfing(c2, c1) {
		t.Error("Should NOT detect pattern with candles reversed")
	}
}

// TestDoji tests Doji pattern detection
func TestDoji(t *testing.T) {
	tests := []struct {
		name string
		c    market.PriceBar
		want bool
	}{
		{"small body", bar(100, 102, 98, 100.2), true},
		{"large body", bar(100, 110, 98, 108), false},
		{"zero range", bar(100, 100, 100, 100), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDoji(tt.c); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDojiVariants(t *testing.T) {
	dragonfly := bar(100, 100.1, 95, 100)
	if !isDragonflyDoji(dragonfly) {
		t.Error("Should detect Dragonfly Doji")
	}
	if isGravestoneDoji(dragonfly) {
		t.Error("Dragonfly should not be a Gravestone")
	}

	gravestone := bar(100, 105, 99.9, 100)
	if !isGravestoneDoji(gravestone) {
		t.Error("Should detect Gravestone Doji")
	}
}

func TestHammerShapes(t *testing.T) {
	hammer := bar(100, 101.2, 97, 101)
	if !isHammerShape(hammer) {
		t.Error("Should detect hammer shape")
	}
	if isInvertedShape(hammer) {
		t.Error("Hammer should not have inverted shape")
	}

	inverted := bar(100, 104, 99.8, 101)
	if !isInvertedShape(inverted) {
		t.Error("Should detect inverted hammer shape")
	}

	if isHammerShape(bar(100, 103, 97, 100)) {
		t.Error("Zero-body bar should not be a hammer")
	}
}

func TestHarami(t *testing.T) {
	mother := bar(110, 111, 99, 100)
	inside := bar(102, 105, 101, 104)
	if !isBullishHarami(mother, inside) {
		t.Error("Should detect Bullish Harami")
	}

	bullMother := bar(100, 111, 99, 110)
	insideBear := bar(108, 109, 105, 106)
	if !isBearishHarami(bullMother, insideBear) {
		t.Error("Should detect Bearish Harami")
	}
}

func TestStars(t *testing.T) {
	c1 := bar(110, 111, 99, 100)
	c2 := bar(99, 100, 98.5, 99.5)
	c3 := bar(100, 109, 99.5, 108)
	if !isMorningStar(c1, c2, c3) {
		t.Error("Should detect Morning Star")
	}

	e1 := bar(100, 111, 99, 110)
	e2 := bar(111, 112, 110.5, 111.5)
	e3 := bar(110, 110.5, 101, 102)
	if !isEveningStar(e1, e2, e3) {
		t.Error("Should detect Evening Star")
	}
	if isMorningStar(e1, e2, e3) {
		t.Error("Evening Star should not match Morning Star")
	}
}
