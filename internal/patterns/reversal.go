package patterns

import "growth-screener/internal/market"

// Shape thresholds. Ratios are relative to the bar's high-low range unless
// noted otherwise.
const (
	// dojiBodyRatio: a doji's body is under 10% of its range.
	dojiBodyRatio = 0.10
	// dragonfly/gravestone: long wick covers at least 60% of range
	// and the opposite wick at most 10%.
	dojiLongWickRatio  = 0.60
	dojiShortWickRatio = 0.10
	// hammer family: long wick at least 2x body, opposite wick at most 0.3x body.
	hammerWickMultiple    = 2.0
	hammerOppositeMaxBody = 0.3
	// long candles in stars and harami have bodies of at least 60% of range.
	longBodyRatio = 0.6
	// a star's middle body is at most 40% of the first body.
	starBodyRatio = 0.4
	// a harami's inside body is at most half the mother body.
	haramiBodyRatio = 0.5
	// trendThreshold is the minimum relative drift that counts as a trend.
	trendThreshold = 0.001
)

// isDoji checks for a Doji (indecision)
func isDoji(c market.PriceBar) bool {
	r := c.Range()
	if r == 0 {
		return false
	}
	return c.Body()/r < dojiBodyRatio
}

// isDragonflyDoji checks for a Dragonfly Doji: long lower wick, no upper wick
func isDragonflyDoji(c market.PriceBar) bool {
	if !isDoji(c) {
		return false
	}
	r := c.Range()
	return c.LowerWick() >= r*dojiLongWickRatio && c.UpperWick() <= r*dojiShortWickRatio
}

// isGravestoneDoji checks for a Gravestone Doji: long upper wick, no lower wick
func isGravestoneDoji(c market.PriceBar) bool {
	if !isDoji(c) {
		return false
	}
	r := c.Range()
	return c.UpperWick() >= r*dojiLongWickRatio && c.LowerWick() <= r*dojiShortWickRatio
}

// isHammerShape matches hammer and hanging man; trend decides which.
func isHammerShape(c market.PriceBar) bool {
	body := c.Body()
	if body == 0 {
		return false
	}
	return c.LowerWick() >= body*hammerWickMultiple && c.UpperWick() <= body*hammerOppositeMaxBody
}

// isInvertedShape matches inverted hammer and shooting star; trend decides which.
func isInvertedShape(c market.PriceBar) bool {
	body := c.Body()
	if body == 0 {
		return false
	}
	return c.UpperWick() >= body*hammerWickMultiple && c.LowerWick() <= body*hammerOppositeMaxBody
}

// isBullishEngulfing checks for Bullish Engulfing pattern
func isBullishEngulfing(c1, c2 market.PriceBar) bool {
	if !c1.IsBearish() || !c2.IsBullish() {
		return false
	}
	// C2 body must completely engulf C1 body
	return c2.Open <= c1.Close && c2.Close >= c1.Open && c2.Body() > c1.Body()
}

// isBearishEngulfing checks for Bearish Engulfing pattern
func isBearishEngulfing(c1, c2 market.PriceBar) bool {
	if !c1.IsBullish() || !c2.IsBearish() {
		return false
	}
	return c2.Open >= c1.Close && c2.Close <= c1.Open && c2.Body() > c1.Body()
}

// isBullishHarami checks for Bullish Harami pattern
func isBullishHarami(c1, c2 market.PriceBar) bool {
	if !c1.IsBearish() || c1.Body() < c1.Range()*longBodyRatio {
		return false
	}
	if !c2.IsBullish() {
		return false
	}
	// C2 must be contained within C1 body
	if c2.Open < c1.Close || c2.Close > c1.Open {
		return false
	}
	return c2.Body() <= c1.Body()*haramiBodyRatio
}

// isBearishHarami checks for Bearish Harami pattern
func isBearishHarami(c1, c2 market.PriceBar) bool {
	if !c1.IsBullish() || c1.Body() < c1.Range()*longBodyRatio {
		return false
	}
	if !c2.IsBearish() {
		return false
	}
	if c2.Open > c1.Close || c2.Close < c1.Open {
		return false
	}
	return c2.Body() <= c1.Body()*haramiBodyRatio
}

// isMorningStar checks for Morning Star pattern (bullish reversal)
func isMorningStar(c1, c2, c3 market.PriceBar) bool {
	// Candle 1: Long bearish candle
	if !c1.IsBearish() || c1.Body() < c1.Range()*longBodyRatio {
		return false
	}
	// Candle 2: Small body (indecision)
	if c2.Body() > c1.Body()*starBodyRatio {
		return false
	}
	// Candle 3: Long bullish candle
	if !c3.IsBullish() || c3.Body() < c3.Range()*longBodyRatio {
		return false
	}
	// C3 should close above midpoint of C1
	return c3.Close >= (c1.Open+c1.Close)/2
}

// isEveningStar checks for Evening Star pattern (bearish reversal)
func isEveningStar(c1, c2, c3 market.PriceBar) bool {
	if !c1.IsBullish() || c1.Body() < c1.Range()*longBodyRatio {
		return false
	}
	if c2.Body() > c1.Body()*starBodyRatio {
		return false
	}
	if !c3.IsBearish() || c3.Body() < c3.Range()*longBodyRatio {
		return false
	}
	return c3.Close <= (c1.Open+c1.Close)/2
}
