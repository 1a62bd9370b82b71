package backtest

import "math"

// tradingDaysPerYear annualises the per-bar Sharpe ratio.
const tradingDaysPerYear = 252

// calculateMetrics calculates final backtest metrics
func calculateMetrics(result *Result, firstClose, lastClose float64, exposedBars int) {
	result.FinalEquity = result.InitialEquity
	if len(result.EquityCurve) > 0 {
		result.FinalEquity = result.EquityCurve[len(result.EquityCurve)-1].Equity
	}
	result.TotalReturnPct = (result.FinalEquity - result.InitialEquity) / result.InitialEquity * 100
	result.BenchmarkReturnPct = (lastClose - firstClose) / firstClose * 100

	result.TotalTrades = len(result.Trades)
	for _, trade := range result.Trades {
		if trade.PnL > 0 {
			result.WinningTrades++
			result.GrossProfit += trade.PnL
		} else {
			result.LosingTrades++
			result.GrossLoss += math.Abs(trade.PnL)
		}
	}

	// Fraction of trades with pnl > 0; zero trades gives 0, not NaN
	if result.TotalTrades > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades)
	}

	if result.WinningTrades > 0 {
		result.AverageWin = result.GrossProfit / float64(result.WinningTrades)
	}
	if result.LosingTrades > 0 {
		result.AverageLoss = result.GrossLoss / float64(result.LosingTrades)
	}

	if result.GrossLoss > 0 {
		pf := result.GrossProfit / result.GrossLoss
		result.ProfitFactor = &pf
	}

	result.MaxDrawdownPct = calculateMaxDrawdown(result.EquityCurve)
	result.SharpeRatio = calculateSharpeRatio(result.EquityCurve)

	if n := len(result.EquityCurve); n > 0 {
		result.ExposurePct = float64(exposedBars) / float64(n) * 100
	}
}

// calculateMaxDrawdown returns the largest peak-to-trough decline of the
// equity curve as a non-positive percentage.
func calculateMaxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}

	maxDrawdown := 0.0
	peak := curve[0].Equity
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak <= 0 {
			continue
		}
		drawdown := (point.Equity - peak) / peak * 100
		if drawdown < maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// calculateSharpeRatio annualises the mean/stddev of per-bar equity returns,
// assuming a zero risk-free rate.
func calculateSharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev * math.Sqrt(tradingDaysPerYear)
}
