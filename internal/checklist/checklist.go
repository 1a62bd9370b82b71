package checklist

import (
	"fmt"

	"growth-screener/internal/analysis"
	"growth-screener/internal/market"
	"growth-screener/internal/valuation"
)

// Status is the outcome of a single rule.
type Status string

const (
	Pass    Status = "pass"
	Fail    Status = "fail"
	Unknown Status = "unknown"
)

// Group buckets rules by the kind of signal they read.
type Group string

const (
	GroupExchange     Group = "exchange"
	GroupFundamentals Group = "fundamentals"
	GroupValuation    Group = "valuation"
	GroupAnalyst      Group = "analyst"
	GroupTechnical    Group = "technical"
)

// Rule identifiers, in evaluation order.
const (
	RuleUSExchange            = "us_exchange"
	RuleRevenueGrowth         = "revenue_growth"
	RuleEPSGrowthThisYear     = "eps_growth_this_year"
	RuleEPSGrowthNextYear     = "eps_growth_next_year"
	RuleProfitability         = "profitability"
	RuleValuation             = "valuation"
	RuleAnalystRecommendation = "analyst_recommendation"
	RulePriceAboveEMA         = "price_above_ema50"
	RuleEMARising             = "ema50_rising"
	RuleEMAStack              = "ema_stack"
	RuleRSIBand               = "rsi_band"
	RuleVolumeTrend           = "volume_trend"
)

// MaxScore is the number of rules in every report.
const MaxScore = 12

// Config holds rule thresholds.
type Config struct {
	PECeiling             float64 `json:"pe_ceiling" yaml:"pe_ceiling"`
	PEGCeiling            float64 `json:"peg_ceiling" yaml:"peg_ceiling"`
	RecommendationCeiling float64 `json:"recommendation_ceiling" yaml:"recommendation_ceiling"`
	EPSGrowthFloor        float64 `json:"eps_growth_floor" yaml:"eps_growth_floor"`
	RSIFloor              float64 `json:"rsi_floor" yaml:"rsi_floor"`
	RSICeiling            float64 `json:"rsi_ceiling" yaml:"rsi_ceiling"`
}

// DefaultConfig returns P/E 30, PEG 2, recommendation 2.5, EPS growth 10%,
// RSI band 30-70.
func DefaultConfig() Config {
	return Config{
		PECeiling:             30,
		PEGCeiling:            2,
		RecommendationCeiling: 2.5,
		EPSGrowthFloor:        0.10,
		RSIFloor:              30,
		RSICeiling:            70,
	}
}

// Input is everything the rules read.
type Input struct {
	Fundamentals market.FundamentalsSnapshot `json:"fundamentals"`
	Valuation    *valuation.Result           `json:"valuation,omitempty"`
	Technicals   analysis.Technicals         `json:"technicals"`
}

// Item is one evaluated rule.
type Item struct {
	RuleID string `json:"rule_id"`
	Group  Group  `json:"group"`
	Status Status `json:"status"`
	Reason string `json:"reason"`
}

// Report is the full scorecard. Score counts passes only; unknowns are
// tracked separately so missing data is distinguishable from failures.
type Report struct {
	Items        []Item `json:"items"`
	Score        int    `json:"score"`
	FailCount    int    `json:"fail_count"`
	UnknownCount int    `json:"unknown_count"`
	MaxScore     int    `json:"max_score"`
}

type rule struct {
	id    string
	group Group
	eval  func(Input, Config) (Status, string)
}

var rules = []rule{
	{RuleUSExchange, GroupExchange, checkExchange},
	{RuleRevenueGrowth, GroupFundamentals, checkRevenueGrowth},
	{RuleEPSGrowthThisYear, GroupFundamentals, func(in Input, cfg Config) (Status, string) {
		return checkEPSGrowth("this year", in.Fundamentals.EPSGrowthThisYear, cfg)
	}},
	{RuleEPSGrowthNextYear, GroupFundamentals, func(in Input, cfg Config) (Status, string) {
		return checkEPSGrowth("next year", in.Fundamentals.EPSGrowthNextYear, cfg)
	}},
	{RuleProfitability, GroupFundamentals, checkProfitability},
	{RuleValuation, GroupValuation, checkValuation},
	{RuleAnalystRecommendation, GroupAnalyst, checkAnalyst},
	{RulePriceAboveEMA, GroupTechnical, checkPriceAboveEMA},
	{RuleEMARising, GroupTechnical, checkEMARising},
	{RuleEMAStack, GroupTechnical, checkEMAStack},
	{RuleRSIBand, GroupTechnical, checkRSIBand},
	{RuleVolumeTrend, GroupTechnical, checkVolumeTrend},
}

// Evaluate runs all rules in fixed order.
func Evaluate(in Input, cfg Config) Report {
	report := Report{Items: make([]Item, 0, len(rules)), MaxScore: MaxScore}
	for _, r := range rules {
		status, reason := r.eval(in, cfg)
		report.Items = append(report.Items, Item{RuleID: r.id, Group: r.group, Status: status, Reason: reason})
		switch status {
		case Pass:
			report.Score++
		case Fail:
			report.FailCount++
		default:
			report.UnknownCount++
		}
	}
	return report
}

// Item returns the item for a rule id.
func (r Report) Item(id string) (Item, bool) {
	for _, it := range r.Items {
		if it.RuleID == id {
			return it, true
		}
	}
	return Item{}, false
}

func checkExchange(in Input, _ Config) (Status, string) {
	code := in.Fundamentals.ExchangeCode
	if code == "" {
		return Unknown, "exchange code missing"
	}
	if market.IsUSExchange(code) {
		return Pass, fmt.Sprintf("listed on US exchange %s", code)
	}
	return Fail, fmt.Sprintf("exchange %s is not a US exchange", code)
}

func checkRevenueGrowth(in Input, _ Config) (Status, string) {
	g := in.Fundamentals.RevenueGrowth
	if g == nil {
		return Unknown, "revenue growth missing"
	}
	if *g > 0 {
		return Pass, fmt.Sprintf("revenue growth %.1f%% > 0", *g*100)
	}
	return Fail, fmt.Sprintf("revenue growth %.1f%% <= 0", *g*100)
}

func checkEPSGrowth(period string, g *float64, cfg Config) (Status, string) {
	if g == nil {
		return Unknown, fmt.Sprintf("EPS growth %s missing", period)
	}
	if *g > cfg.EPSGrowthFloor {
		return Pass, fmt.Sprintf("EPS growth %s %.1f%% > %.1f%%", period, *g*100, cfg.EPSGrowthFloor*100)
	}
	return Fail, fmt.Sprintf("EPS growth %s %.1f%% <= %.1f%%", period, *g*100, cfg.EPSGrowthFloor*100)
}

// checkProfitability uses operating margin, falling back to EPS when revenue
// or operating income is unknown.
func checkProfitability(in Input, _ Config) (Status, string) {
	f := in.Fundamentals
	if f.Revenue != nil && f.OperatingIncome != nil && *f.Revenue > 0 {
		margin := *f.OperatingIncome / *f.Revenue
		if margin > 0 {
			return Pass, fmt.Sprintf("operating margin %.1f%% > 0", margin*100)
		}
		return Fail, fmt.Sprintf("operating margin %.1f%% <= 0", margin*100)
	}
	if f.EPS != nil {
		if *f.EPS > 0 {
			return Pass, fmt.Sprintf("EPS %.2f > 0 (operating margin unavailable)", *f.EPS)
		}
		return Fail, fmt.Sprintf("EPS %.2f <= 0 (operating margin unavailable)", *f.EPS)
	}
	return Unknown, "operating margin and EPS missing"
}

// checkValuation passes when any known input is within bounds: P/E, PEG or a
// positive aggregate margin of safety.
func checkValuation(in Input, cfg Config) (Status, string) {
	f := in.Fundamentals
	known := false

	if f.PE != nil {
		known = true
		if *f.PE > 0 && *f.PE <= cfg.PECeiling {
			return Pass, fmt.Sprintf("P/E %.1f <= %.1f", *f.PE, cfg.PECeiling)
		}
	}
	if f.PEG != nil {
		known = true
		if *f.PEG > 0 && *f.PEG <= cfg.PEGCeiling {
			return Pass, fmt.Sprintf("PEG %.2f <= %.2f", *f.PEG, cfg.PEGCeiling)
		}
	}
	if in.Valuation != nil && in.Valuation.MarginOfSafetyPct != nil {
		known = true
		if mos := *in.Valuation.MarginOfSafetyPct; mos > 0 {
			return Pass, fmt.Sprintf("margin of safety %.1f%% > 0", mos)
		}
	}

	if !known {
		return Unknown, "P/E, PEG and margin of safety missing"
	}
	return Fail, fmt.Sprintf("P/E above %.1f, PEG above %.2f and no margin of safety", cfg.PECeiling, cfg.PEGCeiling)
}

func checkAnalyst(in Input, cfg Config) (Status, string) {
	rec := in.Fundamentals.AnalystRecommendation
	if rec == nil {
		return Unknown, "analyst recommendation missing"
	}
	if *rec <= cfg.RecommendationCeiling {
		return Pass, fmt.Sprintf("recommendation %.2f <= %.2f", *rec, cfg.RecommendationCeiling)
	}
	return Fail, fmt.Sprintf("recommendation %.2f > %.2f", *rec, cfg.RecommendationCeiling)
}

func checkPriceAboveEMA(in Input, _ Config) (Status, string) {
	t := in.Technicals
	if t.Price == nil || t.SlowEMA == nil {
		return Unknown, "not enough history for EMA-50"
	}
	if *t.Price > *t.SlowEMA {
		return Pass, fmt.Sprintf("price %.2f above EMA-50 %.2f", *t.Price, *t.SlowEMA)
	}
	return Fail, fmt.Sprintf("price %.2f at or below EMA-50 %.2f", *t.Price, *t.SlowEMA)
}

func checkEMARising(in Input, _ Config) (Status, string) {
	t := in.Technicals
	if t.SlowEMA == nil || t.SlowEMAPrior == nil {
		return Unknown, "not enough history for EMA-50 slope"
	}
	if *t.SlowEMA > *t.SlowEMAPrior {
		return Pass, fmt.Sprintf("EMA-50 rising from %.2f to %.2f", *t.SlowEMAPrior, *t.SlowEMA)
	}
	return Fail, fmt.Sprintf("EMA-50 not rising (%.2f to %.2f)", *t.SlowEMAPrior, *t.SlowEMA)
}

func checkEMAStack(in Input, _ Config) (Status, string) {
	t := in.Technicals
	if t.FastEMA == nil || t.SlowEMA == nil {
		return Unknown, "not enough history for EMA-20/EMA-50"
	}
	if *t.FastEMA > *t.SlowEMA {
		return Pass, fmt.Sprintf("EMA-20 %.2f above EMA-50 %.2f", *t.FastEMA, *t.SlowEMA)
	}
	return Fail, fmt.Sprintf("EMA-20 %.2f at or below EMA-50 %.2f", *t.FastEMA, *t.SlowEMA)
}

func checkRSIBand(in Input, cfg Config) (Status, string) {
	rsi := in.Technicals.RSI
	if rsi == nil {
		return Unknown, "not enough history for RSI"
	}
	if *rsi >= cfg.RSIFloor && *rsi <= cfg.RSICeiling {
		return Pass, fmt.Sprintf("RSI %.1f within %.0f-%.0f", *rsi, cfg.RSIFloor, cfg.RSICeiling)
	}
	return Fail, fmt.Sprintf("RSI %.1f outside %.0f-%.0f", *rsi, cfg.RSIFloor, cfg.RSICeiling)
}

func checkVolumeTrend(in Input, _ Config) (Status, string) {
	t := in.Technicals
	if t.Volume == nil || t.AverageVolume == nil {
		return Unknown, "not enough history for average volume"
	}
	if *t.Volume > *t.AverageVolume {
		return Pass, fmt.Sprintf("volume %.0f above average %.0f", *t.Volume, *t.AverageVolume)
	}
	return Fail, fmt.Sprintf("volume %.0f at or below average %.0f", *t.Volume, *t.AverageVolume)
}
