package valuation

import (
	"fmt"
	"math"

	"growth-screener/internal/market"
)

// Method names a fair-value method.
type Method string

const (
	MethodDCF      Method = "dcf"
	MethodGraham   Method = "graham"
	MethodRelative Method = "relative"
)

// grahamMultiplier is Graham's 15x earnings times 1.5x book.
const grahamMultiplier = 22.5

// defaultGrowthRate is used when no growth estimate is available.
const defaultGrowthRate = 0.05

// minGrowthRate is a total loss of cash flow. Lower rates would flip its sign.
const minGrowthRate = -1.0

// Config holds valuation assumptions. Rates are fractions.
type Config struct {
	Years              int     `json:"years" yaml:"years"`
	DiscountRate       float64 `json:"discount_rate" yaml:"discount_rate"`
	TerminalGrowthRate float64 `json:"terminal_growth_rate" yaml:"terminal_growth_rate"`
	// GrowthRate overrides the growth estimate taken from fundamentals.
	GrowthRate *float64 `json:"growth_rate,omitempty" yaml:"growth_rate"`
	// GrowthSchedule sets an explicit rate per projected year.
	GrowthSchedule []float64 `json:"growth_schedule,omitempty" yaml:"growth_schedule"`
	MaxGrowthRate  float64   `json:"max_growth_rate" yaml:"max_growth_rate"`
	TaxRate        float64   `json:"tax_rate" yaml:"tax_rate"`
	PeerPE         float64   `json:"peer_pe" yaml:"peer_pe"`
	PeerEVEBITDA   *float64  `json:"peer_ev_ebitda,omitempty" yaml:"peer_ev_ebitda"`
}

// DefaultConfig returns a 5-year DCF at 10% discount and 2.5% terminal growth.
func DefaultConfig() Config {
	return Config{
		Years:              5,
		DiscountRate:       0.10,
		TerminalGrowthRate: 0.025,
		MaxGrowthRate:      0.25,
		TaxRate:            0.21,
		PeerPE:             15,
	}
}

// ConfigError reports an invalid valuation assumption.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid valuation config %s: %s", e.Field, e.Reason)
}

// Validate checks the assumptions before any computation.
func (c Config) Validate() error {
	switch {
	case c.Years <= 0:
		return &ConfigError{Field: "years", Reason: "must be positive"}
	case c.DiscountRate <= c.TerminalGrowthRate:
		return &ConfigError{Field: "discount_rate", Reason: "must exceed terminal_growth_rate"}
	case c.DiscountRate <= -1:
		return &ConfigError{Field: "discount_rate", Reason: "must be greater than -1"}
	case c.MaxGrowthRate < 0:
		return &ConfigError{Field: "max_growth_rate", Reason: "must be non-negative"}
	case c.TaxRate < 0 || c.TaxRate >= 1:
		return &ConfigError{Field: "tax_rate", Reason: "must be in [0, 1)"}
	case c.PeerPE < 0:
		return &ConfigError{Field: "peer_pe", Reason: "must be non-negative"}
	case len(c.GrowthSchedule) > 0 && len(c.GrowthSchedule) != c.Years:
		return &ConfigError{Field: "growth_schedule", Reason: "must have one rate per projected year"}
	}
	return nil
}

// Note explains why a method produced no value.
type Note struct {
	Method Method `json:"method"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// DCFDetail exposes the intermediate DCF figures.
type DCFDetail struct {
	CashFlowSource       string    `json:"cash_flow_source"` // "free_cash_flow" or "operating_income"
	BaseCashFlow         float64   `json:"base_cash_flow"`
	GrowthRates          []float64 `json:"growth_rates"`
	ProjectedCashFlows   []float64 `json:"projected_cash_flows"`
	PresentValueFlows    float64   `json:"present_value_flows"`
	TerminalValue        float64   `json:"terminal_value"`
	PresentTerminalValue float64   `json:"present_terminal_value"`
	EnterpriseValue      float64   `json:"enterprise_value"`
	EquityValue          float64   `json:"equity_value"`
	NetCashApplied       bool      `json:"net_cash_applied"`
}

// Result holds per-method fair values per share. Nil means unavailable.
type Result struct {
	Price              float64  `json:"price"`
	FairValueDCF       *float64 `json:"fair_value_dcf"`
	FairValueGraham    *float64 `json:"fair_value_graham"`
	FairValueRelative  *float64 `json:"fair_value_relative"`
	FairValueAggregate *float64 `json:"fair_value_aggregate"`

	MarginOfSafetyDCF      *float64 `json:"margin_of_safety_dcf"`
	MarginOfSafetyGraham   *float64 `json:"margin_of_safety_graham"`
	MarginOfSafetyRelative *float64 `json:"margin_of_safety_relative"`
	// MarginOfSafetyPct is the mean of the available per-method margins.
	MarginOfSafetyPct *float64 `json:"margin_of_safety_pct"`

	DCF   *DCFDetail `json:"dcf,omitempty"`
	Notes []Note     `json:"notes,omitempty"`
}

// Evaluate computes fair values for fundamentals at the given share price.
// Missing inputs yield nil values and a Note; only invalid assumptions error.
func Evaluate(f market.FundamentalsSnapshot, price float64, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Result{Price: price}

	if detail, fv, note := DCF(f, cfg); note != nil {
		r.Notes = append(r.Notes, *note)
		r.DCF = detail
	} else {
		r.DCF = detail
		r.FairValueDCF = &fv
	}

	if fv, note := Graham(f); note != nil {
		r.Notes = append(r.Notes, *note)
	} else {
		r.FairValueGraham = &fv
	}

	if fv, note := Relative(f, cfg); note != nil {
		r.Notes = append(r.Notes, *note)
	} else {
		r.FairValueRelative = &fv
	}

	var values, margins []float64
	for _, m := range []struct {
		fv  *float64
		mos **float64
	}{
		{r.FairValueDCF, &r.MarginOfSafetyDCF},
		{r.FairValueGraham, &r.MarginOfSafetyGraham},
		{r.FairValueRelative, &r.MarginOfSafetyRelative},
	} {
		if m.fv == nil {
			continue
		}
		values = append(values, *m.fv)
		if mos := MarginOfSafety(*m.fv, price); mos != nil {
			*m.mos = mos
			margins = append(margins, *mos)
		}
	}
	r.FairValueAggregate = mean(values)
	r.MarginOfSafetyPct = mean(margins)

	return r, nil
}

// DCF discounts projected cash flows plus a Gordon terminal value and returns
// the per-share equity value. A non-nil Note means no value.
func DCF(f market.FundamentalsSnapshot, cfg Config) (*DCFDetail, float64, *Note) {
	detail := &DCFDetail{}

	switch {
	case f.FreeCashFlow != nil:
		detail.CashFlowSource = "free_cash_flow"
		detail.BaseCashFlow = *f.FreeCashFlow
	case f.OperatingIncome != nil:
		detail.CashFlowSource = "operating_income"
		detail.BaseCashFlow = *f.OperatingIncome * (1 - cfg.TaxRate)
	default:
		return nil, 0, &Note{Method: MethodDCF, Field: "free_cash_flow", Reason: "no free cash flow or operating income"}
	}
	if detail.BaseCashFlow <= 0 {
		return detail, 0, &Note{Method: MethodDCF, Field: detail.CashFlowSource, Reason: "base cash flow is not positive"}
	}
	if f.SharesOutstanding == nil || *f.SharesOutstanding <= 0 {
		return detail, 0, &Note{Method: MethodDCF, Field: "shares_outstanding", Reason: "missing or non-positive"}
	}

	detail.GrowthRates = growthRates(f, cfg)

	cf := detail.BaseCashFlow
	for year, g := range detail.GrowthRates {
		cf *= 1 + g
		detail.ProjectedCashFlows = append(detail.ProjectedCashFlows, cf)
		detail.PresentValueFlows += cf / math.Pow(1+cfg.DiscountRate, float64(year+1))
	}

	detail.TerminalValue = cf * (1 + cfg.TerminalGrowthRate) / (cfg.DiscountRate - cfg.TerminalGrowthRate)
	detail.PresentTerminalValue = detail.TerminalValue / math.Pow(1+cfg.DiscountRate, float64(cfg.Years))
	detail.EnterpriseValue = detail.PresentValueFlows + detail.PresentTerminalValue

	detail.EquityValue = detail.EnterpriseValue
	if f.TotalCash != nil {
		detail.EquityValue += *f.TotalCash
		detail.NetCashApplied = true
	}
	if f.TotalDebt != nil {
		detail.EquityValue -= *f.TotalDebt
		detail.NetCashApplied = true
	}
	if detail.EquityValue <= 0 {
		return detail, 0, equityNote(MethodDCF, f)
	}

	return detail, detail.EquityValue / *f.SharesOutstanding, nil
}

// growthRates resolves one rate per projected year: explicit schedule, then
// the override, then 5y EPS growth, then next-year EPS growth, then 5%.
// Every rate is clamped to [-1, MaxGrowthRate].
func growthRates(f market.FundamentalsSnapshot, cfg Config) []float64 {
	rates := make([]float64, cfg.Years)
	if len(cfg.GrowthSchedule) == cfg.Years {
		for i, g := range cfg.GrowthSchedule {
			rates[i] = clampGrowth(g, cfg)
		}
		return rates
	}

	g := defaultGrowthRate
	switch {
	case cfg.GrowthRate != nil:
		g = *cfg.GrowthRate
	case f.EPSGrowth5Y != nil:
		g = *f.EPSGrowth5Y
	case f.EPSGrowthNextYear != nil:
		g = *f.EPSGrowthNextYear
	}
	g = clampGrowth(g, cfg)
	for i := range rates {
		rates[i] = g
	}
	return rates
}

func clampGrowth(g float64, cfg Config) float64 {
	return max(min(g, cfg.MaxGrowthRate), minGrowthRate)
}

// equityNote attributes a non-positive equity value to debt when debt was
// subtracted, otherwise to the valuation itself.
func equityNote(method Method, f market.FundamentalsSnapshot) *Note {
	field := "equity_value"
	if f.TotalDebt != nil {
		field = "total_debt"
	}
	return &Note{Method: method, Field: field, Reason: "equity value is not positive"}
}

// Graham returns sqrt(22.5 * EPS * BVPS).
func Graham(f market.FundamentalsSnapshot) (float64, *Note) {
	if f.EPS == nil {
		return 0, &Note{Method: MethodGraham, Field: "eps", Reason: "missing"}
	}
	if *f.EPS <= 0 {
		return 0, &Note{Method: MethodGraham, Field: "eps", Reason: "not positive"}
	}
	if f.BookValuePerShare == nil {
		return 0, &Note{Method: MethodGraham, Field: "book_value_per_share", Reason: "missing"}
	}
	if *f.BookValuePerShare <= 0 {
		return 0, &Note{Method: MethodGraham, Field: "book_value_per_share", Reason: "not positive"}
	}
	return math.Sqrt(grahamMultiplier * *f.EPS * *f.BookValuePerShare), nil
}

// Relative prices the share at peer multiples: P/E on EPS, falling back to
// EV/EBITDA when earnings are unusable.
func Relative(f market.FundamentalsSnapshot, cfg Config) (float64, *Note) {
	if cfg.PeerPE > 0 && f.EPS != nil && *f.EPS > 0 {
		return cfg.PeerPE * *f.EPS, nil
	}

	if cfg.PeerEVEBITDA == nil {
		return 0, &Note{Method: MethodRelative, Field: "eps", Reason: "missing or non-positive and no EV/EBITDA multiple"}
	}
	if f.EBITDA == nil || *f.EBITDA <= 0 {
		return 0, &Note{Method: MethodRelative, Field: "ebitda", Reason: "missing or non-positive"}
	}
	if f.SharesOutstanding == nil || *f.SharesOutstanding <= 0 {
		return 0, &Note{Method: MethodRelative, Field: "shares_outstanding", Reason: "missing or non-positive"}
	}

	equity := *cfg.PeerEVEBITDA * *f.EBITDA
	if f.TotalCash != nil {
		equity += *f.TotalCash
	}
	if f.TotalDebt != nil {
		equity -= *f.TotalDebt
	}
	if equity <= 0 {
		return 0, equityNote(MethodRelative, f)
	}
	return equity / *f.SharesOutstanding, nil
}

// MarginOfSafety returns (fairValue - price) / fairValue * 100, nil when
// either input is non-positive.
func MarginOfSafety(fairValue, price float64) *float64 {
	if fairValue <= 0 || price <= 0 {
		return nil
	}
	v := (fairValue - price) / fairValue * 100
	return &v
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}
