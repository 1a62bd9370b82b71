package market

import (
	"context"
	"errors"
	"strings"
)

// FundamentalsSnapshot holds point-in-time fundamentals for one ticker.
// A nil field means the value is unknown; it is never defaulted to zero.
// Growth rates and returns are fractions (0.15 = 15%).
type FundamentalsSnapshot struct {
	Revenue                   *float64 `json:"revenue,omitempty"`
	RevenueGrowth             *float64 `json:"revenue_growth,omitempty"`
	OperatingIncome           *float64 `json:"operating_income,omitempty"`
	EPS                       *float64 `json:"eps,omitempty"`
	EPSGrowthThisYear         *float64 `json:"eps_growth_this_year,omitempty"`
	EPSGrowthNextYear         *float64 `json:"eps_growth_next_year,omitempty"`
	EPSGrowth5Y               *float64 `json:"eps_growth_5y,omitempty"`
	PE                        *float64 `json:"pe,omitempty"`
	ForwardPE                 *float64 `json:"forward_pe,omitempty"`
	PEG                       *float64 `json:"peg,omitempty"`
	MarketCap                 *float64 `json:"market_cap,omitempty"`
	ROE                       *float64 `json:"roe,omitempty"`
	ROA                       *float64 `json:"roa,omitempty"`
	InstitutionalOwnershipPct *float64 `json:"institutional_ownership_pct,omitempty"`
	// AnalystRecommendation uses the 1 (strong buy) to 5 (sell) scale.
	AnalystRecommendation *float64 `json:"analyst_recommendation,omitempty"`
	ExchangeCode          string   `json:"exchange_code,omitempty"`

	BookValuePerShare *float64 `json:"book_value_per_share,omitempty"`
	FreeCashFlow      *float64 `json:"free_cash_flow,omitempty"`
	SharesOutstanding *float64 `json:"shares_outstanding,omitempty"`
	TotalDebt         *float64 `json:"total_debt,omitempty"`
	TotalCash         *float64 `json:"total_cash,omitempty"`
	EBITDA            *float64 `json:"ebitda,omitempty"`
}

// Float returns a pointer to v, for building snapshots.
func Float(v float64) *float64 { return &v }

// usExchanges lists codes treated as US-listed. Includes the short codes used
// by common quote providers. OTC venues are not listed.
var usExchanges = map[string]struct{}{
	"NASDAQ": {}, "NYSE": {}, "AMEX": {}, "NYSEARCA": {}, "NYSEAMERICAN": {},
	"BATS": {}, "CBOE": {}, "ARCA": {},
	"NMS": {}, "NGM": {}, "NCM": {}, "NYQ": {}, "ASE": {}, "PCX": {}, "BTS": {},
}

// IsUSExchange reports whether code names a US listing venue.
func IsUSExchange(code string) bool {
	_, ok := usExchanges[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// Dataset is everything the analyzer needs for one symbol.
type Dataset struct {
	Series       *PriceSeries
	Fundamentals FundamentalsSnapshot
}

// ErrSymbolNotFound is returned by a DataSource with no data for a symbol.
var ErrSymbolNotFound = errors.New("symbol not found")

// DataSource supplies already-fetched data for a symbol.
type DataSource interface {
	Fetch(ctx context.Context, symbol string) (*Dataset, error)
}

// StaticSource is an in-memory DataSource.
type StaticSource map[string]*Dataset

// Fetch implements DataSource.
func (s StaticSource) Fetch(ctx context.Context, symbol string) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, ok := s[strings.ToUpper(symbol)]
	if !ok {
		return nil, ErrSymbolNotFound
	}
	return ds, nil
}
