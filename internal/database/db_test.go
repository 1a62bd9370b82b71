package database

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growth-screener/internal/backtest"
	"growth-screener/internal/checklist"
	"growth-screener/internal/market"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5433, User: "u", Password: "p", Database: "screener"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=screener sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}

func TestNewBacktestRun(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	result := &backtest.Result{
		Strategy:       backtest.StrategyBuyAndHold,
		Symbol:         "AAPL",
		StartTime:      start,
		EndTime:        start.AddDate(0, 0, 30),
		InitialEquity:  10000,
		FinalEquity:    11000,
		TotalReturnPct: 10,
		MaxDrawdownPct: -3,
		WinRate:        1,
		TotalTrades:    1,
		SharpeRatio:    1.5,
	}

	run := newBacktestRun("id-1", result, backtest.Params{"stop_pct": 0.05})
	assert.Equal(t, "id-1", run.ID)
	assert.Equal(t, "AAPL", run.Symbol)
	assert.Equal(t, backtest.StrategyBuyAndHold, run.Strategy)
	assert.Equal(t, 11000.0, run.FinalEquity)
	assert.Equal(t, -3.0, run.MaxDrawdownPct)
	assert.Equal(t, 0.05, run.Params["stop_pct"])
	assert.Same(t, result, run.Result)
}

// testDB connects to the database named by the DB_TEST_* environment or
// skips the test.
func testDB(t *testing.T) *DB {
	t.Helper()
	host := os.Getenv("DB_TEST_HOST")
	if host == "" {
		t.Skip("DB_TEST_HOST not set, skipping PostgreSQL integration test")
	}
	port, _ := strconv.Atoi(os.Getenv("DB_TEST_PORT"))
	if port == 0 {
		port = 5432
	}

	ctx := context.Background()
	db, err := NewDB(ctx, Config{
		Host:     host,
		Port:     port,
		User:     os.Getenv("DB_TEST_USER"),
		Password: os.Getenv("DB_TEST_PASSWORD"),
		Database: os.Getenv("DB_TEST_NAME"),
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.RunMigrations(ctx))
	return db
}

func TestRepository_Integration(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.HealthCheck(ctx))

	symbol := "ZZTEST"
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(ctx, `DELETE FROM price_bars WHERE symbol = $1`, symbol)
		_, _ = db.Pool.Exec(ctx, `DELETE FROM fundamentals_snapshots WHERE symbol = $1`, symbol)
		_, _ = db.Pool.Exec(ctx, `DELETE FROM backtest_runs WHERE symbol = $1`, symbol)
		_, _ = db.Pool.Exec(ctx, `DELETE FROM checklist_reports WHERE symbol = $1`, symbol)
	})

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]market.PriceBar, 30)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = market.PriceBar{Timestamp: start.AddDate(0, 0, i), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1000}
	}

	t.Run("missing symbol", func(t *testing.T) {
		_, err := repo.Fetch(ctx, symbol)
		assert.ErrorIs(t, err, market.ErrSymbolNotFound)
	})

	t.Run("price bars and fundamentals", func(t *testing.T) {
		require.NoError(t, repo.SavePriceBars(ctx, symbol, bars))
		// Upsert is idempotent
		require.NoError(t, repo.SavePriceBars(ctx, symbol, bars[:5]))

		_, err := repo.SaveFundamentals(ctx, symbol, market.FundamentalsSnapshot{ExchangeCode: "NASDAQ", PE: market.Float(21)})
		require.NoError(t, err)

		ds, err := repo.Fetch(ctx, symbol)
		require.NoError(t, err)
		require.NotNil(t, ds.Series)
		assert.Equal(t, 30, ds.Series.Len())
		assert.Equal(t, "NASDAQ", ds.Fundamentals.ExchangeCode)
		require.NotNil(t, ds.Fundamentals.PE)
		assert.Equal(t, 21.0, *ds.Fundamentals.PE)
	})

	t.Run("backtest runs", func(t *testing.T) {
		ds, err := repo.Fetch(ctx, symbol)
		require.NoError(t, err)
		rule, err := backtest.NewRule(backtest.StrategyBuyAndHold, nil)
		require.NoError(t, err)
		result, err := backtest.NewEngine().Run(ctx, ds.Series, rule, backtest.DefaultConfig())
		require.NoError(t, err)

		id, err := repo.SaveBacktestRun(ctx, result, backtest.Params{"stop_pct": 0.08})
		require.NoError(t, err)

		run, err := repo.GetBacktestRun(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, symbol, run.Symbol)
		assert.Equal(t, result.TotalTrades, run.TotalTrades)
		assert.Len(t, run.Result.Trades, len(result.Trades))

		runs, err := repo.ListBacktestRuns(ctx, symbol, 10)
		require.NoError(t, err)
		assert.Len(t, runs, 1)

		_, err = repo.GetBacktestRun(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("checklist reports", func(t *testing.T) {
		report := checklist.Report{
			Items:    []checklist.Item{{RuleID: checklist.RuleUSExchange, Group: checklist.GroupExchange, Status: checklist.Pass}},
			Score:    1,
			MaxScore: 12,
		}
		_, err := repo.SaveChecklistReport(ctx, symbol, report)
		require.NoError(t, err)

		records, err := repo.ListChecklistReports(ctx, symbol, 5)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 1, records[0].Report.Score)
		assert.Equal(t, checklist.RuleUSExchange, records[0].Report.Items[0].RuleID)
	})
}
