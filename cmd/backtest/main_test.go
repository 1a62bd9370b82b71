package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growth-screener/internal/backtest"
)

func writeCSV(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,1000\n", start.AddDate(0, 0, i).Format("2006-01-02"), c-0.5, c+0.5, c-0.5, c)
	}
	path := filepath.Join(t.TempDir(), "acme.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestParseParams(t *testing.T) {
	p, err := parseParams("fast=10, slow=30")
	require.NoError(t, err)
	assert.Equal(t, backtest.Params{"fast": 10, "slow": 30}, p)

	_, err = parseParams("fast")
	assert.Error(t, err)
	_, err = parseParams("fast=ten")
	assert.Error(t, err)
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-csv", "/data/msft.csv"})
	require.NoError(t, err)
	assert.Equal(t, "MSFT", o.symbol)
	assert.Equal(t, backtest.StrategyBuyAndHold, o.strategy)

	_, err = parseFlags([]string{})
	assert.Error(t, err)

	_, err = parseFlags([]string{"-csv", "x.csv", "-format", "xml"})
	assert.Error(t, err)
}

func TestRun_JSON(t *testing.T) {
	path := writeCSV(t, 60)
	var out bytes.Buffer
	require.NoError(t, run([]string{"-csv", path, "-format", "json", "-equity", "50000", "-from", "2024-01-05"}, &out))

	var body struct {
		RunID  string          `json:"run_id"`
		Result backtest.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Empty(t, body.RunID)
	assert.Equal(t, "ACME", body.Result.Symbol)
	assert.Equal(t, 50000.0, body.Result.InitialEquity)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), body.Result.StartTime.UTC())
	assert.Equal(t, 1, body.Result.TotalTrades)
	assert.Greater(t, body.Result.TotalReturnPct, 0.0)
}

func TestRun_TextAndList(t *testing.T) {
	path := writeCSV(t, 60)
	var out bytes.Buffer
	require.NoError(t, run([]string{"-csv", path, "-strategy", backtest.StrategyEMACrossover, "-params", "fast=5,slow=20"}, &out))
	assert.Contains(t, out.String(), "ACME ema_crossover")
	assert.Contains(t, out.String(), "max drawdown")

	out.Reset()
	require.NoError(t, run([]string{"-list"}, &out))
	assert.Equal(t, strings.Join(backtest.StrategyNames(), "\n")+"\n", out.String())
}

func TestRun_Errors(t *testing.T) {
	path := writeCSV(t, 60)
	var out bytes.Buffer

	assert.Error(t, run([]string{"-csv", filepath.Join(t.TempDir(), "missing.csv")}, &out))
	assert.ErrorIs(t, run([]string{"-csv", path, "-strategy", "martingale"}, &out), backtest.ErrUnknownStrategy)
	assert.Error(t, run([]string{"-csv", path, "-from", "01/05/2024"}, &out))
}
