// Command backtest runs a registered strategy over a CSV bar file and prints
// the result as JSON or a text summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"growth-screener/config"
	"growth-screener/internal/backtest"
	"growth-screener/internal/database"
	"growth-screener/internal/logging"
	"growth-screener/internal/market"
)

type options struct {
	csvPath    string
	symbol     string
	strategy   string
	params     string
	from       string
	to         string
	configPath string
	equity     float64
	commission float64
	format     string
	save       bool
	list       bool
	verbose    bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	fs.StringVar(&o.csvPath, "csv", "", "bar file with timestamp,open,high,low,close,volume rows (required)")
	fs.StringVar(&o.symbol, "symbol", "", "symbol name (default: CSV file name)")
	fs.StringVar(&o.strategy, "strategy", backtest.StrategyBuyAndHold, "strategy name, see -list")
	fs.StringVar(&o.params, "params", "", "strategy parameters as key=value,key=value")
	fs.StringVar(&o.from, "from", "", "first bar date, YYYY-MM-DD")
	fs.StringVar(&o.to, "to", "", "last bar date, YYYY-MM-DD")
	fs.StringVar(&o.configPath, "config", "", "config.yaml supplying engine defaults")
	fs.Float64Var(&o.equity, "equity", 0, "initial equity (default from config)")
	fs.Float64Var(&o.commission, "commission", -1, "commission per side as a fraction of notional (default from config)")
	fs.StringVar(&o.format, "format", "text", "output format: text or json")
	fs.BoolVar(&o.save, "save", false, "store the run in PostgreSQL (database section of the config)")
	fs.BoolVar(&o.list, "list", false, "list strategies and exit")
	fs.BoolVar(&o.verbose, "v", false, "debug logging to stderr")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.list {
		return o, nil
	}
	if o.csvPath == "" {
		return o, fmt.Errorf("-csv is required")
	}
	if o.format != "text" && o.format != "json" {
		return o, fmt.Errorf("-format must be text or json")
	}
	if o.symbol == "" {
		o.symbol = strings.TrimSuffix(filepath.Base(o.csvPath), filepath.Ext(o.csvPath))
	}
	o.symbol = strings.ToUpper(o.symbol)
	return o, nil
}

// parseParams reads key=value pairs separated by commas.
func parseParams(s string) (backtest.Params, error) {
	params := backtest.Params{}
	if strings.TrimSpace(s) == "" {
		return params, nil
	}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("parameter %q is not key=value", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", key, err)
		}
		params[strings.TrimSpace(key)] = v
	}
	return params, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	if o.list {
		for _, name := range backtest.StrategyNames() {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	level := "WARN"
	if o.verbose {
		level = "DEBUG"
	}
	logger := logging.New(&logging.Config{Level: level, Output: "stderr", Component: "backtest_cli"})

	engines := config.DefaultEngines()
	var cfg *config.Config
	if o.configPath != "" || o.save {
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return err
		}
		engines = cfg.Engines
	}

	btCfg := engines.Backtest
	if o.equity > 0 {
		btCfg.InitialEquity = o.equity
	}
	if o.commission >= 0 {
		btCfg.Commission = o.commission
	}

	params, err := parseParams(o.params)
	if err != nil {
		return err
	}
	from, err := parseDate(o.from)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	to, err := parseDate(o.to)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}

	f, err := os.Open(o.csvPath)
	if err != nil {
		return err
	}
	series, err := market.ReadCSV(f, o.symbol)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", o.csvPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store backtest.ResultStore
	if o.save {
		db, err := openDatabase(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		store = database.NewRepository(db)
	}

	source := market.StaticSource{o.symbol: {Series: series}}
	runner := backtest.NewBacktest(source, store, btCfg, logger)

	result, runID, err := runner.Run(ctx, backtest.Request{
		Symbol:   o.symbol,
		Strategy: o.strategy,
		Params:   params,
		From:     from,
		To:       to,
	})
	if err != nil {
		return err
	}

	if o.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			RunID  string           `json:"run_id,omitempty"`
			Result *backtest.Result `json:"result"`
		}{runID, result})
	}
	printSummary(out, result, runID)
	return nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(ctx, database.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Name,
		SSLMode:  cfg.SSLMode,
		MaxConns: cfg.MaxConns,
		MinConns: cfg.MinConns,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func printSummary(w io.Writer, r *backtest.Result, runID string) {
	fmt.Fprintf(w, "%s %s  %s -> %s\n", r.Symbol, r.Strategy, r.StartTime.Format("2006-01-02"), r.EndTime.Format("2006-01-02"))
	fmt.Fprintf(w, "  equity        %.2f -> %.2f\n", r.InitialEquity, r.FinalEquity)
	fmt.Fprintf(w, "  return        %+.2f%% (buy and hold %+.2f%%)\n", r.TotalReturnPct, r.BenchmarkReturnPct)
	fmt.Fprintf(w, "  max drawdown  %.2f%%\n", r.MaxDrawdownPct)
	fmt.Fprintf(w, "  trades        %d (win rate %.1f%%)\n", r.TotalTrades, r.WinRate*100)
	if r.ProfitFactor != nil {
		fmt.Fprintf(w, "  profit factor %.2f\n", *r.ProfitFactor)
	} else {
		fmt.Fprintf(w, "  profit factor n/a\n")
	}
	fmt.Fprintf(w, "  sharpe        %.2f\n", r.SharpeRatio)
	fmt.Fprintf(w, "  exposure      %.1f%%\n", r.ExposurePct)
	if runID != "" {
		fmt.Fprintf(w, "  run id        %s\n", runID)
	}
}
