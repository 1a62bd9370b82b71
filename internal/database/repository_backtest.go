package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"growth-screener/internal/backtest"
)

// BacktestRun is a stored backtest with its summary columns.
type BacktestRun struct {
	ID             string           `json:"id"`
	Symbol         string           `json:"symbol"`
	Strategy       string           `json:"strategy"`
	Params         backtest.Params  `json:"params,omitempty"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        time.Time        `json:"end_time"`
	InitialEquity  float64          `json:"initial_equity"`
	FinalEquity    float64          `json:"final_equity"`
	TotalReturnPct float64          `json:"total_return_pct"`
	MaxDrawdownPct float64          `json:"max_drawdown_pct"`
	WinRate        float64          `json:"win_rate"`
	TotalTrades    int              `json:"total_trades"`
	SharpeRatio    float64          `json:"sharpe_ratio"`
	CreatedAt      time.Time        `json:"created_at"`
	Result         *backtest.Result `json:"result,omitempty"`
}

// newBacktestRun copies the summary columns out of a result.
func newBacktestRun(id string, result *backtest.Result, params backtest.Params) *BacktestRun {
	return &BacktestRun{
		ID:             id,
		Symbol:         result.Symbol,
		Strategy:       result.Strategy,
		Params:         params,
		StartTime:      result.StartTime,
		EndTime:        result.EndTime,
		InitialEquity:  result.InitialEquity,
		FinalEquity:    result.FinalEquity,
		TotalReturnPct: result.TotalReturnPct,
		MaxDrawdownPct: result.MaxDrawdownPct,
		WinRate:        result.WinRate,
		TotalTrades:    result.TotalTrades,
		SharpeRatio:    result.SharpeRatio,
		Result:         result,
	}
}

// SaveBacktestRun saves a backtest result and its trades in a transaction
// and returns the new run ID.
func (r *Repository) SaveBacktestRun(ctx context.Context, result *backtest.Result, params backtest.Params) (string, error) {
	run := newBacktestRun(uuid.New().String(), result, params)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal backtest result: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal strategy params: %w", err)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO backtest_runs (
			id, symbol, strategy, params, start_time, end_time,
			initial_equity, final_equity, total_return_pct, max_drawdown_pct,
			win_rate, total_trades, sharpe_ratio, result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = tx.Exec(ctx, query,
		run.ID, run.Symbol, run.Strategy, paramsJSON, run.StartTime, run.EndTime,
		run.InitialEquity, run.FinalEquity, run.TotalReturnPct, run.MaxDrawdownPct,
		run.WinRate, run.TotalTrades, run.SharpeRatio, resultJSON,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert backtest run: %w", err)
	}

	if len(result.Trades) > 0 {
		tradeQuery := `
			INSERT INTO backtest_trades (
				run_id, entry_time, exit_time, entry_price, exit_price,
				size, pnl, entry_reason, exit_reason
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`

		batch := &pgx.Batch{}
		for _, trade := range result.Trades {
			batch.Queue(tradeQuery,
				run.ID, trade.EntryTime, trade.ExitTime, trade.EntryPrice, trade.ExitPrice,
				trade.Size, trade.PnL, trade.EntryReason, trade.ExitReason,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return "", fmt.Errorf("failed to insert backtest trades: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug().Str("run_id", run.ID).Str("symbol", run.Symbol).Int("trades", len(result.Trades)).Msg("Saved backtest run")
	return run.ID, nil
}

// GetBacktestRun loads one run including its full result.
func (r *Repository) GetBacktestRun(ctx context.Context, id string) (*BacktestRun, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `
		SELECT id, symbol, strategy, params, start_time, end_time,
			initial_equity, final_equity, total_return_pct, max_drawdown_pct,
			win_rate, total_trades, sharpe_ratio, created_at, result
		FROM backtest_runs
		WHERE id = $1
	`

	var run BacktestRun
	var paramsJSON, resultJSON []byte
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Symbol, &run.Strategy, &paramsJSON, &run.StartTime, &run.EndTime,
		&run.InitialEquity, &run.FinalEquity, &run.TotalReturnPct, &run.MaxDrawdownPct,
		&run.WinRate, &run.TotalTrades, &run.SharpeRatio, &run.CreatedAt, &resultJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest run: %w", err)
	}

	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &run.Params); err != nil {
			return nil, fmt.Errorf("failed to decode strategy params: %w", err)
		}
	}
	run.Result = &backtest.Result{}
	if err := json.Unmarshal(resultJSON, run.Result); err != nil {
		return nil, fmt.Errorf("failed to decode backtest result: %w", err)
	}
	return &run, nil
}

// ListBacktestRuns returns run summaries, newest first. An empty symbol lists
// every symbol.
func (r *Repository) ListBacktestRuns(ctx context.Context, symbol string, limit int) ([]BacktestRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, symbol, strategy, start_time, end_time,
			initial_equity, final_equity, total_return_pct, max_drawdown_pct,
			win_rate, total_trades, sharpe_ratio, created_at
		FROM backtest_runs
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list backtest runs: %w", err)
	}
	defer rows.Close()

	runs := []BacktestRun{}
	for rows.Next() {
		var run BacktestRun
		if err := rows.Scan(
			&run.ID, &run.Symbol, &run.Strategy, &run.StartTime, &run.EndTime,
			&run.InitialEquity, &run.FinalEquity, &run.TotalReturnPct, &run.MaxDrawdownPct,
			&run.WinRate, &run.TotalTrades, &run.SharpeRatio, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
