package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"growth-screener/internal/market"
)

// SavePriceBars upserts daily bars for a symbol.
func (r *Repository) SavePriceBars(ctx context.Context, symbol string, bars []market.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)

	query := `
		INSERT INTO price_bars (symbol, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, ts) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query, symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	if err := r.db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert price bars: %w", err)
	}

	r.logger.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("Saved price bars")
	return nil
}

// GetPriceBars returns all stored bars for a symbol in time order.
func (r *Repository) GetPriceBars(ctx context.Context, symbol string) ([]market.PriceBar, error) {
	query := `
		SELECT ts, open, high, low, close, volume
		FROM price_bars
		WHERE symbol = $1
		ORDER BY ts ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, strings.ToUpper(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to get price bars: %w", err)
	}
	defer rows.Close()

	var bars []market.PriceBar
	for rows.Next() {
		var b market.PriceBar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// SaveFundamentals stores a new fundamentals snapshot and returns its ID.
func (r *Repository) SaveFundamentals(ctx context.Context, symbol string, f market.FundamentalsSnapshot) (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fundamentals: %w", err)
	}

	query := `
		INSERT INTO fundamentals_snapshots (id, symbol, exchange, data)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id string
	err = r.db.Pool.QueryRow(ctx, query, uuid.New().String(), strings.ToUpper(symbol), f.ExchangeCode, data).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert fundamentals: %w", err)
	}
	return id, nil
}

// GetLatestFundamentals returns the newest snapshot for a symbol.
func (r *Repository) GetLatestFundamentals(ctx context.Context, symbol string) (*market.FundamentalsSnapshot, error) {
	query := `
		SELECT data FROM fundamentals_snapshots
		WHERE symbol = $1
		ORDER BY as_of DESC
		LIMIT 1
	`

	var data []byte
	err := r.db.Pool.QueryRow(ctx, query, strings.ToUpper(symbol)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fundamentals: %w", err)
	}

	var f market.FundamentalsSnapshot
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode fundamentals: %w", err)
	}
	return &f, nil
}

// Fetch implements market.DataSource from stored bars and the latest
// fundamentals snapshot. A symbol with neither is market.ErrSymbolNotFound.
func (r *Repository) Fetch(ctx context.Context, symbol string) (*market.Dataset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	bars, err := r.GetPriceBars(ctx, symbol)
	if err != nil {
		return nil, err
	}
	fundamentals, err := r.GetLatestFundamentals(ctx, symbol)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if len(bars) == 0 && fundamentals == nil {
		return nil, fmt.Errorf("%s: %w", symbol, market.ErrSymbolNotFound)
	}

	dataset := &market.Dataset{}
	if fundamentals != nil {
		dataset.Fundamentals = *fundamentals
	}
	if len(bars) > 0 {
		series, err := market.NewPriceSeries(symbol, bars)
		if err != nil {
			return nil, fmt.Errorf("stored bars for %s are invalid: %w", symbol, err)
		}
		dataset.Series = series
	}
	return dataset, nil
}
