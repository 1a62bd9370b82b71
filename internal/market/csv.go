package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// csvColumns is the expected column order of a bar file.
var csvColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// ReadCSV parses timestamp,open,high,low,close,volume rows into a series. A
// header row is skipped when present. Timestamps may be RFC3339, YYYY-MM-DD
// or unix seconds. Volume may be omitted.
func ReadCSV(r io.Reader, symbol string) (*PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var bars []PriceBar
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), csvColumns[0]) {
			continue
		}

		bar, err := parseCSVBar(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}

	return NewPriceSeries(strings.ToUpper(symbol), bars)
}

func parseCSVBar(record []string) (PriceBar, error) {
	if len(record) < 5 {
		return PriceBar{}, fmt.Errorf("expected at least 5 columns, got %d", len(record))
	}

	ts, err := parseTimestamp(strings.TrimSpace(record[0]))
	if err != nil {
		return PriceBar{}, err
	}

	values := make([]float64, 5)
	for i := 1; i < len(csvColumns) && i < len(record); i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		if err != nil {
			return PriceBar{}, fmt.Errorf("invalid %s %q", csvColumns[i], record[i])
		}
		values[i-1] = v
	}

	return PriceBar{
		Timestamp: ts,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
