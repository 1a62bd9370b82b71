package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"growth-screener/internal/checklist"
)

// ChecklistRecord is a stored checklist report.
type ChecklistRecord struct {
	ID        string           `json:"id"`
	Symbol    string           `json:"symbol"`
	Report    checklist.Report `json:"report"`
	CreatedAt time.Time        `json:"created_at"`
}

// SaveChecklistReport stores a report and returns its ID.
func (r *Repository) SaveChecklistReport(ctx context.Context, symbol string, report checklist.Report) (string, error) {
	items, err := json.Marshal(report.Items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checklist items: %w", err)
	}

	query := `
		INSERT INTO checklist_reports (id, symbol, score, max_score, fail_count, unknown_count, items)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id string
	err = r.db.Pool.QueryRow(ctx, query,
		uuid.New().String(), strings.ToUpper(symbol),
		report.Score, report.MaxScore, report.FailCount, report.UnknownCount, items,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert checklist report: %w", err)
	}
	return id, nil
}

// ListChecklistReports returns a symbol's reports, newest first.
func (r *Repository) ListChecklistReports(ctx context.Context, symbol string, limit int) ([]ChecklistRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, symbol, score, max_score, fail_count, unknown_count, items, created_at
		FROM checklist_reports
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, strings.ToUpper(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list checklist reports: %w", err)
	}
	defer rows.Close()

	var records []ChecklistRecord
	for rows.Next() {
		var rec ChecklistRecord
		var items []byte
		if err := rows.Scan(
			&rec.ID, &rec.Symbol, &rec.Report.Score, &rec.Report.MaxScore,
			&rec.Report.FailCount, &rec.Report.UnknownCount, &items, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan checklist report: %w", err)
		}
		if err := json.Unmarshal(items, &rec.Report.Items); err != nil {
			return nil, fmt.Errorf("failed to decode checklist items: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
