package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finsight/internal/core"
)

// Health score and forecast records are append-only: one row per
// computation, never updated, "latest" resolved by computed_at.

func (r *SQLiteRepository) InsertHealthScore(ctx context.Context, hs *core.HealthScore) error {
	if hs.ID == "" {
		hs.ID = uuid.NewString()
	}

	subScores, err := json.Marshal(hs.SubScores)
	if err != nil {
		return fmt.Errorf("marshal sub-scores: %w", err)
	}
	metrics, err := json.Marshal(hs.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	recs, err := json.Marshal(hs.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO health_scores (id, owner_id, overall_score, sub_scores, explanation, metrics, recommendations, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		hs.ID, hs.Owner, hs.OverallScore, string(subScores), hs.Explanation,
		string(metrics), string(recs), hs.ComputedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert health score: %w", err)
	}
	return nil
}

// LatestHealthScore returns the owner's most recent record, or
// core.ErrNotFound when none has been computed yet.
func (r *SQLiteRepository) LatestHealthScore(ctx context.Context, owner string) (*core.HealthScore, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, overall_score, sub_scores, explanation, metrics, recommendations, computed_at
		FROM health_scores WHERE owner_id = ?
		ORDER BY computed_at DESC LIMIT 1`, owner)

	var (
		hs                       core.HealthScore
		subScores, metrics, recs string
		computedAt               string
	)
	err := row.Scan(&hs.ID, &hs.Owner, &hs.OverallScore, &subScores, &hs.Explanation, &metrics, &recs, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: health score for %s", core.ErrNotFound, owner)
	}
	if err != nil {
		return nil, fmt.Errorf("latest health score: %w", err)
	}

	if err := json.Unmarshal([]byte(subScores), &hs.SubScores); err != nil {
		return nil, fmt.Errorf("unmarshal sub-scores: %w", err)
	}
	if err := json.Unmarshal([]byte(metrics), &hs.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(recs), &hs.Recommendations); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations: %w", err)
	}
	if hs.ComputedAt, err = time.Parse(timeLayout, computedAt); err != nil {
		return nil, fmt.Errorf("parse computed_at: %w", err)
	}
	return &hs, nil
}

func (r *SQLiteRepository) InsertForecast(ctx context.Context, f *core.Forecast) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	predictions, err := json.Marshal(f.Predictions)
	if err != nil {
		return fmt.Errorf("marshal predictions: %w", err)
	}
	metadata, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO forecasts (id, owner_id, horizon, predictions, risk_indicator, risk_score, metadata, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Owner, string(f.Horizon), string(predictions), string(f.RiskIndicator),
		f.RiskScore, string(metadata), f.ComputedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert forecast: %w", err)
	}
	return nil
}

// LatestForecast returns the owner's most recent record for a horizon, or
// core.ErrNotFound when none has been computed yet.
func (r *SQLiteRepository) LatestForecast(ctx context.Context, owner string, horizon core.Horizon) (*core.Forecast, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, horizon, predictions, risk_indicator, risk_score, metadata, computed_at
		FROM forecasts WHERE owner_id = ? AND horizon = ?
		ORDER BY computed_at DESC LIMIT 1`, owner, string(horizon))

	var (
		f                              core.Forecast
		h, predictions, risk, metadata string
		computedAt                     string
	)
	err := row.Scan(&f.ID, &f.Owner, &h, &predictions, &risk, &f.RiskScore, &metadata, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s forecast for %s", core.ErrNotFound, horizon, owner)
	}
	if err != nil {
		return nil, fmt.Errorf("latest forecast: %w", err)
	}

	f.Horizon = core.Horizon(h)
	f.RiskIndicator = core.RiskLevel(risk)
	if err := json.Unmarshal([]byte(predictions), &f.Predictions); err != nil {
		return nil, fmt.Errorf("unmarshal predictions: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &f.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if f.ComputedAt, err = time.Parse(timeLayout, computedAt); err != nil {
		return nil, fmt.Errorf("parse computed_at: %w", err)
	}
	return &f, nil
}
