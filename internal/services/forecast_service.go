package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finsight/internal/core"
	"finsight/internal/predictor"
	"finsight/internal/storage"
)

const (
	// forecastWindowDays is the trailing history fed to the predictor.
	forecastWindowDays = 90
	// minHistoryDays is the minimum number of distinct transaction days
	// required before a forecast is meaningful.
	minHistoryDays = 30
)

// ForecastService generates cash-flow forecast records per horizon.
type ForecastService struct {
	storage   *storage.SQLiteRepository
	predictor predictor.ForecastPredictor
}

func NewForecastService(storage *storage.SQLiteRepository, forecastPredictor predictor.ForecastPredictor) *ForecastService {
	return &ForecastService{storage: storage, predictor: forecastPredictor}
}

// Generate forecasts the owner's cash flow over the horizon and appends a
// new dated record keyed by horizon. Fewer than 30 distinct transaction
// days in the trailing 90 returns core.ErrInsufficientHistory, which
// callers treat as a skip.
func (s *ForecastService) Generate(ctx context.Context, owner string, horizon core.Horizon) (*core.Forecast, error) {
	if err := horizon.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -forecastWindowDays)

	days, err := s.storage.DistinctTransactionDays(ctx, owner, from, now)
	if err != nil {
		return nil, fmt.Errorf("count history days: %w", err)
	}
	if days < minHistoryDays {
		return nil, fmt.Errorf("%w: %d of %d required days", core.ErrInsufficientHistory, days, minHistoryDays)
	}

	window, err := s.storage.TransactionsInWindow(ctx, owner, from, now)
	if err != nil {
		return nil, fmt.Errorf("read forecast window: %w", err)
	}

	// Signed history: income positive, expenses negative.
	history := make([]predictor.SignedPoint, 0, len(window))
	for _, t := range window {
		amount := t.Amount.Units()
		if t.Direction == core.DirectionExpense {
			amount = -amount
		}
		history = append(history, predictor.SignedPoint{Date: t.OccurredOn, Amount: amount})
	}

	result, err := s.predictor.Forecast(ctx, history, horizon)
	if err != nil {
		return nil, fmt.Errorf("forecast %s for %s: %w", horizon, owner, err)
	}

	record := &core.Forecast{
		Owner:         owner,
		Horizon:       horizon,
		Predictions:   result.Predictions,
		RiskIndicator: result.RiskIndicator,
		RiskScore:     result.RiskScore,
		Metadata:      result.Metadata,
		ComputedAt:    now,
	}
	if err := s.storage.InsertForecast(ctx, record); err != nil {
		return nil, fmt.Errorf("persist forecast: %w", err)
	}

	slog.InfoContext(ctx, "Forecast generated",
		"owner_id", owner,
		"horizon", string(horizon),
		"risk", string(record.RiskIndicator),
		"history_days", days)
	return record, nil
}

// Latest returns the owner's most recent forecast for the horizon, or nil
// when none has been computed yet.
func (s *ForecastService) Latest(ctx context.Context, owner string, horizon core.Horizon) (*core.Forecast, error) {
	if err := horizon.Validate(); err != nil {
		return nil, err
	}
	record, err := s.storage.LatestForecast(ctx, owner, horizon)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	return record, err
}
