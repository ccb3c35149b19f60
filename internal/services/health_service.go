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

// healthWindowDays is the trailing transaction window scored by the health
// predictor.
const healthWindowDays = 90

// HealthService composes health score records. Scoring is delegated to the
// external predictor; a predictor failure aborts the computation and
// persists nothing, since a score without real sub-scores would mislead.
type HealthService struct {
	storage   *storage.SQLiteRepository
	predictor predictor.HealthPredictor
}

func NewHealthService(storage *storage.SQLiteRepository, healthPredictor predictor.HealthPredictor) *HealthService {
	return &HealthService{storage: storage, predictor: healthPredictor}
}

// Compute scores the owner's trailing 90-day window and appends a new
// dated record. Prior records are never mutated.
func (s *HealthService) Compute(ctx context.Context, owner string) (*core.HealthScore, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -healthWindowDays)

	window, err := s.storage.TransactionsInWindow(ctx, owner, from, now)
	if err != nil {
		return nil, fmt.Errorf("read health window: %w", err)
	}

	points := make([]predictor.TransactionPoint, 0, len(window))
	var incomeCents int64
	for _, t := range window {
		points = append(points, predictor.TransactionPoint{
			Date:      t.OccurredOn,
			Amount:    t.Amount.Units(),
			Direction: t.Direction,
			Category:  t.Category,
		})
		if t.Direction == core.DirectionIncome {
			incomeCents += t.Amount.Cents
		}
	}

	profile := predictor.IncomeProfile{
		MonthlyIncome: core.Money{Cents: incomeCents / 3}.Units(),
	}
	prefs, err := s.budgetPreferences(ctx, owner, now)
	if err != nil {
		return nil, err
	}

	result, err := s.predictor.Score(ctx, points, profile, prefs)
	if err != nil {
		return nil, fmt.Errorf("score health for %s: %w", owner, err)
	}

	record := &core.HealthScore{
		Owner:           owner,
		OverallScore:    result.OverallScore,
		SubScores:       result.SubScores,
		Explanation:     result.Explanation,
		Metrics:         result.Metrics,
		Recommendations: result.Recommendations,
		ComputedAt:      now,
	}
	if err := s.storage.InsertHealthScore(ctx, record); err != nil {
		return nil, fmt.Errorf("persist health score: %w", err)
	}

	slog.InfoContext(ctx, "Health score computed",
		"owner_id", owner,
		"overall_score", record.OverallScore,
		"window_transactions", len(window))
	return record, nil
}

// Latest returns the owner's most recent health score, or nil when none
// has been computed yet.
func (s *HealthService) Latest(ctx context.Context, owner string) (*core.HealthScore, error) {
	record, err := s.storage.LatestHealthScore(ctx, owner)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	return record, err
}

// budgetPreferences collects the current month's budgeted amounts as model
// input.
func (s *HealthService) budgetPreferences(ctx context.Context, owner string, now time.Time) (predictor.BudgetPreferences, error) {
	budgets, err := s.storage.ListBudgets(ctx, owner, int(now.Month()), now.Year())
	if err != nil {
		return predictor.BudgetPreferences{}, fmt.Errorf("read budget preferences: %w", err)
	}

	prefs := predictor.BudgetPreferences{CategoryBudgets: make(map[string]float64)}
	for _, b := range budgets {
		if b.Budgeted.Cents > 0 {
			prefs.CategoryBudgets[b.Category] = b.Budgeted.Units()
		}
	}
	return prefs, nil
}
