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
	// insightWindowDays and insightMinTransactions gate the anomaly and
	// insight reads: below the floor the result is empty, not an error.
	insightWindowDays      = 90
	insightMinTransactions = 10
)

// InsightService serves the two on-demand predictor reads: anomaly
// detection over the trailing window and explainable insights. Nothing is
// persisted; both calls require the predictor and fail with
// core.ErrPredictorUnavailable when it is down.
type InsightService struct {
	storage  *storage.SQLiteRepository
	detector predictor.AnomalyDetector
	insights predictor.InsightGenerator
}

func NewInsightService(storage *storage.SQLiteRepository, detector predictor.AnomalyDetector, insights predictor.InsightGenerator) *InsightService {
	return &InsightService{storage: storage, detector: detector, insights: insights}
}

// DetectAnomalies flags unusual transactions in the owner's trailing
// 90-day window. Too little history yields an empty low-risk report.
func (s *InsightService) DetectAnomalies(ctx context.Context, owner string) (*predictor.AnomalyReport, error) {
	window, _, err := s.window(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(window) < insightMinTransactions {
		slog.InfoContext(ctx, "Not enough history for anomaly detection",
			"owner_id", owner,
			"transactions", len(window),
			"required", insightMinTransactions)
		return &predictor.AnomalyReport{RiskLevel: core.RiskLow}, nil
	}

	report, err := s.detector.DetectAnomalies(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("detect anomalies for %s: %w", owner, err)
	}
	return report, nil
}

// GenerateInsights produces evidence-backed observations over the owner's
// trailing 90-day window, attaching the latest health score when one has
// been computed. Too little history yields an empty set.
func (s *InsightService) GenerateInsights(ctx context.Context, owner string) ([]predictor.Insight, error) {
	now := time.Now().UTC()
	window, profile, err := s.window(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(window) < insightMinTransactions {
		slog.InfoContext(ctx, "Not enough history for insights",
			"owner_id", owner,
			"transactions", len(window),
			"required", insightMinTransactions)
		return nil, nil
	}

	prefs, err := s.budgetPreferences(ctx, owner, now)
	if err != nil {
		return nil, err
	}

	var overall *float64
	latest, err := s.storage.LatestHealthScore(ctx, owner)
	switch {
	case err == nil:
		overall = &latest.OverallScore
	case errors.Is(err, core.ErrNotFound):
		// No score yet; the generator works without one.
	default:
		return nil, fmt.Errorf("read latest health score: %w", err)
	}

	insights, err := s.insights.GenerateInsights(ctx, window, profile, prefs, overall)
	if err != nil {
		return nil, fmt.Errorf("generate insights for %s: %w", owner, err)
	}
	return insights, nil
}

// window reads the trailing transaction window and derives the income
// profile from it.
func (s *InsightService) window(ctx context.Context, owner string) ([]predictor.TransactionPoint, predictor.IncomeProfile, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -insightWindowDays)

	transactions, err := s.storage.TransactionsInWindow(ctx, owner, from, now)
	if err != nil {
		return nil, predictor.IncomeProfile{}, fmt.Errorf("read insight window: %w", err)
	}

	points := make([]predictor.TransactionPoint, 0, len(transactions))
	var incomeCents int64
	for _, t := range transactions {
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
	return points, profile, nil
}

func (s *InsightService) budgetPreferences(ctx context.Context, owner string, now time.Time) (predictor.BudgetPreferences, error) {
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
