package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"finsight/internal/core"
)

func TestHealthScoreRecords(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.LatestHealthScore(ctx, "alice"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("empty latest: %v, want ErrNotFound", err)
	}

	older := &core.HealthScore{
		Owner:        "alice",
		OverallScore: 61.5,
		SubScores: map[string]core.SubScore{
			core.SubScoreSavingsRate: {Score: 70, Weight: 0.25},
		},
		Explanation:     "first",
		Metrics:         core.HealthMetrics{TotalIncome: 5000, TotalExpenses: 175},
		Recommendations: []string{"save more"},
		ComputedAt:      time.Now().UTC().Add(-time.Hour),
	}
	newer := &core.HealthScore{
		Owner:        "alice",
		OverallScore: 72.0,
		SubScores: map[string]core.SubScore{
			core.SubScoreSavingsRate: {Score: 85, Weight: 0.25},
		},
		Explanation: "second",
		ComputedAt:  time.Now().UTC(),
	}
	for _, record := range []*core.HealthScore{older, newer} {
		if err := repo.InsertHealthScore(ctx, record); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := repo.LatestHealthScore(ctx, "alice")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.OverallScore != 72.0 || got.Explanation != "second" {
		t.Errorf("latest = %+v, want the newer record", got)
	}

	// Prior records stay untouched: re-reading after another insert still
	// resolves by computed_at.
	if got.SubScores[core.SubScoreSavingsRate].Score != 85 {
		t.Errorf("sub-scores = %v", got.SubScores)
	}
}

func TestForecastRecordsPerHorizon(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.LatestForecast(ctx, "alice", core.Horizon7Day); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("empty latest: %v, want ErrNotFound", err)
	}

	record := &core.Forecast{
		Owner:   "alice",
		Horizon: core.Horizon7Day,
		Predictions: []core.Prediction{
			{Date: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), PredictedAmount: -42.5, LowerBound: -60, UpperBound: -25, Confidence: 0.8},
		},
		RiskIndicator: core.RiskMedium,
		RiskScore:     55,
		Metadata: core.ForecastMetadata{
			ModelVersion:  "v1.0",
			TrainingStart: time.Date(2025, 12, 16, 0, 0, 0, 0, time.UTC),
			TrainingEnd:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			FeaturesUsed:  []string{"daily_cashflow", "trend"},
		},
		ComputedAt: time.Now().UTC(),
	}
	if err := repo.InsertForecast(ctx, record); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.LatestForecast(ctx, "alice", core.Horizon7Day)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.RiskIndicator != core.RiskMedium || len(got.Predictions) != 1 {
		t.Errorf("latest = %+v", got)
	}
	if got.Metadata.ModelVersion != "v1.0" {
		t.Errorf("metadata = %+v", got.Metadata)
	}

	// Other horizons are independent keys.
	if _, err := repo.LatestForecast(ctx, "alice", core.Horizon30Day); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("30day latest: %v, want ErrNotFound", err)
	}
}

func TestGoalCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	g := &core.Goal{
		Owner:       "alice",
		Title:       "Food cap",
		Type:        core.GoalCategoryLimit,
		Category:    "Food & Dining",
		TargetValue: core.Money{Cents: 30000},
		Period:      core.PeriodMonthly,
		StartDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:      core.GoalActive,
		Provenance:  core.ProvenanceSystem,
		Reasoning:   "spending is high",
		Evidence: []core.Evidence{
			{Metric: "current_category_spending", Value: 450.0, Explanation: "average monthly spending"},
		},
	}
	if err := repo.CreateGoal(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetGoal(ctx, "alice", g.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Food cap" || got.Provenance != core.ProvenanceSystem {
		t.Errorf("got %+v", got)
	}
	if len(got.Evidence) != 1 || got.Evidence[0].Metric != "current_category_spending" {
		t.Errorf("evidence = %v", got.Evidence)
	}

	got.CurrentValue = core.Money{Cents: 15000}
	got.Progress = 50
	if err := repo.UpdateGoal(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}

	active, err := repo.ListActiveGoals(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].Progress != 50 {
		t.Errorf("active = %+v", active)
	}

	if err := repo.DeleteGoal(ctx, "alice", g.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetGoal(ctx, "alice", g.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get after delete: %v, want ErrNotFound", err)
	}
}
