package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"finsight/internal/core"
	"finsight/internal/predictor"
)

// seedInsightHistory creates enough recent transactions to clear the minimum
// history floor: one income and n-1 expenses inside the trailing window.
func seedInsightHistory(t *testing.T, svc *TransactionService, owner string, n int) {
	t.Helper()
	mustCreate(t, svc, income(owner, "Salary", 300000, daysAgo(20)))
	for i := 0; i < n-1; i++ {
		mustCreate(t, svc, expense(owner, "Food & Dining", 2500, daysAgo(i%30+1)))
	}
}

func newInsightService(t *testing.T, fake *predictor.Fake) (*InsightService, *TransactionService) {
	t.Helper()
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	transactions, _, _ := newTransactionService(t, repo, nil)
	return NewInsightService(repo, fake, fake), transactions
}

func TestAnomaliesBelowFloorReturnEmptyReport(t *testing.T) {
	called := false
	fake := &predictor.Fake{
		DetectAnomaliesFn: func(_ context.Context, _ []predictor.TransactionPoint) (*predictor.AnomalyReport, error) {
			called = true
			return &predictor.AnomalyReport{}, nil
		},
	}
	svc, transactions := newInsightService(t, fake)
	seedInsightHistory(t, transactions, "alice", 5)

	report, err := svc.DetectAnomalies(context.Background(), "alice")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if called {
		t.Error("detector called below the history floor")
	}
	if report.RiskLevel != core.RiskLow || report.Total != 0 || len(report.Anomalies) != 0 {
		t.Errorf("report = %+v, want empty low-risk", report)
	}
}

func TestAnomaliesForwardWindow(t *testing.T) {
	var gotWindow []predictor.TransactionPoint
	fake := &predictor.Fake{
		DetectAnomaliesFn: func(_ context.Context, window []predictor.TransactionPoint) (*predictor.AnomalyReport, error) {
			gotWindow = window
			return &predictor.AnomalyReport{
				Anomalies: []predictor.Anomaly{{TransactionIndex: 0, Score: 2.9, Reason: "outlier", Severity: "medium"}},
				RiskLevel: core.RiskMedium,
				Total:     1,
			}, nil
		},
	}
	svc, transactions := newInsightService(t, fake)
	seedInsightHistory(t, transactions, "alice", 12)

	report, err := svc.DetectAnomalies(context.Background(), "alice")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(gotWindow) != 12 {
		t.Errorf("window = %d points, want 12", len(gotWindow))
	}
	if report.RiskLevel != core.RiskMedium || report.Total != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestAnomaliesSurfacePredictorFailure(t *testing.T) {
	svc, transactions := newInsightService(t, &predictor.Fake{})
	seedInsightHistory(t, transactions, "alice", 12)

	_, err := svc.DetectAnomalies(context.Background(), "alice")
	if !errors.Is(err, core.ErrPredictorUnavailable) {
		t.Errorf("err = %v, want ErrPredictorUnavailable", err)
	}
}

func TestInsightsBelowFloorReturnEmpty(t *testing.T) {
	called := false
	fake := &predictor.Fake{
		GenerateInsightsFn: func(_ context.Context, _ []predictor.TransactionPoint, _ predictor.IncomeProfile, _ predictor.BudgetPreferences, _ *float64) ([]predictor.Insight, error) {
			called = true
			return nil, nil
		},
	}
	svc, transactions := newInsightService(t, fake)
	seedInsightHistory(t, transactions, "alice", 4)

	insights, err := svc.GenerateInsights(context.Background(), "alice")
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if called {
		t.Error("generator called below the history floor")
	}
	if len(insights) != 0 {
		t.Errorf("insights = %d, want 0", len(insights))
	}
}

func TestInsightsAttachLatestHealthScore(t *testing.T) {
	var gotScore *float64
	var gotProfile predictor.IncomeProfile
	fake := &predictor.Fake{
		GenerateInsightsFn: func(_ context.Context, _ []predictor.TransactionPoint, profile predictor.IncomeProfile, _ predictor.BudgetPreferences, overallScore *float64) ([]predictor.Insight, error) {
			gotScore = overallScore
			gotProfile = profile
			return []predictor.Insight{{
				Kind:     "savings_opportunity",
				Title:    "Savings Opportunity",
				Priority: "high",
			}}, nil
		},
	}
	svc, transactions := newInsightService(t, fake)
	seedInsightHistory(t, transactions, "alice", 15)

	// The window holds one 3000.00 income; monthly income is a third of
	// window income.
	repo := transactions.storage
	if err := repo.InsertHealthScore(context.Background(), &core.HealthScore{
		Owner:        "alice",
		OverallScore: 58.5,
		SubScores:    map[string]core.SubScore{core.SubScoreSavingsRate: {Score: 40, Weight: 1}},
		ComputedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("insert health score: %v", err)
	}

	insights, err := svc.GenerateInsights(context.Background(), "alice")
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if gotScore == nil || *gotScore != 58.5 {
		t.Errorf("overallScore = %v, want 58.5", gotScore)
	}
	if gotProfile.MonthlyIncome != 1000 {
		t.Errorf("monthly income = %v, want 1000", gotProfile.MonthlyIncome)
	}
	if len(insights) != 1 || insights[0].Kind != "savings_opportunity" {
		t.Errorf("insights = %+v", insights)
	}
}

func TestInsightsWorkWithoutHealthScore(t *testing.T) {
	scoreSet := false
	fake := &predictor.Fake{
		GenerateInsightsFn: func(_ context.Context, _ []predictor.TransactionPoint, _ predictor.IncomeProfile, _ predictor.BudgetPreferences, overallScore *float64) ([]predictor.Insight, error) {
			scoreSet = overallScore != nil
			return nil, nil
		},
	}
	svc, transactions := newInsightService(t, fake)
	seedInsightHistory(t, transactions, "alice", 12)

	if _, err := svc.GenerateInsights(context.Background(), "alice"); err != nil {
		t.Fatalf("insights: %v", err)
	}
	if scoreSet {
		t.Error("overallScore set without a computed health score")
	}
}
