package predictor

import (
	"context"

	"finsight/internal/core"
)

// Fake is an in-process predictor for tests. Unset funcs return an
// unavailable error, matching a down service.
type Fake struct {
	PredictCategoryFn  func(ctx context.Context, req CategoryRequest) (*CategoryPrediction, error)
	ScoreFn            func(ctx context.Context, window []TransactionPoint, profile IncomeProfile, prefs BudgetPreferences) (*HealthResult, error)
	ForecastFn         func(ctx context.Context, history []SignedPoint, horizon core.Horizon) (*ForecastResult, error)
	RecommendFn        func(ctx context.Context, history []TransactionPoint, profile IncomeProfile) ([]GoalProposal, error)
	DetectAnomaliesFn  func(ctx context.Context, window []TransactionPoint) (*AnomalyReport, error)
	GenerateInsightsFn func(ctx context.Context, window []TransactionPoint, profile IncomeProfile, prefs BudgetPreferences, overallScore *float64) ([]Insight, error)
}

var (
	_ CategoryPredictor = (*Fake)(nil)
	_ HealthPredictor   = (*Fake)(nil)
	_ ForecastPredictor = (*Fake)(nil)
	_ GoalPredictor     = (*Fake)(nil)
	_ AnomalyDetector   = (*Fake)(nil)
	_ InsightGenerator  = (*Fake)(nil)
)

func (f *Fake) PredictCategory(ctx context.Context, req CategoryRequest) (*CategoryPrediction, error) {
	if f.PredictCategoryFn == nil {
		return nil, core.ErrPredictorUnavailable
	}
	return f.PredictCategoryFn(ctx, req)
}

func (f *Fake) Score(ctx context.Context, window []TransactionPoint, profile IncomeProfile, prefs BudgetPreferences) (*HealthResult, error) {
	if f.ScoreFn == nil {
		return nil, core.ErrPredictorUnavailable
	}
	return f.ScoreFn(ctx, window, profile, prefs)
}

func (f *Fake) Forecast(ctx context.Context, history []SignedPoint, horizon core.Horizon) (*ForecastResult, error) {
	if f.ForecastFn == nil {
		return nil, core.ErrPredictorUnavailable
	}
	return f.ForecastFn(ctx, history, horizon)
}

func (f *Fake) Recommend(ctx context.Context, history []TransactionPoint, profile IncomeProfile) ([]GoalProposal, error) {
	if f.RecommendFn == nil {
		return nil, core.ErrPredictorUnavailable
	}
	return f.RecommendFn(ctx, history, profile)
}

func (f *Fake) DetectAnomalies(ctx context.Context, window []TransactionPoint) (*AnomalyReport, error) {
	if f.DetectAnomaliesFn == nil {
		return nil, core.ErrPredictorUnavailable
	}
	return f.DetectAnomaliesFn(ctx, window)
}

func (f *Fake) GenerateInsights(ctx context.Context, window []TransactionPoint, profile IncomeProfile, prefs BudgetPreferences, overallScore *float64) ([]Insight, error) {
	if f.GenerateInsightsFn == nil {
		return nil, core.ErrPredictorUnavailable
	}
	return f.GenerateInsightsFn(ctx, window, profile, prefs, overallScore)
}
