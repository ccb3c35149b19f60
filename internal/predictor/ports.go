// Package predictor defines the ports to the external ML service and an
// HTTP client for them. The model internals are opaque to this core; only
// the contracts below matter.
package predictor

import (
	"context"
	"time"

	"finsight/internal/core"
)

type (
	// CategoryRequest describes one transaction for categorization.
	CategoryRequest struct {
		Description   string
		Amount        float64
		Direction     core.Direction
		PaymentMethod string
	}

	// CategoryPrediction is the predictor's categorization result.
	CategoryPrediction struct {
		Category     string
		NeedsVsWants core.NeedsWants
		Confidence   float64
		Reasoning    string
	}

	// TransactionPoint is one element of a model input window.
	TransactionPoint struct {
		Date      time.Time
		Amount    float64
		Direction core.Direction
		Category  string
	}

	// SignedPoint is a transaction reduced to a signed cash-flow amount:
	// positive income, negative expense.
	SignedPoint struct {
		Date   time.Time
		Amount float64
	}

	// IncomeProfile summarizes the owner's income for model input.
	IncomeProfile struct {
		MonthlyIncome float64
	}

	// BudgetPreferences carries the owner's budget settings for model input.
	BudgetPreferences struct {
		SavingsTargetPct float64
		CategoryBudgets  map[string]float64
	}

	// HealthResult is the health predictor's scored response.
	HealthResult struct {
		OverallScore    float64
		SubScores       map[string]core.SubScore
		Metrics         core.HealthMetrics
		Explanation     string
		Recommendations []string
	}

	// ForecastResult is the forecast predictor's response.
	ForecastResult struct {
		Predictions   []core.Prediction
		RiskIndicator core.RiskLevel
		RiskScore     float64
		Metadata      core.ForecastMetadata
	}

	// GoalProposal is one recommended goal. Reasoning and evidence are
	// copied verbatim onto the created goal.
	GoalProposal struct {
		Title       string
		Description string
		Type        core.GoalType
		Category    string
		TargetValue float64
		Period      core.GoalPeriod
		StartDate   time.Time
		EndDate     time.Time
		Reasoning   string
		Evidence    []core.Evidence
	}

	// Anomaly flags one transaction of the submitted window by its index.
	Anomaly struct {
		TransactionIndex int
		Score            float64
		Reason           string
		Severity         string // low, medium, high
	}

	// AnomalyReport is the anomaly detector's result over a window.
	AnomalyReport struct {
		Anomalies []Anomaly
		RiskLevel core.RiskLevel
		Total     int
	}

	// InsightFact is one metric backing an insight. Value is a number or a
	// string depending on the metric.
	InsightFact struct {
		Metric      string
		Value       any
		Explanation string
	}

	// Insight is one explainable, evidence-backed observation.
	Insight struct {
		Kind       string
		Title      string
		Message    string
		Evidence   []InsightFact
		Priority   string
		Actionable bool
	}
)

// Ports consumed by the services. Callers bound each call with a context
// deadline; implementations must respect it.
type (
	CategoryPredictor interface {
		PredictCategory(ctx context.Context, req CategoryRequest) (*CategoryPrediction, error)
	}

	HealthPredictor interface {
		Score(ctx context.Context, window []TransactionPoint, profile IncomeProfile, prefs BudgetPreferences) (*HealthResult, error)
	}

	ForecastPredictor interface {
		Forecast(ctx context.Context, history []SignedPoint, horizon core.Horizon) (*ForecastResult, error)
	}

	GoalPredictor interface {
		Recommend(ctx context.Context, history []TransactionPoint, profile IncomeProfile) ([]GoalProposal, error)
	}

	AnomalyDetector interface {
		DetectAnomalies(ctx context.Context, window []TransactionPoint) (*AnomalyReport, error)
	}

	InsightGenerator interface {
		// overallScore is the latest health score when one exists, nil
		// otherwise.
		GenerateInsights(ctx context.Context, window []TransactionPoint, profile IncomeProfile, prefs BudgetPreferences, overallScore *float64) ([]Insight, error)
	}
)
