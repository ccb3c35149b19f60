package core

import "time"

// Sub-score names produced by the health predictor. The weights travel
// with the predictor response; these constants only name the keys.
const (
	SubScoreSavingsRate        = "savingsRate"
	SubScoreSpendingVolatility = "spendingVolatility"
	SubScoreIncomeExpenseRatio = "incomeToExpenseRatio"
	SubScoreBudgetAdherence    = "budgetAdherence"
	SubScoreAnomaly            = "anomalyScore"
)

type (
	// SubScore is one weighted component of a health score. Weights over
	// all sub-scores of a record sum to 1.0.
	SubScore struct {
		Score  float64 `json:"score"`
		Weight float64 `json:"weight"`
	}

	// HealthMetrics is the metrics snapshot attached to a health score,
	// in major currency units as reported by the predictor.
	HealthMetrics struct {
		TotalIncome       float64 `json:"totalIncome"`
		TotalExpenses     float64 `json:"totalExpenses"`
		Savings           float64 `json:"savings"`
		SavingsRate       float64 `json:"savingsRate"`
		AvgDailySpending  float64 `json:"avgDailySpending"`
		SpendingStdDev    float64 `json:"spendingStdDev"`
		BudgetUtilization float64 `json:"budgetUtilization"`
		AnomalyCount      int     `json:"anomalyCount"`
	}

	// HealthScore is a dated, append-only snapshot. One record per
	// computation; "latest" is the most recent by ComputedAt.
	HealthScore struct {
		ID              string
		Owner           string
		OverallScore    float64 // 0-100
		SubScores       map[string]SubScore
		Explanation     string
		Metrics         HealthMetrics
		Recommendations []string
		ComputedAt      time.Time
	}
)
