package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"finsight/internal/core"
)

const wireDateLayout = "2006-01-02"

// Client talks JSON over HTTP to the prediction service. Every call is
// bounded by the configured timeout; any transport or non-2xx failure is
// reported as core.ErrPredictorUnavailable so callers can degrade.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

var (
	_ CategoryPredictor = (*Client)(nil)
	_ HealthPredictor   = (*Client)(nil)
	_ ForecastPredictor = (*Client)(nil)
	_ GoalPredictor     = (*Client)(nil)
	_ AnomalyDetector   = (*Client)(nil)
	_ InsightGenerator  = (*Client)(nil)
)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Wire types. The service speaks camelCase JSON with ISO dates; the
// structs below stay private and convert at the edge.
type (
	wireTransaction struct {
		Amount      float64 `json:"amount"`
		Type        string  `json:"type"`
		Category    string  `json:"category,omitempty"`
		Date        string  `json:"date"`
		Description string  `json:"description,omitempty"`
	}

	wireProfile struct {
		MonthlyIncome     float64            `json:"monthlyIncome"`
		Currency          string             `json:"currency"`
		BudgetPreferences map[string]float64 `json:"budgetPreferences,omitempty"`
	}

	categoryRequest struct {
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		Type        string  `json:"type"`
	}

	categoryResponse struct {
		Category     string  `json:"category"`
		NeedsVsWants string  `json:"needsVsWants"`
		Confidence   float64 `json:"confidence"`
		Reasoning    string  `json:"reasoning"`
	}

	healthRequest struct {
		Transactions []wireTransaction `json:"transactions"`
		Profile      wireProfile       `json:"profile"`
	}

	healthResponse struct {
		OverallScore    float64                  `json:"overallScore"`
		SubScores       map[string]core.SubScore `json:"subScores"`
		Explanation     string                   `json:"explanation"`
		Metrics         core.HealthMetrics       `json:"metrics"`
		Recommendations []string                 `json:"recommendations"`
	}

	forecastRequest struct {
		Transactions []wireTransaction `json:"transactions"`
		ForecastType string            `json:"forecastType"`
	}

	wirePrediction struct {
		Date            string  `json:"date"`
		PredictedAmount float64 `json:"predictedAmount"`
		LowerBound      float64 `json:"lowerBound"`
		UpperBound      float64 `json:"upperBound"`
		Confidence      float64 `json:"confidence"`
	}

	forecastResponse struct {
		Predictions   []wirePrediction `json:"predictions"`
		RiskIndicator string           `json:"riskIndicator"`
		RiskScore     float64          `json:"riskScore"`
		Metadata      struct {
			ModelVersion      string `json:"modelVersion"`
			TrainingDataRange struct {
				Start string `json:"start"`
				End   string `json:"end"`
			} `json:"trainingDataRange"`
			FeaturesUsed []string `json:"featuresUsed"`
		} `json:"metadata"`
	}

	goalsRequest struct {
		Transactions []wireTransaction `json:"transactions"`
		Profile      wireProfile       `json:"profile"`
	}

	wireGoal struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Type        string          `json:"type"`
		Category    string          `json:"category,omitempty"`
		TargetValue float64         `json:"targetValue"`
		Period      string          `json:"period"`
		StartDate   string          `json:"startDate"`
		EndDate     string          `json:"endDate"`
		Reasoning   string          `json:"reasoning"`
		Evidence    []core.Evidence `json:"evidence"`
	}

	goalsResponse struct {
		Goals []wireGoal `json:"goals"`
	}

	anomalyRequest struct {
		Transactions []wireTransaction `json:"transactions"`
	}

	wireAnomaly struct {
		TransactionIndex int     `json:"transactionIndex"`
		AnomalyScore     float64 `json:"anomalyScore"`
		Reason           string  `json:"reason"`
		Severity         string  `json:"severity"`
	}

	anomalyResponse struct {
		Anomalies      []wireAnomaly `json:"anomalies"`
		RiskLevel      string        `json:"riskLevel"`
		TotalAnomalies int           `json:"totalAnomalies"`
	}

	insightsRequest struct {
		Transactions []wireTransaction  `json:"transactions"`
		Profile      wireProfile        `json:"profile"`
		HealthScore  map[string]float64 `json:"healthScore,omitempty"`
	}

	wireInsightFact struct {
		Metric      string `json:"metric"`
		Value       any    `json:"value"`
		Explanation string `json:"explanation"`
	}

	wireInsight struct {
		Type       string            `json:"type"`
		Title      string            `json:"title"`
		Message    string            `json:"message"`
		Evidence   []wireInsightFact `json:"evidence"`
		Priority   string            `json:"priority"`
		Actionable bool              `json:"actionable"`
	}

	insightsResponse struct {
		Insights []wireInsight `json:"insights"`
	}
)

func (c *Client) PredictCategory(ctx context.Context, req CategoryRequest) (*CategoryPrediction, error) {
	var resp categoryResponse
	err := c.post(ctx, "/api/v1/predict/category", categoryRequest{
		Description: req.Description,
		Amount:      req.Amount,
		Type:        string(req.Direction),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &CategoryPrediction{
		Category:     resp.Category,
		NeedsVsWants: core.NeedsWants(resp.NeedsVsWants),
		Confidence:   resp.Confidence,
		Reasoning:    resp.Reasoning,
	}, nil
}

func (c *Client) Score(ctx context.Context, window []TransactionPoint, profile IncomeProfile, prefs BudgetPreferences) (*HealthResult, error) {
	req := healthRequest{
		Transactions: toWirePoints(window),
		Profile: wireProfile{
			MonthlyIncome:     profile.MonthlyIncome,
			Currency:          "USD",
			BudgetPreferences: budgetPrefsMap(prefs),
		},
	}

	var resp healthResponse
	if err := c.post(ctx, "/api/v1/health/score", req, &resp); err != nil {
		return nil, err
	}
	return &HealthResult{
		OverallScore:    resp.OverallScore,
		SubScores:       resp.SubScores,
		Metrics:         resp.Metrics,
		Explanation:     resp.Explanation,
		Recommendations: resp.Recommendations,
	}, nil
}

func (c *Client) Forecast(ctx context.Context, history []SignedPoint, horizon core.Horizon) (*ForecastResult, error) {
	req := forecastRequest{ForecastType: string(horizon)}
	for _, p := range history {
		direction := core.DirectionIncome
		amount := p.Amount
		if amount < 0 {
			direction = core.DirectionExpense
			amount = -amount
		}
		req.Transactions = append(req.Transactions, wireTransaction{
			Amount: amount,
			Type:   string(direction),
			Date:   p.Date.Format(wireDateLayout),
		})
	}

	var resp forecastResponse
	if err := c.post(ctx, "/api/v1/forecast/generate", req, &resp); err != nil {
		return nil, err
	}

	result := &ForecastResult{
		RiskIndicator: core.RiskLevel(resp.RiskIndicator),
		RiskScore:     resp.RiskScore,
		Metadata: core.ForecastMetadata{
			ModelVersion: resp.Metadata.ModelVersion,
			FeaturesUsed: resp.Metadata.FeaturesUsed,
		},
	}
	var err error
	if result.Metadata.TrainingStart, err = parseWireDate(resp.Metadata.TrainingDataRange.Start); err != nil {
		return nil, err
	}
	if result.Metadata.TrainingEnd, err = parseWireDate(resp.Metadata.TrainingDataRange.End); err != nil {
		return nil, err
	}
	for _, p := range resp.Predictions {
		date, err := parseWireDate(p.Date)
		if err != nil {
			return nil, err
		}
		result.Predictions = append(result.Predictions, core.Prediction{
			Date:            date,
			PredictedAmount: p.PredictedAmount,
			LowerBound:      p.LowerBound,
			UpperBound:      p.UpperBound,
			Confidence:      p.Confidence,
		})
	}
	return result, nil
}

func (c *Client) Recommend(ctx context.Context, history []TransactionPoint, profile IncomeProfile) ([]GoalProposal, error) {
	req := goalsRequest{
		Transactions: toWirePoints(history),
		Profile: wireProfile{
			MonthlyIncome: profile.MonthlyIncome,
			Currency:      "USD",
		},
	}

	var resp goalsResponse
	if err := c.post(ctx, "/api/v1/goals/recommend", req, &resp); err != nil {
		return nil, err
	}

	proposals := make([]GoalProposal, 0, len(resp.Goals))
	for _, g := range resp.Goals {
		start, err := parseWireDate(g.StartDate)
		if err != nil {
			return nil, err
		}
		end, err := parseWireDate(g.EndDate)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, GoalProposal{
			Title:       g.Title,
			Description: g.Description,
			Type:        core.GoalType(g.Type),
			Category:    g.Category,
			TargetValue: g.TargetValue,
			Period:      core.GoalPeriod(g.Period),
			StartDate:   start,
			EndDate:     end,
			Reasoning:   g.Reasoning,
			Evidence:    g.Evidence,
		})
	}
	return proposals, nil
}

func (c *Client) DetectAnomalies(ctx context.Context, window []TransactionPoint) (*AnomalyReport, error) {
	var resp anomalyResponse
	if err := c.post(ctx, "/api/v1/anomaly/detect", anomalyRequest{Transactions: toWirePoints(window)}, &resp); err != nil {
		return nil, err
	}

	report := &AnomalyReport{
		RiskLevel: core.RiskLevel(resp.RiskLevel),
		Total:     resp.TotalAnomalies,
	}
	for _, a := range resp.Anomalies {
		report.Anomalies = append(report.Anomalies, Anomaly{
			TransactionIndex: a.TransactionIndex,
			Score:            a.AnomalyScore,
			Reason:           a.Reason,
			Severity:         a.Severity,
		})
	}
	return report, nil
}

func (c *Client) GenerateInsights(ctx context.Context, window []TransactionPoint, profile IncomeProfile, prefs BudgetPreferences, overallScore *float64) ([]Insight, error) {
	req := insightsRequest{
		Transactions: toWirePoints(window),
		Profile: wireProfile{
			MonthlyIncome:     profile.MonthlyIncome,
			Currency:          "USD",
			BudgetPreferences: budgetPrefsMap(prefs),
		},
	}
	if overallScore != nil {
		req.HealthScore = map[string]float64{"overallScore": *overallScore}
	}

	var resp insightsResponse
	if err := c.post(ctx, "/api/v1/insights/generate", req, &resp); err != nil {
		return nil, err
	}

	insights := make([]Insight, 0, len(resp.Insights))
	for _, in := range resp.Insights {
		insight := Insight{
			Kind:       in.Type,
			Title:      in.Title,
			Message:    in.Message,
			Priority:   in.Priority,
			Actionable: in.Actionable,
		}
		for _, f := range in.Evidence {
			insight.Evidence = append(insight.Evidence, InsightFact{
				Metric:      f.Metric,
				Value:       f.Value,
				Explanation: f.Explanation,
			})
		}
		insights = append(insights, insight)
	}
	return insights, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrPredictorUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: status %d: %s", core.ErrPredictorUnavailable, path, resp.StatusCode, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", core.ErrPredictorUnavailable, path, err)
	}
	return nil
}

func toWirePoints(points []TransactionPoint) []wireTransaction {
	wire := make([]wireTransaction, 0, len(points))
	for _, p := range points {
		wire = append(wire, wireTransaction{
			Amount:   p.Amount,
			Type:     string(p.Direction),
			Category: p.Category,
			Date:     p.Date.Format(wireDateLayout),
		})
	}
	return wire
}

func budgetPrefsMap(prefs BudgetPreferences) map[string]float64 {
	m := make(map[string]float64, len(prefs.CategoryBudgets)+1)
	if prefs.SavingsTargetPct > 0 {
		m["savingsTarget"] = prefs.SavingsTargetPct
	}
	for category, amount := range prefs.CategoryBudgets {
		m[category] = amount
	}
	return m
}

func parseWireDate(s string) (time.Time, error) {
	t, err := time.Parse(wireDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q: %v", core.ErrPredictorUnavailable, s, err)
	}
	return t, nil
}
