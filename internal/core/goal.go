package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	GoalSpendingCap   GoalType = "spending_cap"
	GoalSavingsTarget GoalType = "savings_target"
	GoalCategoryLimit GoalType = "category_limit"
	GoalCustom        GoalType = "custom"

	GoalActive    GoalStatus = "active"
	GoalPaused    GoalStatus = "paused"
	GoalCompleted GoalStatus = "completed"
	GoalFailed    GoalStatus = "failed"

	PeriodDaily   GoalPeriod = "daily"
	PeriodWeekly  GoalPeriod = "weekly"
	PeriodMonthly GoalPeriod = "monthly"
	PeriodYearly  GoalPeriod = "yearly"

	ProvenanceUser   Provenance = "user"
	ProvenanceSystem Provenance = "system_recommended"
)

type (
	GoalType   string
	GoalStatus string
	GoalPeriod string

	// Provenance records whether a goal came from the user or from
	// automated recommendation.
	Provenance string

	// Evidence is one data point backing a system-recommended goal,
	// copied verbatim from the goal predictor.
	Evidence struct {
		Metric      string  `json:"metric"`
		Value       float64 `json:"value"`
		Explanation string  `json:"explanation"`
	}

	// Goal is a user- or system-proposed target over a date window.
	Goal struct {
		ID           string
		Owner        string
		Title        string
		Description  string
		Type         GoalType
		Category     string // set for category_limit goals
		TargetValue  Money
		CurrentValue Money
		Period       GoalPeriod
		StartDate    time.Time
		EndDate      time.Time
		Status       GoalStatus
		Provenance   Provenance
		Reasoning    string
		Evidence     []Evidence
		Progress     float64 // 0-100
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}
)

func (t GoalType) Valid() bool {
	switch t {
	case GoalSpendingCap, GoalSavingsTarget, GoalCategoryLimit, GoalCustom:
		return true
	}
	return false
}

func (p GoalPeriod) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Owner) == "" {
		return fmt.Errorf("%w: missing owner", ErrValidation)
	}
	if strings.TrimSpace(g.Title) == "" {
		return fmt.Errorf("%w: empty title", ErrValidation)
	}
	if !g.Type.Valid() {
		return fmt.Errorf("%w: invalid goal type %q", ErrValidation, g.Type)
	}
	if g.Type == GoalCategoryLimit && strings.TrimSpace(g.Category) == "" {
		return fmt.Errorf("%w: category_limit goal needs a category", ErrValidation)
	}
	if g.TargetValue.Cents <= 0 {
		return fmt.Errorf("%w: target value must be positive", ErrValidation)
	}
	if !g.Period.Valid() {
		return fmt.Errorf("%w: invalid period %q", ErrValidation, g.Period)
	}
	if g.StartDate.IsZero() || g.EndDate.IsZero() {
		return fmt.Errorf("%w: goal window is required", ErrValidation)
	}
	if g.EndDate.Before(g.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrValidation)
	}
	return nil
}

// ProgressFor computes the clamped progress percentage for a current value
// against a target. Always within [0, 100], even when current > target.
func ProgressFor(current, target Money) float64 {
	if target.Cents <= 0 {
		return 0
	}
	p := float64(current.Cents) / float64(target.Cents) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// CanTransition reports whether an externally driven status change is
// allowed. The engine's only automatic transition (active -> completed)
// happens during progress updates; completed and failed are terminal.
func (g Goal) CanTransition(to GoalStatus) bool {
	switch g.Status {
	case GoalActive:
		return to == GoalPaused || to == GoalFailed || to == GoalCompleted
	case GoalPaused:
		return to == GoalActive
	}
	return false
}
