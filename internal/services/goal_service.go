package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finsight/internal/core"
	"finsight/internal/predictor"
	"finsight/internal/storage"
)

const (
	// recommendationWindowDays and recommendationMinTransactions gate goal
	// recommendation: below the floor the result is empty, not an error.
	recommendationWindowDays      = 60
	recommendationMinTransactions = 10
)

// GoalService owns the goal lifecycle: CRUD for user goals, the progress
// engine, and predictor-backed recommendations.
type GoalService struct {
	storage   *storage.SQLiteRepository
	predictor predictor.GoalPredictor
}

func NewGoalService(storage *storage.SQLiteRepository, goalPredictor predictor.GoalPredictor) *GoalService {
	return &GoalService{storage: storage, predictor: goalPredictor}
}

func (s *GoalService) Create(ctx context.Context, g *core.Goal) error {
	if g.Status == "" {
		g.Status = core.GoalActive
	}
	if g.Provenance == "" {
		g.Provenance = core.ProvenanceUser
	}
	if err := g.Validate(); err != nil {
		return err
	}
	return s.storage.CreateGoal(ctx, g)
}

func (s *GoalService) Get(ctx context.Context, owner, id string) (*core.Goal, error) {
	return s.storage.GetGoal(ctx, owner, id)
}

// List returns the owner's goals, optionally filtered by status ("" means
// all).
func (s *GoalService) List(ctx context.Context, owner string, status core.GoalStatus) ([]core.Goal, error) {
	return s.storage.ListGoals(ctx, owner, status)
}

// Update replaces a goal's definition. Status changes go through
// SetStatus; progress recomputation through UpdateProgress.
func (s *GoalService) Update(ctx context.Context, g *core.Goal) error {
	existing, err := s.storage.GetGoal(ctx, g.Owner, g.ID)
	if err != nil {
		return err
	}
	if g.Status != "" && g.Status != existing.Status {
		return fmt.Errorf("%w: status changes go through SetStatus", core.ErrValidation)
	}

	g.Status = existing.Status
	g.Provenance = existing.Provenance
	g.CreatedAt = existing.CreatedAt
	if err := g.Validate(); err != nil {
		return err
	}
	return s.storage.UpdateGoal(ctx, g)
}

func (s *GoalService) Delete(ctx context.Context, owner, id string) error {
	return s.storage.DeleteGoal(ctx, owner, id)
}

// SetStatus applies an externally driven transition: pause/resume, or
// marking a goal failed or completed by hand. Terminal states and other
// disallowed moves are rejected.
func (s *GoalService) SetStatus(ctx context.Context, owner, id string, status core.GoalStatus) (*core.Goal, error) {
	g, err := s.storage.GetGoal(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if g.Status == status {
		return g, nil
	}
	if !g.CanTransition(status) {
		return nil, fmt.Errorf("%w: cannot transition goal from %s to %s", core.ErrValidation, g.Status, status)
	}

	g.Status = status
	if err := s.storage.UpdateGoal(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// UpdateProgress recomputes the goal's current value over its window from
// the transaction log and re-derives the clamped progress percentage.
// Reaching 100 while active completes the goal; that transition is one-way
// and the only one this engine makes on its own. Custom goals are left to
// caller-supplied evidence and never recomputed. Idempotent: repeated calls
// without intervening ledger changes yield identical state.
func (s *GoalService) UpdateProgress(ctx context.Context, owner, id string) (*core.Goal, error) {
	g, err := s.storage.GetGoal(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if g.Type == core.GoalCustom {
		return g, nil
	}

	current, err := s.currentValue(ctx, g)
	if err != nil {
		return nil, err
	}

	g.CurrentValue = current
	g.Progress = core.ProgressFor(current, g.TargetValue)
	if g.Status == core.GoalActive && g.Progress >= 100 {
		g.Status = core.GoalCompleted
	}

	if err := s.storage.UpdateGoal(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GoalService) currentValue(ctx context.Context, g *core.Goal) (core.Money, error) {
	switch g.Type {
	case core.GoalSpendingCap:
		return s.storage.SumByDirection(ctx, g.Owner, core.DirectionExpense, "", g.StartDate, g.EndDate)
	case core.GoalCategoryLimit:
		return s.storage.SumByDirection(ctx, g.Owner, core.DirectionExpense, g.Category, g.StartDate, g.EndDate)
	case core.GoalSavingsTarget:
		income, err := s.storage.SumByDirection(ctx, g.Owner, core.DirectionIncome, "", g.StartDate, g.EndDate)
		if err != nil {
			return core.Money{}, err
		}
		expenses, err := s.storage.SumByDirection(ctx, g.Owner, core.DirectionExpense, "", g.StartDate, g.EndDate)
		if err != nil {
			return core.Money{}, err
		}
		savings := income.Cents - expenses.Cents
		if savings < 0 {
			savings = 0
		}
		return core.Money{Cents: savings}, nil
	}
	return core.Money{}, fmt.Errorf("%w: no progress rule for goal type %q", core.ErrValidation, g.Type)
}

// GenerateRecommendations asks the goal predictor for new goals based on
// the trailing 60 days. Fewer than 10 transactions in that window, or a
// predictor failure, yields an empty set rather than an error.
func (s *GoalService) GenerateRecommendations(ctx context.Context, owner string) ([]core.Goal, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -recommendationWindowDays)

	window, err := s.storage.TransactionsInWindow(ctx, owner, from, now)
	if err != nil {
		return nil, fmt.Errorf("read recommendation window: %w", err)
	}
	if len(window) < recommendationMinTransactions {
		slog.InfoContext(ctx, "Not enough history for goal recommendations",
			"owner_id", owner,
			"transactions", len(window),
			"required", recommendationMinTransactions)
		return nil, nil
	}

	history := make([]predictor.TransactionPoint, 0, len(window))
	var incomeCents int64
	for _, t := range window {
		history = append(history, predictor.TransactionPoint{
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
		MonthlyIncome: core.Money{Cents: incomeCents / 2}.Units(),
	}

	proposals, err := s.predictor.Recommend(ctx, history, profile)
	if err != nil {
		slog.WarnContext(ctx, "Goal recommendation failed, returning none",
			"owner_id", owner,
			"error", err)
		return nil, nil
	}

	goals := make([]core.Goal, 0, len(proposals))
	for _, p := range proposals {
		g := core.Goal{
			Owner:       owner,
			Title:       p.Title,
			Description: p.Description,
			Type:        p.Type,
			Category:    p.Category,
			TargetValue: core.MoneyFromUnits(p.TargetValue),
			Period:      p.Period,
			StartDate:   p.StartDate,
			EndDate:     p.EndDate,
			Status:      core.GoalActive,
			Provenance:  core.ProvenanceSystem,
			Reasoning:   p.Reasoning,
			Evidence:    p.Evidence,
		}
		if err := g.Validate(); err != nil {
			slog.WarnContext(ctx, "Skipping invalid recommended goal",
				"owner_id", owner,
				"title", p.Title,
				"error", err)
			continue
		}
		if err := s.storage.CreateGoal(ctx, &g); err != nil {
			return goals, fmt.Errorf("persist recommended goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, nil
}
