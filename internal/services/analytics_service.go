package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"finsight/internal/cache"
	"finsight/internal/core"
	"finsight/internal/storage"
)

// AnalyticsService serves the derived monthly reads. The cache is
// advisory: a nil cache or a miss recomputes from storage and still
// returns a correct result.
type AnalyticsService struct {
	storage *storage.SQLiteRepository
	cache   *cache.Aggregates
}

func NewAnalyticsService(storage *storage.SQLiteRepository, cache *cache.Aggregates) *AnalyticsService {
	return &AnalyticsService{storage: storage, cache: cache}
}

// MonthlySummary returns income, expenses, savings and savings rate for
// one month, computed from the transaction log.
func (s *AnalyticsService) MonthlySummary(ctx context.Context, owner string, year, month int) (core.MonthlySummary, error) {
	if err := validateMonth(year, month); err != nil {
		return core.MonthlySummary{}, err
	}

	if s.cache != nil {
		if summary, ok := s.cache.GetSummary(owner, year, month); ok {
			return summary, nil
		}
	}

	income, expenses, count, err := s.storage.MonthTotals(ctx, owner, year, month)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("monthly summary: %w", err)
	}
	summary := core.NewMonthlySummary(year, month, income, expenses, count)

	if s.cache != nil {
		s.cache.SetSummary(owner, summary)
	}
	return summary, nil
}

// CategoryBreakdown returns per-category expense totals for one month,
// joined with the ledger's budgeted amounts. Categories with a budget but
// no spending are included with zero spent.
func (s *AnalyticsService) CategoryBreakdown(ctx context.Context, owner string, year, month int) (core.CategoryBreakdown, error) {
	if err := validateMonth(year, month); err != nil {
		return core.CategoryBreakdown{}, err
	}

	if s.cache != nil {
		if breakdown, ok := s.cache.GetBreakdown(owner, year, month); ok {
			return breakdown, nil
		}
	}

	spent, err := s.storage.CategoryExpenseSums(ctx, owner, year, month)
	if err != nil {
		return core.CategoryBreakdown{}, fmt.Errorf("category breakdown: %w", err)
	}
	budgets, err := s.storage.ListBudgets(ctx, owner, month, year)
	if err != nil {
		return core.CategoryBreakdown{}, fmt.Errorf("category breakdown: %w", err)
	}

	budgeted := make(map[string]core.Money, len(budgets))
	for _, b := range budgets {
		budgeted[b.Category] = b.Budgeted
	}

	seen := make(map[string]bool, len(spent))
	breakdown := core.CategoryBreakdown{Year: year, Month: month}
	for category, amount := range spent {
		breakdown.Categories = append(breakdown.Categories, newCategorySpend(category, amount, budgeted[category]))
		seen[category] = true
	}
	for category, amount := range budgeted {
		if !seen[category] && amount.Cents > 0 {
			breakdown.Categories = append(breakdown.Categories, newCategorySpend(category, core.Money{}, amount))
		}
	}
	sort.Slice(breakdown.Categories, func(i, j int) bool {
		return breakdown.Categories[i].Category < breakdown.Categories[j].Category
	})

	if s.cache != nil {
		s.cache.SetBreakdown(owner, breakdown)
	}
	return breakdown, nil
}

// SetBudget assigns the budgeted amount for (category, month, year),
// creating the ledger row if needed and leaving spent untouched.
func (s *AnalyticsService) SetBudget(ctx context.Context, owner, category string, month, year int, amount core.Money) error {
	if err := validateMonth(year, month); err != nil {
		return err
	}
	if category == "" {
		return fmt.Errorf("%w: empty category", core.ErrValidation)
	}
	if amount.Cents < 0 {
		return fmt.Errorf("%w: negative budget amount", core.ErrValidation)
	}

	if err := s.storage.EnsureCategory(ctx, owner, category, core.DirectionExpense); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	if err := s.storage.SetBudgeted(ctx, owner, category, month, year, amount.Cents); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(owner, year, month)
	}

	slog.InfoContext(ctx, "Budget set",
		"owner_id", owner,
		"category", category,
		"month", month,
		"year", year,
		"budgeted_cents", amount.Cents)
	return nil
}

func newCategorySpend(category string, spent, budgeted core.Money) core.CategorySpend {
	cs := core.CategorySpend{Category: category, Spent: spent, Budgeted: budgeted}
	if budgeted.Cents > 0 {
		cs.Utilization = float64(spent.Cents) / float64(budgeted.Cents) * 100
	}
	return cs
}

func validateMonth(year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d out of range", core.ErrValidation, month)
	}
	if year < 1970 || year > 9999 {
		return fmt.Errorf("%w: year %d out of range", core.ErrValidation, year)
	}
	return nil
}
