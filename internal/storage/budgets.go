package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finsight/internal/core"
)

// AdjustSpent moves a ledger row's spent counter by delta cents, creating
// the row lazily on first contribution. The single upsert statement is the
// serialization point for concurrent revert/reapply sequences: never read
// spent and write it back.
func (r *SQLiteRepository) AdjustSpent(ctx context.Context, owner, category string, month, year int, deltaCents int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, owner_id, category, month, year, budgeted_cents, spent_cents)
		VALUES (?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (owner_id, category, month, year)
		DO UPDATE SET spent_cents = spent_cents + excluded.spent_cents`,
		uuid.NewString(), owner, category, month, year, deltaCents,
	)
	if err != nil {
		return fmt.Errorf("adjust budget spent: %w", err)
	}
	return nil
}

// SetBudgeted assigns the budgeted amount for a ledger row without
// touching its spent counter, creating the row lazily.
func (r *SQLiteRepository) SetBudgeted(ctx context.Context, owner, category string, month, year int, budgetedCents int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, owner_id, category, month, year, budgeted_cents, spent_cents)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT (owner_id, category, month, year)
		DO UPDATE SET budgeted_cents = excluded.budgeted_cents`,
		uuid.NewString(), owner, category, month, year, budgetedCents,
	)
	if err != nil {
		return fmt.Errorf("set budgeted amount: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, owner, category string, month, year int) (*core.BudgetEntry, error) {
	e := core.BudgetEntry{Owner: owner, Category: category, Month: month, Year: year}
	err := r.db.QueryRowContext(ctx, `
		SELECT budgeted_cents, spent_cents FROM budgets
		WHERE owner_id = ? AND category = ? AND month = ? AND year = ?`,
		owner, category, month, year,
	).Scan(&e.Budgeted.Cents, &e.Spent.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: budget %s %d/%d", core.ErrNotFound, category, month, year)
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return &e, nil
}

// ListBudgets returns all ledger rows for an owner's month.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, owner string, month, year int) ([]core.BudgetEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, budgeted_cents, spent_cents FROM budgets
		WHERE owner_id = ? AND month = ? AND year = ?
		ORDER BY category`,
		owner, month, year)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var entries []core.BudgetEntry
	for rows.Next() {
		e := core.BudgetEntry{Owner: owner, Month: month, Year: year}
		if err := rows.Scan(&e.Category, &e.Budgeted.Cents, &e.Spent.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MonthTotals aggregates one month's income and expense totals and the
// transaction count, straight from the transaction log.
func (r *SQLiteRepository) MonthTotals(ctx context.Context, owner string, year, month int) (income, expenses core.Money, count int, err error) {
	from, to := monthRange(year, month)
	err = r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN direction = 'income' THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN direction = 'expense' THEN amount_cents ELSE 0 END), 0),
			COUNT(*)
		FROM transactions
		WHERE owner_id = ? AND occurred_on >= ? AND occurred_on <= ?`,
		owner, from, to,
	).Scan(&income.Cents, &expenses.Cents, &count)
	if err != nil {
		err = fmt.Errorf("month totals: %w", err)
	}
	return income, expenses, count, err
}

// CategoryExpenseSums aggregates one month's expense totals per category.
func (r *SQLiteRepository) CategoryExpenseSums(ctx context.Context, owner string, year, month int) (map[string]core.Money, error) {
	from, to := monthRange(year, month)
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, COALESCE(SUM(amount_cents), 0)
		FROM transactions
		WHERE owner_id = ? AND direction = 'expense' AND occurred_on >= ? AND occurred_on <= ?
		GROUP BY category`,
		owner, from, to)
	if err != nil {
		return nil, fmt.Errorf("category sums: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]core.Money)
	for rows.Next() {
		var category string
		var cents int64
		if err := rows.Scan(&category, &cents); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		sums[category] = core.Money{Cents: cents}
	}
	return sums, rows.Err()
}

// monthRange returns the inclusive [first, last] day of a month as ISO
// date strings.
func monthRange(year, month int) (from, to string) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start.Format(dateLayout), end.Format(dateLayout)
}
