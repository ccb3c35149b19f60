package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finsight/internal/core"
)

// Default per-owner category directory, matching the names the category
// predictor can emit. Seeded lazily so a predicted category always has a
// row to reference.
var defaultCategories = []struct {
	Name      string
	Direction core.Direction
}{
	{"Food & Dining", core.DirectionExpense},
	{"Rent & Utilities", core.DirectionExpense},
	{"Transportation", core.DirectionExpense},
	{"Shopping", core.DirectionExpense},
	{"Entertainment", core.DirectionExpense},
	{"Healthcare", core.DirectionExpense},
	{"Education", core.DirectionExpense},
	{"Travel", core.DirectionExpense},
	{"Bills & Fees", core.DirectionExpense},
	{core.DefaultExpenseCategory, core.DirectionExpense},
	{"Salary", core.DirectionIncome},
	{"Freelance", core.DirectionIncome},
	{"Investment", core.DirectionIncome},
	{core.DefaultIncomeCategory, core.DirectionIncome},
}

// CategoryExists reports whether the owner has a category with this name.
func (r *SQLiteRepository) CategoryExists(ctx context.Context, owner, name string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE owner_id = ? AND name = ?`,
		owner, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("category exists: %w", err)
	}
	return n > 0, nil
}

// EnsureCategory creates the category if the owner does not have it yet.
func (r *SQLiteRepository) EnsureCategory(ctx context.Context, owner, name string, direction core.Direction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, direction, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, name) DO NOTHING`,
		uuid.NewString(), owner, name, string(direction), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("ensure category: %w", err)
	}
	return nil
}

// SeedDefaultCategories installs the default directory for an owner.
// Existing rows are left alone.
func (r *SQLiteRepository) SeedDefaultCategories(ctx context.Context, owner string) error {
	for _, c := range defaultCategories {
		if err := r.EnsureCategory(ctx, owner, c.Name, c.Direction); err != nil {
			return err
		}
	}
	return nil
}

// ListCategories returns the owner's category names, optionally filtered
// by direction ("" means all).
func (r *SQLiteRepository) ListCategories(ctx context.Context, owner string, direction core.Direction) ([]string, error) {
	query := `SELECT name FROM categories WHERE owner_id = ?`
	args := []any{owner}
	if direction != "" {
		query += ` AND direction = ?`
		args = append(args, string(direction))
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
