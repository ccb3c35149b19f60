package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finsight/internal/core"
)

const goalColumns = `id, owner_id, title, description, goal_type, category,
	target_cents, current_cents, period, start_date, end_date, status,
	provenance, reasoning, evidence, progress, created_at, updated_at`

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g *core.Goal) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	evidence, err := json.Marshal(g.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Owner, g.Title, g.Description, string(g.Type), g.Category,
		g.TargetValue.Cents, g.CurrentValue.Cents, string(g.Period),
		g.StartDate.Format(dateLayout), g.EndDate.Format(dateLayout),
		string(g.Status), string(g.Provenance), g.Reasoning, string(evidence),
		g.Progress, g.CreatedAt.Format(timeLayout), g.UpdatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, owner, id string) (*core.Goal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND owner_id = ?`, id, owner)

	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: goal %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g *core.Goal) error {
	g.UpdatedAt = time.Now().UTC()

	evidence, err := json.Marshal(g.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE goals SET
			title = ?, description = ?, goal_type = ?, category = ?,
			target_cents = ?, current_cents = ?, period = ?, start_date = ?,
			end_date = ?, status = ?, reasoning = ?, evidence = ?, progress = ?,
			updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		g.Title, g.Description, string(g.Type), g.Category,
		g.TargetValue.Cents, g.CurrentValue.Cents, string(g.Period),
		g.StartDate.Format(dateLayout), g.EndDate.Format(dateLayout),
		string(g.Status), g.Reasoning, string(evidence), g.Progress,
		g.UpdatedAt.Format(timeLayout), g.ID, g.Owner)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: goal %s", core.ErrNotFound, g.ID)
	}
	return nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM goals WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: goal %s", core.ErrNotFound, id)
	}
	return nil
}

// ListGoals returns the owner's goals, optionally filtered by status
// ("" means all), newest first.
func (r *SQLiteRepository) ListGoals(ctx context.Context, owner string, status core.GoalStatus) ([]core.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE owner_id = ?`
	args := []any{owner}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	return r.queryGoals(ctx, query, args...)
}

// ListActiveGoals returns every active goal across all owners, for the
// progress sweep.
func (r *SQLiteRepository) ListActiveGoals(ctx context.Context) ([]core.Goal, error) {
	return r.queryGoals(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE status = ? ORDER BY owner_id, created_at`,
		string(core.GoalActive))
}

func (r *SQLiteRepository) queryGoals(ctx context.Context, query string, args ...any) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func scanGoal(row rowScanner) (*core.Goal, error) {
	var (
		g                              core.Goal
		goalType, period, status, prov string
		startDate, endDate             string
		evidence, createdAt, updatedAt string
	)
	err := row.Scan(
		&g.ID, &g.Owner, &g.Title, &g.Description, &goalType, &g.Category,
		&g.TargetValue.Cents, &g.CurrentValue.Cents, &period, &startDate,
		&endDate, &status, &prov, &g.Reasoning, &evidence, &g.Progress,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.Type = core.GoalType(goalType)
	g.Period = core.GoalPeriod(period)
	g.Status = core.GoalStatus(status)
	g.Provenance = core.Provenance(prov)

	if g.StartDate, err = time.Parse(dateLayout, startDate); err != nil {
		return nil, fmt.Errorf("parse start_date: %w", err)
	}
	if g.EndDate, err = time.Parse(dateLayout, endDate); err != nil {
		return nil, fmt.Errorf("parse end_date: %w", err)
	}
	if err := json.Unmarshal([]byte(evidence), &g.Evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	if g.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if g.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &g, nil
}
