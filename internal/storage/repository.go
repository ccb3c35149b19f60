package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"finsight/internal/core"

	_ "modernc.org/sqlite"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339Nano
)

// SQLiteRepository is the durable ledger store: transactions, budget
// counters, append-only health/forecast records, goals and the category
// directory, all in one sqlite database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single connection: SQLite serializes writers anyway, and one
	// connection avoids busy errors under concurrent ledger adjustments.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// TransactionFilter narrows ListTransactions. Zero values mean "no
// filter"; an empty filter returns all of the owner's transactions.
type TransactionFilter struct {
	Direction core.Direction
	Category  string
	From      time.Time // inclusive
	To        time.Time // inclusive
	Page      int       // 1-based, defaults to 1
	PageSize  int       // defaults to 50
}

func (f TransactionFilter) normalized() TransactionFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 50
	}
	return f
}

const transactionColumns = `id, owner_id, direction, amount_cents, description, category,
	category_source, needs_vs_wants, prediction_confidence, payment_method,
	occurred_on, notes, tags, created_at, updated_at`

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Owner, string(t.Direction), t.Amount.Cents, t.Description, t.Category,
		string(t.CategorySource), string(t.NeedsVsWants), t.Confidence, t.PaymentMethod,
		t.OccurredOn.Format(dateLayout), t.Notes, string(tags),
		t.CreatedAt.Format(timeLayout), t.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"owner_id", t.Owner,
		"direction", t.Direction,
		"amount_cents", t.Amount.Cents,
		"category", t.Category)

	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, owner, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE id = ? AND owner_id = ?`, id, owner)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	t.UpdatedAt = time.Now().UTC()

	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET
			direction = ?, amount_cents = ?, description = ?, category = ?,
			category_source = ?, needs_vs_wants = ?, prediction_confidence = ?,
			payment_method = ?, occurred_on = ?, notes = ?, tags = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		string(t.Direction), t.Amount.Cents, t.Description, t.Category,
		string(t.CategorySource), string(t.NeedsVsWants), t.Confidence,
		t.PaymentMethod, t.OccurredOn.Format(dateLayout), t.Notes, string(tags),
		t.UpdatedAt.Format(timeLayout), t.ID, t.Owner,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: transaction %s", core.ErrNotFound, t.ID)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: transaction %s", core.ErrNotFound, id)
	}
	return nil
}

// ListTransactions returns one page sorted by occurrence date descending,
// then creation order descending, plus the total match count.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner string, filter TransactionFilter) ([]core.Transaction, int, error) {
	filter = filter.normalized()

	where := []string{"owner_id = ?"}
	args := []any{owner}
	if filter.Direction != "" {
		where = append(where, "direction = ?")
		args = append(args, string(filter.Direction))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if !filter.From.IsZero() {
		where = append(where, "occurred_on >= ?")
		args = append(args, filter.From.Format(dateLayout))
	}
	if !filter.To.IsZero() {
		where = append(where, "occurred_on <= ?")
		args = append(args, filter.To.Format(dateLayout))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + cond +
		` ORDER BY occurred_on DESC, created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var items []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}

	return items, total, nil
}

// TransactionsInWindow returns all of the owner's transactions with an
// occurrence date in [from, to], oldest first. The compute pipelines read
// through this, bypassing the aggregate cache.
func (r *SQLiteRepository) TransactionsInWindow(ctx context.Context, owner string, from, to time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = ? AND occurred_on >= ? AND occurred_on <= ?
		ORDER BY occurred_on ASC, created_at ASC`,
		owner, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("window query: %w", err)
	}
	defer rows.Close()

	var items []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, *t)
	}
	return items, rows.Err()
}

// DistinctTransactionDays counts calendar days carrying at least one
// transaction in [from, to].
func (r *SQLiteRepository) DistinctTransactionDays(ctx context.Context, owner string, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT occurred_on) FROM transactions
		WHERE owner_id = ? AND occurred_on >= ? AND occurred_on <= ?`,
		owner, from.Format(dateLayout), to.Format(dateLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count distinct days: %w", err)
	}
	return n, nil
}

// SumByDirection totals transaction amounts of a direction in [from, to],
// optionally restricted to one category ("" means all).
func (r *SQLiteRepository) SumByDirection(ctx context.Context, owner string, direction core.Direction, category string, from, to time.Time) (core.Money, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE owner_id = ? AND direction = ? AND occurred_on >= ? AND occurred_on <= ?`
	args := []any{owner, string(direction), from.Format(dateLayout), to.Format(dateLayout)}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}

	var cents int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("sum transactions: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// ActiveOwners lists owners with at least one transaction on or after
// since, for the background sweeps.
func (r *SQLiteRepository) ActiveOwners(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT owner_id FROM transactions
		WHERE occurred_on >= ? ORDER BY owner_id`,
		since.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list active owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var (
		t                              core.Transaction
		direction, source, needsWants  string
		occurredOn, createdAt, updated string
		tags                           string
	)
	err := row.Scan(
		&t.ID, &t.Owner, &direction, &t.Amount.Cents, &t.Description, &t.Category,
		&source, &needsWants, &t.Confidence, &t.PaymentMethod,
		&occurredOn, &t.Notes, &tags, &createdAt, &updated,
	)
	if err != nil {
		return nil, err
	}

	t.Direction = core.Direction(direction)
	t.CategorySource = core.CategorySource(source)
	t.NeedsVsWants = core.NeedsWants(needsWants)

	if t.OccurredOn, err = time.Parse(dateLayout, occurredOn); err != nil {
		return nil, fmt.Errorf("parse occurred_on: %w", err)
	}
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}

	return &t, nil
}
