package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"finsight/internal/amqp"
	"finsight/internal/core"
	"finsight/internal/predictor"
	"finsight/internal/services"
	"finsight/internal/storage"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newWorker(t *testing.T) (*storage.SQLiteRepository, *ProgressWorker) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	if err := repo.SeedDefaultCategories(context.Background(), "alice"); err != nil {
		t.Fatalf("seed categories: %v", err)
	}
	goals := services.NewGoalService(repo, &predictor.Fake{})
	return repo, NewProgressWorker(repo, goals)
}

func marchCap(owner string, targetCents int64) *core.Goal {
	return &core.Goal{
		Owner:       owner,
		Title:       "march cap",
		Type:        core.GoalSpendingCap,
		TargetValue: core.Money{Cents: targetCents},
		Period:      core.PeriodMonthly,
		StartDate:   date(2026, 3, 1),
		EndDate:     date(2026, 3, 31),
		Status:      core.GoalActive,
		Provenance:  core.ProvenanceUser,
	}
}

func TestGoalCovers(t *testing.T) {
	g := *marchCap("alice", 50000)
	previous := date(2026, 3, 15)

	tests := []struct {
		name  string
		event *amqp.TransactionEvent
		want  bool
	}{
		{"inside window", &amqp.TransactionEvent{OccurredOn: date(2026, 3, 10)}, true},
		{"first day", &amqp.TransactionEvent{OccurredOn: date(2026, 3, 1)}, true},
		{"last day", &amqp.TransactionEvent{OccurredOn: date(2026, 3, 31)}, true},
		{"before window", &amqp.TransactionEvent{OccurredOn: date(2026, 2, 28)}, false},
		{"after window", &amqp.TransactionEvent{OccurredOn: date(2026, 4, 1)}, false},
		{"moved out but previous covered", &amqp.TransactionEvent{OccurredOn: date(2026, 4, 2), PreviousOn: &previous}, true},
		{"time of day ignored", &amqp.TransactionEvent{OccurredOn: time.Date(2026, 3, 31, 18, 30, 0, 0, time.UTC)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := goalCovers(g, tt.event); got != tt.want {
				t.Errorf("goalCovers = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleTransactionEventRefreshesCoveredGoals(t *testing.T) {
	repo, worker := newWorker(t)
	ctx := context.Background()

	covered := marchCap("alice", 50000)
	if err := repo.CreateGoal(ctx, covered); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	outside := marchCap("alice", 50000)
	outside.Title = "april cap"
	outside.StartDate = date(2026, 4, 1)
	outside.EndDate = date(2026, 4, 30)
	if err := repo.CreateGoal(ctx, outside); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	tx := &core.Transaction{
		Owner:       "alice",
		Direction:   core.DirectionExpense,
		Amount:      core.Money{Cents: 25000},
		Description: "rent",
		Category:    "Rent & Utilities",
		OccurredOn:  date(2026, 3, 10),
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create tx: %v", err)
	}

	event := amqp.NewTransactionEvent("alice", tx.ID, amqp.EventCreated, tx.OccurredOn)
	if err := worker.HandleTransactionEvent(ctx, event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	refreshed, err := repo.GetGoal(ctx, "alice", covered.ID)
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if refreshed.CurrentValue.Cents != 25000 || refreshed.Progress != 50 {
		t.Errorf("covered goal = %d cents / %v%%, want 25000 / 50", refreshed.CurrentValue.Cents, refreshed.Progress)
	}

	untouched, err := repo.GetGoal(ctx, "alice", outside.ID)
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if untouched.CurrentValue.Cents != 0 {
		t.Errorf("uncovered goal recomputed: %+v", untouched)
	}
}

func TestHandleTransactionEventNoActiveGoals(t *testing.T) {
	_, worker := newWorker(t)

	event := amqp.NewTransactionEvent("alice", "tx-1", amqp.EventDeleted, date(2026, 3, 10))
	if err := worker.HandleTransactionEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event with no goals: %v", err)
	}
}
