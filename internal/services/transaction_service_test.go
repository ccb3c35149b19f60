package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finsight/internal/amqp"
	"finsight/internal/cache"
	"finsight/internal/core"
	"finsight/internal/predictor"
	"finsight/internal/storage"
)

func TestCreateWithUserCategory(t *testing.T) {
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	svc, _, events := newTransactionService(t, repo, &predictor.Fake{})
	ctx := context.Background()

	tx := expense("alice", "Food & Dining", 10000, day(2026, 3, 5))
	mustCreate(t, svc, tx)

	got, err := svc.Get(ctx, "alice", tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CategorySource != core.SourceUser {
		t.Errorf("source = %s, want user", got.CategorySource)
	}
	if got.NeedsVsWants != core.NeedsWantsUnknown {
		t.Errorf("needsVsWants = %s, want unknown", got.NeedsVsWants)
	}
	if spent := spentCents(t, repo, "alice", "Food & Dining", 3, 2026); spent != 10000 {
		t.Errorf("ledger spent = %d, want 10000", spent)
	}
	if len(events.events) != 1 || events.events[0].Kind != amqp.EventCreated {
		t.Errorf("events = %+v", events.events)
	}
}

func TestCreateRejectsUnknownCategory(t *testing.T) {
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	svc, _, _ := newTransactionService(t, repo, &predictor.Fake{})

	tx := expense("alice", "Yacht Maintenance", 100, day(2026, 3, 5))
	if err := svc.Create(context.Background(), tx); !errors.Is(err, core.ErrValidation) {
		t.Errorf("create = %v, want ErrValidation", err)
	}
}

func TestCreatePredictsCategory(t *testing.T) {
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	svc, _, _ := newTransactionService(t, repo, categoryFake("Food & Dining", core.NeedsWantsNeeds, 0.92))

	tx := expense("alice", "", 1500, day(2026, 3, 5))
	mustCreate(t, svc, tx)

	if tx.Category != "Food & Dining" || tx.CategorySource != core.SourcePredicted {
		t.Errorf("category = %s (%s)", tx.Category, tx.CategorySource)
	}
	if tx.NeedsVsWants != core.NeedsWantsNeeds || tx.Confidence != 0.92 {
		t.Errorf("prediction fields = %s/%v", tx.NeedsVsWants, tx.Confidence)
	}
	if spent := spentCents(t, repo, "alice", "Food & Dining", 3, 2026); spent != 1500 {
		t.Errorf("ledger spent = %d, want 1500", spent)
	}
}

func TestCreatePredictorFailureDegradesToDefault(t *testing.T) {
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	// Fake with no PredictCategoryFn behaves like a down predictor.
	svc, _, _ := newTransactionService(t, repo, &predictor.Fake{})

	tx := expense("alice", "", 1500, day(2026, 3, 5))
	mustCreate(t, svc, tx)

	if tx.Category != core.DefaultExpenseCategory || tx.CategorySource != core.SourceDefault {
		t.Errorf("category = %s (%s), want default", tx.Category, tx.CategorySource)
	}

	in := income("alice", "", 500000, day(2026, 3, 1))
	mustCreate(t, svc, in)
	if in.Category != core.DefaultIncomeCategory {
		t.Errorf("income category = %s, want %s", in.Category, core.DefaultIncomeCategory)
	}
}

func TestFallbackCreatesDefaultCategoryForUnseededOwner(t *testing.T) {
	repo := newTestRepo(t) // owner never seeded
	svc, _, _ := newTransactionService(t, repo, &predictor.Fake{})
	ctx := context.Background()

	tx := expense("mallory", "", 1500, day(2026, 3, 5))
	mustCreate(t, svc, tx)

	if tx.Category != core.DefaultExpenseCategory {
		t.Fatalf("category = %s, want default", tx.Category)
	}
	exists, err := repo.CategoryExists(ctx, "mallory", core.DefaultExpenseCategory)
	if err != nil {
		t.Fatalf("category exists: %v", err)
	}
	if !exists {
		t.Error("default category has no directory row after fallback")
	}
}

func TestCreatePredictedCategoryOutsideDirectory(t *testing.T) {
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	svc, _, _ := newTransactionService(t, repo, categoryFake("Yacht Maintenance", core.NeedsWantsWants, 0.7))

	tx := expense("alice", "", 1500, day(2026, 3, 5))
	mustCreate(t, svc, tx)

	if tx.Category != core.DefaultExpenseCategory || tx.CategorySource != core.SourceDefault {
		t.Errorf("category = %s (%s), want default fallback", tx.Category, tx.CategorySource)
	}
	if tx.Confidence != 0 {
		t.Errorf("confidence = %v, want 0 on fallback", tx.Confidence)
	}
}

func TestUpdateMovesLedgerContribution(t *testing.T) {
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	svc, _, events := newTransactionService(t, repo, &predictor.Fake{})
	ctx := context.Background()

	tx := expense("alice", "Food & Dining", 10000, day(2026, 3, 5))
	mustCreate(t, svc, tx)

	updated := *tx
	updated.Amount = core.Money{Cents: 5000}
	updated.Category = "Shopping"
	updated.OccurredOn = day(2026, 4, 2)
	if err := svc.Update(ctx, &updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	if spent := spentCents(t, repo, "alice", "Food & Dining", 3, 2026); spent != 0 {
		t.Errorf("old bucket spent = %d, want 0", spent)
	}
	if spent := spentCents(t, repo, "alice", "Shopping", 4, 2026); spent != 5000 {
		t.Errorf("new bucket spent = %d, want 5000", spent)
	}

	last := events.events[len(events.events)-1]
	if last.Kind != amqp.EventUpdated || last.PreviousOn == nil {
		t.Errorf("update event = %+v, want PreviousOn set on month move", last)
	}
}

func TestUpdateDirectionChangeRevertsContribution(t *testing.T) {
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	svc, _, _ := newTransactionService(t, repo, &predictor.Fake{})
	ctx := context.Background()

	tx := expense("alice", "Food & Dining", 10000, day(2026, 3, 5))
	mustCreate(t, svc, tx)

	updated := *tx
	updated.Direction = core.DirectionIncome
	updated.Category = "Salary"
	if err := svc.Update(ctx, &updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	if spent := spentCents(t, repo, "alice", "Food & Dining", 3, 2026); spent != 0 {
		t.Errorf("spent after expense->income = %d, want 0", spent)
	}
}

func TestDeleteRevertsLedgerButKeepsRow(t *testing.T) {
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	svc, _, _ := newTransactionService(t, repo, &predictor.Fake{})
	ctx := context.Background()

	if err := repo.SetBudgeted(ctx, "alice", "Food & Dining", 3, 2026, 30000); err != nil {
		t.Fatalf("set budget: %v", err)
	}

	tx := expense("alice", "Food & Dining", 10000, day(2026, 3, 5))
	mustCreate(t, svc, tx)

	if err := svc.Delete(ctx, "alice", tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	entry, err := repo.GetBudget(ctx, "alice", "Food & Dining", 3, 2026)
	if err != nil {
		t.Fatalf("ledger row gone after delete: %v", err)
	}
	if entry.Spent.Cents != 0 || entry.Budgeted.Cents != 30000 {
		t.Errorf("entry = %+v, want spent 0 with budget intact", entry)
	}

	if _, err := svc.Get(ctx, "alice", tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get after delete: %v, want ErrNotFound", err)
	}
}

func TestConcurrentDeleteRevertsLedgerOnce(t *testing.T) {
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	svc, _, _ := newTransactionService(t, repo, &predictor.Fake{})
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		tx := expense("alice", "Food & Dining", 100, day(2026, 3, 5))
		mustCreate(t, svc, tx)

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- svc.Delete(ctx, "alice", tx.ID)
			}()
		}
		wg.Wait()
		close(errs)

		// Exactly one delete wins; the loser must see ErrNotFound and
		// leave the ledger alone.
		var succeeded, notFound int
		for err := range errs {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, core.ErrNotFound):
				notFound++
			default:
				t.Fatalf("round %d: unexpected delete error: %v", round, err)
			}
		}
		if succeeded != 1 || notFound != 1 {
			t.Fatalf("round %d: %d succeeded / %d not-found, want 1/1", round, succeeded, notFound)
		}
		if spent := spentCents(t, repo, "alice", "Food & Dining", 3, 2026); spent != 0 {
			t.Fatalf("round %d: spent = %d after delete, want 0 (double revert)", round, spent)
		}
	}
}

func TestUpdateOfMissingTransactionLeavesLedgerAlone(t *testing.T) {
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	svc, _, _ := newTransactionService(t, repo, &predictor.Fake{})
	ctx := context.Background()

	tx := expense("alice", "Food & Dining", 10000, day(2026, 3, 5))
	mustCreate(t, svc, tx)

	// A concurrent writer removes the row between the coordinator's read
	// and its row update.
	stale := *tx
	if err := repo.DeleteTransaction(ctx, "alice", tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.AdjustSpent(ctx, "alice", "Food & Dining", 3, 2026, -10000); err != nil {
		t.Fatalf("revert: %v", err)
	}

	stale.Amount = core.Money{Cents: 5000}
	if err := svc.Update(ctx, &stale); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update of deleted transaction = %v, want ErrNotFound", err)
	}
	if spent := spentCents(t, repo, "alice", "Food & Dining", 3, 2026); spent != 0 {
		t.Errorf("spent = %d after failed update, want 0 (no revert/reapply)", spent)
	}
}

func TestPublishFailureDoesNotBlockWrite(t *testing.T) {
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	events := &capturingPublisher{err: errors.New("broker down")}
	svc := NewTransactionService(repo, cache.NewAggregates(64, time.Minute), &predictor.Fake{}, events)

	tx := expense("alice", "Food & Dining", 100, day(2026, 3, 5))
	if err := svc.Create(context.Background(), tx); err != nil {
		t.Fatalf("create with failing publisher: %v", err)
	}
}

func TestListPagination(t *testing.T) {
	repo := newTestRepo(t)
	seedOwner(t, repo, "alice")
	svc, _, _ := newTransactionService(t, repo, &predictor.Fake{})
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		mustCreate(t, svc, expense("alice", "Shopping", int64(i*100), day(2026, 3, i)))
	}

	page, err := svc.List(ctx, "alice", storage.TransactionFilter{Page: 2, PageSize: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalCount != 7 || page.TotalPages != 3 {
		t.Errorf("pagination = %d total, %d pages; want 7, 3", page.TotalCount, page.TotalPages)
	}
	if len(page.Items) != 3 {
		t.Errorf("page 2 items = %d, want 3", len(page.Items))
	}
}
