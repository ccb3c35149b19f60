package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"finsight/internal/amqp"
	"finsight/internal/cache"
	"finsight/internal/core"
	"finsight/internal/predictor"
	"finsight/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedOwner(t *testing.T, repo *storage.SQLiteRepository, owner string) {
	t.Helper()
	if err := repo.SeedDefaultCategories(context.Background(), owner); err != nil {
		t.Fatalf("seed categories: %v", err)
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysAgo(n int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -n)
}

func expense(owner, category string, cents int64, on time.Time) *core.Transaction {
	return &core.Transaction{
		Owner:       owner,
		Direction:   core.DirectionExpense,
		Amount:      core.Money{Cents: cents},
		Description: "test expense",
		Category:    category,
		OccurredOn:  on,
	}
}

func income(owner, category string, cents int64, on time.Time) *core.Transaction {
	t := expense(owner, category, cents, on)
	t.Direction = core.DirectionIncome
	t.Description = "test income"
	return t
}

// capturingPublisher records published events in order.
type capturingPublisher struct {
	events []*amqp.TransactionEvent
	err    error
}

func (p *capturingPublisher) PublishTransactionEvent(_ context.Context, event *amqp.TransactionEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// categoryFake always predicts the same category.
func categoryFake(category string, needs core.NeedsWants, confidence float64) *predictor.Fake {
	return &predictor.Fake{
		PredictCategoryFn: func(_ context.Context, _ predictor.CategoryRequest) (*predictor.CategoryPrediction, error) {
			return &predictor.CategoryPrediction{
				Category:     category,
				NeedsVsWants: needs,
				Confidence:   confidence,
			}, nil
		},
	}
}

func newTransactionService(t *testing.T, repo *storage.SQLiteRepository, p predictor.CategoryPredictor) (*TransactionService, *cache.Aggregates, *capturingPublisher) {
	t.Helper()
	aggregates := cache.NewAggregates(64, time.Minute)
	events := &capturingPublisher{}
	return NewTransactionService(repo, aggregates, p, events), aggregates, events
}

func mustCreate(t *testing.T, svc *TransactionService, tx *core.Transaction) {
	t.Helper()
	if err := svc.Create(context.Background(), tx); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
}

func spentCents(t *testing.T, repo *storage.SQLiteRepository, owner, category string, month, year int) int64 {
	t.Helper()
	entry, err := repo.GetBudget(context.Background(), owner, category, month, year)
	if err != nil {
		t.Fatalf("get budget %s %d/%d: %v", category, month, year, err)
	}
	return entry.Spent.Cents
}
