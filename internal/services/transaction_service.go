package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finsight/internal/amqp"
	"finsight/internal/cache"
	"finsight/internal/core"
	"finsight/internal/predictor"
	"finsight/internal/storage"
)

// EventPublisher publishes transaction change notifications. Nil or failing
// publishers never block a write.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error
}

// TransactionService coordinates a transaction write across the log, the
// budget ledger, the aggregate cache and the event stream. The ledger
// invariant it maintains: spent on each (owner, category, month, year) row
// equals the sum over expense transactions currently in that bucket.
type TransactionService struct {
	storage   *storage.SQLiteRepository
	cache     *cache.Aggregates
	predictor predictor.CategoryPredictor
	events    EventPublisher
}

func NewTransactionService(storage *storage.SQLiteRepository, cache *cache.Aggregates, categoryPredictor predictor.CategoryPredictor, events EventPublisher) *TransactionService {
	return &TransactionService{
		storage:   storage,
		cache:     cache,
		predictor: categoryPredictor,
		events:    events,
	}
}

// Create validates and persists a new transaction, applies its ledger
// contribution, invalidates cached aggregates for its period and publishes
// a change event. When no category is supplied the category predictor is
// consulted; its failure degrades to the direction's default category and
// never aborts the write.
func (s *TransactionService) Create(ctx context.Context, t *core.Transaction) error {
	if t.Category == "" {
		s.categorize(ctx, t)
	} else {
		if err := s.requireCategory(ctx, t.Owner, t.Category); err != nil {
			return err
		}
		t.CategorySource = core.SourceUser
		if t.NeedsVsWants == "" {
			t.NeedsVsWants = core.NeedsWantsUnknown
		}
	}

	if err := t.Validate(); err != nil {
		return err
	}

	if err := s.storage.CreateTransaction(ctx, t); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	if t.Direction == core.DirectionExpense {
		month, year := t.Bucket()
		if err := s.storage.AdjustSpent(ctx, t.Owner, t.Category, month, year, t.Amount.Cents); err != nil {
			return fmt.Errorf("apply ledger contribution: %w", err)
		}
	}

	s.invalidatePeriod(t.Owner, t.OccurredOn)
	s.publish(ctx, amqp.NewTransactionEvent(t.Owner, t.ID, amqp.EventCreated, t.OccurredOn))
	return nil
}

// Update replaces an existing transaction. Once the row update took
// effect, the ledger sequence is revert then reapply: the old contribution
// (if the old direction was expense) comes off the old bucket before the
// new contribution (if the new direction is expense) goes onto the new
// one. Caches covering both periods are invalidated.
func (s *TransactionService) Update(ctx context.Context, t *core.Transaction) error {
	old, err := s.storage.GetTransaction(ctx, t.Owner, t.ID)
	if err != nil {
		return err
	}

	if t.Category == "" {
		s.categorize(ctx, t)
	} else if t.Category != old.Category {
		if err := s.requireCategory(ctx, t.Owner, t.Category); err != nil {
			return err
		}
		t.CategorySource = core.SourceUser
	} else if t.CategorySource == "" {
		t.CategorySource = old.CategorySource
		if t.NeedsVsWants == "" {
			t.NeedsVsWants = old.NeedsVsWants
		}
		if t.Confidence == 0 {
			t.Confidence = old.Confidence
		}
	}
	if t.NeedsVsWants == "" {
		t.NeedsVsWants = core.NeedsWantsUnknown
	}
	t.CreatedAt = old.CreatedAt

	if err := t.Validate(); err != nil {
		return err
	}

	// Mutate the row first: a lost race (row already gone or changed by a
	// concurrent writer) surfaces as ErrNotFound before any ledger
	// adjustment, so the old contribution is never reverted twice.
	if err := s.storage.UpdateTransaction(ctx, t); err != nil {
		return err
	}

	if old.Direction == core.DirectionExpense {
		month, year := old.Bucket()
		if err := s.storage.AdjustSpent(ctx, old.Owner, old.Category, month, year, -old.Amount.Cents); err != nil {
			return fmt.Errorf("revert ledger contribution: %w", err)
		}
	}

	if t.Direction == core.DirectionExpense {
		month, year := t.Bucket()
		if err := s.storage.AdjustSpent(ctx, t.Owner, t.Category, month, year, t.Amount.Cents); err != nil {
			return fmt.Errorf("reapply ledger contribution: %w", err)
		}
	}

	s.invalidatePeriod(t.Owner, old.OccurredOn)
	s.invalidatePeriod(t.Owner, t.OccurredOn)

	event := amqp.NewTransactionEvent(t.Owner, t.ID, amqp.EventUpdated, t.OccurredOn)
	if !sameBucket(old.OccurredOn, t.OccurredOn) {
		previous := old.OccurredOn
		event.PreviousOn = &previous
	}
	s.publish(ctx, event)
	return nil
}

// Delete removes a transaction, then reverts its ledger contribution when
// it was an expense. The ledger row itself stays, preserving any budgeted
// amount. Deleting the row first makes it the serialization point: of two
// concurrent deletes only the one whose DELETE took effect reverts, the
// other gets ErrNotFound and leaves the ledger alone.
func (s *TransactionService) Delete(ctx context.Context, owner, id string) error {
	old, err := s.storage.GetTransaction(ctx, owner, id)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteTransaction(ctx, owner, id); err != nil {
		return err
	}

	if old.Direction == core.DirectionExpense {
		month, year := old.Bucket()
		if err := s.storage.AdjustSpent(ctx, owner, old.Category, month, year, -old.Amount.Cents); err != nil {
			return fmt.Errorf("revert ledger contribution: %w", err)
		}
	}

	s.invalidatePeriod(owner, old.OccurredOn)
	s.publish(ctx, amqp.NewTransactionEvent(owner, id, amqp.EventDeleted, old.OccurredOn))
	return nil
}

func (s *TransactionService) Get(ctx context.Context, owner, id string) (*core.Transaction, error) {
	return s.storage.GetTransaction(ctx, owner, id)
}

// Page is one page of transactions with pagination metadata.
type Page struct {
	Items      []core.Transaction
	Page       int
	PageSize   int
	TotalCount int
	TotalPages int
}

// List returns the owner's transactions matching the filter, newest first.
// An empty filter returns everything.
func (s *TransactionService) List(ctx context.Context, owner string, filter storage.TransactionFilter) (*Page, error) {
	items, total, err := s.storage.ListTransactions(ctx, owner, filter)
	if err != nil {
		return nil, err
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 50
	}
	return &Page{
		Items:      items,
		Page:       page,
		PageSize:   size,
		TotalCount: total,
		TotalPages: (total + size - 1) / size,
	}, nil
}

// categorize asks the category predictor, degrading to the direction's
// default category when the predictor is down, times out, or returns a
// category the owner does not have.
func (s *TransactionService) categorize(ctx context.Context, t *core.Transaction) {
	if s.predictor != nil {
		prediction, err := s.predictor.PredictCategory(ctx, predictor.CategoryRequest{
			Description:   t.Description,
			Amount:        t.Amount.Units(),
			Direction:     t.Direction,
			PaymentMethod: t.PaymentMethod,
		})
		if err == nil {
			exists, checkErr := s.storage.CategoryExists(ctx, t.Owner, prediction.Category)
			if checkErr == nil && exists {
				t.Category = prediction.Category
				t.CategorySource = core.SourcePredicted
				t.NeedsVsWants = prediction.NeedsVsWants
				if t.NeedsVsWants == "" {
					t.NeedsVsWants = core.NeedsWantsUnknown
				}
				t.Confidence = prediction.Confidence
				return
			}
			slog.WarnContext(ctx, "Predicted category not in owner's directory, using default",
				"owner_id", t.Owner,
				"category", prediction.Category)
		} else {
			slog.WarnContext(ctx, "Category prediction failed, using default",
				"owner_id", t.Owner,
				"error", err)
		}
	}

	t.Category = t.Direction.DefaultCategory()
	t.CategorySource = core.SourceDefault
	t.NeedsVsWants = core.NeedsWantsUnknown
	t.Confidence = 0

	// The default must have a directory row even for owners that were
	// never seeded.
	if err := s.storage.EnsureCategory(ctx, t.Owner, t.Category, t.Direction); err != nil {
		slog.WarnContext(ctx, "Failed to ensure default category",
			"owner_id", t.Owner,
			"category", t.Category,
			"error", err)
	}
}

func (s *TransactionService) requireCategory(ctx context.Context, owner, category string) error {
	exists, err := s.storage.CategoryExists(ctx, owner, category)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: unknown category %q", core.ErrValidation, category)
	}
	return nil
}

func (s *TransactionService) invalidatePeriod(owner string, on time.Time) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(owner, on.Year(), int(on.Month()))
}

func (s *TransactionService) publish(ctx context.Context, event *amqp.TransactionEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"owner_id", event.Owner,
			"transaction_id", event.TransactionID,
			"kind", event.Kind,
			"error", err)
	}
}

func sameBucket(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
