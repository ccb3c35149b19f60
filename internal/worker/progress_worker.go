// Package worker reacts to transaction change events between scheduler
// sweeps, keeping goal progress closer to real time than the periodic
// sweep alone.
package worker

import (
	"context"
	"log/slog"
	"time"

	"finsight/internal/amqp"
	"finsight/internal/core"
	"finsight/internal/services"
	"finsight/internal/storage"
)

// ProgressWorker refreshes the progress of an owner's active goals when
// one of their transactions changes.
type ProgressWorker struct {
	storage *storage.SQLiteRepository
	goals   *services.GoalService
}

func NewProgressWorker(storage *storage.SQLiteRepository, goals *services.GoalService) *ProgressWorker {
	return &ProgressWorker{storage: storage, goals: goals}
}

// HandleTransactionEvent recomputes every active goal of the event's owner
// whose window covers an affected date. Returning an error requeues the
// event.
func (w *ProgressWorker) HandleTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"owner_id", event.Owner,
		"transaction_id", event.TransactionID,
		"kind", event.Kind)

	goals, err := w.storage.ListGoals(ctx, event.Owner, core.GoalActive)
	if err != nil {
		return err
	}

	refreshed := 0
	for _, g := range goals {
		if !goalCovers(g, event) {
			continue
		}
		if _, err := w.goals.UpdateProgress(ctx, g.Owner, g.ID); err != nil {
			return err
		}
		refreshed++
	}

	if refreshed > 0 {
		slog.InfoContext(ctx, "Refreshed goal progress",
			"owner_id", event.Owner,
			"goals", refreshed)
	}
	return nil
}

// goalCovers reports whether the goal's window contains the event's
// occurrence date or, for moves, its previous date.
func goalCovers(g core.Goal, event *amqp.TransactionEvent) bool {
	if inWindow(g, event.OccurredOn) {
		return true
	}
	return event.PreviousOn != nil && inWindow(g, *event.PreviousOn)
}

func inWindow(g core.Goal, on time.Time) bool {
	day := on.Truncate(24 * time.Hour)
	return !day.Before(g.StartDate) && !day.After(g.EndDate)
}
