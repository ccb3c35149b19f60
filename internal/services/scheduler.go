package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finsight/internal/core"
	"finsight/internal/storage"
)

// SweepResult counts one sweep's per-item outcomes. Skipped counts items
// that were not eligible (insufficient history), as opposed to failures.
type SweepResult struct {
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int
}

func (r SweepResult) String() string {
	return fmt.Sprintf("attempted=%d succeeded=%d failed=%d skipped=%d",
		r.Attempted, r.Succeeded, r.Failed, r.Skipped)
}

// Scheduler drives the periodic pipelines over all active owners. Each
// item is processed independently: one owner's failure is logged and
// counted, never propagated, so it cannot stop the batch.
type Scheduler struct {
	storage      *storage.SQLiteRepository
	health       *HealthService
	forecast     *ForecastService
	goals        *GoalService
	activeWindow time.Duration
}

func NewScheduler(storage *storage.SQLiteRepository, health *HealthService, forecast *ForecastService, goals *GoalService, activeWindow time.Duration) *Scheduler {
	return &Scheduler{
		storage:      storage,
		health:       health,
		forecast:     forecast,
		goals:        goals,
		activeWindow: activeWindow,
	}
}

// RunHealthSweep computes a fresh health score for every active owner.
func (s *Scheduler) RunHealthSweep(ctx context.Context) (SweepResult, error) {
	owners, err := s.activeOwners(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	var result SweepResult
	for _, owner := range owners {
		result.Attempted++
		if _, err := s.health.Compute(ctx, owner); err != nil {
			result.Failed++
			slog.ErrorContext(ctx, "Health sweep item failed",
				"owner_id", owner,
				"error", err)
			continue
		}
		result.Succeeded++
	}

	slog.InfoContext(ctx, "Health sweep finished", "result", result.String())
	return result, nil
}

// RunForecastSweep regenerates every horizon's forecast for every active
// owner. Owners without enough history are counted as skipped.
func (s *Scheduler) RunForecastSweep(ctx context.Context) (SweepResult, error) {
	owners, err := s.activeOwners(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	var result SweepResult
	for _, owner := range owners {
		for _, horizon := range core.Horizons() {
			result.Attempted++
			_, err := s.forecast.Generate(ctx, owner, horizon)
			switch {
			case err == nil:
				result.Succeeded++
			case errors.Is(err, core.ErrInsufficientHistory):
				result.Skipped++
				slog.InfoContext(ctx, "Forecast sweep item skipped",
					"owner_id", owner,
					"horizon", string(horizon),
					"reason", err)
			default:
				result.Failed++
				slog.ErrorContext(ctx, "Forecast sweep item failed",
					"owner_id", owner,
					"horizon", string(horizon),
					"error", err)
			}
		}
	}

	slog.InfoContext(ctx, "Forecast sweep finished", "result", result.String())
	return result, nil
}

// RunProgressSweep recomputes progress for every active goal across all
// owners.
func (s *Scheduler) RunProgressSweep(ctx context.Context) (SweepResult, error) {
	goals, err := s.storage.ListActiveGoals(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list active goals: %w", err)
	}

	var result SweepResult
	for _, g := range goals {
		result.Attempted++
		if _, err := s.goals.UpdateProgress(ctx, g.Owner, g.ID); err != nil {
			result.Failed++
			slog.ErrorContext(ctx, "Progress sweep item failed",
				"owner_id", g.Owner,
				"goal_id", g.ID,
				"error", err)
			continue
		}
		result.Succeeded++
	}

	slog.InfoContext(ctx, "Progress sweep finished", "result", result.String())
	return result, nil
}

func (s *Scheduler) activeOwners(ctx context.Context) ([]string, error) {
	since := time.Now().UTC().Add(-s.activeWindow)
	owners, err := s.storage.ActiveOwners(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list active owners: %w", err)
	}
	return owners, nil
}
