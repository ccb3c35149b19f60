package cache

import (
	"fmt"
	"time"

	"finsight/internal/core"
)

// Aggregates memoizes the derived read queries (monthly summaries and
// category breakdowns) under owner+shape+period keys. Writes to the ledger
// do not patch entries; they call Invalidate for the affected periods and
// otherwise rely on the short TTL.
type Aggregates struct {
	summaries  *TTLCache[core.MonthlySummary]
	breakdowns *TTLCache[core.CategoryBreakdown]
	cleanup    *Manager
}

func NewAggregates(maxEntries int, ttl time.Duration) *Aggregates {
	a := &Aggregates{
		summaries:  NewTTLCache[core.MonthlySummary](maxEntries, ttl),
		breakdowns: NewTTLCache[core.CategoryBreakdown](maxEntries, ttl),
		cleanup:    NewManager(),
	}
	a.cleanup.Register(a.summaries)
	a.cleanup.Register(a.breakdowns)
	return a
}

// StartCleanup begins periodic eviction of expired entries.
func (a *Aggregates) StartCleanup(interval time.Duration) {
	a.cleanup.StartCleanup(interval)
}

// Stop halts the cleanup routine.
func (a *Aggregates) Stop() {
	a.cleanup.Stop()
}

func (a *Aggregates) GetSummary(owner string, year, month int) (core.MonthlySummary, bool) {
	return a.summaries.Get(periodKey(owner, "summary", year, month))
}

func (a *Aggregates) SetSummary(owner string, s core.MonthlySummary) {
	a.summaries.Set(periodKey(owner, "summary", s.Year, s.Month), s)
}

func (a *Aggregates) GetBreakdown(owner string, year, month int) (core.CategoryBreakdown, bool) {
	return a.breakdowns.Get(periodKey(owner, "breakdown", year, month))
}

func (a *Aggregates) SetBreakdown(owner string, b core.CategoryBreakdown) {
	a.breakdowns.Set(periodKey(owner, "breakdown", b.Year, b.Month), b)
}

// Invalidate drops every cached aggregate covering the given owner and
// period, across all query shapes.
func (a *Aggregates) Invalidate(owner string, year, month int) {
	a.summaries.Delete(periodKey(owner, "summary", year, month))
	a.breakdowns.Delete(periodKey(owner, "breakdown", year, month))
}

// InvalidateOwner drops every cached aggregate for the owner.
func (a *Aggregates) InvalidateOwner(owner string) int {
	n := a.summaries.DeletePrefix(owner + "|")
	n += a.breakdowns.DeletePrefix(owner + "|")
	return n
}

func periodKey(owner, shape string, year, month int) string {
	return fmt.Sprintf("%s|%s|%04d-%02d", owner, shape, year, month)
}
