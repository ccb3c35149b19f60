package cache

import (
	"testing"
	"time"

	"finsight/internal/core"
)

func TestAggregatesRoundTrip(t *testing.T) {
	a := NewAggregates(16, time.Minute)

	if _, ok := a.GetSummary("alice", 2026, 3); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	summary := core.NewMonthlySummary(2026, 3, core.Money{Cents: 500000}, core.Money{Cents: 17500}, 4)
	a.SetSummary("alice", summary)

	got, ok := a.GetSummary("alice", 2026, 3)
	if !ok || got != summary {
		t.Fatalf("GetSummary = %+v, %v", got, ok)
	}
	if _, ok := a.GetSummary("alice", 2026, 4); ok {
		t.Error("hit on a different period")
	}
	if _, ok := a.GetSummary("bob", 2026, 3); ok {
		t.Error("hit on a different owner")
	}
}

func TestAggregatesInvalidate(t *testing.T) {
	a := NewAggregates(16, time.Minute)

	a.SetSummary("alice", core.MonthlySummary{Year: 2026, Month: 3})
	a.SetBreakdown("alice", core.CategoryBreakdown{Year: 2026, Month: 3})
	a.SetSummary("alice", core.MonthlySummary{Year: 2026, Month: 4})

	a.Invalidate("alice", 2026, 3)

	if _, ok := a.GetSummary("alice", 2026, 3); ok {
		t.Error("summary for invalidated period survived")
	}
	if _, ok := a.GetBreakdown("alice", 2026, 3); ok {
		t.Error("breakdown for invalidated period survived")
	}
	if _, ok := a.GetSummary("alice", 2026, 4); !ok {
		t.Error("summary for other period was dropped")
	}
}

func TestAggregatesInvalidateOwner(t *testing.T) {
	a := NewAggregates(16, time.Minute)

	a.SetSummary("alice", core.MonthlySummary{Year: 2026, Month: 3})
	a.SetBreakdown("alice", core.CategoryBreakdown{Year: 2026, Month: 3})
	a.SetSummary("bob", core.MonthlySummary{Year: 2026, Month: 3})

	if n := a.InvalidateOwner("alice"); n != 2 {
		t.Fatalf("InvalidateOwner = %d, want 2", n)
	}
	if _, ok := a.GetSummary("bob", 2026, 3); !ok {
		t.Error("other owner's entry was dropped")
	}
}
