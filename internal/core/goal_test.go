package core

import (
	"errors"
	"testing"
	"time"
)

func validGoal() Goal {
	return Goal{
		Owner:       "user-1",
		Title:       "Spend less on food",
		Type:        GoalCategoryLimit,
		Category:    "Food & Dining",
		TargetValue: Money{Cents: 30000},
		Period:      PeriodMonthly,
		StartDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:      GoalActive,
		Provenance:  ProvenanceUser,
	}
}

func TestGoalValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		if err := validGoal().Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	mutations := map[string]func(*Goal){
		"missing owner":               func(g *Goal) { g.Owner = "" },
		"empty title":                 func(g *Goal) { g.Title = " " },
		"bad type":                    func(g *Goal) { g.Type = "stretch" },
		"category limit, no category": func(g *Goal) { g.Category = "" },
		"non-positive target":         func(g *Goal) { g.TargetValue = Money{} },
		"bad period":                  func(g *Goal) { g.Period = "fortnightly" },
		"missing window":              func(g *Goal) { g.StartDate = time.Time{} },
		"inverted window":             func(g *Goal) { g.StartDate, g.EndDate = g.EndDate, g.StartDate },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			g := validGoal()
			mutate(&g)
			if err := g.Validate(); !errors.Is(err, ErrValidation) {
				t.Errorf("Validate() = %v, want ErrValidation", err)
			}
		})
	}
}

func TestProgressFor(t *testing.T) {
	tests := []struct {
		name            string
		current, target int64
		want            float64
	}{
		{"zero current", 0, 10000, 0},
		{"halfway", 5000, 10000, 50},
		{"exact", 10000, 10000, 100},
		{"over target clamps", 15000, 10000, 100},
		{"negative clamps", -100, 10000, 0},
		{"zero target", 5000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProgressFor(Money{Cents: tt.current}, Money{Cents: tt.target})
			if got != tt.want {
				t.Errorf("ProgressFor(%d, %d) = %v, want %v", tt.current, tt.target, got, tt.want)
			}
		})
	}
}

func TestGoalCanTransition(t *testing.T) {
	tests := []struct {
		from, to GoalStatus
		want     bool
	}{
		{GoalActive, GoalPaused, true},
		{GoalActive, GoalFailed, true},
		{GoalActive, GoalCompleted, true},
		{GoalPaused, GoalActive, true},
		{GoalPaused, GoalFailed, false},
		{GoalCompleted, GoalActive, false},
		{GoalCompleted, GoalPaused, false},
		{GoalFailed, GoalActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			g := Goal{Status: tt.from}
			if got := g.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestHorizon(t *testing.T) {
	for _, h := range Horizons() {
		if h.Days() == 0 {
			t.Errorf("horizon %q has zero days", h)
		}
		if err := h.Validate(); err != nil {
			t.Errorf("horizon %q invalid: %v", h, err)
		}
	}
	if err := Horizon("90day").Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown horizon: got %v, want ErrValidation", err)
	}
}
