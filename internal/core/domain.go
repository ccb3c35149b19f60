package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"

	SourceUser      CategorySource = "user"
	SourcePredicted CategorySource = "predicted"
	SourceDefault   CategorySource = "default"

	NeedsWantsNeeds   NeedsWants = "needs"
	NeedsWantsWants   NeedsWants = "wants"
	NeedsWantsUnknown NeedsWants = "unknown"

	// Fallback categories used when the category predictor is unavailable.
	DefaultIncomeCategory  = "Other Income"
	DefaultExpenseCategory = "Other Expense"
)

type (
	// Direction classifies a transaction as income or expense.
	Direction string

	// CategorySource records how a transaction got its category.
	CategorySource string

	// NeedsWants is the needs-vs-wants classification supplied by the
	// category predictor. "unknown" whenever the predictor was not
	// consulted or did not classify.
	NeedsWants string

	Money struct {
		Cents int64
	}

	// Transaction is a single financial event owned by one user.
	Transaction struct {
		ID             string
		Owner          string
		Direction      Direction
		Amount         Money
		Description    string
		Category       string
		CategorySource CategorySource
		NeedsVsWants   NeedsWants
		Confidence     float64
		PaymentMethod  string
		OccurredOn     time.Time
		Notes          string
		Tags           []string
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	// BudgetEntry is the per-(owner, category, month, year) ledger row.
	// Spent must always equal the sum of amounts over the expense
	// transactions currently in that bucket.
	BudgetEntry struct {
		Owner    string
		Category string
		Month    int // 1-12
		Year     int
		Budgeted Money
		Spent    Money
	}
)

func (d Direction) Valid() bool {
	return d == DirectionIncome || d == DirectionExpense
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Units returns the amount in major currency units for model payloads and
// display. Keep arithmetic in cents.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// MoneyFromUnits converts a major-unit amount (as reported by the
// predictors) back to cents with half-up rounding.
func MoneyFromUnits(u float64) Money {
	if u >= 0 {
		return Money{Cents: int64(u*100 + 0.5)}
	}
	return Money{Cents: int64(u*100 - 0.5)}
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Owner) == "" {
		return fmt.Errorf("%w: missing owner", ErrValidation)
	}
	if !t.Direction.Valid() {
		return fmt.Errorf("%w: invalid direction %q", ErrValidation, t.Direction)
	}
	if err := t.Amount.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, ErrEmptyDescription)
	}
	if len(t.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
	}
	if strings.TrimSpace(t.Category) == "" {
		return fmt.Errorf("%w: %v", ErrValidation, ErrEmptyCategory)
	}
	if t.OccurredOn.IsZero() {
		return fmt.Errorf("%w: occurrence date cannot be zero", ErrValidation)
	}
	return nil
}

// Bucket returns the ledger bucket (month, year) this transaction
// contributes to.
func (t Transaction) Bucket() (month, year int) {
	return int(t.OccurredOn.Month()), t.OccurredOn.Year()
}

// DefaultCategory returns the fallback category for a direction.
func (d Direction) DefaultCategory() string {
	if d == DirectionIncome {
		return DefaultIncomeCategory
	}
	return DefaultExpenseCategory
}

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
)
