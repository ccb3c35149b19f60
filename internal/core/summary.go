package core

type (
	// MonthlySummary is the cached income/expense aggregate for one month.
	MonthlySummary struct {
		Year             int
		Month            int // 1-12
		Income           Money
		Expenses         Money
		Savings          Money
		SavingsRate      float64 // percent of income, 0 when no income
		TransactionCount int
	}

	// CategorySpend is one category's expense total for a month, with the
	// ledger's budgeted amount when a budget row exists.
	CategorySpend struct {
		Category    string
		Spent       Money
		Budgeted    Money
		Utilization float64 // percent of budget, 0 when unbudgeted
	}

	// CategoryBreakdown is the cached per-category expense aggregate.
	CategoryBreakdown struct {
		Year       int
		Month      int
		Categories []CategorySpend
	}
)

// NewMonthlySummary derives savings and savings rate from income/expense
// totals.
func NewMonthlySummary(year, month int, income, expenses Money, count int) MonthlySummary {
	s := MonthlySummary{
		Year:             year,
		Month:            month,
		Income:           income,
		Expenses:         expenses,
		Savings:          Money{Cents: income.Cents - expenses.Cents},
		TransactionCount: count,
	}
	if income.Cents > 0 {
		s.SavingsRate = float64(s.Savings.Cents) / float64(income.Cents) * 100
	}
	return s
}
