package core

// SummaryRow is a (group, type) cell of the category comparison.
type SummaryRow struct {
	Group  string `json:"group"`
	Type   TxType `json:"type"`
	Amount Money  `json:"amount"`
}

// MonthAmount is one point of a monthly series.
type MonthAmount struct {
	Month  string `json:"month"`
	Amount Money  `json:"amount"`
}

// VarianceRow pairs actual and expected spending of a group.
// Variance is Actual - Expected; positive means overspend.
type VarianceRow struct {
	Group    string `json:"group"`
	Actual   Money  `json:"actual"`
	Expected Money  `json:"expected"`
	Variance Money  `json:"variance"`
}

// LabelAmount is a ranked (label, amount) pair used by top-N views.
type LabelAmount struct {
	Label  string `json:"label"`
	Amount Money  `json:"amount"`
}

// GridCell is one (label, month) cell of the monthly-by-top-label grid.
type GridCell struct {
	Label  string `json:"label"`
	Month  string `json:"month"`
	Amount Money  `json:"amount"`
}

// Metric is a headline number with its formatted display string.
type Metric struct {
	Name    string `json:"name"`
	Amount  Money  `json:"amount"`
	Display string `json:"display"`
}

// Metrics are the always-shown key figures.
type Metrics struct {
	ActualSpending   Metric `json:"actual_spending"`
	ExpectedSpending Metric `json:"expected_spending"`
	OverUnder        Metric `json:"over_under"`
	IncomeActual     Metric `json:"income_actual"`
}

// InsightTotals are the scalar totals of an insight payload.
type InsightTotals struct {
	ExpectedExpenses Money `json:"expected_expenses"`
	ActualExpenses   Money `json:"actual_expenses"`
	IncomeActual     Money `json:"income_actual"`
	SavingsActual    Money `json:"savings_actual"`
	VarianceExpenses Money `json:"variance_expenses"`
}

type CategoryAmount struct {
	Category string `json:"category"`
	Amount   Money  `json:"amount"`
}

type BudgetDelta struct {
	Category string `json:"category"`
	Delta    Money  `json:"delta"`
	Actual   Money  `json:"actual"`
	Expected Money  `json:"expected"`
}

// MonthOverMonth compares the two chronologically last months of a series.
type MonthOverMonth struct {
	PrevMonth  string `json:"prev_month"`
	PrevAmount Money  `json:"prev_amount"`
	LastMonth  string `json:"last_month"`
	LastAmount Money  `json:"last_amount"`
	Change     Money  `json:"change"`
}

// InsightPayload is the compact snapshot handed to a narrative generator.
type InsightPayload struct {
	Period         []string         `json:"period"`
	Totals         InsightTotals    `json:"totals"`
	TopCategories  []CategoryAmount `json:"top_categories"`
	BiggestOver    *BudgetDelta     `json:"biggest_over"`
	BiggestUnder   *BudgetDelta     `json:"biggest_under"`
	MonthOverMonth *MonthOverMonth  `json:"month_over_month"`
}
