package pipeline

import (
	"findash/internal/core"
)

// Insight reduces the filtered set to the narrative payload. Totals and
// drivers are computed over expense rows regardless of the income toggle so
// the payload depends on the selection's rows only.
func (a Aggregator) Insight(filtered []core.Transaction, sel Selection) core.InsightPayload {
	var expenses []core.Transaction
	var totals core.InsightTotals
	for _, tx := range filtered {
		kind := a.classifier.Kind(tx)
		if kind == KindExpense {
			expenses = append(expenses, tx)
		}
		if tx.Type == core.Expected && kind == KindExpense {
			totals.ExpectedExpenses = totals.ExpectedExpenses.Add(tx.Amount)
		}
		if tx.Type != core.Actual {
			continue
		}
		switch kind {
		case KindExpense:
			totals.ActualExpenses = totals.ActualExpenses.Add(tx.Amount)
		case KindIncome:
			totals.IncomeActual = totals.IncomeActual.Add(tx.Amount)
		case KindSavings:
			totals.SavingsActual = totals.SavingsActual.Add(tx.Amount)
		}
	}
	totals.VarianceExpenses = totals.ActualExpenses.Sub(totals.ExpectedExpenses)

	variance := Variance(Summarize(expenses))
	over, under := BiggestOverUnder(variance)

	return core.InsightPayload{
		Period:         period(filtered, sel),
		Totals:         totals,
		TopCategories:  topGroups(expenses, a.policy.InsightTopN),
		BiggestOver:    over,
		BiggestUnder:   under,
		MonthOverMonth: MonthOverMonth(MonthlyTrend(expenses)),
	}
}

// period is the selected months, or the months present when none are
// selected, in calendar order.
func period(rows []core.Transaction, sel Selection) []string {
	if len(sel.Months) > 0 {
		return core.SortMonths(sel.Months)
	}
	months := make([]string, 0, len(rows))
	for _, tx := range rows {
		months = append(months, tx.Month)
	}
	out := core.SortMonths(months)
	if out == nil {
		out = []string{}
	}
	return out
}

func topGroups(expenses []core.Transaction, limit int) []core.CategoryAmount {
	var actual []core.Transaction
	for _, tx := range expenses {
		if tx.Type == core.Actual {
			actual = append(actual, tx)
		}
	}
	ranked := rank(actual, func(tx core.Transaction) string { return tx.Group }, limit)
	out := make([]core.CategoryAmount, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, core.CategoryAmount{Category: r.Label, Amount: r.Amount})
	}
	return out
}

// BiggestOverUnder returns the variance rows with the largest and the
// smallest variance, whatever their sign: with every group under budget,
// over is the group closest to its budget. Both are nil only for an empty
// table. Ties keep the first group.
func BiggestOverUnder(rows []core.VarianceRow) (over, under *core.BudgetDelta) {
	for _, v := range rows {
		if over == nil || v.Variance.Cents > over.Delta.Cents {
			over = delta(v)
		}
		if under == nil || v.Variance.Cents < under.Delta.Cents {
			under = delta(v)
		}
	}
	return over, under
}

func delta(v core.VarianceRow) *core.BudgetDelta {
	return &core.BudgetDelta{Category: v.Group, Delta: v.Variance, Actual: v.Actual, Expected: v.Expected}
}

// MonthOverMonth compares the two chronologically last calendar months of
// trend. It returns nil with fewer than two calendar months; Unknown never
// takes part.
func MonthOverMonth(trend []core.MonthAmount) *core.MonthOverMonth {
	var dated []core.MonthAmount
	for _, m := range trend {
		if m.Month != core.UnknownMonth {
			dated = append(dated, m)
		}
	}
	if len(dated) < 2 {
		return nil
	}
	prev, last := dated[len(dated)-2], dated[len(dated)-1]
	return &core.MonthOverMonth{
		PrevMonth:  prev.Month,
		PrevAmount: prev.Amount,
		LastMonth:  last.Month,
		LastAmount: last.Amount,
		Change:     last.Amount.Sub(prev.Amount),
	}
}
