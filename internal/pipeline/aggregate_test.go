package pipeline

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/carlmjohnson/be"

	"findash/internal/core"
	"findash/internal/sheets"
)

func TestVarianceOverspendAndMissingExpected(t *testing.T) {
	rows := []core.Transaction{
		tx("January", "Groceries", "Food", core.Actual, 50000),
		tx("January", "Groceries", "Food", core.Expected, 45000),
		tx("January", "Cinema", "Fun", core.Actual, 1200),
	}
	v := Variance(Summarize(rows))
	be.Equal(t, 2, len(v))
	be.Equal(t, "Food", v[0].Group)
	be.Equal(t, int64(5000), v[0].Variance.Cents)
	be.Equal(t, int64(0), v[1].Expected.Cents)
	be.Equal(t, int64(1200), v[1].Variance.Cents)
}

func TestSummarizeFirstSeenOrder(t *testing.T) {
	rows := []core.Transaction{
		tx("January", "a", "Wants", core.Expected, 1),
		tx("January", "b", "Needs", core.Actual, 2),
		tx("January", "c", "Wants", core.Actual, 3),
		tx("January", "d", "Wants", core.Expected, 4),
		tx("January", "e", "Needs", "Forecast", 5),
	}
	s := Summarize(rows)
	got := make([]string, len(s))
	for i, r := range s {
		got[i] = fmt.Sprintf("%s/%s/%d", r.Group, r.Type, r.Amount.Cents)
	}
	be.AllEqual(t, []string{"Wants/Expected/5", "Wants/Actual/3", "Needs/Actual/2", "Needs/Forecast/5"}, got)
}

func TestMonthlyTrendCalendarOrder(t *testing.T) {
	rows := []core.Transaction{
		tx("March", "a", "x", core.Actual, 300),
		tx(core.UnknownMonth, "b", "x", core.Actual, 50),
		tx("January", "c", "x", core.Actual, 100),
		tx("January", "d", "x", core.Expected, 999),
	}
	trend := MonthlyTrend(rows)
	be.Equal(t, 3, len(trend))
	be.Equal(t, "January", trend[0].Month)
	be.Equal(t, int64(100), trend[0].Amount.Cents)
	be.Equal(t, "March", trend[1].Month)
	be.Equal(t, core.UnknownMonth, trend[2].Month)
}

func TestTopTenExcludesMortgage(t *testing.T) {
	a := NewAggregator(DefaultPolicy())
	var rows []core.Transaction
	for i := 1; i <= 15; i++ {
		rows = append(rows, tx("January", fmt.Sprintf("Title %02d", i), "Misc", core.Actual, int64(i*100)))
	}
	rows = append(rows,
		tx("January", "Home MORTGAGE", "Housing", core.Actual, 1_000_000),
		tx("February", "Title 01", "Misc", core.Actual, 50),
		tx("January", "Title 15", "Misc", core.Expected, 1_000_000),
	)
	top := a.Top(rows)
	be.Equal(t, 10, len(top))
	be.Equal(t, "Title 15", top[0].Label)
	be.Equal(t, int64(1500), top[0].Amount.Cents)
	be.Equal(t, "Title 06", top[9].Label)
	for _, l := range top {
		be.True(t, l.Label != "Home MORTGAGE")
	}
}

func TestTopStableOnTies(t *testing.T) {
	a := NewAggregator(DefaultPolicy())
	top := a.Top([]core.Transaction{
		tx("January", "B", "x", core.Actual, 10),
		tx("January", "A", "x", core.Actual, 10),
		tx("January", "C", "x", core.Actual, 20),
	})
	be.Equal(t, "C", top[0].Label)
	be.Equal(t, "B", top[1].Label)
	be.Equal(t, "A", top[2].Label)
}

func TestMonthlyByLabelGrid(t *testing.T) {
	rows := []core.Transaction{
		tx("March", "Rent", "x", core.Actual, 300),
		tx("January", "Rent", "x", core.Actual, 100),
		tx("January", "Food", "x", core.Actual, 40),
		tx("January", "Other", "x", core.Actual, 1),
	}
	grid := MonthlyByLabel(rows, []core.LabelAmount{{Label: "Rent"}, {Label: "Food"}})
	be.Equal(t, 3, len(grid))
	be.Equal(t, core.GridCell{Label: "Rent", Month: "January", Amount: core.Money{Cents: 100}}, grid[0])
	be.Equal(t, core.GridCell{Label: "Rent", Month: "March", Amount: core.Money{Cents: 300}}, grid[1])
	be.Equal(t, "Food", grid[2].Label)
}

func TestIncomeToggleAsymmetry(t *testing.T) {
	a := NewAggregator(DefaultPolicy())
	rows := []core.Transaction{
		tx("January", "Salary", "Income", core.Actual, 400000),
		tx("January", "Groceries", "Food", core.Actual, 30000),
		tx("January", "Groceries", "Food", core.Expected, 25000),
	}

	off := a.Aggregate(rows, Selection{IncludeIncome: false})
	for _, s := range off.Summary {
		be.True(t, s.Group != "Income")
	}
	for _, l := range off.Top {
		be.True(t, l.Label != "Salary")
	}
	be.Equal(t, int64(400000), off.Metrics.IncomeActual.Amount.Cents)
	be.Equal(t, int64(30000), off.Metrics.ActualSpending.Amount.Cents)
	be.Equal(t, int64(5000), off.Metrics.OverUnder.Amount.Cents)

	on := a.Aggregate(rows, Selection{IncludeIncome: true})
	be.Equal(t, "Salary", on.Top[0].Label)
	be.Equal(t, int64(400000), on.Metrics.IncomeActual.Amount.Cents)
	be.Equal(t, int64(430000), on.Metrics.ActualSpending.Amount.Cents)
	be.Equal(t, off.Insight.Totals, on.Insight.Totals)
}

func TestZeroPolicyRowsContributeZero(t *testing.T) {
	e := newEngine(t, func(p *Policy) { p.Amount = AmountZero })
	ds := build(t, e, Input{Transactions: table("tx", txHeader,
		[]string{"1/5/2025", "Coffee", "Food", "Actual", "4"},
		[]string{"1/6/2025", "Broken", "Food", "Actual", "#REF!"},
	)})
	rep := e.Report(ds, Selection{})
	be.Equal(t, int64(400), rep.Metrics.ActualSpending.Amount.Cents)
	be.Equal(t, 2, len(e.Transactions(ds, Selection{})))

	e = newEngine(t, nil)
	ds = build(t, e, Input{Transactions: table("tx", txHeader,
		[]string{"1/5/2025", "Coffee", "Food", "Actual", "4"},
		[]string{"1/6/2025", "Broken", "Food", "Actual", "#REF!"},
	)})
	rep = e.Report(ds, Selection{})
	for _, l := range rep.Top {
		be.True(t, l.Label != "Broken")
	}
	be.Equal(t, 1, len(e.Transactions(ds, Selection{})))
}

func TestReportIsDeterministic(t *testing.T) {
	txs, mapping := demoTables()
	e := newEngine(t, nil)
	in := Input{Transactions: txs, Mapping: mapping, MappingConfigured: true}
	first, err := json.Marshal(e.Report(build(t, e, in), Selection{}))
	be.NilErr(t, err)
	second, err := json.Marshal(e.Report(build(t, e, in), Selection{}))
	be.NilErr(t, err)
	be.Equal(t, string(first), string(second))
}

func TestMetricDisplay(t *testing.T) {
	be.Equal(t, "$1,234.50", Display(123450, "USD"))
	be.Equal(t, "-$12.00", Display(-1200, "usd"))
}

func demoTables() (txs, mapping *sheets.Table) {
	txs = table("tx", txHeader,
		[]string{"1/1/2025", "Salary", "Income", "Actual", "4,200.00"},
		[]string{"1/3/2025", "Rent", "Mortgage", "Actual", "1,500.00"},
		[]string{"1/8/2025", "Groceries", "Food", "Actual", "$412.30"},
		[]string{"1/8/2025", "Groceries", "Food", "Expected", "$400.00"},
		[]string{"2/9/2025", "Groceries", "Food", "Actual", "$455.10"},
		[]string{"2/14/2025", "Dinner", "Leisure", "Actual", "96.00"},
		[]string{"bad", "Gift", "Leisure", "Actual", "20"},
	)
	mapping = table("map", []string{"Category", "CategoryGroup"},
		[]string{"Income", "Income"},
		[]string{"Mortgage", "Needs"},
		[]string{"Food", "Needs"},
		[]string{"Leisure", "Wants"},
	)
	return txs, mapping
}
