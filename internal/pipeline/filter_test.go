package pipeline

import (
	"testing"

	"github.com/carlmjohnson/be"

	"findash/internal/core"
)

func TestSelectionNormalize(t *testing.T) {
	sel, err := Selection{
		Months:            []string{"mar", "January", " ", "3"},
		Quarters:          []int{2, 1, 2},
		IncludeCategories: []string{" Needs ", "Needs"},
	}.Normalize()
	be.NilErr(t, err)
	be.AllEqual(t, []string{"January", "March"}, sel.Months)
	be.AllEqual(t, []int{1, 2}, sel.Quarters)
	be.AllEqual(t, []string{"Needs"}, sel.IncludeCategories)
	be.Equal(t, "January,March", sel.Key())

	_, err = Selection{Months: []string{"Smarch"}}.Normalize()
	be.True(t, err != nil)
	_, err = Selection{Quarters: []int{5}}.Normalize()
	be.True(t, err != nil)
}

func TestFilterComposition(t *testing.T) {
	rows := []core.Transaction{
		tx("January", "Rent", "Needs", core.Actual, 100),
		tx("April", "Cinema", "Wants", core.Actual, 200),
		tx("April", "Market", "Needs", core.Actual, 300),
		tx(core.UnknownMonth, "Gift", "Wants", core.Actual, 400),
		tx("April", "Monthly total", "Needs", core.Actual, 500),
	}

	be.Equal(t, 5, len(Filter(rows, Selection{})))

	got := Filter(rows, Selection{Quarters: []int{2}, IncludeCategories: []string{"Needs", "Wants"}, ExcludeCategories: []string{"Wants"}})
	be.Equal(t, 2, len(got))
	be.Equal(t, "Market", got[0].Title)

	got = Filter(rows, Selection{Months: []string{core.UnknownMonth}})
	be.Equal(t, 1, len(got))
	be.Equal(t, "Gift", got[0].Title)

	got = Filter(rows, Selection{Months: []string{"April"}, ExcludeKeywords: []string{"TOTAL"}})
	be.Equal(t, 2, len(got))
}

func TestSpendingAndKinds(t *testing.T) {
	c := NewClassifier(DefaultPolicy())
	rows := []core.Transaction{
		tx("January", "Rent", "Needs", core.Actual, 100),
		tx("January", "Salary", "Income", core.Actual, 1000),
		tx("January", "Brokerage", "Investment", core.Actual, 50),
		tx("January", "Grand Total", "Needs", core.Actual, 1150),
		tx("January", "Fund", "Non-Investment", core.Actual, 10),
	}
	be.Equal(t, KindExpense, c.Kind(rows[0]))
	be.Equal(t, KindIncome, c.Kind(rows[1]))
	be.Equal(t, KindSavings, c.Kind(rows[2]))
	be.Equal(t, KindExcluded, c.Kind(rows[3]))
	be.Equal(t, KindExcluded, c.Kind(rows[4]))

	be.Equal(t, 1, len(Spending(rows, c, false)))
	be.Equal(t, 2, len(Spending(rows, c, true)))
}

func TestTithesIsOptIn(t *testing.T) {
	row := tx("January", "Church", "Tithes", core.Actual, 10)
	be.Equal(t, KindExpense, NewClassifier(DefaultPolicy()).Kind(row))

	p := DefaultPolicy()
	p.ExcludeKeywords = append(p.ExcludeKeywords, "tithes")
	be.Equal(t, KindExcluded, NewClassifier(p).Kind(row))
}

func TestKeywordAndAnyRules(t *testing.T) {
	r := AnyRule{
		KeywordRule{Fields: []TextField{OnTitle}, Keywords: []string{"interest"}},
		LabelRule{Fields: []TextField{OnGroup}, Labels: []string{"fixed"}},
	}
	be.True(t, r.Match("Loan INTEREST", "Bank", "Debt"))
	be.True(t, r.Match("Rent", "Housing", " Fixed "))
	be.False(t, r.Match("Rent", "interest", "Needs"))
	be.False(t, AnyRule{}.Match("a", "b", "c"))
}
