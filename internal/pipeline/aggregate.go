package pipeline

import (
	"sort"
	"strings"

	money "github.com/Rhymond/go-money"

	"findash/internal/core"
)

// Report holds every aggregate view for one selection.
type Report struct {
	Selection Selection           `json:"selection"`
	Rows      int                 `json:"rows"`
	Summary   []core.SummaryRow   `json:"summary"`
	Trend     []core.MonthAmount  `json:"trend"`
	Variance  []core.VarianceRow  `json:"variance"`
	Top       []core.LabelAmount  `json:"top"`
	Grid      []core.GridCell     `json:"grid"`
	Metrics   core.Metrics        `json:"metrics"`
	Insight   core.InsightPayload `json:"insight"`
}

// Aggregator computes the aggregate views of a filtered record set.
type Aggregator struct {
	policy     Policy
	classifier Classifier
}

func NewAggregator(p Policy) Aggregator {
	return Aggregator{policy: p, classifier: NewClassifier(p)}
}

// Aggregate filters rows by sel and computes every view. rows is not modified.
func (a Aggregator) Aggregate(rows []core.Transaction, sel Selection) Report {
	filtered := Filter(rows, sel)
	spending := Spending(filtered, a.classifier, sel.IncludeIncome)
	summary := Summarize(spending)
	variance := Variance(summary)
	top := a.Top(spending)
	return Report{
		Selection: sel,
		Rows:      len(filtered),
		Summary:   summary,
		Trend:     MonthlyTrend(spending),
		Variance:  variance,
		Top:       top,
		Grid:      MonthlyByLabel(spending, top),
		Metrics:   a.Metrics(filtered, spending),
		Insight:   a.Insight(filtered, sel),
	}
}

// Summarize sums amounts by (group, type). Groups keep first-seen order and
// types keep first-seen order within their group.
func Summarize(rows []core.Transaction) []core.SummaryRow {
	type key struct {
		group string
		typ   core.TxType
	}
	var groups []string
	typesOf := map[string][]core.TxType{}
	sums := map[key]int64{}
	for _, tx := range rows {
		k := key{tx.Group, tx.Type}
		if _, ok := typesOf[tx.Group]; !ok {
			groups = append(groups, tx.Group)
			typesOf[tx.Group] = nil
		}
		if _, ok := sums[k]; !ok {
			typesOf[tx.Group] = append(typesOf[tx.Group], tx.Type)
		}
		sums[k] += tx.Amount.Cents
	}
	out := make([]core.SummaryRow, 0, len(sums))
	for _, g := range groups {
		for _, t := range typesOf[g] {
			out = append(out, core.SummaryRow{Group: g, Type: t, Amount: core.Money{Cents: sums[key{g, t}]}})
		}
	}
	return out
}

// MonthlyTrend sums Actual rows by month in calendar order, Unknown last.
// Only months present in rows are emitted.
func MonthlyTrend(rows []core.Transaction) []core.MonthAmount {
	sums := map[string]int64{}
	var months []string
	for _, tx := range rows {
		if tx.Type != core.Actual {
			continue
		}
		if _, ok := sums[tx.Month]; !ok {
			months = append(months, tx.Month)
		}
		sums[tx.Month] += tx.Amount.Cents
	}
	out := make([]core.MonthAmount, 0, len(months))
	for _, m := range core.SortMonths(months) {
		out = append(out, core.MonthAmount{Month: m, Amount: core.Money{Cents: sums[m]}})
	}
	return out
}

// Variance pivots summary rows into actual/expected per group. Missing cells
// are zero; groups with neither type are skipped.
func Variance(summary []core.SummaryRow) []core.VarianceRow {
	var order []string
	byGroup := map[string]*core.VarianceRow{}
	for _, s := range summary {
		if s.Type != core.Actual && s.Type != core.Expected {
			continue
		}
		v, ok := byGroup[s.Group]
		if !ok {
			v = &core.VarianceRow{Group: s.Group}
			byGroup[s.Group] = v
			order = append(order, s.Group)
		}
		if s.Type == core.Actual {
			v.Actual = v.Actual.Add(s.Amount)
		} else {
			v.Expected = v.Expected.Add(s.Amount)
		}
	}
	out := make([]core.VarianceRow, 0, len(order))
	for _, g := range order {
		v := byGroup[g]
		v.Variance = v.Actual.Sub(v.Expected)
		out = append(out, *v)
	}
	return out
}

// Top ranks Actual spending by title, skipping rows whose title or category
// matches a top-exclusion keyword. Ties keep first-seen order.
func (a Aggregator) Top(rows []core.Transaction) []core.LabelAmount {
	skip := KeywordRule{Fields: []TextField{OnTitle, OnCategory}, Keywords: a.policy.TopExcludeKeywords}
	var actual []core.Transaction
	for _, tx := range rows {
		if tx.Type == core.Actual && !skip.Match(tx.Title, tx.Category, tx.Group) {
			actual = append(actual, tx)
		}
	}
	return rank(actual, func(tx core.Transaction) string { return tx.Title }, a.policy.TopN)
}

func rank(rows []core.Transaction, label func(core.Transaction) string, limit int) []core.LabelAmount {
	idx := map[string]int{}
	var out []core.LabelAmount
	for _, tx := range rows {
		l := label(tx)
		i, ok := idx[l]
		if !ok {
			i = len(out)
			idx[l] = i
			out = append(out, core.LabelAmount{Label: l})
		}
		out[i].Amount = out[i].Amount.Add(tx.Amount)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.Cents > out[j].Amount.Cents })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MonthlyByLabel sums Actual rows of the top labels by (label, month). Labels
// follow top order and months follow calendar order.
func MonthlyByLabel(rows []core.Transaction, top []core.LabelAmount) []core.GridCell {
	type key struct{ label, month string }
	wanted := map[string]bool{}
	for _, t := range top {
		wanted[t.Label] = true
	}
	sums := map[key]int64{}
	monthsOf := map[string][]string{}
	for _, tx := range rows {
		if tx.Type != core.Actual || !wanted[tx.Title] {
			continue
		}
		k := key{tx.Title, tx.Month}
		if _, ok := sums[k]; !ok {
			monthsOf[tx.Title] = append(monthsOf[tx.Title], tx.Month)
		}
		sums[k] += tx.Amount.Cents
	}
	var out []core.GridCell
	for _, t := range top {
		for _, m := range core.SortMonths(monthsOf[t.Label]) {
			out = append(out, core.GridCell{Label: t.Label, Month: m, Amount: core.Money{Cents: sums[key{t.Label, m}]}})
		}
	}
	return out
}

// Metrics computes the key figures. Spending metrics follow the spending
// set; income always comes from the full filtered set.
func (a Aggregator) Metrics(filtered, spending []core.Transaction) core.Metrics {
	var actual, expected, income int64
	for _, tx := range spending {
		switch tx.Type {
		case core.Actual:
			actual += tx.Amount.Cents
		case core.Expected:
			expected += tx.Amount.Cents
		}
	}
	for _, tx := range filtered {
		if tx.Type == core.Actual && a.classifier.Kind(tx) == KindIncome {
			income += tx.Amount.Cents
		}
	}
	return core.Metrics{
		ActualSpending:   a.metric("Actual Spending", actual),
		ExpectedSpending: a.metric("Expected Spending", expected),
		OverUnder:        a.metric("Over / Under Budget", actual-expected),
		IncomeActual:     a.metric("Income Actual", income),
	}
}

func (a Aggregator) metric(name string, cents int64) core.Metric {
	return core.Metric{Name: name, Amount: core.Money{Cents: cents}, Display: Display(cents, a.policy.Currency)}
}

// Display formats cents in currency, e.g. "$1,234.50".
func Display(cents int64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = money.USD
	}
	return money.New(cents, code).Display()
}
