package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"findash/internal/pipeline"
	"findash/internal/services"
)

// Output formats accepted by the --output flag.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

var (
	purple    = lipgloss.Color("99")
	gray      = lipgloss.Color("245")
	lightGray = lipgloss.Color("241")

	titleStyle = lipgloss.NewStyle().Foreground(purple).Bold(true).MarginTop(1)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

func newTable(headers ...string) *table.Table {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddRowStyle := cellStyle.Foreground(gray)
	evenRowStyle := cellStyle.Foreground(lightGray)

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return evenRowStyle
			default:
				return oddRowStyle
			}
		}).
		Headers(headers...)
}

// RenderDashboard prints the key metrics, category summary, variance and
// top labels of a dashboard.
func RenderDashboard(w io.Writer, d *services.Dashboard, currency string) {
	months := "all months"
	if len(d.Selection.Months) > 0 {
		months = strings.Join(d.Selection.Months, ", ")
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Dashboard: %s (%d rows, snapshot %s)", months, d.Rows, d.Snapshot.ID)))
	for _, warning := range d.Snapshot.Warnings {
		fmt.Fprintln(w, warnStyle.Render("warning: "+warning))
	}

	metrics := newTable("METRIC", "VALUE")
	for _, m := range []struct{ name, display string }{
		{"Actual spending", d.Metrics.ActualSpending.Display},
		{"Expected spending", d.Metrics.ExpectedSpending.Display},
		{"Over / under", d.Metrics.OverUnder.Display},
		{"Income", d.Metrics.IncomeActual.Display},
	} {
		metrics.Row(m.name, m.display)
	}
	fmt.Fprintln(w, metrics)

	if len(d.Variance) > 0 {
		fmt.Fprintln(w, titleStyle.Render("Budget vs actual"))
		t := newTable("GROUP", "ACTUAL", "EXPECTED", "VARIANCE")
		for _, v := range d.Variance {
			t.Row(v.Group,
				pipeline.Display(v.Actual.Cents, currency),
				pipeline.Display(v.Expected.Cents, currency),
				pipeline.Display(v.Variance.Cents, currency))
		}
		fmt.Fprintln(w, t)
	}

	if len(d.Top) > 0 {
		fmt.Fprintln(w, titleStyle.Render("Top spending"))
		t := newTable("#", "LABEL", "AMOUNT")
		for i, la := range d.Top {
			t.Row(strconv.Itoa(i+1), la.Label, pipeline.Display(la.Amount.Cents, currency))
		}
		fmt.Fprintln(w, t)
	}

	if len(d.Trend) > 0 {
		fmt.Fprintln(w, titleStyle.Render("Monthly trend"))
		t := newTable("MONTH", "ACTUAL SPENDING")
		for _, p := range d.Trend {
			t.Row(p.Month, pipeline.Display(p.Amount.Cents, currency))
		}
		fmt.Fprintln(w, t)
	}
}

// RenderQuality prints the data-quality counters and the first offending
// rows.
func RenderQuality(w io.Writer, q *services.QualityReport, maxIssues int) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Data quality (snapshot %s, source %s)", q.Snapshot.ID, q.Snapshot.Source)))
	s := q.Summary
	t := newTable("CHECK", "ROWS")
	for _, c := range []struct {
		name string
		n    int
	}{
		{"Source rows", s.SourceRows},
		{"Kept", s.Kept},
		{"Malformed (skipped)", s.SkippedMalformed},
		{"Dropped", s.Dropped},
		{"Zeroed amount", s.Zeroed},
		{"Unknown date", s.UnknownDate},
		{"Unmapped", s.Unmapped},
		{"Clamped to vocabulary", s.Clamped},
		{"Unique categories", s.UniqueCategories},
	} {
		t.Row(c.name, strconv.Itoa(c.n))
	}
	fmt.Fprintln(w, t)

	issues := q.Quality.Issues
	if len(issues) == 0 {
		return
	}
	if maxIssues > 0 && len(issues) > maxIssues {
		issues = issues[:maxIssues]
	}
	fmt.Fprintln(w, titleStyle.Render("Issues"))
	it := newTable("ROW", "FIELD", "VALUE", "ACTION")
	for _, is := range issues {
		it.Row(strconv.Itoa(is.Row), string(is.Field), is.Value, string(is.Action))
	}
	fmt.Fprintln(w, it)
}

// RenderTransactions prints the filtered raw rows.
func RenderTransactions(w io.Writer, list *services.TransactionList, currency string) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d transactions", list.Count)))
	t := newTable("ROW", "MONTH", "TITLE", "CATEGORY", "GROUP", "TYPE", "AMOUNT")
	for _, r := range list.Rows {
		t.Row(strconv.Itoa(r.Row), r.Month, r.Title, r.Category, r.Group, string(r.Type),
			pipeline.Display(r.Amount.Cents, currency))
	}
	fmt.Fprintln(w, t)
}
