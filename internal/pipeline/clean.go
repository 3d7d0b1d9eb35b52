package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"findash/internal/core"
	"findash/internal/sheets"
)

// Action records what the pipeline did with an offending cell.
type Action string

const (
	ActionDropped      Action = "dropped"
	ActionZeroed       Action = "zeroed"
	ActionUnknownMonth Action = "unknown_month"
	ActionClamped      Action = "clamped"
	ActionUnmapped     Action = "unmapped"
)

// Issue is a row-level data problem. Issues never fail the pipeline.
type Issue struct {
	Row    int        `json:"row"`
	Field  core.Field `json:"field"`
	Value  string     `json:"value"`
	Action Action     `json:"action"`
}

// Quality summarizes what cleaning and categorization did to the source rows.
type Quality struct {
	SourceRows       int     `json:"source_rows"`
	Kept             int     `json:"kept"`
	SkippedMalformed int     `json:"skipped_malformed"`
	DroppedAmount    int     `json:"dropped_amount"`
	ZeroedAmount     int     `json:"zeroed_amount"`
	DroppedDate      int     `json:"dropped_date"`
	UnknownDate      int     `json:"unknown_date"`
	Clamped          int     `json:"clamped"`
	Unmapped         int     `json:"unmapped"`
	UniqueCategories int     `json:"unique_categories"`
	Issues           []Issue `json:"issues"`
	IssuesTruncated  bool    `json:"issues_truncated,omitempty"`
}

func (q *Quality) add(is Issue, limit int) {
	if limit > 0 && len(q.Issues) >= limit {
		q.IssuesTruncated = true
		return
	}
	q.Issues = append(q.Issues, is)
}

// UnknownRows returns the issues of rows kept in the UnknownMonth bucket.
func (q Quality) UnknownRows() []Issue {
	var out []Issue
	for _, is := range q.Issues {
		if is.Action == ActionUnknownMonth {
			out = append(out, is)
		}
	}
	return out
}

// Cleaner coerces raw cells into transactions according to a Policy.
type Cleaner struct {
	policy Policy
	year   int
}

// NewCleaner returns a Cleaner. now supplies the default year for bare month
// names when the policy does not set one.
func NewCleaner(p Policy, now time.Time) Cleaner {
	year := p.DefaultYear
	if year == 0 {
		year = now.Year()
	}
	return Cleaner{policy: p, year: year}
}

// Clean converts every data row of t. Row-level problems are recorded in q.
func (c Cleaner) Clean(t *sheets.Table, cols Columns, q *Quality) []core.Transaction {
	q.SourceRows += len(t.Rows)
	q.SkippedMalformed += t.Skipped
	out := make([]core.Transaction, 0, len(t.Rows))
	for i, row := range t.Rows {
		tx, ok := c.cleanRow(i+1, row, cols, q)
		if ok {
			out = append(out, tx)
		}
	}
	q.Kept += len(out)
	return out
}

func (c Cleaner) cleanRow(n int, row []string, cols Columns, q *Quality) (core.Transaction, bool) {
	tx := core.Transaction{Row: n}
	limit := c.policy.MaxIssues

	rawAmount := cols.Get(row, core.FieldAmount)
	cents, amountErr := core.ParseAmount(rawAmount)
	if amountErr != nil && c.policy.Amount != AmountZero {
		q.DroppedAmount++
		q.add(Issue{Row: n, Field: core.FieldAmount, Value: rawAmount, Action: ActionDropped}, limit)
		return tx, false
	}
	rawDate := cols.Get(row, core.FieldDate)
	d, dated := c.ParseDate(rawDate)
	if !dated && c.policy.Date == DateDrop {
		q.DroppedDate++
		q.add(Issue{Row: n, Field: core.FieldDate, Value: rawDate, Action: ActionDropped}, limit)
		return tx, false
	}

	if amountErr != nil {
		q.ZeroedAmount++
		q.add(Issue{Row: n, Field: core.FieldAmount, Value: rawAmount, Action: ActionZeroed}, limit)
		cents = 0
		tx.AmountCoerced = true
	}
	tx.Amount = core.Money{Cents: cents}

	if dated {
		tx.Date = core.Date{Time: d}
		tx.Month = core.MonthName(d)
	} else {
		q.UnknownDate++
		q.add(Issue{Row: n, Field: core.FieldDate, Value: rawDate, Action: ActionUnknownMonth}, limit)
		tx.Month = core.UnknownMonth
		tx.DateUnknown = true
	}

	tx.Category = strings.TrimSpace(cols.Get(row, core.FieldCategory))
	if cols.Has(core.FieldTitle) {
		tx.Title = strings.TrimSpace(cols.Get(row, core.FieldTitle))
	} else {
		tx.Title = tx.Category
	}
	if tx.Category == "" {
		tx.Category = core.Uncategorized
	}
	tx.Group = tx.Category
	tx.Type = core.NormalizeType(cols.Get(row, core.FieldType))
	return tx, true
}

// ParseDate tries the primary layout, then each fallback, then spreadsheet
// serial day numbers, then a bare month name in the default year.
func (c Cleaner) ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	layouts := append([]string{c.policy.DateLayout}, c.policy.DateFallbacks...)
	for _, layout := range layouts {
		if layout == "" {
			continue
		}
		if d, err := time.Parse(layout, s); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	if d, ok := parseSerial(s); ok {
		return d, true
	}
	if !isDigits(s) {
		if m, ok := core.CanonicalMonth(s); ok && m != core.UnknownMonth {
			return time.Date(c.year, time.Month(core.MonthRank(m)+1), 1, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Serial day numbers as exported by spreadsheets (days since 1899-12-30).
// The window keeps plain years and small integers from being read as dates.
const (
	minSerial = 20000 // 1954-10-03
	maxSerial = 80000 // 2119-01-10
)

var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func parseSerial(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < minSerial || f > maxSerial {
		return time.Time{}, false
	}
	return serialEpoch.AddDate(0, 0, int(f)), true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
