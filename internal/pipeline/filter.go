package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"findash/internal/core"
)

// Selection is the user's filter state. Empty Months, Quarters or
// IncludeCategories select everything.
type Selection struct {
	Months            []string `json:"months,omitempty"`
	Quarters          []int    `json:"quarters,omitempty"`
	IncludeCategories []string `json:"include,omitempty"`
	ExcludeCategories []string `json:"exclude,omitempty"`
	// ExcludeKeywords drops rows whose title or category contains any of
	// them, case-insensitively.
	ExcludeKeywords []string `json:"exclude_keywords,omitempty"`
	IncludeIncome   bool     `json:"include_income"`
}

// Normalize canonicalizes month names ("mar" -> "March"), deduplicates and
// orders months and quarters, and trims category labels.
func (s Selection) Normalize() (Selection, error) {
	out := Selection{IncludeIncome: s.IncludeIncome}
	months := make([]string, 0, len(s.Months))
	for _, m := range s.Months {
		if strings.TrimSpace(m) == "" {
			continue
		}
		cm, ok := core.CanonicalMonth(m)
		if !ok {
			return Selection{}, fmt.Errorf("unknown month %q", m)
		}
		months = append(months, cm)
	}
	out.Months = core.SortMonths(months)

	seenQ := map[int]bool{}
	for _, q := range s.Quarters {
		if q < 1 || q > 4 {
			return Selection{}, fmt.Errorf("quarter %d out of range 1-4", q)
		}
		if !seenQ[q] {
			seenQ[q] = true
			out.Quarters = append(out.Quarters, q)
		}
	}
	sort.Ints(out.Quarters)

	out.IncludeCategories = trimLabels(s.IncludeCategories)
	out.ExcludeCategories = trimLabels(s.ExcludeCategories)
	out.ExcludeKeywords = trimLabels(s.ExcludeKeywords)
	return out, nil
}

// Key identifies the month part of the selection; empty means all months.
func (s Selection) Key() string {
	return strings.Join(core.SortMonths(s.Months), ",")
}

func trimLabels(in []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Filter returns the rows matching s: months AND quarters AND
// (included ∩ ¬excluded) on the row group, minus keyword exclusions.
func Filter(rows []core.Transaction, s Selection) []core.Transaction {
	months := toSet(s.Months)
	quarters := map[int]bool{}
	for _, q := range s.Quarters {
		quarters[q] = true
	}
	include := toSet(s.IncludeCategories)
	exclude := toSet(s.ExcludeCategories)
	keywords := KeywordRule{Fields: []TextField{OnTitle, OnCategory}, Keywords: s.ExcludeKeywords}

	out := make([]core.Transaction, 0, len(rows))
	for _, tx := range rows {
		if len(months) > 0 && !months[tx.Month] {
			continue
		}
		if len(quarters) > 0 && !quarters[core.QuarterOf(tx.Month)] {
			continue
		}
		if len(include) > 0 && !include[tx.Group] {
			continue
		}
		if exclude[tx.Group] {
			continue
		}
		if keywords.Match(tx.Title, tx.Category, tx.Group) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func toSet(in []string) map[string]bool {
	m := make(map[string]bool, len(in))
	for _, v := range in {
		m[v] = true
	}
	return m
}

// Spending returns the rows that feed the spending charts: expenses, plus
// income when includeIncome is set. Savings and excluded rows never spend.
func Spending(rows []core.Transaction, c Classifier, includeIncome bool) []core.Transaction {
	out := make([]core.Transaction, 0, len(rows))
	for _, tx := range rows {
		switch c.Kind(tx) {
		case KindExpense:
			out = append(out, tx)
		case KindIncome:
			if includeIncome {
				out = append(out, tx)
			}
		}
	}
	return out
}
