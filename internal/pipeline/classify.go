package pipeline

import (
	"strings"

	"findash/internal/core"
)

// TextField names the transaction text a predicate looks at.
type TextField string

const (
	OnTitle    TextField = "title"
	OnCategory TextField = "category"
	OnGroup    TextField = "group"
)

// Predicate is a pure test over the text fields of a row.
type Predicate interface {
	Match(title, category, group string) bool
}

func pick(f TextField, title, category, group string) string {
	switch f {
	case OnTitle:
		return title
	case OnCategory:
		return category
	case OnGroup:
		return group
	}
	return ""
}

// KeywordRule matches when any of Fields contains any keyword,
// case-insensitively.
type KeywordRule struct {
	Fields   []TextField
	Keywords []string
}

func (r KeywordRule) Match(title, category, group string) bool {
	for _, f := range r.Fields {
		v := strings.ToLower(pick(f, title, category, group))
		if v == "" {
			continue
		}
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" && strings.Contains(v, k) {
				return true
			}
		}
	}
	return false
}

// LabelRule matches when any of Fields equals one of Labels, ignoring case
// and surrounding space.
type LabelRule struct {
	Fields []TextField
	Labels []string
}

func (r LabelRule) Match(title, category, group string) bool {
	for _, f := range r.Fields {
		v := strings.TrimSpace(pick(f, title, category, group))
		for _, l := range r.Labels {
			if v != "" && strings.EqualFold(v, strings.TrimSpace(l)) {
				return true
			}
		}
	}
	return false
}

// AnyRule matches when one of its predicates does. An empty AnyRule never
// matches.
type AnyRule []Predicate

func (a AnyRule) Match(title, category, group string) bool {
	for _, p := range a {
		if p != nil && p.Match(title, category, group) {
			return true
		}
	}
	return false
}

// Kind is the role a row plays in the aggregates.
type Kind int

const (
	KindExpense Kind = iota
	KindIncome
	KindSavings
	KindExcluded
)

func (k Kind) String() string {
	switch k {
	case KindIncome:
		return "income"
	case KindSavings:
		return "savings"
	case KindExcluded:
		return "excluded"
	}
	return "expense"
}

// Classifier assigns a Kind to rows. Excluded is checked first, then income,
// then savings; anything else is an expense.
type Classifier struct {
	Income   Predicate
	Savings  Predicate
	Excluded Predicate
}

// NewClassifier builds the row predicates of p.
func NewClassifier(p Policy) Classifier {
	return Classifier{
		Income:   KeywordRule{Fields: []TextField{OnCategory, OnGroup}, Keywords: p.IncomeKeywords},
		Savings:  LabelRule{Fields: []TextField{OnCategory, OnGroup}, Labels: p.SavingsLabels},
		Excluded: KeywordRule{Fields: []TextField{OnTitle, OnCategory}, Keywords: p.ExcludeKeywords},
	}
}

func (c Classifier) Kind(tx core.Transaction) Kind {
	switch {
	case match(c.Excluded, tx):
		return KindExcluded
	case match(c.Income, tx):
		return KindIncome
	case match(c.Savings, tx):
		return KindSavings
	}
	return KindExpense
}

func match(p Predicate, tx core.Transaction) bool {
	return p != nil && p.Match(tx.Title, tx.Category, tx.Group)
}
