package pipeline

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"findash/internal/core"
	"findash/internal/sheets"
)

// Rule maps header text onto a canonical field. A header matches when its
// lower-cased text contains one of the synonyms.
type Rule struct {
	Field    core.Field
	Synonyms []string
}

// TransactionRules are evaluated in order; the first matching rule wins.
var TransactionRules = []Rule{
	{Field: core.FieldDate, Synonyms: []string{"date", "month", "posted", "when"}},
	{Field: core.FieldType, Synonyms: []string{"type", "kind", "actual/expected"}},
	{Field: core.FieldAmount, Synonyms: []string{"amount", "amt", "value", "cost", "price", "spent"}},
	{Field: core.FieldCategory, Synonyms: []string{"category", "categoria"}},
	{Field: core.FieldTitle, Synonyms: []string{"title", "description", "desc", "payee", "merchant", "item", "name", "memo"}},
}

// MappingRules detect the columns of the mapping table. Group comes first so
// that "Category Group" is not taken for Category.
var MappingRules = []Rule{
	{Field: core.FieldGroup, Synonyms: []string{"group", "bucket"}},
	{Field: core.FieldCategory, Synonyms: []string{"category", "categoria"}},
	{Field: core.FieldTitle, Synonyms: []string{"title", "description", "desc", "payee", "merchant", "item", "name"}},
}

// minFuzzyLen is the shortest header considered for typo tolerance.
const minFuzzyLen = 5

// Columns is the resolved position of each canonical field in a header.
type Columns map[core.Field]int

// Has reports whether f was resolved.
func (c Columns) Has(f core.Field) bool {
	_, ok := c[f]
	return ok
}

// Get returns the cell of row holding f, or "" when f is unresolved or the
// row is short.
func (c Columns) Get(row []string, f core.Field) string {
	idx, ok := c[f]
	if !ok {
		return ""
	}
	return sheets.Cell(row, idx)
}

// DetectColumns resolves header cells against rules. Each header takes the
// first rule with a matching synonym; a field keeps the first header that
// resolved to it. Headers matching no synonym fall back to a Levenshtein
// distance of one against the synonyms.
func DetectColumns(header []string, rules []Rule) Columns {
	cols := Columns{}
	for i, h := range header {
		f, ok := matchRule(h, rules)
		if !ok {
			continue
		}
		if _, taken := cols[f]; !taken {
			cols[f] = i
		}
	}
	return cols
}

func matchRule(header string, rules []Rule) (core.Field, bool) {
	h := strings.ToLower(strings.TrimSpace(header))
	if h == "" {
		return "", false
	}
	for _, r := range rules {
		for _, syn := range r.Synonyms {
			if strings.Contains(h, syn) {
				return r.Field, true
			}
		}
	}
	letters := lettersOnly(h)
	if len(letters) < minFuzzyLen {
		return "", false
	}
	for _, r := range rules {
		for _, syn := range r.Synonyms {
			s := lettersOnly(syn)
			if len(s) < minFuzzyLen-1 {
				continue
			}
			if levenshtein.ComputeDistance(letters, s) <= 1 {
				return r.Field, true
			}
		}
	}
	return "", false
}

func lettersOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, s)
}

// PositionalColumns assigns the first len(order) columns to order, ignoring
// header text. Fields beyond the header width stay unresolved.
func PositionalColumns(header []string, order []core.Field) Columns {
	cols := Columns{}
	for i, f := range order {
		if i >= len(header) {
			break
		}
		if _, taken := cols[f]; !taken {
			cols[f] = i
		}
	}
	return cols
}

// NormalizeTransactions resolves the transaction columns of t. It fails with
// *core.MissingColumnsError when Date, Type or Amount is missing, or when
// neither Title nor Category is present.
func NormalizeTransactions(t *sheets.Table, p Policy) (Columns, error) {
	var cols Columns
	if p.Strategy == StrategyPositional {
		cols = PositionalColumns(t.Header, p.Positional)
	} else {
		cols = DetectColumns(t.Header, TransactionRules)
	}
	var missing []core.Field
	for _, f := range []core.Field{core.FieldDate, core.FieldTitle, core.FieldCategory, core.FieldType, core.FieldAmount} {
		switch f {
		case core.FieldTitle, core.FieldCategory:
			if !cols.Has(core.FieldTitle) && !cols.Has(core.FieldCategory) {
				missing = append(missing, f)
			}
		default:
			if !cols.Has(f) {
				missing = append(missing, f)
			}
		}
	}
	if len(missing) > 0 {
		return nil, &core.MissingColumnsError{Source: t.Source, Fields: missing, Header: t.Header}
	}
	return cols, nil
}

// NormalizeMapping resolves the mapping columns of t and the effective mode.
// In auto mode a Group column selects category mode, otherwise title mode.
// A "Title, CategoryGroup" table in auto mode is keyed by its Title column.
// The positional strategy reads the first two columns as key and label and
// treats auto as category mode.
func NormalizeMapping(t *sheets.Table, p Policy) (Columns, MappingMode, error) {
	mode := p.MappingMode
	if p.Strategy == StrategyPositional {
		if mode == MappingAuto {
			mode = MappingCategory
		}
		key, label := mappingFields(mode)
		cols := PositionalColumns(t.Header, []core.Field{key, label})
		return cols, mode, missingMappingColumns(t, cols, key, label)
	}
	cols := DetectColumns(t.Header, MappingRules)
	if mode == MappingAuto {
		mode = MappingTitle
		if cols.Has(core.FieldGroup) {
			mode = MappingCategory
			// "Title, CategoryGroup" sheets key groups by the category text
			// held in the Title column.
			if !cols.Has(core.FieldCategory) && cols.Has(core.FieldTitle) {
				cols[core.FieldCategory] = cols[core.FieldTitle]
			}
		}
	}
	key, label := mappingFields(mode)
	return cols, mode, missingMappingColumns(t, cols, key, label)
}

func mappingFields(mode MappingMode) (key, label core.Field) {
	if mode == MappingCategory {
		return core.FieldCategory, core.FieldGroup
	}
	return core.FieldTitle, core.FieldCategory
}

func missingMappingColumns(t *sheets.Table, cols Columns, fields ...core.Field) error {
	var missing []core.Field
	for _, f := range fields {
		if !cols.Has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &core.MissingColumnsError{Source: t.Source, Fields: missing, Header: t.Header}
}
