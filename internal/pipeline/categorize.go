package pipeline

import (
	"strings"

	"findash/internal/core"
	"findash/internal/sheets"
)

// Mapping is the lookup table used to resolve group labels.
type Mapping struct {
	Mode    MappingMode
	Entries map[string]string
	// Duplicates counts keys overwritten by a later row.
	Duplicates int
}

// MappingStatus describes the mapping a dataset was built with.
type MappingStatus struct {
	Configured bool        `json:"configured"`
	Loaded     bool        `json:"loaded"`
	Mode       MappingMode `json:"mode,omitempty"`
	Entries    int         `json:"entries"`
	Duplicates int         `json:"duplicates,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// BuildMapping reads key/label pairs from t. Keys and labels are trimmed;
// rows with an empty key or label are ignored and the last duplicate wins.
func BuildMapping(t *sheets.Table, cols Columns, mode MappingMode) Mapping {
	key, label := mappingFields(mode)
	m := Mapping{Mode: mode, Entries: make(map[string]string, len(t.Rows))}
	for _, row := range t.Rows {
		k := strings.TrimSpace(cols.Get(row, key))
		v := strings.TrimSpace(cols.Get(row, label))
		if k == "" || v == "" {
			continue
		}
		if _, dup := m.Entries[k]; dup {
			m.Duplicates++
		}
		m.Entries[k] = v
	}
	return m
}

// Categorizer resolves the group label of each transaction.
type Categorizer struct {
	mapping    *Mapping
	degraded   bool
	vocabulary map[string]struct{}
}

// NewCategorizer returns a Categorizer. A nil mapping means no mapping source
// is configured and groups equal categories; degraded means a configured
// mapping failed to load and every row becomes Uncategorized.
func NewCategorizer(m *Mapping, degraded bool, vocabulary []string) Categorizer {
	c := Categorizer{mapping: m, degraded: degraded}
	if len(vocabulary) > 0 {
		c.vocabulary = make(map[string]struct{}, len(vocabulary))
		for _, v := range vocabulary {
			c.vocabulary[strings.TrimSpace(v)] = struct{}{}
		}
		c.vocabulary[core.Uncategorized] = struct{}{}
	}
	return c
}

// Resolve returns the group label for a title/category pair. Lookup is exact
// and case-sensitive on trimmed text. mapped is false when the key had no
// entry; clamped is true when the label fell outside the vocabulary.
func (c Categorizer) Resolve(title, category string) (label string, mapped, clamped bool) {
	switch {
	case c.degraded:
		return core.Uncategorized, false, false
	case c.mapping == nil:
		label, mapped = category, true
	default:
		key := strings.TrimSpace(category)
		if c.mapping.Mode == MappingTitle {
			key = strings.TrimSpace(title)
		}
		label, mapped = c.mapping.Entries[key]
		if !mapped {
			return core.Uncategorized, false, false
		}
	}
	if label == "" {
		label = core.Uncategorized
	}
	if c.vocabulary != nil {
		if _, ok := c.vocabulary[label]; !ok {
			return core.Uncategorized, mapped, true
		}
	}
	return label, mapped, false
}

// Apply sets Group on every row and records unmapped and clamped rows in q.
func (c Categorizer) Apply(rows []core.Transaction, q *Quality, limit int) {
	for i := range rows {
		tx := &rows[i]
		label, mapped, clamped := c.Resolve(tx.Title, tx.Category)
		tx.Group = label
		switch {
		case clamped:
			q.Clamped++
			q.add(Issue{Row: tx.Row, Field: core.FieldGroup, Value: c.rawLabel(tx), Action: ActionClamped}, limit)
		case !mapped && !c.degraded:
			q.Unmapped++
			q.add(Issue{Row: tx.Row, Field: c.keyField(), Value: c.key(tx), Action: ActionUnmapped}, limit)
		}
	}
}

func (c Categorizer) keyField() core.Field {
	if c.mapping != nil && c.mapping.Mode == MappingTitle {
		return core.FieldTitle
	}
	return core.FieldCategory
}

func (c Categorizer) key(tx *core.Transaction) string {
	if c.keyField() == core.FieldTitle {
		return tx.Title
	}
	return tx.Category
}

func (c Categorizer) rawLabel(tx *core.Transaction) string {
	if c.mapping == nil {
		return tx.Category
	}
	return c.mapping.Entries[strings.TrimSpace(c.key(tx))]
}
