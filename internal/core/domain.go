package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Actual   TxType = "Actual"
	Expected TxType = "Expected"

	// Uncategorized is the sentinel label for rows without a resolvable category.
	Uncategorized = "Uncategorized"
)

// Canonical field names shared by the transaction and mapping schemas.
const (
	FieldDate     Field = "Date"
	FieldTitle    Field = "Title"
	FieldCategory Field = "Category"
	FieldType     Field = "Type"
	FieldAmount   Field = "Amount"
	FieldGroup    Field = "CategoryGroup"
)

type (
	TxType string

	Field string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		Row      int // 1-based data row in the source, header excluded
		Date     Date
		Month    string // full month name, or UnknownMonth
		Title    string
		Category string
		Group    string // category group; equals Category when no group mapping is used
		Type     TxType
		Amount   Money

		AmountCoerced bool // amount was not parseable and zero-filled
		DateUnknown   bool
	}
)

var (
	// ErrSourceUnavailable marks a source that could not be fetched or decoded.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMissingColumns marks a source whose header lacks required canonical fields.
	ErrMissingColumns = errors.New("missing required columns")
)

// SourceError reports a failed read of a named source.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrSourceUnavailable, e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool { return target == ErrSourceUnavailable }

// MissingColumnsError lists the canonical fields that could not be resolved
// from a source header.
type MissingColumnsError struct {
	Source string
	Fields []Field
	Header []string
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("%s in %s: %s (got headers=%v)", ErrMissingColumns, e.Source, strings.Join(names, ","), e.Header)
}

func (e *MissingColumnsError) Is(target error) bool { return target == ErrMissingColumns }

// NormalizeType maps common spellings onto Actual/Expected. Unknown values are
// returned trimmed and unchanged.
func NormalizeType(s string) TxType {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "actual", "actuals", "spent", "real":
		return Actual
	case "expected", "budget", "budgeted", "planned", "plan":
		return Expected
	}
	return TxType(s)
}

// MarshalJSON renders the date as YYYY-MM-DD, or null when unknown.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

// Dated reports whether the transaction carries a parsed date.
func (t Transaction) Dated() bool {
	return !t.DateUnknown && !t.Date.IsZero()
}
