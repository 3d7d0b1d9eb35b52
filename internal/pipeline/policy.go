// Package pipeline turns raw transaction and mapping tables into a cleaned,
// categorized Dataset and computes the aggregate views over it.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"findash/internal/core"
)

// AmountPolicy decides what happens to rows whose amount cannot be parsed.
type AmountPolicy string

const (
	// AmountDrop removes the row from the dataset.
	AmountDrop AmountPolicy = "drop"
	// AmountZero keeps the row with a zero amount.
	AmountZero AmountPolicy = "zero"
)

// DatePolicy decides what happens to rows whose date cannot be parsed.
type DatePolicy string

const (
	// DateUnknown keeps the row in the UnknownMonth bucket.
	DateUnknown DatePolicy = "unknown"
	// DateDrop removes the row from the dataset.
	DateDrop DatePolicy = "drop"
)

// Strategy selects how source headers are mapped onto canonical fields.
type Strategy string

const (
	StrategyDetect     Strategy = "detect"
	StrategyPositional Strategy = "positional"
)

// MappingMode selects which column the mapping table is keyed on.
type MappingMode string

const (
	MappingAuto     MappingMode = "auto"
	MappingTitle    MappingMode = "title"    // title -> category
	MappingCategory MappingMode = "category" // category -> group
)

// Policy gathers every tunable of the pipeline.
type Policy struct {
	Strategy   Strategy
	Positional []core.Field

	MappingMode MappingMode

	Amount        AmountPolicy
	Date          DatePolicy
	DateLayout    string
	DateFallbacks []string
	// DefaultYear is used for dates given as a bare month name; 0 means the
	// year the dataset is built.
	DefaultYear int

	// Vocabulary, when non-empty, is the closed set of allowed group labels.
	Vocabulary []string

	IncomeKeywords     []string
	SavingsLabels      []string
	ExcludeKeywords    []string
	TopExcludeKeywords []string

	TopN        int
	InsightTopN int
	Currency    string
	// MaxIssues caps the offending rows listed in the quality report.
	MaxIssues int
}

// DefaultPolicy mirrors the behavior of the original dashboard sheet.
func DefaultPolicy() Policy {
	return Policy{
		Strategy:    StrategyDetect,
		Positional:  []core.Field{core.FieldDate, core.FieldCategory, core.FieldType, core.FieldAmount},
		MappingMode: MappingAuto,
		Amount:      AmountDrop,
		Date:        DateUnknown,
		DateLayout:  "1/2/2006",
		DateFallbacks: []string{
			"2006-01-02",
			"01/02/2006",
			"1/2/06",
			"2006/01/02",
			"1/2/2006 15:04:05",
			"2006-01-02 15:04:05",
			"2 Jan 2006",
			"02-Jan-2006",
			"Jan 2, 2006",
			"January 2, 2006",
			"January 2006",
			"Jan 2006",
			"2006-01",
			"2006-01-02T15:04:05Z07:00",
		},
		IncomeKeywords:     []string{"income"},
		SavingsLabels:      []string{"Savings", "Investment"},
		ExcludeKeywords:    []string{"total", "non-investment"},
		TopExcludeKeywords: []string{"mortgage"},
		TopN:               10,
		InsightTopN:        5,
		Currency:           "USD",
		MaxIssues:          500,
	}
}

// Validate reports every invalid setting at once.
func (p Policy) Validate() error {
	var errs []string
	switch p.Strategy {
	case StrategyDetect, StrategyPositional:
	default:
		errs = append(errs, fmt.Sprintf("unknown schema strategy %q", p.Strategy))
	}
	if p.Strategy == StrategyPositional && len(p.Positional) == 0 {
		errs = append(errs, "positional strategy requires a column order")
	}
	for _, f := range p.Positional {
		if !isTransactionField(f) {
			errs = append(errs, fmt.Sprintf("unknown positional field %q", f))
		}
	}
	switch p.MappingMode {
	case MappingAuto, MappingTitle, MappingCategory:
	default:
		errs = append(errs, fmt.Sprintf("unknown mapping mode %q", p.MappingMode))
	}
	switch p.Amount {
	case AmountDrop, AmountZero:
	default:
		errs = append(errs, fmt.Sprintf("unknown amount policy %q (want drop or zero)", p.Amount))
	}
	switch p.Date {
	case DateUnknown, DateDrop:
	default:
		errs = append(errs, fmt.Sprintf("unknown date policy %q (want unknown or drop)", p.Date))
	}
	if strings.TrimSpace(p.DateLayout) == "" {
		errs = append(errs, "date layout must not be empty")
	}
	if p.TopN <= 0 {
		errs = append(errs, "top N must be positive")
	}
	if p.InsightTopN <= 0 {
		errs = append(errs, "insight top N must be positive")
	}
	if len(p.Currency) != 3 {
		errs = append(errs, fmt.Sprintf("currency %q is not an ISO 4217 code", p.Currency))
	}
	if len(errs) > 0 {
		return errors.New("invalid pipeline policy:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

func isTransactionField(f core.Field) bool {
	switch f {
	case core.FieldDate, core.FieldTitle, core.FieldCategory, core.FieldType, core.FieldAmount:
		return true
	}
	return false
}
