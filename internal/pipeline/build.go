package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"findash/internal/core"
	"findash/internal/sheets"
)

// Dataset is one cleaned, categorized load of the sources. A new Dataset is
// built on every load and never mutated afterwards.
type Dataset struct {
	ID       string             `json:"id"`
	LoadedAt time.Time          `json:"loaded_at"`
	Source   string             `json:"source"`
	Encoding string             `json:"encoding,omitempty"`
	Records  []core.Transaction `json:"-"`
	Quality  Quality            `json:"quality"`
	Mapping  MappingStatus      `json:"mapping"`
	Warnings []string           `json:"warnings"`
}

// Input carries the raw tables of one load. Mapping is nil when no mapping
// source is configured or when it failed, in which case MappingErr is set.
type Input struct {
	Transactions      *sheets.Table
	Mapping           *sheets.Table
	MappingConfigured bool
	MappingErr        error
}

// Options lists the values available to the filter controls.
type Options struct {
	Months     []string `json:"months"`
	Quarters   []int    `json:"quarters"`
	Categories []string `json:"categories"`
}

// Engine builds datasets and reports with a fixed policy.
type Engine struct {
	policy     Policy
	aggregator Aggregator
	now        func() time.Time
}

// New validates p and returns an Engine.
func New(p Policy) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: p, aggregator: NewAggregator(p), now: time.Now}, nil
}

func (e *Engine) Policy() Policy { return e.policy }

// Build runs normalization, cleaning and categorization. It fails only on
// transaction source conditions: a nil table or *core.MissingColumnsError.
// Mapping problems degrade to Uncategorized and are reported as warnings.
func (e *Engine) Build(in Input) (*Dataset, error) {
	if in.Transactions == nil {
		return nil, &core.SourceError{Source: "transactions", Err: errors.New("no data")}
	}
	cols, err := NormalizeTransactions(in.Transactions, e.policy)
	if err != nil {
		return nil, err
	}
	now := e.now()
	ds := &Dataset{
		ID:       uuid.NewString(),
		LoadedAt: now,
		Source:   in.Transactions.Source,
		Encoding: in.Transactions.Encoding,
		Quality:  Quality{Issues: []Issue{}},
		Warnings: []string{},
	}
	records := NewCleaner(e.policy, now).Clean(in.Transactions, cols, &ds.Quality)

	var (
		mapping  *Mapping
		degraded bool
	)
	ds.Mapping.Configured = in.MappingConfigured
	switch {
	case !in.MappingConfigured:
	case in.MappingErr != nil || in.Mapping == nil:
		degraded = true
		ds.Mapping.Error = errString(in.MappingErr, "mapping unavailable")
	default:
		mcols, mode, err := NormalizeMapping(in.Mapping, e.policy)
		if err != nil {
			degraded = true
			ds.Mapping.Error = err.Error()
			break
		}
		m := BuildMapping(in.Mapping, mcols, mode)
		mapping = &m
		ds.Mapping.Loaded = true
		ds.Mapping.Mode = mode
		ds.Mapping.Entries = len(m.Entries)
		ds.Mapping.Duplicates = m.Duplicates
	}
	if degraded {
		ds.Warnings = append(ds.Warnings, fmt.Sprintf("Mapping could not be loaded (%s). All items set to %q.", ds.Mapping.Error, core.Uncategorized))
	}

	NewCategorizer(mapping, degraded, e.policy.Vocabulary).Apply(records, &ds.Quality, e.policy.MaxIssues)
	ds.Records = records
	ds.Quality.UniqueCategories = uniqueCategories(records)
	ds.Warnings = append(ds.Warnings, qualityWarnings(ds.Quality)...)
	return ds, nil
}

// Report aggregates ds for sel. sel should be normalized.
func (e *Engine) Report(ds *Dataset, sel Selection) Report {
	return e.aggregator.Aggregate(ds.Records, sel)
}

// Transactions returns the raw filtered rows of ds, zero-filled rows
// included.
func (e *Engine) Transactions(ds *Dataset, sel Selection) []core.Transaction {
	return Filter(ds.Records, sel)
}

// Options returns the months, quarters and group labels present in ds.
func (ds *Dataset) Options() Options {
	var months []string
	seenGroup := map[string]bool{}
	opts := Options{Categories: []string{}, Quarters: []int{}}
	quarters := map[int]bool{}
	for _, tx := range ds.Records {
		months = append(months, tx.Month)
		if q := core.QuarterOf(tx.Month); q > 0 {
			quarters[q] = true
		}
		if !seenGroup[tx.Group] {
			seenGroup[tx.Group] = true
			opts.Categories = append(opts.Categories, tx.Group)
		}
	}
	opts.Months = core.SortMonths(months)
	if opts.Months == nil {
		opts.Months = []string{}
	}
	for q := 1; q <= 4; q++ {
		if quarters[q] {
			opts.Quarters = append(opts.Quarters, q)
		}
	}
	return opts
}

// uniqueCategories counts the distinct source categories of the kept rows.
func uniqueCategories(records []core.Transaction) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.Category] = struct{}{}
	}
	return len(seen)
}

func qualityWarnings(q Quality) []string {
	var out []string
	if q.UnknownDate > 0 {
		out = append(out, fmt.Sprintf("%d row(s) have unparseable dates and are shown under %q.", q.UnknownDate, core.UnknownMonth))
	}
	if q.DroppedDate > 0 {
		out = append(out, fmt.Sprintf("%d row(s) with unparseable dates were dropped.", q.DroppedDate))
	}
	if q.DroppedAmount > 0 {
		out = append(out, fmt.Sprintf("%d row(s) with unparseable amounts were dropped.", q.DroppedAmount))
	}
	if q.ZeroedAmount > 0 {
		out = append(out, fmt.Sprintf("%d row(s) with unparseable amounts count as zero.", q.ZeroedAmount))
	}
	if q.SkippedMalformed > 0 {
		out = append(out, fmt.Sprintf("%d malformed source record(s) were skipped.", q.SkippedMalformed))
	}
	if q.Clamped > 0 {
		out = append(out, fmt.Sprintf("%d row(s) resolved to labels outside the allowed vocabulary.", q.Clamped))
	}
	return out
}

func errString(err error, def string) string {
	if err == nil {
		return def
	}
	return err.Error()
}
