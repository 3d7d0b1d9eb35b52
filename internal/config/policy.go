package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"findash/internal/core"
	"findash/internal/pipeline"
)

// PolicyFile is the TOML shape of a pipeline policy. Keys absent from the
// file keep their default value.
type PolicyFile struct {
	Schema  SchemaSection  `toml:"schema"`
	Parsing ParsingSection `toml:"parsing"`
	Labels  LabelsSection  `toml:"labels"`
	Report  ReportSection  `toml:"report"`
}

type SchemaSection struct {
	Strategy    string   `toml:"strategy"`
	Positional  []string `toml:"positional"`
	MappingMode string   `toml:"mapping_mode"`
}

type ParsingSection struct {
	Amount        string   `toml:"amount"`
	Date          string   `toml:"date"`
	DateLayout    string   `toml:"date_layout"`
	DateFallbacks []string `toml:"date_fallbacks"`
	DefaultYear   int      `toml:"default_year"`
}

type LabelsSection struct {
	Vocabulary         []string `toml:"vocabulary"`
	IncomeKeywords     []string `toml:"income_keywords"`
	SavingsLabels      []string `toml:"savings_labels"`
	ExcludeKeywords    []string `toml:"exclude_keywords"`
	TopExcludeKeywords []string `toml:"top_exclude_keywords"`
}

type ReportSection struct {
	TopN        int    `toml:"top_n"`
	InsightTopN int    `toml:"insight_top_n"`
	Currency    string `toml:"currency"`
	MaxIssues   int    `toml:"max_issues"`
}

// NewPolicyFile renders p in file form.
func NewPolicyFile(p pipeline.Policy) PolicyFile {
	positional := make([]string, len(p.Positional))
	for i, f := range p.Positional {
		positional[i] = string(f)
	}
	return PolicyFile{
		Schema: SchemaSection{
			Strategy:    string(p.Strategy),
			Positional:  positional,
			MappingMode: string(p.MappingMode),
		},
		Parsing: ParsingSection{
			Amount:        string(p.Amount),
			Date:          string(p.Date),
			DateLayout:    p.DateLayout,
			DateFallbacks: p.DateFallbacks,
			DefaultYear:   p.DefaultYear,
		},
		Labels: LabelsSection{
			Vocabulary:         p.Vocabulary,
			IncomeKeywords:     p.IncomeKeywords,
			SavingsLabels:      p.SavingsLabels,
			ExcludeKeywords:    p.ExcludeKeywords,
			TopExcludeKeywords: p.TopExcludeKeywords,
		},
		Report: ReportSection{
			TopN:        p.TopN,
			InsightTopN: p.InsightTopN,
			Currency:    p.Currency,
			MaxIssues:   p.MaxIssues,
		},
	}
}

// Policy converts the file back into a pipeline policy.
func (f PolicyFile) Policy() pipeline.Policy {
	positional := make([]core.Field, len(f.Schema.Positional))
	for i, name := range f.Schema.Positional {
		positional[i] = core.Field(name)
	}
	return pipeline.Policy{
		Strategy:           pipeline.Strategy(strings.ToLower(f.Schema.Strategy)),
		Positional:         positional,
		MappingMode:        pipeline.MappingMode(strings.ToLower(f.Schema.MappingMode)),
		Amount:             pipeline.AmountPolicy(strings.ToLower(f.Parsing.Amount)),
		Date:               pipeline.DatePolicy(strings.ToLower(f.Parsing.Date)),
		DateLayout:         f.Parsing.DateLayout,
		DateFallbacks:      f.Parsing.DateFallbacks,
		DefaultYear:        f.Parsing.DefaultYear,
		Vocabulary:         f.Labels.Vocabulary,
		IncomeKeywords:     f.Labels.IncomeKeywords,
		SavingsLabels:      f.Labels.SavingsLabels,
		ExcludeKeywords:    f.Labels.ExcludeKeywords,
		TopExcludeKeywords: f.Labels.TopExcludeKeywords,
		TopN:               f.Report.TopN,
		InsightTopN:        f.Report.InsightTopN,
		Currency:           strings.ToUpper(f.Report.Currency),
		MaxIssues:          f.Report.MaxIssues,
	}
}

// LoadPolicy reads a TOML policy file over the defaults. An empty path
// returns the default policy. Unknown keys are rejected so that typos do
// not silently fall back to a default.
func LoadPolicy(path string) (pipeline.Policy, error) {
	if path == "" {
		return pipeline.DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Policy{}, fmt.Errorf("reading policy: %w", err)
	}
	return ParsePolicy(string(data))
}

// ParsePolicy decodes TOML policy text over the defaults.
func ParsePolicy(data string) (pipeline.Policy, error) {
	file := NewPolicyFile(pipeline.DefaultPolicy())
	md, err := toml.Decode(data, &file)
	if err != nil {
		return pipeline.Policy{}, fmt.Errorf("parsing policy: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return pipeline.Policy{}, fmt.Errorf("parsing policy: unknown keys %s", strings.Join(keys, ", "))
	}
	p := file.Policy()
	if err := p.Validate(); err != nil {
		return pipeline.Policy{}, err
	}
	return p, nil
}

// WritePolicy encodes p as TOML.
func WritePolicy(w io.Writer, p pipeline.Policy) error {
	return toml.NewEncoder(w).Encode(NewPolicyFile(p))
}
