package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carlmjohnson/be"

	"findash/internal/core"
	"findash/internal/pipeline"
)

func TestLoadPolicyDefaults(t *testing.T) {
	p, err := LoadPolicy("")
	be.NilErr(t, err)
	be.Equal(t, pipeline.DefaultPolicy().Currency, p.Currency)
	be.Equal(t, pipeline.AmountDrop, p.Amount)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		check   func(t *testing.T, p pipeline.Policy)
		wantErr string
	}{
		{
			name: "partial file keeps defaults",
			input: `
[parsing]
amount = "Zero"

[report]
top_n = 3
currency = "eur"
`,
			check: func(t *testing.T, p pipeline.Policy) {
				be.Equal(t, pipeline.AmountZero, p.Amount)
				be.Equal(t, 3, p.TopN)
				be.Equal(t, "EUR", p.Currency)
				be.Equal(t, pipeline.DateUnknown, p.Date)
				be.Equal(t, 5, p.InsightTopN)
				be.AllEqual(t, []string{"mortgage"}, p.TopExcludeKeywords)
			},
		},
		{
			name: "positional schema and vocabulary",
			input: `
[schema]
strategy = "positional"
positional = ["Date", "Title", "Amount"]

[labels]
vocabulary = ["Needs", "Wants", "Savings"]
`,
			check: func(t *testing.T, p pipeline.Policy) {
				be.Equal(t, pipeline.StrategyPositional, p.Strategy)
				be.AllEqual(t, []core.Field{core.FieldDate, core.FieldTitle, core.FieldAmount}, p.Positional)
				be.AllEqual(t, []string{"Needs", "Wants", "Savings"}, p.Vocabulary)
			},
		},
		{
			name:    "unknown key",
			input:   "[report]\ntopn = 3\n",
			wantErr: "unknown keys report.topn",
		},
		{
			name:    "invalid value",
			input:   "[parsing]\namount = \"guess\"\n",
			wantErr: "unknown amount policy",
		},
		{
			name:    "malformed toml",
			input:   "[report\n",
			wantErr: "parsing policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePolicy(tt.input)
			if tt.wantErr != "" {
				be.True(t, err != nil)
				be.True(t, strings.Contains(err.Error(), tt.wantErr))
				return
			}
			be.NilErr(t, err)
			tt.check(t, p)
		})
	}
}

func TestWritePolicyRoundTrips(t *testing.T) {
	want := pipeline.DefaultPolicy()
	want.Vocabulary = []string{"Needs", "Wants"}
	want.DefaultYear = 2025

	var buf bytes.Buffer
	be.NilErr(t, WritePolicy(&buf, want))

	path := filepath.Join(t.TempDir(), "policy.toml")
	be.NilErr(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := LoadPolicy(path)
	be.NilErr(t, err)
	be.Equal(t, want.DefaultYear, got.DefaultYear)
	be.AllEqual(t, want.Vocabulary, got.Vocabulary)
	be.AllEqual(t, want.DateFallbacks, got.DateFallbacks)
	be.Equal(t, want.MaxIssues, got.MaxIssues)
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.toml"))
	be.True(t, err != nil)
}
