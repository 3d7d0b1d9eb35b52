package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/carlmjohnson/be"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantMonths   []string
		wantQuarters []int
		wantInclude  []string
		wantExclude  []string
		wantKeywords []string
		wantIncome   bool
		wantErr      bool
	}{
		{
			name: "empty query selects everything",
		},
		{
			name:       "comma separated months",
			query:      "months=jan,Feb,%20March%20",
			wantMonths: []string{"jan", "Feb", "March"},
		},
		{
			name:        "repeated and mixed",
			query:       "months=Jan&months=Feb,Mar&include=Wants,Needs&exclude=Rent",
			wantMonths:  []string{"Jan", "Feb", "Mar"},
			wantInclude: []string{"Wants", "Needs"},
			wantExclude: []string{"Rent"},
		},
		{
			name:         "quarters with and without prefix",
			query:        "quarters=Q1,2&quarters=q4",
			wantQuarters: []int{1, 2, 4},
		},
		{
			name:         "keywords and income",
			query:        "exclude_keywords=mortgage,tithe&include_income=true",
			wantKeywords: []string{"mortgage", "tithe"},
			wantIncome:   true,
		},
		{
			name:       "empty items are dropped",
			query:      "months=,,Jan,&include_income=0",
			wantMonths: []string{"Jan"},
		},
		{
			name:        "quoted label keeps its comma",
			query:       "include=%22Food,%20Dining%22,Wants&exclude=%22Say%20%22%22hi%22%22%22",
			wantInclude: []string{"Food, Dining", "Wants"},
			wantExclude: []string{`Say "hi"`},
		},
		{
			name:         "stray quote falls back to plain split",
			query:        "exclude_keywords=55%22%20tv,rent",
			wantKeywords: []string{`55" tv`, "rent"},
		},
		{
			name:    "bad quarter",
			query:   "quarters=first",
			wantErr: true,
		},
		{
			name:    "bad boolean",
			query:   "include_income=maybe",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			be.NilErr(t, err)
			sel, err := ParseSelection(q)
			if tt.wantErr {
				be.True(t, err != nil)
				return
			}
			be.NilErr(t, err)
			be.AllEqual(t, tt.wantMonths, sel.Months)
			be.AllEqual(t, tt.wantQuarters, sel.Quarters)
			be.AllEqual(t, tt.wantInclude, sel.IncludeCategories)
			be.AllEqual(t, tt.wantExclude, sel.ExcludeCategories)
			be.AllEqual(t, tt.wantKeywords, sel.ExcludeKeywords)
			be.Equal(t, tt.wantIncome, sel.IncludeIncome)
		})
	}
}

func TestSelectionFromRequest(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		wantMonths  []string
		wantErr     bool
	}{
		{
			name:       "query when body is empty",
			target:     "/api/narrative?months=March",
			wantMonths: []string{"March"},
		},
		{
			name:        "json body",
			target:      "/api/narrative?months=January",
			contentType: "application/json",
			body:        `{"months": ["February", "March"], "include_income": true}`,
			wantMonths:  []string{"February", "March"},
		},
		{
			name:       "json sniffed without content type",
			target:     "/api/narrative",
			body:       ` {"months": ["April"]}`,
			wantMonths: []string{"April"},
		},
		{
			name:        "form body",
			target:      "/api/narrative",
			contentType: "application/x-www-form-urlencoded",
			body:        "months=May,June",
			wantMonths:  []string{"May", "June"},
		},
		{
			name:        "unknown json field",
			target:      "/api/narrative",
			contentType: "application/json",
			body:        `{"month": ["May"]}`,
			wantErr:     true,
		},
		{
			name:        "body too large",
			target:      "/api/narrative",
			contentType: "application/json",
			body:        `{"months": ["` + strings.Repeat("a", maxBodyBytes) + `"]}`,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			sel, err := SelectionFromRequest(httptest.NewRecorder(), r)
			if tt.wantErr {
				be.True(t, err != nil)
				return
			}
			be.NilErr(t, err)
			be.AllEqual(t, tt.wantMonths, sel.Months)
		})
	}
}

func TestQuoteListItemRoundTrips(t *testing.T) {
	for _, label := range []string{"Wants", "Food, Dining", `12" pizza`, `"quoted", twice`} {
		q := url.Values{ParamInclude: {QuoteListItem(label), "Other"}}
		sel, err := ParseSelection(q)
		be.NilErr(t, err)
		be.AllEqual(t, []string{label, "Other"}, sel.IncludeCategories)
	}
}

func TestRequireMethod(t *testing.T) {
	be.True(t, RequireGET(httptest.NewRequest(http.MethodGet, "/", nil)) == nil)
	be.True(t, RequireGET(httptest.NewRequest(http.MethodHead, "/", nil)) == nil)
	be.True(t, RequirePOST(httptest.NewRequest(http.MethodPost, "/", nil)) == nil)

	resp := RequirePOST(httptest.NewRequest(http.MethodGet, "/", nil))
	be.True(t, resp != nil)
	be.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode())

	rr := httptest.NewRecorder()
	resp.Write(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	be.Equal(t, http.MethodPost, rr.Header().Get("Allow"))
}

func TestSanitizeInput(t *testing.T) {
	be.Equal(t, "Groceries", sanitizeInput("  Gro\x00cer\x1bies\n"))
	be.Equal(t, "Café", sanitizeInput("Café"))
}
