// Package http exposes the dashboard aggregates as a JSON API.
//
// This file turns query strings and request bodies into pipeline selections.

package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"findash/internal/pipeline"
)

// maxBodyBytes bounds POST bodies; a selection is a handful of short lists.
const maxBodyBytes = 64 << 10

// Query parameter names accepted by every selection endpoint.
const (
	ParamMonths          = "months"
	ParamQuarters        = "quarters"
	ParamInclude         = "include"
	ParamExclude         = "exclude"
	ParamExcludeKeywords = "exclude_keywords"
	ParamIncludeIncome   = "include_income"
)

// ParseSelection reads a selection from query values. List parameters may be
// repeated, comma separated, or both; an item containing a comma is written
// in double quotes. Month names are left for
// Selection.Normalize to canonicalize.
func ParseSelection(q url.Values) (pipeline.Selection, error) {
	sel := pipeline.Selection{
		Months:            listParam(q, ParamMonths),
		IncludeCategories: listParam(q, ParamInclude),
		ExcludeCategories: listParam(q, ParamExclude),
		ExcludeKeywords:   listParam(q, ParamExcludeKeywords),
	}

	for _, v := range listParam(q, ParamQuarters) {
		n, err := parseQuarter(v)
		if err != nil {
			return pipeline.Selection{}, err
		}
		sel.Quarters = append(sel.Quarters, n)
	}

	if v := strings.TrimSpace(q.Get(ParamIncludeIncome)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return pipeline.Selection{}, fmt.Errorf("%s: %q is not a boolean", ParamIncludeIncome, v)
		}
		sel.IncludeIncome = b
	}
	return sel, nil
}

// parseQuarter accepts "2" and "Q2". Range checks happen in Normalize.
func parseQuarter(v string) (int, error) {
	s := strings.TrimPrefix(strings.ToUpper(v), "Q")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a quarter", ParamQuarters, v)
	}
	return n, nil
}

func listParam(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, part := range splitList(raw) {
			if part = sanitizeInput(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// splitList splits a comma separated value. Items may be double quoted, as
// in CSV, to carry a comma: "Food, Dining",Wants. A value that is not valid
// CSV is split on every comma.
func splitList(raw string) []string {
	if !strings.Contains(raw, `"`) {
		return strings.Split(raw, ",")
	}
	r := csv.NewReader(strings.NewReader(raw))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return strings.Split(raw, ",")
	}
	var out []string
	for _, rec := range records {
		out = append(out, rec...)
	}
	return out
}

// QuoteListItem quotes s so that splitList returns it as one item.
func QuoteListItem(s string) string {
	if !strings.ContainsAny(s, `,"`) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// RequestBodyParser reads a request body once and decodes it as JSON or
// form data depending on its content.
type RequestBodyParser struct {
	body        []byte
	contentType string
	parsed      bool
	err         error
	formData    url.Values
	isJSON      bool
}

// NewRequestBodyParser reads at most maxBodyBytes of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Empty reports whether the body carried nothing but whitespace.
func (p *RequestBodyParser) Empty() bool {
	return len(strings.TrimSpace(string(p.body))) == 0
}

// IsJSON reports whether the body is JSON, by content type or first byte.
func (p *RequestBodyParser) IsJSON() bool {
	if strings.HasPrefix(p.contentType, "application/json") {
		return true
	}
	trimmed := strings.TrimSpace(string(p.body))
	return trimmed != "" && trimmed[0] == '{'
}

// Selection decodes the body as a selection: JSON objects use the Selection
// field names, form bodies use the query parameter names.
func (p *RequestBodyParser) Selection() (pipeline.Selection, error) {
	if p.err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(p.err, &tooBig) {
			return pipeline.Selection{}, fmt.Errorf("request body exceeds %d bytes", tooBig.Limit)
		}
		return pipeline.Selection{}, fmt.Errorf("read body: %w", p.err)
	}
	if p.IsJSON() {
		var sel pipeline.Selection
		dec := json.NewDecoder(strings.NewReader(string(p.body)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sel); err != nil {
			return pipeline.Selection{}, fmt.Errorf("invalid JSON selection: %w", err)
		}
		return sel, nil
	}
	if !p.parsed {
		p.parsed = true
		p.formData, p.err = url.ParseQuery(string(p.body))
	}
	if p.err != nil {
		return pipeline.Selection{}, fmt.Errorf("invalid form body: %w", p.err)
	}
	return ParseSelection(p.formData)
}

// SelectionFromRequest reads the selection of a POST request from its body
// when one is present and from the query string otherwise.
func SelectionFromRequest(w http.ResponseWriter, r *http.Request) (pipeline.Selection, error) {
	p := NewRequestBodyParser(w, r)
	if p.err == nil && p.Empty() {
		return ParseSelection(r.URL.Query())
	}
	return p.Selection()
}

// RequireMethod returns a 405 response unless the request uses one of
// methods. HEAD is accepted wherever GET is.
func RequireMethod(r *http.Request, methods ...string) *JSONResponseBuilder {
	for _, m := range methods {
		if r.Method == m || (m == http.MethodGet && r.Method == http.MethodHead) {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequireGET is a convenience function for read-only handlers.
func RequireGET(r *http.Request) *JSONResponseBuilder {
	return RequireMethod(r, http.MethodGet)
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *JSONResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}
