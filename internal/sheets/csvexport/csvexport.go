// Package csvexport reads published spreadsheet CSV exports, either over
// HTTP(S) or from a local file.
package csvexport

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"findash/internal/core"
	ports "findash/internal/sheets"
)

const (
	EncodingUTF8        = "utf-8"
	EncodingUTF16       = "utf-16"
	EncodingWindows1252 = "windows-1252"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 32 << 20
)

// Source reads one CSV document identified by a URL or a file path.
type Source struct {
	name   string
	id     string
	client *http.Client
}

var (
	_ ports.RowReader = (*Source)(nil)
	_ ports.Named     = (*Source)(nil)
)

// Option customizes a Source.
type Option func(*Source)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.client = &http.Client{Timeout: d}
		}
	}
}

// New returns a Source named name reading id, which is either an http(s) URL
// or a filesystem path.
func New(name, id string, opts ...Option) *Source {
	s := &Source{
		name:   name,
		id:     strings.TrimSpace(id),
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Name() string { return s.name }

// ReadRows fetches and parses the document. Malformed records are skipped and
// counted in Table.Skipped.
func (s *Source) ReadRows(ctx context.Context) (*ports.Table, error) {
	raw, err := s.fetch(ctx)
	if err != nil {
		return nil, &core.SourceError{Source: s.name, Err: err}
	}
	text, enc, err := decode(raw)
	if err != nil {
		return nil, &core.SourceError{Source: s.name, Err: fmt.Errorf("decode: %w", err)}
	}
	records, skipped, err := parseCSV(ctx, s.name, text)
	if err != nil {
		return nil, &core.SourceError{Source: s.name, Err: fmt.Errorf("parse: %w", err)}
	}
	t := ports.NewTable(s.name, records)
	if t.Header == nil {
		return nil, &core.SourceError{Source: s.name, Err: errors.New("empty document")}
	}
	t.Rows, skipped = dropOverlong(t.Header, t.Rows, skipped)
	t.Skipped = skipped
	t.Encoding = enc
	slog.DebugContext(ctx, "CSV source read",
		"source", s.name,
		"rows", len(t.Rows),
		"skipped", skipped,
		"encoding", enc)
	return t, nil
}

func (s *Source) fetch(ctx context.Context) ([]byte, error) {
	if s.id == "" {
		return nil, errors.New("no source configured")
	}
	if !isURL(s.id) {
		b, err := os.ReadFile(s.id)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return b, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.id, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", redact(s.id), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get %s: unexpected status %d", redact(s.id), resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

// dropOverlong removes records carrying values beyond the header width.
// Trailing empty cells are tolerated.
func dropOverlong(header []string, rows [][]string, skipped int) ([][]string, int) {
	out := rows[:0]
	for _, row := range rows {
		if len(row) > len(header) && !ports.BlankRow(row[len(header):]) {
			skipped++
			continue
		}
		out = append(out, row)
	}
	return out, skipped
}

func isURL(id string) bool {
	l := strings.ToLower(id)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// redact drops the query string, which for published sheets carries the gid.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

// decode converts raw bytes to UTF-8. A UTF-8 BOM is stripped; a UTF-16 BOM
// selects UTF-16; bytes that are not valid UTF-8 are read as Windows-1252.
func decode(b []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}):
		return b[3:], EncodingUTF8, nil
	case bytes.HasPrefix(b, []byte{0xFF, 0xFE}), bytes.HasPrefix(b, []byte{0xFE, 0xFF}):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(b)
		if err != nil {
			return nil, EncodingUTF16, err
		}
		return out, EncodingUTF16, nil
	case utf8.Valid(b):
		return b, EncodingUTF8, nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return nil, EncodingWindows1252, err
	}
	return out, EncodingWindows1252, nil
}

// parseCSV reads every record it can. Records the csv reader rejects are
// skipped and counted. An unterminated quote makes the reader swallow the
// rest of the input into one bad record, so after any parse error reading
// resumes on the line following the start of the rejected record.
func parseCSV(ctx context.Context, source string, b []byte) ([][]string, int, error) {
	var (
		out     [][]string
		skipped int
		offset  int
	)
	r := newCSVReader(b)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, skipped, err
			}
			skipped++
			line := max(pe.StartLine, 1)
			slog.DebugContext(ctx, "Skipping malformed CSV record",
				"source", source, "line", offset+line, "error", pe.Err)
			b = dropLines(b, line)
			offset += line
			r = newCSVReader(b)
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

func newCSVReader(b []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r
}

// dropLines returns b without its first n lines.
func dropLines(b []byte, n int) []byte {
	for ; n > 0; n-- {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			return nil
		}
		b = b[i+1:]
	}
	return b
}
