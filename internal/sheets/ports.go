package sheets

import (
	"context"
	"strings"
)

// Table is a raw row-set read from a tabular source. Header is the first
// non-blank record; Rows never contain blank records.
type Table struct {
	Source   string
	Header   []string
	Rows     [][]string
	Skipped  int    // malformed records dropped while reading
	Encoding string // detected text encoding, empty when not applicable
}

// Ports for inbound row sources.
type (
	// RowReader fetches a full raw row-set. Failures are reported as
	// *core.SourceError.
	RowReader interface {
		ReadRows(ctx context.Context) (*Table, error)
	}

	// Named is implemented by readers that can describe where they read from.
	Named interface {
		Name() string
	}
)

// BlankRow reports whether every cell of row is empty after trimming.
func BlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Cell returns row[idx], or "" when idx is out of range.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// NewTable splits records into header and rows, dropping blank records.
func NewTable(source string, records [][]string) *Table {
	t := &Table{Source: source}
	for _, rec := range records {
		if BlankRow(rec) {
			continue
		}
		if t.Header == nil {
			t.Header = rec
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t
}
