// Package memory provides in-process row sources for tests and offline mode.
package memory

import (
	"bufio"
	"context"
	"encoding/csv"
	"os"
	"strings"
	"sync"

	"findash/internal/core"
	ports "findash/internal/sheets"
)

// Store is a RowReader backed by an in-memory table. It can be swapped or
// failed at runtime, which makes it useful for exercising refresh paths.
type Store struct {
	mu    sync.Mutex
	name  string
	table ports.Table
	err   error
	reads int
}

var (
	_ ports.RowReader = (*Store)(nil)
	_ ports.Named     = (*Store)(nil)
)

// New returns a Store serving header and rows.
func New(name string, header []string, rows [][]string) *Store {
	s := &Store{name: name}
	s.Set(header, rows)
	return s
}

// NewFromFile loads a CSV seed file. Lines starting with '#' are comments.
// A missing or unreadable file falls back to def.
func NewFromFile(name, path string, def *Store) *Store {
	records := readRecords(path)
	if len(records) == 0 {
		return def
	}
	t := ports.NewTable(name, records)
	return New(name, t.Header, t.Rows)
}

func (s *Store) Name() string { return s.name }

// Set replaces the served table.
func (s *Store) Set(header []string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = ports.Table{Source: s.name, Header: append([]string(nil), header...)}
	for _, r := range rows {
		if ports.BlankRow(r) {
			continue
		}
		s.table.Rows = append(s.table.Rows, append([]string(nil), r...))
	}
}

// Fail makes subsequent reads return err wrapped as a source error. A nil err
// restores normal reads.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Reads returns how many times ReadRows has been called.
func (s *Store) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// ReadRows returns a deep copy of the current table.
func (s *Store) ReadRows(_ context.Context) (*ports.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, &core.SourceError{Source: s.name, Err: s.err}
	}
	out := &ports.Table{
		Source: s.table.Source,
		Header: append([]string(nil), s.table.Header...),
		Rows:   make([][]string, len(s.table.Rows)),
	}
	for i, r := range s.table.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out, nil
}

func readRecords(path string) [][]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var b strings.Builder
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	r := csv.NewReader(strings.NewReader(b.String()))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil
	}
	return records
}
