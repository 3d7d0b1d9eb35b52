package pipeline

import (
	"testing"
	"time"

	"findash/internal/core"
	"findash/internal/sheets"
)

var txHeader = []string{"Date", "Title", "Category", "Type", "Amount"}

func table(source string, header []string, rows ...[]string) *sheets.Table {
	return &sheets.Table{Source: source, Header: header, Rows: rows}
}

func newEngine(t *testing.T, mutate func(*Policy)) *Engine {
	t.Helper()
	p := DefaultPolicy()
	p.DefaultYear = 2025
	if mutate != nil {
		mutate(&p)
	}
	e, err := New(p)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	e.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func build(t *testing.T, e *Engine, in Input) *Dataset {
	t.Helper()
	ds, err := e.Build(in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return ds
}

func tx(month, title, group string, typ core.TxType, cents int64) core.Transaction {
	return core.Transaction{Month: month, Title: title, Category: group, Group: group, Type: typ, Amount: core.Money{Cents: cents}}
}
