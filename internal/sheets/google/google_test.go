package google

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"findash/internal/core"
)

func TestTableFromValues(t *testing.T) {
	values := [][]interface{}{
		{},
		{"Date", "Title", "Category", "Type", "Amount"},
		{"1/5/2025", " Coffee ", "Food", "Actual", 4.5},
		{"", "", nil},
		{"1/6/2025", "Rent"},
	}
	tbl := tableFromValues("transactions", values)
	if len(tbl.Header) != 5 || tbl.Header[0] != "Date" {
		t.Fatalf("unexpected header: %v", tbl.Header)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(tbl.Rows), tbl.Rows)
	}
	if tbl.Rows[0][1] != "Coffee" || tbl.Rows[0][4] != "4.5" {
		t.Fatalf("unexpected first row: %v", tbl.Rows[0])
	}
	if len(tbl.Rows[1]) != 2 {
		t.Fatalf("ragged row should be kept as-is: %v", tbl.Rows[1])
	}
}

func TestReadRowsWithoutServiceIsSourceError(t *testing.T) {
	s, err := New(nil, "transactions", Config{SpreadsheetID: "id", Range: "Transactions!A:E"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = s.ReadRows(context.Background())
	if !errors.Is(err, core.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(nil, "transactions", Config{Range: "A:E"}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if _, err := New(nil, "mapping", Config{SpreadsheetID: "id"}); err == nil || !strings.Contains(err.Error(), "mapping") {
		t.Fatalf("expected missing range error naming the source, got %v", err)
	}
}

func TestNewService_MissingCredentials(t *testing.T) {
	for _, k := range []string{"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	_, err := NewService(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Transactions", 2025, "2025 Transactions"},
		{"Mapping", 2024, "2024 Mapping"},
		{"", 2023, ""},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}
	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestPrefixRange(t *testing.T) {
	tests := map[string]string{
		"Transactions!A:E":        "'2025 Transactions'!A:E",
		"'My Mapping'!A:C":        "'2025 My Mapping'!A:C",
		"'2024 Transactions'!A:E": "'2024 Transactions'!A:E",
		"A:E":                     "A:E",
	}
	for in, want := range tests {
		if got := prefixRange(in, 2025); got != want {
			t.Errorf("prefixRange(%q) = %q, want %q", in, got, want)
		}
	}
}
