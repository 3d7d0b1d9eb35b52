package csvexport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/carlmjohnson/be"
	"golang.org/x/text/encoding/unicode"

	"findash/internal/core"
)

const sample = "Date,Title,Category,Type,Amount\n" +
	"1/5/2025,Coffee,Food,Actual,\"$1,234.50\"\n" +
	"\n" +
	",,,,\n" +
	"1/6/2025,Cof\"fee,Food,Actual,3\n" +
	"1/7/2025,Rent,Housing,Expected,900,extra\n" +
	"1/8/2025,Bus,Transport,Actual,2.40,,\n"

func TestReadRowsFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	tbl, err := New("transactions", srv.URL+"/pub?gid=1&output=csv").ReadRows(context.Background())
	be.NilErr(t, err)
	be.AllEqual(t, []string{"Date", "Title", "Category", "Type", "Amount"}, tbl.Header)
	be.Equal(t, 2, len(tbl.Rows))
	be.Equal(t, "$1,234.50", tbl.Rows[0][4])
	be.Equal(t, "Bus", tbl.Rows[1][1])
	be.Equal(t, 2, tbl.Skipped)
	be.Equal(t, EncodingUTF8, tbl.Encoding)
}

func TestReadRowsHTTPStatusIsSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New("mapping", srv.URL).ReadRows(context.Background())
	be.True(t, errors.Is(err, core.ErrSourceUnavailable))
	var se *core.SourceError
	be.True(t, errors.As(err, &se))
	be.Equal(t, "mapping", se.Source)
}

func TestReadRowsFromFileWindows1252(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.csv")
	body := []byte("Date,Title,Category,Type,Amount\n1/5/2025,Caf\xe9,Food,Actual,4\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := New("transactions", path).ReadRows(context.Background())
	be.NilErr(t, err)
	be.Equal(t, EncodingWindows1252, tbl.Encoding)
	be.Equal(t, "Café", tbl.Rows[0][1])
}

func TestReadRowsUTF16WithBOM(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	body, err := enc.Bytes([]byte("Title,CategoryGroup\nCoffee,Wants\n"))
	be.NilErr(t, err)
	path := filepath.Join(t.TempDir(), "map.csv")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := New("mapping", path).ReadRows(context.Background())
	be.NilErr(t, err)
	be.Equal(t, EncodingUTF16, tbl.Encoding)
	be.AllEqual(t, []string{"Title", "CategoryGroup"}, tbl.Header)
	be.AllEqual(t, []string{"Coffee", "Wants"}, tbl.Rows[0])
}

func TestReadRowsUTF8BOMStripped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.csv")
	if err := os.WriteFile(path, []byte("\xEF\xBB\xBFDate,Amount\n1/1/2025,1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := New("transactions", path).ReadRows(context.Background())
	be.NilErr(t, err)
	be.Equal(t, "Date", tbl.Header[0])
}

func TestReadRowsMissingFileAndEmpty(t *testing.T) {
	_, err := New("transactions", filepath.Join(t.TempDir(), "nope.csv")).ReadRows(context.Background())
	be.True(t, errors.Is(err, core.ErrSourceUnavailable))

	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, []byte("\n\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err = New("transactions", path).ReadRows(context.Background())
	be.True(t, errors.Is(err, core.ErrSourceUnavailable))

	_, err = New("transactions", "").ReadRows(context.Background())
	be.True(t, errors.Is(err, core.ErrSourceUnavailable))
}

func TestReadRowsUnterminatedQuoteSkipsOnlyThatRow(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantTitle []string
		skipped   int
	}{
		{
			name: "stray opening quote",
			body: "Date,Title,Category,Type,Amount\n" +
				"1/1/2025,Rent,Housing,Actual,900\n" +
				"1/3/2025,\"Cafe,Food,Actual,4.50\n" +
				"1/4/2025,Gas,Transport,Actual,40\n" +
				"1/5/2025,Book,Leisure,Actual,12\n",
			wantTitle: []string{"Rent", "Gas", "Book"},
			skipped:   1,
		},
		{
			name: "two bad rows and a quoted newline",
			body: "Date,Title,Category,Type,Amount\n" +
				"1/1/2025,\"Rent\nJanuary\",Housing,Actual,900\n" +
				"1/2/2025,\"Cafe,Food,Actual,4.50\n" +
				"1/3/2025,Gas,Transport,Actual,40\n" +
				"1/4/2025,Bo\"ok,Leisure,Actual,12\n" +
				"1/5/2025,Train,Transport,Actual,8\n",
			wantTitle: []string{"Rent\nJanuary", "Gas", "Train"},
			skipped:   2,
		},
		{
			name:      "bad last row",
			body:      "Date,Title,Category,Type,Amount\n1/1/2025,Rent,Housing,Actual,900\n1/2/2025,\"Cafe,Food",
			wantTitle: []string{"Rent"},
			skipped:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tx.csv")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			tbl, err := New("transactions", path).ReadRows(context.Background())
			be.NilErr(t, err)
			be.Equal(t, tt.skipped, tbl.Skipped)
			var titles []string
			for _, row := range tbl.Rows {
				titles = append(titles, row[1])
			}
			be.AllEqual(t, tt.wantTitle, titles)
		})
	}
}
