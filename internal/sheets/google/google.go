// Package google reads transaction and mapping ranges through the Google
// Sheets API.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"findash/internal/core"
	ports "findash/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and ranges to read.
type Config struct {
	SpreadsheetID string
	// Range in A1 notation, e.g. "Transactions!A:F".
	Range string
	// YearPrefix prefixes the sheet name with the current year ("2025 Transactions")
	// unless it already starts with one.
	YearPrefix bool
}

// Source reads a single range of a spreadsheet.
type Source struct {
	svc           *gsheet.Service
	name          string
	spreadsheetID string
	rng           string
}

// Ensure interface conformance
var (
	_ ports.RowReader = (*Source)(nil)
	_ ports.Named     = (*Source)(nil)
)

// New returns a Source reading cfg.Range through svc.
func New(svc *gsheet.Service, name string, cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.Range) == "" {
		return nil, fmt.Errorf("missing range for %s", name)
	}
	rng := strings.TrimSpace(cfg.Range)
	if cfg.YearPrefix {
		rng = prefixRange(rng, time.Now().Year())
	}
	return &Source{svc: svc, name: name, spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID), rng: rng}, nil
}

func (s *Source) Name() string { return s.name }

// ReadRows reads the configured range. The first non-blank row is the header.
func (s *Source) ReadRows(ctx context.Context) (*ports.Table, error) {
	if s.svc == nil {
		return nil, &core.SourceError{Source: s.name, Err: errors.New("sheets service not initialized")}
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.rng).Context(ctx).Do()
	if err != nil {
		return nil, &core.SourceError{Source: s.name, Err: fmt.Errorf("read %s: %w", s.rng, err)}
	}
	t := tableFromValues(s.name, resp.Values)
	if t.Header == nil {
		return nil, &core.SourceError{Source: s.name, Err: fmt.Errorf("range %s is empty", s.rng)}
	}
	slog.DebugContext(ctx, "Sheets range read", "source", s.name, "range", s.rng, "rows", len(t.Rows))
	return t, nil
}

// NewService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func NewService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	// Also check the standard Google Cloud environment variable
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	// Read-only scope: the dashboard never writes back to the sheet.
	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// prefixRange applies yearPrefixedName to the sheet part of an A1 range.
func prefixRange(rng string, year int) string {
	sheet, cells, ok := strings.Cut(rng, "!")
	if !ok {
		return rng
	}
	quoted := strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") && len(sheet) >= 2
	if quoted {
		sheet = sheet[1 : len(sheet)-1]
	}
	sheet = yearPrefixedName(sheet, year)
	if quoted || strings.Contains(sheet, " ") {
		sheet = "'" + sheet + "'"
	}
	return sheet + "!" + cells
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
