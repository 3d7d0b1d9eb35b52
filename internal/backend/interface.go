package backend

import (
	"context"
	"time"

	"findash/internal/sheets"
)

// Sources is the pair of row readers a snapshot is built from. Mapping is
// a nil interface when no mapping table is configured.
type Sources struct {
	Transactions sheets.RowReader
	Mapping      sheets.RowReader
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the sources and optional cleanup function
type BackendResult struct {
	Sources Sources
	Cleanup CleanupFunc
}

// Factory creates row sources based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// CSV export: URL or local path each
	TransactionsCSV string
	MappingCSV      string
	FetchTimeout    time.Duration

	// Google Sheets
	GoogleSpreadsheetID string
	TransactionsRange   string
	MappingRange        string
	YearPrefix          bool

	// Memory backend seed directory
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	CSVBackend    BackendType = "csv"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case CSVBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
