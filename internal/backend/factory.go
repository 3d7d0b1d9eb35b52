package backend

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"findash/internal/sheets/csvexport"
	gsheet "findash/internal/sheets/google"
	"findash/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		return f.createCSVBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createCSVBackend(config Config) (*BackendResult, error) {
	var opts []csvexport.Option
	if config.FetchTimeout > 0 {
		opts = append(opts, csvexport.WithTimeout(config.FetchTimeout))
	}

	res := &BackendResult{Sources: Sources{
		Transactions: csvexport.New("transactions", config.TransactionsCSV, opts...),
	}}
	if config.MappingCSV != "" {
		res.Sources.Mapping = csvexport.New("mapping", config.MappingCSV, opts...)
	}

	f.logger.Info("Initialized CSV export backend", "mapping", config.MappingCSV != "")
	return res, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	svc, err := gsheet.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	tx, err := gsheet.New(svc, "transactions", gsheet.Config{
		SpreadsheetID: config.GoogleSpreadsheetID,
		Range:         config.TransactionsRange,
		YearPrefix:    config.YearPrefix,
	})
	if err != nil {
		return nil, err
	}
	res := &BackendResult{Sources: Sources{Transactions: tx}}

	if config.MappingRange != "" {
		mapping, err := gsheet.New(svc, "mapping", gsheet.Config{
			SpreadsheetID: config.GoogleSpreadsheetID,
			Range:         config.MappingRange,
			YearPrefix:    config.YearPrefix,
		})
		if err != nil {
			return nil, err
		}
		res.Sources.Mapping = mapping
	}

	f.logger.Info("Initialized Google Sheets backend",
		"transactions_range", config.TransactionsRange,
		"mapping_range", config.MappingRange)
	return res, nil
}

// createMemoryBackend serves transactions.csv and mapping.csv from the data
// directory, falling back to the built-in demo tables.
func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	demoTx, demoMapping := memory.Demo()
	tx := memory.NewFromFile("transactions", filepath.Join(dataDir, "transactions.csv"), demoTx)
	mapping := memory.NewFromFile("mapping", filepath.Join(dataDir, "mapping.csv"), demoMapping)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir, "demo", tx == demoTx)
	return &BackendResult{Sources: Sources{Transactions: tx, Mapping: mapping}}, nil
}
