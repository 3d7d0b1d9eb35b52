package backend

import (
	"fmt"

	"findash/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		TransactionsCSV: appConfig.TransactionsCSV,
		MappingCSV:      appConfig.MappingCSV,
		FetchTimeout:    appConfig.FetchTimeout,

		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		TransactionsRange:   appConfig.TransactionsRange,
		MappingRange:        appConfig.MappingRange,
		YearPrefix:          appConfig.YearPrefix,

		DataDirectory: appConfig.SeedDir,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case CSVBackend:
		if c.TransactionsCSV == "" {
			return fmt.Errorf("transactions CSV location is required for csv backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		if c.TransactionsRange == "" {
			return fmt.Errorf("transactions range is required for sheets backend")
		}
	case MemoryBackend:
		// DataDirectory falls back to "data"; missing seed files fall back to the demo tables.
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{CSVBackend, SheetsBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
