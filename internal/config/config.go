package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	applog "findash/internal/log"
	"findash/internal/narrative"
)

// Source backends.
const (
	BackendMemory = "memory"
	BackendCSV    = "csv"
	BackendSheets = "sheets"
)

// Backends lists the valid DATA_BACKEND values.
var Backends = []string{BackendMemory, BackendCSV, BackendSheets}

type Config struct {
	// HTTP Server
	Port           string
	AllowedOrigins []string
	TrustedProxies []string
	RateLimit      int
	RateWindow     time.Duration

	// Source selection
	DataBackend string

	// CSV export backend: URL or file path each
	TransactionsCSV string
	MappingCSV      string
	FetchTimeout    time.Duration

	// Google Sheets backend
	GoogleSpreadsheetID string
	TransactionsRange   string
	MappingRange        string
	YearPrefix          bool

	// Memory backend seed directory
	SeedDir string

	// Snapshot
	SnapshotTTL  time.Duration
	LoadTimeout  time.Duration
	CacheCleanup time.Duration
	PolicyFile   string

	// Narrative
	NarrativeProvider string
	NarrativeAPIKey   string
	NarrativeModel    string
	NarrativeTTL      time.Duration
	NarrativeTimeout  time.Duration

	// Database; empty disables persistence
	SQLiteDBPath string

	// AMQP; empty URL disables the refresh bus
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8081"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		RateLimit:      getEnvInt("RATE_LIMIT_REQUESTS", 10),
		RateWindow:     getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		DataBackend: strings.ToLower(getEnv("DATA_BACKEND", BackendMemory)),

		TransactionsCSV: getEnv("TRANSACTIONS_CSV", ""),
		MappingCSV:      getEnv("MAPPING_CSV", ""),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 30*time.Second),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		TransactionsRange:   getEnv("GOOGLE_TRANSACTIONS_RANGE", "Transactions!A:F"),
		MappingRange:        getEnv("GOOGLE_MAPPING_RANGE", ""),
		YearPrefix:          getEnvBool("GOOGLE_YEAR_PREFIX", false),

		SeedDir: getEnv("SEED_DIR", "data"),

		SnapshotTTL:  getEnvDuration("SNAPSHOT_TTL", 60*time.Second),
		LoadTimeout:  getEnvDuration("LOAD_TIMEOUT", 60*time.Second),
		CacheCleanup: getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		PolicyFile:   getEnv("POLICY_FILE", ""),

		NarrativeProvider: strings.ToLower(getEnv("NARRATIVE_PROVIDER", "anthropic")),
		NarrativeModel:    getEnv("NARRATIVE_MODEL", ""),
		NarrativeTTL:      getEnvDuration("NARRATIVE_TTL", narrative.DefaultTTL),
		NarrativeTimeout:  getEnvDuration("NARRATIVE_TIMEOUT", narrative.DefaultTimeout),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "findash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "refresh"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
	cfg.NarrativeAPIKey = narrativeKey(cfg.NarrativeProvider)
	return cfg
}

// narrativeKey prefers NARRATIVE_API_KEY, then the provider's conventional
// variable.
func narrativeKey(provider string) string {
	if key := getEnv("NARRATIVE_API_KEY", ""); key != "" {
		return key
	}
	switch provider {
	case "gemini", "google":
		if key := getEnv("GEMINI_API_KEY", ""); key != "" {
			return key
		}
		return getEnv("GOOGLE_API_KEY", "")
	default:
		return getEnv("ANTHROPIC_API_KEY", "")
	}
}

// NarrativeEnabled reports whether a narrative provider key is configured.
func (c *Config) NarrativeEnabled() bool {
	return c.NarrativeAPIKey != ""
}

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(Backends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends))
	}

	switch c.DataBackend {
	case BackendCSV:
		if c.TransactionsCSV == "" {
			errors = append(errors, "TRANSACTIONS_CSV is required when using csv backend")
		}
		for name, loc := range map[string]string{"TRANSACTIONS_CSV": c.TransactionsCSV, "MAPPING_CSV": c.MappingCSV} {
			if msg := checkLocation(name, loc); msg != "" {
				errors = append(errors, msg)
			}
		}
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.TransactionsRange == "" {
			errors = append(errors, "GOOGLE_TRANSACTIONS_RANGE cannot be empty when using sheets backend")
		}
	}

	if c.SnapshotTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid snapshot TTL %v: must be at least 1 second", c.SnapshotTTL))
	} else if c.SnapshotTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid snapshot TTL %v: must be at most 24 hours", c.SnapshotTTL))
	}
	if c.LoadTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid load timeout %v: must be at least 1 second", c.LoadTimeout))
	}
	if c.CacheCleanup < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanup))
	}
	if c.FetchTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be positive", c.FetchTimeout))
	}

	if c.PolicyFile != "" {
		if _, err := os.Stat(c.PolicyFile); err != nil {
			errors = append(errors, fmt.Sprintf("policy file %s: %v", c.PolicyFile, err))
		}
	}

	switch c.NarrativeProvider {
	case "anthropic", "gemini", "google":
	default:
		errors = append(errors, fmt.Sprintf("invalid narrative provider '%s': must be anthropic or gemini", c.NarrativeProvider))
	}
	if c.NarrativeTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid narrative TTL %v: must be positive", c.NarrativeTTL))
	}
	if c.NarrativeTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid narrative timeout %v: must be positive", c.NarrativeTimeout))
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimit))
	}
	if c.RateWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rate limit window %v: must be at least 1 second", c.RateWindow))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		slices.Sort(errors)
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// checkLocation accepts http(s) URLs and existing files.
func checkLocation(name, loc string) string {
	if loc == "" {
		return ""
	}
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		if u, err := url.Parse(loc); err != nil || u.Host == "" {
			return fmt.Sprintf("invalid %s URL '%s'", name, loc)
		}
		return ""
	}
	if _, err := os.Stat(loc); err != nil {
		return fmt.Sprintf("%s file does not exist: %s", name, loc)
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
