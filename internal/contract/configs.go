package contract

import (
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/exprora/schema"
)

// Default values for configuration.
const (
	DefaultPrecision = 2
	MaxPrecision     = 4
	DefaultListen    = ":8080"
	DefaultRateLimit = 50
	DefaultRateBurst = 100
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Valid logging and tracing options.
var (
	ValidLogLevels      = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}
	ValidLogFormats     = map[string]struct{}{"json": {}, "console": {}}
	ValidTraceExporters = map[string]struct{}{"none": {}, "stdout": {}, "otlp": {}}
)

// S3Config holds the object storage settings for export uploads.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // custom endpoint for MinIO and friends
	PathStyle bool
}

// Enabled reports whether uploads are configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Config holds the runtime configuration for every command.
// This struct remains the "final, validated" config.
type Config struct {
	Backend   schema.DatabaseBackend
	DBConnect string // Please use env var as this is plaintext

	Output     schema.OutputMode
	OutputFile string
	Precision  int
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	// Results window, zero means unbounded
	StartTime time.Time
	EndTime   time.Time

	Listen    string
	RateLimit float64
	RateBurst int

	AllocationMode schema.AllocationMode
	HashSalt       string

	LogLevel  string
	LogFormat string

	TraceExporter string
	OTLPEndpoint  string
	OTLPInsecure  bool

	S3 S3Config
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	DBBackend  string `mapstructure:"db-backend"`
	DBConnect  string `mapstructure:"db-connect"`
	Output     string `mapstructure:"output"`
	OutputFile string `mapstructure:"output-file"`
	Precision  int    `mapstructure:"precision"`
	Width      int    `mapstructure:"width"`
	Color      string `mapstructure:"color"`
	LogLevel   string `mapstructure:"log-level"`
	LogFormat  string `mapstructure:"log-format"`

	// --- Fields from resultsCmd.Flags() ---
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`

	// --- Fields from serveCmd.Flags() ---
	Listen         string  `mapstructure:"listen"`
	RateLimit      float64 `mapstructure:"rate-limit"`
	RateBurst      int     `mapstructure:"rate-burst"`
	AllocationMode string  `mapstructure:"allocation-mode"`
	HashSalt       string  `mapstructure:"hash-salt"`
	TraceExporter  string  `mapstructure:"trace-exporter"`
	OTLPEndpoint   string  `mapstructure:"otlp-endpoint"`
	OTLPInsecure   bool    `mapstructure:"otlp-insecure"`

	// --- Fields from exportCmd.Flags() ---
	S3Bucket    string `mapstructure:"s3-bucket"`
	S3Prefix    string `mapstructure:"s3-prefix"`
	S3Region    string `mapstructure:"s3-region"`
	S3Endpoint  string `mapstructure:"s3-endpoint"`
	S3PathStyle bool   `mapstructure:"s3-path-style"`
}

// Clone returns a copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// DateRange returns the configured results window.
func (c *Config) DateRange() schema.DateRange {
	return schema.DateRange{Start: c.StartTime, End: c.EndTime}
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfig(cfg, input); err != nil {
		return err
	}
	if err := processTimeRange(cfg, input, time.Now()); err != nil {
		return err
	}
	if err := processServerInputs(cfg, input); err != nil {
		return err
	}
	processS3Inputs(cfg, input)
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.MemoryBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfig validates the store backend configuration.
func validateBackendConfig(cfg *Config, input *ConfigRawInput) error {
	cfg.Backend = schema.DatabaseBackend(schema.NormalizeKey(input.DBBackend))
	if cfg.Backend == "" {
		cfg.Backend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.Backend]; !ok {
		return fmt.Errorf("invalid db backend '%s'. must be sqlite, mysql, postgresql, memory", input.DBBackend)
	}
	cfg.DBConnect = input.DBConnect
	return ValidateDatabaseConnectionString(cfg.Backend, cfg.DBConnect)
}

// validateSimpleInputs processes and validates output and logging fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Precision < 1 || input.Precision > MaxPrecision {
		return fmt.Errorf("precision must be between 1 and %d (received %d)", MaxPrecision, input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(schema.NormalizeKey(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}

	cfg.LogLevel = schema.NormalizeKey(input.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, ok := ValidLogLevels[cfg.LogLevel]; !ok {
		return fmt.Errorf("invalid log level '%s'. must be debug, info, warn, error", input.LogLevel)
	}

	cfg.LogFormat = schema.NormalizeKey(input.LogFormat)
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if _, ok := ValidLogFormats[cfg.LogFormat]; !ok {
		return fmt.Errorf("invalid log format '%s'. must be json or console", input.LogFormat)
	}

	return nil
}

// processTimeRange parses the optional results window. Both absolute RFC3339
// and relative "N [units] ago" forms are accepted.
func processTimeRange(cfg *Config, input *ConfigRawInput, now time.Time) error {
	cfg.StartTime = time.Time{}
	cfg.EndTime = time.Time{}

	if input.Start != "" {
		t, err := ParseTimeInput(input.Start, now)
		if err != nil {
			return fmt.Errorf("invalid start date format for '%s'. Expected absolute ISO8601 or 'N [units] ago': %w", input.Start, err)
		}
		cfg.StartTime = t
	}

	if input.End != "" {
		t, err := ParseTimeInput(input.End, now)
		if err != nil {
			return fmt.Errorf("invalid end date format for '%s'. Expected absolute ISO8601 or 'N [units] ago': %w", input.End, err)
		}
		cfg.EndTime = t
	}

	if !cfg.StartTime.IsZero() && !cfg.EndTime.IsZero() && cfg.StartTime.After(cfg.EndTime) {
		return fmt.Errorf("start time (%s) cannot be after end time (%s)", cfg.StartTime.Format(DateTimeFormat), cfg.EndTime.Format(DateTimeFormat))
	}

	return nil
}

// processServerInputs handles the HTTP server, allocation and telemetry settings.
func processServerInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Listen = strings.TrimSpace(input.Listen)
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}

	if input.RateLimit < 0 {
		return fmt.Errorf("rate-limit must not be negative (received %v)", input.RateLimit)
	}
	cfg.RateLimit = input.RateLimit
	if input.RateBurst < 0 {
		return fmt.Errorf("rate-burst must not be negative (received %d)", input.RateBurst)
	}
	cfg.RateBurst = input.RateBurst

	cfg.AllocationMode = schema.AllocationMode(schema.NormalizeKey(input.AllocationMode))
	if cfg.AllocationMode == "" {
		cfg.AllocationMode = schema.RandomAllocation
	}
	if _, ok := schema.ValidAllocationModes[cfg.AllocationMode]; !ok {
		return fmt.Errorf("invalid allocation mode '%s'. must be random or hash", input.AllocationMode)
	}
	cfg.HashSalt = input.HashSalt
	if cfg.AllocationMode == schema.HashAllocation && cfg.HashSalt == "" {
		return fmt.Errorf("hash-salt is required when allocation mode is hash")
	}

	cfg.TraceExporter = schema.NormalizeKey(input.TraceExporter)
	if cfg.TraceExporter == "" {
		cfg.TraceExporter = "none"
	}
	if _, ok := ValidTraceExporters[cfg.TraceExporter]; !ok {
		return fmt.Errorf("invalid trace exporter '%s'. must be none, stdout, otlp", input.TraceExporter)
	}
	cfg.OTLPEndpoint = input.OTLPEndpoint
	cfg.OTLPInsecure = input.OTLPInsecure
	if cfg.TraceExporter == "otlp" && cfg.OTLPEndpoint == "" {
		return fmt.Errorf("otlp-endpoint is required when trace exporter is otlp")
	}

	return nil
}

// processS3Inputs copies the upload settings.
func processS3Inputs(cfg *Config, input *ConfigRawInput) {
	cfg.S3 = S3Config{
		Bucket:    strings.TrimSpace(input.S3Bucket),
		Prefix:    strings.Trim(strings.TrimSpace(input.S3Prefix), "/"),
		Region:    input.S3Region,
		Endpoint:  input.S3Endpoint,
		PathStyle: input.S3PathStyle,
	}
}
