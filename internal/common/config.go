package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Extraction modes.
const (
	ExtractModeReplay = "replay"
	ExtractModeHTTP   = "http"
)

// Config holds all application configuration
type Config struct {
	Benchmark BenchmarkConfig
	Extract   ExtractConfig
	Ledger    LedgerConfig
	Watch     WatchConfig
	Log       LogConfig
}

// BenchmarkConfig describes one benchmark pass: inputs, outputs and pool width.
type BenchmarkConfig struct {
	DocumentsDir string
	LabelsDir    string
	OutputDir    string
	RunLabel     string
	Variants     []string
	Workers      int
	QueueSize    int
	TaskTimeout  time.Duration
	SkipHidden   bool
	ExportXLSX   bool
}

// ExtractConfig selects and tunes the extraction collaborator.
type ExtractConfig struct {
	Mode      string
	ReplayDir string
	URL       string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// LedgerConfig holds run-ledger database configuration. An empty DSN disables the ledger.
type LedgerConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// Postgres reports whether the DSN addresses a Postgres server.
func (l LedgerConfig) Postgres() bool {
	return strings.HasPrefix(l.DSN, "postgres://") || strings.HasPrefix(l.DSN, "postgresql://")
}

// WatchConfig holds daemon configuration
type WatchConfig struct {
	Debounce time.Duration
	GRPCAddr string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Benchmark: BenchmarkConfig{
			DocumentsDir: getEnv("BENCH_DOCUMENTS_DIR", ""),
			LabelsDir:    getEnv("BENCH_LABELS_DIR", ""),
			OutputDir:    getEnv("BENCH_OUTPUT_DIR", "./benchmark"),
			RunLabel:     getEnv("BENCH_RUN_LABEL", "default"),
			Variants:     getEnvAsList("BENCH_VARIANTS", nil),
			Workers:      getEnvAsInt("BENCH_WORKERS", 2),
			QueueSize:    getEnvAsInt("BENCH_QUEUE_SIZE", 256),
			TaskTimeout:  getEnvAsDuration("BENCH_TASK_TIMEOUT", 0),
			SkipHidden:   getEnvAsBool("BENCH_SKIP_HIDDEN", true),
			ExportXLSX:   getEnvAsBool("BENCH_XLSX", true),
		},
		Extract: ExtractConfig{
			Mode:      getEnv("EXTRACT_MODE", ExtractModeReplay),
			ReplayDir: getEnv("EXTRACT_REPLAY_DIR", ""),
			URL:       getEnv("EXTRACT_URL", ""),
			APIKey:    getEnv("EXTRACT_API_KEY", ""),
			Timeout:   getEnvAsDuration("EXTRACT_TIMEOUT", 45*time.Second),
			RateLimit: getEnvAsFloat64("EXTRACT_RATE_LIMIT", 0),
			Burst:     getEnvAsInt("EXTRACT_BURST", 1),
		},
		Ledger: LedgerConfig{
			DSN:             getEnv("LEDGER_DSN", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 4),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Watch: WatchConfig{
			Debounce: getEnvAsDuration("WATCH_DEBOUNCE", 2*time.Second),
			GRPCAddr: getEnv("GRPC_ADDR", ":8081"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// NewLogger builds the process logger from the log configuration.
func (l LogConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(l.Level)}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return SplitList(value)
}

// SplitList splits a comma-separated list and trims each item.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks the configuration needed for a benchmark pass.
func (c *Config) Validate() error {
	v := NewValidator().
		Field("BENCH_DOCUMENTS_DIR", c.Benchmark.DocumentsDir, Required).
		Field("BENCH_LABELS_DIR", c.Benchmark.LabelsDir, Required).
		Field("BENCH_OUTPUT_DIR", c.Benchmark.OutputDir, Required).
		Field("BENCH_RUN_LABEL", c.Benchmark.RunLabel, Required, FileSafe).
		Field("BENCH_VARIANTS", c.Benchmark.Variants, NonEmptyList, UniqueItems, FileSafeItems).
		Field("BENCH_WORKERS", c.Benchmark.Workers, AtLeast(1)).
		Field("BENCH_QUEUE_SIZE", c.Benchmark.QueueSize, AtLeast(1)).
		Field("EXTRACT_MODE", c.Extract.Mode, OneOf(ExtractModeReplay, ExtractModeHTTP))

	switch c.Extract.Mode {
	case ExtractModeReplay:
		v.Field("EXTRACT_REPLAY_DIR", c.Extract.ReplayDir, Required)
	case ExtractModeHTTP:
		v.Field("EXTRACT_URL", c.Extract.URL, Required).
			Field("EXTRACT_BURST", c.Extract.Burst, AtLeast(1))
	}

	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrConfig)
	}
	return nil
}

// ValidateAggregate checks what aggregate-only mode needs.
func (c *Config) ValidateAggregate() error {
	v := NewValidator().
		Field("BENCH_OUTPUT_DIR", c.Benchmark.OutputDir, Required).
		Field("BENCH_RUN_LABEL", c.Benchmark.RunLabel, Required, FileSafe)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrConfig)
	}
	return nil
}

// ValidateDaemon additionally checks the watch daemon settings.
func (c *Config) ValidateDaemon() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Watch.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrConfig)
	}
	if c.Watch.Debounce <= 0 {
		return NewAppError("CONFIG_ERROR", "WATCH_DEBOUNCE must be positive", ErrConfig)
	}
	return nil
}
