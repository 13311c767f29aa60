// Package config handles configuration loading, validation, and management for typeproof.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"typeproof/internal/forensics"
	"typeproof/internal/ledger"
	"typeproof/internal/logging"
	"typeproof/internal/store"
	"typeproof/internal/timeline"
)

// Version is the current configuration schema version.
const Version = 1

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TYPEPROOF_"

// Config holds the complete engine configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Storage selects and configures the event store.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Ledger bounds ingestion.
	Ledger LedgerConfig `toml:"ledger" json:"ledger" yaml:"ledger"`

	// Forensics overrides analysis thresholds.
	Forensics ForensicsConfig `toml:"forensics" json:"forensics" yaml:"forensics"`

	// Timeline holds segmentation defaults.
	Timeline TimelineConfig `toml:"timeline" json:"timeline" yaml:"timeline"`

	// Cache configures report caching.
	Cache CacheConfig `toml:"cache" json:"cache" yaml:"cache"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Type is the backend: "memory", "sqlite" or "postgres".
	Type string `toml:"type" json:"type" yaml:"type"`

	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// DSN is the Postgres connection string.
	DSN string `toml:"dsn" json:"dsn" yaml:"dsn"`

	// ConnectTimeoutSec bounds the initial connection and migration.
	ConnectTimeoutSec int `toml:"connect_timeout_sec" json:"connect_timeout_sec" yaml:"connect_timeout_sec"`
}

// LedgerConfig holds ingestion limits.
type LedgerConfig struct {
	// MaxBatchSize caps the records considered per ingest call.
	MaxBatchSize int `toml:"max_batch_size" json:"max_batch_size" yaml:"max_batch_size"`

	// MaxLedgerEvents caps events stored per document. 0 means unlimited.
	MaxLedgerEvents int `toml:"max_ledger_events" json:"max_ledger_events" yaml:"max_ledger_events"`
}

// ForensicsConfig overrides the most commonly tuned analysis thresholds.
// Zero values keep the calibrated defaults.
type ForensicsConfig struct {
	MinSamples       int     `toml:"min_samples" json:"min_samples" yaml:"min_samples"`
	MaxReversalRatio float64 `toml:"max_reversal_ratio" json:"max_reversal_ratio" yaml:"max_reversal_ratio"`
	CompletenessMin  float64 `toml:"completeness_min" json:"completeness_min" yaml:"completeness_min"`
	CompletenessMax  float64 `toml:"completeness_max" json:"completeness_max" yaml:"completeness_max"`
	MaxReportedGaps  int     `toml:"max_reported_gaps" json:"max_reported_gaps" yaml:"max_reported_gaps"`
	CVMin            float64 `toml:"cv_min" json:"cv_min" yaml:"cv_min"`
	CVMax            float64 `toml:"cv_max" json:"cv_max" yaml:"cv_max"`
}

// TimelineConfig holds segmentation defaults.
type TimelineConfig struct {
	MaxCommits           int     `toml:"max_commits" json:"max_commits" yaml:"max_commits"`
	PauseThresholdBaseMs float64 `toml:"pause_threshold_base_ms" json:"pause_threshold_base_ms" yaml:"pause_threshold_base_ms"`
	CanvasWidth          float64 `toml:"canvas_width" json:"canvas_width" yaml:"canvas_width"`
	CanvasHeight         float64 `toml:"canvas_height" json:"canvas_height" yaml:"canvas_height"`
	MinCommits           int     `toml:"min_commits" json:"min_commits" yaml:"min_commits"`
	SplitOversized       bool    `toml:"split_oversized" json:"split_oversized" yaml:"split_oversized"`
}

// CacheConfig holds report cache configuration.
type CacheConfig struct {
	// Type is "none", "memory" or "redis".
	Type string `toml:"type" json:"type" yaml:"type"`

	// RedisURL is a redis:// URL used when Type is "redis".
	RedisURL string `toml:"redis_url" json:"redis_url" yaml:"redis_url"`

	// TTLSec is the report lifetime in seconds.
	TTLSec int `toml:"ttl_sec" json:"ttl_sec" yaml:"ttl_sec"`

	// MaxEntries caps the in-memory cache.
	MaxEntries int `toml:"max_entries" json:"max_entries" yaml:"max_entries"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file", "both" or "discard".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	MaxSizeMB  int  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	Compress   bool `toml:"compress" json:"compress" yaml:"compress"`

	// AuditPath enables the JSON-lines audit log when set.
	AuditPath string `toml:"audit_path" json:"audit_path" yaml:"audit_path"`
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Namespace string `toml:"namespace" json:"namespace" yaml:"namespace"`

	// ListenAddr serves /metrics when non-empty, e.g. ":9090".
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dataDir := DataDir()
	tl := timeline.DefaultOptions()

	return &Config{
		Version: Version,
		Storage: StorageConfig{
			Type:              "sqlite",
			Path:              filepath.Join(dataDir, "ledger.db"),
			ConnectTimeoutSec: 10,
		},
		Ledger: LedgerConfig{
			MaxBatchSize: ledger.DefaultMaxBatchSize,
		},
		Timeline: TimelineConfig{
			MaxCommits:           tl.MaxCommits,
			PauseThresholdBaseMs: tl.PauseThresholdBaseMs,
			CanvasWidth:          tl.CanvasWidth,
			CanvasHeight:         tl.CanvasHeight,
			MinCommits:           tl.MinCommits,
			SplitOversized:       tl.SplitOversized,
		},
		Cache: CacheConfig{
			Type:       "memory",
			TTLSec:     int((24 * time.Hour).Seconds()),
			MaxEntries: 1024,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(dataDir, "logs", "typeproof.log"),
			MaxSizeMB:  100,
			MaxBackups: 5,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Namespace: "typeproof",
		},
	}
}

// DataDir returns the base data directory, honoring TYPEPROOF_DATA_DIR.
func DataDir() string {
	if envDir := os.Getenv(EnvPrefix + "DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies TYPEPROOF_* environment variables. Unparseable
// numeric values are ignored and left for Validate to judge.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	envString("STORAGE_TYPE", &c.Storage.Type)
	envString("STORAGE_PATH", &c.Storage.Path)
	envString("STORAGE_DSN", &c.Storage.DSN)
	envInt("MAX_BATCH_SIZE", &c.Ledger.MaxBatchSize)
	envInt("MAX_LEDGER_EVENTS", &c.Ledger.MaxLedgerEvents)
	envString("CACHE_TYPE", &c.Cache.Type)
	envString("REDIS_URL", &c.Cache.RedisURL)
	envInt("CACHE_TTL_SEC", &c.Cache.TTLSec)
	envString("LOG_LEVEL", &c.Logging.Level)
	envString("LOG_FORMAT", &c.Logging.Format)
	envString("LOG_PATH", &c.Logging.FilePath)
	envString("AUDIT_PATH", &c.Logging.AuditPath)
	envString("METRICS_ADDR", &c.Metrics.ListenAddr)
	if v := os.Getenv(EnvPrefix + "METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Metrics.Enabled = b
		}
	}
}

func envString(name string, dst *string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Version:   c.Version,
		Storage:   c.Storage,
		Ledger:    c.Ledger,
		Forensics: c.Forensics,
		Timeline:  c.Timeline,
		Cache:     c.Cache,
		Logging:   c.Logging,
		Metrics:   c.Metrics,
	}
}

// StoreLimits returns the per-document ledger limits.
func (c *Config) StoreLimits() store.Limits {
	return store.Limits{MaxEventsPerDocument: c.Ledger.MaxLedgerEvents}
}

// ConnectTimeout returns the storage connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Storage.ConnectTimeoutSec) * time.Second
}

// CacheTTL returns the report cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}

// Thresholds merges the forensics overrides into the defaults.
func (c *Config) Thresholds() forensics.Thresholds {
	th := forensics.DefaultThresholds()
	f := c.Forensics
	if f.MinSamples > 0 {
		th.MinSamples = f.MinSamples
	}
	if f.MaxReversalRatio > 0 {
		th.MaxReversalRatio = f.MaxReversalRatio
	}
	if f.CompletenessMin > 0 {
		th.CompletenessMin = f.CompletenessMin
	}
	if f.CompletenessMax > 0 {
		th.CompletenessMax = f.CompletenessMax
	}
	if f.MaxReportedGaps > 0 {
		th.MaxReportedGaps = f.MaxReportedGaps
	}
	if f.CVMin > 0 {
		th.CVMin = f.CVMin
	}
	if f.CVMax > 0 {
		th.CVMax = f.CVMax
	}
	return th
}

// TimelineOptions converts the timeline section.
func (c *Config) TimelineOptions() timeline.Options {
	t := c.Timeline
	return timeline.Options{
		MaxCommits:           t.MaxCommits,
		PauseThresholdBaseMs: t.PauseThresholdBaseMs,
		CanvasWidth:          t.CanvasWidth,
		CanvasHeight:         t.CanvasHeight,
		MinCommits:           t.MinCommits,
		SplitOversized:       t.SplitOversized,
	}
}

// LoggingConfig converts the logging section for logging.New.
func (c *Config) LoggingConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Logging.Output
	lc.FilePath = c.Logging.FilePath
	lc.MaxSizeMB = int64(c.Logging.MaxSizeMB)
	lc.MaxBackups = c.Logging.MaxBackups
	lc.Compress = c.Logging.Compress
	return lc, nil
}

// EnsureDirectories creates the directories file-backed components need.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Storage.Type == "sqlite" && c.Storage.Path != ":memory:" {
		dirs = append(dirs, filepath.Dir(c.Storage.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	if c.Logging.AuditPath != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.AuditPath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
