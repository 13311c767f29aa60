package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidConfig is wrapped by Load when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for i := range e {
		msgs = append(msgs, e[i].Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Fields returns the failing field names in order.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i := range e {
		out[i] = e[i].Field
	}
	return out
}

// ValidateConfig checks every section and aggregates the failures.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateLedger(&c.Ledger)...)
	errs = append(errs, validateForensics(c)...)
	errs = append(errs, validateTimeline(&c.Timeline)...)
	errs = append(errs, validateCache(&c.Cache)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	switch s.Type {
	case "memory":
	case "sqlite":
		if s.Path == "" {
			errs = append(errs, ValidationError{
				Field:   "storage.path",
				Message: "database path is required for sqlite storage",
			})
		}
	case "postgres":
		if s.DSN == "" {
			errs = append(errs, ValidationError{
				Field:   "storage.dsn",
				Message: "dsn is required for postgres storage",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.type",
			Message: fmt.Sprintf("invalid storage type: %s (valid: memory, sqlite, postgres)", s.Type),
		})
	}

	if s.ConnectTimeoutSec < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.connect_timeout_sec",
			Message: "connect timeout cannot be negative",
		})
	}
	return errs
}

func validateLedger(l *LedgerConfig) ValidationErrors {
	var errs ValidationErrors
	if l.MaxBatchSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "ledger.max_batch_size",
			Message: "max batch size must be at least 1",
		})
	}
	if l.MaxLedgerEvents < 0 {
		errs = append(errs, ValidationError{
			Field:   "ledger.max_ledger_events",
			Message: "max ledger events cannot be negative (0 disables the limit)",
		})
	}
	return errs
}

func validateForensics(c *Config) ValidationErrors {
	var errs ValidationErrors
	f := c.Forensics
	if f.MinSamples < 0 || f.MaxReportedGaps < 0 || f.MaxReversalRatio < 0 ||
		f.CompletenessMin < 0 || f.CompletenessMax < 0 || f.CVMin < 0 || f.CVMax < 0 {
		errs = append(errs, ValidationError{
			Field:   "forensics",
			Message: "threshold overrides cannot be negative",
		})
		return errs
	}
	if err := c.Thresholds().Validate(); err != nil {
		errs = append(errs, ValidationError{
			Field:   "forensics",
			Message: err.Error(),
		})
	}
	return errs
}

func validateTimeline(t *TimelineConfig) ValidationErrors {
	var errs ValidationErrors
	if t.MaxCommits < 0 {
		errs = append(errs, ValidationError{
			Field:   "timeline.max_commits",
			Message: "max commits cannot be negative (0 keeps all)",
		})
	}
	if t.PauseThresholdBaseMs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "timeline.pause_threshold_base_ms",
			Message: "pause threshold must be positive",
		})
	}
	if t.CanvasWidth < 0 || t.CanvasHeight < 0 {
		errs = append(errs, ValidationError{
			Field:   "timeline.canvas",
			Message: "canvas dimensions cannot be negative",
		})
	}
	if t.MinCommits < 0 {
		errs = append(errs, ValidationError{
			Field:   "timeline.min_commits",
			Message: "min commits cannot be negative",
		})
	}
	return errs
}

func validateCache(c *CacheConfig) ValidationErrors {
	var errs ValidationErrors

	switch c.Type {
	case "none", "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, ValidationError{
				Field:   "cache.redis_url",
				Message: "redis URL is required for redis cache",
			})
		} else if !isValidRedisURL(c.RedisURL) {
			errs = append(errs, ValidationError{
				Field:   "cache.redis_url",
				Message: fmt.Sprintf("invalid redis URL: %s", c.RedisURL),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "cache.type",
			Message: fmt.Sprintf("invalid cache type: %s (valid: none, memory, redis)", c.Type),
		})
	}

	if c.TTLSec < 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.ttl_sec",
			Message: "ttl cannot be negative",
		})
	}
	if c.MaxEntries < 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.max_entries",
			Message: "max entries cannot be negative",
		})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "discard":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output writes to a file",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both, discard)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors
	if m.Enabled && m.Namespace == "" {
		errs = append(errs, ValidationError{
			Field:   "metrics.namespace",
			Message: "namespace is required when metrics are enabled",
		})
	}
	return errs
}

func isValidRedisURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "redis" || u.Scheme == "rediss") && u.Host != ""
}
