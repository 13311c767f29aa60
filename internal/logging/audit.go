package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

// Audit event types.
const (
	AuditEventIngest       AuditEventType = "ingest"
	AuditEventVerification AuditEventType = "verification"
	AuditEventConfigChange AuditEventType = "config_change"
	AuditEventError        AuditEventType = "error"
	AuditEventStartup      AuditEventType = "startup"
	AuditEventShutdown     AuditEventType = "shutdown"
)

// AuditEvent is one line of the audit log.
type AuditEvent struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	EventType  AuditEventType `json:"event_type"`
	Component  string         `json:"component"`
	DocumentID string         `json:"document_id,omitempty"`
	Action     string         `json:"action"`
	Result     string         `json:"result"` // "success" or "failure"
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
}

// AuditLoggerConfig holds configuration for the audit logger.
type AuditLoggerConfig struct {
	// FilePath is the audit log file. Empty means Writer is used.
	FilePath string

	// Writer receives audit lines when FilePath is empty.
	Writer io.Writer

	MaxSizeMB  int64
	MaxBackups int
	Component  string
}

// AuditLogger writes JSON-lines audit records.
type AuditLogger struct {
	config  *AuditLoggerConfig
	out     io.Writer
	rotator *FileRotator
	mu      sync.Mutex
	now     func() time.Time
}

// NewAuditLogger creates an AuditLogger.
func NewAuditLogger(cfg *AuditLoggerConfig) (*AuditLogger, error) {
	if cfg == nil {
		cfg = &AuditLoggerConfig{Writer: io.Discard}
	}
	if cfg.Component == "" {
		cfg.Component = "typeproof"
	}

	a := &AuditLogger{config: cfg, now: time.Now}
	if cfg.FilePath != "" {
		rotator, err := NewFileRotator(&Config{
			FilePath:   cfg.FilePath,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
		if err != nil {
			return nil, fmt.Errorf("create audit rotator: %w", err)
		}
		a.rotator = rotator
		a.out = rotator
	} else if cfg.Writer != nil {
		a.out = cfg.Writer
	} else {
		a.out = io.Discard
	}
	return a, nil
}

// Log writes an audit event, filling in ID, timestamp, component and request ID.
func (a *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = a.now().UTC()
	}
	if event.Component == "" {
		event.Component = a.config.Component
	}
	if event.RequestID == "" {
		event.RequestID = RequestIDFromContext(ctx)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	data = append(data, '\n')
	if _, err := a.out.Write(data); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// LogIngest records the outcome of one ingestion batch.
func (a *AuditLogger) LogIngest(ctx context.Context, documentID string, appended, skipped, rejected, truncated int) error {
	return a.Log(ctx, AuditEvent{
		EventType:  AuditEventIngest,
		DocumentID: documentID,
		Action:     "events_ingested",
		Result:     "success",
		Details: map[string]any{
			"appended":          appended,
			"skipped_duplicate": skipped,
			"rejected":          rejected,
			"truncated":         truncated,
		},
	})
}

// LogVerification records a verification verdict.
func (a *AuditLogger) LogVerification(ctx context.Context, documentID, status string, confidence int) error {
	return a.Log(ctx, AuditEvent{
		EventType:  AuditEventVerification,
		DocumentID: documentID,
		Action:     "verification_performed",
		Result:     "success",
		Details: map[string]any{
			"overall_status":   status,
			"confidence_level": confidence,
		},
	})
}

// LogConfigChange records a configuration reload.
func (a *AuditLogger) LogConfigChange(ctx context.Context, setting, oldValue, newValue string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventConfigChange,
		Action:    "config_changed",
		Result:    "success",
		Details: map[string]any{
			"setting":   setting,
			"old_value": oldValue,
			"new_value": newValue,
		},
	})
}

// LogError records a failed operation.
func (a *AuditLogger) LogError(ctx context.Context, documentID, operation string, err error) error {
	return a.Log(ctx, AuditEvent{
		EventType:  AuditEventError,
		DocumentID: documentID,
		Action:     operation,
		Result:     "failure",
		Error:      err.Error(),
	})
}

// Close closes the audit file, if any.
func (a *AuditLogger) Close() error {
	if a == nil || a.rotator == nil {
		return nil
	}
	return a.rotator.Close()
}
