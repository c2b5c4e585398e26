// Package audit provides security audit logging for SIEM consumption.
// Uploaded cells that look like SQL injection or XSS payloads are logged as
// structured JSON events under the "security_audit" logger namespace.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-intake/pkg/contentcheck"
	"github.com/ekaya-inc/ekaya-intake/pkg/logging"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionContent is logged when libinjection flags a cell as SQL injection.
	EventSQLInjectionContent SecurityEventType = "sql_injection_content"
	// EventXSSContent is logged when libinjection flags a cell as cross-site scripting.
	EventXSSContent SecurityEventType = "xss_content"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp   time.Time         `json:"timestamp"`
	EventType   SecurityEventType `json:"event_type"`
	RunID       uuid.UUID         `json:"run_id"`
	Table       string            `json:"table"`
	Row         int               `json:"row"`
	Column      string            `json:"column"`
	Fingerprint string            `json:"fingerprint,omitempty"` // libinjection fingerprint, SQL injection only
	Value       string            `json:"value"`                 // sanitized and truncated
	Severity    string            `json:"severity"`              // warning, critical
}

type runIDKey struct{}

// WithRunID attaches an intake run id to ctx so audit events can be
// correlated with the run that produced them.
func WithRunID(ctx context.Context, runID uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id set by WithRunID, or uuid.Nil.
func RunIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if id, ok := ctx.Value(runIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a security auditor logging under the
// "security_audit" namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogSuspiciousContent records a flagged cell. SQL injection is logged at
// ERROR level with "critical" severity; XSS at WARN level.
//
// Example usage:
//
//	if hit := contentcheck.CheckCell(column, cell); hit != nil {
//	    auditor.LogSuspiciousContent(ctx, models.Location{Table: "clients.csv", Row: 3, Column: column}, hit)
//	}
func (a *SecurityAuditor) LogSuspiciousContent(ctx context.Context, loc models.Location, hit *contentcheck.CheckResult) {
	if hit == nil {
		return
	}

	event := SecurityEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   EventXSSContent,
		RunID:       RunIDFromContext(ctx),
		Table:       loc.Table,
		Row:         loc.Row,
		Column:      loc.Column,
		Fingerprint: hit.Fingerprint,
		Value:       logging.SanitizeValue(hit.Value),
		Severity:    "warning",
	}
	if hit.Kind == contentcheck.KindSQLi {
		event.EventType = EventSQLInjectionContent
		event.Severity = "critical"
	}

	// Marshaling known types cannot fail.
	eventJSON, _ := json.Marshal(event)

	fields := []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("run_id", event.RunID.String()),
		zap.String("table", event.Table),
		zap.Int("row", event.Row),
		zap.String("column", event.Column),
		zap.String("fingerprint", event.Fingerprint),
		zap.String("severity", event.Severity),
	}
	if event.EventType == EventSQLInjectionContent {
		a.logger.Error("SQL injection content detected", fields...)
		return
	}
	a.logger.Warn("XSS content detected", fields...)
}
