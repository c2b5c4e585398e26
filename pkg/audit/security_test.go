package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-intake/pkg/contentcheck"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func TestRunIDContext(t *testing.T) {
	runID := uuid.New()

	assert.Equal(t, runID, RunIDFromContext(WithRunID(context.Background(), runID)))
	assert.Equal(t, uuid.Nil, RunIDFromContext(context.Background()))
}

func TestLogSuspiciousContent(t *testing.T) {
	runID := uuid.New()
	ctx := WithRunID(context.Background(), runID)
	loc := models.Location{Table: "clients.csv", Row: 3, Column: "ClientName"}

	tests := []struct {
		name         string
		hit          *contentcheck.CheckResult
		wantLevel    zapcore.Level
		wantType     SecurityEventType
		wantSeverity string
	}{
		{
			name:         "sql injection",
			hit:          &contentcheck.CheckResult{Kind: contentcheck.KindSQLi, Fingerprint: "s&sos", Column: "ClientName", Value: "' OR '1'='1"},
			wantLevel:    zapcore.ErrorLevel,
			wantType:     EventSQLInjectionContent,
			wantSeverity: "critical",
		},
		{
			name:         "xss",
			hit:          &contentcheck.CheckResult{Kind: contentcheck.KindXSS, Column: "ClientName", Value: "<script>alert(1)</script>"},
			wantLevel:    zapcore.WarnLevel,
			wantType:     EventXSSContent,
			wantSeverity: "warning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, recorded := setupTestLogger(t)
			auditor := NewSecurityAuditor(logger)

			auditor.LogSuspiciousContent(ctx, loc, tt.hit)

			logs := recorded.All()
			require.Len(t, logs, 1)
			entry := logs[0]
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, "security_audit", entry.LoggerName)

			fields := entry.ContextMap()
			assert.Equal(t, runID.String(), fields["run_id"])
			assert.Equal(t, "clients.csv", fields["table"])
			assert.Equal(t, int64(3), fields["row"])
			assert.Equal(t, tt.wantSeverity, fields["severity"])

			var event SecurityEvent
			require.NoError(t, json.Unmarshal([]byte(fields["event_json"].(string)), &event))
			assert.Equal(t, tt.wantType, event.EventType)
			assert.Equal(t, runID, event.RunID)
			assert.Equal(t, "ClientName", event.Column)
			assert.Equal(t, tt.hit.Fingerprint, event.Fingerprint)
			assert.Equal(t, tt.hit.Value, event.Value)
		})
	}
}

func TestLogSuspiciousContent_SanitizesValue(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	hit := &contentcheck.CheckResult{Kind: contentcheck.KindXSS, Value: "<img src=x>\npassword=hunter2"}
	auditor.LogSuspiciousContent(context.Background(), models.Location{Table: "t.csv"}, hit)

	logs := recorded.All()
	require.Len(t, logs, 1)

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(logs[0].ContextMap()["event_json"].(string)), &event))
	assert.NotContains(t, event.Value, "hunter2")
	assert.NotContains(t, event.Value, "\n")
	assert.Equal(t, uuid.Nil, event.RunID)
}

func TestLogSuspiciousContent_NilHit(t *testing.T) {
	logger, recorded := setupTestLogger(t)

	NewSecurityAuditor(logger).LogSuspiciousContent(context.Background(), models.Location{}, nil)

	assert.Empty(t, recorded.All())
}
