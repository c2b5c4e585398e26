package services

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-intake/pkg/config"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

func newTestFieldValidator() FieldValidator {
	return NewFieldValidator(testEngineConfig(), zap.NewNop())
}

func issueRows(issues []models.ValidationIssue) []int {
	rows := make([]int, 0, len(issues))
	for _, issue := range issues {
		rows = append(rows, issue.Location.Row)
	}
	return rows
}

func TestFieldValidator_PhaseFormatInconsistency(t *testing.T) {
	values := []string{"[1,2]", "[1,2]", "[1,2]", "[1,2]", "1,2", "[1,2]", "[1,2]", "[1,2]", "[1,2]", "[1,2]"}
	table := singleColumn(t, "tasks.csv", "PreferredPhases", values...)

	result := newTestFieldValidator().ValidateTable(context.Background(), table)

	inconsistent := result.OfType(models.IssueFormatInconsistency)
	require.Len(t, inconsistent, 1)
	assert.Equal(t, models.SeverityWarning, inconsistent[0].Severity)
	assert.True(t, inconsistent[0].Fixable)
	assert.Equal(t, models.At("tasks.csv", 4, "PreferredPhases"), inconsistent[0].Location)
	assert.Contains(t, inconsistent[0].Message, "comma_separated")
	assert.Contains(t, inconsistent[0].Message, "json_array")
	assert.Empty(t, result.Errors)
}

func TestFieldValidator_PhaseEncodingsAcceptedAlone(t *testing.T) {
	validator := newTestFieldValidator()

	for _, v := range []string{"[1,2,3]", "1,2,3", "1-3", "4", "[4]"} {
		t.Run(v, func(t *testing.T) {
			result := validator.ValidateTable(context.Background(), singleColumn(t, "workers.csv", "AvailableSlots", v))
			assert.Equal(t, 0, result.Summary.TotalIssues)
		})
	}
}

func TestFieldValidator_InvalidPhaseFormat(t *testing.T) {
	table := singleColumn(t, "workers.csv", "AvailableSlots", "[1,2]", "3-1", "mon,tue", "[1,\"a\"]")

	result := newTestFieldValidator().ValidateTable(context.Background(), table)

	invalid := result.OfType(models.IssueInvalidPhaseFormat)
	assert.Equal(t, []int{1, 2, 3}, issueRows(invalid))
	for _, issue := range invalid {
		assert.Equal(t, models.SeverityError, issue.Severity)
		assert.True(t, issue.Fixable)
	}
}

func TestFieldValidator_MaxConcurrent(t *testing.T) {
	table := singleColumn(t, "tasks.csv", "MaxConcurrent", "2", "0", "abc", "3")

	result := newTestFieldValidator().ValidateTable(context.Background(), table)

	require.Len(t, result.Errors, 2)
	assert.Equal(t, models.IssueOutOfRange, result.Errors[0].Type)
	assert.Equal(t, 1, result.Errors[0].Location.Row)
	assert.Equal(t, "MaxConcurrent must be >= 1, got: 0", result.Errors[0].Message)
	assert.Equal(t, models.IssueInvalidDataType, result.Errors[1].Type)
	assert.Equal(t, 2, result.Errors[1].Location.Row)
	assert.True(t, result.Errors[0].Fixable)
	assert.True(t, result.Errors[1].Fixable)
}

func TestFieldValidator_NumericZeroIsNotEmpty(t *testing.T) {
	rec := models.Record{"MaxConcurrent": models.NumberCell(0)}
	table, err := models.NewTable("tasks.json", []string{"MaxConcurrent"}, []models.Record{rec})
	require.NoError(t, err)

	result := newTestFieldValidator().ValidateTable(context.Background(), table)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.IssueOutOfRange, result.Errors[0].Type)
}

func TestFieldValidator_DuplicateIDs(t *testing.T) {
	table := newTestTable(t, "workers.csv", []string{"WorkerID", "WorkerName"},
		[]string{"W1", "Ann"},
		[]string{"W2", "Bob"},
		[]string{"W1", "Cat"},
	)

	result := newTestFieldValidator().ValidateTable(context.Background(), table)

	dups := result.OfType(models.IssueDuplicateID)
	require.Len(t, dups, 2)
	assert.Equal(t, []int{0, 2}, issueRows(dups))
	assert.Equal(t, "Duplicate WorkerID: W1 (found 2 times)", dups[0].Message)
	assert.False(t, dups[0].Fixable)
}

func TestFieldValidator_ReferenceListIsNotDuplicateChecked(t *testing.T) {
	table := singleColumn(t, "clients.csv", "RequestedTaskIDs", "T1", "T1")

	result := newTestFieldValidator().ValidateTable(context.Background(), table)

	assert.Empty(t, result.OfType(models.IssueDuplicateID))
}

func TestFieldValidator_ContactColumns(t *testing.T) {
	table := newTestTable(t, "clients.csv", []string{"Email", "Phone", "Website"},
		[]string{"bad-email", "123", "example.com"},
		[]string{"a@b.com", "+1 555 123 4567", "https://example.com"},
	)

	result := newTestFieldValidator().ValidateTable(context.Background(), table)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.IssueInvalidEmail, result.Errors[0].Type)
	assert.Equal(t, "Invalid email format: bad-email", result.Errors[0].Message)

	require.Len(t, result.Warnings, 2)
	assert.Equal(t, models.IssueInvalidPhone, result.Warnings[0].Type)
	assert.Equal(t, models.IssueInvalidURL, result.Warnings[1].Type)
	assert.Equal(t, []int{0, 0}, issueRows(result.Warnings))
}

func TestFieldValidator_MissingRequired(t *testing.T) {
	values := make([]string, 20)
	for i := range values {
		values[i] = fmt.Sprintf("Region %d", i)
	}
	values[7] = ""
	table := singleColumn(t, "clients.csv", "Region", values...)

	result := newTestFieldValidator().ValidateTable(context.Background(), table)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.IssueMissingRequired, result.Errors[0].Type)
	assert.Equal(t, 7, result.Errors[0].Location.Row)
	assert.Equal(t, "Missing required value for Region", result.Errors[0].Message)
}

func TestFieldValidator_SparseColumnIsOptional(t *testing.T) {
	table := singleColumn(t, "clients.csv", "Region", "North", "", "", "South")

	result := newTestFieldValidator().ValidateTable(context.Background(), table)

	assert.Equal(t, 0, result.Summary.TotalIssues)
}

func TestFieldValidator_ColumnRules(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		values   []string
		wantType models.IssueType
		wantRows []int
	}{
		{
			name:     "priority must be numeric",
			header:   "PriorityLevel",
			values:   []string{"1", "3", "high"},
			wantType: models.IssueInvalidDataType,
			wantRows: []int{2},
		},
		{
			name:     "duration below observed minimum",
			header:   "Duration",
			values:   []string{"2", "4", "0"},
			wantType: models.IssueOutOfRange,
			wantRows: []int{2},
		},
		{
			name:     "duration must be numeric",
			header:   "Duration",
			values:   []string{"2", "two"},
			wantType: models.IssueInvalidDataType,
			wantRows: []int{1},
		},
		{
			name:     "skills with empty item",
			header:   "Skills",
			values:   []string{"a,b", "a,,b", "[\"a\",\"b\"]", "[1,2]"},
			wantType: models.IssueInvalidSkillsFormat,
			wantRows: []int{1, 3},
		},
		{
			name:     "malformed json",
			header:   "AttributesJSON",
			values:   []string{`{"a":1}`, `{a:1}`, "free text"},
			wantType: models.IssueMalformedJSON,
			wantRows: []int{1},
		},
	}

	validator := newTestFieldValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validator.ValidateTable(context.Background(), singleColumn(t, "t.csv", tt.header, tt.values...))

			assert.Equal(t, tt.wantRows, issueRows(result.OfType(tt.wantType)))
		})
	}
}

func TestFieldValidator_Outliers(t *testing.T) {
	table := singleColumn(t, "clients.csv", "Budget", "10", "11", "12", "13", "14", "1000")

	result := newTestFieldValidator().ValidateTable(context.Background(), table)

	require.Len(t, result.Info, 1)
	outlier := result.Info[0]
	assert.Equal(t, models.IssueOutlier, outlier.Type)
	assert.Equal(t, 5, outlier.Location.Row)
	assert.Equal(t, "Potential outlier in Budget: 1000 (typical range: 7.50 - 17.50)", outlier.Message)
	assert.False(t, outlier.Fixable)
}

func TestFieldValidator_TooFewValuesForOutliers(t *testing.T) {
	table := singleColumn(t, "clients.csv", "Budget", "10", "11", "1000")

	result := newTestFieldValidator().ValidateTable(context.Background(), table)

	assert.Empty(t, result.Info)
}

func TestFieldValidator_SuspiciousContent(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	core, recorded := observer.New(zapcore.DebugLevel)
	validator := NewFieldValidator(cfg, zap.New(core))
	table := singleColumn(t, "clients.csv", "Notes", "' OR '1'='1", "hello there")

	result := validator.ValidateTable(context.Background(), table)

	audited := recorded.FilterLoggerName("security_audit").All()
	require.Len(t, audited, 1)
	assert.Equal(t, "Notes", audited[0].ContextMap()["column"])

	suspicious := result.OfType(models.IssueSuspiciousContent)
	require.Len(t, suspicious, 1)
	assert.Equal(t, 0, suspicious[0].Location.Row)
	assert.Equal(t, models.SeverityWarning, suspicious[0].Severity)
	assert.False(t, suspicious[0].Fixable)

	cfg.CheckSuspiciousContent = false
	result = NewFieldValidator(cfg, zap.NewNop()).ValidateTable(context.Background(), table)
	assert.Empty(t, result.OfType(models.IssueSuspiciousContent))
}

func messyTable(t *testing.T) *models.Table {
	return newTestTable(t, "tasks.csv",
		[]string{"TaskID", "Duration", "PreferredPhases", "MaxConcurrent", "Email", "Skills"},
		[]string{"T1", "2", "[1,2]", "1", "a@b.com", "go"},
		[]string{"T1", "0", "1-2", "x", "nope", "go,,java"},
		[]string{"T3", "", "oops", "0", "", ";"},
		[]string{"T4", "3", "[1]", "2", "c@d.org", "rust"},
	)
}

func TestFieldValidator_LocationsPointAtCells(t *testing.T) {
	table := messyTable(t)

	result := newTestFieldValidator().ValidateTable(context.Background(), table)

	require.NotZero(t, result.Summary.TotalIssues)
	for _, issue := range result.All() {
		if issue.Location == nil {
			continue
		}
		assert.Equal(t, table.Name, issue.Location.Table)
		assert.GreaterOrEqual(t, issue.Location.Row, 0)
		assert.Less(t, issue.Location.Row, table.RowCount())
		assert.True(t, slices.Contains(table.Headers, issue.Location.Column), "column %q", issue.Location.Column)
	}
	assert.Equal(t, result.Summary.TotalIssues, len(result.Errors)+len(result.Warnings)+len(result.Info))
}

func TestFieldValidator_Deterministic(t *testing.T) {
	validator := newTestFieldValidator()
	table := messyTable(t)

	first := validator.ValidateTable(context.Background(), table)
	second := validator.ValidateTable(context.Background(), table)

	assert.Equal(t, first, second)
}

func TestFieldValidator_NilTable(t *testing.T) {
	result := newTestFieldValidator().ValidateTable(context.Background(), nil)
	assert.Equal(t, 0, result.Summary.TotalIssues)
}
