package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func issue(sev Severity, typ IssueType) ValidationIssue {
	return ValidationIssue{Severity: sev, Type: typ, Message: string(typ)}
}

func TestNewValidationResult_RoutesBySeverity(t *testing.T) {
	r := NewValidationResult(
		issue(SeverityError, IssueDuplicateID),
		issue(SeverityWarning, IssueInvalidPhone),
		issue(SeverityInfo, IssueOutlier),
		issue(SeverityError, IssueMalformedJSON),
	)

	assert.Len(t, r.Errors, 2)
	assert.Len(t, r.Warnings, 1)
	assert.Len(t, r.Info, 1)
	assert.Equal(t, Summary{TotalIssues: 4, ErrorCount: 2, WarningCount: 1, InfoCount: 1}, r.Summary)
	assert.True(t, r.HasErrors())
}

func TestNewValidationResult_EmptyIsNotNil(t *testing.T) {
	r := NewValidationResult()
	assert.NotNil(t, r.Errors)
	assert.NotNil(t, r.Warnings)
	assert.NotNil(t, r.Info)
	assert.Equal(t, 0, r.Summary.TotalIssues)
	assert.False(t, r.HasErrors())
}

func TestValidationResult_Merge(t *testing.T) {
	a := NewValidationResult(issue(SeverityError, IssueDuplicateID))
	b := NewValidationResult(issue(SeverityError, IssueMissingRequiredFiles), issue(SeverityInfo, IssueTaskInventory))

	a.Merge(b)

	assert.Equal(t, []IssueType{IssueDuplicateID, IssueMissingRequiredFiles}, []IssueType{a.Errors[0].Type, a.Errors[1].Type})
	assert.Equal(t, 3, a.Summary.TotalIssues)
	assert.Equal(t, a.Summary.TotalIssues, len(a.Errors)+len(a.Warnings)+len(a.Info))
}

func TestValidationResult_OfType(t *testing.T) {
	r := NewValidationResult(
		issue(SeverityInfo, IssueOutlier),
		issue(SeverityError, IssueOutOfRange),
		issue(SeverityInfo, IssueOutlier),
	)

	assert.Len(t, r.OfType(IssueOutlier), 2)
	assert.Len(t, r.OfType(IssueOutOfRange), 1)
	assert.Empty(t, r.OfType(IssueDuplicateID))
	assert.Equal(t, IssueOutOfRange, r.All()[0].Type, "errors come first")
}

func TestValidationResult_UnknownSeverityCountsAsError(t *testing.T) {
	r := NewValidationResult(ValidationIssue{Severity: "fatal", Type: IssueMissingRequiredFiles})
	assert.Len(t, r.Errors, 1)
}
