package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

func fixableAt(table, column string, row int, t models.IssueType) models.ValidationIssue {
	return models.ValidationIssue{
		Severity: models.SeverityError,
		Type:     t,
		Message:  string(t),
		Location: models.At(table, row, column),
		Fixable:  true,
	}
}

func TestSuggestFixes_PerIssueType(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		values    []string
		row       int
		issueType models.IssueType
		want      models.Cell
	}{
		{"email missing tld", "Email", []string{" John@Example "}, 0, models.IssueInvalidEmail, models.TextCell("john@example.com")},
		{"email missing domain", "Email", []string{"jane"}, 0, models.IssueInvalidEmail, models.TextCell("jane@example.com")},
		{"json unquoted keys", "AttributesJSON", []string{"{a:1}"}, 0, models.IssueMalformedJSON, models.TextCell(`{"a":1}`)},
		{"json single quotes", "AttributesJSON", []string{"{'a': 'b'}"}, 0, models.IssueMalformedJSON, models.TextCell(`{"a": "b"}`)},
		{"json unrepairable", "AttributesJSON", []string{"{oops"}, 0, models.IssueMalformedJSON, models.TextCell("{}")},
		{"phone ten digits", "Phone", []string{"555.123.4567"}, 0, models.IssueInvalidPhone, models.TextCell("+1-555-123-4567")},
		{"phone with country code", "Phone", []string{"1 (555) 123 4567"}, 0, models.IssueInvalidPhone, models.TextCell("+1-555-123-4567")},
		{"url scheme", "Website", []string{"example.com"}, 0, models.IssueInvalidURL, models.TextCell("https://example.com")},
		{"concurrency clamp", "MaxConcurrent", []string{"2", "0"}, 1, models.IssueOutOfRange, models.NumberCell(1)},
		{"duration clamp", "Duration", []string{"3", "5", "-2"}, 2, models.IssueOutOfRange, models.NumberCell(3)},
		{"phase digits", "PreferredPhases", []string{"1;2"}, 0, models.IssueInvalidPhaseFormat, models.TextCell("[1,2]")},
		{"phase re-encode", "PreferredPhases", []string{"[1,2]", "[3]", "1,2"}, 2, models.IssueFormatInconsistency, models.TextCell("[1,2]")},
		{"strip non-numeric", "MaxConcurrent", []string{"12x"}, 0, models.IssueInvalidDataType, models.NumberCell(12)},
		{"next id", "ClientID", []string{"C1", "", "C7", "C3"}, 1, models.IssueMissingRequired, models.TextCell("C8")},
		{"name placeholder", "ClientName", []string{"", "Acme"}, 0, models.IssueMissingRequired, models.TextCell("Unknown")},
		{"most common value", "Region", []string{"North", "South", "North", ""}, 3, models.IssueMissingRequired, models.TextCell("North")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := singleColumn(t, "t.csv", tt.header, tt.values...)
			result := models.NewValidationResult(fixableAt("t.csv", tt.header, tt.row, tt.issueType))

			fixes := SuggestFixes([]*models.Table{table}, result)

			require.Len(t, fixes, 1)
			fix := fixes[0]
			assert.Equal(t, tt.want, fix.After)
			assert.Equal(t, table.Cell(tt.row, tt.header), fix.Before)
			assert.Equal(t, tt.issueType, fix.IssueType)
			assert.Equal(t, tt.row, fix.Row)
			assert.Greater(t, fix.Confidence, 0.0)
			assert.LessOrEqual(t, fix.Confidence, 1.0)
			assert.NotEmpty(t, fix.Description)
		})
	}
}

func TestSuggestFixes_Skips(t *testing.T) {
	table := singleColumn(t, "t.csv", "Phone", "12", "abc")

	notFixable := fixableAt("t.csv", "Phone", 0, models.IssueInvalidPhone)
	notFixable.Fixable = false
	noLocation := fixableAt("t.csv", "Phone", 0, models.IssueInvalidPhone)
	noLocation.Location = nil
	otherTable := fixableAt("other.csv", "Phone", 0, models.IssueInvalidPhone)
	tooShort := fixableAt("t.csv", "Phone", 0, models.IssueInvalidPhone)
	noDigits := fixableAt("t.csv", "Phone", 1, models.IssueDuplicateID)

	result := models.NewValidationResult(notFixable, noLocation, otherTable, tooShort, noDigits)

	assert.Empty(t, SuggestFixes([]*models.Table{table}, result))
}

func TestSuggestFixes_ErrorsBeforeWarnings(t *testing.T) {
	table := newTestTable(t, "c.csv", []string{"Email", "Website"},
		[]string{"x", "example.org"},
	)
	warning := fixableAt("c.csv", "Website", 0, models.IssueInvalidURL)
	warning.Severity = models.SeverityWarning
	result := models.NewValidationResult(warning, fixableAt("c.csv", "Email", 0, models.IssueInvalidEmail))

	fixes := SuggestFixes([]*models.Table{table}, result)

	require.Len(t, fixes, 2)
	assert.Equal(t, models.IssueInvalidEmail, fixes[0].IssueType)
	assert.Equal(t, models.SeverityError, fixes[0].Severity)
	assert.Equal(t, models.IssueInvalidURL, fixes[1].IssueType)
	assert.Equal(t, models.SeverityWarning, fixes[1].Severity)
}
