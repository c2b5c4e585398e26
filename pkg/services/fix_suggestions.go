package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-intake/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-intake/pkg/listparse"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

const (
	placeholderEmail = "user@example.com"
	placeholderName  = "Unknown"
	placeholderPhone = "+1-555-0000"
	placeholderValue = "N/A"
)

var (
	unquotedKeyPattern = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	nonDigitPattern    = regexp.MustCompile(`\D`)
	nonNumericPattern  = regexp.MustCompile(`[^0-9.\-]`)
	digitRunPattern    = regexp.MustCompile(`\d+`)
	prefixedIDPattern  = regexp.MustCompile(`^(\D*)(\d+)$`)
)

// SuggestFixes proposes a corrected value for each fixable, located error
// and warning in result. tables are the canonicalized tables the issues
// refer to. Suggestions are returned in issue order and nothing is applied.
// Issues for which no better value can be derived are skipped.
func SuggestFixes(tables []*models.Table, result models.ValidationResult) []models.FixSuggestion {
	byName := make(map[string]*models.Table, len(tables))
	for _, t := range tables {
		if t == nil {
			continue
		}
		if _, ok := byName[t.Name]; !ok {
			byName[t.Name] = t
		}
	}

	issues := make([]models.ValidationIssue, 0, len(result.Errors)+len(result.Warnings))
	issues = append(issues, result.Errors...)
	issues = append(issues, result.Warnings...)

	var fixes []models.FixSuggestion
	for _, issue := range issues {
		if !issue.Fixable || issue.Location == nil {
			continue
		}
		table, ok := byName[issue.Location.Table]
		if !ok || !table.HasHeader(issue.Location.Column) {
			continue
		}

		before := table.Cell(issue.Location.Row, issue.Location.Column)
		after, description, confidence, ok := suggestFix(table, issue, before)
		if !ok || after.Equal(before) {
			continue
		}

		fixes = append(fixes, models.FixSuggestion{
			Table:       issue.Location.Table,
			Row:         issue.Location.Row,
			Column:      issue.Location.Column,
			IssueType:   issue.Type,
			Before:      before,
			After:       after,
			Description: description,
			Confidence:  confidence,
			Severity:    issue.Severity,
		})
	}
	return fixes
}

func suggestFix(table *models.Table, issue models.ValidationIssue, before models.Cell) (models.Cell, string, float64, bool) {
	column := issue.Location.Column
	text := strings.TrimSpace(before.Text())

	switch issue.Type {
	case models.IssueMissingRequired:
		v := missingValue(table, column)
		return models.TextCell(v), fmt.Sprintf("Fill missing %s with %q", column, v), 0.6, true

	case models.IssueInvalidEmail:
		v, ok := fixEmail(text)
		return models.TextCell(v), "Normalize email address", 0.9, ok

	case models.IssueMalformedJSON:
		if v, ok := repairJSON(text); ok {
			return models.TextCell(v), "Repair JSON quoting", 0.7, true
		}
		return models.TextCell("{}"), "Replace malformed JSON with an empty object", 0.3, true

	case models.IssueInvalidPhone:
		v, ok := fixPhone(text)
		return models.TextCell(v), "Format phone number as +1-XXX-XXX-XXXX", 0.7, ok

	case models.IssueInvalidURL:
		v, ok := fixURL(text)
		return models.TextCell(v), "Add https:// scheme", 0.8, ok

	case models.IssueOutOfRange:
		n, ok := before.Number()
		if !ok {
			return models.Cell{}, "", 0, false
		}
		lo, hi := validRange(table, column)
		clamped := math.Min(math.Max(n, lo), hi)
		return models.NumberCell(clamped), fmt.Sprintf("Clamp %s to %s", column, formatNumber(clamped)), 0.8, true

	case models.IssueInvalidPhaseFormat:
		runs := digitRunPattern.FindAllString(text, -1)
		v, ok := listparse.EncodePhases(runs, listparse.PhaseJSONArray)
		return models.TextCell(v), "Rewrite phases as a JSON array", 0.6, ok

	case models.IssueFormatInconsistency:
		majority := majorityPhaseEncoding(table.Column(column))
		if majority == "" {
			return models.Cell{}, "", 0, false
		}
		v, ok := listparse.EncodePhases(listparse.ParsePhases(text), majority)
		return models.TextCell(v), fmt.Sprintf("Re-encode phases as %s", majority), 0.7, ok

	case models.IssueInvalidDataType:
		n, ok := models.ParseNumber(nonNumericPattern.ReplaceAllString(text, ""))
		return models.NumberCell(n), "Strip non-numeric characters", 0.5, ok
	}

	return models.Cell{}, "", 0, false
}

// missingValue picks a fill value for an empty required cell from the
// column name and the column's other values.
func missingValue(table *models.Table, column string) string {
	lower := strings.ToLower(column)
	switch {
	case strings.Contains(lower, "email"):
		return placeholderEmail
	case strings.Contains(lower, "name"):
		return placeholderName
	case strings.Contains(lower, "phone"):
		return placeholderPhone
	case strings.HasSuffix(lower, "id"):
		if id, ok := nextID(table.Column(column)); ok {
			return id
		}
	}
	if v, ok := mostCommon(table.Column(column)); ok {
		return v
	}
	return placeholderValue
}

// nextID returns the identifier after the largest numbered one, keeping its
// prefix: C1, C7, C3 gives C8.
func nextID(cells []models.Cell) (string, bool) {
	best := -1
	prefix := ""
	for _, c := range cells {
		if c.IsEmpty() {
			continue
		}
		m := prefixedIDPattern.FindStringSubmatch(strings.TrimSpace(c.Text()))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil || n <= best {
			continue
		}
		best = n
		prefix = m[1]
	}
	if best < 0 {
		return "", false
	}
	return prefix + strconv.Itoa(best+1), true
}

// mostCommon returns the most frequent non-empty value. Ties go to the
// value seen first.
func mostCommon(cells []models.Cell) (string, bool) {
	counts := make(map[string]int)
	var order []string
	for _, c := range cells {
		if c.IsEmpty() {
			continue
		}
		v := c.Text()
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	best, bestCount := "", 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best, bestCount > 0
}

func fixEmail(s string) (string, bool) {
	v := strings.ToLower(strings.Join(strings.Fields(s), ""))
	if v == "" {
		return "", false
	}
	at := strings.LastIndex(v, "@")
	switch {
	case at < 0:
		v += "@example.com"
	case at == len(v)-1:
		v += "example.com"
	case !strings.Contains(v[at+1:], "."):
		v += ".com"
	}
	return v, emailPattern.MatchString(v)
}

func repairJSON(s string) (string, bool) {
	v := strings.ReplaceAll(s, "'", `"`)
	v = unquotedKeyPattern.ReplaceAllString(v, `$1"$2":`)
	return v, jsonutil.Valid(v)
}

func fixPhone(s string) (string, bool) {
	digits := nonDigitPattern.ReplaceAllString(s, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", false
	}
	return fmt.Sprintf("+1-%s-%s-%s", digits[:3], digits[3:6], digits[6:]), true
}

func fixURL(s string) (string, bool) {
	if s == "" || strings.Contains(s, "://") {
		return "", false
	}
	v := "https://" + s
	return v, isAbsoluteURL(v)
}

// validRange returns the bounds an out_of_range value is clamped into,
// chosen the same way the field validator chose them.
func validRange(table *models.Table, column string) (float64, float64) {
	lower := strings.ToLower(column)
	cells := table.Column(column)
	switch {
	case strings.Contains(lower, "maxconcurrent"):
		return minConcurrency, math.Inf(1)
	case strings.Contains(lower, "duration"):
		return minPositive(cells), math.Inf(1)
	default:
		return observedRange(cells)
	}
}
