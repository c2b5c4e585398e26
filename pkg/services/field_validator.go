package services

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-intake/pkg/audit"
	"github.com/ekaya-inc/ekaya-intake/pkg/config"
	"github.com/ekaya-inc/ekaya-intake/pkg/contentcheck"
	"github.com/ekaya-inc/ekaya-intake/pkg/listparse"
	"github.com/ekaya-inc/ekaya-intake/pkg/logging"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

const (
	// outlierMinValues is the fewest numeric values a column needs before
	// outlier fences are computed.
	outlierMinValues = 5
	// outlierNumericShare is the share of rows that must be numeric for a
	// column to be checked for outliers.
	outlierNumericShare = 0.5

	defaultPriorityMin = 1.0
	defaultPriorityMax = 5.0
	defaultMinDuration = 1.0
	minConcurrency     = 1.0

	phaseFormatHint = "Expected: JSON array [1,2,3], range 1-3, or comma-separated 1,2,3"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-()]{10,}$`)
)

// FieldValidator runs per-column checks on one canonicalized table.
type FieldValidator interface {
	// ValidateTable checks every cell and returns every issue found. Bad
	// data never produces an error, only issues.
	ValidateTable(ctx context.Context, table *models.Table) models.ValidationResult
}

type fieldValidator struct {
	cfg     config.EngineConfig
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewFieldValidator creates a field validator.
func NewFieldValidator(cfg config.EngineConfig, logger *zap.Logger) FieldValidator {
	return &fieldValidator{
		cfg:     cfg,
		auditor: audit.NewSecurityAuditor(logger),
		logger:  logger.Named("field-validator"),
	}
}

var _ FieldValidator = (*fieldValidator)(nil)

// columnRules records which checks apply to a column and the statistics
// those checks compare against. Rules are chosen by substrings of the
// lower-cased header.
type columnRules struct {
	header   string
	required bool

	priority    bool
	phases      bool
	skills      bool
	duration    bool
	concurrency bool
	json        bool
	email       bool
	phone       bool
	url         bool

	priorityMin float64
	priorityMax float64
	minDuration float64
	// majority is the most common valid phase encoding in the column.
	majority listparse.PhaseEncoding
}

func (v *fieldValidator) ValidateTable(ctx context.Context, table *models.Table) models.ValidationResult {
	result := models.NewValidationResult()
	if table == nil {
		return result
	}

	rules := make([]columnRules, len(table.Headers))
	for i, h := range table.Headers {
		rules[i] = v.profileColumn(table, h)
	}

	result.Add(v.duplicateIDIssues(table)...)

	for row := range table.Rows {
		for _, col := range rules {
			result.Add(v.cellIssues(ctx, table, row, col)...)
		}
	}

	result.Add(v.outlierIssues(table)...)

	v.logger.Debug("Validated table",
		zap.String("table", table.Name),
		zap.Int("rows", table.RowCount()),
		zap.Int("errors", result.Summary.ErrorCount),
		zap.Int("warnings", result.Summary.WarningCount),
		zap.Int("info", result.Summary.InfoCount))

	return result
}

func (v *fieldValidator) profileColumn(table *models.Table, header string) columnRules {
	lower := strings.ToLower(header)
	col := columnRules{
		header:      header,
		priority:    strings.Contains(lower, "priority"),
		phases:      containsAny(lower, "availableslots", "preferredphases", "phases", "slots"),
		skills:      strings.Contains(lower, "skills"),
		duration:    strings.Contains(lower, "duration"),
		concurrency: strings.Contains(lower, "maxconcurrent"),
		json:        containsAny(lower, "json", "attributes"),
		email:       strings.Contains(lower, "email"),
		phone:       strings.Contains(lower, "phone"),
		url:         containsAny(lower, "url", "website"),
	}

	cells := table.Column(header)
	empty := 0
	for _, c := range cells {
		if c.IsEmpty() {
			empty++
		}
	}
	if len(cells) > 0 {
		col.required = float64(empty)/float64(len(cells)) < v.cfg.RequiredNullRate
	}

	if col.priority {
		col.priorityMin, col.priorityMax = observedRange(cells)
	}
	if col.duration {
		col.minDuration = minPositive(cells)
	}
	if col.phases {
		col.majority = majorityPhaseEncoding(cells)
	}
	return col
}

func (v *fieldValidator) cellIssues(ctx context.Context, table *models.Table, row int, col columnRules) []models.ValidationIssue {
	cell := table.Cell(row, col.header)
	loc := models.At(table.Name, row, col.header)

	issue := func(severity models.Severity, t models.IssueType, fixable bool, format string, args ...any) models.ValidationIssue {
		return models.ValidationIssue{
			Severity: severity,
			Type:     t,
			Message:  fmt.Sprintf(format, args...),
			Location: loc,
			Value:    models.ValueOf(cell),
			Fixable:  fixable,
		}
	}

	if cell.IsEmpty() {
		if col.required {
			return []models.ValidationIssue{
				issue(models.SeverityError, models.IssueMissingRequired, true, "Missing required value for %s", col.header),
			}
		}
		return nil
	}

	text := cell.Text()
	shown := logging.SanitizeValue(text)
	var issues []models.ValidationIssue

	if col.priority {
		if n, ok := cell.Number(); !ok {
			issues = append(issues, issue(models.SeverityError, models.IssueInvalidDataType, true,
				"%s must be a number, got: %s", col.header, shown))
		} else if n < col.priorityMin || n > col.priorityMax {
			issues = append(issues, issue(models.SeverityError, models.IssueOutOfRange, true,
				"%s %s out of detected range (%s-%s)", col.header, shown, formatNumber(col.priorityMin), formatNumber(col.priorityMax)))
		}
	}

	if col.phases {
		enc, reason := listparse.ValidatePhase(text)
		if enc == listparse.PhaseInvalid {
			issues = append(issues, issue(models.SeverityError, models.IssueInvalidPhaseFormat, true,
				"Invalid format in %s: %s. %s", col.header, reason, phaseFormatHint))
		} else if col.majority != "" && enc != col.majority {
			issues = append(issues, issue(models.SeverityWarning, models.IssueFormatInconsistency, true,
				"Inconsistent format in %s: %s uses %s but most rows use %s. Consider standardizing to one format.",
				col.header, shown, enc, col.majority))
		}
	}

	if col.skills {
		if ok, reason := listparse.ValidateSkills(text); !ok {
			issues = append(issues, issue(models.SeverityError, models.IssueInvalidSkillsFormat, true,
				"Invalid skills format in %s: %s", col.header, reason))
		}
	}

	if col.duration {
		if n, ok := cell.Number(); !ok {
			issues = append(issues, issue(models.SeverityError, models.IssueInvalidDataType, true,
				"%s must be a number, got: %s", col.header, shown))
		} else if n < col.minDuration {
			issues = append(issues, issue(models.SeverityError, models.IssueOutOfRange, true,
				"%s %s must be >= %s (based on data analysis)", col.header, shown, formatNumber(col.minDuration)))
		}
	}

	if col.concurrency {
		if n, ok := cell.Number(); !ok {
			issues = append(issues, issue(models.SeverityError, models.IssueInvalidDataType, true,
				"%s must be a number, got: %s", col.header, shown))
		} else if n < minConcurrency {
			issues = append(issues, issue(models.SeverityError, models.IssueOutOfRange, true,
				"%s must be >= 1, got: %s", col.header, shown))
		}
	}

	if col.json && !listparse.ValidJSONOrText(text) {
		issues = append(issues, issue(models.SeverityError, models.IssueMalformedJSON, true,
			"Malformed JSON in %s: %s", col.header, shown))
	}

	if col.email && !emailPattern.MatchString(text) {
		issues = append(issues, issue(models.SeverityError, models.IssueInvalidEmail, true,
			"Invalid email format: %s", shown))
	}

	if col.phone && !phonePattern.MatchString(text) {
		issues = append(issues, issue(models.SeverityWarning, models.IssueInvalidPhone, true,
			"Invalid phone number format: %s", shown))
	}

	if col.url && !isAbsoluteURL(text) {
		issues = append(issues, issue(models.SeverityWarning, models.IssueInvalidURL, true,
			"Invalid URL format: %s", shown))
	}

	if v.cfg.CheckSuspiciousContent {
		if hit := contentcheck.CheckCell(col.header, cell); hit != nil {
			v.auditor.LogSuspiciousContent(ctx, *loc, hit)
			issues = append(issues, issue(models.SeverityWarning, models.IssueSuspiciousContent, false,
				"Suspicious content in %s (%s): %s", col.header, hit.Kind, shown))
		}
	}

	return issues
}

// duplicateIDIssues reports every row whose entity identifier appears more
// than once in its column.
func (v *fieldValidator) duplicateIDIssues(table *models.Table) []models.ValidationIssue {
	var issues []models.ValidationIssue

	for _, h := range table.Headers {
		if !isEntityIDColumn(h) {
			continue
		}

		groups := make(map[string][]int)
		var order []string
		for row := range table.Rows {
			c := table.Cell(row, h)
			if c.IsEmpty() {
				continue
			}
			key := c.Text()
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], row)
		}

		for _, key := range order {
			rows := groups[key]
			if len(rows) < 2 {
				continue
			}
			for _, row := range rows {
				cell := table.Cell(row, h)
				issues = append(issues, models.ValidationIssue{
					Severity: models.SeverityError,
					Type:     models.IssueDuplicateID,
					Message:  fmt.Sprintf("Duplicate %s: %s (found %d times)", h, logging.SanitizeValue(key), len(rows)),
					Location: models.At(table.Name, row, h),
					Value:    models.ValueOf(cell),
					Fixable:  false,
				})
			}
		}
	}

	return issues
}

// isEntityIDColumn reports whether a header names a single client, worker
// or task identifier. List-valued reference columns such as
// RequestedTaskIDs are excluded.
func isEntityIDColumn(header string) bool {
	lower := strings.ToLower(header)
	if !strings.Contains(lower, "id") || strings.HasSuffix(lower, "ids") {
		return false
	}
	return containsAny(lower, "client", "worker", "task")
}

// outlierIssues flags numeric values outside the IQR fences of mostly
// numeric columns.
func (v *fieldValidator) outlierIssues(table *models.Table) []models.ValidationIssue {
	var issues []models.ValidationIssue
	rowCount := table.RowCount()

	for _, h := range table.Headers {
		var values []float64
		for _, c := range table.Column(h) {
			if c.IsEmpty() {
				continue
			}
			if n, ok := c.Number(); ok {
				values = append(values, n)
			}
		}

		if float64(len(values)) <= float64(rowCount)*outlierNumericShare || len(values) < outlierMinValues {
			continue
		}

		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		q1 := quantile(sorted, 0.25)
		q3 := quantile(sorted, 0.75)
		iqr := q3 - q1
		lower := q1 - v.cfg.IQRMultiplier*iqr
		upper := q3 + v.cfg.IQRMultiplier*iqr

		for row := range table.Rows {
			cell := table.Cell(row, h)
			if cell.IsEmpty() {
				continue
			}
			n, ok := cell.Number()
			if !ok || (n >= lower && n <= upper) {
				continue
			}
			issues = append(issues, models.ValidationIssue{
				Severity: models.SeverityInfo,
				Type:     models.IssueOutlier,
				Message: fmt.Sprintf("Potential outlier in %s: %s (typical range: %.2f - %.2f)",
					h, formatNumber(n), lower, upper),
				Location: models.At(table.Name, row, h),
				Value:    models.ValueOf(cell),
				Fixable:  false,
			})
		}
	}

	return issues
}

// quantile returns the linear-interpolated q-quantile of sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := float64(len(sorted)-1) * q
	base := int(math.Floor(pos))
	rest := pos - float64(base)
	if base+1 < len(sorted) {
		return sorted[base] + rest*(sorted[base+1]-sorted[base])
	}
	return sorted[base]
}

// observedRange returns the min and max of the non-empty numeric cells, or
// the default priority range when there are none.
func observedRange(cells []models.Cell) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range cells {
		if c.IsEmpty() {
			continue
		}
		if n, ok := c.Number(); ok {
			lo = math.Min(lo, n)
			hi = math.Max(hi, n)
		}
	}
	if math.IsInf(lo, 1) {
		return defaultPriorityMin, defaultPriorityMax
	}
	return lo, hi
}

// minPositive returns the smallest positive numeric cell, or 1 when there
// is none.
func minPositive(cells []models.Cell) float64 {
	best := math.Inf(1)
	for _, c := range cells {
		if c.IsEmpty() {
			continue
		}
		if n, ok := c.Number(); ok && n > 0 && n < best {
			best = n
		}
	}
	if math.IsInf(best, 1) {
		return defaultMinDuration
	}
	return best
}

// majorityPhaseEncoding returns the most common valid encoding among the
// non-empty cells. Ties go to the encoding seen first. The result is empty
// when no cell is valid.
func majorityPhaseEncoding(cells []models.Cell) listparse.PhaseEncoding {
	counts := make(map[listparse.PhaseEncoding]int)
	var order []listparse.PhaseEncoding

	for _, c := range cells {
		if c.IsEmpty() {
			continue
		}
		enc, _ := listparse.ValidatePhase(c.Text())
		if enc == listparse.PhaseInvalid {
			continue
		}
		if counts[enc] == 0 {
			order = append(order, enc)
		}
		counts[enc]++
	}

	var majority listparse.PhaseEncoding
	best := 0
	for _, enc := range order {
		if counts[enc] > best {
			majority = enc
			best = counts[enc]
		}
	}
	return majority
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// formatNumber renders a float in its shortest decimal form.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
