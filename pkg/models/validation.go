package models

// ============================================================================
// Severity and Issue Types
// ============================================================================

// Severity ranks a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IssueType is the category tag of a validation issue.
type IssueType string

// Per-table issue types.
const (
	IssueMissingRequired     IssueType = "missing_required"
	IssueInvalidDataType     IssueType = "invalid_data_type"
	IssueOutOfRange          IssueType = "out_of_range"
	IssueInvalidPhaseFormat  IssueType = "invalid_phase_format"
	IssueFormatInconsistency IssueType = "format_inconsistency"
	IssueInvalidSkillsFormat IssueType = "invalid_skills_format"
	IssueMalformedJSON       IssueType = "malformed_json"
	IssueInvalidEmail        IssueType = "invalid_email"
	IssueInvalidPhone        IssueType = "invalid_phone"
	IssueInvalidURL          IssueType = "invalid_url"
	IssueDuplicateID         IssueType = "duplicate_id"
	IssueOutlier             IssueType = "outlier"
	IssueSuspiciousContent   IssueType = "suspicious_content"
)

// Cross-file issue types.
const (
	IssueMissingRequiredFiles IssueType = "missing_required_files"
	IssueInvalidTaskReference IssueType = "invalid_task_reference"
	IssueSkillCoverageGap     IssueType = "skill_coverage_gap"
	IssueGroupMismatch        IssueType = "group_mismatch"
	IssueInsufficientWorkers  IssueType = "insufficient_workers"
	IssuePhaseAvailability    IssueType = "phase_availability"
	IssueTaskInventory        IssueType = "task_inventory"
)

// ============================================================================
// Issues
// ============================================================================

// Location points at a single cell.
type Location struct {
	Table  string `json:"table"`
	Row    int    `json:"row"` // 0-based data row index
	Column string `json:"column"`
}

// ValidationIssue is one finding. Issues are values; nothing mutates them
// after construction.
type ValidationIssue struct {
	Severity      Severity  `json:"severity"`
	Type          IssueType `json:"type"`
	Message       string    `json:"message"`
	Location      *Location `json:"location,omitempty"`
	Value         *Cell     `json:"value,omitempty"`
	Fixable       bool      `json:"fixable"`
	RelatedTables []string  `json:"related_tables,omitempty"`
}

// At returns a location pointer for table/row/column.
func At(table string, row int, column string) *Location {
	return &Location{Table: table, Row: row, Column: column}
}

// ValueOf returns a pointer to a copy of c, for ValidationIssue.Value.
func ValueOf(c Cell) *Cell {
	return &c
}

// ============================================================================
// Results
// ============================================================================

// Summary holds issue counts. TotalIssues always equals the sum of the others.
type Summary struct {
	TotalIssues  int `json:"total_issues"`
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
	InfoCount    int `json:"info_count"`
}

// ValidationResult groups issues by severity.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
	Info     []ValidationIssue `json:"info"`
	Summary  Summary           `json:"summary"`
}

// NewValidationResult builds a result from issues in the given order.
func NewValidationResult(issues ...ValidationIssue) ValidationResult {
	r := ValidationResult{
		Errors:   []ValidationIssue{},
		Warnings: []ValidationIssue{},
		Info:     []ValidationIssue{},
	}
	r.Add(issues...)
	return r
}

// Add routes issues into the slice matching their severity and refreshes
// the summary. Unknown severities are treated as errors.
func (r *ValidationResult) Add(issues ...ValidationIssue) {
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityWarning:
			r.Warnings = append(r.Warnings, issue)
		case SeverityInfo:
			r.Info = append(r.Info, issue)
		default:
			r.Errors = append(r.Errors, issue)
		}
	}
	r.refreshSummary()
}

// Merge appends another result's issues, preserving their order.
func (r *ValidationResult) Merge(other ValidationResult) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Info = append(r.Info, other.Info...)
	r.refreshSummary()
}

// All returns every issue: errors, then warnings, then info.
func (r ValidationResult) All() []ValidationIssue {
	all := make([]ValidationIssue, 0, len(r.Errors)+len(r.Warnings)+len(r.Info))
	all = append(all, r.Errors...)
	all = append(all, r.Warnings...)
	all = append(all, r.Info...)
	return all
}

// OfType returns every issue with the given type, in All() order.
func (r ValidationResult) OfType(t IssueType) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range r.All() {
		if issue.Type == t {
			out = append(out, issue)
		}
	}
	return out
}

// HasErrors reports whether any error-severity issue is present.
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *ValidationResult) refreshSummary() {
	r.Summary = Summary{
		ErrorCount:   len(r.Errors),
		WarningCount: len(r.Warnings),
		InfoCount:    len(r.Info),
		TotalIssues:  len(r.Errors) + len(r.Warnings) + len(r.Info),
	}
}
