package models

import "github.com/google/uuid"

// FixSuggestion is a proposed correction for one fixable issue. Suggestions
// are never applied by the engine.
type FixSuggestion struct {
	Table       string    `json:"table"`
	Row         int       `json:"row"`
	Column      string    `json:"column"`
	IssueType   IssueType `json:"issue_type"`
	Before      Cell      `json:"before"`
	After       Cell      `json:"after"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	Severity    Severity  `json:"severity"`
}

// TableReport is the per-table part of a run.
type TableReport struct {
	Name           string               `json:"name"`
	Classification ClassificationResult `json:"classification"`
	// Overridden is true when the entity type came from the caller.
	Overridden  bool             `json:"overridden"`
	Mapping     HeaderMapping    `json:"mapping"`
	Suggestions []string         `json:"suggestions"`
	Headers     []string         `json:"headers"` // canonicalized
	RowCount    int              `json:"row_count"`
	Result      ValidationResult `json:"result"`
}

// Report is the aggregate output of one intake run.
type Report struct {
	RunID          uuid.UUID        `json:"run_id"`
	Tables         []TableReport    `json:"tables"`
	CrossFile      ValidationResult `json:"cross_file"`
	Combined       ValidationResult `json:"combined"`
	FixSuggestions []FixSuggestion  `json:"fix_suggestions"`
}
