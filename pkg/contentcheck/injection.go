package contentcheck

import (
	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

// Kind names the class of hostile content that was detected.
type Kind string

const (
	KindSQLi Kind = "sql_injection"
	KindXSS  Kind = "xss"
)

// CheckResult contains the result of an injection check on one cell.
type CheckResult struct {
	Kind        Kind
	Fingerprint string // libinjection fingerprint, SQL injection only
	Column      string
	Value       string
}

// CheckCell uses libinjection to detect SQL injection or cross-site
// scripting payloads in a text cell. Intake files usually end up in a
// database or a web page, so hostile cells are worth flagging early.
//
// Only text cells are checked; numbers, booleans and nulls cannot carry a
// payload and return nil.
//
// Example:
//
//	CheckCell("ClientName", models.TextCell("Acme Corp"))
//	// nil
//
//	result := CheckCell("ClientName", models.TextCell("x' OR '1'='1"))
//	// result.Kind == KindSQLi
func CheckCell(column string, cell models.Cell) *CheckResult {
	if cell.Kind() != models.CellText {
		return nil
	}
	return CheckValue(column, cell.Text())
}

// CheckValue runs the SQL injection check first and the XSS check second.
func CheckValue(column, value string) *CheckResult {
	if value == "" {
		return nil
	}

	if isSQLi, fingerprint := libinjection.IsSQLi(value); isSQLi {
		return &CheckResult{
			Kind:        KindSQLi,
			Fingerprint: string(fingerprint),
			Column:      column,
			Value:       value,
		}
	}

	if libinjection.IsXSS(value) {
		return &CheckResult{
			Kind:   KindXSS,
			Column: column,
			Value:  value,
		}
	}

	return nil
}

// CheckRecord checks every cell of a row in the given column order and
// returns one result per flagged cell.
func CheckRecord(headers []string, record models.Record) []*CheckResult {
	var results []*CheckResult
	for _, h := range headers {
		if result := CheckCell(h, record[h]); result != nil {
			results = append(results, result)
		}
	}
	return results
}
