// Package listparse reads the loosely formatted list cells found in intake
// files: phase and slot lists, skill lists and identifier lists.
package listparse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/ekaya-inc/ekaya-intake/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-intake/pkg/textmatch"
)

// MaxPhaseRange bounds how many phases a single "a-b" range expands to.
const MaxPhaseRange = 10000

// PhaseEncoding names one of the accepted textual encodings of a phase list.
type PhaseEncoding string

const (
	PhaseJSONArray      PhaseEncoding = "json_array"
	PhaseRange          PhaseEncoding = "range"
	PhaseCommaSeparated PhaseEncoding = "comma_separated"
	PhaseSingleValue    PhaseEncoding = "single_value"
	PhaseInvalid        PhaseEncoding = "invalid"
)

var (
	rangeRe  = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)
	commaRe  = regexp.MustCompile(`^\d+(\s*,\s*\d+)*$`)
	singleRe = regexp.MustCompile(`^\[?\d+\]?$`)
)

// ValidatePhase classifies a phase cell. A lone number reads as a one-element
// comma list; "[3" and "3]" are the single-value encoding. When the result is
// PhaseInvalid the returned reason explains why.
func ValidatePhase(value string) (PhaseEncoding, string) {
	s := strings.TrimSpace(value)
	if s == "" {
		return PhaseInvalid, "empty value"
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		elems, ok := jsonutil.ParseArray(s)
		if !ok {
			return PhaseInvalid, "invalid JSON array format"
		}
		for _, e := range elems {
			if !jsonutil.IsNumericElement(e) {
				return PhaseInvalid, "JSON array must contain only numbers"
			}
		}
		return PhaseJSONArray, ""
	}

	if m := rangeRe.FindStringSubmatch(s); m != nil {
		start, errStart := strconv.Atoi(m[1])
		end, errEnd := strconv.Atoi(m[2])
		if errStart == nil && errEnd == nil && start <= end {
			return PhaseRange, ""
		}
		return PhaseInvalid, "invalid range format (start must be <= end)"
	}

	if commaRe.MatchString(s) {
		return PhaseCommaSeparated, ""
	}

	if singleRe.MatchString(s) {
		return PhaseSingleValue, ""
	}

	return PhaseInvalid, "must be JSON array [1,2,3], range 1-3, or comma-separated 1,2,3"
}

// IsValidPhase reports whether value uses any accepted phase encoding.
func IsValidPhase(value string) bool {
	enc, _ := ValidatePhase(value)
	return enc != PhaseInvalid
}

// ParsePhases expands a phase cell into individual phase tokens. Ranges are
// expanded (at most MaxPhaseRange values); unparseable input is returned as a
// single token so that it can still be compared.
func ParsePhases(value string) []string {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		if elems, ok := jsonutil.ParseArray(s); ok {
			return jsonutil.StringValues(elems)
		}
	}

	if strings.Contains(s, "-") {
		parts := strings.Split(s, "-")
		if len(parts) == 2 {
			start, okStart := LeadingInt(parts[0])
			end, okEnd := LeadingInt(parts[1])
			if okStart && okEnd && start <= end {
				// Count-bounded so an end of math.MaxInt cannot wrap the index.
				n := end - start
				if n < 0 || n >= MaxPhaseRange {
					n = MaxPhaseRange - 1
				}
				phases := make([]string, 0, n+1)
				for k := 0; k <= n; k++ {
					phases = append(phases, strconv.Itoa(start+k))
				}
				return phases
			}
		}
	}

	if strings.Contains(s, ",") {
		return splitNonEmpty(s, ",", false)
	}

	return []string{s}
}

// EncodePhases renders phases in the requested encoding. ok is false when the
// phases cannot be expressed that way (a gapped list as a range, several
// phases as a single value).
func EncodePhases(phases []string, enc PhaseEncoding) (string, bool) {
	if len(phases) == 0 {
		return "", false
	}
	nums := make([]int, len(phases))
	for i, p := range phases {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return "", false
		}
		nums[i] = n
	}

	switch enc {
	case PhaseJSONArray:
		out, err := json.Marshal(nums)
		if err != nil {
			return "", false
		}
		return string(out), true
	case PhaseCommaSeparated:
		strs := make([]string, len(nums))
		for i, n := range nums {
			strs[i] = strconv.Itoa(n)
		}
		return strings.Join(strs, ","), true
	case PhaseRange:
		for i := 1; i < len(nums); i++ {
			if nums[i] != nums[i-1]+1 {
				return "", false
			}
		}
		return fmt.Sprintf("%d-%d", nums[0], nums[len(nums)-1]), true
	case PhaseSingleValue:
		if len(nums) != 1 {
			return "", false
		}
		return strconv.Itoa(nums[0]), true
	default:
		return "", false
	}
}

// ValidateSkills checks a skills cell: a JSON array of strings, a comma or
// semicolon separated list without empty items, or a single token.
func ValidateSkills(value string) (bool, string) {
	s := strings.TrimSpace(value)
	if s == "" {
		return false, "empty value"
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		elems, ok := jsonutil.ParseArray(s)
		if !ok {
			return false, "invalid JSON array format"
		}
		for _, e := range elems {
			if !jsonutil.IsStringElement(e) {
				return false, "JSON array must contain only strings"
			}
		}
		return true, ""
	}

	for _, sep := range []string{",", ";"} {
		if strings.Contains(s, sep) {
			for _, item := range strings.Split(s, sep) {
				if strings.TrimSpace(item) == "" {
					return false, "separated skills cannot be empty"
				}
			}
			return true, ""
		}
	}

	return true, ""
}

// ParseSkills splits a skills cell into trimmed, non-empty skills.
func ParseSkills(value string) []string {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		if elems, ok := jsonutil.ParseArray(s); ok {
			return nonEmpty(jsonutil.StringValues(elems), false)
		}
	}

	if strings.Contains(s, ",") {
		return splitNonEmpty(s, ",", false)
	}
	if strings.Contains(s, ";") {
		return splitNonEmpty(s, ";", false)
	}
	return []string{s}
}

// ParseTokens reads an identifier list such as a requested-task cell. It
// accepts JSON arrays, bracketed lists that are not valid JSON ([T1,T2]),
// and text separated by any mix of commas, semicolons and whitespace.
// Tokens are trimmed and unquoted but not otherwise normalized.
func ParseTokens(value string) []string {
	s := textmatch.StripQuotes(strings.TrimSpace(value))
	if strings.TrimSpace(s) == "" {
		return nil
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		if elems, ok := jsonutil.ParseArray(s); ok {
			return nonEmpty(jsonutil.StringValues(elems), false)
		}
		return nonEmpty(strings.FieldsFunc(s[1:len(s)-1], isTokenSeparator), true)
	}

	return nonEmpty(strings.FieldsFunc(s, isTokenSeparator), true)
}

func isTokenSeparator(r rune) bool {
	return r == ',' || r == ';' || unicode.IsSpace(r)
}

// IsJSONLike reports whether the trimmed value looks like it is meant to be
// JSON (starts with { or [).
func IsJSONLike(value string) bool {
	s := strings.TrimSpace(value)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// ValidJSONOrText accepts any text that does not look like JSON, and JSON
// looking text only when it parses.
func ValidJSONOrText(value string) bool {
	if !IsJSONLike(value) {
		return true
	}
	return jsonutil.Valid(value)
}

func splitNonEmpty(s, sep string, unquote bool) []string {
	return nonEmpty(strings.Split(s, sep), unquote)
}

func nonEmpty(items []string, unquote bool) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if unquote {
			item = textmatch.StripQuotes(item)
		}
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LeadingInt parses an optionally signed run of leading digits after
// whitespace, ignoring whatever follows.
func LeadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
