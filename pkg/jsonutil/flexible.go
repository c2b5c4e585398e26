package jsonutil

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexibleStringValue renders one JSON value the way it would read in a
// spreadsheet cell: strings unquoted, numbers in shortest decimal form,
// booleans as true/false. Null and empty input give "". Objects and arrays
// are returned as their raw JSON text.
func FlexibleStringValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal json.Number
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if i, err := numVal.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := numVal.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return numVal.String()
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	return string(raw)
}

// ParseArray decodes s as a JSON array. ok is false when s is not valid JSON
// or is valid JSON of another shape.
func ParseArray(s string) (elems []json.RawMessage, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}
	if err := json.Unmarshal([]byte(s), &elems); err != nil {
		return nil, false
	}
	if elems == nil {
		elems = []json.RawMessage{}
	}
	return elems, true
}

// StringValues renders every array element with FlexibleStringValue.
func StringValues(elems []json.RawMessage) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = FlexibleStringValue(e)
	}
	return out
}

// IsStringElement reports whether a raw element is a JSON string.
func IsStringElement(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

// IsNumericElement reports whether a raw element coerces to a number the
// way a loosely typed reader would: JSON numbers, numeric strings, booleans,
// null and the empty string all count.
func IsNumericElement(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case '{':
		return false
	case '[':
		// A nested array coerces only when it holds at most one numeric value.
		var inner []json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			return false
		}
		return len(inner) == 0 || (len(inner) == 1 && IsNumericElement(inner[0]))
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return true
		}
		f, err := strconv.ParseFloat(s, 64)
		return err == nil && !math.IsNaN(f) && !strings.ContainsAny(strings.ToLower(s), "x_")
	default:
		return json.Valid(raw)
	}
}

// Valid reports whether s parses as any JSON value.
func Valid(s string) bool {
	return json.Valid([]byte(strings.TrimSpace(s)))
}
