// Package textmatch holds the string primitives shared by classification,
// header mapping and cross-file column lookup.
package textmatch

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Normalize lower-cases s and keeps only ASCII letters.
// "Client_ID 2" becomes "clientid".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Similarity returns (len(longer) - editDistance) / len(longer), in [0,1].
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	longer, shorter := a, b
	if len(shorter) > len(longer) {
		longer, shorter = shorter, longer
	}
	if len(longer) == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(longer, shorter)
	return float64(len(longer)-distance) / float64(len(longer))
}

// Keywords splits a camel-case field name into lower-case words, keeping
// runs of capitals together: "RequestedTaskIDs" gives requested, task, ids.
func Keywords(field string) []string {
	runes := []rune(field)
	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := false
		switch {
		case unicode.IsUpper(cur) && unicode.IsLower(prev):
			boundary = true
		case unicode.IsUpper(cur) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && !isPluralTail(runes, i):
			boundary = true
		case !unicode.IsLetter(cur) || !unicode.IsLetter(prev):
			boundary = unicode.IsLetter(cur) != unicode.IsLetter(prev)
		}
		if boundary {
			words = appendWord(words, runes[start:i])
			start = i
		}
	}
	words = appendWord(words, runes[start:])
	return words
}

// isPluralTail keeps the trailing "s" of an acronym ("IDs") in the acronym.
func isPluralTail(runes []rune, i int) bool {
	return i+1 == len(runes)-1 && runes[i+1] == 's'
}

func appendWord(words []string, word []rune) []string {
	w := Normalize(string(word))
	if w == "" {
		return words
	}
	return append(words, w)
}

// StripQuotes removes at most one leading and one trailing quote character
// (single or double).
func StripQuotes(s string) string {
	if len(s) > 0 && (s[0] == '"' || s[0] == '\'') {
		s = s[1:]
	}
	if len(s) > 0 && (s[len(s)-1] == '"' || s[len(s)-1] == '\'') {
		s = s[:len(s)-1]
	}
	return s
}

// NormalizeID trims, strips surrounding quotes and upper-cases an identifier.
func NormalizeID(s string) string {
	return strings.ToUpper(StripQuotes(strings.TrimSpace(s)))
}

// Contains reports whether a contains b after normalization of both.
func Contains(a, b string) bool {
	return strings.Contains(Normalize(a), Normalize(b))
}
