package logging

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// MaxValueLogLength is the maximum length of a cell value echoed in an
	// issue message or a log line.
	MaxValueLogLength = 50
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Matches potential API keys
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|token|secret)=[A-Za-z0-9-_]{8,}`)

	// Matches URL credentials (user:pass@host format)
	urlCredentialPattern = regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`)
)

// TruncateString truncates a string to maxLen bytes without splitting a
// UTF-8 sequence and adds an ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// TruncateValue bounds a cell value for messages and logs.
func TruncateValue(s string) string {
	return TruncateString(s, MaxValueLogLength)
}

// SanitizeValue prepares an uploaded cell value for a message or log line:
// control characters become spaces, credentials embedded in the text are
// redacted, and the result is truncated to MaxValueLogLength.
func SanitizeValue(s string) string {
	if s == "" {
		return ""
	}

	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)

	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = urlCredentialPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")

	return TruncateValue(sanitized)
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
