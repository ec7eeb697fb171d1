package errors

import "regexp"

// sanitizePatterns redact common secret-shaped substrings from error text
// before it reaches a user-visible surface (spec §7: "a sanitiser scrubs
// API-key-like, email, credit-card, and raw-pointer patterns from messages
// before display"), grounded on runtime/scrubber's pattern-matching style
// but applied to free-form text rather than a known-secret list.
var sanitizePatterns = []*regexp.Regexp{
	// API-key-like: 24+ alphanumeric/_- runs that look like tokens, e.g.
	// sk-ant-..., AKIA..., long hex/base64 blobs.
	regexp.MustCompile(`\b[A-Za-z0-9_-]{24,}\b`),
	// Email addresses.
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	// Credit-card-like: 13-19 digits, optionally grouped by spaces/dashes.
	regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),
	// Raw pointer-like: 0x followed by 6+ hex digits.
	regexp.MustCompile(`\b0x[0-9a-fA-F]{6,}\b`),
}

const redactedPlaceholder = "[redacted]"

// Sanitize scrubs msg of secret-shaped substrings. It is applied to every
// error message right before the driver renders it; it never mutates the
// Error stored internally so catch blocks still see the original text.
func Sanitize(msg string) string {
	for _, p := range sanitizePatterns {
		msg = p.ReplaceAllString(msg, redactedPlaceholder)
	}
	return msg
}
