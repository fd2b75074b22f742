// Package pii removes personally identifying substrings from extracted text
// before it is sent to the model provider.
//
// The name heuristics intentionally over-match: any capitalized two-to-three
// word sequence is treated as a name, so ordinary capitalized phrases will be
// redacted too. That is an accepted tradeoff, not a defect.
package pii

import "regexp"

const (
	RedactedEmail = "[REDACTED_EMAIL]"
	RedactedPhone = "[REDACTED_PHONE]"
	RedactedName  = "[REDACTED_NAME]"
)

var (
	emailRe = regexp.MustCompile(`(?i)\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,24}\b`)
	phoneRe = regexp.MustCompile(`(?:\+?1[\s\-.]?)?\(?\d{3}\)?[\s\-.]?\d{3}[\s\-.]?\d{4}`)

	labeledNameRe = regexp.MustCompile(`\b(?:Name|Student|Teacher|Educator|Parent)\s*[:\-]\s*[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+`)
	fullNameRe    = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,2}\b`)
)

// Scrub replaces email addresses, phone numbers and name-like patterns with
// fixed redaction tokens. Pure and deterministic.
func Scrub(text string) string {
	if text == "" {
		return text
	}
	cleaned := emailRe.ReplaceAllString(text, RedactedEmail)
	cleaned = phoneRe.ReplaceAllString(cleaned, RedactedPhone)
	cleaned = labeledNameRe.ReplaceAllString(cleaned, RedactedName)
	cleaned = fullNameRe.ReplaceAllString(cleaned, RedactedName)
	return cleaned
}

// ContainsPII reports whether text still appears to contain an email, phone
// number or name-like pattern.
func ContainsPII(text string) bool {
	if text == "" {
		return false
	}
	return emailRe.MatchString(text) ||
		phoneRe.MatchString(text) ||
		labeledNameRe.MatchString(text) ||
		fullNameRe.MatchString(text)
}
