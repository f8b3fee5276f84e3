package policy

import "regexp"

var (
	emailPattern   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern   = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern    = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	panPattern     = regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`)
	aadhaarPattern = regexp.MustCompile(`\b[2-9][0-9]{3}[ -]?[0-9]{4}[ -]?[0-9]{4}\b`)
	ifscPattern    = regexp.MustCompile(`\b[A-Z]{4}0[A-Z0-9]{6}\b`)
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Order matters: longer numeric identifiers are masked before the phone
// pattern gets a chance to swallow them.
var rules = []rule{
	{emailPattern, "[REDACTED_EMAIL]"},
	{cardPattern, "[REDACTED_CARD]"},
	{aadhaarPattern, "[REDACTED_AADHAAR]"},
	{panPattern, "[REDACTED_PAN]"},
	{ifscPattern, "[REDACTED_IFSC]"},
	{phonePattern, "[REDACTED_PHONE]"},
}

// RedactPII masks common high-risk PII patterns, including the Indian payroll
// identifiers (PAN, Aadhaar, IFSC) that employees paste into HR questions.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range rules {
		next := r.pattern.ReplaceAllString(out, r.replacement)
		changed = changed || next != out
		out = next
	}
	return out, changed
}
