// ABOUTME: PII and secret redaction for log output
// ABOUTME: Masks emails before logging and strips tokens from logged URLs

package observability

import (
	"regexp"
	"strings"
)

// RedactionPlaceholder is the replacement text for redacted values.
const RedactionPlaceholder = "[REDACTED]"

// urlSecretPatterns match credential-bearing query parameters that can
// appear in logged request paths and referrer URLs.
var urlSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(token|auth_token|access_token)=[^\s&]+`),
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)=[^\s&]+`),
	regexp.MustCompile(`(?i)(secret|client_secret)=[^\s&]+`),
	regexp.MustCompile(`(?i)(password|passwd|pwd)=[^\s&]+`),
}

// RedactURL strips credential-bearing query values from a URL or path
// before it is logged.
func RedactURL(value string) string {
	result := value
	for _, pattern := range urlSecretPatterns {
		result = pattern.ReplaceAllString(result, "${1}="+RedactionPlaceholder)
	}
	return result
}

// MaskEmail masks the local part of an email address for logging,
// keeping the first character and the domain: "callum@example.com"
// becomes "c***@example.com". Values without an @ are fully masked.
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
