package diag

import (
	"regexp"
	"strings"
)

// Redactor masks credentials in collected text
type Redactor struct {
	patterns []redactionPattern
}

type redactionPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a redactor for the credentials that can appear in
// download URLs, config overrides and logged command lines
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactionPattern{
			// user:password@ in mirror URLs
			{
				regex:       regexp.MustCompile(`(?i)(https?://)([^:/@\s"']+):([^@\s"']+)@`),
				replacement: `$1$2:[REDACTED]@`,
			},
			// signed URL query parameters
			{
				regex:       regexp.MustCompile(`(?i)([?&](?:token|access_token|sig|signature|x-amz-signature|x-amz-credential|x-goog-signature)=)[^&\s"']+`),
				replacement: `${1}[REDACTED]`,
			},
			// key: value, key=value and JSON "key":"value" pairs
			{
				regex:       regexp.MustCompile(`(?i)(^|[^a-z0-9_?&])(api[_-]?key|token|secret|password)("?\s*[:=]\s*)(["']?)[^"'\s,}]+["']?`),
				replacement: `$1$2$3${4}[REDACTED]${4}`,
			},
			{
				regex:       regexp.MustCompile(`(?i)Bearer\s+([A-Za-z0-9_\-\.=]+)`),
				replacement: `Bearer [REDACTED]`,
			},
			{
				regex:       regexp.MustCompile(`(?i)Authorization:\s*Basic\s+([A-Za-z0-9+/=]+)`),
				replacement: `Authorization: Basic [REDACTED]`,
			},
		},
	}
}

// Redact applies all redaction patterns to the input text
func (r *Redactor) Redact(input string) string {
	result := input
	for _, pattern := range r.patterns {
		result = pattern.regex.ReplaceAllString(result, pattern.replacement)
	}
	return result
}

// IsLikelySensitive checks if a line contains potentially sensitive data
func IsLikelySensitive(line string) bool {
	lowerLine := strings.ToLower(line)
	sensitiveKeywords := []string{
		"password", "secret", "api_key", "apikey",
		"private_key", "credential", "authorization", "signature",
	}

	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerLine, keyword) {
			return true
		}
	}
	return strings.Contains(lowerLine, "://") && strings.Contains(lowerLine, "@")
}
