package util

import "strings"

// SanitizeDocumentText coerces document input to valid UTF-8 and strips NUL
// bytes. Uploaded text files occasionally arrive with broken encodings; the
// pipeline would rather lose a few bytes than reject the document.
func SanitizeDocumentText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
