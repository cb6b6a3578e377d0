package logutil

import (
	"html"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var textOnly = bluemonday.StrictPolicy()

// IsSensitiveLogField returns true when a key likely contains sensitive data.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch {
	case normalized == "authorization":
		return true
	case strings.Contains(normalized, "token"):
		return true
	case strings.Contains(normalized, "secret"):
		return true
	case strings.Contains(normalized, "password"):
		return true
	case strings.Contains(normalized, "apikey"):
		return true
	case strings.Contains(normalized, "cookie"):
		return true
	case strings.Contains(normalized, "accesskey"):
		return true
	default:
		return false
	}
}

// RedactValue redacts a value when the key looks sensitive.
func RedactValue(key, value string) string {
	if value == "" {
		return ""
	}
	if IsSensitiveLogField(key) {
		return "[REDACTED]"
	}
	return value
}

// RedactURL hides the password of a URL carrying basic-auth user info.
// Unparseable input is returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
	}
	return u.String()
}

// TextPreview strips markup from an HTML document and returns a collapsed,
// truncated text preview suitable for a single log field.
func TextPreview(document string, maxChars int) string {
	text := html.UnescapeString(textOnly.Sanitize(document))
	return TruncateForLog(strings.Join(strings.Fields(text), " "), maxChars)
}

// TruncateForLog returns a single-line truncated preview for unstructured values.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || len(normalized) <= maxChars {
		return normalized
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(normalized[cut]) {
		cut--
	}
	return normalized[:cut] + "... [truncated]"
}
