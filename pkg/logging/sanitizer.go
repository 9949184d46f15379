package logging

import (
	"regexp"

	"go.uber.org/zap"
)

// RedactedText is the replacement text for sensitive data
const RedactedText = "[REDACTED]"

var (
	// Matches password=xxx, pwd=xxx, pass=xxx in libpq key/value strings,
	// Exasol ";"-separated DSNs and URL query strings. Quoted libpq values
	// are consumed whole.
	passwordPattern = regexp.MustCompile(`(?i)\b(password|pwd|pass)=('(?:[^'\\]|\\.)*'|[^;&\s]+)`)

	// Matches user:pass@host credentials in URL-style connection strings
	urlCredentialsPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/?\s]+`)
)

// SanitizeConnectionString removes credentials from a connection string
// so it can be logged. Handles libpq keyword/value strings, Exasol DSNs
// and sqlserver:// URLs.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return urlCredentialsPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError returns the error text with credentials stripped.
// Drivers occasionally echo the connection string back in their errors.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeConnectionString(err.Error())
}

// Error is the zap field used for driver errors throughout the connectors.
func Error(err error) zap.Field {
	return zap.String("error", SanitizeError(err))
}
