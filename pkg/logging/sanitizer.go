package logging

import (
	"regexp"
	"strings"
)

const (
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
	// MaxValueLogLength is the maximum length of a free-text value to log
	MaxValueLogLength = 64
)

var (
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Matches API tokens and client secrets handed over by directory providers
	tokenPattern = regexp.MustCompile(`(?i)(api[_-]?key|token|client[_-]?secret|secret)=[A-Za-z0-9-_.]{8,}`)

	// Matches user:pass@host in URLs
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)

	// Matches email addresses embedded in free text
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// SanitizeConnectionString removes credentials from database and Redis URLs.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError strips credentials and employee email addresses from an error
// message before it is logged.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = tokenPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return MaskEmails(sanitized)
}

// MaskEmails masks every email address found in s.
func MaskEmails(s string) string {
	return emailPattern.ReplaceAllStringFunc(s, MaskEmail)
}

// MaskEmail keeps the first character of the local part and the domain:
// "jane.doe@acme.com" becomes "j***@acme.com". Values that are not
// addresses are fully redacted.
func MaskEmail(address string) string {
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		if address == "" {
			return ""
		}
		return RedactedText
	}
	return address[:1] + "***" + address[at:]
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
