// Package validation screens user-entered attribute values before they are
// committed to employee records.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	libinjection "github.com/corazawaf/libinjection-go"
)

// MaxFieldLength is the longest attribute value accepted from a caller.
const MaxFieldLength = 200

// InjectionCheckResult contains the result of an injection check on a field value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	IsXSS       bool   // True if markup/script injection detected
	Fingerprint string // libinjection fingerprint of the detected SQL pattern
	Field       string // Name of the field that failed the check
}

// CheckFieldForInjection uses libinjection to detect SQL and XSS payloads in
// an attribute value. Returns nil if the value is clean.
//
// Example:
//
//	CheckFieldForInjection("department", "Engineering")          // nil
//	CheckFieldForInjection("department", "'; DROP TABLE users--") // IsSQLi == true
func CheckFieldForInjection(field, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	isXSS := libinjection.IsXSS(value)
	if !isSQLi && !isXSS {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      isSQLi,
		IsXSS:       isXSS,
		Fingerprint: string(fingerprint),
		Field:       field,
	}
}

// CleanFieldValue trims a value and rejects blank, oversized or injection-like input.
func CleanFieldValue(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", fmt.Errorf("%s: value is blank", field)
	}
	if utf8.RuneCountInString(v) > MaxFieldLength {
		return "", fmt.Errorf("%s: value exceeds %d characters", field, MaxFieldLength)
	}
	if res := CheckFieldForInjection(field, v); res != nil {
		return "", fmt.Errorf("%s: value rejected by input screen", field)
	}
	return v, nil
}
