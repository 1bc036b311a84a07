package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Pseudonymizer derives stable, non-reversible replacements for employee
// names and email addresses. The same input always yields the same pseudonym
// for a given key, so merged records stay joinable after anonymization.
type Pseudonymizer struct {
	key []byte
}

// NewPseudonymizer creates a Pseudonymizer. The HMAC key is derived from the
// configured key under a separate label, so pseudonyms never reveal the
// credential encryption key.
func NewPseudonymizer(keyInput string) (*Pseudonymizer, error) {
	base, err := deriveKey(keyInput)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, base)
	mac.Write([]byte("orgpulse/pseudonym"))
	return &Pseudonymizer{key: mac.Sum(nil)}, nil
}

func (p *Pseudonymizer) digest(kind, value string) string {
	mac := hmac.New(sha256.New, p.key)
	mac.Write([]byte(kind))
	mac.Write([]byte{0})
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(mac.Sum(nil))[:12]
}

// Name returns a pseudonym such as "Employee 3fa9c2d81b0e".
// Matching is case-insensitive.
func (p *Pseudonymizer) Name(name string) string {
	if name == "" {
		return ""
	}
	return "Employee " + p.digest("name", name)
}

// Email returns a pseudonymous address that keeps the original domain, so
// alias detection across domains still works on anonymized data.
func (p *Pseudonymizer) Email(address string) string {
	at := strings.LastIndex(address, "@")
	if at <= 0 {
		return p.digest("email", address)
	}
	return p.digest("email", address[:at]) + address[at:]
}
