package crossref

import (
	"strings"
	"unicode"
)

// placeholderPhones are digit sequences agents return when a record has no real number
var placeholderPhones = map[string]bool{
	"1234567890": true,
	"0123456789": true,
	"9876543210": true,
	"0987654321": true,
}

// NormalizePhone strips every non-digit and validates the result as a ten-digit
// North American number. A leading country code 1 on an eleven-digit value is dropped.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}

	if len(digits) != 10 {
		return "", false
	}
	// area code and exchange never start with 0 or 1
	if digits[0] == '0' || digits[0] == '1' || digits[3] == '0' || digits[3] == '1' {
		return "", false
	}
	if strings.Count(digits, digits[:1]) == len(digits) {
		return "", false
	}
	if placeholderPhones[digits] {
		return "", false
	}
	return digits, true
}

// NormalizeEmail trims and lower-cases an address. Values without a single
// "@" separating non-empty parts are rejected.
func NormalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") || at == len(email)-1 {
		return "", false
	}
	if strings.ContainsFunc(email, unicode.IsSpace) {
		return "", false
	}
	return email, true
}

// NormalizeAddress trims, lower-cases and collapses internal whitespace.
func NormalizeAddress(raw string) (string, bool) {
	address := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if address == "" {
		return "", false
	}
	return address, true
}

// NormalizeName collapses whitespace in a person name. The returned key is
// the case-insensitive form used for matching.
func NormalizeName(raw string) (name string, key string, ok bool) {
	name = strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return "", "", false
	}
	return name, strings.ToLower(name), true
}

// FormatPhone renders ten normalized digits as (NNN) NNN-NNNN
func FormatPhone(digits string) string {
	if len(digits) != 10 {
		return digits
	}
	return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
}
