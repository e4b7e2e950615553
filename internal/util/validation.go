package util

import (
	"regexp"
	"strings"
)

var (
	uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	codeRegex = regexp.MustCompile(`^[A-Z0-9]{7}$`)
)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	return uuidRegex.MatchString(s)
}

// NormalizeCode uppercases and trims a session code as typed by a user.
// Codes are stored uppercase; lookups accept any case.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCode reports whether s is a normalized 7-character session code.
func IsValidCode(s string) bool {
	return codeRegex.MatchString(s)
}
