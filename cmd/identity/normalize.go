package identity

import (
	"net/mail"
	"regexp"
	"strings"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{2,31}$`)

// NormalizeUsername performs case-insensitive canonicalization.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsEmailIdentifier reports whether a login identifier names an email address.
// Usernames cannot contain '@', so the split is unambiguous.
func IsEmailIdentifier(s string) bool {
	return strings.Contains(s, "@")
}

func validEmail(norm string) bool {
	if norm == "" || len(norm) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(norm)
	return err == nil && addr.Address == norm
}

func validUsername(norm string) bool {
	return usernameRe.MatchString(norm)
}
