package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks secret against the policy. Length is counted in runes.
func (c Config) Validate(secret string) error {
	n := utf8.RuneCountInString(secret)
	switch {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	case c.Policy.RejectVeryWeak && looksVeryWeak(secret):
		return ErrWeakPassword
	}
	return nil
}

var commonSecrets = map[string]struct{}{
	"password": {}, "password123": {}, "qwerty": {}, "qwerty123": {},
	"123456": {}, "123456789": {}, "1234567890": {}, "11111111": {},
	"iloveyou": {}, "letmein123": {},
}

// looksVeryWeak rejects single-character repeats, short digit-only PINs, and a
// short list of well-known secrets.
func looksVeryWeak(secret string) bool {
	s := strings.TrimSpace(secret)
	if s == "" {
		return true
	}
	if _, ok := commonSecrets[strings.ToLower(s)]; ok {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.Trim(s, string(first)) == "" {
		return true
	}

	digits := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
	return digits && utf8.RuneCountInString(s) < 12
}
