package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// MinKeyBytes is the smallest HMAC key accepted when a key is required.
const MinKeyBytes = 32

// Digester hashes refresh tokens for storage. The zero value hashes with plain SHA-256.
type Digester struct {
	key []byte
}

// NewDigester returns a Digester keyed with key. A blank key selects SHA-256 mode.
func NewDigester(key []byte) Digester {
	k := strings.TrimSpace(string(key))
	if k == "" {
		return Digester{}
	}
	return Digester{key: []byte(k)}
}

// NewRequiredDigester is NewDigester for deployments that refuse the SHA-256 fallback.
func NewRequiredDigester(key []byte, minBytes int) (Digester, error) {
	k := strings.TrimSpace(string(key))
	if k == "" {
		return Digester{}, ErrKeyMissing
	}
	if minBytes > 0 && len(k) < minBytes {
		return Digester{}, ErrKeyTooShort
	}
	return Digester{key: []byte(k)}, nil
}

// Keyed reports whether the digester runs in HMAC mode.
func (d Digester) Keyed() bool { return len(d.key) > 0 }

// Digest returns the hex digest of raw.
func (d Digester) Digest(raw string) string {
	if len(d.key) == 0 {
		return SHA256Hex(raw)
	}
	return HMACSHA256Hex(raw, d.key)
}

// Equal compares two hex digests in constant time.
func Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// SHA256Hex returns a SHA-256 hex digest of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}
