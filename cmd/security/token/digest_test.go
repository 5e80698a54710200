package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigester_ZeroValueUsesSHA256(t *testing.T) {
	var d Digester
	assert.False(t, d.Keyed())
	assert.Equal(t, SHA256Hex("abc"), d.Digest("abc"))
	assert.Len(t, d.Digest("abc"), 64)
}

func TestDigester_KeyedDiffersFromPlain(t *testing.T) {
	d := NewDigester([]byte("  " + strings.Repeat("k", 32) + "  "))
	require.True(t, d.Keyed())

	got := d.Digest("refresh-token")
	assert.Len(t, got, 64)
	assert.NotEqual(t, SHA256Hex("refresh-token"), got)
	assert.Equal(t, HMACSHA256Hex("refresh-token", []byte(strings.Repeat("k", 32))), got)
	assert.Equal(t, got, d.Digest("refresh-token"))
}

func TestNewDigester_BlankKeyFallsBack(t *testing.T) {
	d := NewDigester([]byte("   "))
	assert.False(t, d.Keyed())
}

func TestNewRequiredDigester(t *testing.T) {
	_, err := NewRequiredDigester(nil, MinKeyBytes)
	assert.ErrorIs(t, err, ErrKeyMissing)

	_, err = NewRequiredDigester([]byte("short"), MinKeyBytes)
	assert.ErrorIs(t, err, ErrKeyTooShort)

	d, err := NewRequiredDigester([]byte(strings.Repeat("x", MinKeyBytes)), MinKeyBytes)
	require.NoError(t, err)
	assert.True(t, d.Keyed())
}

func TestEqual(t *testing.T) {
	a := SHA256Hex("one")
	assert.True(t, Equal(a, SHA256Hex("one")))
	assert.False(t, Equal(a, SHA256Hex("two")))
	assert.False(t, Equal(a, a[:10]))
}
