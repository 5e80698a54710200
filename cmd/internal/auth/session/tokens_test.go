package session

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func codecAt(cfg Config, at *time.Time) *TokenCodec {
	return NewTokenCodec(cfg, func() time.Time { return *at })
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	now := t0
	c := codecAt(testConfig(), &now)

	raw, exp, err := c.Mint(KindAccess, "u1", "anna@example.com", 15*time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), exp)

	claims, err := c.Parse(raw, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())
	assert.Equal(t, "anna@example.com", claims.Email)
	assert.Equal(t, KindAccess, claims.Kind)
	assert.Equal(t, "memorybook", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenCodec_DistinctIDs(t *testing.T) {
	now := t0
	c := codecAt(testConfig(), &now)

	a, _, err := c.Mint(KindRefresh, "u1", "a@x.io", time.Hour, now)
	require.NoError(t, err)
	b, _, err := c.Mint(KindRefresh, "u1", "a@x.io", time.Hour, now)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokenCodec_WrongKind(t *testing.T) {
	now := t0
	c := codecAt(testConfig(), &now)

	raw, _, err := c.Mint(KindRefresh, "u1", "a@x.io", time.Hour, now)
	require.NoError(t, err)

	_, err = c.Parse(raw, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = c.Parse(raw, KindEmailVerification)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenCodec_Expired(t *testing.T) {
	now := t0
	c := codecAt(testConfig(), &now)

	raw, _, err := c.Mint(KindAccess, "u1", "a@x.io", 15*time.Minute, now)
	require.NoError(t, err)

	now = t0.Add(15*time.Minute + 10*time.Second)
	_, err = c.Parse(raw, KindAccess)
	require.NoError(t, err, "inside clock skew")

	now = t0.Add(time.Hour)
	_, err = c.Parse(raw, KindAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenCodec_ExpiredWithForeignSignature(t *testing.T) {
	now := t0
	other := testConfig()
	other.SigningKey = []byte("ffffffffffffffffffffffffffffffff")
	forged, _, err := codecAt(other, &now).Mint(KindAccess, "u1", "a@x.io", time.Minute, now)
	require.NoError(t, err)

	c := codecAt(testConfig(), &now)
	_, err = c.Parse(forged, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	now = t0.Add(time.Hour)
	_, err = c.Parse(forged, KindAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenCodec_ExpiredButMalformedIsInvalid(t *testing.T) {
	now := t0
	c := codecAt(testConfig(), &now)
	raw, _, err := c.Mint(KindAccess, "u1", "a@x.io", time.Minute, now)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	garbled := parts[0] + "." + parts[1] + ".!!not-base64!!"

	now = t0.Add(time.Hour)
	_, err = c.Parse(garbled, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = c.Parse(raw, KindAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenCodec_Rejects(t *testing.T) {
	now := t0
	cfg := testConfig()
	c := codecAt(cfg, &now)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Kind: KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: cfg.Issuer, Subject: "u1",
			IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	otherIss := cfg
	otherIss.Issuer = "someone-else"
	foreign, _, err := codecAt(otherIss, &now).Mint(KindAccess, "u1", "a@x.io", time.Minute, now)
	require.NoError(t, err)

	noSub, _, err := c.Mint(KindAccess, "", "a@x.io", time.Minute, now)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"empty":     "",
		"garbage":   "not.a.jwt",
		"alg none":  unsigned,
		"issuer":    foreign,
		"no sub":    noSub,
		"oversized": string(make([]byte, maxTokenLen+1)),
	} {
		_, err := c.Parse(raw, KindAccess)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}
