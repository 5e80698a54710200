package session

import (
	"errors"
	"strings"
	"time"

	"github.com/Flugers27/Memory-book/cmd/identity/ids"

	"github.com/golang-jwt/jwt/v5"
)

// Kind is the "type" claim. Every operation accepts exactly one kind.
type Kind string

const (
	KindAccess            Kind = "access"
	KindRefresh           Kind = "refresh"
	KindEmailVerification Kind = "email_verification"
)

// maxTokenLen bounds input before any parsing work.
const maxTokenLen = 4096

// Claims is the token payload: sub, email, type, iat, exp, iss, jti.
type Claims struct {
	Email string `json:"email"`
	Kind  Kind   `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the subject.
func (c Claims) UserID() string { return c.Subject }

// TokenCodec signs and parses tokens with the configured HMAC secret.
type TokenCodec struct {
	key    []byte
	issuer string
	skew   time.Duration
	now    func() time.Time
}

// NewTokenCodec builds a codec from cfg. now drives expiry checks.
func NewTokenCodec(cfg Config, now func() time.Time) *TokenCodec {
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{key: cfg.SigningKey, issuer: cfg.Issuer, skew: cfg.ClockSkew, now: now}
}

// Mint signs a token of kind for the user, valid for ttl from now.
func (c *TokenCodec) Mint(kind Kind, userID, email string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	jti, err := ids.NewULID(now)
	if err != nil {
		return "", time.Time{}, err
	}

	exp := now.Add(ttl)
	claims := Claims{
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies signature, issuer, iat and exp, then requires the "type" claim to be want.
// A well-formed token whose exp has passed yields ErrTokenExpired whether or
// not its signature checks out. A token with an undecodable segment is
// ErrInvalidToken even when expired, as is every other failure.
func (c *TokenCodec) Parse(raw string, want Kind) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxTokenLen {
		return Claims{}, ErrInvalidToken
	}

	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.skew),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || (errors.Is(err, jwt.ErrTokenSignatureInvalid) && c.expired(claims)) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}
	if !tok.Valid || claims.Kind != want || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func (c *TokenCodec) expired(claims Claims) bool {
	return claims.ExpiresAt != nil && c.now().After(claims.ExpiresAt.Add(c.skew))
}
