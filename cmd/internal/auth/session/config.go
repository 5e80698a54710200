package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinSigningKeyBytes is the shortest accepted HMAC signing secret.
const MinSigningKeyBytes = 32

// Config is the explicit configuration of the authenticator. It carries the
// signing secret; nothing in the package reads it from the environment.
type Config struct {
	// Issuer is the "iss" claim written and required on every token.
	Issuer string

	// SigningKey is the service-wide HMAC secret for token signatures.
	SigningKey []byte

	// DigestKey keys the refresh-token digest. Empty selects plain SHA-256
	// unless RequireDigestKey is set.
	DigestKey        []byte
	RequireDigestKey bool

	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	EmailVerificationTTL time.Duration

	// ClockSkew is the leeway applied to exp/iat checks.
	ClockSkew time.Duration
}

// DefaultConfig returns development defaults. SigningKey is left empty on purpose
// so that Validate fails until a real secret is supplied.
func DefaultConfig() Config {
	return Config{
		Issuer:               "memorybook",
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      7 * 24 * time.Hour,
		EmailVerificationTTL: 24 * time.Hour,
		ClockSkew:            30 * time.Second,
	}
}

// SetDefaults registers the auth.* keys on v.
func SetDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("auth.issuer", def.Issuer)
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.digest_key", "")
	v.SetDefault("auth.require_digest_key", false)
	v.SetDefault("auth.access_ttl", def.AccessTokenTTL)
	v.SetDefault("auth.refresh_ttl", def.RefreshTokenTTL)
	v.SetDefault("auth.email_verification_ttl", def.EmailVerificationTTL)
	v.SetDefault("auth.clock_skew", def.ClockSkew)
}

// LoadConfig reads auth.* from v:
//   - auth.token_secret (required, >= 32 bytes)
//   - auth.digest_key, auth.require_digest_key
//   - auth.issuer
//   - auth.access_ttl, auth.refresh_ttl, auth.email_verification_ttl, auth.clock_skew
//
// It returns an error wrapping ErrConfig when a value is missing or out of range.
func LoadConfig(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	cfg := Config{
		Issuer:               strings.TrimSpace(v.GetString("auth.issuer")),
		SigningKey:           []byte(strings.TrimSpace(v.GetString("auth.token_secret"))),
		DigestKey:            []byte(strings.TrimSpace(v.GetString("auth.digest_key"))),
		RequireDigestKey:     v.GetBool("auth.require_digest_key"),
		AccessTokenTTL:       v.GetDuration("auth.access_ttl"),
		RefreshTokenTTL:      v.GetDuration("auth.refresh_ttl"),
		EmailVerificationTTL: v.GetDuration("auth.email_verification_ttl"),
		ClockSkew:            v.GetDuration("auth.clock_skew"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants between fields.
func (c Config) Validate() error {
	switch {
	case c.Issuer == "":
		return fmt.Errorf("%w: issuer is empty", ErrConfig)
	case len(c.SigningKey) < MinSigningKeyBytes:
		return fmt.Errorf("%w: token secret must be at least %d bytes", ErrConfig, MinSigningKeyBytes)
	case c.RequireDigestKey && len(c.DigestKey) < MinSigningKeyBytes:
		return fmt.Errorf("%w: digest key must be at least %d bytes", ErrConfig, MinSigningKeyBytes)
	case c.AccessTokenTTL <= 0 || c.AccessTokenTTL > time.Hour:
		return fmt.Errorf("%w: access ttl must be in (0, 1h]", ErrConfig)
	case c.RefreshTokenTTL < time.Hour:
		return fmt.Errorf("%w: refresh ttl must be at least 1h", ErrConfig)
	case c.RefreshTokenTTL <= c.AccessTokenTTL:
		return fmt.Errorf("%w: refresh ttl must exceed access ttl", ErrConfig)
	case c.EmailVerificationTTL <= 0:
		return fmt.Errorf("%w: email verification ttl must be positive", ErrConfig)
	case c.ClockSkew < 0 || c.ClockSkew > 5*time.Minute:
		return fmt.Errorf("%w: clock skew must be in [0, 5m]", ErrConfig)
	}
	return nil
}
