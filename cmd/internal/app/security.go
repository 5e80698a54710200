package app

import (
	"errors"
	"fmt"
)

// minAdminTokenBytes matches the signing key floor.
const minAdminTokenBytes = 32

// ValidateSecurityConfig enforces the startup security policy. It fails fast
// instead of running with weaker settings.
func ValidateSecurityConfig(cfg Config) error {
	if cfg.AdminToken != "" && len(cfg.AdminToken) < minAdminTokenBytes {
		return fmt.Errorf("security policy: admin.token must be at least %d bytes", minAdminTokenBytes)
	}
	if cfg.AdminToken != "" && cfg.AdminToken == string(cfg.Session.SigningKey) {
		return errors.New("security policy: admin.token must differ from auth.token_secret")
	}
	if cfg.Session.RequireDigestKey && string(cfg.Session.DigestKey) == string(cfg.Session.SigningKey) {
		return errors.New("security policy: auth.digest_key must differ from auth.token_secret")
	}
	for _, o := range cfg.CORSAllowedOrigins {
		if o == "*" && len(cfg.CORSAllowedOrigins) > 1 {
			return errors.New(`security policy: cors.allowed_origins mixes "*" with explicit origins`)
		}
	}
	return nil
}
