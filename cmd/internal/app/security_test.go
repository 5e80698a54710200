package app

import (
	"testing"

	"github.com/Flugers27/Memory-book/cmd/internal/auth/session"

	"github.com/stretchr/testify/assert"
)

const (
	testSigningKey = "0123456789abcdef0123456789abcdef"
	testAdminToken = "admin-token-admin-token-admin-tok"
)

func secureConfig() Config {
	cfg := Config{Session: session.DefaultConfig()}
	cfg.Session.SigningKey = []byte(testSigningKey)
	return cfg
}

func TestValidateSecurityConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "admin token", mutate: func(c *Config) { c.AdminToken = testAdminToken }},
		{
			name:    "short admin token",
			mutate:  func(c *Config) { c.AdminToken = "short" },
			wantErr: "admin.token must be at least",
		},
		{
			name:    "admin token reuses signing key",
			mutate:  func(c *Config) { c.AdminToken = testSigningKey },
			wantErr: "admin.token must differ",
		},
		{
			name: "digest key reuses signing key",
			mutate: func(c *Config) {
				c.Session.RequireDigestKey = true
				c.Session.DigestKey = []byte(testSigningKey)
			},
			wantErr: "auth.digest_key must differ",
		},
		{
			name:   "wildcard origin alone",
			mutate: func(c *Config) { c.CORSAllowedOrigins = []string{"*"} },
		},
		{
			name:    "wildcard mixed with origins",
			mutate:  func(c *Config) { c.CORSAllowedOrigins = []string{"https://book.example.com", "*"} },
			wantErr: `mixes "*"`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := secureConfig()
			tc.mutate(&cfg)
			err := ValidateSecurityConfig(cfg)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
