package authapi

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config controls auth API behavior.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// LoginMaxFailures failed logins within LoginWindow block further attempts
	// for the same identifier or client address until the window ends.
	LoginMaxFailures int
	LoginWindow      time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:     1 << 20,
		LoginMaxFailures: 5,
		LoginWindow:      15 * time.Minute,
	}
}

// SetDefaults registers the keys read by LoadConfig.
func SetDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("http.trust_proxy", def.TrustProxy)
	v.SetDefault("http.max_body_bytes", def.MaxBodyBytes)
	v.SetDefault("auth.login_max_failures", def.LoginMaxFailures)
	v.SetDefault("auth.login_window", def.LoginWindow)
}

// LoadConfig reads the auth API config from v.
func LoadConfig(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	cfg := Config{
		TrustProxy:       v.GetBool("http.trust_proxy"),
		MaxBodyBytes:     v.GetInt64("http.max_body_bytes"),
		LoginMaxFailures: v.GetInt("auth.login_max_failures"),
		LoginWindow:      v.GetDuration("auth.login_window"),
	}
	switch {
	case cfg.MaxBodyBytes <= 0:
		return Config{}, fmt.Errorf("authapi: http.max_body_bytes must be positive")
	case cfg.LoginMaxFailures < 0:
		return Config{}, fmt.Errorf("authapi: auth.login_max_failures must not be negative")
	case cfg.LoginMaxFailures > 0 && cfg.LoginWindow <= 0:
		return Config{}, fmt.Errorf("authapi: auth.login_window must be positive")
	}
	return cfg, nil
}
