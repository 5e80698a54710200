package authapi

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	v := viper.New()
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	v.Set("auth.login_max_failures", 3)
	v.Set("auth.login_window", "2m")
	v.Set("http.trust_proxy", true)
	cfg, err = LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.LoginMaxFailures)
	assert.Equal(t, 2*time.Minute, cfg.LoginWindow)
	assert.True(t, cfg.TrustProxy)

	v.Set("auth.login_window", "0s")
	_, err = LoadConfig(v)
	assert.Error(t, err)
}
