package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/auth/session"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("auth.token_secret", testSigningKey)

	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Nil(t, cfg.CORSAllowedOrigins)
	assert.Equal(t, session.DefaultSweepSchedule, cfg.SweepSchedule)
	assert.Equal(t, "memorybook", cfg.Session.Issuer)
	assert.Equal(t, []byte(testSigningKey), cfg.Session.SigningKey)
	assert.Equal(t, 5, cfg.AuthAPI.LoginMaxFailures)
	assert.Equal(t, "memorybook", cfg.Tracing.ServiceName)
}

func TestLoadConfigRequiresSigningKey(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(viper.New())
	require.ErrorIs(t, err, session.ErrConfig)
}

func TestLoadConfigRejectsNegativePool(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("auth.token_secret", testSigningKey)
	v.Set("database.max_conns", -1)

	_, err := LoadConfig(v)
	assert.ErrorContains(t, err, "pool sizes")
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(EnvPrefix+"_CONFIG", "")
	t.Setenv("MEMORYBOOK_AUTH_TOKEN_SECRET", testSigningKey)
	t.Setenv("MEMORYBOOK_HTTP_ADDR", "127.0.0.1:9090")
	t.Setenv("MEMORYBOOK_CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("MEMORYBOOK_DATABASE_MAX_CONNS", "4")
	t.Setenv("MEMORYBOOK_HTTP_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("MEMORYBOOK_SWEEP_SCHEDULE", "@every 10m")

	v, err := NewViper()
	require.NoError(t, err)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.HTTPAddr)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.EqualValues(t, 4, cfg.DBMaxConns)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "@every 10m", cfg.SweepSchedule)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memorybook.yaml")
	body := "http:\n  addr: 127.0.0.1:7070\nauth:\n  token_secret: " + testSigningKey + "\n  login_max_failures: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv(EnvPrefix+"_CONFIG", path)

	v, err := NewViper()
	require.NoError(t, err)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7070", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.AuthAPI.LoginMaxFailures)
}

func TestNewViperMissingFile(t *testing.T) {
	t.Setenv(EnvPrefix+"_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := NewViper()
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , "))
	assert.Equal(t, []string{"a", "b"}, splitList("a, b,"))
}
