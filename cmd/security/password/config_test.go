package password

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Policy, cfg.Policy)
	assert.Equal(t, def.Params.MemoryKiB, cfg.Params.MemoryKiB)
	assert.Equal(t, def.Params.Parallelism, cfg.Params.Parallelism)
}

func TestLoadConfig_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("password.min_len", 12)
	v.Set("password.max_len", 200)
	v.Set("password.reject_very_weak", false)
	v.Set("password.argon2.memory_kib", 32768)
	v.Set("password.argon2.iterations", 4)
	v.Set("password.argon2.parallelism", 2)

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, Policy{MinLength: 12, MaxLength: 200}, cfg.Policy)
	assert.Equal(t, uint32(32768), cfg.Params.MemoryKiB)
	assert.Equal(t, uint32(4), cfg.Params.Iterations)
	assert.Equal(t, uint8(2), cfg.Params.Parallelism)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]any{
		"password.min_len":            0,
		"password.argon2.memory_kib":  1024,
		"password.argon2.iterations":  50,
		"password.argon2.parallelism": 0,
		"password.argon2.salt_len":    4,
	}
	for key, val := range cases {
		v := viper.New()
		v.Set(key, val)
		_, err := LoadConfig(v)
		assert.ErrorIs(t, err, ErrConfig, key)
	}

	v := viper.New()
	v.Set("password.min_len", 30)
	v.Set("password.max_len", 20)
	_, err := LoadConfig(v)
	assert.ErrorIs(t, err, ErrConfig)
}
