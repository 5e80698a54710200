package password

import (
	"fmt"
	"runtime"

	"github.com/spf13/viper"
)

// Argon2idParams controls Argon2id hashing cost. MemoryKiB is in KiB as argon2.IDKey expects.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls which secrets are accepted at registration and password change.
type Policy struct {
	MinLength      int
	MaxLength      int
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns interactive-login cost settings.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      10,
			MaxLength:      256,
			RejectVeryWeak: true,
		},
	}
}

// SetDefaults registers the password keys on v.
func SetDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("password.min_len", def.Policy.MinLength)
	v.SetDefault("password.max_len", def.Policy.MaxLength)
	v.SetDefault("password.reject_very_weak", def.Policy.RejectVeryWeak)
	v.SetDefault("password.argon2.memory_kib", def.Params.MemoryKiB)
	v.SetDefault("password.argon2.iterations", def.Params.Iterations)
	v.SetDefault("password.argon2.parallelism", def.Params.Parallelism)
	v.SetDefault("password.argon2.salt_len", def.Params.SaltLength)
	v.SetDefault("password.argon2.key_len", def.Params.KeyLength)
}

// LoadConfig reads the password.* keys from v and validates their ranges.
func LoadConfig(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	cfg := Config{
		Params: Argon2idParams{
			MemoryKiB:  v.GetUint32("password.argon2.memory_kib"),
			Iterations: v.GetUint32("password.argon2.iterations"),
			SaltLength: v.GetUint32("password.argon2.salt_len"),
			KeyLength:  v.GetUint32("password.argon2.key_len"),
		},
		Policy: Policy{
			MinLength:      v.GetInt("password.min_len"),
			MaxLength:      v.GetInt("password.max_len"),
			RejectVeryWeak: v.GetBool("password.reject_very_weak"),
		},
	}

	par := v.GetUint32("password.argon2.parallelism")
	if par < 1 || par > 64 {
		return Config{}, fmt.Errorf("%w: parallelism out of range [1..64]", ErrConfig)
	}
	cfg.Params.Parallelism = uint8(par)

	if err := cfg.check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) check() error {
	switch {
	case c.Params.MemoryKiB < 8*1024 || c.Params.MemoryKiB > 1024*1024:
		return fmt.Errorf("%w: memory_kib out of range [8192..1048576]", ErrConfig)
	case c.Params.Iterations < 1 || c.Params.Iterations > 20:
		return fmt.Errorf("%w: iterations out of range [1..20]", ErrConfig)
	case c.Params.SaltLength < 8 || c.Params.SaltLength > 64:
		return fmt.Errorf("%w: salt_len out of range [8..64]", ErrConfig)
	case c.Params.KeyLength < 16 || c.Params.KeyLength > 64:
		return fmt.Errorf("%w: key_len out of range [16..64]", ErrConfig)
	case c.Policy.MinLength < 1:
		return fmt.Errorf("%w: min_len must be positive", ErrConfig)
	case c.Policy.MinLength > c.Policy.MaxLength:
		return fmt.Errorf("%w: min_len(%d) > max_len(%d)", ErrConfig, c.Policy.MinLength, c.Policy.MaxLength)
	}
	return nil
}
