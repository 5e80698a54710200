package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	authapi "github.com/Flugers27/Memory-book/cmd/internal/auth/api"
	"github.com/Flugers27/Memory-book/cmd/internal/auth/session"
	"github.com/Flugers27/Memory-book/cmd/internal/telemetry"
	"github.com/Flugers27/Memory-book/cmd/security/password"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment key: auth.token_secret is read from
// MEMORYBOOK_AUTH_TOKEN_SECRET.
const EnvPrefix = "MEMORYBOOK"

// Config contains all runtime configuration.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	// DatabaseURL selects Postgres. Empty runs every store in memory.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	Migrate     bool

	// If true, /readyz returns 503 unless the database is configured and reachable.
	ReadinessRequireDB bool

	// RedisURL shares the login throttle across instances. Empty keeps it in process.
	RedisURL string

	CORSAllowedOrigins []string

	SweepSchedule string
	AdminToken    string

	Tracing  telemetry.TracingConfig
	Session  session.Config
	Password password.Config
	AuthAPI  authapi.Config
}

// NewViper returns a viper instance bound to the MEMORYBOOK_* environment.
// MEMORYBOOK_CONFIG may name a config file read on top of the defaults.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("app: read config %s: %w", path, err)
		}
	}
	return v, nil
}

// SetDefaults registers every app-level key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", "0.0.0.0:8080")
	v.SetDefault("http.read_header_timeout", 5*time.Second)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_header_bytes", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.migrate", false)
	v.SetDefault("readiness.require_db", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("cors.allowed_origins", "")
	v.SetDefault("sweep.schedule", session.DefaultSweepSchedule)
	v.SetDefault("admin.token", "")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.service_name", "memorybook")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// LoadConfig reads the full configuration from v and validates it.
func LoadConfig(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	cfg := Config{
		HTTPAddr:          strings.TrimSpace(v.GetString("http.addr")),
		LogLevel:          v.GetString("log.level"),
		LogFormat:         v.GetString("log.format"),
		ReadHeaderTimeout: v.GetDuration("http.read_header_timeout"),
		ReadTimeout:       v.GetDuration("http.read_timeout"),
		WriteTimeout:      v.GetDuration("http.write_timeout"),
		IdleTimeout:       v.GetDuration("http.idle_timeout"),
		ShutdownTimeout:   v.GetDuration("http.shutdown_timeout"),
		MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),

		DatabaseURL:        strings.TrimSpace(v.GetString("database.url")),
		DBMaxConns:         v.GetInt32("database.max_conns"),
		DBMinConns:         v.GetInt32("database.min_conns"),
		Migrate:            v.GetBool("database.migrate"),
		ReadinessRequireDB: v.GetBool("readiness.require_db"),

		RedisURL:           strings.TrimSpace(v.GetString("redis.url")),
		CORSAllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		SweepSchedule:      strings.TrimSpace(v.GetString("sweep.schedule")),
		AdminToken:         strings.TrimSpace(v.GetString("admin.token")),

		Tracing: telemetry.TracingConfig{
			Endpoint:    strings.TrimSpace(v.GetString("tracing.endpoint")),
			Insecure:    v.GetBool("tracing.insecure"),
			ServiceName: v.GetString("tracing.service_name"),
			SampleRatio: v.GetFloat64("tracing.sample_ratio"),
		},
	}
	if cfg.HTTPAddr == "" {
		return Config{}, fmt.Errorf("app: http.addr is empty")
	}
	if cfg.DBMaxConns < 0 || cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("app: database pool sizes must not be negative")
	}

	var err error
	if cfg.Session, err = session.LoadConfig(v); err != nil {
		return Config{}, err
	}
	if cfg.Password, err = password.LoadConfig(v); err != nil {
		return Config{}, err
	}
	if cfg.AuthAPI, err = authapi.LoadConfig(v); err != nil {
		return Config{}, err
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// splitList splits a comma separated env value.
func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
