package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	gferrors "github.com/vnykmshr/rateguard/pkg/common/errors"
	"github.com/vnykmshr/rateguard/pkg/common/validation"
)

// EnvPrefix prefixes every environment variable, e.g. RATEGUARD_GATE_RPM.
const EnvPrefix = "RATEGUARD"

// SetDefaults registers default values on v. Every key must have a default
// for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gate.rpm", 15.0)
	v.SetDefault("gate.unit", time.Minute)

	v.SetDefault("client.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("client.api_key", "")
	v.SetDefault("client.model", "gemini-2.0-flash")
	v.SetDefault("client.timeout", 60*time.Second)

	v.SetDefault("batch.input", "")
	v.SetDefault("batch.workers", 10)

	v.SetDefault("output.kind", OutputFile)
	v.SetDefault("output.path", "")
	v.SetDefault("output.dir", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "rateguard:results")
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("schedule.cron", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("verbose", false)
	v.SetDefault("dry_run", false)
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// GEMINI_API_KEY is accepted as a fallback for the API key.
	_ = v.BindEnv("client.api_key", EnvPrefix+"_CLIENT_API_KEY", "GEMINI_API_KEY")
	return v
}

// Load reads file (when non-empty) into v and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration used by run and schedule.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs,
		validation.ValidatePositiveFloat("config", "gate.rpm", c.Gate.RPM),
		validation.ValidateNonNegativeDuration("config", "gate.unit", c.Gate.Unit),
		validation.ValidatePositive("config", "batch.workers", c.Batch.Workers),
		validation.ValidateOneOf("config", "output.kind", c.Output.Kind, OutputFile, OutputRedis),
	)

	if !c.DryRun && c.Client.APIKey == "" {
		errs = append(errs, gferrors.NewValidationError("config", "client.api_key", "", "cannot be empty").
			WithHint("set GEMINI_API_KEY or RATEGUARD_CLIENT_API_KEY, or use --dry-run"))
	}
	if c.Output.Kind == OutputRedis {
		errs = append(errs, validation.ValidateNotEmpty("config", "redis.addr", c.Redis.Addr))
	}

	return errors.Join(errs...)
}
