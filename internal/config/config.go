// Package config loads service settings from defaults, an optional config
// file, the environment (.env included) and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/auth"
	"github.com/ovaphlow/pitchfork/service-tasklist/pkg/database"
	"github.com/ovaphlow/pitchfork/service-tasklist/pkg/telemetry"
	"github.com/ovaphlow/pitchfork/service-tasklist/pkg/utilities"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Database  database.Config  `mapstructure:"database"`
	JWT       JWTConfig        `mapstructure:"jwt"`
	Log       utilities.Config `mapstructure:"log"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`
	ID        IDConfig         `mapstructure:"id"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	Issuer     string        `mapstructure:"issuer"`
}

type IDConfig struct {
	Node int64 `mapstructure:"node"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8431")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", database.DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.timeout", "5s")
	v.SetDefault("database.timezone", "")
	v.SetDefault("database.client_encoding", "")
	v.SetDefault("database.migrate", false)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_ttl", "1h")
	v.SetDefault("jwt.refresh_ttl", "720h")
	v.SetDefault("jwt.issuer", "tasklist")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dev", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_age", "168h")
	v.SetDefault("log.rotation_time", "24h")

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "tasklist")
	v.SetDefault("telemetry.service_version", "dev")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sampler_ratio", 1.0)

	v.SetDefault("id.node", 1)
}

// Flags registers the command line overrides on fs.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (yaml, json or toml)")
	fs.String("addr", "", "listen address")
	fs.String("db-driver", "", "database driver: postgres, pgx or sqlite")
	fs.String("db-url", "", "database connection string")
	fs.Bool("migrate", false, "apply pending migrations on startup")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.Bool("log-dev", false, "human readable development logging")
}

var flagKeys = map[string]string{
	"addr":      "server.addr",
	"db-driver": "database.driver",
	"db-url":    "database.url",
	"migrate":   "database.migrate",
	"log-level": "log.level",
	"log-dev":   "log.dev",
}

// Load builds the configuration. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// best-effort: a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %q: %w", f.Value.String(), err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case database.DriverPostgres, database.DriverPgx, database.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	return errors.Join(errs...)
}

// ValidateJWT checks the token settings; only the server needs them.
func (c *Config) ValidateJWT() error {
	var errs []error
	if len(c.JWT.Secret) < auth.MinSecretLen {
		errs = append(errs, fmt.Errorf("jwt.secret must be at least %d bytes", auth.MinSecretLen))
	}
	if c.JWT.AccessTTL <= 0 {
		errs = append(errs, errors.New("jwt.access_ttl must be positive"))
	}
	// token timestamps are whole seconds
	if c.JWT.AccessTTL%time.Second != 0 {
		errs = append(errs, fmt.Errorf("jwt.access_ttl must be a whole number of seconds, got %s", c.JWT.AccessTTL))
	}
	if c.JWT.RefreshTTL%time.Second != 0 {
		errs = append(errs, fmt.Errorf("jwt.refresh_ttl must be a whole number of seconds, got %s", c.JWT.RefreshTTL))
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		errs = append(errs, errors.New("jwt.refresh_ttl must not be shorter than jwt.access_ttl"))
	}
	return errors.Join(errs...)
}
