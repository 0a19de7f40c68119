package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. COLLAB_DATABASE_DRIVER.
const EnvPrefix = "COLLAB"

// Load reads .env (if any), config.yaml (if any) and environment overrides.
func Load() (*Config, error) {
	loadEnvFile()
	return LoadWith(viper.New(), "config", "./configs", ".")
}

// LoadWith is Load on a caller supplied viper instance, without touching .env.
func LoadWith(v *viper.Viper, name string, paths ...string) (*Config, error) {
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.allow_origins", "http://localhost:5173")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./collabnest.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.unread_ttl", 10*time.Minute)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.name", "collab-nest")
	v.SetDefault("nats.subject_prefix", "notifications")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "collabnest")
	v.SetDefault("mongo.collection", "connection_audit")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("pagination.default_page_size", 10)
	v.SetDefault("pagination.max_page_size", 50)
}

func validateConfig(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres":
		if cfg.Database.DSN == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", cfg.Database.Driver)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if cfg.Pagination.DefaultPageSize < 1 || cfg.Pagination.MaxPageSize < cfg.Pagination.DefaultPageSize {
		return errors.New("pagination sizes are inconsistent")
	}
	return nil
}
