// Package config loads server settings from, in increasing priority:
// built-in defaults, an optional config.yaml, an optional .env file and
// WARBLER_* environment variables (WARBLER_DATABASE_DSN for database.dsn).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port int
	}
	Database struct {
		// Driver is "sqlite" or "postgres".
		Driver string
		DSN    string
	}
	Auth struct {
		JWTSecret     string
		TokenTTL      time.Duration
		SessionSecret string
		SecureCookies bool
		BcryptCost    int
	}
	Web struct {
		// StaticDir serves /static from disk instead of the embedded files.
		StaticDir string
	}
	Log struct {
		Level string
	}
}

// Load reads the configuration. dirs are searched for config.yaml and .env;
// no dirs means the working directory.
func Load(dirs ...string) (Config, error) {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, d := range dirs {
		// a missing .env is normal; existing env vars win over its values
		_ = godotenv.Load(filepath.Join(d, ".env"))
	}

	v := viper.New()
	v.SetEnvPrefix("WARBLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/warbler.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttl", "24h")
	v.SetDefault("auth.sessionsecret", "")
	v.SetDefault("auth.securecookies", false)
	v.SetDefault("auth.bcryptcost", 12)
	v.SetDefault("web.staticdir", "")
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshalling: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if s := c.Auth.JWTSecret; s != "" && len(s) < 16 {
		return errors.New("config: auth.jwtsecret must be at least 16 characters")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses log.level ("debug", "info", "warn", "error").
func (c Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return lvl, nil
}
