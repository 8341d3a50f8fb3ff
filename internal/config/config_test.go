package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/warbler.db", cfg.Database.DSN)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Empty(t, cfg.Web.StaticDir)

	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WARBLER_SERVER_PORT", "9090")
	t.Setenv("WARBLER_DATABASE_DRIVER", "postgres")
	t.Setenv("WARBLER_DATABASE_DSN", "postgres://localhost/warbler_test")
	t.Setenv("WARBLER_AUTH_JWTSECRET", "0123456789abcdef0123")
	t.Setenv("WARBLER_LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/warbler_test", cfg.Database.DSN)
	assert.Equal(t, "0123456789abcdef0123", cfg.Auth.JWTSecret)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "server:\n  port: 7000\nauth:\n  bcryptcost: 10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	// .env beats the file, real env beats .env
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("WARBLER_AUTH_BCRYPTCOST=11\nWARBLER_SERVER_PORT=7100\n"), 0o600))
	t.Setenv("WARBLER_SERVER_PORT", "7200")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 7200, cfg.Server.Port)
	assert.Equal(t, 11, cfg.Auth.BcryptCost)

	// godotenv.Load sets process env; undo it for the other tests
	t.Cleanup(func() { os.Unsetenv("WARBLER_AUTH_BCRYPTCOST") })
}

func TestValidate(t *testing.T) {
	base := func() Config {
		var c Config
		c.Server.Port = 8080
		c.Database.Driver = "sqlite"
		c.Database.DSN = ":memory:"
		c.Log.Level = "info"
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	require.NoError(t, base().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
