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

const testSecret = "config-test-secret-0123456789"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SNIPPETHUB_AUTH_JWT_SECRET", testSecret)

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/snippethub.db", cfg.Database.DSN)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, testSecret, cfg.Auth.SessionSecret, "session secret falls back to the JWT secret")
	assert.Equal(t, 4, cfg.PageSize)
	assert.Equal(t, 60, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Empty(t, cfg.RateLimit.RedisURL)
	assert.True(t, cfg.Executor.Enabled)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.GitHub.CallbackURL)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SNIPPETHUB_AUTH_JWT_SECRET", testSecret)
	t.Setenv("SNIPPETHUB_PORT", "9090")
	t.Setenv("SNIPPETHUB_DATABASE_DRIVER", "Postgres")
	t.Setenv("SNIPPETHUB_DATABASE_DSN", "postgres://localhost/snippethub")
	t.Setenv("SNIPPETHUB_RATE_LIMIT_WINDOW", "30s")
	t.Setenv("SNIPPETHUB_RATE_LIMIT_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SNIPPETHUB_EXECUTOR_ENABLED", "false")
	t.Setenv("SNIPPETHUB_BASE_URL", "https://snippets.example.com/")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/snippethub", cfg.Database.DSN)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RateLimit.RedisURL)
	assert.False(t, cfg.Executor.Enabled)
	assert.Equal(t, "https://snippets.example.com", cfg.BaseURL)
	assert.Equal(t, "http://localhost:9090/auth/github/callback", cfg.GitHub.CallbackURL)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
log_level: debug
auth:
  jwt_secret: file-secret-0123456789
  session_secret: other-session-secret
search:
  page_size: 10
`), 0o644))

	t.Setenv("SNIPPETHUB_PORT", "7000")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port, "env beats the file")
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, "file-secret-0123456789", cfg.Auth.JWTSecret)
	assert.Equal(t, "other-session-secret", cfg.Auth.SessionSecret)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:      8080,
			Database:  DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
			Auth:      AuthConfig{JWTSecret: testSecret},
			PageSize:  4,
			RateLimit: RateLimitConfig{Requests: 10, Window: time.Minute},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"dsn", func(c *Config) { c.Database.DSN = "" }},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"page size", func(c *Config) { c.PageSize = 0 }},
		{"rate window", func(c *Config) { c.RateLimit.Window = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		c := &Config{LogLevel: in}
		assert.Equal(t, want, c.Level(), in)
	}
}
