// Package config loads server settings.
//
// PRECEDENCE (highest first):
//  1. command-line flags bound by the CLI
//  2. SNIPPETHUB_* environment variables (a .env file is loaded into the
//     environment first, without overriding variables already set)
//  3. config.yaml
//  4. the defaults below
//
// Nested keys map to env vars by upper-casing and replacing dots:
// database.dsn → SNIPPETHUB_DATABASE_DSN.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "SNIPPETHUB"

// Config keys.
const (
	KeyPort            = "port"
	KeyLogLevel        = "log_level"
	KeyBaseURL         = "base_url"
	KeyDBDriver        = "database.driver"
	KeyDBDSN           = "database.dsn"
	KeyJWTSecret       = "auth.jwt_secret"
	KeyTokenTTL        = "auth.token_ttl"
	KeySessionSecret   = "auth.session_secret"
	KeySecureCookies   = "auth.secure_cookies"
	KeyGitHubID        = "github.client_id"
	KeyGitHubSecret    = "github.client_secret"
	KeyGitHubCallback  = "github.callback_url"
	KeyPageSize        = "search.page_size"
	KeyRateRequests    = "rate_limit.requests"
	KeyRateWindow      = "rate_limit.window"
	KeyRedisURL        = "rate_limit.redis_url"
	KeyExecutorEnabled = "executor.enabled"
	KeyExecutorTimeout = "executor.timeout"
	KeyExecutorPool    = "executor.pool_size"
)

type DatabaseConfig struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	SessionSecret string
	SecureCookies bool
}

type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// RateLimitConfig bounds write requests per client IP. An empty RedisURL
// selects the in-process limiter.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	RedisURL string
}

type ExecutorConfig struct {
	Enabled  bool
	Timeout  time.Duration
	PoolSize int
}

// Config holds the complete server configuration.
type Config struct {
	Port      int
	LogLevel  string
	BaseURL   string
	Database  DatabaseConfig
	Auth      AuthConfig
	GitHub    GitHubConfig
	PageSize  int
	RateLimit RateLimitConfig
	Executor  ExecutorConfig
}

// New returns a viper instance with defaults and environment binding in
// place. Flags can be bound on it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyBaseURL, "http://localhost:8080")
	v.SetDefault(KeyDBDriver, "sqlite")
	v.SetDefault(KeyDBDSN, "data/snippethub.db")
	v.SetDefault(KeyJWTSecret, "")
	v.SetDefault(KeyTokenTTL, 24*time.Hour)
	v.SetDefault(KeySessionSecret, "")
	v.SetDefault(KeySecureCookies, false)
	v.SetDefault(KeyGitHubID, "")
	v.SetDefault(KeyGitHubSecret, "")
	v.SetDefault(KeyGitHubCallback, "")
	v.SetDefault(KeyPageSize, 4)
	v.SetDefault(KeyRateRequests, 60)
	v.SetDefault(KeyRateWindow, time.Minute)
	v.SetDefault(KeyRedisURL, "")
	v.SetDefault(KeyExecutorEnabled, true)
	v.SetDefault(KeyExecutorTimeout, 5*time.Second)
	v.SetDefault(KeyExecutorPool, 2)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads .env, then the config file, and resolves the final Config.
//
// configFile may be empty, in which case config.yaml is looked up in the
// working directory and a missing file is not an error. An explicit path
// that does not exist is.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:     v.GetInt(KeyPort),
		LogLevel: v.GetString(KeyLogLevel),
		BaseURL:  strings.TrimRight(v.GetString(KeyBaseURL), "/"),
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString(KeyDBDriver)),
			DSN:    v.GetString(KeyDBDSN),
		},
		Auth: AuthConfig{
			JWTSecret:     v.GetString(KeyJWTSecret),
			TokenTTL:      v.GetDuration(KeyTokenTTL),
			SessionSecret: v.GetString(KeySessionSecret),
			SecureCookies: v.GetBool(KeySecureCookies),
		},
		GitHub: GitHubConfig{
			ClientID:     v.GetString(KeyGitHubID),
			ClientSecret: v.GetString(KeyGitHubSecret),
			CallbackURL:  v.GetString(KeyGitHubCallback),
		},
		PageSize: v.GetInt(KeyPageSize),
		RateLimit: RateLimitConfig{
			Requests: v.GetInt(KeyRateRequests),
			Window:   v.GetDuration(KeyRateWindow),
			RedisURL: v.GetString(KeyRedisURL),
		},
		Executor: ExecutorConfig{
			Enabled:  v.GetBool(KeyExecutorEnabled),
			Timeout:  v.GetDuration(KeyExecutorTimeout),
			PoolSize: v.GetInt(KeyExecutorPool),
		},
	}

	if cfg.Auth.SessionSecret == "" {
		cfg.Auth.SessionSecret = cfg.Auth.JWTSecret
	}
	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: port %d out of range", c.Port)
	case c.Database.Driver != "sqlite" && c.Database.Driver != "postgres":
		return fmt.Errorf("config: database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	case c.Database.DSN == "":
		return errors.New("config: database.dsn is required")
	case len(c.Auth.JWTSecret) < 16:
		return fmt.Errorf("config: auth.jwt_secret must be at least 16 characters (set %s_AUTH_JWT_SECRET)", EnvPrefix)
	case c.PageSize <= 0:
		return fmt.Errorf("config: search.page_size must be positive, got %d", c.PageSize)
	case c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0:
		return errors.New("config: rate_limit.requests and rate_limit.window must be positive")
	}
	return nil
}

// Level maps LogLevel to a slog level. Unknown names mean info.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
