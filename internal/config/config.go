package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"taskmanager/internal/logger"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const MinJWTSecretLength = 32

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	AppPort    string `toml:"app_port"`
	AppVersion string `toml:"app_version"`

	StorageDriver string `toml:"storage_driver"`
	DatabaseURL   string `toml:"database_url"`
	SQLitePath    string `toml:"sqlite_path"`

	JWTSecret      string `toml:"jwt_secret"`
	CredentialMode string `toml:"credential_mode"`
	SeedDemoUsers  bool   `toml:"seed_demo_users"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	// Rate limits: max requests per window (seconds)
	APIRateLimit    int `toml:"api_rate_limit"`
	APIRateWindow   int `toml:"api_rate_window_seconds"`
	AuthRateLimit   int `toml:"auth_rate_limit"`
	AuthRateWindow  int `toml:"auth_rate_window_seconds"`
	WriteRateLimit  int `toml:"write_rate_limit"`
	WriteRateWindow int `toml:"write_rate_window_seconds"`
	// Anonymous comment posts per client IP
	CommentRateLimit  int `toml:"comment_rate_limit"`
	CommentRateWindow int `toml:"comment_rate_window_seconds"`

	AllowedOrigin string `toml:"allowed_origin"`

	LogLevel string `toml:"log_level"`
	LogJSON  bool   `toml:"log_json"`
}

func defaults() *Config {
	return &Config{
		AppPort:         "8080",
		AppVersion:      "dev",
		StorageDriver:   DriverPostgres,
		SQLitePath:      "data/taskmanager.db",
		CredentialMode:  "plain",
		APIRateLimit:    100,
		APIRateWindow:   60,
		AuthRateLimit:   10,
		AuthRateWindow:  60,
		WriteRateLimit:  60,
		WriteRateWindow: 60,
		AllowedOrigin:   "*",
		LogLevel:        "info",

		CommentRateLimit:  20,
		CommentRateWindow: 60,
	}
}

// Load reads .env, the optional CONFIG_FILE and the environment.
// Any configuration error is fatal.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// FromEnv builds the configuration from defaults, the TOML file named by
// CONFIG_FILE (if set) and environment variables, in that order.
func FromEnv() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}

	str("APP_PORT", &c.AppPort)
	str("APP_VERSION", &c.AppVersion)
	str("STORAGE_DRIVER", &c.StorageDriver)
	str("DATABASE_URL", &c.DatabaseURL)
	str("SQLITE_PATH", &c.SQLitePath)
	str("JWT_SECRET", &c.JWTSecret)
	str("CREDENTIAL_MODE", &c.CredentialMode)
	flag("SEED_DEMO_USERS", &c.SeedDemoUsers)

	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	num("REDIS_DB", &c.RedisDB)

	num("API_RATE_LIMIT", &c.APIRateLimit)
	num("API_RATE_WINDOW_SECONDS", &c.APIRateWindow)
	num("AUTH_RATE_LIMIT", &c.AuthRateLimit)
	num("AUTH_RATE_WINDOW_SECONDS", &c.AuthRateWindow)
	num("WRITE_RATE_LIMIT", &c.WriteRateLimit)
	num("WRITE_RATE_WINDOW_SECONDS", &c.WriteRateWindow)
	num("COMMENT_RATE_LIMIT", &c.CommentRateLimit)
	num("COMMENT_RATE_WINDOW_SECONDS", &c.CommentRateWindow)

	str("ALLOWED_ORIGIN", &c.AllowedOrigin)
	str("LOG_LEVEL", &c.LogLevel)
	flag("LOG_JSON", &c.LogJSON)

	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.CredentialMode = strings.ToLower(strings.TrimSpace(c.CredentialMode))

	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set")
		}
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}

	switch c.CredentialMode {
	case "", "plain", "bcrypt":
	default:
		return fmt.Errorf("unknown CREDENTIAL_MODE %q", c.CredentialMode)
	}

	for key, v := range map[string]int{
		"API_RATE_LIMIT":              c.APIRateLimit,
		"API_RATE_WINDOW_SECONDS":     c.APIRateWindow,
		"AUTH_RATE_LIMIT":             c.AuthRateLimit,
		"AUTH_RATE_WINDOW_SECONDS":    c.AuthRateWindow,
		"WRITE_RATE_LIMIT":            c.WriteRateLimit,
		"WRITE_RATE_WINDOW_SECONDS":   c.WriteRateWindow,
		"COMMENT_RATE_LIMIT":          c.CommentRateLimit,
		"COMMENT_RATE_WINDOW_SECONDS": c.CommentRateWindow,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
