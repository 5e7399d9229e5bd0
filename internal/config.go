package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment string        `mapstructure:"environment"`
	Server      ServerConfig  `mapstructure:"http_server"`
	API         APIConfig     `mapstructure:"api"`
	Session     SessionConfig `mapstructure:"session"`
	Notice      NoticeConfig  `mapstructure:"notice"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

// APIConfig describes the remote ledger service.
type APIConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	Timeout              time.Duration `mapstructure:"timeout"`
	AssignPermissionPath string        `mapstructure:"assign_permission_path"`
	PermissionField      string        `mapstructure:"permission_field"`
}

type SessionConfig struct {
	Backend string      `mapstructure:"backend"`
	Path    string      `mapstructure:"path"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type NoticeConfig struct {
	Duration time.Duration `mapstructure:"duration"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

// Defaults returns the configuration used when no file or env override is present.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"environment":                     "development",
		"http_server.port":                8088,
		"http_server.read_header_timeout": 5 * time.Second,
		"http_server.read_timeout":        15 * time.Second,
		"http_server.idle_timeout":        60 * time.Second,
		"http_server.write_timeout":       30 * time.Second,
		"api.base_url":                    "https://ledger-system-backend.vercel.app/api",
		"api.timeout":                     15 * time.Second,
		"api.assign_permission_path":      "auth/assign-permissions",
		"api.permission_field":            "permissions",
		"session.backend":                 SessionBackendSQLite,
		"session.path":                    ".ledger-console/session.db",
		"session.redis.addr":              "localhost:6379",
		"session.redis.key_prefix":        "ledger-console:",
		"notice.duration":                 3 * time.Second,
		"logging.level":                   "info",
		"logging.format":                  "text",
	}
}

// LoadConfigFromEnv builds the configuration from LEDGER_* variables only.
func LoadConfigFromEnv() *Config {
	return &Config{
		Environment: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:              getEnvAsInt("LEDGER_HTTP_SERVER_PORT", 8088),
			ReadHeaderTimeout: getEnvAsDuration("LEDGER_HTTP_SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("LEDGER_HTTP_SERVER_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("LEDGER_HTTP_SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("LEDGER_HTTP_SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		API: APIConfig{
			BaseURL:              getEnv("LEDGER_API_BASE_URL", "https://ledger-system-backend.vercel.app/api"),
			Timeout:              getEnvAsDuration("LEDGER_API_TIMEOUT", 15*time.Second),
			AssignPermissionPath: getEnv("LEDGER_API_ASSIGN_PERMISSION_PATH", "auth/assign-permissions"),
			PermissionField:      getEnv("LEDGER_API_PERMISSION_FIELD", "permissions"),
		},
		Session: SessionConfig{
			Backend: getEnv("LEDGER_SESSION_BACKEND", SessionBackendSQLite),
			Path:    getEnv("LEDGER_SESSION_PATH", ".ledger-console/session.db"),
			Redis: RedisConfig{
				Addr:      getEnv("LEDGER_SESSION_REDIS_ADDR", "localhost:6379"),
				Password:  getEnv("LEDGER_SESSION_REDIS_PASSWORD", ""),
				DB:        getEnvAsInt("LEDGER_SESSION_REDIS_DB", 0),
				KeyPrefix: getEnv("LEDGER_SESSION_REDIS_KEY_PREFIX", "ledger-console:"),
			},
		},
		Notice: NoticeConfig{
			Duration: getEnvAsDuration("LEDGER_NOTICE_DURATION", 3*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LEDGER_LOGGING_LEVEL", "info"),
			Format: getEnv("LEDGER_LOGGING_FORMAT", "json"),
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.API.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("api config: %v", err))
	}

	if err := c.Session.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("session config: %v", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if c.Notice.Duration <= 0 {
		errs = append(errs, "notice config: duration must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *APIConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", u.Scheme)
	}
	if c.PermissionField != "permissions" && c.PermissionField != "permission" {
		return fmt.Errorf("permission_field must be permissions or permission, got %q", c.PermissionField)
	}
	if strings.TrimSpace(c.AssignPermissionPath) == "" {
		return errors.New("assign_permission_path is required")
	}
	return nil
}

func (c *SessionConfig) Validate() error {
	switch c.Backend {
	case SessionBackendSQLite:
		if c.Path == "" {
			return errors.New("path is required for the sqlite backend")
		}
	case SessionBackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis backend")
		}
	case SessionBackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid level %q", c.Level)
	}
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid format %q", c.Format)
	}
	return nil
}
