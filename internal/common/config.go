package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Log      LogConfig
	Version  string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	ConsistentList   bool
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr            string
	GRPCHealthAddr      string
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	BodyLimit           string
	HealthCheckInterval time.Duration
}

// AuthConfig holds the identity gate configuration
type AuthConfig struct {
	Disabled bool
	// Tokens maps bearer token -> caller id.
	Tokens map[string]string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is applied first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "sqlite:./receipts.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
			ConsistentList:   getEnvAsBool("DB_CONSISTENT_LIST", false),
		},
		Server: ServerConfig{
			HTTPAddr:            getEnv("HTTP_ADDR", ":8000"),
			GRPCHealthAddr:      getEnv("GRPC_HEALTH_ADDR", ":8081"),
			ReadTimeout:         getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:        getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			BodyLimit:           getEnv("HTTP_BODY_LIMIT", "10M"),
			HealthCheckInterval: getEnvAsDuration("HEALTH_CHECK_INTERVAL", 10*time.Second),
		},
		Auth: AuthConfig{
			Disabled: getEnvAsBool("AUTH_DISABLED", false),
			Tokens:   parseTokens(getEnv("AUTH_TOKENS", "")),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Version: getEnv("APP_VERSION", "dev"),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseTokens reads "token=caller,token2=caller2". A bare token maps to
// itself.
func parseTokens(raw string) map[string]string {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, caller, found := strings.Cut(pair, "=")
		token = strings.TrimSpace(token)
		if !found {
			caller = token
		}
		tokens[token] = strings.TrimSpace(caller)
	}
	return tokens
}

// SlogLevel maps the configured level name onto slog.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "HTTP_ADDR is required", ErrInvalidInput)
	}
	if !c.Auth.Disabled && len(c.Auth.Tokens) == 0 {
		return NewAppError(CodeConfig, "AUTH_TOKENS is required unless AUTH_DISABLED=true", ErrInvalidInput)
	}
	return nil
}
