// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Access   AccessConfig
	Auth     AuthConfig
	Log      LogConfig
	Notify   NotifyConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          string
	ReadTimeout   int // seconds
	WriteTimeout  int // seconds
	IdleTimeout   int // seconds
	PublicBaseURL string
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
}

// DatabaseConfig selects the database.
type DatabaseConfig struct {
	Driver     string // postgres | sqlite
	DSN        string
	Migrations bool // run the embedded SQL migrations instead of AutoMigrate
	Debug      bool
	Retries    int
}

// AccessConfig is the lockout policy of the public document gate.
type AccessConfig struct {
	WindowMinutes int
	MaxAttempts   int
	Store         string // db | redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	GrantHours    int
}

type AuthConfig struct {
	SessionSecret string
	SecureCookies bool
	BcryptCost    int
}

type LogConfig struct {
	Level string
}

type NotifyConfig struct {
	Notifier string // outbox | log
}

// Window returns the attempt window as a duration.
func (a AccessConfig) Window() time.Duration {
	return time.Duration(a.WindowMinutes) * time.Minute
}

// GrantTTL returns how long an unlocked document stays open.
func (a AccessConfig) GrantTTL() time.Duration {
	return time.Duration(a.GrantHours) * time.Hour
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			ReadTimeout:   getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:  getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:   getEnvInt("SERVER_IDLE_TIMEOUT", 60),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
			TrustProxy:    getEnvBool("TRUST_PROXY", false),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			DSN:        getEnv("DATABASE_DSN", "host=localhost port=5432 user=briefly password=briefly dbname=briefly sslmode=disable"),
			Migrations: getEnvBool("MIGRATIONS", false),
			Debug:      getEnvBool("DB_DEBUG", false),
			Retries:    getEnvInt("DB_CONNECT_RETRIES", 10),
		},
		Access: AccessConfig{
			WindowMinutes: getEnvInt("ACCESS_WINDOW_MINUTES", 60),
			MaxAttempts:   getEnvInt("ACCESS_MAX_ATTEMPTS", 5),
			Store:         getEnv("ATTEMPT_STORE", "db"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			GrantHours:    getEnvInt("ACCESS_GRANT_HOURS", 12),
		},
		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", ""),
			SecureCookies: getEnvBool("SECURE_COOKIES", false),
			BcryptCost:    getEnvInt("BCRYPT_COST", 12),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Notify: NotifyConfig{
			Notifier: getEnv("NOTIFIER", "outbox"),
		},
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, errors.New("DB_DRIVER must be postgres or sqlite"))
	}
	switch c.Access.Store {
	case "db", "redis":
	default:
		errs = append(errs, errors.New("ATTEMPT_STORE must be db or redis"))
	}
	switch c.Notify.Notifier {
	case "outbox", "log":
	default:
		errs = append(errs, errors.New("NOTIFIER must be outbox or log"))
	}
	if c.Access.WindowMinutes <= 0 || c.Access.MaxAttempts <= 0 {
		errs = append(errs, errors.New("ACCESS_WINDOW_MINUTES and ACCESS_MAX_ATTEMPTS must be positive"))
	}
	return errors.Join(errs...)
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
