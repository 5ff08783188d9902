// Package config reads service settings from the environment, after loading
// a .env file when one is present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all app configuration
type Config struct {
	// Server
	Port           string
	AllowedOrigins []string

	// Database
	DBDriver       string
	DBHost         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBPort         string
	DBSSLMode      string
	SQLitePath     string
	DBLockTimeout  time.Duration
	DBMaxOpenConns int

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Logging
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Token economics
	TokenCreationFee    int64
	InitialTokenReserve int64
	InitialBaseReserve  int64
}

// Load reads the given env files, or ./.env when none are named, then builds
// the configuration from the environment. Variables already set in the
// environment win over file values. A missing ./.env is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment. Every
// malformed value is reported.
func FromEnv() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}, ","),

		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "coinplay"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		SQLitePath:     getEnv("SQLITE_PATH", "coinplay.db"),
		DBLockTimeout:  p.durationVal("DB_LOCK_TIMEOUT", 5*time.Second),
		DBMaxOpenConns: p.intVal("DB_MAX_OPEN_CONNS", 20),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       p.intVal("REDIS_DB", 0),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  p.intVal("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: p.intVal("LOG_MAX_BACKUPS", 10),
		LogMaxAgeDays: p.intVal("LOG_MAX_AGE_DAYS", 30),

		TokenCreationFee:    p.int64Val("TOKEN_CREATION_FEE", 1000),
		InitialTokenReserve: p.int64Val("INITIAL_TOKEN_RESERVE", 1_000_000_000),
		InitialBaseReserve:  p.int64Val("INITIAL_BASE_RESERVE", 1000),
	}

	if cfg.DBDriver != DriverPostgres && cfg.DBDriver != DriverSQLite {
		p.fail("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.DBDriver)
	}
	if cfg.DBMaxOpenConns < 1 {
		p.fail("DB_MAX_OPEN_CONNS must be at least 1")
	}
	if cfg.DBLockTimeout < 0 {
		p.fail("DB_LOCK_TIMEOUT cannot be negative")
	}
	if cfg.TokenCreationFee < 0 {
		p.fail("TOKEN_CREATION_FEE cannot be negative")
	}
	if cfg.InitialTokenReserve < 2 || cfg.InitialBaseReserve < 1 {
		p.fail("INITIAL_TOKEN_RESERVE must be at least 2 and INITIAL_BASE_RESERVE at least 1")
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PostgresDSN builds the connection string for the postgres driver
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// parser collects malformed values instead of stopping at the first one.
type parser struct {
	errs []error
}

func (p *parser) fail(format string, args ...interface{}) {
	p.errs = append(p.errs, fmt.Errorf(format, args...))
}

func (p *parser) intVal(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		p.fail("%s: %q is not a whole number", key, valueStr)
		return defaultVal
	}
	return value
}

func (p *parser) int64Val(key string, defaultVal int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		p.fail("%s: %q is not a whole number", key, valueStr)
		return defaultVal
	}
	return value
}

func (p *parser) durationVal(key string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		p.fail("%s: %q is not a duration", key, valueStr)
		return defaultVal
	}
	return value
}

// Helper functions for parsing environment variables
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	var values []string
	for _, v := range strings.Split(valStr, sep) {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
