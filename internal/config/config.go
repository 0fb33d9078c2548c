package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Realtime RealtimeConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Log      LogConfig
	Session  SessionConfig
	Fleet    FleetConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// StoreConfig selects and authenticates the record store backend.
type StoreConfig struct {
	URL          string
	APIKey       string
	Timeout      time.Duration
	EnsureSchema bool
}

// Backend names a record store implementation.
type Backend string

const (
	BackendNone     Backend = ""
	BackendREST     Backend = "rest"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// Backend picks the implementation from the URL scheme. When none applies
// the second return value says why.
func (s StoreConfig) Backend() (Backend, string) {
	if s.URL == "" {
		return BackendNone, "STORE_URL is not set"
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return BackendNone, "STORE_URL is not a valid URL"
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if s.APIKey == "" {
			return BackendNone, "STORE_API_KEY is not set"
		}
		return BackendREST, ""
	case "postgres", "postgresql":
		return BackendPostgres, ""
	case "memory":
		return BackendMemory, ""
	}
	return BackendNone, "unsupported STORE_URL scheme " + u.Scheme
}

// DatabaseConfig holds PostgreSQL pool settings for the postgres backend.
type DatabaseConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RealtimeConfig holds realtime websocket settings.
type RealtimeConfig struct {
	HeartbeatInterval time.Duration
	JoinTimeout       time.Duration
}

// RedisConfig holds Redis configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	UniversityTTL time.Duration
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// SessionConfig holds per-user session settings.
type SessionConfig struct {
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
	DefaultLanguage string
}

// FleetConfig holds proximity settings.
type FleetConfig struct {
	NearbyRadiusKm float64
}

// Load loads configuration from environment variables, after reading a
// .env file when one is found.
func Load() *Config {
	LoadDotEnvUp(0)

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Mode:            getEnv("GIN_MODE", "release"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			URL:          getEnv("STORE_URL", ""),
			APIKey:       getEnv("STORE_API_KEY", ""),
			Timeout:      getDurationEnv("STORE_TIMEOUT", 15*time.Second),
			EnsureSchema: getBoolEnv("STORE_ENSURE_SCHEMA", false),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Realtime: RealtimeConfig{
			HeartbeatInterval: getDurationEnv("REALTIME_HEARTBEAT_INTERVAL", 30*time.Second),
			JoinTimeout:       getDurationEnv("REALTIME_JOIN_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getIntEnv("REDIS_DB", 0),
			UniversityTTL: getDurationEnv("REDIS_UNIVERSITY_TTL", 10*time.Minute),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "waselni"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Session: SessionConfig{
			IdleTimeout:     getDurationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			SweepInterval:   getDurationEnv("SESSION_SWEEP_INTERVAL", time.Minute),
			DefaultLanguage: getEnv("SESSION_DEFAULT_LANGUAGE", "en"),
		},
		Fleet: FleetConfig{
			NearbyRadiusKm: getFloatEnv("FLEET_NEARBY_RADIUS_KM", 10),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
