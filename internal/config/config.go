// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
	RequestTimeout time.Duration
}

// DatabaseConfig holds document store settings
type DatabaseConfig struct {
	Type    string // "mongodb" or "memory"
	URI     string
	Name    string
	Timeout time.Duration
}

// RedisConfig holds the leaderboard cache settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	LeaderboardTTL time.Duration
}

// FeedConfig holds the feed synchronizer settings
type FeedConfig struct {
	PageSize      int
	PlacingSports []string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string
	JSON  bool
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig
	Database       *DatabaseConfig
	Redis          *RedisConfig
	Feed           *FeedConfig
	Log            *LogConfig
	JWTSecret      string
	AllowedOrigins []string
	Debug          bool
}

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
		RequestTimeout: 5 * time.Second,
	}
}

// DefaultDatabaseConfig provides default database settings
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Type:    "mongodb",
		URI:     "mongodb://localhost:27017",
		Name:    "tipster",
		Timeout: 10 * time.Second,
	}
}

// DefaultFeedConfig provides the default feed window and placing sports table
func DefaultFeedConfig() *FeedConfig {
	return &FeedConfig{
		PageSize:      50,
		PlacingSports: append([]string(nil), models.DefaultPlacingSports...),
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	// Try to load .env file from multiple possible locations
	envLocations := []string{
		".env",          // Current directory
		"../../.env",    // Project root when running from cmd/engine
		"../../../.env", // Even higher directory
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(filepath.Clean(location)); err == nil {
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		// Silent when no .env exists
		_ = godotenv.Load()
	}

	serverConfig := DefaultConfig()

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %v", portStr, err)
		}
		serverConfig.Port = port
	}

	if host := os.Getenv("HOST"); host != "" {
		serverConfig.Host = host
	}

	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	requestTimeout, err := durationFromEnv("REQUEST_TIMEOUT", serverConfig.RequestTimeout)
	if err != nil {
		return nil, err
	}
	serverConfig.RequestTimeout = requestTimeout

	dbConfig := DefaultDatabaseConfig()
	dbConfig.Type = getEnvOrDefault("DB_TYPE", dbConfig.Type)
	switch dbConfig.Type {
	case "mongodb":
		dbConfig.URI = getEnvOrDefault("MONGODB_URI", dbConfig.URI)
		dbConfig.Name = getEnvOrDefault("MONGODB_DATABASE", dbConfig.Name)
	case "memory":
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q, expected mongodb or memory", dbConfig.Type)
	}

	redisConfig := &RedisConfig{
		Addr:           os.Getenv("REDIS_ADDR"),
		Password:       os.Getenv("REDIS_PASSWORD"),
		LeaderboardTTL: time.Minute,
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		n, err := strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %v", dbStr, err)
		}
		redisConfig.DB = n
	}
	leaderboardTTL, err := durationFromEnv("LEADERBOARD_TTL", redisConfig.LeaderboardTTL)
	if err != nil {
		return nil, err
	}
	redisConfig.LeaderboardTTL = leaderboardTTL

	feedConfig := DefaultFeedConfig()
	if sizeStr := os.Getenv("FEED_PAGE_SIZE"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("FEED_PAGE_SIZE must be a positive integer, got %q", sizeStr)
		}
		feedConfig.PageSize = size
	}
	if sports := os.Getenv("PLACING_SPORTS"); sports != "" {
		feedConfig.PlacingSports = splitList(sports)
	}

	config := &Config{
		Server:   serverConfig,
		Database: dbConfig,
		Redis:    redisConfig,
		Feed:     feedConfig,
		Log: &LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
			JSON:  os.Getenv("LOG_JSON") == "true",
		},
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: []string{"*"}, // Default to allow all origins
		Debug:          false,
	}

	if config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = splitList(origins)
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		config.Debug = true
		config.Log.Level = "debug"
	}

	return config, nil
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %v", key, raw, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
