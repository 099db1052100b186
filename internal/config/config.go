package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Database drivers
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver       string
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxRetries   int
	InitialDelay time.Duration
}

// Config holds the service configuration, read from the environment
type Config struct {
	Port       string
	GinMode    string
	JWTSecret  string
	CORSOrigin string
	LogLevel   string
	LogFormat  string

	Database DatabaseConfig

	TreeMaxNodes      int
	TreeMaxDepth      int
	LayoutSpacing     float64
	LayoutLevelHeight float64
	AdminConcurrency  int
	RequestTimeout    time.Duration
}

// Load reads configuration from environment variables.
// The caller is expected to have loaded .env (godotenv) beforehand.
func Load() *Config {
	return &Config{
		Port:       getEnv("PORT", "8085"),
		GinMode:    os.Getenv("GIN_MODE"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		CORSOrigin: os.Getenv("CORS_ORIGIN"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "json"),
		Database: DatabaseConfig{
			Driver:       getEnv("DATABASE_DRIVER", DriverPgx),
			URL:          os.Getenv("DATABASE_URL"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "simpatizantes_admin"),
			Password:     os.Getenv("DB_PASSWORD"),
			Name:         getEnv("DB_NAME", "simpatizantes_db"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxRetries:   getEnvInt("DB_MAX_RETRIES", 5),
			InitialDelay: time.Second,
		},
		TreeMaxNodes:      getEnvInt("TREE_MAX_NODES", 50000),
		TreeMaxDepth:      getEnvInt("TREE_MAX_DEPTH", 10000),
		LayoutSpacing:     getEnvFloat("LAYOUT_SPACING", 100),
		LayoutLevelHeight: getEnvFloat("LAYOUT_LEVEL_HEIGHT", 100),
		AdminConcurrency:  getEnvInt("ADMIN_TRAVERSAL_CONCURRENCY", 4),
		RequestTimeout:    time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s value: %s, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Invalid %s value: %s, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return f
}
