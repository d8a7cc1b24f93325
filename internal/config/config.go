package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	API     APIConfig
	Storage StorageConfig
	Logging LoggingConfig
}

type APIConfig struct {
	BaseURL     string
	Timeout     time.Duration
	RefreshPath string
	LoginPath   string
	// SkipAuthPaths are sent without an Authorization header.
	SkipAuthPaths []string
}

type StorageConfig struct {
	Backend string
	Couch   CouchConfig
	Redis   RedisConfig
}

type CouchConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type LoggingConfig struct {
	Level string
}

const (
	BackendMemory = "memory"
	BackendCouch  = "couch"
	BackendRedis  = "redis"
)

func Load() (*Config, error) {
	godotenv.Load()

	timeout, err := time.ParseDuration(getEnv("API_TIMEOUT", "12s"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("invalid API_TIMEOUT: must be positive")
	}

	backend := strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory))
	switch backend {
	case BackendMemory, BackendCouch, BackendRedis:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q", backend)
	}

	return &Config{
		API: APIConfig{
			BaseURL:       strings.TrimRight(getEnv("API_BASE_URL", "https://kaspas-backend.vercel.app/api"), "/"),
			Timeout:       timeout,
			RefreshPath:   getEnv("API_REFRESH_PATH", "/user/recreateAccessToken"),
			LoginPath:     getEnv("LOGIN_PATH", "/login"),
			SkipAuthPaths: getEnvAsSlice("API_SKIP_AUTH_PATHS", []string{"/user/login", "/user/register", "user/verify-email"}),
		},
		Storage: StorageConfig{
			Backend: backend,
			Couch: CouchConfig{
				Host:     getEnv("COUCH_HOST", "localhost"),
				Port:     getEnv("COUCH_PORT", "5984"),
				User:     getEnv("COUCH_USER", "admin"),
				Password: getEnv("COUCH_PASSWORD", "password"),
				Name:     getEnv("COUCH_DB", "kaspas_storefront"),
			},
			Redis: RedisConfig{
				Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
				Prefix:   getEnv("REDIS_PREFIX", "kaspas:"),
			},
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

// URL builds the CouchDB connection URL with embedded credentials.
func (c CouchConfig) URL() string {
	return fmt.Sprintf("http://%s:%s@%s:%s", c.User, c.Password, c.Host, c.Port)
}

func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
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

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
