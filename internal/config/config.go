package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends for rate limit state.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Gate     GateConfig
	Resolver ResolverConfig
}

type ServerConfig struct {
	Port              string
	Env               string
	LogLevel          string
	AllowedOrigins    []string
	TrustedProxies    []string
	RequestsPerMinute int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

type StoreConfig struct {
	Backend string
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type GateConfig struct {
	MaxFailedAttempts int
	BaseLockout       time.Duration
	MaxLockout        time.Duration
	AttemptTTL        time.Duration
	CleanupInterval   time.Duration
}

type ResolverConfig struct {
	EdgeURL            string
	EdgeTimeout        time.Duration
	EchoURL            string
	EchoTimeout        time.Duration
	ServiceTokenSecret string
	ServiceTokenTTL    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnv("PORT", "8080"),
			Env:               env,
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:    parseAllowedOrigins(env),
			TrustedProxies:    parseCSV(getEnv("TRUSTED_PROXIES", "")),
			RequestsPerMinute: getEnvAsInt("REQUESTS_PER_MINUTE", 120),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Store: StoreConfig{
			Backend: getEnv("GATE_STORE", StoreMemory),
		},
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "authgate"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Gate: GateConfig{
			MaxFailedAttempts: getEnvAsInt("GATE_MAX_FAILED_ATTEMPTS", 5),
			BaseLockout:       getEnvAsDuration("GATE_BASE_LOCKOUT", 1*time.Minute),
			MaxLockout:        getEnvAsDuration("GATE_MAX_LOCKOUT", 1*time.Hour),
			AttemptTTL:        getEnvAsDuration("GATE_ATTEMPT_TTL", 2*time.Hour),
			CleanupInterval:   getEnvAsDuration("GATE_CLEANUP_INTERVAL", 15*time.Minute),
		},
		Resolver: ResolverConfig{
			EdgeURL:            getEnv("IDENTITY_EDGE_URL", ""),
			EdgeTimeout:        getEnvAsDuration("IDENTITY_EDGE_TIMEOUT", 2*time.Second),
			EchoURL:            getEnv("IDENTITY_ECHO_URL", "https://api.ipify.org?format=json"),
			EchoTimeout:        getEnvAsDuration("IDENTITY_ECHO_TIMEOUT", 3*time.Second),
			ServiceTokenSecret: getEnv("IDENTITY_SERVICE_SECRET", ""),
			ServiceTokenTTL:    getEnvAsDuration("IDENTITY_SERVICE_TOKEN_TTL", 1*time.Minute),
		},
	}

	switch cfg.Store.Backend {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return nil, fmt.Errorf("GATE_STORE must be one of memory, redis, postgres (got %q)", cfg.Store.Backend)
	}

	if cfg.Store.Backend == StorePostgres && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required when GATE_STORE=postgres")
	}

	if cfg.Gate.MaxFailedAttempts < 1 {
		return nil, fmt.Errorf("GATE_MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if cfg.Gate.BaseLockout <= 0 {
		return nil, fmt.Errorf("GATE_BASE_LOCKOUT must be positive")
	}
	if cfg.Gate.MaxLockout < cfg.Gate.BaseLockout {
		return nil, fmt.Errorf("GATE_MAX_LOCKOUT must be at least GATE_BASE_LOCKOUT")
	}

	// Validate service secret strength when the edge tier authenticates
	if cfg.Resolver.ServiceTokenSecret != "" {
		if err := validateServiceSecret(cfg.Resolver.ServiceTokenSecret, env); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// validateServiceSecret enforces minimum security standards for the edge
// tier's signing secret
func validateServiceSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("IDENTITY_SERVICE_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("IDENTITY_SERVICE_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

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
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		return parseCSV(originsStr)
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
