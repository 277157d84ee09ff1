package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Email    EmailConfig
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

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string

	// CIDR ranges whose forwarding headers are trusted for client IP
	// extraction. Empty means RemoteAddr only.
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	ReauthTokenExpiry time.Duration
	ResetTokenExpiry  time.Duration

	// Refresh sessions use a sliding window capped by a hard ceiling
	// anchored to session creation. The cap defaults to the sliding value.
	RefreshTTLDays    int
	RefreshMaxTTLDays int

	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string

	TimingFloor  time.Duration
	TimingJitter time.Duration
}

type EmailConfig struct {
	AWSRegion    string
	FromAddress  string
	ResetURLBase string
}

// RefreshTTL returns the sliding window as a duration.
func (a *AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTTLDays) * 24 * time.Hour
}

// RefreshMaxTTL returns the hard cap as a duration.
func (a *AuthConfig) RefreshMaxTTL() time.Duration {
	return time.Duration(a.RefreshMaxTTLDays) * 24 * time.Hour
}

// IsProduction reports whether development-only behavior (reset link
// echoing to logs) must be suppressed.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	refreshDays := getEnvAsInt("REFRESH_TTL_DAYS", 30)
	refreshMaxDays := getEnvAsInt("REFRESH_MAX_TTL_DAYS", 0)
	if refreshMaxDays <= 0 {
		refreshMaxDays = refreshDays
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "corkboard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseCSVList(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			ReauthTokenExpiry: getEnvAsDuration("REAUTH_TOKEN_EXPIRY", 10*time.Minute),
			ResetTokenExpiry:  getEnvAsDuration("RESET_TOKEN_EXPIRY", 30*time.Minute),
			RefreshTTLDays:    refreshDays,
			RefreshMaxTTLDays: refreshMaxDays,
			CookieDomain:      getEnv("COOKIE_DOMAIN", ""),
			CookieSecure:      getEnvAsBool("COOKIE_SECURE", env == "production"),
			CookieSameSite:    getEnv("COOKIE_SAMESITE", "lax"),
			TimingFloor:       getEnvAsDuration("AUTH_TIMING_FLOOR", 150*time.Millisecond),
			TimingJitter:      getEnvAsDuration("AUTH_TIMING_JITTER", 50*time.Millisecond),
		},
		Email: EmailConfig{
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "no-reply@corkboard.local"),
			ResetURLBase: getEnv("RESET_URL_BASE", "http://localhost:3000"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Auth.RefreshMaxTTLDays < cfg.Auth.RefreshTTLDays {
		return nil, fmt.Errorf("REFRESH_MAX_TTL_DAYS (%d) must not be below REFRESH_TTL_DAYS (%d)",
			cfg.Auth.RefreshMaxTTLDays, cfg.Auth.RefreshTTLDays)
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
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

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

func parseCSVList(value string) []string {
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
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
