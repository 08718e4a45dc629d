package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Credential verification mode constants
const (
	AuthModeLocal   = "local"
	AuthModeHTTPAPI = "http_api"
)

// Cache backend constants
const (
	CacheModeMemory  = "memory"
	CacheModeRueidis = "rueidis"
)

// Refresh token representation constants
const (
	RefreshFormatOpaque = "opaque"
	RefreshFormatJWT    = "jwt"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	IsProduction bool

	// Session settings (browser authorization flow)
	SessionSecret string
	SessionMaxAge int // seconds

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string

	// Realm defaults. Each realm can override these via its own columns;
	// new realms are created with these values.
	DefaultSigningAlgorithm string        // "RS256" or "ES256"
	CodeExpiration          time.Duration // authorization code TTL (short)
	AccessTokenExpiration   time.Duration
	RefreshTokenExpiration  time.Duration
	RefreshRotationEnabled  bool
	RefreshTokenFormat      string // "opaque" or "jwt"

	// Login settings
	LoginSessionExpiration time.Duration
	OTPMaxAttempts         int
	MaxLoginFailures       int           // failures before lockout, keyed (realm, user)
	LockoutDuration        time.Duration // time-boxed reset window
	CredentialWorkers      int64         // bounded pool for bcrypt verification

	// Credential verification
	AuthMode string // "local" or "http_api"

	// HTTP API credential verification (external collaborator)
	HTTPAPIURL                string
	HTTPAPITimeout            time.Duration
	HTTPAPIInsecureSkipVerify bool
	HTTPAPIAuthMode           string // "none", "simple", or "hmac"
	HTTPAPIAuthSecret         string
	HTTPAPIAuthHeader         string

	// Cache (realm/client lookups, lockout counters)
	CacheMode     string // "memory" or "rueidis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	RateLimitEnabled       bool
	RateLimitStore         string // "memory" or "redis"
	TokenRequestsPerMinute int
	LoginRequestsPerMinute int

	// Metrics
	MetricsEnabled bool
	MetricsToken   string

	// Master realm bootstrap
	MasterRealm          string
	DefaultAdminPassword string // empty = random password logged once
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "ferriskey.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		IsProduction: getEnvBool("PRODUCTION", false),

		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 3600),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		DefaultSigningAlgorithm: getEnv("SIGNING_ALGORITHM", "RS256"),
		CodeExpiration:          getEnvDuration("CODE_EXPIRATION", 10*time.Minute),
		AccessTokenExpiration:   getEnvDuration("ACCESS_TOKEN_EXPIRATION", time.Hour),
		RefreshTokenExpiration:  getEnvDuration("REFRESH_TOKEN_EXPIRATION", 720*time.Hour),
		RefreshRotationEnabled:  getEnvBool("ENABLE_TOKEN_ROTATION", true),
		RefreshTokenFormat:      getEnv("REFRESH_TOKEN_FORMAT", RefreshFormatOpaque),

		LoginSessionExpiration: getEnvDuration("LOGIN_SESSION_EXPIRATION", 30*time.Minute),
		OTPMaxAttempts:         getEnvInt("OTP_MAX_ATTEMPTS", 3),
		MaxLoginFailures:       getEnvInt("MAX_LOGIN_FAILURES", 5),
		LockoutDuration:        getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),
		CredentialWorkers:      int64(getEnvInt("CREDENTIAL_WORKERS", 4)),

		AuthMode: getEnv("AUTH_MODE", AuthModeLocal),

		HTTPAPIURL:                getEnv("HTTP_API_URL", ""),
		HTTPAPITimeout:            getEnvDuration("HTTP_API_TIMEOUT", 10*time.Second),
		HTTPAPIInsecureSkipVerify: getEnvBool("HTTP_API_INSECURE_SKIP_VERIFY", false),
		HTTPAPIAuthMode:           getEnv("HTTP_API_AUTH_MODE", "none"),
		HTTPAPIAuthSecret:         getEnv("HTTP_API_AUTH_SECRET", ""),
		HTTPAPIAuthHeader:         getEnv("HTTP_API_AUTH_HEADER", "X-API-Secret"),

		CacheMode:     getEnv("CACHE_MODE", CacheModeMemory),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitEnabled:       getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitStore:         getEnv("RATE_LIMIT_STORE", "memory"),
		TokenRequestsPerMinute: getEnvInt("TOKEN_REQUESTS_PER_MINUTE", 120),
		LoginRequestsPerMinute: getEnvInt("LOGIN_REQUESTS_PER_MINUTE", 30),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),

		MasterRealm:          getEnv("MASTER_REALM", "master"),
		DefaultAdminPassword: getEnv("DEFAULT_ADMIN_PASSWORD", ""),
	}
}

// Validate reports configuration combinations that cannot work at runtime.
func (c *Config) Validate() error {
	if c.AuthMode == AuthModeHTTPAPI && c.HTTPAPIURL == "" {
		return fmt.Errorf("AUTH_MODE=http_api requires HTTP_API_URL")
	}
	if c.DatabaseDriver == "postgres" && c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DRIVER=postgres requires DATABASE_DSN")
	}
	switch c.DefaultSigningAlgorithm {
	case "RS256", "ES256":
	default:
		return fmt.Errorf("unsupported SIGNING_ALGORITHM: %s", c.DefaultSigningAlgorithm)
	}
	switch c.RefreshTokenFormat {
	case RefreshFormatOpaque, RefreshFormatJWT:
	default:
		return fmt.Errorf("unsupported REFRESH_TOKEN_FORMAT: %s", c.RefreshTokenFormat)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
