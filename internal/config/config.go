// Package config loads application configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string
	BaseURL     string

	Token   TokenConfig
	Lockout LockoutConfig
	Limits  LimitConfig
	Guard   GuardConfig
	SMTP    SMTPConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	BootstrapOrgName       string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// TokenConfig configures session credential issuance.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	VerifyTTL     time.Duration
	ResetTTL      time.Duration
	InviteTTL     time.Duration
}

// LockoutConfig configures the persisted account-level lockout.
type LockoutConfig struct {
	MaxFailures int
	Cooldown    time.Duration
}

// LimitConfig configures the request rate limiters.
type LimitConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LoginLimit     int
	LoginWindow    time.Duration
	RegisterLimit  int
	RegisterWindow time.Duration
	ResetLimit     int
	ResetWindow    time.Duration

	TrustedIPs []string

	// Per-tenant budgets, selected by subscription plan.
	FreeRate     float64
	FreeBurst    int
	BasicRate    float64
	BasicBurst   int
	PremiumRate  float64
	PremiumBurst int
}

// GuardConfig configures the pre-auth request guards.
type GuardConfig struct {
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// SMTPConfig configures the outbound mail provider.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load reads configuration from the environment and a local .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "autocontrol"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		BaseURL:     strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:8080"), "/"),
		Token: TokenConfig{
			AccessSecret:  strings.TrimSpace(getenv("AUTH_ACCESS_SECRET", "")),
			RefreshSecret: strings.TrimSpace(getenv("AUTH_REFRESH_SECRET", "")),
			AccessTTL:     getenvDuration("AUTH_ACCESS_TTL", 7*24*time.Hour),
			RefreshTTL:    getenvDuration("AUTH_REFRESH_TTL", 30*24*time.Hour),
			VerifyTTL:     getenvDuration("AUTH_VERIFY_TTL", 24*time.Hour),
			ResetTTL:      getenvDuration("AUTH_RESET_TTL", time.Hour),
			InviteTTL:     getenvDuration("AUTH_INVITE_TTL", 7*24*time.Hour),
		},
		Lockout: LockoutConfig{
			MaxFailures: getenvInt("LOCKOUT_MAX_FAILURES", 10),
			Cooldown:    getenvDuration("LOCKOUT_COOLDOWN", 30*time.Minute),
		},
		Limits: LimitConfig{
			RedisAddr:      strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword:  strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:        getenvInt("RATE_LIMIT_REDIS_DB", 0),
			LoginLimit:     getenvInt("RATE_LIMIT_LOGIN", 5),
			LoginWindow:    getenvDuration("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute),
			RegisterLimit:  getenvInt("RATE_LIMIT_REGISTER", 3),
			RegisterWindow: getenvDuration("RATE_LIMIT_REGISTER_WINDOW", time.Hour),
			ResetLimit:     getenvInt("RATE_LIMIT_RESET", 3),
			ResetWindow:    getenvDuration("RATE_LIMIT_RESET_WINDOW", time.Hour),
			TrustedIPs:     getenvList("RATE_LIMIT_TRUSTED_IPS"),
			FreeRate:       getenvFloat("RATE_LIMIT_FREE_RATE", 5),
			FreeBurst:      getenvInt("RATE_LIMIT_FREE_BURST", 20),
			BasicRate:      getenvFloat("RATE_LIMIT_BASIC_RATE", 25),
			BasicBurst:     getenvInt("RATE_LIMIT_BASIC_BURST", 100),
			PremiumRate:    getenvFloat("RATE_LIMIT_PREMIUM_RATE", 100),
			PremiumBurst:   getenvInt("RATE_LIMIT_PREMIUM_BURST", 400),
		},
		Guard: GuardConfig{
			MaxBodyBytes:   int64(getenvInt("GUARD_MAX_BODY_BYTES", 1<<20)),
			AllowedOrigins: getenvList("GUARD_ALLOWED_ORIGINS"),
		},
		SMTP: SMTPConfig{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "no-reply@autocontrol.local"),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "autocontrol"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		BootstrapOrgName:       getenv("BOOTSTRAP_ORG_NAME", ""),
		BootstrapAdminEmail:    getenv("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the app runs with production hardening.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) validate() error {
	if c.IsProduction() {
		if c.Token.AccessSecret == "" || c.Token.RefreshSecret == "" {
			return errors.New("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET are required in production")
		}
		if len(c.Guard.AllowedOrigins) == 0 {
			return errors.New("GUARD_ALLOWED_ORIGINS is required in production")
		}
	}
	// A refresh token must never verify against the access secret.
	if c.Token.AccessSecret != "" && c.Token.AccessSecret == c.Token.RefreshSecret {
		return errors.New("access and refresh signing secrets must differ")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvList(key string) []string {
	parts := strings.Split(os.Getenv(key), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
