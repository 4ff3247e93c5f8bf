package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer     string   // Issuer claim for tokens (default: spendlyzer-auth)
	Audience   []string // Audience claim for tokens (default: spendlyzer)
	TOTPIssuer string   // Issuer label shown in authenticator apps (default: Spendlyzer)

	NumKeys        int           // Optional: number of signing keys to generate (default: 3, min: 1, max: 10)
	KeyStorageMode string        // Optional: key storage mode (ephemeral, persistent) (default: ephemeral)
	KeyGracePeriod time.Duration // Optional: grace period for retired keys (default: 30 days)
	MasterKeyPath  string        // Optional: path to master encryption key file (for persistent keys)
	DatabaseFile   string        // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile     string        // Optional: path to file containing pepper for password hashing (default: ./pepper)

	AccessTokenTTL    time.Duration // Access token lifetime (default: 1h)
	ChallengeTokenTTL time.Duration // Challenge token / challenge row lifetime (default: 5m)
	CodeTTL           time.Duration // Verification code lifetime (default: 10m)
	ResendCooldown    time.Duration // Minimum gap between dispatched codes (default: 60s)
	DeviceTTL         time.Duration // Trusted device lifetime (default: 7 days)
	MaxDevices        int           // Trusted devices per account (default: 5)
	SetupCodeTTL      time.Duration // Enrollment setup code lifetime (default: 10m)

	SMTPHost     string // SMTP relay for email codes; empty disables email delivery
	SMTPPort     int    // (default: 587)
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string // From address for verification emails
	SMTPStartTLS bool   // STARTTLS instead of implicit TLS (default: true)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	cfg := Config{
		Issuer:     getEnvOrDefault("AUTH_ISSUER", "spendlyzer-auth"),
		Audience:   []string{getEnvOrDefault("AUTH_AUDIENCE", "spendlyzer")},
		TOTPIssuer: getEnvOrDefault("AUTH_TOTP_ISSUER", "Spendlyzer"),

		KeyStorageMode: getEnvOrDefault("AUTH_KEY_STORAGE_MODE", "ephemeral"),
		KeyGracePeriod: getEnvDurationOrDefault("AUTH_KEY_GRACE_PERIOD", 30*24*time.Hour),
		MasterKeyPath:  os.Getenv("AUTH_MASTER_KEY_PATH"),
		DatabaseFile:   getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:     getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		AccessTokenTTL:    getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_TTL", time.Hour),
		ChallengeTokenTTL: getEnvDurationOrDefault("AUTH_CHALLENGE_TTL", 5*time.Minute),
		CodeTTL:           getEnvDurationOrDefault("AUTH_CODE_TTL", 10*time.Minute),
		ResendCooldown:    getEnvDurationOrDefault("AUTH_RESEND_COOLDOWN", time.Minute),
		DeviceTTL:         getEnvDurationOrDefault("AUTH_DEVICE_TTL", 7*24*time.Hour),
		MaxDevices:        getEnvIntOrDefault("AUTH_MAX_DEVICES", 5),
		SetupCodeTTL:      getEnvDurationOrDefault("AUTH_SETUP_CODE_TTL", 10*time.Minute),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnvOrDefault("SMTP_FROM", "no-reply@spendlyzer.app"),
		SMTPStartTLS: getEnvBoolOrDefault("SMTP_STARTTLS", true),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	// Parse number of keys (default: 3)
	if numKeysStr := os.Getenv("AUTH_NUM_KEYS"); numKeysStr != "" {
		if numKeys, err := strconv.Atoi(numKeysStr); err == nil {
			cfg.NumKeys = numKeys
		}
		// If parsing fails, NumKeys remains 0 (will use default in KeyManager)
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
