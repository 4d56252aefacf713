package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Providers ProvidersConfig
	Referral  ReferralConfig
	Outbox    OutboxConfig
	Rates     RatesConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// ProvidersConfig carries credentials for each payment provider plus the
// global verification order used when a payment has no recorded provider.
type ProvidersConfig struct {
	VerifyOrder []string // e.g. ["paystack", "kora", "stripe"]
	CallTimeout time.Duration

	PaystackBaseURL       string
	PaystackSecretKey     string
	KoraBaseURL           string
	KoraSecretKey         string
	KoraWebhookSecret     string
	StripeSecretKey       string
	StripeWebhookSecret   string
}

type ReferralConfig struct {
	// LinkBase is the public base URL promotional links are built from.
	LinkBase           string
	TempCredentialTTL  time.Duration
	PendingLookbackWindow time.Duration
}

type OutboxConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

type RatesConfig struct {
	File string // optional YAML rate table; built-in defaults otherwise
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", "learnly:learnly@tcp(localhost:3306)/learnly?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: getEnvDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			Issuer:       "learnly",
		},
		Providers: ProvidersConfig{
			VerifyOrder: strings.Split(getEnv("PROVIDER_VERIFY_ORDER", "paystack,kora,stripe"), ","),
			CallTimeout: getEnvDuration("PROVIDER_CALL_TIMEOUT", 30*time.Second),

			PaystackBaseURL:     getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			PaystackSecretKey:   os.Getenv("PAYSTACK_SECRET_KEY"),
			KoraBaseURL:         getEnv("KORA_BASE_URL", "https://api.korapay.com"),
			KoraSecretKey:       os.Getenv("KORA_SECRET_KEY"),
			KoraWebhookSecret:   os.Getenv("KORA_WEBHOOK_SECRET"),
			StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		Referral: ReferralConfig{
			LinkBase:              getEnv("REFERRAL_LINK_BASE", "https://learnly.io"),
			TempCredentialTTL:     getEnvDuration("TEMP_CREDENTIAL_TTL", 24*time.Hour),
			PendingLookbackWindow: getEnvDuration("PENDING_LOOKBACK_WINDOW", time.Hour),
		},
		Outbox: OutboxConfig{
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 15*time.Second),
			MaxAttempts:  getEnvInt("OUTBOX_MAX_ATTEMPTS", 5),
			RetryBackoff: getEnvDuration("OUTBOX_RETRY_BACKOFF", time.Minute),
		},
		Rates: RatesConfig{
			File: os.Getenv("RATES_FILE"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
