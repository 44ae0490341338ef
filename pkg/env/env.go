package env

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	AppPort        string
	TZ             string
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTTLMin   int
	RefreshTTLDays int

	RedisURL string

	MongoURI string
	DBName   string

	// Vapi voice provider
	VapiAPIKey        string
	VapiPhoneNumberID string
	VapiBaseURL       string
	VapiWebhookSecret string
	VapiTimeoutMs     int

	// SMS provider (payment link texts)
	SMSProviderURL   string
	SMSProviderToken string

	// Scheduler
	CronSecret           string
	SchedulerIntervalSec int
	SelectionBatchSize   int
	ReconcileBatchSize   int
	ReconcileAfterMin    int
	DefaultMinutesAlloc  int
	DefaultMaxAttempts   int

	APIRateLimitRPM int

	LogLevel           string
	CORSAllowedOrigins string
	AllowSelfRegister  bool

	OTELEndpoint string
	OTELEnabled  bool
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// Missing .env is fine; production supplies real environment variables.
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		AppPort:        getEnv("APP_PORT", "8080"),
		TZ:             getEnv("TZ", "America/New_York"),
		JWTSecret:      mustGetEnv("JWT_SECRET"),
		JWTIssuer:      getEnv("JWT_ISSUER", "recoverly-followup"),
		JWTAudience:    getEnv("JWT_AUDIENCE", "recoverly-api"),
		AccessTTLMin:   getEnvInt("ACCESS_TTL_MIN", 15),
		RefreshTTLDays: getEnvInt("REFRESH_TTL_DAYS", 14),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:   getEnv("DB_NAME", "recoverly"),

		VapiAPIKey:        getEnv("VAPI_API_KEY", ""),
		VapiPhoneNumberID: getEnv("VAPI_PHONE_NUMBER_ID", ""),
		VapiBaseURL:       getEnv("VAPI_BASE_URL", "https://api.vapi.ai"),
		VapiWebhookSecret: getEnv("VAPI_WEBHOOK_SECRET", ""),
		VapiTimeoutMs:     getEnvInt("VAPI_TIMEOUT_MS", 10000),

		SMSProviderURL:   getEnv("SMS_PROVIDER_URL", ""),
		SMSProviderToken: getEnv("SMS_PROVIDER_TOKEN", ""),

		CronSecret:           getEnv("CRON_SECRET", ""),
		SchedulerIntervalSec: getEnvInt("SCHEDULER_INTERVAL_SEC", 300),
		SelectionBatchSize:   getEnvInt("SELECTION_BATCH_SIZE", 5),
		ReconcileBatchSize:   getEnvInt("RECONCILE_BATCH_SIZE", 10),
		ReconcileAfterMin:    getEnvInt("RECONCILE_AFTER_MIN", 5),
		DefaultMinutesAlloc:  getEnvInt("DEFAULT_MINUTES_ALLOCATED", 100),
		DefaultMaxAttempts:   getEnvInt("DEFAULT_MAX_ATTEMPTS", 5),

		APIRateLimitRPM: getEnvInt("API_RATE_LIMIT_RPM", 180),

		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		AllowSelfRegister:  getEnvBool("ALLOW_SELF_REGISTER", true),

		OTELEndpoint: getEnv("OTEL_ENDPOINT", ""),
		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
	}

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", cfg.TZ, err)
	}
	time.Local = loc

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}
