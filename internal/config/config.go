package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultSMTPPort is used for delivery when SMTP_PORT is unset
	DefaultSMTPPort = 587
	// DefaultSMTPTimeout bounds a single delivery attempt
	DefaultSMTPTimeout = 30 * time.Second
	// DefaultFromName is the display name used on relayed mail
	DefaultFromName = "Website"

	// RateLimitStoreMemory keeps contact rate-limit state in process memory
	RateLimitStoreMemory = "memory"
	// RateLimitStoreRedis keeps contact rate-limit state in Redis
	RateLimitStoreRedis = "redis"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	FrontendURL     string
	EnableHSTS      bool
	ServerDebugMode bool
	WorkerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
	OTELInsecure    bool
	OTELSampleRatio float64
	MetricsEnabled  bool
	OpenAPIPath     string
	ContactAPIURL   string

	RedisURL        string
	RateLimitStore  string
	GlobalRateLimit string

	RabbitMQURL      string
	RabbitMQPrefetch int

	Mail MailConfig
}

// MailConfig holds the mail-transport settings. Raw* fields record whether the
// variable was present at all, which the health probe reports separately from
// the defaulted values used for delivery.
type MailConfig struct {
	Host     string
	Port     int
	RawPort  string
	User     string
	Password string
	To       string
	ToBackup string
	From     string
	FromName string
	Timeout  time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:4321"),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:     getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		OTELSampleRatio:  getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		OpenAPIPath:      getEnv("OPENAPI_PATH", ""),
		ContactAPIURL:    getEnv("CONTACT_API_URL", "http://localhost:8080"),
		RedisURL:         getEnv("REDIS_URL", ""),
		RateLimitStore:   strings.ToLower(getEnv("CONTACT_RATELIMIT_STORE", RateLimitStoreMemory)),
		GlobalRateLimit:  getEnv("GLOBAL_RATE_LIMIT", "60-M"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		Mail:             LoadMail(),
	}

	switch cfg.RateLimitStore {
	case RateLimitStoreMemory:
	case RateLimitStoreRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when CONTACT_RATELIMIT_STORE=redis")
		}
	default:
		return nil, fmt.Errorf("invalid CONTACT_RATELIMIT_STORE %q (must be 'memory' or 'redis')", cfg.RateLimitStore)
	}

	return cfg, nil
}

// LoadMail reads the mail-transport settings. It never fails: absent values are
// reported by MissingKeys and Ready instead.
func LoadMail() MailConfig {
	user := getEnvTrimmed("SMTP_USER", "")
	rawPort := getEnvTrimmed("SMTP_PORT", "")
	port := DefaultSMTPPort
	if rawPort != "" {
		// an unparsable port leaves Port at zero so Ready reports it
		port, _ = strconv.Atoi(rawPort)
	}
	return MailConfig{
		Host:     getEnvTrimmed("SMTP_HOST", ""),
		Port:     port,
		RawPort:  rawPort,
		User:     user,
		Password: getEnvTrimmed("SMTP_PASS", ""),
		To:       getEnvTrimmed("CONTACT_TO", user),
		ToBackup: getEnvTrimmed("CONTACT_TO_BACKUP", ""),
		From:     getEnvTrimmed("CONTACT_FROM", user),
		FromName: getEnvTrimmed("CONTACT_FROM_NAME", DefaultFromName),
		Timeout:  getEnvDuration("SMTP_TIMEOUT", DefaultSMTPTimeout),
	}
}

// MissingKeys lists the required SMTP variables that are not set. This is the
// operator-facing view used by the health probe.
func (m MailConfig) MissingKeys() []string {
	missing := []string{}
	if m.Host == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if m.RawPort == "" {
		missing = append(missing, "SMTP_PORT")
	}
	if m.User == "" {
		missing = append(missing, "SMTP_USER")
	}
	if m.Password == "" {
		missing = append(missing, "SMTP_PASS")
	}
	return missing
}

// Ready reports whether everything needed to relay a submission is present,
// returning the names of the absent settings otherwise.
func (m MailConfig) Ready() (bool, []string) {
	var absent []string
	if m.Host == "" {
		absent = append(absent, "host")
	}
	if m.Port <= 0 {
		absent = append(absent, "port")
	}
	if m.User == "" {
		absent = append(absent, "user")
	}
	if m.Password == "" {
		absent = append(absent, "password")
	}
	if m.To == "" {
		absent = append(absent, "to")
	}
	if m.From == "" {
		absent = append(absent, "from")
	}
	return len(absent) == 0, absent
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvTrimmed(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
