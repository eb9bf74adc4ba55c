// SPDX-License-Identifier: MIT

// Package config loads and validates the daemon configuration.
// Precedence: environment variables > YAML file > built-in defaults.
package config

import (
	"fmt"
	"time"
)

// AppConfig is the validated runtime configuration snapshot.
type AppConfig struct {
	// HTTP
	ListenAddr   string
	RateLimitRPM int

	// Session store (Redis)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// Data store (SQLite)
	DBPath   string
	SeedPath string

	// Menu engine policy
	PageSize int
	AgeMin   int
	AgeMax   int

	// Tracking pipeline
	TrackingEnabled          bool
	TrackingDrainInterval    time.Duration
	TrackingBatchSize        int
	TrackingFailureThreshold int
	RetentionInterval        time.Duration

	// SMS provider (Celcom Africa)
	SMSBaseURL       string
	SMSAPIKey        string
	SMSPartnerID     string
	SMSShortcode     string
	SMSRatePerSecond float64
	OrganizerContact string

	// Payment provider (Cheddar)
	PaymentBaseURL string
	PaymentPaybill string

	// Tracing
	TracingEnabled  bool
	TracingExporter string
	TracingEndpoint string
	TracingSampling float64

	// Logging
	LogLevel   string
	LogService string

	Version string
}

// Load builds the configuration with precedence ENV > file > defaults.
// filePath may be empty, in which case only environment and defaults apply.
func Load(filePath, version string) (AppConfig, error) {
	fileCfg, err := loadFile(filePath)
	if err != nil {
		return AppConfig{}, fmt.Errorf("config: %w", err)
	}

	cfg := AppConfig{
		ListenAddr:   ParseString("USSD_LISTEN", fileCfg.str("listen", ":8080")),
		RateLimitRPM: ParseInt("USSD_RATE_LIMIT_RPM", fileCfg.num("rate_limit_rpm", 600)),

		RedisAddr:     ParseString("USSD_REDIS_ADDR", fileCfg.str("redis_addr", "localhost:6379")),
		RedisPassword: ParseString("USSD_REDIS_PASSWORD", fileCfg.str("redis_password", "")),
		RedisDB:       ParseInt("USSD_REDIS_DB", fileCfg.num("redis_db", 0)),
		SessionTTL:    ParseDuration("USSD_SESSION_TTL", fileCfg.dur("session_ttl", 5*time.Minute)),

		DBPath:   ParseString("USSD_DB_PATH", fileCfg.str("db_path", "data/camp.db")),
		SeedPath: ParseString("USSD_SEED_FILE", fileCfg.str("seed_file", "")),

		PageSize: ParseInt("USSD_PAGE_SIZE", fileCfg.num("page_size", 3)),
		AgeMin:   ParseInt("USSD_AGE_MIN", fileCfg.num("age_min", 5)),
		AgeMax:   ParseInt("USSD_AGE_MAX", fileCfg.num("age_max", 18)),

		TrackingEnabled:          ParseBool("USSD_TRACKING_ENABLED", true),
		TrackingDrainInterval:    ParseDuration("USSD_TRACKING_INTERVAL", fileCfg.dur("tracking_interval", 2*time.Second)),
		TrackingBatchSize:        ParseInt("USSD_TRACKING_BATCH", fileCfg.num("tracking_batch", 50)),
		TrackingFailureThreshold: ParseInt("USSD_TRACKING_FAILURE_THRESHOLD", fileCfg.num("tracking_failure_threshold", 50)),
		RetentionInterval:        ParseDuration("USSD_RETENTION_INTERVAL", fileCfg.dur("retention_interval", 24*time.Hour)),

		SMSBaseURL:       ParseString("USSD_SMS_BASE_URL", fileCfg.str("sms_base_url", "")),
		SMSAPIKey:        ParseString("USSD_SMS_API_KEY", ""),
		SMSPartnerID:     ParseString("USSD_SMS_PARTNER_ID", fileCfg.str("sms_partner_id", "")),
		SMSShortcode:     ParseString("USSD_SMS_SHORTCODE", fileCfg.str("sms_shortcode", "")),
		SMSRatePerSecond: ParseFloat("USSD_SMS_RATE", 5),
		OrganizerContact: ParseString("USSD_ORGANIZER_CONTACT", fileCfg.str("organizer_contact", "0712-345678")),

		PaymentBaseURL: ParseString("USSD_PAYMENT_BASE_URL", fileCfg.str("payment_base_url", "")),
		PaymentPaybill: ParseString("USSD_PAYMENT_PAYBILL", fileCfg.str("payment_paybill", "4953892")),

		TracingEnabled:  ParseBool("USSD_TRACING_ENABLED", false),
		TracingExporter: ParseString("USSD_TRACING_EXPORTER", fileCfg.str("tracing_exporter", "http")),
		TracingEndpoint: ParseString("USSD_TRACING_ENDPOINT", fileCfg.str("tracing_endpoint", "localhost:4318")),
		TracingSampling: ParseFloat("USSD_TRACING_SAMPLING", 1.0),

		LogLevel:   ParseString("USSD_LOG_LEVEL", fileCfg.str("log_level", "info")),
		LogService: ParseString("LOG_SERVICE", "camp-ussd"),

		Version: version,
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as runtime faults.
func (c AppConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("config: redis address must not be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: session TTL must be positive, got %s", c.SessionTTL)
	}
	if c.PageSize < 1 || c.PageSize > 5 {
		return fmt.Errorf("config: page size must be within [1,5], got %d", c.PageSize)
	}
	if c.AgeMin < 0 || c.AgeMax < c.AgeMin {
		return fmt.Errorf("config: invalid age policy [%d,%d]", c.AgeMin, c.AgeMax)
	}
	if c.TrackingBatchSize <= 0 {
		return fmt.Errorf("config: tracking batch size must be positive, got %d", c.TrackingBatchSize)
	}
	if c.TrackingDrainInterval <= 0 {
		return fmt.Errorf("config: tracking drain interval must be positive, got %s", c.TrackingDrainInterval)
	}
	return nil
}
