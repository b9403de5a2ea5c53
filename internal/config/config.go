package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	Sending     SendingConfig     `yaml:"sending"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	SES         SESConfig         `yaml:"ses"`
	ContactList ContactListConfig `yaml:"contact_list"`
	Reports     ReportsConfig     `yaml:"reports"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// RedisConfig holds Redis settings. An empty Addr disables Redis and the
// send lock falls back to Postgres advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TrackingConfig holds public tracking endpoint settings
type TrackingConfig struct {
	BaseURL           string `yaml:"base_url"`
	ConfirmationURL   string `yaml:"confirmation_url"`
	DefaultLandingURL string `yaml:"default_landing_url"`
	// SQSQueueURL switches tracking writes to queued mode when set.
	SQSQueueURL string `yaml:"sqs_queue_url"`
}

// SendingConfig holds orchestrator tunables
type SendingConfig struct {
	BatchSize      int     `yaml:"batch_size"`
	Concurrency    int     `yaml:"concurrency"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	LockTTLSeconds int     `yaml:"lock_ttl_seconds"`
}

// Timeout returns the per-recipient transport timeout as a duration
func (c SendingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LockTTL returns the send lock TTL as a duration
func (c SendingConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// SchedulerConfig holds the due-campaign scan settings
type SchedulerConfig struct {
	IntervalSeconds   int `yaml:"interval_seconds"`
	StaleAfterMinutes int `yaml:"stale_after_minutes"`
}

// Interval returns the scan interval as a duration
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// StaleAfter returns how long a campaign may sit in sending before it is resumed
func (c SchedulerConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
	FromEmail        string `yaml:"from_email"`
	FromName         string `yaml:"from_name"`
}

// ContactListConfig holds the external contact-list provider configuration
type ContactListConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	PageSize       int    `yaml:"page_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c ContactListConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ReportsConfig holds analytics export settings
type ReportsConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
	Prefix   string `yaml:"prefix"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact returns whether PII redaction is on (default true)
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for binaries
// started without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = "http://localhost:8080"
	}
	if cfg.Tracking.ConfirmationURL == "" {
		cfg.Tracking.ConfirmationURL = cfg.Tracking.BaseURL + "/unsubscribed"
	}
	if cfg.Tracking.DefaultLandingURL == "" {
		cfg.Tracking.DefaultLandingURL = cfg.Tracking.BaseURL
	}
	if cfg.Sending.BatchSize == 0 {
		cfg.Sending.BatchSize = 50
	}
	if cfg.Sending.Concurrency == 0 {
		cfg.Sending.Concurrency = 10
	}
	if cfg.Sending.TimeoutSeconds == 0 {
		cfg.Sending.TimeoutSeconds = 30
	}
	if cfg.Sending.LockTTLSeconds == 0 {
		cfg.Sending.LockTTLSeconds = 600
	}
	if cfg.Scheduler.IntervalSeconds == 0 {
		cfg.Scheduler.IntervalSeconds = 60
	}
	if cfg.Scheduler.StaleAfterMinutes == 0 {
		cfg.Scheduler.StaleAfterMinutes = 15
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.ContactList.PageSize == 0 {
		cfg.ContactList.PageSize = 500
	}
	if cfg.ContactList.TimeoutSeconds == 0 {
		cfg.ContactList.TimeoutSeconds = 60
	}
	if cfg.ContactList.MaxRetries == 0 {
		cfg.ContactList.MaxRetries = 3
	}
	if cfg.Reports.Prefix == "" {
		cfg.Reports.Prefix = "campaign-analytics"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
// An empty path skips the YAML file and starts from defaults.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACKING_CONFIRMATION_URL"); v != "" {
		cfg.Tracking.ConfirmationURL = v
	}
	if v := os.Getenv("SQS_TRACKING_QUEUE_URL"); v != "" {
		cfg.Tracking.SQSQueueURL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("CONTACT_LIST_BASE_URL"); v != "" {
		cfg.ContactList.BaseURL = v
		cfg.ContactList.Enabled = true
	}
	if v := os.Getenv("CONTACT_LIST_API_KEY"); v != "" {
		cfg.ContactList.APIKey = v
	}
	if v := os.Getenv("REPORTS_S3_BUCKET"); v != "" {
		cfg.Reports.S3Bucket = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}
