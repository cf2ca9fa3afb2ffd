// Package config loads and validates the membership service configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the UMS_ prefix (e.g., UMS_DATABASE_HOST
// overrides database.host in the YAML). This layering allows the same binary to
// run with a config.yaml in local development and with pure environment variables
// in containerized deployments without recompilation or different binaries.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Verification  VerificationConfig  `mapstructure:"verification"`
	Membership    MembershipConfig    `mapstructure:"membership"`
	Security      SecurityConfig      `mapstructure:"security"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	FrontendURL  string        `mapstructure:"frontend_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// StorageConfig holds evidence storage configuration
type StorageConfig struct {
	DefaultBackend string             `mapstructure:"default_backend"`
	Local          LocalStorageConfig `mapstructure:"local"`
}

// LocalStorageConfig holds local filesystem storage configuration
type LocalStorageConfig struct {
	BasePath      string `mapstructure:"base_path"`
	ServeDirectly bool   `mapstructure:"serve_directly"`
}

// AuthConfig holds admin session authentication configuration
type AuthConfig struct {
	// SessionSecret signs admin session JWTs (HS256)
	SessionSecret string `mapstructure:"session_secret"`
	// SessionTTL is how long an admin session token stays valid
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// VerificationConfig holds employment verification configuration
type VerificationConfig struct {
	// TokenSecret signs member verification tokens (HS256)
	TokenSecret string `mapstructure:"token_secret"`
	// TokenTTL is the verification token lifetime (default 168h = 7 days)
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// CronSecret is the bearer token required on GET /cron/* trigger endpoints
	CronSecret string `mapstructure:"cron_secret"`
	// ReminderThreshold is how long a member may sit pending before a reminder (default 24h)
	ReminderThreshold time.Duration `mapstructure:"reminder_threshold"`
	// ReminderInterval is how often the reminder job fires (default 1h)
	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
	// ScanInterval is how often the mailbox scanner fires (default 5m)
	ScanInterval time.Duration `mapstructure:"scan_interval"`
	// Mailbox holds the IMAP account watched for verification replies
	Mailbox MailboxConfig `mapstructure:"mailbox"`
}

// MailboxConfig holds IMAP settings for the verification inbox
type MailboxConfig struct {
	// Enabled toggles mailbox scanning (ticker and cron endpoint both)
	Enabled bool `mapstructure:"enabled"`
	// Host is the IMAP server hostname (e.g. imap.gmail.com)
	Host string `mapstructure:"host"`
	// Port is the IMAPS port (default 993)
	Port int `mapstructure:"port"`
	// Username for IMAP authentication
	Username string `mapstructure:"username"`
	// Password for IMAP authentication (app password for Gmail)
	Password string `mapstructure:"password"`
	// Folder is the mailbox folder to scan (default INBOX)
	Folder string `mapstructure:"folder"`
}

// MembershipConfig holds membership number derivation settings
type MembershipConfig struct {
	// NumberPrefix is prepended to the zero-padded sequence (default SIN-AT)
	NumberPrefix string `mapstructure:"number_prefix"`
	// NumberWidth is the zero-pad width of the numeric suffix (default 4)
	NumberWidth int `mapstructure:"number_width"`
	// NumberExceptions maps quicklook IDs to hand-assigned member numbers
	// that predate automatic derivation
	NumberExceptions map[string]string `mapstructure:"number_exceptions"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitingConfig holds rate limiting configuration.
// The intake settings apply a stricter bucket to the public application
// endpoint than the general per-client limit.
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	IntakePerMinute   int  `mapstructure:"intake_per_minute"`
	IntakeBurst       int  `mapstructure:"intake_burst"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled     bool            `mapstructure:"enabled"`
	ServiceName string          `mapstructure:"service_name"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Profiling   ProfilingConfig `mapstructure:"profiling"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// ProfilingConfig holds profiling configuration
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// NotificationsConfig holds settings for outbound notification emails
type NotificationsConfig struct {
	// Enabled globally toggles all outbound notification emails. Requires SMTP to be configured.
	Enabled bool `mapstructure:"enabled"`
	// SMTP holds the outbound mail server settings
	SMTP SMTPConfig `mapstructure:"smtp"`
	// OfficeEmail receives new-application notices and approval BCC copies
	OfficeEmail string `mapstructure:"office_email"`
	// BulkSendDelay is the fixed pause between consecutive bulk messages (default 625ms)
	BulkSendDelay time.Duration `mapstructure:"bulk_send_delay"`
}

// SMTPConfig holds outbound mail server configuration for notification emails
type SMTPConfig struct {
	// Host is the SMTP server hostname (e.g. smtp.gmail.com)
	Host string `mapstructure:"host"`
	// Port is the SMTP server port (587 for STARTTLS, 465 for SMTPS, 25 for plain)
	Port int `mapstructure:"port"`
	// Username for SMTP authentication
	Username string `mapstructure:"username"`
	// Password for SMTP authentication
	Password string `mapstructure:"password"`
	// From is the sender address shown in notification emails
	From string `mapstructure:"from"`
	// UseTLS enables STARTTLS (port 587) or implicit TLS (port 465); false = plain SMTP
	UseTLS bool `mapstructure:"use_tls"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested structs during Unmarshal.
// viper.BindEnv only errors when called with zero keys; since every key here is a non-empty
// hardcoded string, any error indicates a programming bug and is surfaced to the caller.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.frontend_url",
		"server.read_timeout",
		"server.write_timeout",

		// Storage
		"storage.default_backend",
		"storage.local.base_path",
		"storage.local.serve_directly",

		// Auth
		"auth.session_secret",
		"auth.session_ttl",

		// Verification
		"verification.token_secret",
		"verification.token_ttl",
		"verification.cron_secret",
		"verification.reminder_threshold",
		"verification.reminder_interval",
		"verification.scan_interval",
		"verification.mailbox.enabled",
		"verification.mailbox.host",
		"verification.mailbox.port",
		"verification.mailbox.username",
		"verification.mailbox.password",
		"verification.mailbox.folder",

		// Membership
		"membership.number_prefix",
		"membership.number_width",

		// Security
		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.intake_per_minute",
		"security.rate_limiting.intake_burst",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Logging
		"logging.level",
		"logging.format",
		"logging.output",

		// Telemetry
		"telemetry.enabled",
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",
		"telemetry.profiling.enabled",
		"telemetry.profiling.port",

		// Notifications / SMTP
		"notifications.enabled",
		"notifications.smtp.host",
		"notifications.smtp.port",
		"notifications.smtp.username",
		"notifications.smtp.password",
		"notifications.smtp.from",
		"notifications.smtp.use_tls",
		"notifications.office_email",
		"notifications.bulk_send_delay",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file path if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config.yaml in common locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/membership-backend")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	// Enable environment variable support
	v.SetEnvPrefix("UMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind environment variables for nested structures
	// This is necessary because AutomaticEnv() doesn't work well with Unmarshal()
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	// Unmarshal configuration
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Auth.SessionSecret = expandEnv(cfg.Auth.SessionSecret)
	cfg.Verification.TokenSecret = expandEnv(cfg.Verification.TokenSecret)
	cfg.Verification.CronSecret = expandEnv(cfg.Verification.CronSecret)
	cfg.Verification.Mailbox.Password = expandEnv(cfg.Verification.Mailbox.Password)
	cfg.Notifications.SMTP.Password = expandEnv(cfg.Notifications.SMTP.Password)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "membership")
	v.SetDefault("database.user", "membership")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Storage defaults
	v.SetDefault("storage.default_backend", "local")
	v.SetDefault("storage.local.base_path", "./storage")
	v.SetDefault("storage.local.serve_directly", false)

	// Auth defaults
	v.SetDefault("auth.session_ttl", "12h")

	// Verification defaults
	v.SetDefault("verification.token_ttl", "168h")
	v.SetDefault("verification.reminder_threshold", "24h")
	v.SetDefault("verification.reminder_interval", "1h")
	v.SetDefault("verification.scan_interval", "5m")
	v.SetDefault("verification.mailbox.enabled", false)
	v.SetDefault("verification.mailbox.port", 993)
	v.SetDefault("verification.mailbox.folder", "INBOX")

	// Membership defaults
	v.SetDefault("membership.number_prefix", "SIN-AT")
	v.SetDefault("membership.number_width", 4)

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 60)
	v.SetDefault("security.rate_limiting.burst", 10)
	v.SetDefault("security.rate_limiting.intake_per_minute", 5)
	v.SetDefault("security.rate_limiting.intake_burst", 3)
	v.SetDefault("security.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "membership-backend")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.port", 6060)

	// Notifications defaults
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.smtp.port", 587)
	v.SetDefault("notifications.smtp.use_tls", true)
	v.SetDefault("notifications.bulk_send_delay", "625ms")
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}

	// Validate database
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	// Validate storage backend
	if c.Storage.DefaultBackend != "local" {
		return fmt.Errorf("invalid storage backend: %s (must be local)", c.Storage.DefaultBackend)
	}
	if c.Storage.Local.BasePath == "" {
		return fmt.Errorf("storage.local.base_path is required")
	}

	// Validate secrets
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("auth.session_secret is required")
	}
	if c.Verification.TokenSecret == "" {
		return fmt.Errorf("verification.token_secret is required")
	}
	if c.Verification.TokenTTL <= 0 {
		return fmt.Errorf("verification.token_ttl must be positive")
	}
	if c.Verification.ReminderThreshold <= 0 {
		return fmt.Errorf("verification.reminder_threshold must be positive")
	}

	// Validate mailbox if enabled
	if c.Verification.Mailbox.Enabled {
		if c.Verification.Mailbox.Host == "" {
			return fmt.Errorf("verification.mailbox.host is required when mailbox scanning is enabled")
		}
		if c.Verification.Mailbox.Username == "" {
			return fmt.Errorf("verification.mailbox.username is required when mailbox scanning is enabled")
		}
		if c.Verification.Mailbox.Password == "" {
			return fmt.Errorf("verification.mailbox.password is required when mailbox scanning is enabled")
		}
	}

	// Validate membership numbering
	if c.Membership.NumberPrefix == "" {
		return fmt.Errorf("membership.number_prefix is required")
	}
	if c.Membership.NumberWidth < 1 {
		return fmt.Errorf("membership.number_width must be at least 1")
	}

	// Validate notifications if enabled
	if c.Notifications.Enabled {
		if c.Notifications.SMTP.Host == "" {
			return fmt.Errorf("notifications.smtp.host is required when notifications are enabled")
		}
		if c.Notifications.SMTP.From == "" {
			return fmt.Errorf("notifications.smtp.from is required when notifications are enabled")
		}
		if c.Notifications.BulkSendDelay <= 0 {
			return fmt.Errorf("notifications.bulk_send_delay must be positive")
		}
	}

	// Validate TLS if enabled
	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetIMAPAddress returns the IMAP server address in host:port format
func (c *MailboxConfig) GetIMAPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
