package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// Config holds all configuration for orgpulse.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional analytics cache)
	Redis RedisConfig `yaml:"redis"`

	// Data-quality reconciliation settings
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`

	// Employee discovery settings
	Discovery DiscoveryConfig `yaml:"discovery"`

	// ReferenceDataPath points to a YAML file with default departments and locations.
	ReferenceDataPath string `yaml:"reference_data_path" env:"REFERENCE_DATA_PATH" env-default:""`

	// Credential encryption key for source connection secrets and anonymization.
	// Must be a 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	// Server will fail to start if this is not set.
	ProjectCredentialsKey string `yaml:"-" env:"PROJECT_CREDENTIALS_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"orgpulse"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"orgpulse"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration. An empty host disables caching.
type RedisConfig struct {
	Host     string        `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int           `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"5m"`
}

// ReconciliationConfig holds data-quality workflow settings.
type ReconciliationConfig struct {
	// RequiredFieldsStr is a comma-separated list of attributes a record needs
	// before a missing-data issue clears.
	RequiredFieldsStr string `yaml:"required_fields" env:"RECONCILIATION_REQUIRED_FIELDS" env-default:"department,position"`
	// RequiredFields is parsed from RequiredFieldsStr (not from config file).
	RequiredFields []string `yaml:"-"`
	// DefaultFillValue is written into absent required attributes by fix-all.
	DefaultFillValue string `yaml:"default_fill_value" env:"RECONCILIATION_DEFAULT_FILL" env-default:"Not Specified"`
	// BulkDelayMs simulates latency around each bulk batch.
	BulkDelayMs int `yaml:"bulk_delay_ms" env:"RECONCILIATION_BULK_DELAY_MS" env-default:"0"`
	// BulkTimeoutSeconds bounds a bulk batch; a timed out batch commits nothing.
	BulkTimeoutSeconds int `yaml:"bulk_timeout_seconds" env:"RECONCILIATION_BULK_TIMEOUT_SECONDS" env-default:"30"`
}

// BulkDelay returns the configured simulated latency.
func (c *ReconciliationConfig) BulkDelay() time.Duration {
	return time.Duration(c.BulkDelayMs) * time.Millisecond
}

// BulkTimeout returns the configured bulk timeout.
func (c *ReconciliationConfig) BulkTimeout() time.Duration {
	return time.Duration(c.BulkTimeoutSeconds) * time.Second
}

// DiscoveryConfig holds employee discovery settings.
type DiscoveryConfig struct {
	// CSVEncoding is the default encoding of uploaded CSV directory exports
	// ("utf-8", "utf-16", "windows-1252").
	CSVEncoding string `yaml:"csv_encoding" env:"DISCOVERY_CSV_ENCODING" env-default:"utf-8"`
	// SourcesTimeoutSeconds bounds a discovery run across all connections.
	SourcesTimeoutSeconds int `yaml:"sources_timeout_seconds" env:"DISCOVERY_SOURCES_TIMEOUT_SECONDS" env-default:"60"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Environment variables override YAML values. Secrets (PGPASSWORD,
// PROJECT_CREDENTIALS_KEY) must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit config path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Load config from YAML file with environment variable overrides
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// Parse complex fields
	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	// Validate TLS configuration
	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	fields, err := ParseRequiredFields(c.Reconciliation.RequiredFieldsStr)
	if err != nil {
		return err
	}
	c.Reconciliation.RequiredFields = fields

	if c.Reconciliation.BulkDelayMs < 0 {
		return fmt.Errorf("reconciliation.bulk_delay_ms must not be negative")
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	// Both must be provided together or both empty
	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// If both provided, verify files exist (actual readability checked by tls.LoadX509KeyPair at startup)
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// ParseRequiredFields parses a comma-separated list of required attributes,
// lower-casing and de-duplicating names. An empty value yields the defaults.
// Format: "department,position"
func ParseRequiredFields(value string) ([]string, error) {
	if strings.TrimSpace(value) == "" {
		return append([]string(nil), models.DefaultRequiredFields...), nil
	}

	var fields []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(value, ",") {
		field := strings.ToLower(strings.TrimSpace(part))
		if field == "" || seen[field] {
			continue
		}
		if !models.IsKnownField(field) {
			return nil, fmt.Errorf("unknown required field %q", field)
		}
		if !models.CanDefaultFill(field) {
			return nil, fmt.Errorf("required field %q cannot be default-filled by fix_all", field)
		}
		seen[field] = true
		fields = append(fields, field)
	}
	return fields, nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the PostgreSQL connection URL used by the migration driver.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port),
		Path:     c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}
