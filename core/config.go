package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the storefront.
// It supports layered configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (STOREFRONT_*)
//  3. Config file named by STOREFRONT_CONFIG
//  4. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithStorageProvider(StorageProviderSQLite),
//	    WithSQLitePath("/var/lib/storefront/state.db"),
//	    WithPort(8080),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// Profile selects the browser profile a CLI command operates on
	Profile string `json:"profile" yaml:"profile" env:"STOREFRONT_PROFILE"`

	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Checkout  CheckoutConfig  `json:"checkout" yaml:"checkout"`
	Realtime  RealtimeConfig  `json:"realtime" yaml:"realtime"`
	HTTP      HTTPConfig      `json:"http" yaml:"http"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// StorageConfig selects and configures the durable key-value backend.
type StorageConfig struct {
	Provider   string `json:"provider" yaml:"provider" env:"STOREFRONT_STORAGE_PROVIDER"`
	RedisURL   string `json:"redis_url" yaml:"redis_url" env:"STOREFRONT_REDIS_URL"`
	RedisDB    int    `json:"redis_db" yaml:"redis_db" env:"STOREFRONT_REDIS_DB"`
	Namespace  string `json:"namespace" yaml:"namespace" env:"STOREFRONT_NAMESPACE"`
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path" env:"STOREFRONT_SQLITE_PATH"`
}

// AuthConfig holds the bootstrap admin credential pair. The pair is seeded
// in plaintext the first time the user list is queried while empty.
type AuthConfig struct {
	BootstrapAdmin bool   `json:"bootstrap_admin" yaml:"bootstrap_admin" env:"STOREFRONT_BOOTSTRAP_ADMIN"`
	AdminEmail     string `json:"admin_email" yaml:"admin_email" env:"STOREFRONT_ADMIN_EMAIL"`
	AdminPassword  string `json:"admin_password" yaml:"admin_password" env:"STOREFRONT_ADMIN_PASSWORD"`
	AdminName      string `json:"admin_name" yaml:"admin_name" env:"STOREFRONT_ADMIN_NAME"`
}

// CheckoutConfig controls order totals and status handling.
type CheckoutConfig struct {
	// TaxRateBP is the tax rate in basis points (800 = 8%)
	TaxRateBP int `json:"tax_rate_bp" yaml:"tax_rate_bp" env:"STOREFRONT_TAX_RATE_BP"`
	// ShippingCents is the flat shipping charge; zero means free shipping
	ShippingCents   int64         `json:"shipping_cents" yaml:"shipping_cents" env:"STOREFRONT_SHIPPING_CENTS"`
	ProcessingDelay time.Duration `json:"processing_delay" yaml:"processing_delay" env:"STOREFRONT_PROCESSING_DELAY"`
	// StatusPolicy is "any" (free-form labels) or "linear"
	StatusPolicy string `json:"status_policy" yaml:"status_policy" env:"STOREFRONT_STATUS_POLICY"`
}

// RealtimeConfig controls the simulated inventory and order tickers.
type RealtimeConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled" env:"STOREFRONT_REALTIME_ENABLED"`
	InventoryInterval time.Duration `json:"inventory_interval" yaml:"inventory_interval" env:"STOREFRONT_INVENTORY_INTERVAL"`
	OrderInterval     time.Duration `json:"order_interval" yaml:"order_interval" env:"STOREFRONT_ORDER_INTERVAL"`
	BaseStock         int           `json:"base_stock" yaml:"base_stock" env:"STOREFRONT_BASE_STOCK"`
	// Seed fixes the random source; zero seeds from the clock
	Seed int64 `json:"seed" yaml:"seed" env:"STOREFRONT_REALTIME_SEED"`
}

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	Address          string        `json:"address" yaml:"address" env:"STOREFRONT_ADDRESS"`
	Port             int           `json:"port" yaml:"port" env:"STOREFRONT_PORT"`
	ReadTimeout      time.Duration `json:"read_timeout" yaml:"read_timeout" env:"STOREFRONT_HTTP_READ_TIMEOUT"`
	WriteTimeout     time.Duration `json:"write_timeout" yaml:"write_timeout" env:"STOREFRONT_HTTP_WRITE_TIMEOUT"`
	IdleTimeout      time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"STOREFRONT_HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout  time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"STOREFRONT_HTTP_SHUTDOWN_TIMEOUT"`
	SessionIdleLimit time.Duration `json:"session_idle_limit" yaml:"session_idle_limit" env:"STOREFRONT_SESSION_IDLE_LIMIT"`
}

// TelemetryConfig contains tracing and metrics configuration.
// Exporter is "stdout" or "otlp"; the OTLP exporter needs an endpoint.
type TelemetryConfig struct {
	Enabled         bool    `json:"enabled" yaml:"enabled" env:"STOREFRONT_TELEMETRY_ENABLED"`
	Exporter        string  `json:"exporter" yaml:"exporter" env:"STOREFRONT_TELEMETRY_EXPORTER"`
	Endpoint        string  `json:"endpoint" yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	MetricsEndpoint string  `json:"metrics_endpoint" yaml:"metrics_endpoint" env:"STOREFRONT_TELEMETRY_METRICS_ENDPOINT"`
	ServiceName     string  `json:"service_name" yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	Insecure        bool    `json:"insecure" yaml:"insecure" env:"STOREFRONT_TELEMETRY_INSECURE"`
	SampleRatio     float64 `json:"sample_ratio" yaml:"sample_ratio" env:"STOREFRONT_TELEMETRY_SAMPLE_RATIO"`
}

// LoggingConfig contains logging configuration.
// Format is "json" or "console".
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"STOREFRONT_LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"STOREFRONT_LOG_FORMAT"`
}

// Option is a functional option for configuring the storefront.
// Options are applied in order and can return an error if the value is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
// The defaults are adjusted based on the detected environment:
//   - Kubernetes: 0.0.0.0 binding, JSON logging
//   - Local: localhost binding, console logging
func DefaultConfig() *Config {
	cfg := &Config{
		Profile: DefaultProfile,
		Storage: StorageConfig{
			Provider:   StorageProviderMemory,
			RedisURL:   "redis://localhost:6379",
			RedisDB:    RedisDBStorefront,
			Namespace:  DefaultNamespace,
			SQLitePath: "storefront.db",
		},
		Auth: AuthConfig{
			BootstrapAdmin: true,
			AdminEmail:     "admin@luxecommerce.com",
			AdminPassword:  "admin123",
			AdminName:      "Admin User",
		},
		Checkout: CheckoutConfig{
			TaxRateBP:       DefaultTaxRateBP,
			ShippingCents:   0,
			ProcessingDelay: DefaultProcessingDelay,
			StatusPolicy:    StatusPolicyAny,
		},
		Realtime: RealtimeConfig{
			Enabled:           true,
			InventoryInterval: DefaultInventoryTick,
			OrderInterval:     DefaultOrderTick,
			BaseStock:         DefaultBaseStock,
		},
		HTTP: HTTPConfig{
			Port:             DefaultHTTPPort,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			ShutdownTimeout:  DefaultShutdownTimeout,
			SessionIdleLimit: DefaultSessionIdleLimit,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Exporter:    "stdout",
			ServiceName: "storefront",
			Insecure:    true,
			SampleRatio: 1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	cfg.DetectEnvironment()

	return cfg
}

// DetectEnvironment adjusts bind address and log format for Kubernetes
// versus local runs.
func (c *Config) DetectEnvironment() {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		c.HTTP.Address = "0.0.0.0"
		c.Logging.Format = "json"
	} else {
		c.HTTP.Address = "localhost"
		c.Logging.Format = "console"
	}
}

// LoadFromEnv loads configuration from environment variables.
// Only variables that are set override the current values. REDIS_URL is
// honoured as a fallback for STOREFRONT_REDIS_URL.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Storage.RedisURL = v
	}
	if err := env.Parse(c); err != nil {
		return &StoreError{
			Op:      "Config.LoadFromEnv",
			Kind:    "config",
			Message: fmt.Sprintf("parse env: %v", err),
			Err:     ErrInvalidConfiguration,
		}
	}
	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file. JSON is parsed
// with the YAML decoder too, so durations may be written as "15s" in both.
//
// Example YAML:
//
//	storage:
//	  provider: redis
//	  redis_url: redis://localhost:6379
//	realtime:
//	  inventory_interval: 15s
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- operator supplied path
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %v: %w", cleanPath, err, ErrInvalidConfiguration)
	}
	return nil
}

func configError(message string, err error) error {
	return &StoreError{
		Op:      "Config.Validate",
		Kind:    "config",
		Message: message,
		Err:     err,
	}
}

// Validate checks if the configuration is valid and returns an error if not.
//
// Validation rules:
//   - Storage provider is memory, redis or sqlite
//   - Redis URL is required for redis, a file path for sqlite
//   - Tax rate is between 0 and 10000 basis points
//   - Ticker intervals are positive when realtime is enabled
//   - Port is between 1 and 65535
//   - Telemetry endpoint is required for the otlp exporter
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case StorageProviderMemory:
	case StorageProviderRedis:
		if c.Storage.RedisURL == "" {
			return configError("redis URL is required for the redis storage provider", ErrMissingConfiguration)
		}
	case StorageProviderSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return configError("sqlite path is required for the sqlite storage provider", ErrMissingConfiguration)
		}
	default:
		return configError(fmt.Sprintf("unknown storage provider: %q", c.Storage.Provider), ErrInvalidConfiguration)
	}

	if c.Checkout.TaxRateBP < 0 || c.Checkout.TaxRateBP > 10000 {
		return configError(fmt.Sprintf("invalid tax rate: %d basis points", c.Checkout.TaxRateBP), ErrInvalidConfiguration)
	}
	if c.Checkout.ShippingCents < 0 {
		return configError("shipping charge cannot be negative", ErrInvalidConfiguration)
	}
	if c.Checkout.ProcessingDelay < 0 {
		return configError("processing delay cannot be negative", ErrInvalidConfiguration)
	}
	if p := c.Checkout.StatusPolicy; p != "" && p != StatusPolicyAny && p != StatusPolicyLinear {
		return configError(fmt.Sprintf("unknown status policy: %q", p), ErrInvalidConfiguration)
	}

	if c.Realtime.Enabled && (c.Realtime.InventoryInterval <= 0 || c.Realtime.OrderInterval <= 0) {
		return configError("realtime intervals must be positive", ErrInvalidConfiguration)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return configError(fmt.Sprintf("invalid port: %d", c.HTTP.Port), ErrInvalidConfiguration)
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "stdout":
		case "otlp":
			if c.Telemetry.Endpoint == "" {
				return configError("telemetry endpoint is required for the otlp exporter", ErrMissingConfiguration)
			}
		default:
			return configError(fmt.Sprintf("unknown telemetry exporter: %q", c.Telemetry.Exporter), ErrInvalidConfiguration)
		}
	}

	return nil
}

// Functional Options

// WithProfile sets the profile CLI commands operate on.
func WithProfile(profile string) Option {
	return func(c *Config) error {
		if strings.TrimSpace(profile) == "" {
			return fmt.Errorf("profile cannot be empty: %w", ErrInvalidConfiguration)
		}
		c.Profile = profile
		return nil
	}
}

// WithStorageProvider selects the storage backend.
func WithStorageProvider(provider string) Option {
	return func(c *Config) error {
		c.Storage.Provider = provider
		return nil
	}
}

// WithRedisURL sets the Redis connection URL and selects the redis backend.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Storage.Provider = StorageProviderRedis
		c.Storage.RedisURL = url
		return nil
	}
}

// WithSQLitePath sets the database file and selects the sqlite backend.
func WithSQLitePath(path string) Option {
	return func(c *Config) error {
		c.Storage.Provider = StorageProviderSQLite
		c.Storage.SQLitePath = path
		return nil
	}
}

// WithNamespace sets the storage key namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) error {
		c.Storage.Namespace = namespace
		return nil
	}
}

// WithPort sets the HTTP server port.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 1 || port > 65535 {
			return &StoreError{
				Op:      "WithPort",
				Kind:    "config",
				Message: fmt.Sprintf("invalid port: %d", port),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.HTTP.Port = port
		return nil
	}
}

// WithAddress sets the HTTP bind address.
func WithAddress(address string) Option {
	return func(c *Config) error {
		c.HTTP.Address = address
		return nil
	}
}

// WithLogLevel sets the logging level (debug, info, warn, error).
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			c.Logging.Level = strings.ToLower(level)
			return nil
		}
		return fmt.Errorf("unknown log level %q: %w", level, ErrInvalidConfiguration)
	}
}

// WithLogFormat sets the log encoding (json or console).
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithTaxRate sets the tax rate in basis points.
func WithTaxRate(basisPoints int) Option {
	return func(c *Config) error {
		c.Checkout.TaxRateBP = basisPoints
		return nil
	}
}

// WithProcessingDelay sets the artificial checkout latency.
func WithProcessingDelay(d time.Duration) Option {
	return func(c *Config) error {
		c.Checkout.ProcessingDelay = d
		return nil
	}
}

// WithStatusPolicy selects "any" or "linear" order status transitions.
func WithStatusPolicy(policy string) Option {
	return func(c *Config) error {
		c.Checkout.StatusPolicy = policy
		return nil
	}
}

// WithRealtime enables or disables the simulated tickers.
func WithRealtime(enabled bool) Option {
	return func(c *Config) error {
		c.Realtime.Enabled = enabled
		return nil
	}
}

// WithRealtimeIntervals sets the inventory and order ticker periods.
func WithRealtimeIntervals(inventory, orders time.Duration) Option {
	return func(c *Config) error {
		c.Realtime.InventoryInterval = inventory
		c.Realtime.OrderInterval = orders
		return nil
	}
}

// WithRealtimeSeed fixes the simulated tickers' random source.
func WithRealtimeSeed(seed int64) Option {
	return func(c *Config) error {
		c.Realtime.Seed = seed
		return nil
	}
}

// WithAdminCredentials overrides the bootstrap admin credential pair.
func WithAdminCredentials(email, password string) Option {
	return func(c *Config) error {
		if email == "" || password == "" {
			return fmt.Errorf("admin email and password are required: %w", ErrInvalidConfiguration)
		}
		c.Auth.AdminEmail = email
		c.Auth.AdminPassword = password
		return nil
	}
}

// WithTelemetry enables tracing with the given exporter and endpoint.
func WithTelemetry(exporter, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Exporter = exporter
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

// WithConfigFile loads configuration from a file at its position in the
// option list, so later options can override file settings.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied in the following order:
//  1. Default values from DefaultConfig()
//  2. Environment variables via LoadFromEnv()
//  3. The file named by STOREFRONT_CONFIG, when set
//  4. Functional options (highest priority)
//  5. Validation via Validate()
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
