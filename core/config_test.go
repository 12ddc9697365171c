package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults
func TestDefaultConfig(t *testing.T) {
	t.Setenv("KUBERNETES_SERVICE_HOST", "")
	cfg := DefaultConfig()

	assert.Equal(t, DefaultProfile, cfg.Profile)
	assert.Equal(t, StorageProviderMemory, cfg.Storage.Provider)
	assert.Equal(t, DefaultNamespace, cfg.Storage.Namespace)

	assert.Equal(t, 800, cfg.Checkout.TaxRateBP)
	assert.Equal(t, int64(0), cfg.Checkout.ShippingCents)
	assert.Equal(t, 2*time.Second, cfg.Checkout.ProcessingDelay)

	assert.True(t, cfg.Realtime.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Realtime.InventoryInterval)
	assert.Equal(t, 20*time.Second, cfg.Realtime.OrderInterval)
	assert.Equal(t, 50, cfg.Realtime.BaseStock)

	assert.Equal(t, "admin@luxecommerce.com", cfg.Auth.AdminEmail)
	assert.Equal(t, "admin123", cfg.Auth.AdminPassword)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "localhost", cfg.HTTP.Address)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Telemetry.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestDetectEnvironment(t *testing.T) {
	t.Run("Kubernetes environment", func(t *testing.T) {
		t.Setenv("KUBERNETES_SERVICE_HOST", "10.0.0.1")

		cfg := DefaultConfig()

		assert.Equal(t, "0.0.0.0", cfg.HTTP.Address)
		assert.Equal(t, "json", cfg.Logging.Format)
	})

	t.Run("Local environment", func(t *testing.T) {
		t.Setenv("KUBERNETES_SERVICE_HOST", "")

		cfg := DefaultConfig()

		assert.Equal(t, "localhost", cfg.HTTP.Address)
		assert.Equal(t, "console", cfg.Logging.Format)
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STOREFRONT_STORAGE_PROVIDER", "redis")
	t.Setenv("STOREFRONT_REDIS_URL", "redis://cache:6379")
	t.Setenv("STOREFRONT_PORT", "9090")
	t.Setenv("STOREFRONT_TAX_RATE_BP", "1600")
	t.Setenv("STOREFRONT_INVENTORY_INTERVAL", "1s")
	t.Setenv("STOREFRONT_REALTIME_ENABLED", "false")
	t.Setenv("STOREFRONT_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, StorageProviderRedis, cfg.Storage.Provider)
	assert.Equal(t, "redis://cache:6379", cfg.Storage.RedisURL)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 1600, cfg.Checkout.TaxRateBP)
	assert.Equal(t, time.Second, cfg.Realtime.InventoryInterval)
	assert.False(t, cfg.Realtime.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset variables keep their defaults
	assert.Equal(t, 20*time.Second, cfg.Realtime.OrderInterval)
}

func TestLoadFromEnv_RedisURLFallback(t *testing.T) {
	t.Setenv(EnvRedisURL, "redis://fallback:6379")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "redis://fallback:6379", cfg.Storage.RedisURL)

	t.Setenv("STOREFRONT_REDIS_URL", "redis://primary:6379")
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "redis://primary:6379", cfg.Storage.RedisURL)
}

func TestLoadFromEnv_Malformed(t *testing.T) {
	t.Setenv("STOREFRONT_PORT", "not-a-number")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("YAML file", func(t *testing.T) {
		path := filepath.Join(dir, "storefront.yaml")
		content := `
storage:
  provider: sqlite
  sqlite_path: /tmp/state.db
realtime:
  inventory_interval: 5s
checkout:
  tax_rate_bp: 1000
  status_policy: linear
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(path))

		assert.Equal(t, StorageProviderSQLite, cfg.Storage.Provider)
		assert.Equal(t, "/tmp/state.db", cfg.Storage.SQLitePath)
		assert.Equal(t, 5*time.Second, cfg.Realtime.InventoryInterval)
		assert.Equal(t, 1000, cfg.Checkout.TaxRateBP)
		assert.Equal(t, "linear", cfg.Checkout.StatusPolicy)
		// Fields absent from the file are untouched
		assert.Equal(t, DefaultNamespace, cfg.Storage.Namespace)
	})

	t.Run("JSON file", func(t *testing.T) {
		path := filepath.Join(dir, "storefront.json")
		content := `{"http": {"port": 9000}, "logging": {"level": "warn"}}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(path))

		assert.Equal(t, 9000, cfg.HTTP.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.LoadFromFile(filepath.Join(dir, "storefront.toml"))
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.LoadFromFile(filepath.Join(dir, "absent.yaml"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("storage: [unclosed"), 0o600))

		cfg := DefaultConfig()
		assert.ErrorIs(t, cfg.LoadFromFile(path), ErrInvalidConfiguration)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown storage provider",
			mutate:  func(c *Config) { c.Storage.Provider = "etcd" },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name: "redis without URL",
			mutate: func(c *Config) {
				c.Storage.Provider = StorageProviderRedis
				c.Storage.RedisURL = ""
			},
			wantErr: ErrMissingConfiguration,
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Storage.Provider = StorageProviderSQLite
				c.Storage.SQLitePath = " "
			},
			wantErr: ErrMissingConfiguration,
		},
		{
			name:    "negative tax rate",
			mutate:  func(c *Config) { c.Checkout.TaxRateBP = -1 },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "tax rate above 100%",
			mutate:  func(c *Config) { c.Checkout.TaxRateBP = 10001 },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "unknown status policy",
			mutate:  func(c *Config) { c.Checkout.StatusPolicy = "strict" },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "zero ticker interval",
			mutate:  func(c *Config) { c.Realtime.OrderInterval = 0 },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name: "zero ticker interval with realtime off",
			mutate: func(c *Config) {
				c.Realtime.Enabled = false
				c.Realtime.OrderInterval = 0
			},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.HTTP.Port = 70000 },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Exporter = "otlp"
			},
			wantErr: ErrMissingConfiguration,
		},
		{
			name: "unknown exporter",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Exporter = "zipkin"
			},
			wantErr: ErrInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var storeErr *StoreError
			require.True(t, errors.As(err, &storeErr))
			assert.Equal(t, "Config.Validate", storeErr.Op)
			assert.Equal(t, "config", storeErr.Kind)
			assert.Contains(t, err.Error(), storeErr.Message)
		})
	}
}

func TestValidate_ErrorNamesSetting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Provider = StorageProviderRedis
	cfg.Storage.RedisURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis URL is required")
	assert.Contains(t, err.Error(), ErrMissingConfiguration.Error())
}

func TestFunctionalOptions(t *testing.T) {
	t.Setenv(EnvConfigFile, "")

	cfg, err := NewConfig(
		WithProfile("alice"),
		WithSQLitePath("/data/state.db"),
		WithPort(9000),
		WithLogLevel("DEBUG"),
		WithTaxRate(1600),
		WithProcessingDelay(0),
		WithStatusPolicy("linear"),
		WithRealtimeIntervals(time.Second, 2*time.Second),
		WithRealtimeSeed(42),
		WithAdminCredentials("root@example.com", "secret"),
	)
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Profile)
	assert.Equal(t, StorageProviderSQLite, cfg.Storage.Provider)
	assert.Equal(t, "/data/state.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 1600, cfg.Checkout.TaxRateBP)
	assert.Equal(t, time.Duration(0), cfg.Checkout.ProcessingDelay)
	assert.Equal(t, "linear", cfg.Checkout.StatusPolicy)
	assert.Equal(t, time.Second, cfg.Realtime.InventoryInterval)
	assert.Equal(t, int64(42), cfg.Realtime.Seed)
	assert.Equal(t, "root@example.com", cfg.Auth.AdminEmail)
}

func TestFunctionalOptions_Errors(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty profile", WithProfile("")},
		{"bad port", WithPort(0)},
		{"bad log level", WithLogLevel("verbose")},
		{"empty admin password", WithAdminCredentials("a@b.c", "")},
		{"invalid storage", WithStorageProvider("etcd")},
		{"otlp without endpoint", WithTelemetry("otlp", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfig(tt.opt)
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
		})
	}
}

// TestConfigPriority verifies options beat env beats defaults
func TestConfigPriority(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv("STOREFRONT_PORT", "9100")
	t.Setenv("STOREFRONT_LOG_LEVEL", "warn")

	cfg, err := NewConfig(WithPort(9200))
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.HTTP.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestConfigWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: 9300\nprofile: bob\n"), 0o600))

	t.Run("from env", func(t *testing.T) {
		t.Setenv(EnvConfigFile, path)

		cfg, err := NewConfig()
		require.NoError(t, err)
		assert.Equal(t, 9300, cfg.HTTP.Port)
		assert.Equal(t, "bob", cfg.Profile)
	})

	t.Run("option overrides file", func(t *testing.T) {
		t.Setenv(EnvConfigFile, "")

		cfg, err := NewConfig(WithConfigFile(path), WithPort(9400))
		require.NoError(t, err)
		assert.Equal(t, 9400, cfg.HTTP.Port)
		assert.Equal(t, "bob", cfg.Profile)
	})
}
