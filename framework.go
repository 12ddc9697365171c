// Package storefront is the state model of the Luxe Commerce storefront.
//
// A Session bundles the stores of one browser profile (cart, account,
// orders, notifications) over durable key-value storage, and runs the
// simulated inventory and order activity. A Manager keeps one session per
// profile for servers. The stores themselves live in sub-packages:
//   - github.com/luxecommerce/storefront/core - contracts, config, storage backends
//   - github.com/luxecommerce/storefront/pkg/cart, pkg/auth, pkg/orders, pkg/notifications
//   - github.com/luxecommerce/storefront/pkg/realtime - scheduler and simulations
package storefront

import (
	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/orders"
)

// Re-export core types so callers configuring a session need one import.
type (
	// Configuration types
	Config          = core.Config
	Option          = core.Option
	StorageConfig   = core.StorageConfig
	AuthConfig      = core.AuthConfig
	CheckoutConfig  = core.CheckoutConfig
	RealtimeConfig  = core.RealtimeConfig
	HTTPConfig      = core.HTTPConfig
	TelemetryConfig = core.TelemetryConfig
	LoggingConfig   = core.LoggingConfig

	// Interfaces
	Logger         = core.Logger
	Memory         = core.Memory
	Telemetry      = core.Telemetry
	StorageBackend = core.StorageBackend

	// Order forms
	ShippingInfo = orders.ShippingInfo
	PaymentInfo  = orders.PaymentInfo
)

// Re-export core functions
var (
	NewConfig     = core.NewConfig
	DefaultConfig = core.DefaultConfig
	NewMemory     = core.NewMemory

	// Configuration options
	WithProfile           = core.WithProfile
	WithStorageProvider   = core.WithStorageProvider
	WithRedisURL          = core.WithRedisURL
	WithSQLitePath        = core.WithSQLitePath
	WithNamespace         = core.WithNamespace
	WithPort              = core.WithPort
	WithAddress           = core.WithAddress
	WithLogLevel          = core.WithLogLevel
	WithLogFormat         = core.WithLogFormat
	WithTaxRate           = core.WithTaxRate
	WithProcessingDelay   = core.WithProcessingDelay
	WithStatusPolicy      = core.WithStatusPolicy
	WithRealtime          = core.WithRealtime
	WithRealtimeIntervals = core.WithRealtimeIntervals
	WithRealtimeSeed      = core.WithRealtimeSeed
	WithAdminCredentials  = core.WithAdminCredentials
	WithTelemetry         = core.WithTelemetry
	WithConfigFile        = core.WithConfigFile
)
