package core

import "time"

// Storage keys. Each key holds one JSON blob, written whole on every
// mutation of the owning store.
const (
	StorageKeyCart          = "luxe_commerce_cart"
	StorageKeyUsers         = "ecommerce_users"
	StorageKeyPasswords     = "ecommerce_passwords"
	StorageKeyCurrentUser   = "ecommerce_current_user"
	StorageKeyOrders        = "luxe_commerce_orders"
	StorageKeyNotifications = "notifications"
)

// Storage providers
const (
	StorageProviderMemory = "memory"
	StorageProviderRedis  = "redis"
	StorageProviderSQLite = "sqlite"
)

// Order status policies
const (
	StatusPolicyAny    = "any"
	StatusPolicyLinear = "linear"
)

// Environment Variables
const (
	EnvPrefix     = "STOREFRONT_"
	EnvRedisURL   = "REDIS_URL"
	EnvConfigFile = "STOREFRONT_CONFIG"
)

// Defaults
const (
	DefaultProfile          = "default"
	DefaultNamespace        = "storefront"
	DefaultTaxRateBP        = 800 // 8%
	DefaultProcessingDelay  = 2 * time.Second
	DefaultInventoryTick    = 15 * time.Second
	DefaultOrderTick        = 20 * time.Second
	DefaultBaseStock        = 50
	DefaultHTTPPort         = 8080
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultSessionIdleLimit = 30 * time.Minute
)
