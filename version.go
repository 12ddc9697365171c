package storefront

// Version information for the storefront
var (
	// Version is the current release, set at build time with -ldflags
	Version = "development"

	// APIVersion is the version of the HTTP JSON API
	APIVersion = "v1"

	// BuildDate is set during build time
	BuildDate = "development"

	// GitCommit is set during build time
	GitCommit = "unknown"
)
