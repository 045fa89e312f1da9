package model

// Key-value store keys owned by the core.
const (
	KeyCredentials    = "zotoks_credentials"
	KeyCachedToken    = "zotoks_cached_token"
	KeyMappingsPrefix = "zotoks_mappings_"
)
