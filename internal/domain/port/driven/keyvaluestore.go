package driven

import "context"

// KeyValueStore defines the driven port for per-document string persistence.
// Every adapter scopes its keys to a single document.
type KeyValueStore interface {
	// Get returns the value for key. Returns ("", false, nil) if the key does not exist.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores or replaces the value for key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every key/value pair whose key starts with prefix.
	List(ctx context.Context, prefix string) (map[string]string, error)
}
