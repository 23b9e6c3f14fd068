package envutil

import "os"

// Prefix is prepended when the bare key is not set.
const Prefix = "EVENTCHAT_"

// Get retrieves an environment variable with automatic EVENTCHAT_ prefix fallback.
// Lookup order is the exact key, then the prefixed key, then fallback.
func Get(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	if len(key) < len(Prefix) || key[:len(Prefix)] != Prefix {
		if value, exists := os.LookupEnv(Prefix + key); exists {
			return value
		}
	}

	return fallback
}
