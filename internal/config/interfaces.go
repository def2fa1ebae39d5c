package config

import "context"

// SecretProvider abstracts secret retrieval to support both AWS SSM Parameter
// Store (production) and plain environment variables (local development).
type SecretProvider interface {
	// GetParametersBatch resolves multiple secret identifiers, batching
	// internally to stay under API limits. It returns a map of key ->
	// plaintext value for every identifier it could resolve; missing keys
	// are omitted, not errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
