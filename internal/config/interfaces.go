package config

import "context"

// SecretProvider resolves secret values by key. SSMProvider serves deployed
// environments and EnvVarProvider serves local runs.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext for every key it could
	// resolve. Implementations batch internally.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
