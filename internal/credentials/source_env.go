package credentials

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// EnvSource reads a base64-encoded service-account key from an environment
// variable. Deprecated in favor of FileSource but still accepted; a value
// that already starts with '{' is taken as raw JSON.
type EnvSource struct {
	envKey string
}

// Compile-time check to ensure EnvSource implements Source
var _ Source = (*EnvSource)(nil)

// NewEnvSource creates an EnvSource for the given environment variable.
// Returns error if the variable name is empty or not set in the environment.
func NewEnvSource(envKey string) (*EnvSource, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	if _, exists := os.LookupEnv(envKey); !exists {
		return nil, fmt.Errorf("environment variable %s not set", envKey)
	}

	return &EnvSource{
		envKey: envKey,
	}, nil
}

// Read returns the decoded key. Returns error if the variable is empty or
// the base64 payload is malformed.
func (e *EnvSource) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value := strings.TrimSpace(os.Getenv(e.envKey))
	if value == "" {
		return "", fmt.Errorf("environment variable %s is empty", e.envKey)
	}

	if strings.HasPrefix(value, "{") {
		return value, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("environment variable %s is neither raw JSON nor valid base64: %w", e.envKey, err)
	}
	return string(decoded), nil
}
