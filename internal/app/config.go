package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os/user"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/corvidlabs/vertexpass/internal/classify"
	"github.com/corvidlabs/vertexpass/internal/credentials"
	"github.com/corvidlabs/vertexpass/internal/upstream"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// CredentialSourceType represents the different storage types supported for
// the upstream service-account key.
type CredentialSourceType string

const (
	CredentialSourceFile    CredentialSourceType = "file"
	CredentialSourceInline  CredentialSourceType = "inline"
	CredentialSourceEnv     CredentialSourceType = "env"
	CredentialSourceKeyring CredentialSourceType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat        = LogFormatText
	DefaultConfigServerHost       = "127.0.0.1"
	DefaultConfigServerPort       = 8000
	DefaultConfigShutdownTimeout  = 5 * time.Second
	DefaultConfigCredentialSource = CredentialSourceFile
	DefaultConfigTransmissionMode = classify.ModeAuto
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// UpstreamConfig holds the Vertex endpoint configuration.
type UpstreamConfig struct {
	// URL is the Vertex resource URL for the model, with or without its
	// :rawPredict / :streamRawPredict suffix.
	URL string `json:"url" validate:"required,url"`

	// Model is the upstream model identifier placed in translated requests.
	Model string `json:"model" validate:"required"`

	// OpenAIModelName is the model name echoed to clients; defaults to Model.
	OpenAIModelName string `json:"openai_model_name"`
}

// CredentialsConfig describes where the service-account key comes from.
type CredentialsConfig struct {
	Source CredentialSourceType `json:"source" validate:"required,oneof=file inline env keyring"`

	// Source-specific settings (mutually exclusive based on Source type)
	File        string `json:"file,omitempty"`         // For file source: path to the key file
	Inline      string `json:"inline,omitempty"`       // For inline source: the key JSON itself
	EnvKey      string `json:"env_key,omitempty"`      // For env source: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring source: user identifier
}

// NewSource creates a credential Source from the configuration.
func (c *CredentialsConfig) NewSource() (credentials.Source, error) {
	switch c.Source {
	case CredentialSourceFile:
		return credentials.NewFileSource(c.File)
	case CredentialSourceInline:
		return credentials.NewInlineSource(c.Inline)
	case CredentialSourceEnv:
		return credentials.NewEnvSource(c.EnvKey)
	case CredentialSourceKeyring:
		return credentials.NewKeyringSource("vertexpass-service-account", c.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported credential source: %s", c.Source)
	}
}

// TransmissionConfig holds the configured downstream delivery mode.
type TransmissionConfig struct {
	Mode classify.Mode `json:"mode" validate:"oneof=auto non-streaming standard buffered classic"`
}

// RetryConfig holds the upstream retry policy.
type RetryConfig struct {
	// Enabled toggles retries; nil means the default (on).
	Enabled *bool `json:"enabled"`

	// MaxAttempts counts the first try. Zero means the default.
	MaxAttempts int `json:"max_attempts" validate:"gte=0,lte=10"`
}

// RetryEnabled resolves the tri-state Enabled flag.
func (r *RetryConfig) RetryEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel     slog.Level         `json:"log_level"`
	LogFormat    LogFormat          `json:"log_format" validate:"oneof=text json"`
	Server       ServerConfig       `json:"server"`
	Shutdown     ShutdownConfig     `json:"shutdown"`
	Upstream     UpstreamConfig     `json:"upstream"`
	Credentials  CredentialsConfig  `json:"credentials"`
	Transmission TransmissionConfig `json:"transmission"`
	Retry        RetryConfig        `json:"retry"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.OpenAIModelName == "" {
		c.Upstream.OpenAIModelName = c.Upstream.Model
	}
	if c.Credentials.Source == "" {
		c.Credentials.Source = DefaultConfigCredentialSource
	}
	if c.Transmission.Mode == "" {
		c.Transmission.Mode = DefaultConfigTransmissionMode
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = upstream.DefaultMaxAttempts
	}

	// Dynamic defaults based on credential source
	if c.Credentials.Source == CredentialSourceKeyring && c.Credentials.KeyringUser == "" {
		currentUser, err := user.Current()
		if err != nil {
			return fmt.Errorf("credentials.keyring_user required (auto-detect failed: %w)", err)
		}
		c.Credentials.KeyringUser = currentUser.Username
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Credentials.Source {
	case CredentialSourceFile:
		if c.Credentials.File == "" {
			return errors.New("file path required for file credential source")
		}
	case CredentialSourceInline:
		if c.Credentials.Inline == "" {
			return errors.New("inline key required for inline credential source")
		}
	case CredentialSourceEnv:
		if c.Credentials.EnvKey == "" {
			return errors.New("env_key required for env credential source")
		}
	case CredentialSourceKeyring:
		if c.Credentials.KeyringUser == "" {
			return errors.New("keyring_user required for keyring credential source")
		}
	}

	return nil
}
