// Package config provides configuration loading for paramgate.
package config

import (
	"strconv"

	"github.com/param-gate/paramgate/pkg/catalog"
)

// Config is the top-level configuration for the paramgate server.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Validation configures the dispatch wrapper defaults.
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`

	// Audit configures where validation rejections are recorded.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Admin configures the rejection-history endpoint.
	Admin AdminConfig `yaml:"admin" mapstructure:"admin"`

	// Metrics toggles the Prometheus /metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Tracing toggles OpenTelemetry span export.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// DevMode enables development features (verbose logging, stdout trace export).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server listener.
type ServerConfig struct {
	// Addr is the listen address. Default "127.0.0.1:8080".
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// ValidationConfig configures the dispatch wrapper defaults.
type ValidationConfig struct {
	// ErrorView names the registered error view. Default "json".
	ErrorView string `yaml:"error_view" mapstructure:"error_view" validate:"required,error_view"`

	// ErrorStatus is the rejection status, numeric ("422") or symbolic
	// ("unprocessable_entity"). Default "unprocessable_entity".
	ErrorStatus string `yaml:"error_status" mapstructure:"error_status" validate:"required,http_status"`

	// MaxBodyBytes bounds the buffered request body. Default 1 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gte=0"`

	// ResultCacheSize is the validation outcome LRU capacity.
	// Zero disables caching.
	ResultCacheSize int `yaml:"result_cache_size" mapstructure:"result_cache_size" validate:"gte=0"`
}

// AuditConfig configures rejection recording.
type AuditConfig struct {
	// Output selects the sink: "stdout", "file://<abs-dir>", or
	// "sqlite://<abs-path>".
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`

	// RetentionDays applies to the file sink. Default 7.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"gte=0"`
}

// AdminConfig configures the rejection-history endpoint.
type AdminConfig struct {
	// KeyHash is the admin key hash, Argon2id PHC or "sha256:<hex>".
	// Empty disables the endpoint.
	KeyHash string `yaml:"key_hash" mapstructure:"key_hash"`
}

// MetricsConfig toggles Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// TracingConfig toggles OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// SetDefaults fills zero values with production defaults.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Validation.ErrorView == "" {
		c.Validation.ErrorView = "json"
	}
	if c.Validation.ErrorStatus == "" {
		c.Validation.ErrorStatus = "unprocessable_entity"
	}
	if c.Validation.MaxBodyBytes == 0 {
		c.Validation.MaxBodyBytes = 1 << 20
	}
	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 7
	}
}

// ResolveErrorStatus returns the numeric rejection status. Call after
// Validate; an unresolvable value reports an error anyway.
func (c *ValidationConfig) ResolveErrorStatus() (int, error) {
	return resolveStatus(c.ErrorStatus)
}

// resolveStatus accepts "422" or "unprocessable_entity".
func resolveStatus(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return catalog.StatusCode(n)
	}
	return catalog.StatusCode(s)
}
