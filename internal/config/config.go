// Package config provides configuration loading for reqtrace.
//
// Configuration is read from an optional YAML file and environment variables,
// with defaults applied for anything left unset. Every telemetry credential is
// optional: an absent credential disables the matching subsystem without error.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the complete reqtrace configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Client    ClientConfig    `koanf:"client"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds configuration for the request receiver.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RateLimit       float64  `koanf:"rate_limit"` // requests per second, 0 disables limiting
	RateBurst       int      `koanf:"rate_burst"`
}

// ClientConfig holds configuration for outbound submissions.
type ClientConfig struct {
	Endpoint string `koanf:"endpoint"`
}

// LoggingConfig holds local and remote log settings.
type LoggingConfig struct {
	Level       string `koanf:"level"`
	Format      string `koanf:"format"`
	LocalOnly   bool   `koanf:"local_only"`
	RemoteLevel string `koanf:"remote_level"`
}

// TelemetryConfig holds the observability backend settings.
type TelemetryConfig struct {
	ApplicationID   string `koanf:"application_id"`
	ClientToken     Secret `koanf:"client_token"`
	LogsClientToken Secret `koanf:"logs_client_token"`
	Site            string `koanf:"site"`
	Service         string `koanf:"service"`
	Env             string `koanf:"env"`
	Version         string `koanf:"version"`

	OTLPEndpoint  string `koanf:"otlp_endpoint"`
	Protocol      string `koanf:"protocol"` // "http/protobuf" or "grpc"
	Insecure      bool   `koanf:"insecure"`
	TLSSkipVerify bool   `koanf:"tls_skip_verify"`
}

// RUMEnabled reports whether both RUM credentials are present.
func (t TelemetryConfig) RUMEnabled() bool {
	return t.ApplicationID != "" && t.ClientToken.IsSet()
}

// LogsToken returns the dedicated logs token, falling back to the RUM client token.
func (t TelemetryConfig) LogsToken() Secret {
	if t.LogsClientToken.IsSet() {
		return t.LogsClientToken
	}
	return t.ClientToken
}

// LogsEnabled reports whether a token is available for remote logs.
func (t TelemetryConfig) LogsEnabled() bool {
	return t.LogsToken().IsSet()
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - The client endpoint is not an absolute http(s) URL
//   - A log level or format is unknown
//   - The OTLP protocol is unknown
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative: %v", c.Server.RateLimit)
	}

	u, err := url.Parse(c.Client.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid client endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("client endpoint must be an absolute http(s) URL, got %q", c.Client.Endpoint)
	}

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if !validLevels[strings.ToLower(c.Logging.RemoteLevel)] {
		return fmt.Errorf("unknown remote log level %q", c.Logging.RemoteLevel)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	switch c.Telemetry.Protocol {
	case "http/protobuf", "grpc":
	default:
		return fmt.Errorf("unknown telemetry protocol %q", c.Telemetry.Protocol)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 20
	}

	if cfg.Client.Endpoint == "" {
		cfg.Client.Endpoint = "http://localhost:9090/api/requests"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.RemoteLevel == "" {
		cfg.Logging.RemoteLevel = "info"
	}

	if cfg.Telemetry.Site == "" {
		cfg.Telemetry.Site = "datadoghq.com"
	}
	if cfg.Telemetry.Service == "" {
		cfg.Telemetry.Service = "reqtrace"
	}
	if cfg.Telemetry.OTLPEndpoint == "" {
		cfg.Telemetry.OTLPEndpoint = "localhost:4318"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "http/protobuf"
	}
}
