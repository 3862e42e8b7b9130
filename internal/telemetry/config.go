package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/reqtrace/internal/config"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	Endpoint       string // OTLP collector host:port
	Protocol       string // "http/protobuf" or "grpc"
	Insecure       bool   // plaintext, only allowed for local endpoints
	TLSSkipVerify  bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Headers        map[string]string
	Sampling       SamplingConfig
	Metrics        MetricsConfig
	Logs           LogsConfig
	Shutdown       ShutdownConfig
}

// SamplingConfig controls trace sampling behavior.
type SamplingConfig struct {
	Rate float64 // 0.0-1.0
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Enabled        bool
	ExportInterval config.Duration
}

// LogsConfig controls the OTLP log pipeline used by remote logging.
type LogsConfig struct {
	Enabled bool
}

// ShutdownConfig controls graceful shutdown behavior.
type ShutdownConfig struct {
	Timeout config.Duration
}

// NewDefaultConfig returns defaults for a local collector. Telemetry is
// disabled until credentials are configured.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Endpoint:       "localhost:4318",
		Protocol:       "http/protobuf",
		Insecure:       true,
		ServiceName:    "reqtrace",
		ServiceVersion: "dev",
		Sampling:       SamplingConfig{Rate: 1.0},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: config.Duration(15 * time.Second),
		},
		Logs:     LogsConfig{Enabled: false},
		Shutdown: ShutdownConfig{Timeout: config.Duration(5 * time.Second)},
	}
}

// FromAppConfig derives telemetry settings from the application config.
// Traces and metrics are enabled when RUM credentials are present; the log
// pipeline when a logs token is available. Credentials are sent as OTLP
// headers and local endpoints always use plaintext.
func FromAppConfig(tc config.TelemetryConfig) *Config {
	cfg := NewDefaultConfig()
	cfg.Endpoint = tc.OTLPEndpoint
	cfg.Protocol = tc.Protocol
	cfg.TLSSkipVerify = tc.TLSSkipVerify
	cfg.ServiceName = tc.Service
	if tc.Version != "" {
		cfg.ServiceVersion = tc.Version
	}
	cfg.Environment = tc.Env
	cfg.Insecure = tc.Insecure || isLocalEndpoint(tc.OTLPEndpoint)

	cfg.Enabled = tc.RUMEnabled() || tc.LogsEnabled()
	cfg.Metrics.Enabled = tc.RUMEnabled()
	cfg.Logs.Enabled = tc.LogsEnabled()

	cfg.Headers = map[string]string{"dd-site": tc.Site}
	if tc.RUMEnabled() {
		cfg.Headers["dd-application-id"] = tc.ApplicationID
		cfg.Headers["dd-client-token"] = tc.ClientToken.Value()
	}
	if tc.LogsEnabled() {
		cfg.Headers["dd-logs-client-token"] = tc.LogsToken().Value()
	}
	return cfg
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required when telemetry is enabled")
	}
	switch c.Protocol {
	case "http/protobuf", "grpc":
	default:
		return fmt.Errorf("unknown protocol %q", c.Protocol)
	}

	if c.Insecure && !isLocalEndpoint(c.Endpoint) {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; set insecure=false for TLS or use a local endpoint (localhost/127.0.0.1)")
	}

	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling rate must be between 0 and 1, got %f", c.Sampling.Rate)
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("metrics export interval must be positive when metrics enabled")
	}
	if c.Shutdown.Timeout.Duration() <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// isLocalEndpoint reports whether endpoint names a loopback host. A scheme
// prefix is ignored.
func isLocalEndpoint(endpoint string) bool {
	host := stripScheme(endpoint)

	if strings.HasPrefix(host, "[") {
		if idx := strings.Index(host, "]"); idx != -1 {
			host = host[1:idx]
		}
	} else if strings.Count(host, ":") == 1 {
		host = host[:strings.LastIndex(host, ":")]
	}

	return host == "localhost" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.")
}
