package telemetry

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/reqtrace/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.Equal(t, "reqtrace", cfg.ServiceName)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.Sampling.Rate)
	assert.Equal(t, 15*time.Second, cfg.Metrics.ExportInterval.Duration())
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout.Duration())
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	enabled := func(modify func(*Config)) *Config {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		modify(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		config *Config
		errMsg string
	}{
		{"valid enabled", enabled(func(*Config) {}), ""},
		{"disabled skips validation", &Config{}, ""},
		{"missing endpoint", enabled(func(c *Config) { c.Endpoint = "" }), "endpoint is required"},
		{"missing service", enabled(func(c *Config) { c.ServiceName = "" }), "service name is required"},
		{"bad protocol", enabled(func(c *Config) { c.Protocol = "udp" }), "unknown protocol"},
		{"insecure remote", enabled(func(c *Config) { c.Endpoint = "otlp.example.com:4318" }), "insecure connections"},
		{"secure remote", enabled(func(c *Config) {
			c.Endpoint = "otlp.example.com:4318"
			c.Insecure = false
		}), ""},
		{"sampling rate", enabled(func(c *Config) { c.Sampling.Rate = 1.5 }), "sampling rate"},
		{"export interval", enabled(func(c *Config) { c.Metrics.ExportInterval = 0 }), "export interval"},
		{"shutdown timeout", enabled(func(c *Config) { c.Shutdown.Timeout = 0 }), "shutdown timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	t.Run("no credentials", func(t *testing.T) {
		cfg := FromAppConfig(config.Default().Telemetry)
		assert.False(t, cfg.Enabled)
		assert.False(t, cfg.Metrics.Enabled)
		assert.False(t, cfg.Logs.Enabled)
		assert.True(t, cfg.Insecure)
	})

	t.Run("rum credentials", func(t *testing.T) {
		tc := config.Default().Telemetry
		tc.ApplicationID = "app-1"
		tc.ClientToken = "pub-rum"
		tc.Version = "1.2.3"
		tc.Env = "staging"

		cfg := FromAppConfig(tc)
		assert.True(t, cfg.Enabled)
		assert.True(t, cfg.Metrics.Enabled)
		assert.True(t, cfg.Logs.Enabled, "logs fall back to the RUM token")
		assert.Equal(t, "1.2.3", cfg.ServiceVersion)
		assert.Equal(t, "staging", cfg.Environment)
		assert.Equal(t, "app-1", cfg.Headers["dd-application-id"])
		assert.Equal(t, "pub-rum", cfg.Headers["dd-client-token"])
		assert.Equal(t, "pub-rum", cfg.Headers["dd-logs-client-token"])
		assert.Equal(t, "datadoghq.com", cfg.Headers["dd-site"])
	})

	t.Run("logs token only", func(t *testing.T) {
		tc := config.Default().Telemetry
		tc.LogsClientToken = "pub-logs"

		cfg := FromAppConfig(tc)
		assert.True(t, cfg.Enabled)
		assert.False(t, cfg.Metrics.Enabled)
		assert.True(t, cfg.Logs.Enabled)
		assert.NotContains(t, cfg.Headers, "dd-client-token")
	})

	t.Run("remote endpoint keeps tls", func(t *testing.T) {
		tc := config.Default().Telemetry
		tc.OTLPEndpoint = "https://otlp.example.com:4318"
		assert.False(t, FromAppConfig(tc).Insecure)
	})
}

func TestIsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4318", true},
		{"http://localhost:4318", true},
		{"127.0.0.1:4317", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"collector:4317", false},
		{"https://otlp.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, isLocalEndpoint(tt.endpoint))
		})
	}
}
