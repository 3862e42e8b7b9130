package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestNewResource(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Environment = "test"

	res := newResource(cfg)
	require.NotNil(t, res)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "reqtrace", attrs["service.name"])
	assert.Equal(t, "dev", attrs["service.version"])
	assert.Equal(t, "test", attrs["deployment.environment"])
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, trace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, trace.NeverSample().Description(), samplerFor(0).Description())
	assert.Equal(t, trace.TraceIDRatioBased(0.5).Description(), samplerFor(0.5).Description())
}

func TestNewProviders_OTLP(t *testing.T) {
	for _, protocol := range []string{"http/protobuf", "grpc"} {
		t.Run(protocol, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			cfg.Protocol = protocol
			cfg.Logs.Enabled = true
			cfg.Headers = map[string]string{"dd-client-token": "pub"}

			// Exporters connect lazily, so construction succeeds without a collector.
			tel, err := New(context.Background(), cfg)
			require.NoError(t, err)
			assert.False(t, tel.Health().Degraded, "failures: %v", tel.Health().Failures)
			assert.NotNil(t, tel.LoggerProvider())

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = tel.Shutdown(ctx)
		})
	}
}

func TestHTTPEndpoint(t *testing.T) {
	cfg := &Config{Endpoint: "http://collector:4317", Protocol: "grpc"}
	assert.Equal(t, "collector:4318", httpEndpoint(cfg))

	cfg = &Config{Endpoint: "collector:4318", Protocol: "http/protobuf"}
	assert.Equal(t, "collector:4318", httpEndpoint(cfg))
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "host:4318", stripScheme("https://host:4318"))
	assert.Equal(t, "host:4318", stripScheme("http://host:4318"))
	assert.Equal(t, "host:4318", stripScheme("host:4318"))
}
