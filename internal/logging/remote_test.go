package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/reqtrace/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
)

func TestOTELRemote_Send(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	remote := NewOTELRemote("reqtrace", tel.LoggerProvider(), "1.0.0")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	remote.Send(ctx, LevelWarn, "Request failed", Fields{"status": "500"})

	logs := tel.LogExporter.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "Request failed", logs[0].Body)
	assert.Equal(t, log.SeverityWarn, logs[0].Severity)
	assert.Equal(t, traceID, logs[0].TraceID)
	assert.Equal(t, "500", logs[0].Attributes["status"].AsString())
}

func TestOTELRemoteFactory(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	calls := 0
	factory := OTELRemoteFactory("reqtrace", "dev", func(ctx context.Context) (log.LoggerProvider, error) {
		calls++
		return tel.RequireLoggerProvider(ctx)
	})

	sink := NewRemoteSink("pub-token", factory)
	f := NewFacade(sink)
	require.NoError(t, f.Init(context.Background(), nil))
	require.NoError(t, f.Init(context.Background(), nil))
	f.Error(context.Background(), "boom", errors.New("cause"))

	assert.Equal(t, 1, calls)
	logs := tel.LogExporter.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "boom cause", logs[0].Body)
	assert.Contains(t, logs[0].Attributes, "args")
}

func TestOTELRemoteFactory_ProviderError(t *testing.T) {
	factory := OTELRemoteFactory("reqtrace", "dev", func(context.Context) (log.LoggerProvider, error) {
		return nil, errors.New("no exporter")
	})

	_, err := factory(context.Background())
	assert.EqualError(t, err, "no exporter")
}
