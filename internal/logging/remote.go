package logging

import (
	"context"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
)

// RemoteLogger is the vendor log client behind a RemoteSink.
type RemoteLogger interface {
	Send(ctx context.Context, level Level, msg string, fields Fields)
}

// OTELRemote ships records through the otelzap bridge to an OTel
// LoggerProvider.
type OTELRemote struct {
	zap *zap.Logger
}

// NewOTELRemote creates a remote logger over provider. name is the
// instrumentation scope, typically the service name.
func NewOTELRemote(name string, provider log.LoggerProvider, version string) *OTELRemote {
	core := otelzap.NewCore(name,
		otelzap.WithLoggerProvider(provider),
		otelzap.WithVersion(version),
	)
	return &OTELRemote{zap: zap.New(core)}
}

// Send emits one record. ctx is passed to the bridge so the record carries
// the active trace and span ids.
func (r *OTELRemote) Send(ctx context.Context, level Level, msg string, fields Fields) {
	zf := make([]zap.Field, 0, len(fields)+1)
	if ctx != nil {
		zf = append(zf, zap.Any("ctx", ctx))
	}
	zf = append(zf, zapFields(fields)...)
	r.zap.Log(level.ZapLevel(), msg, zf...)
}

// OTELRemoteFactory returns a RemoteFactory that builds an OTELRemote over
// the provider returned by get. get is called lazily so the provider can be
// created by the same Init that creates the sink's client.
func OTELRemoteFactory(name, version string, get func(ctx context.Context) (log.LoggerProvider, error)) RemoteFactory {
	return func(ctx context.Context) (RemoteLogger, error) {
		lp, err := get(ctx)
		if err != nil {
			return nil, err
		}
		return NewOTELRemote(name, lp, version), nil
	}
}
