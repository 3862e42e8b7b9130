// Package telemetry builds the OpenTelemetry pipelines behind reqtrace's RUM
// client and remote logging.
//
// Traces and metrics are exported over OTLP (HTTP or gRPC); logs always go
// over OTLP/HTTP. Backend credentials travel as OTLP headers. A Telemetry
// that fails to build an exporter stays usable and reports itself degraded.
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Tests use NewTestTelemetry, which routes every pipeline to memory.
package telemetry
