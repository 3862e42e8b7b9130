package rum

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fyrsmithlabs/reqtrace/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/fyrsmithlabs/reqtrace/internal/rum"

// Metric names.
const (
	MetricTiming  = "reqtrace.rum.timing"
	MetricActions = "reqtrace.rum.actions"
	MetricErrors  = "reqtrace.rum.errors"
)

// OTELClient maps RUM events onto OpenTelemetry: actions and errors become
// spans, timings a histogram in milliseconds.
type OTELClient struct {
	tracer  trace.Tracer
	timing  metric.Float64Histogram
	actions metric.Int64Counter
	errors  metric.Int64Counter
	attrs   []attribute.KeyValue
}

// NewOTELClient creates a client on tel's tracer and meter.
func NewOTELClient(tel *telemetry.Telemetry, s Settings) (*OTELClient, error) {
	meter := tel.Meter(instrumentationName)

	timing, err := meter.Float64Histogram(MetricTiming,
		metric.WithDescription("Named RUM timings"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating timing histogram: %w", err)
	}
	actions, err := meter.Int64Counter(MetricActions,
		metric.WithDescription("RUM actions recorded"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating action counter: %w", err)
	}
	errs, err := meter.Int64Counter(MetricErrors,
		metric.WithDescription("RUM errors recorded"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error counter: %w", err)
	}

	return &OTELClient{
		tracer:  tel.Tracer(instrumentationName),
		timing:  timing,
		actions: actions,
		errors:  errs,
		attrs: []attribute.KeyValue{
			attribute.String("rum.application_id", s.ApplicationID),
			attribute.String("rum.site", s.Site),
		},
	}, nil
}

// NewOTELFactory returns a Factory building OTELClients on tel.
func NewOTELFactory(tel *telemetry.Telemetry) Factory {
	return func(_ context.Context, s Settings) (Client, error) {
		return NewOTELClient(tel, s)
	}
}

func (c *OTELClient) AddAction(ctx context.Context, name string, rc Context) {
	attrs := append(c.baseAttrs(), attribute.String("rum.action.name", name))
	attrs = append(attrs, contextAttrs(rc)...)

	_, span := c.tracer.Start(ctx, "rum.action "+name, trace.WithAttributes(attrs...))
	span.End()

	c.actions.Add(ctx, 1, metric.WithAttributes(attribute.String("name", name)))
}

func (c *OTELClient) AddError(ctx context.Context, err error, rc Context) {
	attrs := append(c.baseAttrs(), contextAttrs(rc)...)

	_, span := c.tracer.Start(ctx, "rum.error", trace.WithAttributes(attrs...))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()

	c.errors.Add(ctx, 1)
}

func (c *OTELClient) AddTiming(ctx context.Context, name string, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	c.timing.Record(ctx, ms, metric.WithAttributes(attribute.String("name", name)))
}

func (c *OTELClient) baseAttrs() []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(c.attrs), len(c.attrs)+4)
	copy(out, c.attrs)
	return out
}

// contextAttrs converts rc into attributes under the "rum.context." prefix,
// in key order.
func contextAttrs(rc Context) []attribute.KeyValue {
	if len(rc) == 0 {
		return nil
	}
	keys := make([]string, 0, len(rc))
	for k := range rc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attribute.KeyValue, 0, len(rc))
	for _, k := range keys {
		key := "rum.context." + k
		switch v := rc[k].(type) {
		case string:
			out = append(out, attribute.String(key, v))
		case bool:
			out = append(out, attribute.Bool(key, v))
		case int:
			out = append(out, attribute.Int(key, v))
		case int64:
			out = append(out, attribute.Int64(key, v))
		case float64:
			out = append(out, attribute.Float64(key, v))
		case error:
			out = append(out, attribute.String(key, v.Error()))
		default:
			out = append(out, attribute.String(key, fmt.Sprint(v)))
		}
	}
	return out
}
