package tracecontext

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

const (
	// HeaderName is the HTTP header carrying the traceparent value.
	HeaderName = "traceparent"

	// Version is the only traceparent version this package emits.
	Version = "00"

	// FlagsSampled marks the trace as sampled.
	FlagsSampled = "01"

	traceIDBytes  = 16
	parentIDBytes = 8

	// DefaultMaxAttempts bounds the number of draws per identifier.
	DefaultMaxAttempts = 16
)

var (
	// ErrEntropyExhausted is returned when every draw within the attempt budget was all zeros.
	ErrEntropyExhausted = errors.New("entropy source returned only zero identifiers")

	// ErrInvalidTraceparent is returned by Parse for malformed values.
	ErrInvalidTraceparent = errors.New("invalid traceparent")
)

// Traceparent is an immutable W3C traceparent value.
type Traceparent struct {
	Version    string
	TraceID    string
	ParentID   string
	TraceFlags string
}

// String renders the header value.
func (t Traceparent) String() string {
	return t.Version + "-" + t.TraceID + "-" + t.ParentID + "-" + t.TraceFlags
}

// IsZero reports whether t is the zero Traceparent.
func (t Traceparent) IsZero() bool {
	return t == Traceparent{}
}

// Generator produces traceparent values from an entropy source.
type Generator struct {
	entropy     io.Reader
	maxAttempts int
}

// Option configures a Generator.
type Option func(*Generator)

// WithEntropy replaces crypto/rand as the entropy source.
func WithEntropy(r io.Reader) Option {
	return func(g *Generator) {
		g.entropy = r
	}
}

// WithMaxAttempts sets the number of draws per identifier before giving up.
// Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// NewGenerator creates a Generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		entropy:     rand.Reader,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var defaultGenerator = NewGenerator()

// Generate returns a fresh traceparent using crypto/rand.
func Generate() (Traceparent, error) {
	return defaultGenerator.Generate()
}

// MustGenerate is like Generate but panics on failure.
func MustGenerate() Traceparent {
	tp, err := Generate()
	if err != nil {
		panic(fmt.Sprintf("tracecontext: %v", err))
	}
	return tp
}

// Generate returns a fresh traceparent.
func (g *Generator) Generate() (Traceparent, error) {
	traceID, err := g.nonZeroHex(traceIDBytes)
	if err != nil {
		return Traceparent{}, fmt.Errorf("generating trace id: %w", err)
	}
	parentID, err := g.nonZeroHex(parentIDBytes)
	if err != nil {
		return Traceparent{}, fmt.Errorf("generating parent id: %w", err)
	}

	return Traceparent{
		Version:    Version,
		TraceID:    traceID,
		ParentID:   parentID,
		TraceFlags: FlagsSampled,
	}, nil
}

// nonZeroHex draws n bytes until at least one is non-zero.
func (g *Generator) nonZeroHex(n int) (string, error) {
	buf := make([]byte, n)
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if _, err := io.ReadFull(g.entropy, buf); err != nil {
			return "", fmt.Errorf("reading entropy: %w", err)
		}
		if !allZero(buf) {
			return hex.EncodeToString(buf), nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrEntropyExhausted, g.maxAttempts)
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// Parse validates a traceparent header value.
func Parse(s string) (Traceparent, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return Traceparent{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrInvalidTraceparent, len(parts))
	}

	tp := Traceparent{Version: parts[0], TraceID: parts[1], ParentID: parts[2], TraceFlags: parts[3]}

	if !isLowerHex(tp.Version, 2) || tp.Version == "ff" {
		return Traceparent{}, fmt.Errorf("%w: bad version %q", ErrInvalidTraceparent, tp.Version)
	}
	if !isLowerHex(tp.TraceID, 2*traceIDBytes) || strings.Trim(tp.TraceID, "0") == "" {
		return Traceparent{}, fmt.Errorf("%w: bad trace id %q", ErrInvalidTraceparent, tp.TraceID)
	}
	if !isLowerHex(tp.ParentID, 2*parentIDBytes) || strings.Trim(tp.ParentID, "0") == "" {
		return Traceparent{}, fmt.Errorf("%w: bad parent id %q", ErrInvalidTraceparent, tp.ParentID)
	}
	if !isLowerHex(tp.TraceFlags, 2) {
		return Traceparent{}, fmt.Errorf("%w: bad flags %q", ErrInvalidTraceparent, tp.TraceFlags)
	}

	return tp, nil
}

func isLowerHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// SpanContext converts t into a remote OpenTelemetry span context.
func (t Traceparent) SpanContext() trace.SpanContext {
	var cfg trace.SpanContextConfig
	if tid, err := trace.TraceIDFromHex(t.TraceID); err == nil {
		cfg.TraceID = tid
	}
	if sid, err := trace.SpanIDFromHex(t.ParentID); err == nil {
		cfg.SpanID = sid
	}
	if t.TraceFlags == FlagsSampled {
		cfg.TraceFlags = trace.FlagsSampled
	}
	cfg.Remote = true
	return trace.NewSpanContext(cfg)
}

// ContextWith returns ctx carrying t as the remote span context.
func (t Traceparent) ContextWith(ctx context.Context) context.Context {
	return trace.ContextWithRemoteSpanContext(ctx, t.SpanContext())
}

// NewErrorID returns an opaque 16-character hex id for correlating failures.
func NewErrorID() string {
	buf := make([]byte, parentIDBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf)
}
