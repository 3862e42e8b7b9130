package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/reqtrace/internal/logging"
	"github.com/fyrsmithlabs/reqtrace/internal/rum"
	"github.com/fyrsmithlabs/reqtrace/internal/tracecontext"
	"github.com/fyrsmithlabs/reqtrace/internal/tracehttp"
)

var (
	// ErrInvalidForm is returned when the form fails validation.
	ErrInvalidForm = errors.New("invalid form")

	// ErrInFlight is returned when a submission is already outstanding.
	ErrInFlight = errors.New("submission already in flight")
)

// ValidationError carries the field errors of a rejected form.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	if msg, ok := e.Fields[FieldRequestName]; ok {
		return fmt.Sprintf("%s: %s", ErrInvalidForm, msg)
	}
	return ErrInvalidForm.Error()
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidForm }

// Recorder receives RUM events.
type Recorder interface {
	AddAction(ctx context.Context, name string, c rum.Context)
	AddTiming(ctx context.Context, name string, d time.Duration)
	AddError(ctx context.Context, err error, c rum.Context)
}

// Logger receives façade log calls.
type Logger interface {
	Info(ctx context.Context, args ...any)
	Warn(ctx context.Context, args ...any)
	Error(ctx context.Context, args ...any)
}

// Event names recorded through Recorder.
const (
	ActionSubmit        = "submit_request"
	TimingSubmitStart   = "submit_request_start"
	TimingSubmitSuccess = "submit_request_success"
)

// Submitter sends forms to the receiver endpoint. At most one submission is
// outstanding at a time.
type Submitter struct {
	endpoint  string
	client    *tracehttp.Client
	generator *tracecontext.Generator
	rum       Recorder
	log       Logger
	now       func() time.Time

	inFlight atomic.Bool
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithGenerator replaces the traceparent generator.
func WithGenerator(g *tracecontext.Generator) Option {
	return func(s *Submitter) { s.generator = g }
}

// WithClock replaces time.Now for the client timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Submitter) { s.now = now }
}

// NewSubmitter creates a Submitter posting to endpoint.
func NewSubmitter(endpoint string, client *tracehttp.Client, rec Recorder, log Logger, opts ...Option) *Submitter {
	s := &Submitter{
		endpoint:  endpoint,
		client:    client,
		generator: tracecontext.NewGenerator(),
		rum:       rec,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Endpoint returns the receiver URL.
func (s *Submitter) Endpoint() string { return s.endpoint }

// InFlight reports whether a submission is outstanding.
func (s *Submitter) InFlight() bool { return s.inFlight.Load() }

// Submit validates f and posts it. onState, when non-nil, observes every
// transition; the final state is also returned. Validation failures return
// a *ValidationError without any telemetry. A non-2xx response or transport
// failure ends in a Failed state with a nil error.
func (s *Submitter) Submit(ctx context.Context, f Form, onState func(State)) (State, error) {
	if errs := f.Validate(); !errs.Valid() {
		return Idle(), &ValidationError{Fields: errs}
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return Idle(), ErrInFlight
	}
	defer s.inFlight.Store(false)

	emit := func(st State) State {
		if onState != nil {
			onState(st)
		}
		return st
	}

	tp, err := s.generator.Generate()
	if err != nil {
		return Idle(), fmt.Errorf("generating traceparent: %w", err)
	}
	traceparent := tp.String()
	ctx = tp.ContextWith(ctx)

	emit(submitting(traceparent))

	s.rum.AddAction(ctx, ActionSubmit, rum.Context{
		"traceparent":          traceparent,
		"requestName":          strings.TrimSpace(f.RequestName),
		"operation":            string(f.Operation),
		"priority":             string(f.Priority),
		"includeDebugMetadata": f.IncludeDebugMetadata,
	})
	s.rum.AddTiming(ctx, TimingSubmitStart, 0)
	s.log.Info(ctx, "Submitting request", logging.Fields{
		"traceparent": traceparent,
		"operation":   string(f.Operation),
		"priority":    string(f.Priority),
	})

	res, err := s.client.PostJSON(ctx, s.endpoint, NewPayload(f, s.now()), tracehttp.Options{
		Traceparent: traceparent,
	})
	if err != nil {
		s.rum.AddError(ctx, err, rum.Context{"traceparent": traceparent})
		s.log.Error(ctx, err, logging.Fields{"traceparent": traceparent})
		return emit(failedErr(traceparent, err)), nil
	}

	status := res.StatusCode()
	if !res.OK() {
		s.rum.AddError(ctx, errors.New("Request failed"), rum.Context{"traceparent": traceparent, "status": status})
		s.log.Warn(ctx, "Request failed", logging.Fields{"traceparent": traceparent, "status": status})
		return emit(failedStatus(traceparent, status)), nil
	}

	s.rum.AddTiming(ctx, TimingSubmitSuccess, 0)
	s.log.Info(ctx, "Request succeeded", logging.Fields{"traceparent": traceparent, "status": status})
	return emit(succeeded(traceparent, status)), nil
}
