// Package rum is the real-user-monitoring façade. It forwards error, action
// and timing events to a vendor client once initialized and drops them
// before that.
package rum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/reqtrace/internal/config"
	"github.com/fyrsmithlabs/reqtrace/internal/logging"
	"go.uber.org/zap"
)

// Context is the structured context attached to an event.
type Context map[string]any

// Client is the vendor RUM client.
type Client interface {
	AddError(ctx context.Context, err error, c Context)
	AddAction(ctx context.Context, name string, c Context)
	AddTiming(ctx context.Context, name string, d time.Duration)
}

// Settings are the credentials and identity the vendor client is built from.
type Settings struct {
	ApplicationID string
	ClientToken   config.Secret
	Site          string
	Service       string
	Env           string
	Version       string
}

// SettingsFromConfig extracts RUM settings from the telemetry config.
func SettingsFromConfig(tc config.TelemetryConfig) Settings {
	return Settings{
		ApplicationID: tc.ApplicationID,
		ClientToken:   tc.ClientToken,
		Site:          tc.Site,
		Service:       tc.Service,
		Env:           tc.Env,
		Version:       tc.Version,
	}
}

// complete reports whether both required credentials are present.
func (s Settings) complete() bool {
	return s.ApplicationID != "" && s.ClientToken.IsSet()
}

// Factory builds the vendor client. RUM calls it at most once.
type Factory func(ctx context.Context, s Settings) (Client, error)

// state is either uninitialized or ready.
type state interface{ isState() }

type uninitialized struct{}

type ready struct {
	client  Client
	started time.Time
}

func (uninitialized) isState() {}
func (ready) isState()         {}

// RUM is safe for concurrent use.
type RUM struct {
	settings Settings
	factory  Factory
	logger   *logging.Logger
	now      func() time.Time

	mu    sync.RWMutex
	state state

	dropped atomic.Int64
}

// New creates an uninitialized RUM façade. logger receives errors reported
// while uninitialized; nil discards them.
func New(settings Settings, factory Factory, logger *logging.Logger) *RUM {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RUM{
		settings: settings,
		factory:  factory,
		logger:   logger,
		now:      time.Now,
		state:    uninitialized{},
	}
}

// Init builds the vendor client. Missing credentials leave the façade
// uninitialized without error. Once ready, further calls do nothing.
func (r *RUM) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.state.(ready); ok {
		return nil
	}
	if !r.settings.complete() {
		return nil
	}
	if r.factory == nil {
		return errors.New("rum: no client factory configured")
	}

	client, err := r.factory(ctx, r.settings)
	if err != nil {
		return fmt.Errorf("failed to initialize rum client: %w", err)
	}
	r.state = ready{client: client, started: r.now()}
	return nil
}

// Initialized reports whether Init has succeeded.
func (r *RUM) Initialized() bool {
	_, ok := r.current().(ready)
	return ok
}

// Dropped returns the number of events discarded while uninitialized.
func (r *RUM) Dropped() int64 {
	return r.dropped.Load()
}

func (r *RUM) current() state {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// client returns the vendor client, counting a drop when there is none.
func (r *RUM) client() (ready, bool) {
	rd, ok := r.current().(ready)
	if !ok {
		r.dropped.Add(1)
	}
	return rd, ok
}

// AddError records an error event. A nil err is recorded as "unknown error".
func (r *RUM) AddError(ctx context.Context, err error, c Context) {
	rd, ok := r.client()
	if !ok {
		return
	}
	if err == nil {
		err = errors.New("unknown error")
	}
	rd.client.AddError(ctx, err, c)
}

// AddAction records a named user action.
func (r *RUM) AddAction(ctx context.Context, name string, c Context) {
	rd, ok := r.client()
	if !ok {
		return
	}
	rd.client.AddAction(ctx, name, c)
}

// AddTiming records a named timing. A zero d records the time elapsed since
// initialization.
func (r *RUM) AddTiming(ctx context.Context, name string, d time.Duration) {
	rd, ok := r.client()
	if !ok {
		return
	}
	if d == 0 {
		d = r.now().Sub(rd.started)
	}
	rd.client.AddTiming(ctx, name, d)
}

// ReportError forwards err to AddError when ready and otherwise writes it to
// the local logger.
func (r *RUM) ReportError(ctx context.Context, err error, c Context) {
	if rd, ok := r.current().(ready); ok {
		if err == nil {
			err = errors.New("unknown error")
		}
		rd.client.AddError(ctx, err, c)
		return
	}
	r.logger.Error(ctx, "Unhandled error", zap.Error(err), zap.Any("context", map[string]any(c)))
}

// Reporter is the subset of RUM used by code that only reports failures.
type Reporter interface {
	ReportError(ctx context.Context, err error, c Context)
}

var _ Reporter = (*RUM)(nil)
