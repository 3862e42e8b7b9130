package logging

import (
	"context"
	"errors"
	"time"
)

// Configurer is implemented by sinks whose remote settings can change at runtime.
type Configurer interface {
	Configure(RemoteUpdate)
}

// Initializer is implemented by sinks that need lazy initialization.
type Initializer interface {
	Init(ctx context.Context) error
}

// Facade dispatches leveled calls to an ordered list of sinks. It is safe for
// concurrent use; all mutable state lives in the sinks. A nil *Facade
// discards everything.
type Facade struct {
	sinks []Sink
	now   func() time.Time
}

// NewFacade creates a façade over sinks, written in the given order.
func NewFacade(sinks ...Sink) *Facade {
	return &Facade{sinks: sinks, now: time.Now}
}

// Sinks returns the façade's sinks.
func (f *Facade) Sinks() []Sink {
	if f == nil {
		return nil
	}
	return f.sinks
}

func (f *Facade) Debug(ctx context.Context, args ...any) { f.log(ctx, LevelDebug, args) }
func (f *Facade) Info(ctx context.Context, args ...any)  { f.log(ctx, LevelInfo, args) }
func (f *Facade) Warn(ctx context.Context, args ...any)  { f.log(ctx, LevelWarn, args) }
func (f *Facade) Error(ctx context.Context, args ...any) { f.log(ctx, LevelError, args) }

func (f *Facade) log(ctx context.Context, level Level, args []any) {
	if f == nil {
		return
	}
	var rec *Record
	for _, s := range f.sinks {
		if !s.Enabled(level) {
			continue
		}
		if rec == nil {
			msgArgs, fields := splitContext(args)
			rec = &Record{
				Level:   level,
				Time:    f.now(),
				Message: formatMessage(msgArgs),
				Args:    msgArgs,
				Fields:  fields,
			}
		}
		s.Write(ctx, *rec)
	}
}

// Configure merges u into every configurable sink.
func (f *Facade) Configure(u RemoteUpdate) {
	if f == nil {
		return
	}
	for _, s := range f.sinks {
		if c, ok := s.(Configurer); ok {
			c.Configure(u)
		}
	}
}

// Init applies an optional update and then initializes every sink that needs
// it. Sinks without credentials stay uninitialized and are not an error.
// Calling Init again is safe.
func (f *Facade) Init(ctx context.Context, u *RemoteUpdate) error {
	if f == nil {
		return nil
	}
	if u != nil {
		f.Configure(*u)
	}
	var errs []error
	for _, s := range f.sinks {
		i, ok := s.(Initializer)
		if !ok {
			continue
		}
		if err := i.Init(ctx); err != nil && !errors.Is(err, ErrRemoteNotConfigured) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
