package logging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/reqtrace/internal/config"
	"go.uber.org/zap"
)

// Record is one façade call after its arguments have been split.
type Record struct {
	Level   Level
	Time    time.Time
	Message string
	Args    []any  // message arguments, context excluded
	Fields  Fields // nil when the call carried no context
}

// Sink receives records from a Facade. Each sink decides on its own whether a
// level is wanted.
type Sink interface {
	Name() string
	Enabled(level Level) bool
	Write(ctx context.Context, rec Record)
}

// facadeCallerSkip is the number of frames between Logger.Log and the code
// that called the façade: ConsoleSink.Write, Facade.log and the leveled method.
const facadeCallerSkip = 3

// ConsoleSink writes every record to a local Logger. Records are never
// sampled, and the reported caller is the façade's caller.
type ConsoleSink struct {
	logger *Logger
}

// NewConsoleSink creates a sink over the unsampled form of logger.
func NewConsoleSink(logger *Logger) *ConsoleSink {
	local := logger.Unsampled()
	return &ConsoleSink{logger: &Logger{
		zap:    local.zap.WithOptions(zap.AddCallerSkip(facadeCallerSkip)),
		config: local.config,
	}}
}

func (s *ConsoleSink) Name() string { return "console" }

// Enabled always returns true; filtering is left to the zap core.
func (s *ConsoleSink) Enabled(Level) bool { return true }

func (s *ConsoleSink) Write(ctx context.Context, rec Record) {
	s.logger.Log(ctx, rec.Level.ZapLevel(), rec.Message, zapFields(rec.Fields)...)
}

// RemoteSettings controls which records reach the remote logger.
type RemoteSettings struct {
	LocalOnly bool
	MinLevel  Level
}

// DefaultRemoteSettings forwards info and above.
func DefaultRemoteSettings() RemoteSettings {
	return RemoteSettings{MinLevel: LevelInfo}
}

// RemoteUpdate is a partial RemoteSettings; nil fields keep their value.
type RemoteUpdate struct {
	LocalOnly *bool
	MinLevel  *Level
}

// RemoteUpdateFromConfig builds an update carrying both logging settings of cfg.
func RemoteUpdateFromConfig(cfg config.LoggingConfig) (RemoteUpdate, error) {
	lvl, err := ParseLevel(cfg.RemoteLevel)
	if err != nil {
		return RemoteUpdate{}, err
	}
	localOnly := cfg.LocalOnly
	return RemoteUpdate{LocalOnly: &localOnly, MinLevel: &lvl}, nil
}

// RemoteFactory creates the vendor logger. It is called at most once per
// successful initialization.
type RemoteFactory func(ctx context.Context) (RemoteLogger, error)

// ErrRemoteNotConfigured is returned by Init when no logs token is set.
var ErrRemoteNotConfigured = errors.New("remote logging not configured")

// RemoteSink forwards records to a RemoteLogger once initialized. Records
// arriving before initialization are counted and dropped.
type RemoteSink struct {
	token   config.Secret
	factory RemoteFactory

	mu       sync.RWMutex
	settings RemoteSettings
	client   RemoteLogger // nil until Init succeeds

	dropped atomic.Int64
}

// NewRemoteSink creates an uninitialized remote sink. token is the logs
// client token; an empty token keeps the sink uninitialized forever.
func NewRemoteSink(token config.Secret, factory RemoteFactory) *RemoteSink {
	return &RemoteSink{
		token:    token,
		factory:  factory,
		settings: DefaultRemoteSettings(),
	}
}

func (s *RemoteSink) Name() string { return "remote" }

// Enabled applies the local-only gate and the minimum level.
func (s *RemoteSink) Enabled(level Level) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings.LocalOnly {
		return false
	}
	return level >= s.settings.MinLevel
}

func (s *RemoteSink) Write(ctx context.Context, rec Record) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil {
		s.dropped.Add(1)
		return
	}
	client.Send(ctx, rec.Level, rec.Message, remoteContext(rec))
}

// Configure merges u into the current settings.
func (s *RemoteSink) Configure(u RemoteUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.LocalOnly != nil {
		s.settings.LocalOnly = *u.LocalOnly
	}
	if u.MinLevel != nil {
		s.settings.MinLevel = *u.MinLevel
	}
}

// Settings returns a copy of the current settings.
func (s *RemoteSink) Settings() RemoteSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Init creates the vendor logger. It is a no-op once initialized and returns
// ErrRemoteNotConfigured when no token is set.
func (s *RemoteSink) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}
	if !s.token.IsSet() {
		return ErrRemoteNotConfigured
	}
	if s.factory == nil {
		return errors.New("remote logging: no factory configured")
	}

	client, err := s.factory(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize remote logging: %w", err)
	}
	s.client = client
	return nil
}

// Initialized reports whether Init has succeeded.
func (s *RemoteSink) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

// Dropped returns the number of records discarded before initialization.
func (s *RemoteSink) Dropped() int64 {
	return s.dropped.Load()
}
