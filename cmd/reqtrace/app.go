package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fyrsmithlabs/reqtrace/internal/config"
	"github.com/fyrsmithlabs/reqtrace/internal/logging"
	"github.com/fyrsmithlabs/reqtrace/internal/rum"
	"github.com/fyrsmithlabs/reqtrace/internal/submission"
	"github.com/fyrsmithlabs/reqtrace/internal/telemetry"
	"github.com/fyrsmithlabs/reqtrace/internal/tracehttp"
	"go.uber.org/zap"
)

// app holds the dependencies shared by the subcommands.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	tel     *telemetry.Telemetry
	log     *logging.Facade
	rum     *rum.RUM
	watcher *config.Watcher
}

// newApp loads configuration and starts every observability subsystem.
// Subsystems without credentials stay disabled; only configuration and
// local logger errors are fatal.
func newApp(ctx context.Context, opts *rootOptions, defaultOutput string) (*app, error) {
	configPath := opts.configPath
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg, opts.logOutput, defaultOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry))
	if err != nil {
		logger.Warn(ctx, "telemetry disabled", zap.Error(err))
		if tel, err = telemetry.New(ctx, telemetry.NewDefaultConfig()); err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}
	tel.InstallGlobals()

	a := &app{cfg: cfg, logger: logger, tel: tel}

	remote := logging.NewRemoteSink(cfg.Telemetry.LogsToken(),
		logging.OTELRemoteFactory(cfg.Telemetry.Service, cfg.Telemetry.Version, tel.RequireLoggerProvider))
	a.log = logging.NewFacade(logging.NewConsoleSink(logger), remote)

	update, err := logging.RemoteUpdateFromConfig(cfg.Logging)
	if err != nil {
		logger.Warn(ctx, "invalid remote logging settings", zap.Error(err))
		if err := a.log.Init(ctx, nil); err != nil {
			logger.Warn(ctx, "remote logging unavailable", zap.Error(err))
		}
	} else if err := a.log.Init(ctx, &update); err != nil {
		logger.Warn(ctx, "remote logging unavailable", zap.Error(err))
	}

	a.rum = rum.New(rum.SettingsFromConfig(cfg.Telemetry), rum.NewOTELFactory(tel), logger)
	if err := a.rum.Init(ctx); err != nil {
		logger.Warn(ctx, "rum unavailable", zap.Error(err))
	}

	a.watchConfig(ctx, configPath)

	logger.Debug(ctx, "reqtrace initialized",
		zap.String("endpoint", cfg.Client.Endpoint),
		zap.Bool("rum", a.rum.Initialized()),
		zap.Bool("remote_logs", remote.Initialized()),
		zap.Bool("telemetry", tel.IsEnabled()),
	)
	return a, nil
}

func initLogger(cfg *config.Config, override, fallback string) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	lvl, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	lc.Level = lvl
	lc.Format = cfg.Logging.Format
	lc.Output = fallback
	if override != "" {
		lc.Output = override
	}
	return logging.NewLogger(lc)
}

// watchConfig re-applies the remote logging settings whenever the config
// file changes. A missing config directory disables watching.
func (a *app) watchConfig(ctx context.Context, path string) {
	w, err := config.NewWatcher(path,
		func(cfg *config.Config) {
			u, err := logging.RemoteUpdateFromConfig(cfg.Logging)
			if err != nil {
				a.logger.Warn(ctx, "ignoring reloaded logging settings", zap.Error(err))
				return
			}
			a.log.Configure(u)
			a.logger.Info(ctx, "logging settings reloaded",
				zap.Bool("local_only", cfg.Logging.LocalOnly),
				zap.String("remote_level", cfg.Logging.RemoteLevel))
		},
		func(err error) {
			a.logger.Warn(ctx, "config watcher error", zap.Error(err))
		},
	)
	if err != nil {
		a.logger.Debug(ctx, "config watcher unavailable", zap.Error(err))
		return
	}
	if err := w.Start(ctx); err != nil {
		w.Close()
		if !errors.Is(err, os.ErrNotExist) {
			a.logger.Debug(ctx, "config watcher not started", zap.Error(err))
		}
		return
	}
	a.watcher = w
}

// newSubmitter builds a submitter posting to endpoint, or to the configured
// client endpoint when endpoint is empty.
func (a *app) newSubmitter(endpoint string) *submission.Submitter {
	if endpoint == "" {
		endpoint = a.cfg.Client.Endpoint
	}
	client := tracehttp.NewClient(tracehttp.WithUserAgent("reqtrace/" + version))
	return submission.NewSubmitter(endpoint, client, a.rum, a.log)
}

// Close flushes telemetry and releases resources.
func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
	_ = a.logger.Close()
}
