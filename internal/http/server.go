// Package http is the request receiver: the endpoint the submitter posts to.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/reqtrace/internal/logging"
	"github.com/fyrsmithlabs/reqtrace/internal/submission"
	"github.com/fyrsmithlabs/reqtrace/internal/telemetry"
	"github.com/fyrsmithlabs/reqtrace/internal/tracecontext"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server receives submitted requests.
type Server struct {
	echo     *echo.Echo
	logger   *logging.Logger
	config   *Config
	metrics  *HTTPMetrics
	received *prometheus.CounterVec
	registry *prometheus.Registry
	newID    func() string
}

// Config holds HTTP server configuration.
type Config struct {
	Host      string
	Port      int
	RateLimit float64 // requests per second; 0 disables limiting
	RateBurst int
}

// Option configures a Server.
type Option func(*Server)

// WithMeter records HTTP metrics on meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(s *Server) { s.metrics = newHTTPMetrics(meter, s.logger) }
}

// WithIDGenerator replaces uuid.NewString for acknowledgment ids.
func WithIDGenerator(f func() string) Option {
	return func(s *Server) { s.newID = f }
}

// NewServer creates a receiver.
func NewServer(logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9090}
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit cannot be negative: %v", cfg.RateLimit)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	registry := prometheus.NewRegistry()
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reqtrace",
		Subsystem: "receiver",
		Name:      "requests_total",
		Help:      "Submitted requests accepted by the receiver, by operation and priority",
	}, []string{"operation", "priority"})
	registry.MustRegister(
		received,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		echo:     e,
		logger:   logger,
		config:   cfg,
		received: received,
		registry: registry,
		newID:    uuid.NewString,
	}
	s.metrics = NewHTTPMetrics(logger)
	for _, opt := range opts {
		opt(s)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestContext)
	e.Use(s.metrics.MetricsMiddleware())
	if cfg.RateLimit > 0 {
		e.Use(rateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))))
	}

	s.registerRoutes()
	return s, nil
}

// requestContext puts the request id and the caller's trace context on the
// request context and logs each request.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		ctx := telemetry.Propagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx = logging.WithRequestID(ctx, c.Response().Header().Get(echo.HeaderXRequestID))
		c.SetRequest(req.WithContext(ctx))

		err := next(c)

		s.logger.Info(ctx, "http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

func rateLimit(l *rate.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	s.echo.POST("/api/requests", s.handleRequest)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleRequest(c echo.Context) error {
	ctx := c.Request().Context()

	var p submission.Payload
	if err := c.Bind(&p); err != nil {
		s.logger.Warn(ctx, "invalid request body", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := p.Validate(); err != nil {
		s.logger.Warn(ctx, "rejected request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	header := c.Request().Header.Get(tracecontext.HeaderName)
	if header != "" {
		if _, err := tracecontext.Parse(header); err != nil {
			s.logger.Warn(ctx, "malformed traceparent", zap.String("traceparent", header), zap.Error(err))
		}
	}

	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		traceID = sc.TraceID().String()
	}

	id := s.newID()
	s.received.WithLabelValues(string(p.Operation), string(p.Priority)).Inc()
	s.logger.Info(ctx, "request accepted",
		zap.String("id", id),
		zap.String("name", p.Name),
		zap.String("operation", string(p.Operation)),
		zap.String("priority", string(p.Priority)),
		zap.Bool("include_debug_metadata", p.IncludeDebugMetadata),
		zap.String("client_timestamp", p.ClientTimestamp),
	)

	return c.JSON(http.StatusCreated, AcceptedResponse{
		ID:      id,
		TraceID: traceID,
		Status:  StatusAccepted,
	})
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", s.Addr()))
	if err := s.echo.Start(s.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
