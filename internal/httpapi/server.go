package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/engine"
	"github.com/xef5000/UltimateLogger/logstore/ingest"
)

const (
	logMsgRequest       = "http request"
	logMsgRequestFailed = "http request failed"
	logMsgListening     = "http api listening"
	logAttrMethod       = "method"
	logAttrURI          = "uri"
	logAttrStatus       = "status"
	logAttrLatencyMS    = "latency_ms"
	logAttrError        = "error"
	logAttrAddress      = "address"
	tracingOperation    = "ultimatelogger.http"
)

// LogEngine is the part of *engine.Engine the API serves.
type LogEngine interface {
	Submit(recordType string, payload logstore.Payload) (*ingest.Receipt, bool)
	GetPage(ctx context.Context, page, pageSize int, filter logstore.Filter) ([]logstore.Record, error)
	GetByID(ctx context.Context, id int64) (logstore.Record, error)
	DeleteByID(ctx context.Context, id int64) (bool, error)
	SetArchived(ctx context.Context, id int64, archived bool) (bool, error)
	ClearMatching(ctx context.Context, filter logstore.Filter) (int64, error)
	CleanupExpired(ctx context.Context) (int64, error)
	ListKnownTypes(ctx context.Context) ([]string, error)
	FilterableParameters(typeID string) ([]logstore.Parameter, bool)
	Stats() engine.Stats
}

// Server routes HTTP requests to a LogEngine.
type Server struct {
	echo    *echo.Echo
	engine  LogEngine
	logger  *slog.Logger
	metrics *httpMetrics
	tracing bool
}

type Option func(*Server)

// WithLogger logs every request at debug level and failed requests at error level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTracing wraps every request in an OpenTelemetry server span using the global providers.
func WithTracing() Option {
	return func(s *Server) {
		s.tracing = true
	}
}

func New(logEngine LogEngine, options ...Option) *Server {
	s := &Server{
		echo:    echo.New(),
		engine:  logEngine,
		metrics: newHTTPMetrics(),
	}

	for _, option := range options {
		option(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.JSONSerializer = jsonSerializer{}
	s.echo.HTTPErrorHandler = s.handleError

	if s.tracing {
		s.echo.Use(echo.WrapMiddleware(otelhttp.NewMiddleware(tracingOperation)))
	}
	s.echo.Use(middleware.Recover())
	if s.logger != nil {
		s.echo.Use(s.requestLogger())
	}
	s.echo.Use(s.metrics.middleware)

	s.routes()

	return s
}

func (s *Server) routes() {
	s.echo.POST("/logs", s.handleSubmit)
	s.echo.GET("/logs", s.handleListPage)
	s.echo.POST("/logs/clear", s.handleClear)
	s.echo.GET("/logs/:id", s.handleGet)
	s.echo.DELETE("/logs/:id", s.handleDelete)
	s.echo.PUT("/logs/:id/archive", s.handleArchive)
	s.echo.DELETE("/logs/:id/archive", s.handleUnarchive)
	s.echo.POST("/maintenance/cleanup", s.handleCleanup)
	s.echo.GET("/types", s.handleListTypes)
	s.echo.GET("/types/:type/parameters", s.handleParameters)
	s.echo.GET("/stats", s.handleStats)
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.handler()))
}

// Handler returns the routed echo instance.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on address until Shutdown is called. http.ErrServerClosed is not reported.
func (s *Server) Start(address string) error {
	if s.logger != nil {
		s.logger.Info(logMsgListening, logAttrAddress, address)
	}

	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				logAttrMethod, v.Method,
				logAttrURI, v.URI,
				logAttrStatus, v.Status,
				logAttrLatencyMS, v.Latency.Milliseconds(),
			}

			if v.Error != nil && v.Status >= http.StatusInternalServerError {
				s.logger.ErrorContext(c.Request().Context(), logMsgRequestFailed, append(args, logAttrError, v.Error.Error())...)
				return nil
			}

			s.logger.DebugContext(c.Request().Context(), logMsgRequest, args...)

			return nil
		},
	})
}
