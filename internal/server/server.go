package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Fallback-Solutions/universal-router/internal/logging"
)

const (
	defaultShutdownGrace = 10 * time.Second
	// headroom over the quote deadline for encoding the response
	writeSlack = 5 * time.Second
)

type ServerConfig struct {
	Addr    string  // bind address, e.g. ":8090"
	DevMode bool    // include error details in responses
	APIKey  string  // optional, checked against X-API-Key
	Rate    float64 // quote requests per second per client, 0 disables
	Burst   int

	// ShutdownGrace bounds how long in-flight quotes may finish, 0 means 10s
	ShutdownGrace time.Duration
}

type ServerDeps struct {
	Handlers *Handlers
	Config   ServerConfig
}

// Server is the quote API. Shutdown may be called more than once; only the
// first call stops the listener.
type Server struct {
	e      *echo.Echo
	cfg    ServerConfig
	logger *logrus.Logger

	once        sync.Once
	shutdownErr error
	closed      chan struct{}
}

func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Handlers == nil || deps.Handlers.Quoter == nil {
		return nil, fmt.Errorf("server needs a quoter")
	}
	logger := deps.Handlers.Logger
	if logger == nil {
		logger = logging.Discard()
		deps.Handlers.Logger = logger
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = deps.Handlers.quoteTimeout() + writeSlack
	e.Server.IdleTimeout = 60 * time.Second

	RegisterRoutes(e, deps.Handlers, deps.Config)

	return &Server{e: e, cfg: deps.Config, logger: logger, closed: make(chan struct{})}, nil
}

// requestLogger writes one logrus line per request
func requestLogger(logger *logrus.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.Round(time.Microsecond).String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
				return nil
			}
			entry.Debug("request")
			return nil
		},
	})
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start() error {
	return s.e.Start(s.cfg.Addr)
}

// Shutdown stops accepting requests and waits for in-flight quotes up to
// the configured grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() {
		defer close(s.closed)

		grace := s.cfg.ShutdownGrace
		if grace <= 0 {
			grace = defaultShutdownGrace
		}
		ctx, cancel := context.WithTimeout(ctx, grace)
		defer cancel()

		if s.shutdownErr = s.e.Shutdown(ctx); s.shutdownErr != nil {
			s.logger.WithError(s.shutdownErr).Warn("quote api shutdown")
		}
	})
	return s.shutdownErr
}

// WaitClosed blocks until Shutdown has finished or ctx is done
func (s *Server) WaitClosed(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return nil
	}
}
