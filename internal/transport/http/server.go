// Package http provides the public HTTP server of the research service.
package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/researcher/internal/config"
	"github.com/xiaot623/gogo/researcher/internal/service"
	v1 "github.com/xiaot623/gogo/researcher/internal/transport/http/v1"
	"github.com/xiaot623/gogo/researcher/internal/transport/ws"
)

// Server is the public HTTP and WebSocket server.
type Server struct {
	echo   *echo.Echo
	ws     *ws.Server
	logger *zap.Logger
}

// NewServer wires middleware, the REST API, the viewer endpoint and /metrics.
func NewServer(cfg *config.Config, svc *service.Service, gatherer prometheus.Gatherer, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowCredentials: true,
	}))

	createLimit, err := RateLimit(cfg.CreateRateLimitPerMin, cfg.RateLimitMaxClients)
	if err != nil {
		return nil, err
	}
	statusLimit, err := RateLimit(cfg.StatusRateLimitPerMin, cfg.RateLimitMaxClients)
	if err != nil {
		return nil, err
	}

	// Register routes
	v1.NewHandler(svc).RegisterRoutes(e, v1.Limits{Create: createLimit, Status: statusLimit})
	viewers := ws.NewServer(cfg, svc, logger)
	viewers.RegisterRoutes(e)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return &Server{echo: e, ws: viewers, logger: logger}, nil
}

// Echo exposes the router.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for open viewer streams to end.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	return s.ws.Wait(ctx)
}
