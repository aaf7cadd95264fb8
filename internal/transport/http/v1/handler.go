// Package v1 provides the REST handlers of the research service.
package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/researcher/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// Limits holds the per-route rate limiters. Nil entries disable limiting.
type Limits struct {
	Create echo.MiddlewareFunc
	Status echo.MiddlewareFunc
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the public routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo, limits Limits) {
	// Research API
	e.POST("/api/research", h.CreateResearch, middlewares(limits.Create)...)
	e.GET("/api/research/:session_id", h.GetResearch, middlewares(limits.Status)...)
	e.DELETE("/api/research/:session_id", h.CancelResearch, middlewares(limits.Status)...)
	e.GET("/api/research/:session_id/events", h.GetResearchEvents, middlewares(limits.Status)...)

	// Health
	e.GET("/", h.Root)
	e.GET("/api/health", h.Health)
	e.GET("/api/health/detailed", h.HealthDetailed)
	e.GET("/api/ready", h.Ready)
	e.GET("/api/live", h.Live)
}

func middlewares(m echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if m == nil {
		return nil
	}
	return []echo.MiddlewareFunc{m}
}
