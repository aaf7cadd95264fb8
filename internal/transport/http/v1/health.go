package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	ServiceName = "Multiplatform Deep Researcher"
	Version     = "1.0.0"
)

// Root identifies the service.
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"name":    ServiceName,
		"version": Version,
		"status":  "operational",
	})
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// HealthDetailed checks the LLM gateway and the trace store and reports
// registry usage. A failing dependency degrades the status but never fails
// the request.
func (h *Handler) HealthDetailed(c echo.Context) error {
	ctx := c.Request().Context()
	status := "healthy"
	checks := map[string]interface{}{}

	start := time.Now()
	if err := h.service.CheckLLM(ctx); err != nil {
		status = "degraded"
		checks["llm"] = map[string]interface{}{"status": "error", "error": err.Error()}
	} else {
		checks["llm"] = map[string]interface{}{
			"status":           "healthy",
			"response_time_ms": time.Since(start).Milliseconds(),
		}
	}

	if err := h.service.CheckStore(ctx); err != nil {
		status = "degraded"
		checks["store"] = map[string]interface{}{"status": "error", "error": err.Error()}
	} else {
		checks["store"] = map[string]interface{}{"status": "healthy"}
	}

	stats := h.service.Stats()
	checks["sessions"] = map[string]interface{}{
		"status":      "healthy",
		"active":      stats.Sessions,
		"subscribers": stats.Subscribers,
	}
	checks["mode"] = map[string]interface{}{
		"status": "healthy",
		"mode":   h.service.Config().Mode,
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
		"checks":    checks,
	})
}

// Ready is the readiness probe. It fails without an LLM API key in live mode.
func (h *Handler) Ready(c echo.Context) error {
	ready, reason := h.service.Ready()
	if !ready {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{"ready": false, "reason": reason})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ready": true})
}

// Live is the liveness probe.
func (h *Handler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"alive": true})
}
