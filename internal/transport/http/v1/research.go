package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/researcher/internal/domain"
	"github.com/xiaot623/gogo/researcher/internal/repository"
)

const defaultEventsLimit = 100

// CreateResearch starts a research session.
// POST /api/research
func (h *Handler) CreateResearch(c echo.Context) error {
	var req domain.CreateResearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "invalid request body"})
	}

	resp, err := h.service.CreateResearch(c.Request().Context(), req.Query)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: ve.Reason})
		}
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

// GetResearch returns the current snapshot of a session.
// GET /api/research/:session_id
func (h *Handler) GetResearch(c echo.Context) error {
	snap, err := h.service.GetResearch(c.Param("session_id"))
	if err != nil {
		return notFoundOr500(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// CancelResearch cancels a running session.
// DELETE /api/research/:session_id
func (h *Handler) CancelResearch(c echo.Context) error {
	snap, err := h.service.CancelResearch(c.Param("session_id"))
	if err != nil {
		return notFoundOr500(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// GetResearchEvents returns the recorded events of a session.
// GET /api/research/:session_id/events
func (h *Handler) GetResearchEvents(c echo.Context) error {
	sessionID := c.Param("session_id")
	limit := defaultEventsLimit
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}
	if limit > repository.MaxEventsPage {
		limit = repository.MaxEventsPage
	}
	afterSeq := uint64(0)
	if s := c.QueryParam("after_seq"); s != "" {
		if val, err := strconv.ParseUint(s, 10, 64); err == nil {
			afterSeq = val
		}
	}

	events, err := h.service.GetEvents(c.Request().Context(), sessionID, afterSeq, limit)
	if err != nil {
		return notFoundOr500(c, err)
	}
	if events == nil {
		events = []domain.Event{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"events":     events,
		"has_more":   len(events) == limit,
	})
}

func notFoundOr500(c echo.Context, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusNotFound, domain.ErrorResponse{Error: "Session not found"})
	}
	return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: err.Error()})
}
