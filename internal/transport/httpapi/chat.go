package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lofty-concierge/server/internal/agent/model"
	errx "github.com/lofty-concierge/server/internal/core/error"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

// Chat runs one conversational turn.
// POST /v1/chat
func (h *Handler) Chat(c echo.Context) error {
	var in model.TurnInput
	if err := c.Bind(&in); err != nil {
		return writeError(c, errx.BadRequest("malformed JSON body"))
	}

	out, err := h.turns.HandleTurn(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ResetSession clears a session's history and segment.
// POST /v1/sessions/:session_id/reset
func (h *Handler) ResetSession(c echo.Context) error {
	id := c.Param("session_id")
	if err := h.turns.Reset(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"session_id": id,
		"status":     "reset",
	})
}

type captureLeadRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CaptureLead stores a contact submitted by a website form.
// POST /capture-lead
func (h *Handler) CaptureLead(c echo.Context) error {
	var req captureLeadRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errx.BadRequest("malformed JSON body"))
	}
	if strings.TrimSpace(req.Email) == "" {
		return writeError(c, errx.BadRequest("email is required"))
	}
	if h.crm == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "lead capture is not configured"})
	}

	id, err := h.crm.CreateOrFindContact(c.Request().Context(), req.Name, strings.TrimSpace(req.Email), req.Phone)
	if err != nil {
		logx.Error().Err(err).Msg("failed to capture lead")
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "failed to capture lead", Retryable: true})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":     "success",
		"contact_id": id,
	})
}
