// Package httpapi exposes the concierge over HTTP: the chat endpoint, quote
// feedback pages, the client portal and the telephony webhooks.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lofty-concierge/server/internal/agent/model"
	errx "github.com/lofty-concierge/server/internal/core/error"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

// Turns is the conversation surface the handlers drive.
type Turns interface {
	HandleTurn(ctx context.Context, in model.TurnInput) (*model.TurnOutput, error)
	Reset(ctx context.Context, sessionID string) error
}

type Config struct {
	Addr       string `envconfig:"HTTP_ADDR" default:":8000"`
	WebsiteURL string `envconfig:"WEBSITE_URL" default:"https://www.fandldesignbuilders.com"`
	// QuotesDir is served under /quotes.
	QuotesDir string `ignored:"true"`
}

// Handler handles inbound HTTP requests.
type Handler struct {
	turns     Turns
	crm       model.CRM
	documents model.DocumentStore
	telephony model.Telephony
	cfg       Config
}

// NewHandler creates a new handler. Documents and telephony may be nil.
func NewHandler(turns Turns, crm model.CRM, documents model.DocumentStore, telephony model.Telephony, cfg Config) *Handler {
	return &Handler{
		turns:     turns,
		crm:       crm,
		documents: documents,
		telephony: telephony,
		cfg:       cfg,
	}
}

// RegisterRoutes registers all routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	// Conversation
	e.POST("/v1/chat", h.Chat)
	e.POST("/v1/sessions/:session_id/reset", h.ResetSession)
	e.POST("/capture-lead", h.CaptureLead)

	// Quotes
	e.GET("/quote/accept", h.AcceptQuote)
	e.GET("/quote/reject", h.RejectQuoteForm)
	e.POST("/quote/reject/submit", h.RejectQuoteSubmit)
	if h.cfg.QuotesDir != "" {
		e.Static("/quotes", h.cfg.QuotesDir)
	}

	// Client portal
	e.POST("/portal/get-data", h.PortalData)

	// Telephony
	e.POST("/twilio/voice", h.TwilioVoice)
	e.POST("/twilio/sms", h.TwilioSMS)
}

// NewServer builds an echo instance with recovery, CORS and request logging.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logx.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = logx.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("HTTP request")
			return nil
		},
	}))

	h.RegisterRoutes(e)
	return e
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "active",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeError maps an error to its status and a message that is safe to show.
func writeError(c echo.Context, err error) error {
	status := errx.StatusOf(err)
	msg := errx.SystemErrorMessage
	var appErr *errx.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		msg = appErr.Message
	}
	return c.JSON(status, errorResponse{Error: msg, Retryable: errx.IsRetryable(err)})
}
