package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lofty-concierge/server/internal/agent/model"
	"github.com/lofty-concierge/server/internal/integrations/twilio"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

const (
	smsSessionPrefix = "sms_"
	smsPlatform      = "sms"
)

// TwilioVoice answers an inbound call with TwiML.
// POST /twilio/voice
func (h *Handler) TwilioVoice(c echo.Context) error {
	if h.telephony == nil {
		return c.String(http.StatusServiceUnavailable, "telephony is not configured")
	}
	xml, err := h.telephony.RenderInboundCallResponse()
	if err != nil {
		logx.Error().Err(err).Msg("failed to render call response")
		return c.String(http.StatusInternalServerError, "failed to render call response")
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, []byte(xml))
}

// TwilioSMS runs a turn for an inbound text. The reply goes out through the
// REST API when telephony is enabled, otherwise inline as TwiML.
// POST /twilio/sms
func (h *Handler) TwilioSMS(c echo.Context) error {
	from := strings.TrimSpace(c.FormValue("From"))
	body := strings.TrimSpace(c.FormValue("Body"))
	if from == "" || body == "" {
		return c.String(http.StatusBadRequest, "From and Body are required")
	}
	ctx := c.Request().Context()

	out, err := h.turns.HandleTurn(ctx, model.TurnInput{
		SessionID: smsSessionPrefix + from,
		Text:      body,
		Platform:  smsPlatform,
	})
	if err != nil {
		logx.Error().Err(err).Msg("sms turn failed")
		return c.String(http.StatusServiceUnavailable, "temporarily unavailable")
	}

	if h.telephony != nil && h.telephony.Enabled() {
		if _, err := h.telephony.SendSMS(ctx, from, out.ResponseText); err != nil {
			logx.Error().Err(err).Msg("failed to send sms reply")
		}
		return c.String(http.StatusOK, "OK")
	}

	xml, err := twilio.RenderMessageResponse(out.ResponseText)
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to render reply")
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, []byte(xml))
}
