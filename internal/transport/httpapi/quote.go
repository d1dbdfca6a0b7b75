package httpapi

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	logx "github.com/lofty-concierge/server/pkg/logger"
)

const (
	StageClosedWon  = "closedwon"
	StageClosedLost = "closedlost"
)

const pageStyle = `body { font-family: 'Helvetica', sans-serif; background: #f8f9fa; text-align: center; padding: 50px; }
.box { background: white; padding: 40px; border-radius: 8px; box-shadow: 0 4px 12px rgba(0,0,0,0.1); max-width: 500px; margin: auto; }
h1 { color: #d4af37; }
.btn { display: inline-block; background: black; color: #d4af37; padding: 12px 24px; text-decoration: none; border-radius: 4px; font-weight: bold; margin-top: 20px; border: none; cursor: pointer; }
.btn-reject { background: #dc3545; color: white; }
textarea { width: 100%; height: 100px; margin: 15px 0; padding: 10px; border: 1px solid #ccc; border-radius: 4px; }`

var (
	acceptPage = template.Must(template.New("accept").Parse(`<html>
<head><title>Quote Accepted - F&amp;L Design Builders</title><style>{{.Style}}</style></head>
<body>
<div class="box">
<h1>Thank You!</h1>
<p>We are thrilled to begin this journey with you.</p>
<p>Your acceptance has been confirmed. Our team will contact you shortly.</p>
<a href="{{.Website}}" class="btn">Return to Website</a>
</div>
</body>
</html>`))

	rejectPage = template.Must(template.New("reject").Parse(`<html>
<head><title>Quote Feedback</title><style>{{.Style}}</style></head>
<body>
<div class="box">
<h2>We Value Your Feedback</h2>
<p>Please let us know why this quote didn't work for you.</p>
<form action="/quote/reject/submit" method="post">
<input type="hidden" name="deal_id" value="{{.DealID}}">
<textarea name="reason" placeholder="Budget, Timing, Competitor..." required></textarea>
<button type="submit" class="btn btn-reject">Submit Feedback</button>
</form>
</div>
</body>
</html>`))

	thanksPage = template.Must(template.New("thanks").Parse(`<html><body style="text-align:center; padding:50px; font-family:Helvetica;"><h3>{{.Message}}</h3></body></html>`))
)

type pageData struct {
	Style   template.CSS
	Website string
	DealID  string
	Message string
}

func render(c echo.Context, status int, tmpl *template.Template, data pageData) error {
	data.Style = template.CSS(pageStyle)
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}

// AcceptQuote marks the deal won and thanks the client.
// GET /quote/accept?deal_id=
func (h *Handler) AcceptQuote(c echo.Context) error {
	dealID := strings.TrimSpace(c.QueryParam("deal_id"))
	if dealID == "" {
		return render(c, http.StatusBadRequest, thanksPage, pageData{Message: "This quote link is missing its reference."})
	}

	if h.crm != nil {
		if _, err := h.crm.UpdateDealStage(c.Request().Context(), dealID, StageClosedWon); err != nil {
			logx.Error().Err(err).Str("deal_id", dealID).Msg("failed to mark quote accepted")
		}
	}
	logx.Info().Str("deal_id", dealID).Msg("Quote accepted")
	return render(c, http.StatusOK, acceptPage, pageData{Website: h.cfg.WebsiteURL})
}

// RejectQuoteForm shows the feedback form.
// GET /quote/reject?deal_id=
func (h *Handler) RejectQuoteForm(c echo.Context) error {
	dealID := strings.TrimSpace(c.QueryParam("deal_id"))
	if dealID == "" {
		return render(c, http.StatusBadRequest, thanksPage, pageData{Message: "This quote link is missing its reference."})
	}
	return render(c, http.StatusOK, rejectPage, pageData{DealID: dealID})
}

// RejectQuoteSubmit marks the deal lost and records the reason as a note.
// POST /quote/reject/submit
func (h *Handler) RejectQuoteSubmit(c echo.Context) error {
	dealID := strings.TrimSpace(c.FormValue("deal_id"))
	reason := strings.TrimSpace(c.FormValue("reason"))
	if dealID == "" || reason == "" {
		return render(c, http.StatusBadRequest, thanksPage, pageData{Message: "Please include a reason with your feedback."})
	}

	if h.crm != nil {
		ctx := c.Request().Context()
		if _, err := h.crm.UpdateDealStage(ctx, dealID, StageClosedLost); err != nil {
			logx.Error().Err(err).Str("deal_id", dealID).Msg("failed to mark quote rejected")
		}
		if _, err := h.crm.AddNote(ctx, dealID, "REJECTED: "+reason); err != nil {
			logx.Error().Err(err).Str("deal_id", dealID).Msg("failed to record rejection reason")
		}
	}
	logx.Info().Str("deal_id", dealID).Msg("Quote rejected")
	return render(c, http.StatusOK, thanksPage, pageData{Message: "Thank you. Your feedback has been recorded."})
}
