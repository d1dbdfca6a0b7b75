package quotepdf

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"

	"github.com/lofty-concierge/server/internal/agent/model"
)

type Config struct {
	OutputDir  string `envconfig:"QUOTE_OUTPUT_DIR" default:"generated_quotes"`
	APIBaseURL string `envconfig:"API_BASE_URL" default:"http://localhost:8000"`
}

// Renderer writes branded PDF quotes whose accept and reject buttons carry the deal id.
type Renderer struct {
	dir     string
	apiBase string
	now     func() time.Time
}

func New(cfg Config) (*Renderer, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create quote directory: %w", err)
	}
	return &Renderer{
		dir:     cfg.OutputDir,
		apiBase: strings.TrimRight(cfg.APIBaseURL, "/"),
		now:     time.Now,
	}, nil
}

// Dir is where quotes are written and served from.
func (r *Renderer) Dir() string {
	return r.dir
}

// AcceptURL and RejectURL are the feedback links printed on a quote.
func (r *Renderer) AcceptURL(dealID string) string {
	return r.apiBase + "/quote/accept?deal_id=" + url.QueryEscape(dealID)
}

func (r *Renderer) RejectURL(dealID string) string {
	return r.apiBase + "/quote/reject?deal_id=" + url.QueryEscape(dealID)
}

// Filename is Quote_<name>_<yyyymmdd>.pdf with the name reduced to safe characters.
func (r *Renderer) Filename(clientName string) string {
	return fmt.Sprintf("Quote_%s_%s.pdf", safeName(clientName), r.now().Format("20060102"))
}

func (r *Renderer) RenderQuote(ctx context.Context, req model.QuoteRequest) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	dealID := req.DealID
	if dealID == "" {
		dealID = "000"
	}

	filename := r.Filename(req.ClientName)
	path := filepath.Join(r.dir, filename)

	pdf := fpdf.New("P", "pt", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(50, 50, 50)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	width, height := pdf.GetPageSize()

	// header band
	pdf.SetFillColor(217, 166, 33)
	pdf.Rect(0, 0, width, 100, "F")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.Text(50, 60, "F&L DESIGN BUILDERS")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(50, 80, "Luxury Design & Construction | Woman-Owned")

	// client details
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Text(50, 150, tr("Prepared For: "+req.ClientName))
	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(50, 170, tr("Project: "+req.ProjectType))
	pdf.Text(50, 190, "Date: "+r.now().Format("January 02, 2006"))

	// estimate
	pdf.SetLineWidth(1)
	pdf.Line(50, 220, width-50, 220)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Text(50, 260, "Estimated Investment")
	pdf.SetFont("Helvetica", "B", 30)
	pdf.SetTextColor(217, 166, 33)
	pdf.Text(50, 300, tr(formatBudget(req.Budget)))
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(50, 320, "*Includes initial design, labor, and standard materials.")

	pdf.SetFont("Helvetica", "I", 12)
	pdf.SetTextColor(0, 0, 139)
	pdf.Text(50, 360, "Payment Option: 8-Months Same-As-Cash Financing Available.")
	pdf.SetTextColor(0, 0, 0)
	pdf.Text(50, 380, "Exclusive: Includes complimentary Venicasa Furniture Consultation.")

	button(pdf, 50, 460, "ACCEPT QUOTE", [3]int{51, 153, 51}, r.AcceptURL(dealID))
	button(pdf, 300, 460, "REJECT / FEEDBACK", [3]int{204, 51, 51}, r.RejectURL(dealID))

	pdf.SetTextColor(128, 128, 128)
	pdf.SetFont("Helvetica", "", 9)
	pdf.Text(50, height-50, "F&L Design Builders | 7315 Wisconsin Avenue, Bethesda, MD | (202) 361-3592")

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", "", fmt.Errorf("write quote pdf: %w", err)
	}
	return path, filename, nil
}

func button(pdf *fpdf.Fpdf, x, y float64, label string, rgb [3]int, link string) {
	const w, h = 200.0, 40.0
	pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
	pdf.Rect(x, y, w, h, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Text(x+(w-pdf.GetStringWidth(label))/2, y+25, label)
	pdf.LinkString(x, y, w, h, link)
}

func formatBudget(budget string) string {
	b := strings.TrimSpace(budget)
	if b == "" {
		return "To be confirmed"
	}
	if strings.HasPrefix(b, "$") {
		return b
	}
	return "$" + b
}

func safeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == ' ':
			sb.WriteRune('_')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'):
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "Client"
	}
	return sb.String()
}

var _ model.QuoteRenderer = (*Renderer)(nil)
