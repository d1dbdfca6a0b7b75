package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lofty-concierge/server/internal/agent/model"
	errx "github.com/lofty-concierge/server/internal/core/error"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

type portalRequest struct {
	Email string `json:"email"`
}

type portalResponse struct {
	Found       bool               `json:"found"`
	ClientName  string             `json:"client_name"`
	ProjectName string             `json:"project_name"`
	Status      string             `json:"status"`
	Amount      string             `json:"amount,omitempty"`
	Files       []model.ClientFile `json:"files"`
}

// PortalData returns the client's project summary and shared files.
// POST /portal/get-data
func (h *Handler) PortalData(c echo.Context) error {
	var req portalRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errx.BadRequest("malformed JSON body"))
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return writeError(c, errx.BadRequest("email is required"))
	}
	ctx := c.Request().Context()

	var deal *model.DealInfo
	if h.crm != nil {
		d, err := h.crm.FindDealByEmail(ctx, email)
		if err != nil {
			logx.Warn().Err(err).Msg("portal deal lookup failed")
		}
		deal = d
	}

	files := []model.ClientFile{}
	if h.documents != nil {
		found, err := h.documents.ListClientFiles(ctx, email)
		if err != nil {
			logx.Warn().Err(err).Msg("portal file lookup failed")
		}
		if found != nil {
			files = found
		}
	}

	if deal == nil {
		return c.JSON(http.StatusOK, portalResponse{
			Found:       len(files) > 0,
			ClientName:  "Valued Client",
			ProjectName: "No Active Deal Found",
			Status:      "Contact Admin",
			Files:       files,
		})
	}

	amount := deal.Amount
	if amount == "" {
		amount = "0"
	}
	return c.JSON(http.StatusOK, portalResponse{
		Found:       true,
		ClientName:  orDefault(deal.FirstName, "Valued Client"),
		ProjectName: orDefault(deal.Project, "Renovation Project"),
		Status:      orDefault(deal.Status, "In Progress"),
		Amount:      amount,
		Files:       files,
	})
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
