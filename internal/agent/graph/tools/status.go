package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	logx "github.com/lofty-concierge/server/pkg/logger"
)

const noActiveProject = "No active project found for this email. Please check with your Project Manager."

func projectStatusTool(deps Deps) *Tool {
	return &Tool{
		Name:        ToolCheckProjectStatus,
		Description: "Look up an existing client's project status and documents by email.",
		Params: map[string]*schema.ParameterInfo{
			"email": {Type: schema.String, Desc: "The email the client used with us", Required: true},
		},
		Fn: func(ctx context.Context, args Args) (string, error) {
			email := args.String("email")
			if deps.CRM == nil {
				return "Project lookup is temporarily unavailable. Please try again shortly.", nil
			}
			deal, err := deps.CRM.FindDealByEmail(ctx, email)
			if err != nil {
				logx.Error().Err(err).Str("tool_name", ToolCheckProjectStatus).Msg("crm deal lookup failed")
				return "Project lookup is temporarily unavailable. Please try again shortly.", nil
			}
			if deal == nil {
				return noActiveProject, nil
			}

			docs := "unavailable"
			if deps.Documents != nil {
				files, err := deps.Documents.ListClientFiles(ctx, email)
				if err != nil {
					logx.Warn().Err(err).Str("tool_name", ToolCheckProjectStatus).Msg("document listing failed")
				} else {
					docs = fmt.Sprintf("%d", len(files))
				}
			}

			who := deal.FirstName
			if who == "" {
				who = email
			}
			var b strings.Builder
			fmt.Fprintf(&b, "PROJECT STATUS for %s:\n", who)
			fmt.Fprintf(&b, "- PROJECT: %s\n", deal.Project)
			fmt.Fprintf(&b, "- CURRENT PHASE: %s\n", deal.Status)
			if deal.Amount != "" {
				fmt.Fprintf(&b, "- BUDGET: %s\n", deal.Amount)
			}
			fmt.Fprintf(&b, "- DOCUMENTS FOUND: %s\n", docs)
			if deal.Link != "" {
				fmt.Fprintf(&b, "- ACCESS PORTAL: %s", deal.Link)
			}
			recordSideEffects(ctx, EffectStatusChecked)
			return strings.TrimSpace(b.String()), nil
		},
	}
}
