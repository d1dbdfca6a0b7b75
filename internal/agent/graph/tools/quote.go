package tools

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cloudwego/eino/schema"

	"github.com/lofty-concierge/server/internal/agent/model"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

func generateQuoteTool(deps Deps) *Tool {
	return &Tool{
		Name:        ToolGenerateQuoteAndDeal,
		Description: "Create a project in the CRM and generate a PDF quote for the client. Only call this when project type, budget, name, email and phone are all known.",
		Params: map[string]*schema.ParameterInfo{
			"project_type": {Type: schema.String, Desc: "Type of project, e.g. Kitchen, Bathroom, Whole Home", Required: true},
			"budget":       {Type: schema.String, Desc: "Budget as the client stated it, e.g. $45k", Required: true},
			"user_name":    {Type: schema.String, Desc: "Client full name", Required: true},
			"email":        {Type: schema.String, Desc: "Client email address", Required: true},
			"phone":        {Type: schema.String, Desc: "Client phone number", Required: true},
		},
		Fn: func(ctx context.Context, args Args) (string, error) {
			project, budget := args.String("project_type"), args.String("budget")
			name, email, phone := args.String("user_name"), args.String("email"), args.String("phone")

			contactID, err := ensureContact(ctx, deps, name, email, phone)
			if err != nil {
				logx.Error().Err(err).Str("tool_name", ToolGenerateQuoteAndDeal).Msg("crm contact upsert failed")
				return "Quote Not Generated: the client record could not be saved. Please try again shortly.", nil
			}

			dealID, err := deps.CRM.CreateDeal(ctx, model.DealInput{
				ContactID:   contactID,
				ProjectType: project,
				Amount:      ParseBudget(budget),
				Note:        fmt.Sprintf("Budget stated by client: %s", budget),
			})
			if err != nil {
				logx.Error().Err(err).Str("tool_name", ToolGenerateQuoteAndDeal).Msg("crm deal creation failed")
				return "Quote Not Generated: the project could not be created in the CRM. Please try again shortly.", nil
			}
			recordSideEffects(ctx, EffectLeadCaptured)

			if deps.Quotes == nil {
				return renderFailure(dealID), nil
			}
			_, filename, err := deps.Quotes.RenderQuote(ctx, model.QuoteRequest{
				ClientName:  name,
				ProjectType: project,
				Budget:      budget,
				DealID:      dealID,
			})
			if err != nil {
				logx.Error().Err(err).Str("tool_name", ToolGenerateQuoteAndDeal).Str("deal_id", dealID).Msg("quote render failed after deal creation")
				return renderFailure(dealID), nil
			}

			recordSideEffects(ctx, EffectQuoteGenerated)
			return fmt.Sprintf("Quote Generated Successfully. Download Link: %s/quotes/%s", deps.QuoteBaseURL, url.PathEscape(filename)), nil
		},
	}
}

// renderFailure reports the deal that exists so an operator can finish the quote by hand.
func renderFailure(dealID string) string {
	return fmt.Sprintf("PDF Generation Error: the project was created in the CRM (Deal ID: %s) but the quote document could not be generated. A project manager will send the quote manually.", dealID)
}
