package tools

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

func financingTool(deps Deps) *Tool {
	return &Tool{
		Name:        ToolCheckFinancingEligibility,
		Description: "Check financing options when the client is worried about budget or asks about payment plans.",
		Params: map[string]*schema.ParameterInfo{
			"budget_concern": {Type: schema.String, Desc: "The client's budget concern in their own words"},
		},
		Fn: func(ctx context.Context, _ Args) (string, error) {
			recordSideEffects(ctx, EffectFinancingOffered)
			return deps.FinancingOffer, nil
		},
	}
}

func uploadLinkTool(deps Deps) *Tool {
	return &Tool{
		Name:        ToolGetSecureUploadLink,
		Description: "Get the secure link where clients upload photos, plans or documents.",
		Params:      map[string]*schema.ParameterInfo{},
		Fn: func(ctx context.Context, _ Args) (string, error) {
			recordSideEffects(ctx, EffectUploadLinkSent)
			return "Secure Upload Portal: " + deps.UploadURL, nil
		},
	}
}
