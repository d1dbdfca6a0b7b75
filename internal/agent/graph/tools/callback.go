package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

const (
	callbackRequested = "Priority Callback Requested. A Senior Project Manager will call you within 15 minutes."
	callbackLogged    = "Request logged. Our team will contact you shortly."
)

func callbackTool(deps Deps) *Tool {
	return &Tool{
		Name:        ToolRequestImmediateCallback,
		Description: "Ask a senior project manager to call the client back right away. Use when the client wants a person.",
		Params: map[string]*schema.ParameterInfo{
			"phone": {Type: schema.String, Desc: "Phone number to call back", Required: true},
			"query": {Type: schema.String, Desc: "Short summary of what the client needs", Required: true},
		},
		Fn: func(ctx context.Context, args Args) (string, error) {
			recordSideEffects(ctx, EffectCallbackRequested)
			status := alertOperator(ctx, deps, fmt.Sprintf("CALLBACK REQUEST: %s. Query: %s", args.String("phone"), args.String("query")))
			if status == smsAlertSent {
				return callbackRequested, nil
			}
			return callbackLogged, nil
		},
	}
}
