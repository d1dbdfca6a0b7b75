package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/lofty-concierge/server/internal/agent/model"
)

const (
	ToolSaveLead                  = "save_lead"
	ToolGenerateQuoteAndDeal      = "generate_quote_and_deal"
	ToolCheckFinancingEligibility = "check_financing_eligibility"
	ToolGetSecureUploadLink       = "get_secure_upload_link"
	ToolCheckProjectStatus        = "check_project_status"
	ToolRequestImmediateCallback  = "request_immediate_callback"
)

// Side-effect labels reported to the caller.
const (
	EffectLeadCaptured      = "lead_captured"
	EffectQuoteGenerated    = "quote_generated"
	EffectFinancingOffered  = "financing_offered"
	EffectUploadLinkSent    = "upload_link_sent"
	EffectStatusChecked     = "status_checked"
	EffectCallbackRequested = "callback_requested"
)

const (
	DefaultFinancingOffer = "Eligible for: F&L Exclusive 8-Months Same-As-Cash Financing Program. (Approvals in 60 seconds)."
	DefaultUploadURL      = "https://forms.google.com/f-and-l-secure-upload"
)

// Deps are the collaborators the tools act through. Nil collaborators make the
// dependent tools report that the operation is unavailable.
type Deps struct {
	CRM       model.CRM
	Mailing   model.MailingList
	Telephony model.Telephony
	Documents model.DocumentStore
	Quotes    model.QuoteRenderer
	Gate      Gate

	// OperatorPhone receives internal lead and callback alerts.
	OperatorPhone string
	// QuoteBaseURL is the public base that serves /quotes/{filename}.
	QuoteBaseURL   string
	UploadURL      string
	FinancingOffer string
}

// Registry is the fixed set of tools offered to the model.
type Registry struct {
	tools []*Tool
	index map[string]*Tool
}

func NewRegistry(deps Deps) (*Registry, error) {
	if deps.UploadURL == "" {
		deps.UploadURL = DefaultUploadURL
	}
	if deps.FinancingOffer == "" {
		deps.FinancingOffer = DefaultFinancingOffer
	}
	deps.QuoteBaseURL = strings.TrimRight(deps.QuoteBaseURL, "/")

	r := &Registry{index: map[string]*Tool{}}
	for _, t := range []*Tool{
		saveLeadTool(deps),
		generateQuoteTool(deps),
		financingTool(deps),
		uploadLinkTool(deps),
		projectStatusTool(deps),
		callbackTool(deps),
	} {
		t.gate = deps.Gate
		if err := t.compile(); err != nil {
			return nil, err
		}
		r.tools = append(r.tools, t)
		r.index[t.Name] = t
	}
	return r, nil
}

// Tools returns the tools for a compose.ToolsNode.
func (r *Registry) Tools() []tool.BaseTool {
	out := make([]tool.BaseTool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

// Infos returns the tool descriptions bound to the chat model.
func (r *Registry) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("get tool info %s: %w", t.Name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// NormalizeArguments trims string parameters and coerces non-string values
// given for string parameters. Unknown tools and non-JSON input pass through.
func (r *Registry) NormalizeArguments(name, arguments string) string {
	t, ok := r.index[name]
	if !ok {
		return arguments
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil || m == nil {
		return arguments
	}
	for key, p := range t.Params {
		v, ok := m[key]
		if !ok || v == nil || p.Type != schema.String {
			continue
		}
		switch vv := v.(type) {
		case string:
			m[key] = strings.TrimSpace(vv)
		case float64:
			m[key] = strings.TrimSpace(fmt.Sprintf("%v", vv))
		default:
			m[key] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return arguments
	}
	return string(b)
}
