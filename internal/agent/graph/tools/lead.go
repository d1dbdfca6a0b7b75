package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	logx "github.com/lofty-concierge/server/pkg/logger"
)

func saveLeadTool(deps Deps) *Tool {
	return &Tool{
		Name:        ToolSaveLead,
		Description: "Save the client's contact details as a lead. Call this as soon as the client has shared name, email and phone. Calling it again for the same email updates the existing record.",
		Params: map[string]*schema.ParameterInfo{
			"name":  {Type: schema.String, Desc: "Client full name", Required: true},
			"email": {Type: schema.String, Desc: "Client email address", Required: true},
			"phone": {Type: schema.String, Desc: "Client phone number", Required: true},
		},
		Fn: func(ctx context.Context, args Args) (string, error) {
			name, email, phone := args.String("name"), args.String("email"), args.String("phone")
			parts := []string{}

			contactID, err := ensureContact(ctx, deps, name, email, phone)
			if err != nil {
				logx.Error().Err(err).Str("tool_name", ToolSaveLead).Msg("crm contact upsert failed")
				parts = append(parts, "CRM Error: contact could not be saved")
			} else {
				parts = append(parts, "CRM ID: "+contactID)
			}

			parts = append(parts, syncMailingList(ctx, deps, name, email, phone))
			parts = append(parts, alertOperator(ctx, deps, fmt.Sprintf("NEW LEAD: %s (%s). Check the CRM now.", name, phone)))

			if err != nil {
				return "Lead Capture Incomplete: " + strings.Join(parts, ", ") + ".", nil
			}
			recordSideEffects(ctx, EffectLeadCaptured)
			return "Lead Securely Stored: " + strings.Join(parts, ", ") + ".", nil
		},
	}
}

// ensureContact creates or converges on the CRM contact for email.
func ensureContact(ctx context.Context, deps Deps, name, email, phone string) (string, error) {
	if deps.CRM == nil {
		return "", fmt.Errorf("crm not configured")
	}
	return deps.CRM.CreateOrFindContact(ctx, name, email, phone)
}

func syncMailingList(ctx context.Context, deps Deps, name, email, phone string) string {
	if deps.Mailing == nil {
		return "Mailing List Sync Skipped"
	}
	ok, err := deps.Mailing.UpsertSubscriber(ctx, name, email, phone)
	if err != nil || !ok {
		logx.Warn().Err(err).Str("tool_name", ToolSaveLead).Msg("mailing list sync failed")
		return "Mailing List Sync Failed"
	}
	return "Mailing List Sync OK"
}

const (
	smsAlertSent    = "SMS Alert Sent"
	smsAlertFailed  = "SMS Alert Failed"
	smsAlertSkipped = "SMS Alert Skipped"
)

// alertOperator texts the operator phone when telephony is configured.
func alertOperator(ctx context.Context, deps Deps, body string) string {
	if deps.Telephony == nil || !deps.Telephony.Enabled() || deps.OperatorPhone == "" {
		return smsAlertSkipped
	}
	id, err := deps.Telephony.SendSMS(ctx, deps.OperatorPhone, body)
	if err != nil || id == "" {
		logx.Warn().Err(err).Msg("operator sms alert failed")
		return smsAlertFailed
	}
	return smsAlertSent
}
