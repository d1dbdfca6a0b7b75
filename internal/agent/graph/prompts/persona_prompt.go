package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/lofty-concierge/server/internal/agent/model"
)

//go:embed template/homeowner.txt
var homeownerSystemPrompt string

//go:embed template/realtor.txt
var realtorSystemPrompt string

//go:embed template/admin.txt
var adminSystemPrompt string

// SystemVars are the values substituted into a persona template.
type SystemVars struct {
	BusinessName  string
	AssistantName string
	BrandRules    string
	BookingLink   string
	Instruction   string
	Context       string
}

func templateFor(p model.Persona) (string, error) {
	switch p {
	case model.PersonaHomeowner:
		return homeownerSystemPrompt, nil
	case model.PersonaRealtor:
		return realtorSystemPrompt, nil
	case model.PersonaAdmin:
		return adminSystemPrompt, nil
	default:
		return "", fmt.Errorf("unknown persona %q", p)
	}
}

// RenderSystem renders the persona system prompt through the eino prompt component
// so prompt callbacks observe it.
func RenderSystem(ctx context.Context, persona model.Persona, vars SystemVars) (string, error) {
	tplText, err := templateFor(persona)
	if err != nil {
		return "", err
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(tplText),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"BusinessName":  vars.BusinessName,
		"AssistantName": vars.AssistantName,
		"BrandRules":    strings.TrimSpace(vars.BrandRules),
		"BookingLink":   vars.BookingLink,
		"Instruction":   strings.TrimSpace(vars.Instruction),
		"Context":       strings.TrimSpace(vars.Context),
	})
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", persona, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", persona)
	}
	return strings.TrimSpace(msgs[0].Content), nil
}
