package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/lofty-concierge/server/internal/agent/graph/prompts"
	"github.com/lofty-concierge/server/internal/agent/model"
)

const (
	defaultTopic     = "Answer the client's question using the knowledge context. Keep it short and invite the next step."
	verbatimNote     = "Deliver the scripted discovery step exactly as written."
	verbatimViaModel = "Reply with exactly the following text and nothing else:\n"
)

type Config struct {
	Prompt     model.ResponsePromptConfig
	MaxHistory int
	// ScriptVerbatim emits scripted steps directly instead of asking the model to repeat them.
	ScriptVerbatim bool
}

// Controller selects the directive for a turn. It only reads the shared
// policy and is safe for concurrent use.
type Controller struct {
	policy *model.DialoguePolicy
	cfg    Config
}

func NewController(policy *model.DialoguePolicy, cfg Config) *Controller {
	return &Controller{policy: policy, cfg: cfg}
}

func (c *Controller) Policy() *model.DialoguePolicy {
	return c.policy
}

// Input is what the controller needs to decide one turn.
type Input struct {
	Session        *model.Session
	Classification model.Classification
	Context        string
	Platform       string
}

// Build composes the directive: persona, active instruction, optional verbatim
// scripted step, rendered system prompt and the sanitized message list.
func (c *Controller) Build(ctx context.Context, in Input) (*model.Directive, error) {
	cl := in.Classification
	d := &model.Directive{Stage: CurrentStage(in.Session, c.policy)}

	switch {
	case cl.Admin:
		d.Persona = model.PersonaAdmin
		d.Instruction = c.policy.Admin.Instruction
	case cl.Segment == model.SegmentRealtor:
		d.Persona = model.PersonaRealtor
		d.Instruction = joinBlocks(c.policy.Realtor.Focus, c.topic(cl.Intent))
	default:
		d.Persona = model.PersonaHomeowner
		c.homeownerStep(d, cl.Intent)
	}

	if !cl.Admin {
		d.ConversionDue = c.policy.Conversion.Due(in.Session.HumanMessageCount() + 1)
	}
	if d.ConversionDue {
		c.applyConversion(d)
	}

	if mod := c.policy.Platforms[strings.ToLower(strings.TrimSpace(in.Platform))]; mod != "" {
		d.Instruction = joinBlocks(d.Instruction, mod)
	}

	if d.Verbatim != "" && !c.cfg.ScriptVerbatim {
		d.Instruction = joinBlocks(verbatimViaModel+d.Verbatim, d.Instruction)
		d.Verbatim = ""
	}

	if d.Verbatim == "" {
		system, err := prompts.RenderSystem(ctx, d.Persona, prompts.SystemVars{
			BusinessName:  c.cfg.Prompt.BusinessName,
			AssistantName: c.cfg.Prompt.AssistantName,
			BrandRules:    c.policy.BrandRules,
			BookingLink:   c.policy.BookingLink,
			Instruction:   d.Instruction,
			Context:       in.Context,
		})
		if err != nil {
			return nil, fmt.Errorf("render system prompt: %w", err)
		}
		d.System = system
	}

	var stored []*schema.Message
	if in.Session != nil {
		stored = in.Session.Messages
	}
	history := trimTail(SanitizeHistory(stored, c.policy.Placeholder), c.cfg.MaxHistory)

	d.Messages = make([]*schema.Message, 0, len(history)+2)
	if d.System != "" {
		d.Messages = append(d.Messages, schema.SystemMessage(d.System))
	}
	d.Messages = append(d.Messages, history...)
	d.Messages = append(d.Messages, schema.UserMessage(cl.Text))
	return d, nil
}

// homeownerStep applies the style -> timeline -> booking script.
func (c *Controller) homeownerStep(d *model.Directive, intent model.Intent) {
	script := c.policy.Script
	switch d.Stage {
	case model.StageAskedStyle:
		d.Verbatim = script.Timeline.Text
		d.NextStage = model.StageAskedTimeline
	case model.StageAskedTimeline:
		d.Verbatim = script.Booking.Text
		d.NextStage = model.StageOfferedBooking
	default:
		if intent == model.IntentStartProject {
			d.Verbatim = script.Style.Text
			d.NextStage = model.StageAskedStyle
			break
		}
		d.Instruction = c.topic(intent)
		return
	}
	d.Instruction = verbatimNote
}

func (c *Controller) applyConversion(d *model.Directive) {
	conv := c.policy.Conversion
	if d.Verbatim != "" {
		if conv.VerbatimSuffix != "" && !strings.Contains(d.Verbatim, c.policy.BookingLink) {
			d.Verbatim = d.Verbatim + "\n\n" + conv.VerbatimSuffix
		}
		return
	}
	d.Instruction = joinBlocks(d.Instruction, conv.CallToAction)
}

func (c *Controller) topic(intent model.Intent) string {
	if g := c.policy.Guidance(intent); g != "" {
		return g
	}
	return defaultTopic
}

func joinBlocks(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
