package model

import (
	"github.com/cloudwego/eino/schema"
)

// Intent is the per-turn topical bucket chosen by the classifier.
type Intent string

const (
	IntentHandoff      Intent = "handoff"
	IntentStartProject Intent = "start_project"
	IntentDesign       Intent = "design"
	IntentPricing      Intent = "pricing"
	IntentTimeline     Intent = "timeline"
	IntentPermits      Intent = "permits"
	IntentWhyUs        Intent = "why_us"
	IntentStatus       Intent = "status"
	IntentFollowUp     Intent = "follow_up"
	IntentGeneral      Intent = "general"
)

// Persona selects the system prompt family for a turn.
type Persona string

const (
	PersonaHomeowner Persona = "homeowner"
	PersonaRealtor   Persona = "realtor"
	PersonaAdmin     Persona = "admin"
)

// TurnInput is the inbound contract supplied by the transport layer.
type TurnInput struct {
	SessionID string `json:"session_id"`
	Text      string `json:"message"`
	Platform  string `json:"platform,omitempty"`
}

// QuickReply is a suggested button returned with a response.
type QuickReply struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// TurnOutput is the outbound contract returned to the transport layer.
type TurnOutput struct {
	ResponseText string       `json:"response"`
	SideEffects  []string     `json:"actions"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
}

// TurnRequest is the graph input: the loaded session plus the inbound message.
type TurnRequest struct {
	TurnID  string
	Session *Session
	Input   TurnInput
}

// Classification is the outcome of the classifier node.
type Classification struct {
	Segment Segment
	Intent  Intent
	Admin   bool
	// Text is the user text with the admin secret removed.
	Text string
}

// Directive is the composed instruction for one turn.
type Directive struct {
	Persona       Persona
	Stage         DialogueStage // stage the turn started in
	Instruction   string        // the active stage/topic instruction, CTA included
	System        string        // fully rendered system prompt
	Messages      []*schema.Message
	Verbatim      string        // non-empty when a scripted step bypasses the model
	NextStage     DialogueStage // stage forced by a scripted step, StageUnknown otherwise
	ConversionDue bool
}

// AppState stores per-turn state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen inside Eino state handlers or compose.ProcessState,
//     which serialize access, so no extra locking is needed.
//   - Persistence happens outside the graph from TurnResult.
type AppState struct {
	TurnID         string
	Session        *Session
	Input          TurnInput
	Classification Classification
	Context        string
	Directive      *Directive

	History  []*schema.Message // model-facing transcript: system + history + this turn
	Produced []*schema.Message // messages created this turn, persisted after the run

	Iterations    int  // generative calls made this turn
	LimitReached  bool // set when the model still wants tools at the cap
	ToolCallIDSeq int  // local sequence to synthesize tool_call_id when provider omits
	ToolExecuted  bool
	SideEffects   []string

	// Accumulated total LLM cost (USD) across model invocations for this turn
	TotalCostUSD float64
}

// AddSideEffect records a caller-visible label once.
func (s *AppState) AddSideEffect(label string) {
	if label == "" {
		return
	}
	for _, l := range s.SideEffects {
		if l == label {
			return
		}
	}
	s.SideEffects = append(s.SideEffects, label)
}

// TurnResult is the graph output.
type TurnResult struct {
	Text         string
	SideEffects  []string
	ToolExecuted bool
	Messages     []*schema.Message
	Segment      Segment
	Stage        DialogueStage
	Fallback     bool
}
