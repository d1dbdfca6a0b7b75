package dialogue

import (
	"strings"

	"github.com/lofty-concierge/server/internal/agent/model"
)

// InferStage maps an assistant utterance to the script step it performed.
// Style and timeline are checked before booking because a scripted question
// may carry the booking link as a conversion suffix.
func InferStage(text string, script model.ScriptPolicy) model.DialogueStage {
	lower := strings.ToLower(text)
	switch {
	case matchesAny(lower, script.Style.Triggers):
		return model.StageAskedStyle
	case matchesAny(lower, script.Timeline.Triggers):
		return model.StageAskedTimeline
	case matchesAny(lower, script.Booking.Triggers):
		return model.StageOfferedBooking
	default:
		return model.StageUnknown
	}
}

// CurrentStage returns the persisted stage, or reconstructs it from history
// for sessions written before stages were stored.
func CurrentStage(session *model.Session, policy *model.DialoguePolicy) model.DialogueStage {
	if session == nil {
		return model.StageStart
	}
	if session.Stage != model.StageUnknown {
		return session.Stage
	}
	if st := InferStage(session.LastAssistantText(policy.Placeholder), policy.Script); st != model.StageUnknown {
		return st
	}
	return model.StageStart
}

// NextStage decides the stage to persist after a turn produced reply.
func NextStage(d *model.Directive, reply string, script model.ScriptPolicy) model.DialogueStage {
	if d == nil || d.Persona == model.PersonaAdmin {
		return model.StageUnknown
	}
	if d.NextStage != model.StageUnknown {
		return d.NextStage
	}
	if st := InferStage(reply, script); st != model.StageUnknown {
		return st
	}
	if d.Stage == model.StageUnknown {
		return model.StageStart
	}
	return d.Stage
}

func matchesAny(lower string, triggers []string) bool {
	for _, t := range triggers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
