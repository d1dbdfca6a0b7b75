package tools

import (
	"context"

	"github.com/lofty-concierge/server/internal/policy"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

// Gate decides whether a tool call may run in the current scope.
type Gate interface {
	Allow(ctx context.Context, toolName string, sc Scope, args Args) (bool, string)
}

// PolicyGate evaluates the OPA tool policy. Evaluation errors block the call.
type PolicyGate struct {
	Engine *policy.Engine
}

func (g PolicyGate) Allow(ctx context.Context, toolName string, sc Scope, args Args) (bool, string) {
	if g.Engine == nil {
		return true, "no policy"
	}
	decision, err := g.Engine.Evaluate(ctx, policy.Input{
		Tool:    toolName,
		Mode:    sc.Mode(),
		Segment: string(sc.Segment),
		Args:    args,
	})
	if err != nil {
		logx.Error().Err(err).Str("tool_name", toolName).Msg("tool policy evaluation failed")
		return false, "policy error"
	}
	return decision == policy.DecisionAllow, decision
}
