package tools

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/lofty-concierge/server/internal/agent/model"
)

// Scope is the part of the turn a tool may depend on.
type Scope struct {
	Admin   bool
	Segment model.Segment
}

func (s Scope) Mode() string {
	if s.Admin {
		return "admin"
	}
	return "customer"
}

// scopeFrom reads the turn scope from graph state. Outside a graph run it is the zero Scope.
func scopeFrom(ctx context.Context) Scope {
	var sc Scope
	_ = compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
		sc = Scope{Admin: s.Classification.Admin, Segment: s.Classification.Segment}
		return nil
	})
	return sc
}

// recordSideEffects adds caller-visible labels to the turn. Outside a graph run it is a no-op.
func recordSideEffects(ctx context.Context, labels ...string) {
	_ = compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
		for _, l := range labels {
			s.AddSideEffect(l)
		}
		return nil
	})
}
