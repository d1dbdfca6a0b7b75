package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/lofty-concierge/server/internal/agent/classifier"
	"github.com/lofty-concierge/server/internal/agent/dialogue"
	"github.com/lofty-concierge/server/internal/agent/model"
	"github.com/lofty-concierge/server/internal/agent/retriever"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

const (
	NodeClassifier        = "Classifier"
	NodeRetriever         = "Retriever"
	NodeDirective         = "Directive"
	NodeScripted          = "Scripted"
	NodeResponseChatModel = "ResponseChatModel"
	NodeToolExecutor      = "ToolExecutor"
	NodeFinalize          = "Finalize"
	NodeFallback          = "Fallback"
)

// NewClassifierPreHandler seeds the turn state from the request.
func NewClassifierPreHandler() func(context.Context, *model.TurnRequest, *model.AppState) (*model.TurnRequest, error) {
	return func(ctx context.Context, in *model.TurnRequest, s *model.AppState) (*model.TurnRequest, error) {
		if in == nil || in.Session == nil {
			return nil, fmt.Errorf("turn request without session")
		}
		s.TurnID = in.TurnID
		s.Session = in.Session
		s.Input = in.Input
		s.History = nil
		s.Produced = nil
		s.Iterations = 0
		s.LimitReached = false
		s.ToolCallIDSeq = 0
		s.ToolExecuted = false
		s.SideEffects = nil
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewClassifierNode resolves segment, intent and admin mode for the inbound text.
func NewClassifierNode(c *classifier.Classifier) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.TurnRequest) (model.Classification, error) {
		return c.Classify(in.Session, in.Input.Text), nil
	})
}

func NewClassifierPostHandler() func(context.Context, model.Classification, *model.AppState) (model.Classification, error) {
	return func(ctx context.Context, out model.Classification, s *model.AppState) (model.Classification, error) {
		s.Classification = out
		logx.Debug().
			Str("session_id", s.Session.ID).
			Str("turn_id", s.TurnID).
			Str("segment", string(out.Segment)).
			Str("intent", string(out.Intent)).
			Bool("admin", out.Admin).
			Msg("Turn classified")
		return out, nil
	}
}

// NewRetrieverNode looks up knowledge context for the stripped user text.
func NewRetrieverNode(r *retriever.Retriever) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, cl model.Classification) (string, error) {
		if strings.TrimSpace(cl.Text) == "" {
			return "", nil
		}
		return r.Retrieve(ctx, cl.Text, cl.Segment), nil
	})
}

func NewRetrieverPostHandler() func(context.Context, string, *model.AppState) (string, error) {
	return func(ctx context.Context, out string, s *model.AppState) (string, error) {
		s.Context = out
		return out, nil
	}
}

// NewDirectiveNode asks the dialogue controller for the turn directive and
// returns the model-facing message list.
func NewDirectiveNode(ctrl *dialogue.Controller) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, knowledge string) ([]*schema.Message, error) {
		var in dialogue.Input
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			in = dialogue.Input{
				Session:        s.Session,
				Classification: s.Classification,
				Context:        knowledge,
				Platform:       s.Input.Platform,
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		d, err := ctrl.Build(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("build directive: %w", err)
		}

		err = compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			s.Directive = d
			s.Produced = append(s.Produced, schema.UserMessage(in.Classification.Text))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		logx.Debug().
			Str("persona", string(d.Persona)).
			Str("stage", string(d.Stage)).
			Bool("conversion_due", d.ConversionDue).
			Bool("scripted", d.Verbatim != "").
			Int("message_count", len(d.Messages)).
			Msg("Directive ready")
		return d.Messages, nil
	})
}

// NewScriptedCondition routes verbatim scripted steps past the model.
func NewScriptedCondition() func(context.Context, []*schema.Message) (string, error) {
	return func(ctx context.Context, _ []*schema.Message) (string, error) {
		var verbatim bool
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			verbatim = s.Directive != nil && s.Directive.Verbatim != ""
			return nil
		})
		if err != nil {
			return "", err
		}
		if verbatim {
			return NodeScripted, nil
		}
		return NodeResponseChatModel, nil
	}
}

// NewScriptedNode emits the scripted step as the assistant reply.
func NewScriptedNode(policy *model.DialoguePolicy) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ []*schema.Message) (*model.TurnResult, error) {
		var res *model.TurnResult
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			text := s.Directive.Verbatim
			s.Produced = append(s.Produced, schema.AssistantMessage(text, nil))
			res = result(s, text)
			res.Stage = dialogue.NextStage(s.Directive, text, policy.Script)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		logx.Debug().Str("stage", string(res.Stage)).Msg("Scripted step delivered")
		return res, nil
	})
}

// NewResponseChatModelPreHandler accumulates the transcript the model sees.
func NewResponseChatModelPreHandler() func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		state.History = append(state.History, in...)
		state.Iterations++

		logx.Debug().Int("iteration", state.Iterations).Msg("AI thinking...")

		return state.History, nil
	}
}

// NewResponseChatModelPostHandler prices the call, fills missing tool call ids
// and records the assistant message.
func NewResponseChatModelPostHandler(
	modelName string,
	placeholder string,
) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			out = schema.AssistantMessage("", nil)
		}

		if out.ResponseMeta != nil {
			if cost, ok := model.ComputeCost(modelName, out.ResponseMeta.Usage); ok {
				state.TotalCostUSD += cost.TotalCost
				logx.Debug().
					Str("turn_id", state.TurnID).
					Str("node", NodeResponseChatModel).
					Str("model", modelName).
					Int("prompt_tokens", cost.PromptTokens).
					Int("completion_tokens", cost.CompletionTokens).
					Int("total_tokens", cost.TotalTokens).
					Float64("input_cost_usd", cost.InputCost).
					Float64("output_cost_usd", cost.OutputCost).
					Float64("total_cost_usd", cost.TotalCost).
					Float64("turn_cost_usd", state.TotalCostUSD).
					Msg("LLM usage")
			}
		}

		if len(out.ToolCalls) > 0 {
			ensureToolCallIDs(state, out)
			if strings.TrimSpace(out.Content) == "" {
				out.Content = placeholder
			}
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		} else {
			logx.Debug().Msg("AI response ready")
		}

		state.History = append(state.History, out)
		state.Produced = append(state.Produced, out)
		return out, nil
	}
}

// NewToolLoopCondition sends tool calls to the executor until the iteration cap,
// then to the fallback. Plain replies finish the turn.
func NewToolLoopCondition(maxIterations int) func(context.Context, *schema.Message) (string, error) {
	maxIterations = normalizeMaxIterations(maxIterations)
	return func(ctx context.Context, out *schema.Message) (string, error) {
		if len(out.ToolCalls) == 0 {
			return NodeFinalize, nil
		}

		var iterations int
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			iterations = s.Iterations
			if iterations >= maxIterations {
				s.LimitReached = true
			}
			return nil
		})
		if err != nil {
			return "", err
		}

		if iterations >= maxIterations {
			logx.Warn().
				Int("iterations", iterations).
				Int("max_iterations", maxIterations).
				Msg("Tool loop limit reached - routing to fallback")
			return NodeFallback, nil
		}

		logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Routing to ToolExecutor")
		return NodeToolExecutor, nil
	}
}

func NewToolExecutorPreHandler() func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		state.ToolExecuted = true
		logx.Debug().
			Str("turn_id", state.TurnID).
			Int("iteration", state.Iterations).
			Int("tool_count", len(in.ToolCalls)).
			Msg("Tool execution attempt")
		return in, nil
	}
}

func NewToolExecutorPostHandler() func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, out []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		state.Produced = append(state.Produced, out...)
		return out, nil
	}
}

// NewFinalizeNode turns the last model message into the turn result.
func NewFinalizeNode(policy *model.DialoguePolicy) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, out *schema.Message) (*model.TurnResult, error) {
		var res *model.TurnResult
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			text := strings.TrimSpace(out.Content)
			if text == "" {
				text = policy.EmptyReply
				logx.Warn().Str("turn_id", s.TurnID).Msg("Model returned empty reply - using fallback text")
			}
			out.Content = text
			res = result(s, text)
			res.Stage = dialogue.NextStage(s.Directive, text, policy.Script)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return res, nil
	})
}

// NewFallbackNode closes a turn that hit the iteration cap with the apology text.
func NewFallbackNode(policy *model.DialoguePolicy) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ *schema.Message) (*model.TurnResult, error) {
		var res *model.TurnResult
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			s.Produced = dropPendingToolCall(s.Produced)
			s.Produced = append(s.Produced, schema.AssistantMessage(policy.Apology, nil))
			res = result(s, policy.Apology)
			res.Stage = dialogue.NextStage(s.Directive, "", policy.Script)
			res.Fallback = true
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return res, nil
	})
}
