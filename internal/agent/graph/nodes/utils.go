package nodes

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/lofty-concierge/server/internal/agent/model"
)

const DefaultMaxIterations = 5

// normalizeMaxIterations returns a sane default when the provided value is invalid.
func normalizeMaxIterations(n int) int {
	if n <= 0 {
		return DefaultMaxIterations
	}
	return n
}

// ensureToolCallIDs fills tool call ids some providers omit, using the turn's local sequence.
func ensureToolCallIDs(state *model.AppState, msg *schema.Message) {
	for i := range msg.ToolCalls {
		if strings.TrimSpace(msg.ToolCalls[i].ID) == "" {
			state.ToolCallIDSeq++
			msg.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
		}
	}
}

// dropPendingToolCall removes a trailing assistant message whose tool calls were never answered.
func dropPendingToolCall(msgs []*schema.Message) []*schema.Message {
	if n := len(msgs); n > 0 && msgs[n-1].Role == schema.Assistant && len(msgs[n-1].ToolCalls) > 0 {
		return msgs[:n-1]
	}
	return msgs
}

// result builds the graph output from state.
func result(state *model.AppState, text string) *model.TurnResult {
	return &model.TurnResult{
		Text:         text,
		SideEffects:  append([]string(nil), state.SideEffects...),
		ToolExecuted: state.ToolExecuted,
		Messages:     state.Produced,
		Segment:      state.Classification.Segment,
	}
}
