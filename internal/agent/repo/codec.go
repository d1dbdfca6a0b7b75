package repo

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// storedMessage is the persisted shape of a message. Provider metadata and
// usage are not kept.
type storedMessage struct {
	Role       schema.RoleType   `json:"role"`
	Content    string            `json:"content"`
	Name       string            `json:"name,omitempty"`
	ToolCalls  []schema.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolName   string            `json:"tool_name,omitempty"`
}

func encodeMessage(m *schema.Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("nil message")
	}
	b, err := json.Marshal(storedMessage{
		Role:       m.Role,
		Content:    m.Content,
		Name:       m.Name,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		ToolName:   m.ToolName,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return b, nil
}

func decodeMessage(b []byte) (*schema.Message, error) {
	var s storedMessage
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &schema.Message{
		Role:       s.Role,
		Content:    s.Content,
		Name:       s.Name,
		ToolCalls:  s.ToolCalls,
		ToolCallID: s.ToolCallID,
		ToolName:   s.ToolName,
	}, nil
}
