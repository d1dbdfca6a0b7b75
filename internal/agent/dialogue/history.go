package dialogue

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// SanitizeHistory copies msgs so that no assistant message has empty text.
// Empty assistant messages get the placeholder; stored messages are not mutated.
func SanitizeHistory(msgs []*schema.Message, placeholder string) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.Role == schema.System {
			continue
		}
		cp := *m
		if cp.Role == schema.Assistant && strings.TrimSpace(cp.Content) == "" {
			cp.Content = placeholder
		}
		out = append(out, &cp)
	}
	return out
}

// trimTail keeps at most maxMessages of the most recent messages and then
// advances to the first user message so tool results are never orphaned.
func trimTail(messages []*schema.Message, maxMessages int) []*schema.Message {
	if maxMessages <= 0 || len(messages) <= maxMessages {
		return messages
	}
	source := messages[len(messages)-maxMessages:]
	for i, m := range source {
		if m.Role == schema.User {
			return source[i:]
		}
	}
	return nil
}
