package model

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Segment is the sticky audience classification of a session.
type Segment string

const (
	SegmentUnset     Segment = ""
	SegmentHomeowner Segment = "homeowner"
	SegmentRealtor   Segment = "realtor"
)

// DialogueStage records where a session is in the style -> timeline -> booking script.
// StageUnknown means the stage was never persisted and must be inferred from history.
type DialogueStage string

const (
	StageUnknown        DialogueStage = ""
	StageStart          DialogueStage = "start"
	StageAskedStyle     DialogueStage = "asked_style"
	StageAskedTimeline  DialogueStage = "asked_timeline"
	StageOfferedBooking DialogueStage = "offered_booking"
)

// Session is the persisted conversation state for one session id.
type Session struct {
	ID        string
	Segment   Segment
	Stage     DialogueStage
	Messages  []*schema.Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HumanMessageCount returns the number of user messages in the session history.
func (s *Session) HumanMessageCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, m := range s.Messages {
		if m != nil && m.Role == schema.User {
			n++
		}
	}
	return n
}

// LastAssistantText returns the most recent assistant message carrying real text.
// Placeholder text written over tool-call-only messages is skipped.
func (s *Session) LastAssistantText(placeholder string) string {
	if s == nil {
		return ""
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m == nil || m.Role != schema.Assistant {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" || content == placeholder {
			continue
		}
		return content
	}
	return ""
}

// SessionUpdate is the result of one turn that must be written back.
type SessionUpdate struct {
	Append  []*schema.Message
	Segment Segment
	Stage   DialogueStage
}

type SessionStore interface {
	// Load returns the session, or a fresh empty session when the id is unknown.
	Load(ctx context.Context, sessionID string) (*Session, error)

	// Apply appends the turn's messages and records segment and stage.
	// A segment already stored for the session is never overwritten.
	Apply(ctx context.Context, sessionID string, update SessionUpdate) error

	// Reset removes all state for the session, including the sticky segment.
	Reset(ctx context.Context, sessionID string) error
}
