package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lofty-concierge/server/internal/agent/graph"
	"github.com/lofty-concierge/server/internal/agent/model"
	errx "github.com/lofty-concierge/server/internal/core/error"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

// persistTimeout bounds the write-back after a turn, which runs even when the
// caller has gone away so a produced reply is never lost.
const persistTimeout = 10 * time.Second

// Orchestrator runs one turn per inbound message: lock the session, load it,
// run the graph and persist what the turn produced.
type Orchestrator struct {
	store  model.SessionStore
	runner graph.Runner
	policy *model.DialoguePolicy
	cfg    model.ConversationConfig
	locks  *sessionLocks
	newID  func() string
}

func New(store model.SessionStore, runner graph.Runner, policy *model.DialoguePolicy, cfg model.ConversationConfig) *Orchestrator {
	return &Orchestrator{
		store:  store,
		runner: runner,
		policy: policy,
		cfg:    cfg,
		locks:  newSessionLocks(),
		newID:  func() string { return uuid.NewString() },
	}
}

// HandleTurn processes one message. Store failures return a retryable
// errx.AppError; every other failure still yields a plain-language reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, in model.TurnInput) (*model.TurnOutput, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	if in.SessionID == "" {
		return nil, errx.BadRequest("session_id is required")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, errx.BadRequest("message is required")
	}

	if o.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TurnTimeout)
		defer cancel()
	}

	unlock, err := o.locks.acquire(ctx, in.SessionID)
	if err != nil {
		return nil, errx.SessionUnavailable(fmt.Errorf("wait for session: %w", err))
	}
	defer unlock()

	turnID := o.newID()
	log := logx.Turn(in.SessionID, turnID)

	session, err := o.store.Load(ctx, in.SessionID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load session")
		return nil, errx.SessionUnavailable(err)
	}

	res, err := o.runner.Run(ctx, &model.TurnRequest{TurnID: turnID, Session: session, Input: in})
	if err != nil {
		log.Error().Err(err).Msg("turn failed")
		return o.output(o.policy.Apology, nil), nil
	}

	update := model.SessionUpdate{
		Append:  res.Messages,
		Segment: res.Segment,
		Stage:   res.Stage,
	}
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := o.store.Apply(persistCtx, in.SessionID, update); err != nil {
		log.Error().Err(err).Msg("failed to persist turn")
		return nil, errx.SessionUnavailable(err)
	}

	log.Info().
		Str("segment", string(res.Segment)).
		Str("stage", string(res.Stage)).
		Bool("tool_executed", res.ToolExecuted).
		Bool("fallback", res.Fallback).
		Strs("actions", res.SideEffects).
		Msg("Turn completed")

	return o.output(res.Text, res.SideEffects), nil
}

// Reset clears the session, including its sticky segment.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errx.BadRequest("session_id is required")
	}

	unlock, err := o.locks.acquire(ctx, sessionID)
	if err != nil {
		return errx.SessionUnavailable(fmt.Errorf("wait for session: %w", err))
	}
	defer unlock()

	if err := o.store.Reset(ctx, sessionID); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to reset session")
		return errx.SessionUnavailable(err)
	}
	logx.Info().Str("session_id", sessionID).Msg("Session reset")
	return nil
}

func (o *Orchestrator) output(text string, effects []string) *model.TurnOutput {
	if effects == nil {
		effects = []string{}
	}
	return &model.TurnOutput{
		ResponseText: text,
		SideEffects:  effects,
		QuickReplies: o.policy.QuickReplies,
	}
}
