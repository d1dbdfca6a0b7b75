package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/lofty-concierge/server/internal/agent/model"
	errx "github.com/lofty-concierge/server/internal/core/error"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

const (
	fieldSegment   = "segment"
	fieldStage     = "stage"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// RedisSessionStore keeps each session as a message list plus a meta hash.
// The segment is written with HSETNX so the first classification sticks.
type RedisSessionStore struct {
	rdb redis.Cmdable
	ttl time.Duration
	now func() time.Time
}

func NewRedisSessionStore(rdb redis.Cmdable, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func (r *RedisSessionStore) messagesKey(sessionID string) string {
	return fmt.Sprintf("session:%s:messages", sessionID)
}

func (r *RedisSessionStore) metaKey(sessionID string) string {
	return fmt.Sprintf("session:%s:meta", sessionID)
}

func (r *RedisSessionStore) Load(ctx context.Context, sessionID string) (*model.Session, error) {
	msgKey, metaKey := r.messagesKey(sessionID), r.metaKey(sessionID)

	var rowsCmd *redis.StringSliceCmd
	var metaCmd *redis.MapStringStringCmd
	_, err := r.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		rowsCmd = p.LRange(ctx, msgKey, 0, -1)
		metaCmd = p.HGetAll(ctx, metaKey)
		return nil
	})
	if err != nil && err != redis.Nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to load session from redis")
		return nil, errx.WrapRedis(err)
	}

	meta := metaCmd.Val()
	session := &model.Session{
		ID:       sessionID,
		Segment:  model.Segment(meta[fieldSegment]),
		Stage:    model.DialogueStage(meta[fieldStage]),
		Messages: make([]*schema.Message, 0, len(rowsCmd.Val())),
	}
	session.CreatedAt = parseUnix(meta[fieldCreatedAt])
	session.UpdatedAt = parseUnix(meta[fieldUpdatedAt])

	for i, s := range rowsCmd.Val() {
		m, err := decodeMessage([]byte(s))
		if err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("message at index %d: %w", i, err)
		}
		session.Messages = append(session.Messages, m)
	}
	return session, nil
}

func (r *RedisSessionStore) Apply(ctx context.Context, sessionID string, update model.SessionUpdate) error {
	rows := make([]any, 0, len(update.Append))
	for _, m := range update.Append {
		b, err := encodeMessage(m)
		if err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal message")
			return err
		}
		rows = append(rows, b)
	}

	msgKey, metaKey := r.messagesKey(sessionID), r.metaKey(sessionID)
	now := r.now().Unix()

	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(rows) > 0 {
			p.RPush(ctx, msgKey, rows...)
		}
		if update.Segment != model.SegmentUnset {
			p.HSetNX(ctx, metaKey, fieldSegment, string(update.Segment))
		}
		if update.Stage != model.StageUnknown {
			p.HSet(ctx, metaKey, fieldStage, string(update.Stage))
		}
		p.HSetNX(ctx, metaKey, fieldCreatedAt, now)
		p.HSet(ctx, metaKey, fieldUpdatedAt, now)
		// extend TTL on touch
		if r.ttl > 0 {
			p.Expire(ctx, msgKey, r.ttl)
			p.Expire(ctx, metaKey, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to apply session update to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionStore) Reset(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, r.messagesKey(sessionID), r.metaKey(sessionID)).Err(); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to delete session from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.SessionStore = (*RedisSessionStore)(nil)
