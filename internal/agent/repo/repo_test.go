package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lofty-concierge/server/internal/agent/model"
	errx "github.com/lofty-concierge/server/internal/core/error"
	"github.com/lofty-concierge/server/pkg/sqlite"
)

type storeFactory func(t *testing.T, ttl time.Duration) (model.SessionStore, func(d time.Duration))

func redisFactory(t *testing.T, ttl time.Duration) (model.SessionStore, func(d time.Duration)) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSessionStore(rdb, ttl), mr.FastForward
}

func sqliteFactory(t *testing.T, ttl time.Duration) (model.SessionStore, func(d time.Duration)) {
	cfg := sqlite.Config{Path: filepath.Join(t.TempDir(), "sessions.db")}
	db, err := cfg.New(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLiteSessionStore(context.Background(), db, ttl)
	require.NoError(t, err)

	clock := time.Now()
	store.now = func() time.Time { return clock }
	return store, func(d time.Duration) { clock = clock.Add(d) }
}

var factories = map[string]storeFactory{
	"redis":  redisFactory,
	"sqlite": sqliteFactory,
}

func TestUnknownSessionIsEmpty(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store, _ := factory(t, time.Hour)

			s, err := store.Load(context.Background(), "nobody")
			require.NoError(t, err)
			assert.Equal(t, "nobody", s.ID)
			assert.Empty(t, s.Messages)
			assert.Equal(t, model.SegmentUnset, s.Segment)
			assert.Equal(t, model.StageUnknown, s.Stage)
		})
	}
}

func TestApplyAppendsInOrder(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, _ := factory(t, time.Hour)

			call := schema.AssistantMessage("Processing...", []schema.ToolCall{{
				ID:       "call_1",
				Function: schema.FunctionCall{Name: "save_lead", Arguments: `{"email":"a@b.co"}`},
			}})
			require.NoError(t, store.Apply(ctx, "s1", model.SessionUpdate{
				Append:  []*schema.Message{schema.UserMessage("hi"), call, schema.ToolMessage("Lead Securely Stored", "call_1")},
				Segment: model.SegmentHomeowner,
				Stage:   model.StageStart,
			}))
			require.NoError(t, store.Apply(ctx, "s1", model.SessionUpdate{
				Append: []*schema.Message{schema.AssistantMessage("done", nil)},
			}))

			s, err := store.Load(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, s.Messages, 4)
			assert.Equal(t, "hi", s.Messages[0].Content)
			assert.Equal(t, "save_lead", s.Messages[1].ToolCalls[0].Function.Name)
			assert.Equal(t, "call_1", s.Messages[2].ToolCallID)
			assert.Equal(t, "done", s.Messages[3].Content)
			assert.Equal(t, model.StageStart, s.Stage, "unknown stage keeps the stored one")
			assert.False(t, s.CreatedAt.IsZero())
		})
	}
}

func TestSegmentIsSticky(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, _ := factory(t, time.Hour)

			require.NoError(t, store.Apply(ctx, "s2", model.SessionUpdate{Segment: model.SegmentRealtor, Stage: model.StageStart}))
			require.NoError(t, store.Apply(ctx, "s2", model.SessionUpdate{Segment: model.SegmentHomeowner, Stage: model.StageAskedStyle}))

			s, err := store.Load(ctx, "s2")
			require.NoError(t, err)
			assert.Equal(t, model.SegmentRealtor, s.Segment)
			assert.Equal(t, model.StageAskedStyle, s.Stage)
		})
	}
}

func TestResetClearsSegment(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, _ := factory(t, time.Hour)

			require.NoError(t, store.Apply(ctx, "s3", model.SessionUpdate{
				Append:  []*schema.Message{schema.UserMessage("sell my house")},
				Segment: model.SegmentRealtor,
			}))
			require.NoError(t, store.Reset(ctx, "s3"))

			s, err := store.Load(ctx, "s3")
			require.NoError(t, err)
			assert.Empty(t, s.Messages)
			assert.Equal(t, model.SegmentUnset, s.Segment)
		})
	}
}

func TestSessionExpires(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, advance := factory(t, time.Minute)

			require.NoError(t, store.Apply(ctx, "s4", model.SessionUpdate{
				Append:  []*schema.Message{schema.UserMessage("hello")},
				Segment: model.SegmentHomeowner,
			}))
			advance(2 * time.Minute)

			s, err := store.Load(ctx, "s4")
			require.NoError(t, err)
			assert.Empty(t, s.Messages)
			assert.Equal(t, model.SegmentUnset, s.Segment)
		})
	}
}

func TestRedisFailureIsRetryable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	store := NewRedisSessionStore(rdb, time.Hour)
	mr.Close()

	_, err := store.Load(context.Background(), "s5")
	require.Error(t, err)
	assert.True(t, errx.IsRetryable(err))

	err = store.Apply(context.Background(), "s5", model.SessionUpdate{Append: []*schema.Message{schema.UserMessage("x")}})
	require.Error(t, err)
	assert.True(t, errx.IsRetryable(err))
}
