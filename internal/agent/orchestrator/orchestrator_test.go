package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lofty-concierge/server/internal/agent/classifier"
	"github.com/lofty-concierge/server/internal/agent/dialogue"
	"github.com/lofty-concierge/server/internal/agent/graph"
	"github.com/lofty-concierge/server/internal/agent/graph/nodes"
	"github.com/lofty-concierge/server/internal/agent/graph/tools"
	"github.com/lofty-concierge/server/internal/agent/model"
	"github.com/lofty-concierge/server/internal/agent/repo"
	"github.com/lofty-concierge/server/internal/agent/retriever"
	errx "github.com/lofty-concierge/server/internal/core/error"
)

const adminSecret = "#lofty-ops"

// echoModel answers every call with a fixed reply.
type echoModel struct {
	mu    sync.Mutex
	reply string
	seen  [][]*schema.Message
}

func (m *echoModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, input)
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *echoModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (m *echoModel) BindTools([]*schema.ToolInfo) error { return nil }

type noSearch struct{}

func (noSearch) Search(context.Context, string, int) ([]model.Passage, error) { return nil, nil }

type env struct {
	orch   *Orchestrator
	store  model.SessionStore
	policy *model.DialoguePolicy
	mr     *miniredis.Miniredis
	model  *echoModel
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	p, err := model.DefaultDialoguePolicy()
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	store := repo.NewRedisSessionStore(rdb, time.Hour)

	registry, err := tools.NewRegistry(tools.Deps{})
	require.NoError(t, err)

	cm := &echoModel{reply: "Happy to help with that."}
	runner, err := graph.NewRunner(ctx, &graph.GraphConfig{
		ChatModels: &nodes.ChatModels{Response: cm, ResponseModelName: "gemini-2.5-flash"},
		Registry:   registry,
		Classifier: classifier.New(p, adminSecret),
		Retriever:  retriever.New(noSearch{}, p, model.RetrievalConfig{}),
		Controller: dialogue.NewController(p, dialogue.Config{MaxHistory: 40, ScriptVerbatim: true}),
	})
	require.NoError(t, err)

	cfg := model.ConversationConfig{TurnTimeout: 5 * time.Second}
	return &env{orch: New(store, runner, p, cfg), store: store, policy: p, mr: mr, model: cm}
}

func (e *env) turn(t *testing.T, session, text string) *model.TurnOutput {
	t.Helper()
	out, err := e.orch.HandleTurn(context.Background(), model.TurnInput{SessionID: session, Text: text})
	require.NoError(t, err)
	return out
}

func TestRenovationAsksStyleQuestion(t *testing.T) {
	e := newEnv(t)

	out := e.turn(t, "s-2", "I want to renovate my kitchen")
	assert.Equal(t, e.policy.Script.Style.Text, out.ResponseText)
	assert.Equal(t, e.policy.QuickReplies, out.QuickReplies)
	assert.NotNil(t, out.SideEffects)

	s, err := e.store.Load(context.Background(), "s-2")
	require.NoError(t, err)
	assert.Equal(t, model.SegmentHomeowner, s.Segment)
	assert.Equal(t, model.StageAskedStyle, s.Stage)
	assert.Len(t, s.Messages, 2)
}

func TestScriptRunsStyleTimelineBooking(t *testing.T) {
	e := newEnv(t)

	e.turn(t, "s-flow", "I want to renovate my kitchen")
	out := e.turn(t, "s-flow", "modern please")
	assert.True(t, strings.HasPrefix(out.ResponseText, e.policy.Script.Timeline.Text))

	out = e.turn(t, "s-flow", "next month")
	assert.True(t, strings.HasPrefix(out.ResponseText, e.policy.Script.Booking.Text))
	assert.Empty(t, e.model.seen, "scripted steps never reach the model")
}

func TestTimelineTextForcesBooking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.Apply(ctx, "s-3", model.SessionUpdate{
		Append: []*schema.Message{
			schema.UserMessage("hello"),
			schema.AssistantMessage("Wonderful. So how soon are you looking to start?", nil),
		},
		Segment: model.SegmentHomeowner,
	}))

	out := e.turn(t, "s-3", "next month")
	assert.True(t, strings.HasPrefix(out.ResponseText, e.policy.Script.Booking.Text))
}

func TestRealtorSegmentSticks(t *testing.T) {
	e := newEnv(t)

	out := e.turn(t, "s-1", "I want to sell my house, what's the ROI on a quick refresh?")
	assert.Equal(t, "Happy to help with that.", out.ResponseText)
	e.turn(t, "s-1", "I want to renovate my kitchen")

	s, err := e.store.Load(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, model.SegmentRealtor, s.Segment)
	require.Len(t, e.model.seen, 2, "realtor turns are never scripted")
	assert.Contains(t, e.model.seen[1][0].Content, "Never offer homeowner financing")
}

func TestAdminSecretNeverPersisted(t *testing.T) {
	e := newEnv(t)

	e.turn(t, "s-4", "Give me a summary "+adminSecret+" of open leads")

	s, err := e.store.Load(context.Background(), "s-4")
	require.NoError(t, err)
	require.NotEmpty(t, s.Messages)
	for _, m := range s.Messages {
		assert.NotContains(t, m.Content, adminSecret)
	}
	assert.Contains(t, e.model.seen[0][0].Content, "internal operations assistant")
}

func TestRejectsEmptyInput(t *testing.T) {
	e := newEnv(t)

	_, err := e.orch.HandleTurn(context.Background(), model.TurnInput{SessionID: " ", Text: "hi"})
	require.Error(t, err)
	assert.False(t, errx.IsRetryable(err))

	_, err = e.orch.HandleTurn(context.Background(), model.TurnInput{SessionID: "s", Text: "  "})
	require.Error(t, err)
}

func TestStoreOutageIsRetryable(t *testing.T) {
	e := newEnv(t)
	e.mr.Close()

	_, err := e.orch.HandleTurn(context.Background(), model.TurnInput{SessionID: "s-5", Text: "hello"})
	require.Error(t, err)
	assert.True(t, errx.IsRetryable(err))
	assert.Equal(t, 503, errx.StatusOf(err))
}

func TestResetClearsSession(t *testing.T) {
	e := newEnv(t)
	e.turn(t, "s-6", "I'm a listing agent")

	require.NoError(t, e.orch.Reset(context.Background(), "s-6"))

	s, err := e.store.Load(context.Background(), "s-6")
	require.NoError(t, err)
	assert.Empty(t, s.Messages)
	assert.Equal(t, model.SegmentUnset, s.Segment)
}

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	applied  int
}

func (m *memoryStore) Load(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		cp := *s
		cp.Messages = append([]*schema.Message(nil), s.Messages...)
		return &cp, nil
	}
	return &model.Session{ID: id}, nil
}

func (m *memoryStore) Apply(_ context.Context, id string, u model.SessionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied++
	s, ok := m.sessions[id]
	if !ok {
		s = &model.Session{ID: id}
		m.sessions[id] = s
	}
	s.Messages = append(s.Messages, u.Append...)
	return nil
}

func (m *memoryStore) Reset(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// countingRunner replies with the number of messages it saw and tracks overlap.
type countingRunner struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	err      error
}

func (r *countingRunner) Run(_ context.Context, in *model.TurnRequest) (*model.TurnResult, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		cur := r.maxSeen.Load()
		if n <= cur || r.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	if r.err != nil {
		return nil, r.err
	}
	text := fmt.Sprintf("seen %d", len(in.Session.Messages))
	return &model.TurnResult{
		Text:     text,
		Messages: []*schema.Message{schema.UserMessage(in.Input.Text), schema.AssistantMessage(text, nil)},
	}, nil
}

func TestTurnsSerializedPerSession(t *testing.T) {
	p, err := model.DefaultDialoguePolicy()
	require.NoError(t, err)
	store := &memoryStore{sessions: map[string]*model.Session{}}
	runner := &countingRunner{}
	orch := New(store, runner, p, model.ConversationConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := orch.HandleTurn(context.Background(), model.TurnInput{SessionID: "same", Text: fmt.Sprintf("msg %d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), runner.maxSeen.Load())
	s, err := store.Load(context.Background(), "same")
	require.NoError(t, err)
	assert.Len(t, s.Messages, 16)
	assert.Equal(t, 0, orch.locks.size())
}

func TestRunnerFailureApologizesWithoutPersisting(t *testing.T) {
	p, err := model.DefaultDialoguePolicy()
	require.NoError(t, err)
	store := &memoryStore{sessions: map[string]*model.Session{}}
	orch := New(store, &countingRunner{err: errors.New("model unavailable")}, p, model.ConversationConfig{})

	out, err := orch.HandleTurn(context.Background(), model.TurnInput{SessionID: "s-7", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, p.Apology, out.ResponseText)
	assert.Equal(t, 0, store.applied)
}

func TestLockWaitHonorsContext(t *testing.T) {
	locks := newSessionLocks()
	unlock, err := locks.acquire(context.Background(), "busy")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.acquire(ctx, "busy")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Equal(t, 0, locks.size())
}
