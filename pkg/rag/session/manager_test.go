package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"ai-helpdesk-be/internal/pkg/logger"
	"ai-helpdesk-be/internal/repository/memory"
	"ai-helpdesk-be/pkg/events"
	"ai-helpdesk-be/pkg/llm"
	"ai-helpdesk-be/pkg/llm/echo"
	"ai-helpdesk-be/pkg/rag/response"
	"ai-helpdesk-be/pkg/retrieval"
	"ai-helpdesk-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type failingLLM struct{}

func (failingLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return "", llm.ErrGenerationFailed
}

func (failingLLM) Generate(context.Context, string, ...llm.Option) (string, error) {
	return "", llm.ErrGenerationFailed
}

func (failingLLM) Stream(context.Context, []llm.Message, ...llm.Option) (<-chan llm.Chunk, error) {
	return nil, llm.ErrGenerationFailed
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func newManager(r retrieval.Retriever, provider llm.LLMProvider, cfg Config, opts ...Option) *Manager {
	return NewManager(memory.NewSessionRepository(0, 0, 0), r, provider, logger.NewNopLogger(), cfg, opts...)
}

var knowledge = retrieval.Static{Results: []store.RetrievalResult{
	{Content: "Refunds take five days.", Score: 0.55, ChunkID: "c2"},
	{Content: "Plans start at ten dollars.", Score: 0.82, ChunkID: "c1", Metadata: map[string]interface{}{"filename": "pricing.md"}},
}}

func TestChatNewSessionWithoutRAG(t *testing.T) {
	m := newManager(nil, echo.NewProvider(), Config{})

	res, err := m.Chat(context.Background(), ChatRequest{Message: "你好吗"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.Response)
	assert.True(t, strings.HasPrefix(res.SessionID, idPrefix))
	assert.True(t, ValidID(res.SessionID))
	require.NotNil(t, res.Sources)
	assert.Empty(t, res.Sources)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Nil(t, res.Assessment)
	assert.False(t, res.Timestamp.IsZero())
}

func TestChatRetrievalAlwaysFailing(t *testing.T) {
	failing := retrieval.Func(func(context.Context, string, int) ([]store.RetrievalResult, error) {
		return nil, fmt.Errorf("%w: connection refused", retrieval.ErrRetrievalFailed)
	})
	m := newManager(failing, echo.NewProvider(), Config{})

	res, err := m.Chat(context.Background(), ChatRequest{Message: "what does it cost?", UseRAG: true})
	require.NoError(t, err)

	assert.NotEmpty(t, res.Response)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Empty(t, res.Sources)

	history, err := m.GetHistory(context.Background(), res.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, false, history[0].Metadata["use_rag"])
}

func TestChatWithRAGReportsTopScore(t *testing.T) {
	m := newManager(knowledge, echo.NewProvider(), Config{})

	res, err := m.Chat(context.Background(), ChatRequest{Message: "how much?", UseRAG: true})
	require.NoError(t, err)

	require.Len(t, res.Sources, 2)
	assert.Equal(t, 0.82, res.Confidence)
	assert.Equal(t, Source{Content: "Plans start at ten dollars.", Score: 0.82, Filename: "pricing.md", ChunkID: "c1"}, res.Sources[0])
	assert.Equal(t, "c2", res.Sources[1].ChunkID)
}

func TestChatTopKOverride(t *testing.T) {
	var gotK int
	r := retrieval.Func(func(_ context.Context, _ string, topK int) ([]store.RetrievalResult, error) {
		gotK = topK
		return nil, nil
	})
	m := newManager(r, echo.NewProvider(), Config{TopK: 7})

	_, err := m.Chat(context.Background(), ChatRequest{Message: "q", UseRAG: true})
	require.NoError(t, err)
	assert.Equal(t, 7, gotK)

	_, err = m.Chat(context.Background(), ChatRequest{Message: "q", UseRAG: true, TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, gotK)
}

func TestChatHistoryWindow(t *testing.T) {
	ctx := context.Background()
	m := newManager(nil, echo.NewProvider(), Config{MaxHistory: 10})

	id := "session_window"
	for i := 0; i < 15; i++ {
		_, err := m.Chat(ctx, ChatRequest{Message: fmt.Sprintf("turn %d", i), SessionID: id})
		require.NoError(t, err)
	}

	history, err := m.GetHistory(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, history, 22)
	assert.Equal(t, "turn 4", history[0].Content)
	assert.Equal(t, store.RoleAssistant, history[len(history)-1].Role)
	for i, msg := range history {
		if i%2 == 0 {
			assert.Equal(t, store.RoleUser, msg.Role)
		} else {
			assert.Equal(t, store.RoleAssistant, msg.Role)
		}
	}

	last, err := m.GetHistory(ctx, id, 4)
	require.NoError(t, err)
	require.Len(t, last, 4)
	assert.Equal(t, "turn 13", last[0].Content)
}

func TestChatPromptUsesRecentHistory(t *testing.T) {
	provider := &capturingLLM{}
	m := newManager(nil, provider, Config{MaxHistory: 2})

	id := "session_prompt"
	for i := 0; i < 3; i++ {
		_, err := m.Chat(context.Background(), ChatRequest{Message: fmt.Sprintf("m%d", i), SessionID: id})
		require.NoError(t, err)
	}
	seen := provider.last

	// system + last 2 history entries + current message
	require.Len(t, seen, 4)
	assert.Equal(t, store.RoleSystem, seen[0].Role)
	assert.Equal(t, "m1", seen[1].Content)
	assert.Equal(t, "m2", seen[3].Content)
}

type capturingLLM struct {
	echo.Provider
	last []llm.Message
}

func (c *capturingLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	c.last = history
	return c.Provider.Chat(ctx, history, opts...)
}

func TestClearHistory(t *testing.T) {
	ctx := context.Background()
	m := newManager(nil, echo.NewProvider(), Config{})

	deleted, err := m.ClearHistory(ctx, "session_missing")
	require.NoError(t, err)
	assert.False(t, deleted)

	res, err := m.Chat(ctx, ChatRequest{Message: "hello"})
	require.NoError(t, err)

	count, _ := m.SessionCount(ctx)
	assert.Equal(t, 1, count)

	deleted, err = m.ClearHistory(ctx, res.SessionID)
	require.NoError(t, err)
	assert.True(t, deleted)

	history, err := m.GetHistory(ctx, res.SessionID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = m.GetSession(ctx, res.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	count, _ = m.SessionCount(ctx)
	assert.Equal(t, 0, count)
}

func TestChatInvalidInput(t *testing.T) {
	m := newManager(nil, echo.NewProvider(), Config{})

	tests := []struct {
		name string
		req  ChatRequest
	}{
		{name: "empty message", req: ChatRequest{Message: ""}},
		{name: "blank message", req: ChatRequest{Message: "  \n"}},
		{name: "message too long", req: ChatRequest{Message: strings.Repeat("字", MaxMessageRunes+1)}},
		{name: "session id with spaces", req: ChatRequest{Message: "hi", SessionID: "bad id"}},
		{name: "session id too long", req: ChatRequest{Message: "hi", SessionID: strings.Repeat("a", maxIDLength+1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Chat(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := m.GetHistory(context.Background(), "", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChatCancelledLeavesHistoryUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := retrieval.Func(func(context.Context, string, int) ([]store.RetrievalResult, error) {
		cancel()
		return nil, nil
	})
	m := newManager(r, echo.NewProvider(), Config{})

	_, err := m.Chat(ctx, ChatRequest{Message: "hello", SessionID: "session_cancel", UseRAG: true})
	assert.ErrorIs(t, err, context.Canceled)

	history, err := m.GetHistory(context.Background(), "session_cancel", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	count, _ := m.SessionCount(context.Background())
	assert.Equal(t, 0, count)
}

func TestChatGenerationFailureApologizes(t *testing.T) {
	m := newManager(nil, failingLLM{}, Config{})

	res, err := m.Chat(context.Background(), ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, response.ChatApology, res.Response)

	res, err = m.Chat(context.Background(), ChatRequest{Message: "hello", Stream: true})
	require.NoError(t, err)
	assert.Equal(t, response.ChatApology, res.Response)
}

func TestChatStreaming(t *testing.T) {
	m := newManager(nil, echo.NewProvider(), Config{})

	var mu sync.Mutex
	var chunks []string
	res, err := m.Chat(context.Background(), ChatRequest{
		Message: "stream this reply",
		Stream:  true,
		OnChunk: func(s string) {
			mu.Lock()
			chunks = append(chunks, s)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	assert.Greater(t, len(chunks), 1)
	assert.Equal(t, res.Response, strings.Join(chunks, ""))
}

func TestChatGraphMode(t *testing.T) {
	pub := &recordingPublisher{}
	m := newManager(knowledge, echo.NewProvider(), Config{Mode: ModeGraph}, WithPublisher(pub))

	res, err := m.Chat(context.Background(), ChatRequest{Message: "how much does a plan cost?", UseRAG: true})
	require.NoError(t, err)

	require.NotNil(t, res.Assessment)
	assert.Equal(t, 0.82, res.Confidence)
	assert.False(t, res.Assessment.NeedsHuman)
	assert.Contains(t, res.Response, "[1] pricing.md")
	assert.Equal(t, []string{events.ChatTurnCompleted}, pub.types())
}

func TestChatGraphModeEscalates(t *testing.T) {
	pub := &recordingPublisher{}
	m := newManager(nil, failingLLM{}, Config{Mode: ModeGraph}, WithPublisher(pub))

	res, err := m.Chat(context.Background(), ChatRequest{Message: "my order never arrived"})
	require.NoError(t, err)

	require.NotNil(t, res.Assessment)
	assert.True(t, res.Assessment.NeedsHuman)
	assert.Contains(t, response.FallbackMessages, res.Response)
	assert.Equal(t, []string{events.ChatTurnCompleted, events.ChatEscalationRequired}, pub.types())
}

type panickingLLM struct{ failingLLM }

func (panickingLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	panic("provider exploded")
}

func TestChatGraphModeSurvivesStagePanic(t *testing.T) {
	pub := &recordingPublisher{}
	m := newManager(nil, panickingLLM{}, Config{Mode: ModeGraph}, WithPublisher(pub))

	var (
		res *ChatResult
		err error
	)
	require.NotPanics(t, func() {
		res, err = m.Chat(context.Background(), ChatRequest{Message: "what does it cost?"})
	})
	require.NoError(t, err)
	assert.True(t, res.Assessment.NeedsHuman)
	assert.Contains(t, response.FallbackMessages, res.Response)

	history, err := m.GetHistory(context.Background(), res.SessionID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, []string{events.ChatTurnCompleted, events.ChatEscalationRequired}, pub.types())
}

type brokenPublisher struct{}

func (brokenPublisher) Publish(context.Context, events.Event) error { return errors.New("bus down") }

func TestChatIgnoresPublishFailures(t *testing.T) {
	m := newManager(nil, echo.NewProvider(), Config{}, WithPublisher(brokenPublisher{}))

	_, err := m.Chat(context.Background(), ChatRequest{Message: "hello"})
	assert.NoError(t, err)
}

func TestChatConcurrentTurnsOnOneSession(t *testing.T) {
	ctx := context.Background()
	m := newManager(knowledge, echo.NewProvider(), Config{MaxHistory: 10})
	id := "session_concurrent"

	var g errgroup.Group
	for i := 0; i < 40; i++ {
		i := i
		g.Go(func() error {
			_, err := m.Chat(ctx, ChatRequest{Message: fmt.Sprintf("question %d", i), SessionID: id, UseRAG: i%2 == 0})
			return err
		})
	}
	require.NoError(t, g.Wait())

	history, err := m.GetHistory(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, history, 22)
	for i := 0; i < len(history); i += 2 {
		user, assistant := history[i], history[i+1]
		require.Equal(t, store.RoleUser, user.Role)
		require.Equal(t, store.RoleAssistant, assistant.Role)
		assert.True(t, strings.HasSuffix(assistant.Content, user.Content), "pair %d interleaved", i/2)
	}
	assert.Equal(t, 0, m.locks.size())
}

func TestEvictionHookIsRegistered(t *testing.T) {
	repo := memory.NewSessionRepository(0, 0, 1)
	m := NewManager(repo, nil, echo.NewProvider(), logger.NewNopLogger(), Config{})

	ctx := context.Background()
	_, err := m.Chat(ctx, ChatRequest{Message: "one", SessionID: "session_one"})
	require.NoError(t, err)
	_, err = m.Chat(ctx, ChatRequest{Message: "two", SessionID: "session_two"})
	require.NoError(t, err)

	count, _ := m.SessionCount(ctx)
	assert.Equal(t, 1, count)
	history, _ := m.GetHistory(ctx, "session_one", 0)
	assert.Empty(t, history)
}
