package service

import (
	"context"
	"strings"
	"testing"

	"ai-helpdesk-be/internal/dto"
	"ai-helpdesk-be/internal/pkg/logger"
	"ai-helpdesk-be/internal/repository/memory"
	"ai-helpdesk-be/pkg/llm/echo"
	"ai-helpdesk-be/pkg/rag/session"
	"ai-helpdesk-be/pkg/retrieval"
	"ai-helpdesk-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatService(r retrieval.Retriever) IChatService {
	repo := memory.NewSessionRepository(0, 0, 0)
	return NewChatService(session.NewManager(repo, r, echo.NewProvider(), logger.NewNopLogger(), session.Config{}))
}

func TestChatServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newChatService(retrieval.Static{Results: []store.RetrievalResult{
		{Content: "Support is open 9 to 5.", Score: 0.6, Metadata: map[string]interface{}{"source": "hours.txt"}},
	}})

	res, err := svc.Chat(ctx, "", &dto.ChatRequest{Message: "when are you open?", UserID: "body-user"}, nil)
	require.NoError(t, err)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "hours.txt", res.Sources[0].Filename)
	assert.Equal(t, 0.6, res.Confidence)

	history, err := svc.GetHistory(ctx, res.SessionID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, history.Count)
	assert.Equal(t, store.RoleUser, history.Messages[0].Role)

	count, err := svc.SessionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count.Count)

	cleared, err := svc.ClearHistory(ctx, res.SessionID)
	require.NoError(t, err)
	assert.True(t, cleared.Deleted)

	_, err = svc.GetHistory(ctx, res.SessionID, 0)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestChatServiceRAGToggle(t *testing.T) {
	svc := newChatService(retrieval.Static{Results: []store.RetrievalResult{{Content: "x", Score: 0.9}}})
	off := false

	res, err := svc.Chat(context.Background(), "", &dto.ChatRequest{Message: "hi", UseRAG: &off}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestChatServiceStreamsWhenObserved(t *testing.T) {
	svc := newChatService(nil)

	var chunks []string
	res, err := svc.Chat(context.Background(), "token-user", &dto.ChatRequest{Message: "one two three"}, func(s string) {
		chunks = append(chunks, s)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
	assert.Equal(t, res.Response, strings.Join(chunks, ""))
}
