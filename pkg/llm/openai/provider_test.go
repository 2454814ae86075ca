package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-helpdesk-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantText string
		wantDone bool
		wantErr  bool
	}{
		{"delta", `data: {"choices":[{"delta":{"content":"Hi"}}]}`, "Hi", false, false},
		{"no space after colon", `data:{"choices":[{"delta":{"content":"x"}}]}`, "x", false, false},
		{"done", "data: [DONE]", "", true, false},
		{"comment", ": keep-alive", "", false, false},
		{"blank", "", "", false, false},
		{"empty choices", `data: {"choices":[]}`, "", false, false},
		{"api error", `data: {"error":{"message":"rate limited"}}`, "", false, true},
		{"bad json", "data: {oops", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, done, err := parseEvent(tt.line)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantDone, done)
			if tt.wantErr {
				assert.ErrorIs(t, err, llm.ErrGenerationFailed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, chatCompletionsPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tiny", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, 500, req.MaxTokens)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Hello there"}}]}`))
	}))
	defer srv.Close()

	got, err := NewHuggingFaceProvider("secret", srv.URL+"/", "tiny").Chat(context.Background(), llm.UserPrompt("hi"))
	require.NoError(t, err)
	assert.Equal(t, "Hello there", got)
}

func TestChatFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"status", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, "status 401"},
		{"api error", http.StatusOK, `{"error":{"message":"overloaded"}}`, "overloaded"},
		{"empty choices", http.StatusOK, `{"choices":[]}`, "empty choices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewMiniMaxProvider("k", srv.URL, "").Chat(context.Background(), llm.UserPrompt("hi"))
			assert.ErrorIs(t, err, llm.ErrGenerationFailed)
			assert.ErrorContains(t, err, tt.message)
		})
	}
}

func TestStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, miniMaxPath, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		for _, part := range []string{"Reset ", "it from ", "settings."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	chunks, err := NewMiniMaxProvider("k", srv.URL, "").Stream(context.Background(), llm.UserPrompt("hi"))
	require.NoError(t, err)

	var seen []string
	text, err := llm.Collect(context.Background(), chunks, func(s string) { seen = append(seen, s) })
	require.NoError(t, err)
	assert.Equal(t, "Reset it from settings.", text)
	assert.Len(t, seen, 3)
}
