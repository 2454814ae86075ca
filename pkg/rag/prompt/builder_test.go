package prompt

import (
	"fmt"
	"strings"
	"testing"

	"ai-helpdesk-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationTemplates(t *testing.T) {
	withCtx := Generation("How do refunds work?", "Refunds are issued within 30 days.")
	assert.Contains(t, withCtx, "Refunds are issued within 30 days.")
	assert.Contains(t, withCtx, "say so explicitly")
	assert.Contains(t, withCtx, "How do refunds work?")

	noCtx := Generation("How do refunds work?", "")
	assert.Contains(t, noCtx, "general knowledge")
	assert.Contains(t, noCtx, "more information is needed")
	assert.NotContains(t, noCtx, "<context>")
}

func TestClarificationExcerpt(t *testing.T) {
	ctx := strings.Repeat("漢", 300)
	got := Clarification("q", ctx, 0.42)

	assert.Contains(t, got, strings.Repeat("漢", 200)+"...")
	assert.NotContains(t, got, strings.Repeat("漢", 201))
	assert.Contains(t, got, "0.42")
	assert.Contains(t, got, "confirms you understood")

	noCtx := Clarification("q", "", 0.1)
	assert.Contains(t, noCtx, "more specifics")
}

func TestFormatContext(t *testing.T) {
	results := []store.RetrievalResult{
		{Content: "first", Metadata: map[string]interface{}{"filename": "pricing.md"}},
		{Content: "second"},
	}

	assert.Equal(t, "[Source: pricing.md]\nfirst\n\n[Source: unknown]\nsecond", FormatContext(results))
	assert.Equal(t, "first\n\nsecond", JoinContents(results))
	assert.Equal(t, "", JoinContents(nil))
}

func TestChatBuilderBuild(t *testing.T) {
	var history []store.Message
	for i := 0; i < 14; i++ {
		role := store.RoleUser
		if i%2 == 1 {
			role = store.RoleAssistant
		}
		history = append(history, store.Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}

	b := NewChatBuilder("", 10)
	msgs := b.Build("current", "ctx block", true, history)

	require.Len(t, msgs, 12)
	assert.Equal(t, store.RoleSystem, msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[0].Content, DefaultSystemPrompt))
	assert.Contains(t, msgs[0].Content, "ctx block")
	assert.Contains(t, msgs[0].Content, NoInformationReply)
	assert.Equal(t, "m4", msgs[1].Content)
	assert.Equal(t, "m13", msgs[10].Content)
	assert.Equal(t, llmUser("current"), msgs[11].Role+":"+msgs[11].Content)
}

func TestChatBuilderWithoutRAG(t *testing.T) {
	b := NewChatBuilder("custom system", 10)

	msgs := b.Build("hi", "ignored context", false, nil)
	require.Len(t, msgs, 2)
	assert.Equal(t, "custom system", msgs[0].Content)

	msgs = b.Build("hi", "", true, nil)
	assert.Equal(t, "custom system", msgs[0].Content)
}

func llmUser(content string) string {
	return store.RoleUser + ":" + content
}
