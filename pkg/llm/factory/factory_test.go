package factory

import (
	"testing"

	"ai-helpdesk-be/pkg/llm/echo"
	"ai-helpdesk-be/pkg/llm/ollama"
	"ai-helpdesk-be/pkg/llm/openai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want interface{}
	}{
		{"ollama", Options{Provider: "ollama", Model: "llama3"}, &ollama.OllamaProvider{}},
		{"huggingface", Options{Provider: "huggingface", APIKey: "k"}, &openai.Provider{}},
		{"minimax with key", Options{Provider: "minimax", APIKey: "k"}, &openai.Provider{}},
		{"minimax without key", Options{Provider: "minimax"}, echo.Provider{}},
		{"echo", Options{Provider: "echo"}, echo.Provider{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewLLMProvider(tt.opts)
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
		})
	}
}

func TestNewLLMProviderDefaultsOllamaURL(t *testing.T) {
	p, err := NewLLMProvider(Options{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", p.(*ollama.OllamaProvider).BaseURL)
}

func TestNewLLMProviderUnknown(t *testing.T) {
	_, err := NewLLMProvider(Options{Provider: "gpt-9000"})
	assert.ErrorContains(t, err, "unsupported LLM provider")
}
