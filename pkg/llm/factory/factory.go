package factory

import (
	"ai-helpdesk-be/pkg/llm"
	"ai-helpdesk-be/pkg/llm/echo"
	"ai-helpdesk-be/pkg/llm/ollama"
	"ai-helpdesk-be/pkg/llm/openai"
	"fmt"
)

// Options selects and configures a generation backend
type Options struct {
	Provider string // "ollama", "huggingface", "minimax", "echo"
	Model    string
	BaseURL  string
	APIKey   string
}

func NewLLMProvider(opts Options) (llm.LLMProvider, error) {
	switch opts.Provider {
	case "ollama":
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, opts.Model), nil
	case "huggingface":
		return openai.NewHuggingFaceProvider(opts.APIKey, opts.BaseURL, opts.Model), nil
	case "minimax":
		if opts.APIKey == "" {
			return echo.NewProvider(), nil
		}
		return openai.NewMiniMaxProvider(opts.APIKey, opts.BaseURL, opts.Model), nil
	case "echo":
		return echo.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", opts.Provider)
	}
}
