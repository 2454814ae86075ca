// Package echo is the provider used when no model backend is configured.
// It answers with the last user message so the pipeline stays exercisable locally.
package echo

import (
	"context"
	"strings"

	"ai-helpdesk-be/pkg/llm"
)

const prefix = "[no model configured] "

type Provider struct{}

var _ llm.LLMProvider = Provider{}

func NewProvider() Provider {
	return Provider{}
}

func (Provider) Chat(ctx context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return prefix + history[i].Content, nil
		}
	}
	return prefix, nil
}

func (p Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, llm.UserPrompt(prompt), opts...)
}

// Stream splits the reply on word boundaries, keeping the separators
func (p Provider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.Chunk, error) {
	reply, err := p.Chat(ctx, history, opts...)
	if err != nil {
		return nil, err
	}
	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		for _, part := range strings.SplitAfter(reply, " ") {
			select {
			case out <- llm.Chunk{Text: part}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
