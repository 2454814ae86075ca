package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrGenerationFailed wraps every failure reported by a provider
var ErrGenerationFailed = errors.New("generation failed")

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Chunk is one streamed text increment. A chunk with Err set terminates the stream.
type Chunk struct {
	Text string
	Err  error
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// Apply folds opts over the given defaults
func Apply(defaults Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// Stream sends a chat history and yields the response incrementally.
	// The concatenation of all chunk texts equals what Chat would have returned.
	Stream(ctx context.Context, history []Message, options ...Option) (<-chan Chunk, error)
}

// Collect drains a stream, concatenating increments in arrival order.
// Any chunk error discards the partial text.
func Collect(ctx context.Context, chunks <-chan Chunk, onChunk func(string)) (string, error) {
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case c, ok := <-chunks:
			if !ok {
				return sb.String(), nil
			}
			if c.Err != nil {
				return "", c.Err
			}
			sb.WriteString(c.Text)
			if onChunk != nil && c.Text != "" {
				onChunk(c.Text)
			}
		}
	}
}

// UserPrompt wraps a single prompt into a user message
func UserPrompt(prompt string) []Message {
	return []Message{{Role: "user", Content: prompt}}
}
