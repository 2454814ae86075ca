// Package openai talks to OpenAI-compatible chat completion endpoints
// (HuggingFace router, MiniMax, vLLM and friends).
package openai

import (
	"ai-helpdesk-be/pkg/llm"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	HuggingFaceBaseURL = "https://router.huggingface.co/v1"
	MiniMaxBaseURL     = "https://api.minimaxi.com/v1"

	chatCompletionsPath = "/chat/completions"
	miniMaxPath         = "/text/chatcompletion_v2"
)

type Provider struct {
	apiKey  string
	baseURL string
	path    string
	model   string
	client  *http.Client
}

var _ llm.LLMProvider = &Provider{}

// Request Payload Structure (OpenAI Compatible)
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewHuggingFaceProvider targets the HuggingFace inference router
func NewHuggingFaceProvider(apiKey, baseURL, model string) *Provider {
	if baseURL == "" {
		baseURL = HuggingFaceBaseURL
	}
	return newProvider(apiKey, baseURL, chatCompletionsPath, model)
}

// NewMiniMaxProvider targets MiniMax's v2 chat completion API
func NewMiniMaxProvider(apiKey, baseURL, model string) *Provider {
	if baseURL == "" {
		baseURL = MiniMaxBaseURL
	}
	if model == "" {
		model = "MiniMax-M2.1"
	}
	return newProvider(apiKey, baseURL, miniMaxPath, model)
}

func newProvider(apiKey, baseURL, path, model string) *Provider {
	return &Provider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    path,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	resp, err := p.send(ctx, history, false, options...)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	var chatResp chatResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", llm.ErrGenerationFailed, err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: api returned error: %s", llm.ErrGenerationFailed, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", llm.ErrGenerationFailed)
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, llm.UserPrompt(prompt), options...)
}

// Stream consumes server-sent events ("data: {...}" lines, terminated by "data: [DONE]")
func (p *Provider) Stream(ctx context.Context, history []llm.Message, options ...llm.Option) (<-chan llm.Chunk, error) {
	resp, err := p.send(ctx, history, true, options...)
	if err != nil {
		return nil, err
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			text, done, err := parseEvent(scanner.Text())
			if err != nil {
				send(ctx, out, llm.Chunk{Err: err})
				return
			}
			if done {
				return
			}
			if text != "" && !send(ctx, out, llm.Chunk{Text: text}) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			send(ctx, out, llm.Chunk{Err: fmt.Errorf("%w: read stream: %v", llm.ErrGenerationFailed, err)})
		}
	}()
	return out, nil
}

// parseEvent decodes one SSE line into its delta text
func parseEvent(line string) (string, bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return "", false, nil
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "[DONE]" {
		return "", true, nil
	}
	var frame chatResponse
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		return "", false, fmt.Errorf("%w: decode event: %v", llm.ErrGenerationFailed, err)
	}
	if frame.Error != nil {
		return "", false, fmt.Errorf("%w: api returned error: %s", llm.ErrGenerationFailed, frame.Error.Message)
	}
	if len(frame.Choices) == 0 {
		return "", false, nil
	}
	return frame.Choices[0].Delta.Content, false, nil
}

func (p *Provider) send(ctx context.Context, history []llm.Message, stream bool, options ...llm.Option) (*http.Response, error) {
	opts := llm.Apply(llm.Options{
		Model:       p.model,
		MaxTokens:   500, // Default sane limit
		Temperature: 0.7,
	}, options...)

	reqBody := chatRequest{
		Model:       opts.Model,
		Messages:    history,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      stream,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %v", llm.ErrGenerationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+p.path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", llm.ErrGenerationFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", llm.ErrGenerationFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: api error (status %d): %s", llm.ErrGenerationFailed, resp.StatusCode, string(bodyBytes))
	}

	return resp, nil
}

func send(ctx context.Context, out chan<- llm.Chunk, c llm.Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
