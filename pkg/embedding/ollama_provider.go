package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaProvider embeds text with a local Ollama model (nomic-embed-text by default)
type OllamaProvider struct {
	BaseURL    string
	Model      string
	Dimensions int // expected vector length; 0 accepts any
	Client     *http.Client
}

var _ Provider = (*OllamaProvider)(nil)

func NewOllamaProvider(baseURL string, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithDimensions rejects vectors of any other length, so a model swap cannot
// write embeddings the knowledge table column cannot hold.
func (p *OllamaProvider) WithDimensions(n int) *OllamaProvider {
	p.Dimensions = n
	return p
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(ollamaEmbeddingRequest{Model: p.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrEmbeddingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrEmbeddingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama request failed: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrEmbeddingFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ollama status %d: %s", ErrEmbeddingFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded ollamaEmbeddingResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrEmbeddingFailed, err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrEmbeddingFailed, decoded.Error)
	}
	if len(decoded.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrEmbeddingFailed)
	}
	if p.Dimensions > 0 && len(decoded.Embedding) != p.Dimensions {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, want %d", ErrEmbeddingFailed, p.Model, len(decoded.Embedding), p.Dimensions)
	}

	values := make([]float32, len(decoded.Embedding))
	for i, v := range decoded.Embedding {
		values[i] = float32(v)
	}

	// cosine distance in the chunk table assumes unit vectors
	return Normalize(values), nil
}

// Normalize scales vec to unit length. Zero vectors are returned unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}

	magnitude := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / magnitude)
	}
	return out
}
