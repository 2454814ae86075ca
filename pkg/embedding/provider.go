package embedding

import (
	"context"
	"errors"
)

// ErrEmbeddingFailed wraps every failure reported by a provider
var ErrEmbeddingFailed = errors.New("embedding failed")

// Provider turns text into a unit-length vector
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
