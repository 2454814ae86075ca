package retrieval

import (
	"context"
	"errors"
	"fmt"

	"ai-helpdesk-be/pkg/embedding"
	"ai-helpdesk-be/pkg/store"
)

// ErrRetrievalFailed wraps every failure reported by a retriever.
// "No results" is not a failure: it is an empty slice with a nil error.
var ErrRetrievalFailed = errors.New("retrieval failed")

// Retriever returns knowledge-base passages ranked by descending score
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]store.RetrievalResult, error)
}

// Func adapts a plain function to Retriever
type Func func(ctx context.Context, query string, topK int) ([]store.RetrievalResult, error)

func (f Func) Retrieve(ctx context.Context, query string, topK int) ([]store.RetrievalResult, error) {
	return f(ctx, query, topK)
}

// Noop never finds anything
type Noop struct{}

func (Noop) Retrieve(ctx context.Context, _ string, _ int) ([]store.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}
	return []store.RetrievalResult{}, nil
}

// Static serves a fixed passage set regardless of query
type Static struct {
	Results []store.RetrievalResult
}

func (s Static) Retrieve(ctx context.Context, _ string, topK int) ([]store.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}
	out := make([]store.RetrievalResult, len(s.Results))
	copy(out, s.Results)
	return limit(out, topK), nil
}

// ChunkSearcher looks up the nearest stored chunks for a query vector
type ChunkSearcher interface {
	SearchSimilar(ctx context.Context, vector []float32, topK int) ([]store.RetrievalResult, error)
}

// Vector embeds the query and asks the searcher for its nearest chunks
type Vector struct {
	embedder embedding.Provider
	searcher ChunkSearcher
}

func NewVector(embedder embedding.Provider, searcher ChunkSearcher) *Vector {
	return &Vector{embedder: embedder, searcher: searcher}
}

func (v *Vector) Retrieve(ctx context.Context, query string, topK int) ([]store.RetrievalResult, error) {
	vec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrRetrievalFailed, err)
	}
	results, err := v.searcher.SearchSimilar(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrRetrievalFailed, err)
	}
	if results == nil {
		results = []store.RetrievalResult{}
	}
	store.SortByScore(results)
	return limit(results, topK), nil
}

func limit(results []store.RetrievalResult, topK int) []store.RetrievalResult {
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}
