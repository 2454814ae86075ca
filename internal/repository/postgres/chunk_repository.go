package postgres

import (
	"context"
	"fmt"

	"ai-helpdesk-be/internal/model"
	"ai-helpdesk-be/pkg/retrieval"
	"ai-helpdesk-be/pkg/store"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChunkRepository struct {
	db *gorm.DB
}

var _ retrieval.ChunkSearcher = (*ChunkRepository)(nil)

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

type scoredChunk struct {
	model.KnowledgeChunk
	Distance float64
}

// SearchSimilar ranks chunks by cosine distance; score is 1 - distance
func (r *ChunkRepository) SearchSimilar(ctx context.Context, vector []float32, topK int) ([]store.RetrievalResult, error) {
	if topK <= 0 {
		topK = 5
	}

	var rows []scoredChunk
	err := r.db.WithContext(ctx).
		Model(&model.KnowledgeChunk{}).
		Select("*, embedding <=> ? AS distance", pgvector.NewVector(vector)).
		Order("distance").
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search knowledge chunks: %w", err)
	}

	results := make([]store.RetrievalResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, toResult(row))
	}
	return results, nil
}

func toResult(row scoredChunk) store.RetrievalResult {
	metadata := map[string]interface{}(row.Metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return store.RetrievalResult{
		Content:  row.Content,
		Metadata: metadata,
		Score:    1 - row.Distance,
		ChunkID:  row.Id.String(),
	}
}

// Create stores one embedded passage and returns its id
func (r *ChunkRepository) Create(ctx context.Context, content string, metadata map[string]interface{}, vector []float32) (string, error) {
	chunk := &model.KnowledgeChunk{
		Content:   content,
		Metadata:  datatypes.JSONMap(metadata),
		Embedding: pgvector.NewVector(vector),
	}
	if err := r.db.WithContext(ctx).Create(chunk).Error; err != nil {
		return "", fmt.Errorf("create knowledge chunk: %w", err)
	}
	return chunk.Id.String(), nil
}

func (r *ChunkRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.KnowledgeChunk{}).Count(&count).Error
	return count, err
}
