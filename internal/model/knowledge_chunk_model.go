package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// EmbeddingDimensions matches nomic-embed-text
const EmbeddingDimensions = 768

type KnowledgeChunk struct {
	Id        uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Content   string            `gorm:"type:text;not null"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	Embedding pgvector.Vector   `gorm:"type:vector(768)"`
	CreatedAt time.Time         `gorm:"autoCreateTime"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime"`
}

func (KnowledgeChunk) TableName() string {
	return "knowledge_chunks"
}
