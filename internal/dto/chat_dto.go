package dto

import "time"

type ChatRequest struct {
	Message   string `json:"message" validate:"required,min=1,max=10000"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=64"`
	UserID    string `json:"user_id,omitempty" validate:"omitempty,max=64"`
	UseRAG    *bool  `json:"use_rag,omitempty"` // defaults to true
	TopK      int    `json:"top_k,omitempty" validate:"omitempty,min=1,max=50"`
	Stream    bool   `json:"stream,omitempty"`
}

func (r *ChatRequest) RAGEnabled() bool {
	return r.UseRAG == nil || *r.UseRAG
}

type SourceDTO struct {
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	Filename string  `json:"filename"`
	ChunkID  string  `json:"chunk_id"`
}

type AssessmentDTO struct {
	Confidence         float64  `json:"confidence"`
	Reasons            []string `json:"reasons"`
	NeedsClarification bool     `json:"needs_clarification"`
	NeedsHuman         bool     `json:"needs_human"`
}

type ChatResponse struct {
	Response   string         `json:"response"`
	SessionID  string         `json:"session_id"`
	Sources    []SourceDTO    `json:"sources"`
	Confidence float64        `json:"confidence"`
	Timestamp  time.Time      `json:"timestamp"`
	Assessment *AssessmentDTO `json:"assessment,omitempty"`
}

type MessageDTO struct {
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type HistoryResponse struct {
	SessionID string       `json:"session_id"`
	Messages  []MessageDTO `json:"messages"`
	Count     int          `json:"count"`
}

type ClearHistoryResponse struct {
	SessionID string `json:"session_id"`
	Deleted   bool   `json:"deleted"`
}

type SessionCountResponse struct {
	Count int `json:"count"`
}

// Websocket frame types
const (
	FrameChunk = "chunk"
	FrameDone  = "done"
	FrameError = "error"
)

// ChatFrame is one server-to-client websocket message. Chunk frames are
// provisional; the done frame carries the authoritative answer.
type ChatFrame struct {
	Type    string        `json:"type"`
	Content string        `json:"content,omitempty"`
	Data    *ChatResponse `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
}
