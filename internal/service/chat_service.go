package service

import (
	"context"

	"ai-helpdesk-be/internal/dto"
	"ai-helpdesk-be/pkg/rag/session"
	"ai-helpdesk-be/pkg/store"
)

type IChatService interface {
	Chat(ctx context.Context, userID string, req *dto.ChatRequest, onChunk func(string)) (*dto.ChatResponse, error)
	GetHistory(ctx context.Context, sessionID string, limit int) (*dto.HistoryResponse, error)
	ClearHistory(ctx context.Context, sessionID string) (*dto.ClearHistoryResponse, error)
	SessionCount(ctx context.Context) (*dto.SessionCountResponse, error)
}

type chatService struct {
	manager *session.Manager
}

func NewChatService(manager *session.Manager) IChatService {
	return &chatService{manager: manager}
}

// Chat runs one turn. An authenticated userID takes precedence over the body.
func (s *chatService) Chat(ctx context.Context, userID string, req *dto.ChatRequest, onChunk func(string)) (*dto.ChatResponse, error) {
	if userID == "" {
		userID = req.UserID
	}

	res, err := s.manager.Chat(ctx, session.ChatRequest{
		Message:   req.Message,
		SessionID: req.SessionID,
		UserID:    userID,
		UseRAG:    req.RAGEnabled(),
		TopK:      req.TopK,
		Stream:    req.Stream || onChunk != nil,
		OnChunk:   onChunk,
	})
	if err != nil {
		return nil, err
	}
	return toChatResponse(res), nil
}

func toChatResponse(res *session.ChatResult) *dto.ChatResponse {
	sources := make([]dto.SourceDTO, 0, len(res.Sources))
	for _, src := range res.Sources {
		sources = append(sources, dto.SourceDTO(src))
	}

	out := &dto.ChatResponse{
		Response:   res.Response,
		SessionID:  res.SessionID,
		Sources:    sources,
		Confidence: res.Confidence,
		Timestamp:  res.Timestamp,
	}
	if a := res.Assessment; a != nil {
		out.Assessment = &dto.AssessmentDTO{
			Confidence:         a.Confidence,
			Reasons:            a.Reasons,
			NeedsClarification: a.NeedsClarification,
			NeedsHuman:         a.NeedsHuman,
		}
	}
	return out
}

// GetHistory reports an empty history as not found
func (s *chatService) GetHistory(ctx context.Context, sessionID string, limit int) (*dto.HistoryResponse, error) {
	messages, err := s.manager.GetHistory(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, session.ErrSessionNotFound
	}

	return &dto.HistoryResponse{
		SessionID: sessionID,
		Messages:  toMessageDTOs(messages),
		Count:     len(messages),
	}, nil
}

func toMessageDTOs(messages []store.Message) []dto.MessageDTO {
	out := make([]dto.MessageDTO, 0, len(messages))
	for _, m := range messages {
		out = append(out, dto.MessageDTO{
			Role:      m.Role,
			Content:   m.Content,
			Metadata:  m.Metadata,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

func (s *chatService) ClearHistory(ctx context.Context, sessionID string) (*dto.ClearHistoryResponse, error) {
	deleted, err := s.manager.ClearHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &dto.ClearHistoryResponse{SessionID: sessionID, Deleted: deleted}, nil
}

func (s *chatService) SessionCount(ctx context.Context) (*dto.SessionCountResponse, error) {
	n, err := s.manager.SessionCount(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.SessionCountResponse{Count: n}, nil
}
