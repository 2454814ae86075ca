package service

import (
	"context"
	"sync/atomic"

	"ai-helpdesk-be/internal/pkg/logger"
	"ai-helpdesk-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

const escalationModule = "EscalationService"

// IEscalationService hands turns the bot could not resolve over to human agents
type IEscalationService interface {
	Consume(ctx context.Context) error
	Handle(ctx context.Context, event events.Event) error
	Handled() int64
}

type escalationService struct {
	subscriber message.Subscriber
	logger     logger.ILogger
	handled    atomic.Int64
}

func NewEscalationService(subscriber message.Subscriber, log logger.ILogger) IEscalationService {
	return &escalationService{subscriber: subscriber, logger: log}
}

// Consume subscribes to escalation events and processes them until ctx ends.
// Without an in-process subscriber it does nothing; Handle is then driven externally.
func (s *escalationService) Consume(ctx context.Context) error {
	if s.subscriber == nil {
		return nil
	}
	messages, err := s.subscriber.Subscribe(ctx, events.ChatEscalationRequired)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()
	return nil
}

func (s *escalationService) processMessage(ctx context.Context, msg *message.Message) {
	event, err := events.Decode(msg.Payload)
	if err != nil {
		s.logger.Error(escalationModule, "Failed to decode escalation", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if err := s.Handle(ctx, event); err != nil {
		msg.Nack()
		return
	}
	msg.Ack()
}

// Handle records the hand-off for the support queue. Malformed escalations
// are logged and dropped; redelivering them cannot help.
func (s *escalationService) Handle(_ context.Context, event events.Event) error {
	escalation, err := events.AsEscalation(event)
	if err != nil {
		s.logger.Error(escalationModule, "Dropping malformed escalation", map[string]interface{}{"error": err.Error()})
		return nil
	}

	s.handled.Add(1)
	s.logger.Warn(escalationModule, "Conversation needs a human agent", map[string]interface{}{
		"session_id":  escalation.SessionID,
		"user_id":     escalation.UserID,
		"question":    escalation.Question,
		"occurred_at": event.Timestamp(),
	})
	return nil
}

func (s *escalationService) Handled() int64 {
	return s.handled.Load()
}
