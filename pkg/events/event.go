package events

import (
	"fmt"
	"time"
)

// Event types emitted by the chat core
const (
	ChatTurnCompleted      = "CHAT_TURN_COMPLETED"
	ChatEscalationRequired = "CHAT_ESCALATION_REQUIRED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHAT_TURN_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the concrete event used across the bus
type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func New(eventType string, data map[string]interface{}, at time.Time) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: at}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// TurnCompleted is published after every persisted turn
type TurnCompleted struct {
	SessionID    string
	UserID       string
	Mode         string
	Confidence   float64
	SourcesCount int
}

func (t TurnCompleted) Event(at time.Time) BaseEvent {
	return New(ChatTurnCompleted, map[string]interface{}{
		"session_id":    t.SessionID,
		"user_id":       t.UserID,
		"mode":          t.Mode,
		"confidence":    t.Confidence,
		"sources_count": t.SourcesCount,
	}, at)
}

// EscalationRequired is published when a turn ended in fallback and a human should follow up
type EscalationRequired struct {
	SessionID string
	UserID    string
	Question  string
	Response  string
}

func (e EscalationRequired) Event(at time.Time) BaseEvent {
	return New(ChatEscalationRequired, map[string]interface{}{
		"session_id": e.SessionID,
		"user_id":    e.UserID,
		"question":   e.Question,
		"response":   e.Response,
	}, at)
}

// AsEscalation reads an escalation back from a (possibly decoded) event
func AsEscalation(event Event) (EscalationRequired, error) {
	if event.EventType() != ChatEscalationRequired {
		return EscalationRequired{}, fmt.Errorf("unexpected event type %q", event.EventType())
	}
	data := event.Payload()
	sessionID, _ := data["session_id"].(string)
	if sessionID == "" {
		return EscalationRequired{}, fmt.Errorf("escalation without session_id")
	}
	userID, _ := data["user_id"].(string)
	question, _ := data["question"].(string)
	response, _ := data["response"].(string)
	return EscalationRequired{SessionID: sessionID, UserID: userID, Question: question, Response: response}, nil
}
