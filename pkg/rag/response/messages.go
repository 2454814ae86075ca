package response

import (
	"math/rand"
	"sync/atomic"
)

// Fixed user-facing texts. Every failure a user can see resolves to one of these.
const (
	GenerationApology    = "Sorry, something went wrong while generating the answer."
	ChatApology          = "Sorry, I can't answer your question right now. Please try again later."
	DefaultClarification = "To help you better, could you describe your question in more detail?"
	CannotAnswer         = "Sorry, I can't answer your question."
)

// FallbackMessages are used when a turn cannot produce any usable state
var FallbackMessages = []string{
	"Sorry, I'm running into a technical problem right now. Please try again later or contact support.",
	"Sorry, a temporary fault occurred while handling your question. Please describe it again and I'll do my best to help.",
	"Sorry, I can't answer this question for now. Please check our help center or contact a human agent.",
}

// FallbackPicker selects the apology shown on fallback
type FallbackPicker interface {
	Pick() string
}

// RotatingPicker cycles through FallbackMessages. Safe for concurrent use.
type RotatingPicker struct {
	next atomic.Uint64
}

func NewRotatingPicker() *RotatingPicker {
	return &RotatingPicker{}
}

func (p *RotatingPicker) Pick() string {
	i := p.next.Add(1) - 1
	return FallbackMessages[i%uint64(len(FallbackMessages))]
}

// RandomPicker picks uniformly at random
type RandomPicker struct{}

func (RandomPicker) Pick() string {
	return FallbackMessages[rand.Intn(len(FallbackMessages))]
}
