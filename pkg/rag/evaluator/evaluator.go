// Package evaluator scores a generated answer against its question and context.
//
// The scoring policy is a frozen heuristic: length band, context overlap,
// uncertainty penalty and a format credit, overridden for small-talk intents.
// It performs no I/O and keeps no state, so identical inputs always produce
// identical results.
package evaluator

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultThreshold = 0.7

	ReasonTooShort     = "answer too short"
	ReasonLowRelevance = "low relevance to context"
	ReasonUncertain    = "answer expresses uncertainty"

	IntentGreeting = "greeting"
	IntentFarewell = "farewell"

	overlapTokens  = 50
	overlapMinimum = 5
)

// DefaultUncertaintyPhrases lists phrases that signal the model could not answer
var DefaultUncertaintyPhrases = []string{
	"抱歉，我不清楚",
	"我不知道",
	"没有找到相关信息",
	"需要更多信息",
	"I don't know",
	"I do not know",
	"I'm not sure",
	"no relevant information found",
	"need more information",
}

// Result is the outcome of one evaluation
type Result struct {
	Confidence         float64  `json:"confidence"`
	Reasons            []string `json:"reasons"`
	NeedsClarification bool     `json:"needs_clarification"`
}

// Evaluator holds the tunable parts of the policy
type Evaluator struct {
	threshold float64
	phrases   []string
}

type Option func(*Evaluator)

func WithThreshold(threshold float64) Option {
	return func(e *Evaluator) {
		e.threshold = threshold
	}
}

func WithUncertaintyPhrases(phrases ...string) Option {
	return func(e *Evaluator) {
		e.phrases = append([]string(nil), phrases...)
	}
}

func New(opts ...Option) Evaluator {
	e := Evaluator{
		threshold: DefaultThreshold,
		phrases:   DefaultUncertaintyPhrases,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func (e Evaluator) Threshold() float64 {
	return e.threshold
}

// Evaluate scores answer with the default policy
func Evaluate(question, answer, context, intent string) Result {
	return New().Evaluate(question, answer, context, intent)
}

func (e Evaluator) Evaluate(question, answer, context, intent string) Result {
	if question == "" || answer == "" {
		return Result{Confidence: 0, Reasons: []string{}, NeedsClarification: true}
	}

	var reasons reasonSet
	score := 0.0

	switch n := utf8.RuneCountInString(answer); {
	case n < 20:
		score += 0.1
		reasons.add(ReasonTooShort)
	case n > 50:
		score += 0.2
	default:
		score += 0.3
	}

	if context != "" {
		if overlap(context, answer) > overlapMinimum {
			score += 0.3
		} else {
			score += 0.1
			reasons.add(ReasonLowRelevance)
		}
	} else {
		score += 0.2
	}

	if e.uncertain(answer) {
		score *= 0.5
		reasons.add(ReasonUncertain)
	}

	if strings.TrimSpace(answer) == answer {
		score += 0.1
	}

	if intent == IntentGreeting || intent == IntentFarewell {
		return Result{Confidence: 1.0, Reasons: reasons.list(), NeedsClarification: false}
	}

	confidence := score
	if confidence > 1.0 {
		confidence = 1.0
	}

	return Result{
		Confidence:         confidence,
		Reasons:            reasons.list(),
		NeedsClarification: confidence < e.threshold,
	}
}

func (e Evaluator) uncertain(answer string) bool {
	for _, phrase := range e.phrases {
		if phrase != "" && strings.Contains(answer, phrase) {
			return true
		}
	}
	return false
}

// overlap counts tokens shared by the leading windows of a and b
func overlap(a, b string) int {
	left := tokenSet(a)
	count := 0
	for tok := range tokenSet(b) {
		if _, ok := left[tok]; ok {
			count++
		}
	}
	return count
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) > overlapTokens {
		fields = fields[:overlapTokens]
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// reasonSet keeps insertion order and drops duplicates
type reasonSet struct {
	items []string
}

func (r *reasonSet) add(reason string) {
	for _, existing := range r.items {
		if existing == reason {
			return
		}
	}
	r.items = append(r.items, reason)
}

func (r *reasonSet) list() []string {
	if r.items == nil {
		return []string{}
	}
	return r.items
}
