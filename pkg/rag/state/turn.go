// Package state holds the record threaded through one pipeline execution.
package state

import (
	"ai-helpdesk-be/pkg/llm"
	"ai-helpdesk-be/pkg/store"
)

// Stage names, in pipeline order
const (
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
	StageEvaluate = "evaluate"
	StageClarify  = "clarify"
	StageFallback = "fallback"
	StageRespond  = "respond"
)

// TurnState is owned by a single pipeline run and discarded when the turn completes.
// Question and History are inputs; every other field is written by the stages.
type TurnState struct {
	Question string
	Intent   string
	History  []llm.Message // prior conversation, read-only
	Stream   bool
	OnChunk  func(string)

	Retrieved      []store.RetrievalResult
	Context        string
	RetrievedCount int
	RetrievalDone  bool // set when passages were fetched before the pipeline started

	GeneratedAnswer   string
	HasGenerated      bool
	Confidence        float64
	EvaluationReasons []string
	Evaluated         bool

	NeedsClarification bool
	ClarificationText  string

	Error         string
	GenerationErr bool
	Unrecoverable bool

	FinalAnswer string
	HasFinal    bool
	NeedsHuman  bool

	Messages []llm.Message // running message list; Respond appends the assistant reply
	Stage    string
	Trace    []string
}

// New creates a fresh state for question
func New(question string, history []llm.Message) *TurnState {
	h := make([]llm.Message, len(history))
	copy(h, history)
	return &TurnState{
		Question:          question,
		History:           h,
		Retrieved:         []store.RetrievalResult{},
		EvaluationReasons: []string{},
		Messages:          append(append([]llm.Message{}, h...), llm.Message{Role: store.RoleUser, Content: question}),
	}
}

// Prefetched records passages obtained outside the pipeline so Retrieve is skipped
func (s *TurnState) Prefetched(results []store.RetrievalResult, context string) {
	if results == nil {
		results = []store.RetrievalResult{}
	}
	s.Retrieved = results
	s.RetrievedCount = len(results)
	s.Context = context
	s.RetrievalDone = true
}

// Enter marks stage as the current one
func (s *TurnState) Enter(stage string) {
	s.Stage = stage
	s.Trace = append(s.Trace, stage)
}

// Fail records a degraded-mode error; later errors are appended
func (s *TurnState) Fail(err error) {
	if err == nil {
		return
	}
	if s.Error == "" {
		s.Error = err.Error()
		return
	}
	s.Error += "; " + err.Error()
}

// Finish sets the terminal answer
func (s *TurnState) Finish(answer string) {
	s.FinalAnswer = answer
	s.HasFinal = true
}

// Terminal reports whether the pipeline produced its final answer
func (s *TurnState) Terminal() bool {
	return s.HasFinal
}
