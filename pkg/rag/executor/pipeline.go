package executor

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ai-helpdesk-be/internal/pkg/logger"
	"ai-helpdesk-be/pkg/llm"
	"ai-helpdesk-be/pkg/rag/evaluator"
	"ai-helpdesk-be/pkg/rag/intent"
	"ai-helpdesk-be/pkg/rag/prompt"
	"ai-helpdesk-be/pkg/rag/response"
	"ai-helpdesk-be/pkg/rag/state"
	"ai-helpdesk-be/pkg/retrieval"
	"ai-helpdesk-be/pkg/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	module              = "Executor"
	DefaultTopK         = 5
	minClarificationLen = 5
)

// PipelineExecutor runs one turn through the conversation state machine:
// Retrieve → Generate → Evaluate → Clarify (when needed) → Respond,
// with Fallback reachable on unrecoverable errors.
type PipelineExecutor struct {
	retriever         retrieval.Retriever
	llmProvider       llm.LLMProvider
	evaluator         evaluator.Evaluator
	fallback          response.FallbackPicker
	logger            logger.ILogger
	tracer            trace.Tracer
	topK              int
	retrievalTimeout  time.Duration
	generationTimeout time.Duration
}

type Option func(*PipelineExecutor)

func WithTopK(k int) Option {
	return func(p *PipelineExecutor) {
		if k > 0 {
			p.topK = k
		}
	}
}

func WithEvaluator(e evaluator.Evaluator) Option {
	return func(p *PipelineExecutor) {
		p.evaluator = e
	}
}

func WithFallbackPicker(f response.FallbackPicker) Option {
	return func(p *PipelineExecutor) {
		p.fallback = f
	}
}

// WithTimeouts bounds each collaborator call. Zero means no bound.
func WithTimeouts(retrievalTimeout, generationTimeout time.Duration) Option {
	return func(p *PipelineExecutor) {
		p.retrievalTimeout = retrievalTimeout
		p.generationTimeout = generationTimeout
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(p *PipelineExecutor) {
		p.tracer = t
	}
}

// NewPipelineExecutor creates the state machine. A nil retriever never finds anything.
func NewPipelineExecutor(retriever retrieval.Retriever, llmProvider llm.LLMProvider, log logger.ILogger, opts ...Option) *PipelineExecutor {
	if retriever == nil {
		retriever = retrieval.Noop{}
	}
	p := &PipelineExecutor{
		retriever:   retriever,
		llmProvider: llmProvider,
		evaluator:   evaluator.New(),
		fallback:    response.NewRotatingPicker(),
		logger:      log,
		tracer:      otel.Tracer("ai-helpdesk-be/pkg/rag/executor"),
		topK:        DefaultTopK,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute drives s to its terminal Respond state and returns it.
// If ctx is cancelled between stages the run is abandoned: the returned state
// is not terminal and must not be persisted.
func (p *PipelineExecutor) Execute(ctx context.Context, s *state.TurnState) (out *state.TurnState) {
	ctx, span := p.tracer.Start(ctx, "pipeline.execute")
	defer span.End()

	if s.Intent == "" {
		s.Intent = intent.Classify(s.Question)
	}

	defer func() {
		if r := recover(); r != nil {
			s.Fail(fmt.Errorf("panic in %s stage: %v", s.Stage, r))
			s.Unrecoverable = true
			span.SetStatus(codes.Error, "stage panicked")
			p.logger.Error(module, "Stage panicked, routing to fallback", map[string]interface{}{
				"stage": s.Stage,
				"error": fmt.Sprint(r),
			})
			s.Enter(state.StageFallback)
			p.fallbackStage(s)
			s.Enter(state.StageRespond)
			p.respond(s)
			out = s
		}
	}()

	p.logger.Info(module, "Starting pipeline", map[string]interface{}{
		"question": truncate(s.Question, 50),
		"intent":   s.Intent,
	})

	if !s.RetrievalDone {
		p.run(ctx, s, state.StageRetrieve, p.retrieve)
		if p.abandoned(ctx, s) {
			return s
		}
	}

	p.run(ctx, s, state.StageGenerate, p.generate)
	if p.abandoned(ctx, s) {
		return s
	}

	if s.Unrecoverable {
		p.run(ctx, s, state.StageFallback, func(_ context.Context, s *state.TurnState) { p.fallbackStage(s) })
		p.run(ctx, s, state.StageRespond, func(_ context.Context, s *state.TurnState) { p.respond(s) })
		return s
	}

	p.run(ctx, s, state.StageEvaluate, p.evaluate)

	if s.NeedsClarification && s.ClarificationText == "" {
		p.run(ctx, s, state.StageClarify, p.clarify)
		if p.abandoned(ctx, s) {
			return s
		}
	}

	p.run(ctx, s, state.StageRespond, func(_ context.Context, s *state.TurnState) { p.respond(s) })

	span.SetAttributes(
		attribute.Float64("turn.confidence", s.Confidence),
		attribute.Bool("turn.needs_clarification", s.NeedsClarification),
		attribute.Bool("turn.needs_human", s.NeedsHuman),
	)
	return s
}

func (p *PipelineExecutor) run(ctx context.Context, s *state.TurnState, name string, stage func(context.Context, *state.TurnState)) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	s.Enter(name)
	stage(ctx, s)

	p.logger.Debug(module, "Stage complete", map[string]interface{}{"stage": name})
}

func (p *PipelineExecutor) abandoned(ctx context.Context, s *state.TurnState) bool {
	if err := ctx.Err(); err != nil {
		s.Fail(fmt.Errorf("turn abandoned after %s: %w", s.Stage, err))
		p.logger.Warn(module, "Turn abandoned", map[string]interface{}{"stage": s.Stage, "error": err.Error()})
		return true
	}
	return false
}

// retrieve degrades to an empty context on collaborator failure
func (p *PipelineExecutor) retrieve(ctx context.Context, s *state.TurnState) {
	if s.Question == "" {
		p.logger.Warn(module, "No question found in state", nil)
		return
	}

	rctx, cancel := withTimeout(ctx, p.retrievalTimeout)
	defer cancel()

	results, err := p.retriever.Retrieve(rctx, s.Question, p.topK)
	if err != nil {
		s.Fail(err)
		s.Prefetched(nil, "")
		p.logger.Warn(module, "Retrieval failed, continuing without context", map[string]interface{}{"error": err.Error()})
		return
	}

	store.SortByScore(results)
	s.Prefetched(results, prompt.JoinContents(results))
	p.logger.Info(module, "Retrieved documents", map[string]interface{}{"count": s.RetrievedCount})
}

// generate substitutes an apology on collaborator failure
func (p *PipelineExecutor) generate(ctx context.Context, s *state.TurnState) {
	if s.Question == "" {
		p.logger.Warn(module, "No question found for generation", nil)
		return
	}

	messages := append(append([]llm.Message{}, s.History...), llm.Message{
		Role:    store.RoleUser,
		Content: prompt.Generation(s.Question, s.Context),
	})

	gctx, cancel := withTimeout(ctx, p.generationTimeout)
	defer cancel()

	answer, err := p.complete(gctx, messages, s.Stream, s.OnChunk)
	if err != nil {
		s.Fail(err)
		s.GeneratedAnswer = response.GenerationApology
		s.HasGenerated = true
		s.GenerationErr = true
		// nothing retrieved and nothing generated: no usable state
		if len(s.Retrieved) == 0 {
			s.Unrecoverable = true
		}
		p.logger.Error(module, "Generation failed", map[string]interface{}{
			"error":         err.Error(),
			"unrecoverable": s.Unrecoverable,
		})
		return
	}

	s.GeneratedAnswer = answer
	s.HasGenerated = true
	p.logger.Info(module, "Generated answer", map[string]interface{}{"characters": utf8.RuneCountInString(answer)})
}

func (p *PipelineExecutor) evaluate(_ context.Context, s *state.TurnState) {
	result := p.evaluator.Evaluate(s.Question, s.GeneratedAnswer, s.Context, s.Intent)
	s.Confidence = result.Confidence
	s.EvaluationReasons = result.Reasons
	s.NeedsClarification = result.NeedsClarification
	s.Evaluated = true

	p.logger.Info(module, "Evaluation complete", map[string]interface{}{
		"confidence": result.Confidence,
		"reasons":    result.Reasons,
	})
}

func (p *PipelineExecutor) clarify(ctx context.Context, s *state.TurnState) {
	cctx, cancel := withTimeout(ctx, p.generationTimeout)
	defer cancel()

	text, err := p.llmProvider.Generate(cctx, prompt.Clarification(s.Question, s.Context, s.Confidence))
	if err != nil {
		s.Fail(err)
		p.logger.Warn(module, "Clarification failed, using default", map[string]interface{}{"error": err.Error()})
		text = ""
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minClarificationLen {
		text = response.DefaultClarification
	}

	s.ClarificationText = text
	s.NeedsClarification = true
}

func (p *PipelineExecutor) fallbackStage(s *state.TurnState) {
	s.Finish(p.fallback.Pick())
	s.NeedsHuman = true
	p.logger.Error(module, "Fallback triggered", map[string]interface{}{"error": s.Error})
}

// respond never fails: every input is already resolved to text
func (p *PipelineExecutor) respond(s *state.TurnState) {
	var answer string
	switch {
	case s.HasFinal:
		answer = s.FinalAnswer
	case s.NeedsClarification && s.ClarificationText != "":
		answer = response.WithCitations(s.ClarificationText, s.Retrieved)
	case s.GeneratedAnswer != "":
		answer = response.WithCitations(s.GeneratedAnswer, s.Retrieved)
	default:
		answer = response.WithCitations(response.CannotAnswer, s.Retrieved)
	}

	s.Messages = append(s.Messages, llm.Message{Role: store.RoleAssistant, Content: answer})
	s.Finish(answer)

	p.logger.Info(module, "Response generated", map[string]interface{}{"characters": utf8.RuneCountInString(answer)})
}

func (p *PipelineExecutor) complete(ctx context.Context, messages []llm.Message, stream bool, onChunk func(string)) (string, error) {
	if !stream {
		return p.llmProvider.Chat(ctx, messages)
	}
	chunks, err := p.llmProvider.Stream(ctx, messages)
	if err != nil {
		return "", err
	}
	return llm.Collect(ctx, chunks, onChunk)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
