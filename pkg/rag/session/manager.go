// Package session is the chat entry point: it owns per-session history and wires
// retrieval and generation into each turn.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ai-helpdesk-be/internal/pkg/logger"
	"ai-helpdesk-be/pkg/events"
	"ai-helpdesk-be/pkg/llm"
	"ai-helpdesk-be/pkg/rag/executor"
	"ai-helpdesk-be/pkg/rag/prompt"
	"ai-helpdesk-be/pkg/rag/response"
	"ai-helpdesk-be/pkg/rag/state"
	"ai-helpdesk-be/pkg/retrieval"
	"ai-helpdesk-be/pkg/store"
)

const (
	module = "SessionManager"

	ModeDirect = "direct"
	ModeGraph  = "graph"

	DefaultMaxHistory = 10
	MaxMessageRunes   = 10000
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrSessionNotFound = errors.New("session not found")
)

type Config struct {
	MaxHistory        int // <= 0 uses DefaultMaxHistory
	TopK              int // <= 0 uses executor.DefaultTopK
	SystemPrompt      string
	Mode              string // ModeDirect or ModeGraph
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.TopK <= 0 {
		c.TopK = executor.DefaultTopK
	}
	if c.Mode != ModeGraph {
		c.Mode = ModeDirect
	}
	return c
}

// Window is the number of stored messages kept per session
func (c Config) Window() int {
	return (c.MaxHistory + 1) * 2
}

type ChatRequest struct {
	Message   string
	SessionID string // empty starts a new session
	UserID    string
	UseRAG    bool
	TopK      int // <= 0 uses the configured default
	Stream    bool
	OnChunk   func(string) // observes streamed increments; may be nil
}

type Source struct {
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	Filename string  `json:"filename"`
	ChunkID  string  `json:"chunk_id"`
}

// Assessment is the state machine's view of the turn
type Assessment struct {
	Confidence         float64  `json:"confidence"`
	Reasons            []string `json:"reasons"`
	NeedsClarification bool     `json:"needs_clarification"`
	NeedsHuman         bool     `json:"needs_human"`
}

type ChatResult struct {
	Response   string      `json:"response"`
	SessionID  string      `json:"session_id"`
	Sources    []Source    `json:"sources"`
	Confidence float64     `json:"confidence"` // top retrieval score, 0 without sources
	Timestamp  time.Time   `json:"timestamp"`
	Assessment *Assessment `json:"assessment,omitempty"` // graph mode only
}

type Manager struct {
	repo      Repository
	retriever retrieval.Retriever
	llm       llm.LLMProvider
	pipeline  *executor.PipelineExecutor
	builder   *prompt.ChatBuilder
	publisher events.Publisher
	logger    logger.ILogger
	locks     *keyedMutex
	cfg       Config
	now       func() time.Time
}

type Option func(*Manager)

func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithClock overrides time.Now for message and session timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithExecutorOptions passes extra options to the graph-mode state machine
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(m *Manager) {
		m.pipeline = executor.NewPipelineExecutor(m.retriever, m.llm, m.logger, append(m.executorDefaults(), opts...)...)
	}
}

func NewManager(repo Repository, retriever retrieval.Retriever, llmProvider llm.LLMProvider, log logger.ILogger, cfg Config, opts ...Option) *Manager {
	if retriever == nil {
		retriever = retrieval.Noop{}
	}
	m := &Manager{
		repo:      repo,
		retriever: retriever,
		llm:       llmProvider,
		publisher: events.NoopPublisher{},
		logger:    log,
		locks:     newKeyedMutex(),
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
	m.builder = prompt.NewChatBuilder(m.cfg.SystemPrompt, m.cfg.MaxHistory)
	m.pipeline = executor.NewPipelineExecutor(retriever, llmProvider, log, m.executorDefaults()...)

	for _, opt := range opts {
		opt(m)
	}

	repo.OnEvicted(func(id string) {
		m.logger.Info(module, "Session evicted", map[string]interface{}{"session_id": id})
	})
	return m
}

func (m *Manager) executorDefaults() []executor.Option {
	return []executor.Option{
		executor.WithTopK(m.cfg.TopK),
		executor.WithTimeouts(m.cfg.RetrievalTimeout, m.cfg.GenerationTimeout),
	}
}

func (m *Manager) Config() Config {
	return m.cfg
}

// Chat runs one turn. Degraded collaborators never surface as errors; only
// invalid input, storage failures and cancellation do. A cancelled turn leaves
// history untouched.
func (m *Manager) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if err := validateMessage(req.Message); err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = NewID()
	} else if !ValidID(sessionID) {
		return nil, fmt.Errorf("%w: malformed session id", ErrInvalidInput)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = m.cfg.TopK
	}

	history, err := m.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	useRAG := req.UseRAG
	var results []store.RetrievalResult
	if useRAG {
		results, err = m.retrieve(ctx, req.Message, topK)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Warn(module, "Retrieval failed, answering without knowledge base", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
			useRAG = false
			results = nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		answer     string
		assessment *Assessment
	)
	if m.cfg.Mode == ModeGraph {
		answer, assessment, err = m.runGraph(ctx, req, history, results, useRAG)
	} else {
		answer, err = m.runDirect(ctx, req, history, results, useRAG)
	}
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(results))
	if useRAG {
		for _, r := range results {
			sources = append(sources, Source{Content: r.Content, Score: r.Score, Filename: r.Filename(), ChunkID: r.ChunkID})
		}
	}
	confidence := 0.0
	if len(sources) > 0 {
		confidence = sources[0].Score
	}

	now := m.now()
	if err := m.persist(ctx, sessionID, req, answer, useRAG, sources, confidence, now); err != nil {
		return nil, err
	}

	result := &ChatResult{
		Response:   answer,
		SessionID:  sessionID,
		Sources:    sources,
		Confidence: confidence,
		Timestamp:  now,
		Assessment: assessment,
	}
	m.publish(ctx, req, result)
	return result, nil
}

func validateMessage(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(msg) > MaxMessageRunes {
		return fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, MaxMessageRunes)
	}
	return nil
}

// snapshot reads the prompt history under the session lock
func (m *Manager) snapshot(ctx context.Context, id string) ([]store.Message, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	sess, found, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return sess.Last(m.cfg.MaxHistory), nil
}

func (m *Manager) retrieve(ctx context.Context, query string, topK int) ([]store.RetrievalResult, error) {
	rctx, cancel := withTimeout(ctx, m.cfg.RetrievalTimeout)
	defer cancel()

	results, err := m.retriever.Retrieve(rctx, query, topK)
	if err != nil {
		return nil, err
	}
	store.SortByScore(results)
	return results, nil
}

func (m *Manager) runDirect(ctx context.Context, req ChatRequest, history []store.Message, results []store.RetrievalResult, useRAG bool) (string, error) {
	contextText := ""
	if useRAG {
		contextText = prompt.FormatContext(results)
	}
	messages := m.builder.Build(req.Message, contextText, useRAG, history)

	gctx, cancel := withTimeout(ctx, m.cfg.GenerationTimeout)
	defer cancel()

	var (
		answer string
		err    error
	)
	if req.Stream {
		var chunks <-chan llm.Chunk
		if chunks, err = m.llm.Stream(gctx, messages); err == nil {
			answer, err = llm.Collect(gctx, chunks, req.OnChunk)
		}
	} else {
		answer, err = m.llm.Chat(gctx, messages)
	}

	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		m.logger.Error(module, "Generation failed, replying with apology", map[string]interface{}{"error": err.Error()})
		return response.ChatApology, nil
	}
	return answer, nil
}

func (m *Manager) runGraph(ctx context.Context, req ChatRequest, history []store.Message, results []store.RetrievalResult, useRAG bool) (string, *Assessment, error) {
	s := state.New(req.Message, m.builder.History(history))
	if useRAG {
		s.Prefetched(results, prompt.JoinContents(results))
	} else {
		s.Prefetched(nil, "")
	}
	s.Stream = req.Stream
	s.OnChunk = req.OnChunk

	s = m.pipeline.Execute(ctx, s)
	if !s.Terminal() {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("pipeline stopped at %s: %s", s.Stage, s.Error)
	}

	return s.FinalAnswer, &Assessment{
		Confidence:         s.Confidence,
		Reasons:            s.EvaluationReasons,
		NeedsClarification: s.NeedsClarification,
		NeedsHuman:         s.NeedsHuman,
	}, nil
}

// persist appends the completed turn and trims the window under the session lock
func (m *Manager) persist(ctx context.Context, id string, req ChatRequest, answer string, useRAG bool, sources []Source, confidence float64, now time.Time) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	sess, found, err := m.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load session %s: %w", id, err)
	}
	if !found {
		sess = store.NewSession(id, req.UserID, now)
	}

	filenames := make([]string, 0, len(sources))
	for _, s := range sources {
		filenames = append(filenames, s.Filename)
	}

	sess.Append(now,
		store.Message{
			Role:      store.RoleUser,
			Content:   req.Message,
			Metadata:  map[string]interface{}{"use_rag": useRAG, "sources_count": len(sources)},
			Timestamp: now,
		},
		store.Message{
			Role:      store.RoleAssistant,
			Content:   answer,
			Metadata:  map[string]interface{}{"confidence": confidence, "sources": filenames},
			Timestamp: now,
		},
	)
	sess.TrimTo(m.cfg.Window())

	if err := m.repo.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

// publish is best effort: bus failures never fail a turn
func (m *Manager) publish(ctx context.Context, req ChatRequest, res *ChatResult) {
	ctx = context.WithoutCancel(ctx)

	turn := events.TurnCompleted{
		SessionID:    res.SessionID,
		UserID:       req.UserID,
		Mode:         m.cfg.Mode,
		Confidence:   res.Confidence,
		SourcesCount: len(res.Sources),
	}
	if err := m.publisher.Publish(ctx, turn.Event(res.Timestamp)); err != nil {
		m.logger.Warn(module, "Failed to publish turn event", map[string]interface{}{"error": err.Error()})
	}

	if res.Assessment == nil || !res.Assessment.NeedsHuman {
		return
	}
	escalation := events.EscalationRequired{
		SessionID: res.SessionID,
		UserID:    req.UserID,
		Question:  req.Message,
		Response:  res.Response,
	}
	if err := m.publisher.Publish(ctx, escalation.Event(res.Timestamp)); err != nil {
		m.logger.Warn(module, "Failed to publish escalation event", map[string]interface{}{"error": err.Error()})
	}
}

// GetHistory returns the stored messages, at most the last limit when limit > 0.
// An unknown session has an empty history.
func (m *Manager) GetHistory(ctx context.Context, id string, limit int) ([]store.Message, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: malformed session id", ErrInvalidInput)
	}
	sess, found, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if !found {
		return []store.Message{}, nil
	}
	return sess.Last(limit), nil
}

// GetSession returns a copy of the stored session
func (m *Manager) GetSession(ctx context.Context, id string) (*store.Session, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: malformed session id", ErrInvalidInput)
	}
	sess, found, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if !found {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// ClearHistory deletes the session and reports whether it existed
func (m *Manager) ClearHistory(ctx context.Context, id string) (bool, error) {
	if !ValidID(id) {
		return false, fmt.Errorf("%w: malformed session id", ErrInvalidInput)
	}
	unlock := m.locks.Lock(id)
	defer unlock()

	deleted, err := m.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", id, err)
	}
	if deleted {
		m.logger.Info(module, "Session cleared", map[string]interface{}{"session_id": id})
	}
	return deleted, nil
}

func (m *Manager) SessionCount(ctx context.Context) (int, error) {
	return m.repo.Count(ctx)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
