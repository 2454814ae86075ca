package bootstrap

import (
	"context"
	"fmt"

	"ai-helpdesk-be/internal/config"
	"ai-helpdesk-be/internal/controller"
	"ai-helpdesk-be/internal/model"
	"ai-helpdesk-be/internal/pkg/logger"
	"ai-helpdesk-be/internal/pkg/serverutils"
	"ai-helpdesk-be/internal/repository/memory"
	"ai-helpdesk-be/internal/repository/postgres"
	redisRepo "ai-helpdesk-be/internal/repository/redis"
	"ai-helpdesk-be/internal/service"
	"ai-helpdesk-be/pkg/database"
	"ai-helpdesk-be/pkg/embedding"
	"ai-helpdesk-be/pkg/events"
	"ai-helpdesk-be/pkg/llm/factory"
	"ai-helpdesk-be/pkg/rag/evaluator"
	"ai-helpdesk-be/pkg/rag/executor"
	"ai-helpdesk-be/pkg/rag/response"
	"ai-helpdesk-be/pkg/rag/session"
	"ai-helpdesk-be/pkg/retrieval"

	pktNats "ai-helpdesk-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const module = "Bootstrap"

type Container struct {
	// Controllers
	ChatController   controller.IChatController
	HealthController controller.IHealthController

	// Core (exposed for the console client)
	SessionManager *session.Manager

	// Background Services (Exposed for main.go to run)
	EscalationService service.IEscalationService
	natsSubscriber    *pktNats.Subscriber

	Logger  logger.ILogger
	closers []func()
}

// NewContainer wires every component from cfg. db may be nil, in which case
// vector retrieval is disabled.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	pipelineLogger := logger.NewIsolatedLogger(cfg.App.PipelineLogPath)
	c := &Container{Logger: sysLogger}

	var checks []controller.ReadinessCheck

	// 2. Generation
	llmProvider, err := factory.NewLLMProvider(factory.Options{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  cfg.Ai.LLMBaseURL,
		APIKey:   cfg.Ai.LLMAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	sysLogger.Info(module, "Using LLM provider", map[string]interface{}{"provider": cfg.Ai.LLMProvider, "model": cfg.Ai.LLMModel})

	// 3. Retrieval
	var retriever retrieval.Retriever = retrieval.Noop{}
	if db != nil && cfg.Ai.EmbeddingProvider == "ollama" {
		embedder := embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel).WithDimensions(model.EmbeddingDimensions)
		retriever = retrieval.NewVector(embedder, postgres.NewChunkRepository(db))
		checks = append(checks, controller.ReadinessCheck{Name: "database", Check: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}})
		sysLogger.Info(module, "Using vector retrieval", map[string]interface{}{"embedding_model": cfg.Ai.EmbeddingModel})
	} else {
		sysLogger.Warn(module, "No knowledge base configured, answers use model knowledge only", nil)
	}

	// 4. Session Storage
	var sessionRepo session.Repository
	switch cfg.Session.Store {
	case "redis":
		opt, err := redis.ParseURL(cfg.Session.RedisURL)
		if err != nil {
			sysLogger.Warn(module, "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.Session.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			sysLogger.Warn(module, "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		checks = append(checks, controller.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		sessionRepo = redisRepo.NewSessionRepository(rdb, cfg.Session.TTL)
	default:
		sessionRepo = memory.NewSessionRepository(cfg.Session.TTL, cfg.Session.CleanupInterval, cfg.Session.MaxSessions)
	}

	// 5. Event Bus
	publisher, err := c.initEvents(cfg, sysLogger)
	if err != nil {
		return nil, err
	}

	// 6. Chat Core
	var picker response.FallbackPicker = response.NewRotatingPicker()
	if cfg.Chat.RandomFallback {
		picker = response.RandomPicker{}
	}

	c.SessionManager = session.NewManager(sessionRepo, retriever, llmProvider, pipelineLogger, session.Config{
		MaxHistory:        cfg.Chat.MaxHistory,
		TopK:              cfg.Chat.TopK,
		SystemPrompt:      cfg.Chat.SystemPrompt,
		Mode:              cfg.Chat.Mode,
		RetrievalTimeout:  cfg.Chat.RetrievalTimeout,
		GenerationTimeout: cfg.Chat.GenerationTimeout,
	},
		session.WithPublisher(publisher),
		session.WithExecutorOptions(
			executor.WithEvaluator(evaluator.New(evaluator.WithThreshold(cfg.Chat.ConfidenceCutoff))),
			executor.WithFallbackPicker(picker),
		),
	)

	c.closers = append(c.closers, func() {
		_ = pipelineLogger.Sync()
		_ = sysLogger.Sync()
	})

	// 7. Controllers
	chatService := service.NewChatService(c.SessionManager)
	c.ChatController = controller.NewChatController(chatService, serverutils.JwtMiddleware(cfg.App.JWTSecret), sysLogger)
	c.HealthController = controller.NewHealthController(checks...)

	return c, nil
}

func (c *Container) initEvents(cfg *config.Config, log logger.ILogger) (events.Publisher, error) {
	switch cfg.Events.Bus {
	case "none":
		return events.NoopPublisher{}, nil
	case "nats":
		natsPub, err := pktNats.NewPublisher(cfg.Events.NatsURL, log)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, natsPub.Close)

		natsSub, err := pktNats.NewSubscriber(cfg.Events.NatsURL, log)
		if err != nil {
			log.Warn(module, "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
		} else {
			c.natsSubscriber = natsSub
			c.closers = append(c.closers, natsSub.Close)
		}
		c.EscalationService = service.NewEscalationService(nil, log)
		return natsPub, nil
	default:
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
		c.closers = append(c.closers, func() { _ = pubSub.Close() })
		c.EscalationService = service.NewEscalationService(pubSub, log)
		return events.NewBusPublisher(pubSub), nil
	}
}

// StartBackground runs the escalation consumer on whichever bus is configured
func (c *Container) StartBackground(ctx context.Context) error {
	if c.EscalationService == nil {
		return nil
	}
	if c.natsSubscriber != nil {
		return c.natsSubscriber.Subscribe(ctx, events.ChatEscalationRequired, "helpdesk-escalations", c.EscalationService.Handle)
	}
	return c.EscalationService.Consume(ctx)
}

// Close releases connections in reverse order of creation
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
