package bootstrap

import (
	"context"
	"log"
	"time"

	"deep-research-be/internal/config"
	"deep-research-be/internal/controller"
	"deep-research-be/internal/pkg/logger"
	"deep-research-be/internal/repository/contract"
	"deep-research-be/internal/repository/implementation"
	"deep-research-be/internal/repository/memory"
	"deep-research-be/internal/service"
	"deep-research-be/pkg/checkpoint"
	"deep-research-be/pkg/embedding"
	embeddingJina "deep-research-be/pkg/embedding/jina"
	embeddingOllama "deep-research-be/pkg/embedding/ollama"
	"deep-research-be/pkg/embedding/siliconflow"
	"deep-research-be/pkg/events"
	"deep-research-be/pkg/llm/factory"
	"deep-research-be/pkg/rag"
	"deep-research-be/pkg/rerank"
	"deep-research-be/pkg/tools"

	pktNats "deep-research-be/pkg/nats"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	sessionTTL    = 2 * time.Hour
	checkpointTTL = 24 * time.Hour
)

type Container struct {
	ChatController controller.IChatController
	OpsController  controller.IOpsController

	// Shared infrastructure exposed for graceful shutdown.
	EventBus    *events.Bus
	Completions *pktNats.Publisher
	Checkpoints checkpoint.Store
	Logger      logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// LLM provider
	llmProvider, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider:  cfg.Llm.Provider,
		BaseURL:   cfg.Llm.BaseURL,
		ApiKey:    cfg.Llm.ApiKey,
		ModelName: cfg.Llm.ModelName,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s", cfg.Llm.Provider)

	// Embedding provider
	var embeddingProvider embedding.EmbeddingProvider
	switch cfg.Embedding.Provider {
	case "ollama":
		embeddingProvider = embeddingOllama.NewOllamaProvider(cfg.Embedding.BaseURL, cfg.Embedding.ModelName)
	case "jina":
		embeddingProvider = embeddingJina.NewJinaProvider(cfg.Embedding.ApiKey, cfg.Embedding.ModelName)
	default:
		embeddingProvider = siliconflow.NewSiliconFlowProvider(cfg.Embedding.BaseURL, cfg.Embedding.ApiKey, cfg.Embedding.ModelName)
	}
	log.Printf("[INFO] Using Embedding Provider: %s", cfg.Embedding.Provider)

	// Reranker, with a lexical fallback that needs no external service
	var reranker rerank.Reranker
	if cfg.Rerank.Provider == "jina" && cfg.Rerank.ApiKey != "" {
		reranker = rerank.NewJinaReranker(cfg.Rerank.ApiKey, cfg.Rerank.Model)
	} else {
		reranker = rerank.NewLexicalReranker()
	}
	log.Printf("[INFO] Using Reranker: %s", cfg.Rerank.Provider)

	// Chunk index: pgvector when a database is wired, in-process otherwise
	var chunkRepo contract.ChunkRepository
	if cfg.App.StoreDriver == "postgres" && db != nil {
		chunkRepo = implementation.NewChunkRepository(db)
	} else {
		chunkRepo = memory.NewChunkRepository()
	}
	log.Printf("[INFO] Using Chunk Store: %s", cfg.App.StoreDriver)

	ragStore := rag.NewStore(chunkRepo, embeddingProvider, reranker, sysLogger, rag.DefaultConfig())

	// Run snapshot storage
	var checkpointStore checkpoint.Store
	if cfg.App.CheckpointDriver == "redis" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		checkpointStore = checkpoint.NewRedisStore(rdb, checkpointTTL)
	} else {
		checkpointStore = checkpoint.NewMemoryStore(checkpointTTL)
	}

	// NATS completion events are optional; a nil publisher drops them.
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		}
	}

	sessionRepo := memory.NewSessionRepository(sessionTTL)
	eventBus := events.NewBus()
	gateway := tools.NewHTTPGateway(tools.DefaultConfig())

	researchService := service.NewResearchService(
		llmProvider,
		ragStore,
		sessionRepo,
		eventBus,
		checkpointStore,
		natsPub,
		gateway,
		sysLogger,
	)

	return &Container{
		ChatController: controller.NewChatController(researchService),
		OpsController:  controller.NewOpsController(sysLogger),
		EventBus:       eventBus,
		Completions:    natsPub,
		Checkpoints:    checkpointStore,
		Logger:         sysLogger,
	}
}
