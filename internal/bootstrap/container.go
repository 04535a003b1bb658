package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"sdm-platform-be/internal/config"
	"sdm-platform-be/internal/controller"
	"sdm-platform-be/internal/metrics"
	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/internal/repository/contract"
	"sdm-platform-be/internal/repository/implementation"
	"sdm-platform-be/internal/repository/memory"
	"sdm-platform-be/internal/service"
	"sdm-platform-be/pkg/database"
	"sdm-platform-be/pkg/embedding"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/graph/modes"
	"sdm-platform-be/pkg/graph/nodes"
	"sdm-platform-be/pkg/jobs"
	"sdm-platform-be/pkg/llm/factory"
	pkgMemory "sdm-platform-be/pkg/memory"
	"sdm-platform-be/pkg/memory/extraction"
	pktNats "sdm-platform-be/pkg/nats"
	"sdm-platform-be/pkg/retrieval"
	"sdm-platform-be/pkg/status"
	"sdm-platform-be/pkg/tools"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// memoryLockTTL bounds one memory read-merge-write.
const memoryLockTTL = 30 * time.Second

type Container struct {
	// Controllers
	ConversationController controller.IConversationController

	// Services
	TurnService service.ITurnService
	JobService  service.IJobService

	// Background worker (exposed for main.go to run)
	JobConsumer jobs.Consumer

	Registry *prometheus.Registry
	Logger   logger.ILogger

	closers []func() error
	checks  map[string]func(context.Context) error
}

// NewContainer wires the application. A nil db switches every store to its in-process
// implementation, which is only suitable for development.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(logger.Options{
		FilePath:   cfg.App.LogFilePath,
		Level:      cfg.App.LogLevel,
		Production: cfg.App.Environment == "production",
	})
	c := &Container{Logger: sysLogger, checks: map[string]func(context.Context) error{}}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)
	c.Registry = registry

	// 2. AI Providers
	embeddingProvider := newEmbeddingProvider(cfg)
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		llmAPIKey(cfg),
	)
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 3. Storage
	var (
		checkpointer  graph.Checkpointer
		memoryStore   pkgMemory.Store
		conversations contract.ConversationRepository
		catalog       contract.ConversationPointRepository
		journeys      contract.JourneyRepository
		aids          contract.DecisionAidRepository
		index         retrieval.Index
	)
	if db != nil {
		c.checks["postgres"] = func(ctx context.Context) error { return database.Ping(ctx, db) }
		checkpointer = implementation.NewCheckpointRepository(db)
		memoryStore = implementation.NewMemoryStore(db)
		conversations = implementation.NewConversationRepository(db)
		catalog = implementation.NewConversationPointRepository(db)
		journeys = implementation.NewJourneyRepository(db)
		aids = implementation.NewDecisionAidRepository(db)
		index = implementation.NewEvidenceIndex(db, embeddingProvider, cfg.RAG.CollectionsTTL)
	} else {
		log.Printf("[WARN] No database configured, using in-memory stores")
		catalogStore := memory.NewCatalogStore()
		checkpointer = graph.NewMemoryCheckpointer()
		memoryStore = memory.NewMemoryStore()
		conversations = memory.NewConversationStore()
		catalog = catalogStore
		journeys = catalogStore
		aids = catalogStore
		index = retrieval.NopIndex{}
	}

	// Redis (thread lease + status pub/sub)
	var (
		locker       graph.ThreadLocker = graph.NewLocalLocker()
		memoryLocker pkgMemory.Locker   = graph.NewLocalLocker()
		notifier     status.Notifier    = status.NopNotifier{}
	)
	if cfg.App.RedisURL != "" {
		rdb, err := newRedisClient(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		} else {
			locker = implementation.NewRedisThreadLocker(rdb, cfg.Graph.ThreadLockTTL)
			memoryLocker = implementation.NewRedisMemoryLocker(rdb, memoryLockTTL)
			notifier = status.NewRedisNotifier(rdb, sysLogger)
			c.closers = append(c.closers, rdb.Close)
		}
	}

	// 4. Jobs
	var jobService service.IJobService
	onFailure := func(topic string, payload []byte, err error) {
		if jobService != nil {
			jobService.OnTerminalFailure(topic, payload, err)
		}
	}
	queue, consumer, err := c.newJobBackend(cfg, sysLogger, onFailure)
	if err != nil {
		return nil, err
	}
	c.JobConsumer = consumer

	// 5. Domain
	profiles := pkgMemory.NewProfileManager(memoryStore, sysLogger, pkgMemory.WithLocker(memoryLocker))
	points := pkgMemory.NewPointManager(memoryStore, sysLogger, pkgMemory.WithLocker(memoryLocker))

	toolRegistry, err := tools.NewRegistry(tools.NewShowDecisionAid(aids))
	if err != nil {
		return nil, fmt.Errorf("init tools: %w", err)
	}

	ranker := retrieval.NewRanker(index, retrieval.Config{
		CollectionPrefix: cfg.RAG.CollectionPrefix,
		MaxCollections:   cfg.RAG.MaxCollections,
		PerCollectionK:   cfg.RAG.PerCollectionK,
		MaxResults:       cfg.RAG.MaxResults,
		MaxDistance:      cfg.RAG.MaxDistance,
		Concurrency:      cfg.RAG.Concurrency,
	}, sysLogger)

	modeRegistry := modes.NewRegistry()
	mode := modeRegistry.Resolve(cfg.Graph.Mode, sysLogger)
	compiled, err := modeRegistry.Build(mode, modes.Deps{
		Provider:     llmProvider,
		Tools:        toolRegistry,
		Ranker:       ranker,
		Profiles:     profiles,
		Queue:        queue,
		Checkpointer: checkpointer,
		Logger:       sysLogger,
		Model: nodes.ModelConfig{
			MaxToolRounds: cfg.Ai.MaxToolRounds,
			AssistantName: cfg.Ai.AssistantName,
		},
		Options: []graph.CompileOption{
			graph.WithLocker(locker),
			graph.WithMaxSteps(cfg.Graph.MaxSteps),
			graph.WithObserver(appMetrics),
		},
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Conversation graph compiled in %s mode", mode)

	extractor := extraction.NewExtractor(llmProvider, profiles, points, catalog, notifier, extraction.Config{
		Model:          cfg.Memory.ExtractionModel,
		CallsPerMinute: cfg.Memory.ExtractionCallsPerMinute,
	}, sysLogger)

	// 6. Services
	turnService := service.NewTurnService(service.TurnServiceDeps{
		Graph:         compiled,
		Mode:          mode,
		Provider:      llmProvider,
		AssistantName: cfg.Ai.AssistantName,
		Profiles:      profiles,
		Points:        points,
		Catalog:       catalog,
		Journeys:      journeys,
		MemoryStore:   memoryStore,
		Conversations: conversations,
		Queue:         queue,
		Notifier:      notifier,
		Observer:      appMetrics,
		Logger:        sysLogger,
	})
	jobService = service.NewJobService(turnService, extractor, notifier, appMetrics, sysLogger)
	if err := jobService.Register(consumer); err != nil {
		return nil, err
	}
	c.TurnService = turnService
	c.JobService = jobService

	// 7. Controllers
	c.ConversationController = controller.NewConversationController(turnService, controller.ConversationControllerConfig{
		MessagesPerMinute: cfg.App.MessagesPerMinute,
	})
	return c, nil
}

// Ready runs every dependency check and returns the failures keyed by name.
func (c *Container) Ready(ctx context.Context) map[string]error {
	failed := map[string]error{}
	for name, check := range c.checks {
		if err := check(ctx); err != nil {
			failed[name] = err
		}
	}
	return failed
}

// Close releases the job backend and connections in reverse order of creation.
func (c *Container) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	_ = c.Logger.Sync()
	return first
}

func (c *Container) newJobBackend(cfg *config.Config, sysLogger logger.ILogger, onFailure jobs.FailureFunc) (jobs.Queue, jobs.Consumer, error) {
	policy := jobs.DefaultPolicy()
	if cfg.Jobs.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Jobs.MaxAttempts
	}
	if cfg.Jobs.InitialBackoff > 0 {
		policy.InitialBackoff = cfg.Jobs.InitialBackoff
	}
	if cfg.Jobs.SoftTimeout > 0 {
		policy.SoftTimeout = cfg.Jobs.SoftTimeout
	}
	if cfg.Jobs.HardTimeout > 0 {
		policy.HardTimeout = cfg.Jobs.HardTimeout
	}

	switch cfg.Jobs.Backend {
	case "nats":
		nc, js, err := pktNats.Connect(context.Background(), cfg.App.NatsURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		sub := pktNats.NewSubscriber(nc, js, policy, sysLogger, onFailure)
		c.closers = append(c.closers, sub.Close)
		return pktNats.NewPublisher(js), sub, nil
	case "watermill", "":
		q, err := jobs.NewWatermillQueue(policy, sysLogger, onFailure)
		if err != nil {
			return nil, nil, fmt.Errorf("init watermill queue: %w", err)
		}
		c.closers = append(c.closers, q.Close)
		return q, q, nil
	default:
		return nil, nil, fmt.Errorf("unsupported job backend: %s", cfg.Jobs.Backend)
	}
}

func newEmbeddingProvider(cfg *config.Config) embedding.EmbeddingProvider {
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
		return embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	case "gemini":
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
		return embedding.NewGeminiProvider(cfg.Keys.GoogleGemini, cfg.Ai.EmbeddingModel)
	default:
		log.Printf("[INFO] Using Embedding Provider: OPENAI")
		return embedding.NewOpenAIProvider(cfg.Keys.OpenAI, "", cfg.Ai.EmbeddingModel)
	}
}

func llmAPIKey(cfg *config.Config) string {
	switch cfg.Ai.LLMProvider {
	case "anthropic":
		return cfg.Keys.Anthropic
	case "openai":
		return cfg.Keys.OpenAI
	case "huggingface":
		return cfg.Keys.HuggingFace
	}
	return ""
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
