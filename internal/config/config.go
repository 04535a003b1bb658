package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"sdm-platform-be/pkg/database"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	RAG      RAGConfig
	Graph    GraphConfig
	Jobs     JobsConfig
	Memory   MemoryConfig
	Otel     TelemetryConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LogLevel           string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
	// MessagesPerMinute caps message submissions per user; 0 disables the limiter.
	MessagesPerMinute int
	BodyLimitBytes    int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
}

type DatabaseConfig struct {
	Connection      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
}

type TelemetryConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64
}

type APIKeys struct {
	OpenAI       string
	Anthropic    string
	GoogleGemini string
	HuggingFace  string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini", "ollama" or "openai"
	EmbeddingModel    string
	OllamaBaseURL     string
	LLMProvider       string // "ollama", "openai", "anthropic" or "huggingface"
	LLMModel          string
	LLMBaseURL        string
	AssistantName     string
	MaxToolRounds     int
}

type RAGConfig struct {
	MaxDistance      float64
	PerCollectionK   int
	MaxResults       int
	MaxCollections   int
	CollectionPrefix string
	Concurrency      int
	// CollectionsTTL is how long the collection list is cached.
	CollectionsTTL time.Duration
}

type GraphConfig struct {
	Mode     string
	MaxSteps int
	// ThreadLockTTL bounds how long a turn may hold the Redis thread lease.
	ThreadLockTTL time.Duration
}

type JobsConfig struct {
	Backend        string // "watermill" or "nats"
	MaxAttempts    int
	InitialBackoff time.Duration
	SoftTimeout    time.Duration
	HardTimeout    time.Duration
}

type MemoryConfig struct {
	ExtractionModel          string
	ExtractionCallsPerMinute int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			MessagesPerMinute:  getEnvAsInt("MESSAGES_PER_MINUTE", 0),
			BodyLimitBytes:     getEnvAsInt("HTTP_BODY_LIMIT_BYTES", 1<<20),
			ReadTimeout:        getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout:    getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Connection:      getEnv("DB_CONNECTION_STRING", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			SlowThreshold:   getEnvAsDuration("DB_SLOW_THRESHOLD", 500*time.Millisecond),
		},
		Keys: APIKeys{
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
			Anthropic:    getEnv("ANTHROPIC_API_KEY", ""),
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", ""),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
			LLMModel:          getEnv("LLM_MODEL", "gpt-4.1"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			AssistantName:     getEnv("AI_ASSISTANT_NAME", "Assistant"),
			MaxToolRounds:     getEnvAsInt("LLM_MAX_TOOL_ROUNDS", 5),
		},
		RAG: RAGConfig{
			MaxDistance:      getEnvAsFloat("RAG_MAX_DISTANCE", 0.5),
			PerCollectionK:   getEnvAsInt("RAG_PER_COLLECTION_K", 2),
			MaxResults:       getEnvAsInt("RAG_MAX_RESULTS", 5),
			MaxCollections:   getEnvAsInt("RAG_MAX_COLLECTIONS", 50),
			CollectionPrefix: getEnv("RAG_COLLECTION_PREFIX", "doc_"),
			Concurrency:      getEnvAsInt("RAG_CONCURRENCY", 8),
			CollectionsTTL:   getEnvAsDuration("RAG_COLLECTIONS_TTL", 30*time.Second),
		},
		Graph: GraphConfig{
			Mode:          getEnv("LLM_GRAPH_MODE", "assistant"),
			MaxSteps:      getEnvAsInt("GRAPH_MAX_STEPS", 25),
			ThreadLockTTL: getEnvAsDuration("THREAD_LOCK_TTL", 5*time.Minute),
		},
		Jobs: JobsConfig{
			Backend:        getEnv("JOB_BACKEND", "watermill"),
			MaxAttempts:    getEnvAsInt("JOB_MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvAsDuration("JOB_INITIAL_BACKOFF", 2*time.Second),
			SoftTimeout:    getEnvAsDuration("JOB_SOFT_TIMEOUT", 2*time.Minute),
			HardTimeout:    getEnvAsDuration("JOB_HARD_TIMEOUT", 3*time.Minute),
		},
		Memory: MemoryConfig{
			ExtractionModel:          getEnv("MEMORY_EXTRACTION_MODEL", ""),
			ExtractionCallsPerMinute: getEnvAsInt("MEMORY_EXTRACTION_CALLS_PER_MINUTE", 30),
		},
		Otel: TelemetryConfig{
			Enabled:        getEnv("OTEL_ENABLED", "") == "true",
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "sdm-platform-be"),
			ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
		},
	}
}

// DatabaseOptions maps the DB_* settings onto the pool options.
func (c *Config) DatabaseOptions() database.Options {
	return database.Options{
		DSN:             c.Database.Connection,
		Production:      c.App.Environment == "production",
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		SlowThreshold:   c.Database.SlowThreshold,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
