package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Chat     ChatConfig
	Session  SessionConfig
	Events   EventsConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	JWTSecret          string // empty disables auth on chat routes
	OtelEnabled        bool
	OtelEndpoint       string
	OtelSampleRatio    float64
	PipelineLogPath    string // per-stage executor trace, kept out of the main log
}

type DatabaseConfig struct {
	Connection string // empty disables vector retrieval
}

type AIConfig struct {
	EmbeddingProvider string // "ollama" or "none"
	OllamaBaseURL     string
	EmbeddingModel    string
	LLMProvider       string // "ollama", "huggingface", "minimax", "echo"
	LLMModel          string
	LLMBaseURL        string
	LLMAPIKey         string
}

type ChatConfig struct {
	Mode              string // "direct" or "graph"
	MaxHistory        int
	TopK              int
	SystemPrompt      string
	ConfidenceCutoff  float64
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
	RandomFallback    bool
}

type SessionConfig struct {
	Store           string // "memory" or "redis"
	TTL             time.Duration
	CleanupInterval time.Duration
	MaxSessions     int
	RedisURL        string
}

type EventsConfig struct {
	Bus     string // "memory", "nats" or "none"
	NatsURL string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			OtelSampleRatio:    getEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
			PipelineLogPath:    getEnv("PIPELINE_LOG_FILE_PATH", "logs/pipeline.log"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			EmbeddingModel:    getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "minimax"),
			LLMModel:          getEnv("LLM_MODEL", ""),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		},
		Chat: ChatConfig{
			Mode:              getEnv("CHAT_MODE", "direct"),
			MaxHistory:        getEnvAsInt("MAX_HISTORY", 10),
			TopK:              getEnvAsInt("TOP_K", 5),
			SystemPrompt:      getEnv("SYSTEM_PROMPT", ""),
			ConfidenceCutoff:  getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.7),
			RetrievalTimeout:  getEnvAsDuration("RETRIEVAL_TIMEOUT", 10*time.Second),
			GenerationTimeout: getEnvAsDuration("GENERATION_TIMEOUT", 60*time.Second),
			RandomFallback:    getEnvAsBool("RANDOM_FALLBACK", false),
		},
		Session: SessionConfig{
			Store:           getEnv("SESSION_STORE", "memory"),
			TTL:             getEnvAsDuration("SESSION_TTL", 0),
			CleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 10*time.Minute),
			MaxSessions:     getEnvAsInt("MAX_SESSIONS", 0),
			RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Events: EventsConfig{
			Bus:     getEnv("EVENT_BUS", "memory"),
			NatsURL: getEnv("NATS_URL", "nats://localhost:4222"),
		},
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("30s") or plain seconds ("30")
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
