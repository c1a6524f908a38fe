package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string
	LogLevel string

	DBDSN string

	// shared-secret credential for every API call
	APIKey     string
	APIKeyHash string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// "memory" (single instance) or "redis" (multi instance)
	SessionLockBackend string
	SessionLockTTL     time.Duration

	ChatContextWindowSize int
	OrganizationName      string

	// AI provider
	AIProvider        string
	GeminiAPIKey      string
	GeminiModel       string
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string

	// Model settings per pipeline step
	ResponseTemperature  float32
	ResponseMaxTokens    int
	QuestionsTemperature float32
	QuestionsMaxTokens   int
	LLMTimeout           time.Duration

	// Embeddings
	EmbeddingProvider string
	EmbeddingModel    string

	// Grounding corpus
	ObjectStore          string
	ObjectStoreRoot      string
	S3Bucket             string
	S3Region             string
	GroundingPrefix      string
	TranscriptsPrefix    string
	GroundingCacheDir    string
	GroundingRetryBase   time.Duration
	RetrievalTopK        int
	RetrievalMode        string
	RetrievalTimeout     time.Duration
	NextQuestionCount    int
	SuggestionCacheTTL   time.Duration
	TranslationEnabled   bool
	PrimaryLanguage      string
	SecondaryLanguage    string
	StudentProfilesCount int

	// rabbitMQ
	RabbitURL   string
	RabbitQueue string
}

func Load() Config {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	// DSN demo:
	// app:apppass@tcp(127.0.0.1:3306)/persona_chat?charset=utf8mb4&parseTime=true&loc=UTC
	// sqlite:persona_chat.db
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "sqlite:persona_chat.db"
	}

	aiProvider := os.Getenv("AI_PROVIDER")
	if aiProvider == "" {
		aiProvider = "gemini"
	}

	embeddingProvider := os.Getenv("EMBEDDING_PROVIDER")
	if embeddingProvider == "" {
		embeddingProvider = aiProvider
	}

	lockBackend := strings.ToLower(os.Getenv("SESSION_LOCK_BACKEND"))
	if lockBackend == "" {
		lockBackend = "memory"
	}

	objectStore := strings.ToLower(os.Getenv("OBJECT_STORE"))
	if objectStore == "" {
		objectStore = "fs"
	}

	retrievalMode := strings.ToLower(os.Getenv("RETRIEVAL_MODE"))
	if retrievalMode == "" {
		retrievalMode = "vector"
	}

	return Config{
		HTTPPort: getEnv("HTTP_PORT", "8000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBDSN: dsn,

		APIKey:     os.Getenv("BACKEND_API_KEY"),
		APIKeyHash: os.Getenv("BACKEND_API_KEY_HASH"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		SessionLockBackend: lockBackend,
		SessionLockTTL:     getEnvAsDuration("SESSION_LOCK_TTL", 2*time.Minute),

		ChatContextWindowSize: getEnvAsInt("CHAT_CONTEXT_WINDOW_SIZE", 20),
		OrganizationName:      getEnv("ORGANIZATION_NAME", "Agastya International Foundation"),

		AIProvider:        aiProvider,
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3:latest"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),

		ResponseTemperature:  getEnvAsFloat32("RESPONSE_GENERATION_MODEL_TEMPERATURE", 0.3),
		ResponseMaxTokens:    getEnvAsInt("RESPONSE_GENERATION_MODEL_MAX_TOKENS", 1024),
		QuestionsTemperature: getEnvAsFloat32("QUESTIONS_GENERATION_MODEL_TEMPERATURE", 0.7),
		QuestionsMaxTokens:   getEnvAsInt("QUESTIONS_GENERATION_MODEL_MAX_TOKENS", 512),
		LLMTimeout:           getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),

		EmbeddingProvider: embeddingProvider,
		EmbeddingModel:    getEnv("DOCUMENT_EMBEDDING_MODEL_ID", "text-embedding-004"),

		ObjectStore:          objectStore,
		ObjectStoreRoot:      getEnv("OBJECT_STORE_ROOT", "./corpus"),
		S3Bucket:             os.Getenv("MAIN_S3_BUCKET_NAME"),
		S3Region:             os.Getenv("AWS_REGION"),
		GroundingPrefix:      getEnv("STUDENT_VECTORSTORE_FOLDER_PATH", "vectorstores"),
		TranscriptsPrefix:    getEnv("CHAT_TRANSCRIPTS_FOLDER_PATH", "chat-transcripts"),
		GroundingCacheDir:    getEnv("LOCAL_VECTORSTORES_DIRECTORY", "./.vectorstores"),
		GroundingRetryBase:   getEnvAsDuration("GROUNDING_RETRY_BASE", time.Second),
		RetrievalTopK:        getEnvAsInt("RETRIEVAL_TOP_K", 4),
		RetrievalMode:        retrievalMode,
		RetrievalTimeout:     getEnvAsDuration("RETRIEVAL_TIMEOUT", 20*time.Second),
		NextQuestionCount:    getEnvAsInt("NEXT_QUESTION_COUNT", 4),
		SuggestionCacheTTL:   getEnvAsDuration("SUGGESTION_CACHE_TTL", 30*time.Minute),
		TranslationEnabled:   getEnvAsBool("TRANSLATION_ENABLED", false),
		PrimaryLanguage:      getEnv("PRIMARY_LANGUAGE", "en"),
		SecondaryLanguage:    getEnv("SECONDARY_LANGUAGE", "kn"),
		StudentProfilesCount: getEnvAsInt("STUDENT_PROFILES_COUNT", 8),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: getEnv("RABBIT_QUEUE", "suggestion_jobs"),
	}
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if c.APIKey == "" && c.APIKeyHash == "" {
		return fmt.Errorf("BACKEND_API_KEY or BACKEND_API_KEY_HASH is required")
	}
	if c.AIProvider == "gemini" && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER=gemini")
	}
	if c.SessionLockBackend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when SESSION_LOCK_BACKEND=redis")
	}
	if c.ObjectStore == "s3" && c.S3Bucket == "" {
		return fmt.Errorf("MAIN_S3_BUCKET_NAME is required when OBJECT_STORE=s3")
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
