package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Llm       LLMConfig
	Embedding EmbeddingConfig
	Rerank    RerankConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	// StoreDriver selects the chunk index backend: "postgres" or "memory".
	StoreDriver string
	// CheckpointDriver selects run snapshot storage: "redis" or "memory".
	CheckpointDriver string
}

type DatabaseConfig struct {
	Connection string
}

type LLMConfig struct {
	Provider  string // "deepseek" or "ollama"
	BaseURL   string
	ApiKey    string
	ModelName string
}

type EmbeddingConfig struct {
	Provider  string // "siliconflow", "jina" or "ollama"
	BaseURL   string
	ApiKey    string
	ModelName string
}

type RerankConfig struct {
	Provider string // "jina" or "lexical"
	ApiKey   string
	Model    string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			StoreDriver:        getEnv("STORE_DRIVER", "memory"),
			CheckpointDriver:   getEnv("CHECKPOINT_DRIVER", "memory"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Llm: LLMConfig{
			Provider:  getEnv("LLM_PROVIDER", "deepseek"),
			BaseURL:   getEnv("LLM_BASE_URL", ""),
			ApiKey:    getEnv("LLM_API_KEY", ""),
			ModelName: getEnv("LLM_MODEL", ""),
		},
		Embedding: EmbeddingConfig{
			Provider:  getEnv("EMBEDDING_PROVIDER", "siliconflow"),
			BaseURL:   getEnv("EMBEDDING_BASE_URL", ""),
			ApiKey:    getEnv("EMBEDDING_API_KEY", ""),
			ModelName: getEnv("EMBEDDING_MODEL", ""),
		},
		Rerank: RerankConfig{
			Provider: getEnv("RERANK_PROVIDER", "lexical"),
			ApiKey:   getEnv("RERANK_API_KEY", ""),
			Model:    getEnv("RERANK_MODEL", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

