package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	OpenAIKey      string
	OpenAIEndpoint string
	OpenAIModel    string
	EmbeddingModel string
	Database       string
	UploadDir      string
	VectorStore    string
	QdrantURL      string
	QdrantAPIKey   string
	QdrantColl     string
	EmbedCacheSize int
}

// Load reads configuration from the environment, providing sensible defaults.
func Load() Config {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()
	cfg := Config{
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint: getEnv("OPENAI_API_ENDPOINT", "https://api.openai.com/v1"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		Database:       getEnv("DATABASE_PATH", "./data/studyai.db"),
		UploadDir:      getEnv("UPLOAD_DIR", "./static/uploads"),
		VectorStore:    getEnv("VECTOR_STORE", "memory"),
		QdrantURL:      getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:   os.Getenv("QDRANT_API_KEY"),
		QdrantColl:     getEnv("QDRANT_COLLECTION", "lecture_content"),
		EmbedCacheSize: getEnvInt("EMBED_CACHE_SIZE", 4096),
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to ensure upload dir %s: %v", cfg.UploadDir, err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		log.Fatalf("failed to ensure database dir %s: %v", cfg.Database, err)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
