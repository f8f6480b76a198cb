package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all environmentally dependent settings for the drugraph services.
type Config struct {
	// Neo4j Graph DB
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Gemini API
	GeminiAPIKey    string
	GeminiModel     string
	GeminiEmbed     string
	Temperature     float32
	TopP            float32
	TopK            int32
	MaxOutputTokens int32

	// Qdrant Vector DB (MOA similarity enrichment)
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string

	// Ingest run ledger
	SQLitePath string

	// Default data source for batch ingestion
	DataFile string

	// HTTP API
	APIAddr string

	// Batch pacing and retries
	BatchDelay     time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	DefaultTimeout time.Duration
}

// Validate ensures that all required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("DG_NEO4J_URI is required")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("DG_MAX_RETRIES must be at least 1")
	}
	if c.TopK < 1 {
		return fmt.Errorf("DG_GEMINI_TOP_K must be at least 1")
	}
	return nil
}

// Load reads settings from environment variables with sensible defaults.
func Load() *Config {
	cfg := &Config{
		Neo4jURI:      getEnv("DG_NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     getEnv("DG_NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("DG_NEO4J_PASSWORD", "drugraph_dev"),
		Neo4jDatabase: getEnv("DG_NEO4J_DATABASE", "neo4j"),

		GeminiAPIKey:    getEnv("DG_GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("DG_GEMINI_MODEL", "gemini-1.5-pro"),
		GeminiEmbed:     getEnv("DG_GEMINI_EMBED_MODEL", "text-embedding-004"),
		Temperature:     getEnvFloat32("DG_GEMINI_TEMPERATURE", 0.2),
		TopP:            getEnvFloat32("DG_GEMINI_TOP_P", 0.95),
		TopK:            int32(getEnvInt("DG_GEMINI_TOP_K", 40)),
		MaxOutputTokens: int32(getEnvInt("DG_GEMINI_MAX_OUTPUT_TOKENS", 2048)),

		QdrantHost:       getEnv("DG_QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("DG_QDRANT_PORT", 6334),
		QdrantCollection: getEnv("DG_QDRANT_COLLECTION", "drugraph_moa"),

		SQLitePath: getEnv("DG_SQLITE_PATH", "drugraph.db"),
		DataFile:   getEnv("DG_DATA_FILE", "data/repurposing_drugs.txt"),
		APIAddr:    getEnv("DG_API_ADDR", ":8080"),

		BatchDelay:     getEnvDuration("DG_BATCH_DELAY_SEC", 1) * time.Second,
		MaxRetries:     getEnvInt("DG_MAX_RETRIES", 3),
		RetryBaseDelay: getEnvDuration("DG_RETRY_BASE_DELAY_SEC", 2) * time.Second,
		DefaultTimeout: getEnvDuration("DG_DEFAULT_TIMEOUT_SEC", 60) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[Config] Validation failed: %v", err)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback int) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return time.Duration(fallback)
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("[Config] Warning: Invalid duration for %s: %v. Using fallback %d", key, err, fallback)
		return time.Duration(fallback)
	}
	return time.Duration(value)
}

func getEnvInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("[Config] Warning: Invalid int for %s: %v. Using fallback %d", key, err, fallback)
		return fallback
	}
	return value
}

func getEnvFloat32(key string, fallback float32) float32 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(valueStr, 32)
	if err != nil {
		log.Printf("[Config] Warning: Invalid float for %s: %v. Using fallback %v", key, err, fallback)
		return fallback
	}
	return float32(value)
}
