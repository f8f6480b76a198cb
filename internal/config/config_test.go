package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear the environment block to test defaults
	os.Clearenv()

	cfg := Load()

	if cfg.Neo4jURI != "neo4j://localhost:7687" {
		t.Errorf("expected Neo4jURI to be neo4j://localhost:7687, got %v", cfg.Neo4jURI)
	}
	if cfg.Neo4jUser != "neo4j" {
		t.Errorf("expected Neo4jUser to be neo4j, got %v", cfg.Neo4jUser)
	}
	if cfg.Neo4jPassword != "drugraph_dev" {
		t.Errorf("expected default dev password fallback, got %v", cfg.Neo4jPassword)
	}
	if cfg.GeminiModel != "gemini-1.5-pro" {
		t.Errorf("expected GeminiModel to be gemini-1.5-pro, got %v", cfg.GeminiModel)
	}
	if cfg.TopK != 40 {
		t.Errorf("expected TopK to be 40, got %v", cfg.TopK)
	}
	if cfg.MaxOutputTokens != 2048 {
		t.Errorf("expected MaxOutputTokens to be 2048, got %v", cfg.MaxOutputTokens)
	}
	if cfg.BatchDelay != 1*time.Second {
		t.Errorf("expected BatchDelay to be 1s, got %v", cfg.BatchDelay)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries to be 3, got %v", cfg.MaxRetries)
	}
	if cfg.RetryBaseDelay != 2*time.Second {
		t.Errorf("expected RetryBaseDelay to be 2s, got %v", cfg.RetryBaseDelay)
	}
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	_ = os.Setenv("DG_NEO4J_URI", "neo4j://graph:7687")
	_ = os.Setenv("DG_NEO4J_USER", "admin")
	_ = os.Setenv("DG_NEO4J_PASSWORD", "secret")
	_ = os.Setenv("DG_NEO4J_DATABASE", "drugs")
	_ = os.Setenv("DG_GEMINI_API_KEY", "test-key")
	_ = os.Setenv("DG_GEMINI_TEMPERATURE", "0.7")
	_ = os.Setenv("DG_GEMINI_TOP_K", "64")
	_ = os.Setenv("DG_BATCH_DELAY_SEC", "5")
	defer os.Clearenv()

	cfg := Load()

	if cfg.Neo4jURI != "neo4j://graph:7687" {
		t.Errorf("expected Neo4jURI to be neo4j://graph:7687, got %v", cfg.Neo4jURI)
	}
	if cfg.Neo4jUser != "admin" {
		t.Errorf("expected Neo4jUser to be admin, got %v", cfg.Neo4jUser)
	}
	if cfg.Neo4jPassword != "secret" {
		t.Errorf("expected Neo4jPassword to be secret, got %v", cfg.Neo4jPassword)
	}
	if cfg.Neo4jDatabase != "drugs" {
		t.Errorf("expected Neo4jDatabase to be drugs, got %v", cfg.Neo4jDatabase)
	}
	if cfg.GeminiAPIKey != "test-key" {
		t.Errorf("expected GeminiAPIKey to be test-key, got %v", cfg.GeminiAPIKey)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("expected Temperature to be 0.7, got %v", cfg.Temperature)
	}
	if cfg.TopK != 64 {
		t.Errorf("expected TopK to be 64, got %v", cfg.TopK)
	}
	if cfg.BatchDelay != 5*time.Second {
		t.Errorf("expected BatchDelay to be 5s, got %v", cfg.BatchDelay)
	}
}

func TestLoadWithInvalidValues(t *testing.T) {
	os.Clearenv()
	_ = os.Setenv("DG_GEMINI_TOP_K", "not-a-number")
	_ = os.Setenv("DG_GEMINI_TEMPERATURE", "warm")
	_ = os.Setenv("DG_BATCH_DELAY_SEC", "soon")
	defer os.Clearenv()

	cfg := Load()

	if cfg.TopK != 40 {
		t.Errorf("expected TopK to fallback to 40, got %v", cfg.TopK)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("expected Temperature to fallback to 0.2, got %v", cfg.Temperature)
	}
	if cfg.BatchDelay != 1*time.Second {
		t.Errorf("expected BatchDelay to fallback to 1s, got %v", cfg.BatchDelay)
	}
}
