package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drugraph/drugraph-api/internal/cascade"
	"github.com/drugraph/drugraph-api/internal/classify"
	"github.com/drugraph/drugraph-api/internal/config"
	"github.com/drugraph/drugraph-api/internal/llm"
	neo4jpkg "github.com/drugraph/drugraph-api/internal/neo4j"
	"github.com/drugraph/drugraph-api/internal/resilience"
	"github.com/drugraph/drugraph-api/internal/server"
)

func main() {
	log.Println("Starting DrugGraph API...")

	cfg := config.Load()
	ctx := context.Background()

	if cfg.GeminiAPIKey == "" {
		log.Fatalf("[Error] DG_GEMINI_API_KEY is not set. Cannot start API server.")
	}

	graph, err := neo4jpkg.NewClient(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		log.Fatalf("[Error] Neo4j connection failed: %v", err)
	}
	defer func() { _ = graph.Close(ctx) }()

	if err := graph.EnsureSchema(ctx); err != nil {
		log.Fatalf("[Error] Schema setup failed: %v", err)
	}

	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbed, llm.GenerationParams{
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		TopK:            cfg.TopK,
		MaxOutputTokens: cfg.MaxOutputTokens,
	})
	if err != nil {
		log.Fatalf("[Error] Gemini client setup failed: %v", err)
	}
	defer func() { _ = gemini.Close() }()

	breaker := resilience.NewBreaker("gemini", 5, 30*time.Second)
	retryable := llm.NewRetryClient(gemini, breaker, cfg.MaxRetries, cfg.RetryBaseDelay)
	retryable.Timeout = cfg.DefaultTimeout

	classifier := classify.NewClassifier(graph, retryable)
	predictor := cascade.NewPredictor(retryable, graph)

	apiServer := server.NewServer(graph, classifier, predictor)

	httpServer := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: apiServer.RegisterRoutes(),
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("[System] Starting REST API server on %s", cfg.APIAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Error] HTTP server failed: %v", err)
		}
	}()

	<-stop
	log.Println("[System] Shutdown signal received. Draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Error] HTTP shutdown error: %v", err)
	}

	log.Println("[System] Server stopped gracefully.")
}
