package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/drugraph/drugraph-api/internal/classify"
	"github.com/drugraph/drugraph-api/internal/config"
	"github.com/drugraph/drugraph-api/internal/llm"
	neo4jpkg "github.com/drugraph/drugraph-api/internal/neo4j"
	"github.com/drugraph/drugraph-api/internal/resilience"
)

var classifyForce bool

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify drug-target relationships through the LLM",
	Long: `classify walks every TARGETS relationship that has not been classified
yet and labels it through Gemini: relationship type, target class and
subclass, mechanism and a confidence score. Calls are paced by
DG_BATCH_DELAY_SEC; failed pairs are logged and skipped.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyForce, "force", false, "re-classify pairs that already carry a classification")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	graph, err := neo4jpkg.NewClient(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		return fmt.Errorf("neo4j connection failed: %w", err)
	}
	defer func() { _ = graph.Close(ctx) }()

	client, closeLLM, err := newRetryableLLM(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLLM()

	pairs, err := graph.TargetPairs(ctx, !classifyForce)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		log.Println("[Classify] No unclassified drug-target pairs found")
		return nil
	}
	log.Printf("[Classify] Classifying %d drug-target pairs", len(pairs))

	batch := make([]classify.Pair, 0, len(pairs))
	for _, p := range pairs {
		batch = append(batch, classify.Pair{Drug: p.Drug, Target: p.Target})
	}

	classifier := classify.NewClassifier(graph, client)
	results, failed := classifier.ClassifyBatch(ctx, batch, cfg.BatchDelay, classifyForce)
	if failed > 0 {
		return fmt.Errorf("%d of %d pairs failed to classify", failed, len(pairs))
	}
	log.Printf("[Classify] Classified %d drug-target pairs", len(results))
	return nil
}

// newRetryableLLM builds the Gemini client behind the same retry and
// circuit-breaker stack the API server uses, with each attempt bounded
// by the configured default timeout.
func newRetryableLLM(ctx context.Context, cfg *config.Config) (*llm.RetryClient, func(), error) {
	if cfg.GeminiAPIKey == "" {
		return nil, nil, fmt.Errorf("DG_GEMINI_API_KEY is required")
	}
	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbed, llm.GenerationParams{
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		TopK:            cfg.TopK,
		MaxOutputTokens: cfg.MaxOutputTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("gemini client setup failed: %w", err)
	}

	breaker := resilience.NewBreaker("gemini", 5, 30*time.Second)
	retryable := llm.NewRetryClient(gemini, breaker, cfg.MaxRetries, cfg.RetryBaseDelay)
	retryable.Timeout = cfg.DefaultTimeout
	return retryable, func() { _ = gemini.Close() }, nil
}
