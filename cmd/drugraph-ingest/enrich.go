package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/drugraph/drugraph-api/internal/config"
	"github.com/drugraph/drugraph-api/internal/enrich"
	"github.com/drugraph/drugraph-api/internal/llm"
	neo4jpkg "github.com/drugraph/drugraph-api/internal/neo4j"
	qdrantpkg "github.com/drugraph/drugraph-api/internal/qdrant"
)

var skipSimilarity bool

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run the post-ingestion enrichment passes",
	Long: `enrich derives the aggregation layer from drug properties already in
the graph: DiseaseArea, Indication, Vendor, MOA and TherapeuticClass nodes
with their categorical relationships, plus SIMILAR_MOA edges computed from
Gemini embeddings of each distinct mechanism-of-action string.`,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().BoolVar(&skipSimilarity, "skip-similarity", false, "skip the embedding-based SIMILAR_MOA pass")
	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	graph, err := neo4jpkg.NewClient(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		return fmt.Errorf("neo4j connection failed: %w", err)
	}
	defer func() { _ = graph.Close(ctx) }()

	var enricher *enrich.Enricher
	var vectors *qdrantpkg.MOAStore
	if skipSimilarity {
		enricher = enrich.New(graph, nil, nil)
	} else {
		if cfg.GeminiAPIKey == "" {
			return fmt.Errorf("DG_GEMINI_API_KEY is required for the SIMILAR_MOA pass (or use --skip-similarity)")
		}
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbed, llm.GenerationParams{
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			TopK:            cfg.TopK,
			MaxOutputTokens: cfg.MaxOutputTokens,
		})
		if err != nil {
			return fmt.Errorf("gemini client setup failed: %w", err)
		}
		defer func() { _ = gemini.Close() }()

		vectors, err = qdrantpkg.NewMOAStore(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection)
		if err != nil {
			return fmt.Errorf("qdrant setup failed: %w", err)
		}
		defer func() { _ = vectors.Close() }()

		enricher = enrich.New(graph, gemini, vectors)
	}

	if err := enricher.Run(ctx); err != nil {
		return err
	}
	if vectors != nil {
		if count, err := vectors.Count(ctx); err != nil {
			log.Printf("[Enrich] Warning: vector count failed: %v", err)
		} else {
			log.Printf("[Enrich] Vector store holds %d MOA embeddings", count)
		}
	}
	log.Println("[Enrich] Enrichment complete")
	return nil
}
