package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/drugraph/drugraph-api/internal/cascade"
	"github.com/drugraph/drugraph-api/internal/config"
	neo4jpkg "github.com/drugraph/drugraph-api/internal/neo4j"
)

var cascadeDepth int

var cascadeCmd = &cobra.Command{
	Use:   "cascade",
	Short: "Predict downstream effect cascades for every drug-target pair",
	Long: `cascade predicts multi-hop downstream effects for each TARGETS
relationship and stores them as AFFECTS_DOWNSTREAM edges. Pairs that
already have a stored cascade are reused without an API call; the rest
are paced by DG_BATCH_DELAY_SEC.`,
	RunE: runCascade,
}

func init() {
	cascadeCmd.Flags().IntVar(&cascadeDepth, "depth", 2, "cascade depth (1-3)")
	rootCmd.AddCommand(cascadeCmd)
}

func runCascade(cmd *cobra.Command, args []string) error {
	if cascadeDepth < 1 || cascadeDepth > 3 {
		return fmt.Errorf("depth must be between 1 and 3, got %d", cascadeDepth)
	}

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

	pairs, err := graph.TargetPairs(ctx, false)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		log.Println("[Cascade] No drug-target pairs found")
		return nil
	}
	log.Printf("[Cascade] Predicting depth-%d cascades for %d drug-target pairs", cascadeDepth, len(pairs))

	batch := make([]cascade.Pair, 0, len(pairs))
	for _, p := range pairs {
		batch = append(batch, cascade.Pair{Drug: p.Drug, Target: p.Target})
	}

	predictor := cascade.NewPredictor(client, graph)
	results := predictor.PredictBatch(ctx, batch, cascadeDepth, cfg.BatchDelay)
	if len(results) < len(pairs) {
		return fmt.Errorf("%d of %d cascades failed", len(pairs)-len(results), len(pairs))
	}
	log.Printf("[Cascade] Stored cascades for %d drug-target pairs", len(results))
	return nil
}
