package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drugraph/drugraph-api/internal/config"
	"github.com/drugraph/drugraph-api/internal/database"
	"github.com/drugraph/drugraph-api/internal/database/bunstore"
	"github.com/drugraph/drugraph-api/internal/database/models"
	"github.com/drugraph/drugraph-api/internal/ingest"
	neo4jpkg "github.com/drugraph/drugraph-api/internal/neo4j"
)

var (
	mappingFile   string
	templateOut   string
	previewMode   bool
	delimiterOpt  string
	clearFirst    bool
	forceReingest bool
)

var rootCmd = &cobra.Command{
	Use:   "drugraph-ingest <file>",
	Short: "Batch-load a drug screening dataset into the graph",
	Long: `drugraph-ingest loads a drug dataset (.csv, .tsv, .txt, .json or .xlsx)
into the Neo4j property graph. Column-to-entity mapping is auto-detected
from the header and can be overridden with a JSON mapping template.

Each invocation is recorded in the SQLite run ledger, including per-row
errors and skipped relationship endpoints. Preview mode prints the
detected mapping and validation result without touching any database.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runIngest,
}

func init() {
	rootCmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "JSON mapping template (skips auto-detection)")
	rootCmd.Flags().StringVar(&templateOut, "save-template", "", "write the detected mapping to this file and exit")
	rootCmd.Flags().BoolVar(&previewMode, "preview", false, "print the mapping and validation result, write nothing")
	rootCmd.Flags().StringVar(&delimiterOpt, "delimiter", "", "override the multi-value cell delimiter")
	rootCmd.Flags().BoolVar(&clearFirst, "clear", false, "wipe the graph before ingesting (full rebuild)")
	rootCmd.Flags().BoolVar(&forceReingest, "force", false, "ingest even when the file hash matches a completed run")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	src, err := ingest.LoadSource(path)
	if err != nil {
		return err
	}
	log.Printf("[Ingest] Loaded %s: %d columns, %d rows", path, len(src.Columns), len(src.Rows))

	var mapping *ingest.Mapping
	if mappingFile != "" {
		mapping, err = ingest.LoadTemplate(mappingFile)
		if err != nil {
			return err
		}
		log.Printf("[Ingest] Using mapping template %s", mappingFile)
	} else {
		mapping = ingest.AutoDetect(src.Columns)
		log.Printf("[Ingest] Auto-detected mapping: %d entities, %d relationships",
			len(mapping.Entities), len(mapping.Relationships))
	}
	if delimiterOpt != "" {
		overrideDelimiters(mapping, delimiterOpt)
	}

	if templateOut != "" {
		if err := ingest.SaveTemplate(templateOut, fmt.Sprintf("detected from %s", path), mapping); err != nil {
			return err
		}
		log.Printf("[Ingest] Mapping template written to %s", templateOut)
		return nil
	}

	if previewMode {
		return preview(src, mapping)
	}

	cfg := config.Load()

	graph, err := neo4jpkg.NewClient(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		return fmt.Errorf("neo4j connection failed: %w", err)
	}
	defer func() { _ = graph.Close(ctx) }()

	if err := graph.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema setup failed: %w", err)
	}
	if clearFirst {
		if err := graph.ClearDatabase(ctx); err != nil {
			return err
		}
	}

	ledger, err := bunstore.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("run ledger setup failed: %w", err)
	}
	defer func() { _ = ledger.Close() }()

	hash, err := hashFile(path)
	if err != nil {
		return err
	}

	// A rebuild (--clear) always ingests; otherwise an unchanged file that
	// already completed is a no-op.
	if !clearFirst && !forceReingest {
		prior, err := ledger.GetLatestRunByFileHash(ctx, hash)
		switch {
		case err == nil:
			if prior.Status == models.RunStatusCompleted {
				log.Printf("[Ingest] %s is unchanged since run %d; skipping (use --force to re-ingest)", path, prior.ID)
				return nil
			}
		case errors.Is(err, database.ErrNotFound):
		default:
			return fmt.Errorf("run ledger lookup failed: %w", err)
		}
	}

	run := &models.IngestRun{
		SourceFile: path,
		FileHash:   hash,
		Status:     models.RunStatusProcessing,
	}
	if _, err := ledger.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record ingest run: %w", err)
	}

	summary, runErr := ingest.NewPipeline(graph).Run(ctx, src, mapping)
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = runErr.Error()
		if err := ledger.FinishRun(ctx, run); err != nil {
			log.Printf("[Ingest] Warning: failed to update run ledger: %v", err)
		}
		return runErr
	}

	run.Status = models.RunStatusCompleted
	run.RowsProcessed = summary.RowsProcessed
	run.NodesCreated = sumCounts(summary.NodesMerged)
	run.RelsCreated = sumCounts(summary.RelationshipsMerged)
	run.SkippedEndpoints = summary.SkippedEndpoints
	if err := ledger.FinishRun(ctx, run); err != nil {
		log.Printf("[Ingest] Warning: failed to update run ledger: %v", err)
	}

	var rowErrors []*models.RowError
	for _, issue := range summary.Errors {
		rowErrors = append(rowErrors, &models.RowError{
			RowNumber: issue.Row,
			Column:    issue.Column,
			Message:   issue.Message,
		})
	}
	if err := ledger.AddRowErrors(ctx, run.ID, rowErrors); err != nil {
		log.Printf("[Ingest] Warning: failed to record row errors: %v", err)
	}

	log.Printf("[Ingest] Run %d complete: %d rows, %d nodes, %d relationships, %d skipped endpoints, %d row errors",
		run.ID, run.RowsProcessed, run.NodesCreated, run.RelsCreated, run.SkippedEndpoints, len(rowErrors))
	return nil
}

// preview validates the mapping against the source and prints it, writing
// nothing anywhere.
func preview(src *ingest.Source, mapping *ingest.Mapping) error {
	out, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("Detected mapping:\n%s\n", out)
	fmt.Printf("Columns: %v\n", src.Columns)
	fmt.Printf("Rows:    %d\n", len(src.Rows))

	if err := mapping.Validate(src.Columns); err != nil {
		return fmt.Errorf("mapping validation failed: %w", err)
	}
	fmt.Println("Mapping is valid.")
	return nil
}

func overrideDelimiters(mapping *ingest.Mapping, delimiter string) {
	for label, em := range mapping.Entities {
		if em.Delimiter != "" {
			em.Delimiter = delimiter
			mapping.Entities[label] = em
		}
	}
	for i := range mapping.Relationships {
		if mapping.Relationships[i].Delimiter != "" {
			mapping.Relationships[i].Delimiter = delimiter
		}
	}
}

func hashFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

func sumCounts(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Printf("[Ingest] Error: %v", err)
		os.Exit(1)
	}
}
