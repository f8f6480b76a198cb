package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/drugraph/drugraph-api/internal/config"
	"github.com/drugraph/drugraph-api/internal/database"
	"github.com/drugraph/drugraph-api/internal/database/bunstore"
	"github.com/drugraph/drugraph-api/internal/database/models"
)

var runsCmd = &cobra.Command{
	Use:   "runs <id>",
	Short: "Inspect a recorded ingest run and its row errors",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	ctx := cmd.Context()
	cfg := config.Load()

	ledger, err := bunstore.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("run ledger setup failed: %w", err)
	}
	defer func() { _ = ledger.Close() }()

	run, err := ledger.GetRunByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Run %d: %s\n", run.ID, run.SourceFile)
	fmt.Printf("  Status:            %s\n", statusName(run.Status))
	fmt.Printf("  File hash:         %x\n", run.FileHash)
	fmt.Printf("  Rows processed:    %d\n", run.RowsProcessed)
	fmt.Printf("  Nodes created:     %d\n", run.NodesCreated)
	fmt.Printf("  Rels created:      %d\n", run.RelsCreated)
	fmt.Printf("  Skipped endpoints: %d\n", run.SkippedEndpoints)
	if run.ErrorMessage != "" {
		fmt.Printf("  Error:             %s\n", run.ErrorMessage)
	}

	rowErrors, err := ledger.GetRowErrors(ctx, id)
	if err != nil {
		return err
	}
	if len(rowErrors) == 0 {
		fmt.Println("  No row errors.")
		return nil
	}
	fmt.Printf("  Row errors (%d):\n", len(rowErrors))
	for _, re := range rowErrors {
		if re.Column != "" {
			fmt.Printf("    row %d [%s]: %s\n", re.RowNumber, re.Column, re.Message)
		} else {
			fmt.Printf("    row %d: %s\n", re.RowNumber, re.Message)
		}
	}
	return nil
}

func statusName(s models.RunStatus) string {
	switch s {
	case models.RunStatusPending:
		return "pending"
	case models.RunStatusProcessing:
		return "processing"
	case models.RunStatusCompleted:
		return "completed"
	case models.RunStatusFailed:
		return "failed"
	}
	return "unknown"
}
