package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/drugraph/drugraph-api/internal/neo4j"
)

// GraphWriter is the slice of the graph store the pipeline writes through.
type GraphWriter interface {
	MergeNodes(ctx context.Context, label string, rows []neo4j.NodeRow) error
	MergeRelationships(ctx context.Context, relType, fromLabel, toLabel string, rows []neo4j.RelRow) error
}

// RowIssue is one per-row problem collected into the run summary.
type RowIssue struct {
	Row     int    `json:"row"` // 1-based data row, header excluded
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// Summary is the result of one pipeline run.
type Summary struct {
	RowsProcessed       int            `json:"rows_processed"`
	NodesMerged         map[string]int `json:"nodes_merged"`         // label -> distinct names
	RelationshipsMerged map[string]int `json:"relationships_merged"` // type -> count
	SkippedEndpoints    int            `json:"skipped_endpoints"`
	Errors              []RowIssue     `json:"errors"`
}

// Pipeline materializes a mapped source into graph nodes and relationships.
type Pipeline struct {
	graph GraphWriter
}

// NewPipeline creates an ingestion pipeline over the given graph writer.
func NewPipeline(graph GraphWriter) *Pipeline {
	return &Pipeline{graph: graph}
}

// Run validates the mapping and performs the node pass followed by the
// relationship pass. Nodes merge by name (last write wins); relationship
// rows whose endpoint was never merged in this pass are skipped without
// failing the run, but every skip is counted and recorded as a row error.
func (p *Pipeline) Run(ctx context.Context, src *Source, mapping *Mapping) (*Summary, error) {
	if err := mapping.Validate(src.Columns); err != nil {
		return nil, err
	}

	summary := &Summary{
		RowsProcessed:       len(src.Rows),
		NodesMerged:         map[string]int{},
		RelationshipsMerged: map[string]int{},
	}

	// Node pass. mergedNames doubles as the endpoint-resolution set for
	// the relationship pass.
	mergedNames := map[string]map[string]bool{}
	for _, em := range mapping.Entities {
		names := map[string]bool{}
		var batch []neo4j.NodeRow

		for _, row := range src.Rows {
			for _, name := range SplitValues(row[em.IDColumn], em.Delimiter) {
				props := map[string]any{}
				for prop, col := range em.PropertyColumns {
					if value := strings.TrimSpace(row[col]); value != "" {
						props[prop] = value
					}
				}
				batch = append(batch, neo4j.NodeRow{Name: name, Props: props})
				names[name] = true
			}
		}

		if err := p.graph.MergeNodes(ctx, em.Label, batch); err != nil {
			return nil, fmt.Errorf("node pass failed for %s: %w", em.Label, err)
		}
		mergedNames[em.Label] = names
		summary.NodesMerged[em.Label] = len(names)
	}

	// Relationship pass.
	for _, rm := range mapping.Relationships {
		fromEM, ok := mapping.Entities[rm.FromEntity]
		if !ok {
			return nil, fmt.Errorf("relationship %s references unmapped entity %s", rm.Type, rm.FromEntity)
		}
		toNames := mergedNames[rm.ToEntity]

		var batch []neo4j.RelRow
		for i, row := range src.Rows {
			from := strings.TrimSpace(row[fromEM.IDColumn])
			toValues := SplitValues(row[rm.ValueColumn], rm.Delimiter)
			if from == "" {
				if len(toValues) > 0 {
					summary.SkippedEndpoints += len(toValues)
					summary.Errors = append(summary.Errors, RowIssue{
						Row:     i + 1,
						Column:  fromEM.IDColumn,
						Message: fmt.Sprintf("%s identifier is empty; %d %s relationship(s) skipped", rm.FromEntity, len(toValues), rm.Type),
					})
				}
				continue
			}
			for _, to := range toValues {
				if !toNames[to] {
					summary.SkippedEndpoints++
					summary.Errors = append(summary.Errors, RowIssue{
						Row:     i + 1,
						Column:  rm.ValueColumn,
						Message: fmt.Sprintf("%s endpoint %q was never merged as a %s node; relationship skipped", rm.Type, to, rm.ToEntity),
					})
					continue
				}
				batch = append(batch, neo4j.RelRow{From: from, To: to})
			}
		}

		if err := p.graph.MergeRelationships(ctx, rm.Type, rm.FromEntity, rm.ToEntity, batch); err != nil {
			return nil, fmt.Errorf("relationship pass failed for %s: %w", rm.Type, err)
		}
		summary.RelationshipsMerged[rm.Type] = len(batch)
	}

	log.Printf("[Ingest] Processed %d rows: %d entity types, %d relationship types, %d skipped endpoints, %d row errors",
		summary.RowsProcessed, len(summary.NodesMerged), len(summary.RelationshipsMerged),
		summary.SkippedEndpoints, len(summary.Errors))

	return summary, nil
}
